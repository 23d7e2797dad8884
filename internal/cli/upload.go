package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/optima-study/optima/internal/domain/material"
	"github.com/optima-study/optima/internal/poller"
	"github.com/optima-study/optima/internal/service"
)

func newUploadCommand(app *App) *cobra.Command {
	var (
		req   service.UploadRequest
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a PDF or text file, or paste text, for AI processing",
		Example: `  optima upload --file lecture.pdf
  optima upload --title "Week 3" --text "Photosynthesis converts..."
  optima upload --title "Week 3" --text - < notes.md`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.Text == "-" {
				data, err := io.ReadAll(app.reader())
				if err != nil {
					return fmt.Errorf("read text: %w", err)
				}
				req.Text = string(data)
			}

			m, err := app.Uploads.Upload(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Uploaded %q (id %d)\n", m.Title, m.ID)

			if !watch {
				fmt.Fprintf(app.Out, "Processing continues on the server. Check it with `optima show %d`.\n", m.ID)
				return nil
			}
			return app.watch(cmd.Context(), m.ID)
		},
	}
	requireSession(cmd)

	flags := cmd.Flags()
	flags.StringVarP(&req.FilePath, "file", "f", "", "PDF or text file to upload (max 10MB)")
	flags.StringVar(&req.Text, "text", "", "text to upload, or - to read stdin")
	flags.StringVar(&req.Title, "title", "", "material title (defaults to the file name)")
	flags.BoolVarP(&watch, "watch", "w", true, "wait until the AI content is ready")
	cmd.MarkFlagsMutuallyExclusive("file", "text")
	return cmd
}

// watch polls the material until generated data appears, drawing a
// progress line on stderr.
func (a *App) watch(ctx context.Context, id int64) error {
	cfg := poller.DefaultConfig()
	cfg.Warmup = a.Config.Poll.Warmup
	cfg.Interval = a.Config.Poll.Interval
	cfg.Settle = a.Config.Poll.Settle
	cfg.MaxWait = a.Config.Poll.MaxWait

	var (
		result material.Record
		failed error
	)
	cfg.OnProgress = func(percent int) {
		fmt.Fprintf(a.Err, "\rProcessing with AI... %3d%%", percent)
	}
	cfg.OnComplete = func(rec material.Record) {
		result = rec
	}
	cfg.OnError = func(err error) {
		failed = err
	}

	p := poller.Start(ctx, id, a.Client.Material, cfg, a.Logger)
	<-p.Done()
	fmt.Fprintln(a.Err)

	switch {
	case failed != nil:
		if errors.Is(failed, poller.ErrTimeout) {
			return fmt.Errorf("still processing after %s, check later with `optima show %d`", cfg.MaxWait, id)
		}
		return failed
	case result.Material.ID == 0:
		// Parent context ended before completion.
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("stopped waiting for material %d", id)
	}

	if err := a.Store.PutMaterial(ctx, result); err != nil {
		a.Logger.Error("failed to cache material", "material_id", id, "error", err)
	}

	fmt.Fprintf(a.Out, "Ready: %s\n", result.Material.Title)
	if err := a.printRecords([]material.Record{result}); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "\nRead it with `optima show %d --tab summary` or quiz yourself with `optima quiz %d`.\n", id, id)
	return nil
}
