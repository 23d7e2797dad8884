package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/optima-study/optima/internal/domain/material"
	"github.com/optima-study/optima/internal/domain/quiz"
	"github.com/optima-study/optima/internal/service"
)

// ============================================================================
// Overview
// ============================================================================

func newHealthCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := app.Library.Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%s: %s\n", app.Client.BaseURL(), h.Status)
			if h.Storage != nil {
				fmt.Fprintf(app.Out, "file storage: %s (configured: %t)\n", h.Storage.Service, h.Storage.Configured)
			}
			return nil
		},
	}
	skipSession(cmd)
	return cmd
}

func newDashboardCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Library statistics, recent materials and quiz results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := app.Library.Dashboard(cmd.Context())
			if err != nil {
				return err
			}

			if u := app.Session.User(); u != nil {
				fmt.Fprintf(app.Out, "Welcome back, %s\n\n", u.Username)
			}
			if d.Offline {
				fmt.Fprintln(app.Out, "(offline, showing cached materials)")
			}

			w := app.table()
			fmt.Fprintf(w, "Materials:\t%d\n", d.Stats.TotalMaterials)
			fmt.Fprintf(w, "Summaries:\t%d\n", d.Stats.Summaries)
			fmt.Fprintf(w, "Quizzes:\t%d\n", d.Stats.Quizzes)
			fmt.Fprintf(w, "Concept sets:\t%d\n", d.Stats.Concepts)
			fmt.Fprintf(w, "Awaiting AI:\t%d\n", d.Stats.Pending)
			fmt.Fprintf(w, "Backend:\t%s\n", d.BackendStatus)
			if err := w.Flush(); err != nil {
				return err
			}

			if len(d.Recent) > 0 {
				fmt.Fprintln(app.Out, "\nRecent materials")
				if err := app.printRecords(d.Recent); err != nil {
					return err
				}
			}
			if len(d.Attempts) > 0 {
				fmt.Fprintln(app.Out, "\nRecent quizzes")
				if err := app.printAttempts(d.Attempts); err != nil {
					return err
				}
			}
			if d.Stats.TotalMaterials == 0 {
				fmt.Fprintln(app.Out, "\nNo materials yet. Try `optima upload --file notes.pdf`.")
			}
			return nil
		},
	}
	requireSession(cmd)
	return cmd
}

// ============================================================================
// History
// ============================================================================

func newHistoryCommand(app *App) *cobra.Command {
	var (
		search   string
		fileType string
	)

	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"ls"},
		Short:   "List uploaded materials, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := material.Filter{Search: search, Type: material.TypeFilter(fileType)}
			switch filter.Type {
			case material.FilterAll, material.FilterPDF, material.FilterText:
			default:
				return fmt.Errorf("unknown type %q (want all, pdf or text)", fileType)
			}

			listing, err := app.Library.History(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if listing.Offline {
				fmt.Fprintf(app.Out, "(offline, cached %s)\n", formatDate(listing.SyncedAt))
			}
			if len(listing.Records) == 0 {
				if search != "" || filter.Type != material.FilterAll {
					fmt.Fprintln(app.Out, "No materials match.")
				} else {
					fmt.Fprintln(app.Out, "No materials yet.")
				}
				return nil
			}
			return app.printRecords(listing.Records)
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "fuzzy match against titles")
	cmd.Flags().StringVarP(&fileType, "type", "t", string(material.FilterAll), "all, pdf or text")
	return cmd
}

func (a *App) printRecords(records []material.Record) error {
	w := a.table()
	fmt.Fprintln(w, "ID\tTITLE\tTYPE\tUPLOADED\tSUMMARY\tQUIZ\tCONCEPTS")
	for _, r := range records {
		g := r.GeneratedData
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Material.ID,
			truncate(r.Material.Title, 40),
			r.Material.FileType,
			formatDate(r.Material.UploadedAt.Time),
			check(g.HasSummary()),
			check(g.HasQuiz()),
			check(g.HasConcepts()),
		)
	}
	return w.Flush()
}

// ============================================================================
// Material viewer
// ============================================================================

func newShowCommand(app *App) *cobra.Command {
	var tab string

	cmd := &cobra.Command{
		Use:     "show ID",
		Aliases: []string{"view"},
		Short:   "Show a material and its generated content",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			t := material.Tab(tab)
			switch t {
			case material.TabContent, material.TabSummary, material.TabQuiz, material.TabConcepts:
			default:
				return fmt.Errorf("unknown tab %q (want content, summary, quiz or concepts)", tab)
			}

			rec, offline, err := app.Library.View(cmd.Context(), id)
			if err != nil {
				return err
			}
			if offline {
				fmt.Fprintln(app.Out, "(offline, showing cached copy)")
			}

			m := rec.Material
			fmt.Fprintf(app.Out, "%s\n%s · uploaded %s\n", m.Title, m.FileType, formatDate(m.UploadedAt.Time))
			tabs := rec.Tabs()
			names := make([]string, len(tabs))
			for i, t := range tabs {
				names[i] = string(t)
			}
			fmt.Fprintf(app.Out, "tabs: %s\n\n", strings.Join(names, ", "))

			if !rec.HasTab(t) {
				return fmt.Errorf("no %s for this material yet, run `optima generate %d --%s`", t, id, t)
			}
			return app.printTab(app.Out, rec, t)
		},
	}

	cmd.Flags().StringVar(&tab, "tab", string(material.TabContent), "content, summary, quiz or concepts")
	return cmd
}

func (a *App) printTab(w io.Writer, rec material.Record, t material.Tab) error {
	g := rec.GeneratedData
	switch t {
	case material.TabSummary:
		fmt.Fprintln(w, g.SummaryText())
	case material.TabQuiz:
		questions, _ := g.Questions()
		for i, q := range questions {
			fmt.Fprintf(w, "%d. %s\n", i+1, q.Question)
			for j, opt := range q.Choices() {
				fmt.Fprintf(w, "   %s) %s\n", quiz.OptionLetter(j), opt)
			}
		}
		fmt.Fprintf(w, "\nTake it with `optima quiz %d`.\n", rec.Material.ID)
	case material.TabConcepts:
		concepts, _ := g.Concepts()
		for _, c := range concepts {
			if c.Explanation == "" {
				fmt.Fprintf(w, "• %s\n", c.Name)
				continue
			}
			fmt.Fprintf(w, "• %s: %s\n", c.Name, c.Explanation)
		}
	case material.TabContent:
		if rec.Material.Content == "" {
			fmt.Fprintln(w, "(no extracted text)")
			return nil
		}
		fmt.Fprintln(w, rec.Material.Content)
	default:
		return fmt.Errorf("unknown tab %q", t)
	}
	return nil
}

func newDeleteCommand(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a material and everything generated from it",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			if !yes {
				rec, _, err := app.Library.View(cmd.Context(), id)
				if err != nil {
					return err
				}
				ok, err := app.confirm(fmt.Sprintf("Delete %q? This cannot be undone.", rec.Material.Title))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(app.Out, "Cancelled")
					return nil
				}
			}

			if err := app.Library.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintln(app.Out, "Material deleted successfully")
			return nil
		},
	}
	requireSession(cmd)

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newDownloadCommand(app *App) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "download ID",
		Short: "Save the original document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			path, err := app.Library.Download(cmd.Context(), id, dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Saved %s\n", path)
			return nil
		},
	}
	requireSession(cmd)

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "destination directory")
	return cmd
}

func newExportCommand(app *App) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export ID",
		Short: "Write a material with its summary, quiz and concepts as YAML or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				return app.Library.Export(cmd.Context(), id, service.ExportFormat(format), app.Out)
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := f.Close(); err == nil {
					err = closeErr
				}
				if err != nil {
					os.Remove(output)
				}
			}()
			if err := app.Library.Export(cmd.Context(), id, service.ExportFormat(format), f); err != nil {
				return err
			}
			fmt.Fprintf(app.Err, "Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(service.FormatYAML), "yaml or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default stdout)")
	return cmd
}

// ============================================================================
// Quiz attempts
// ============================================================================

func newAttemptsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "attempts ID",
		Short: "List past quiz results for a material",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			attempts, err := app.Library.Attempts(cmd.Context(), id)
			if err != nil {
				return err
			}
			if len(attempts) == 0 {
				fmt.Fprintln(app.Out, "No quiz attempts yet.")
				return nil
			}
			return app.printAttempts(attempts)
		},
	}
}

func (a *App) printAttempts(attempts []quiz.Attempt) error {
	w := a.table()
	fmt.Fprintln(w, "WHEN\tMATERIAL\tSCORE")
	for _, at := range attempts {
		fmt.Fprintf(w, "%s\t%s\t%d/%d (%d%%)\n",
			formatDate(at.CompletedAt),
			truncate(at.Title, 40),
			at.Score.Correct, at.Score.Total, at.Score.Percentage,
		)
	}
	return w.Flush()
}
