package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/optima-study/optima/internal/service"
)

func newGenerateCommand(app *App) *cobra.Command {
	var summary, quizFlag, concepts, all bool

	cmd := &cobra.Command{
		Use:   "generate ID",
		Short: "(Re)generate a summary, quiz or key concepts for a material",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var names []string
			if summary {
				names = append(names, string(service.KindSummary))
			}
			if quizFlag {
				names = append(names, string(service.KindQuiz))
			}
			if concepts {
				names = append(names, string(service.KindConcepts))
			}
			if all || len(names) == 0 {
				names = append(names, "all")
			}
			kinds, err := service.ParseKinds(names)
			if err != nil {
				return err
			}

			rec, _, err := app.Library.View(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Generating for %q...\n", rec.Material.Title)

			report, err := app.Generation.Generate(cmd.Context(), id, rec.GeneratedData, kinds)
			if err != nil {
				return err
			}

			w := app.table()
			for _, res := range report.Results {
				status := "done"
				if res.Err != nil {
					status = "failed"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", res.Kind, status, res.Duration.Round(100*time.Millisecond))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if failed := report.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d of %d generation requests failed", len(failed), len(report.Results))
			}
			return nil
		},
	}
	requireSession(cmd)

	flags := cmd.Flags()
	flags.BoolVar(&summary, "summary", false, "generate a summary")
	flags.BoolVar(&quizFlag, "quiz", false, "generate a quiz")
	flags.BoolVar(&concepts, "concepts", false, "extract key concepts")
	flags.BoolVar(&all, "all", false, "generate everything (the default)")
	return cmd
}
