package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// Command annotations read by the root pre-run hook.
const (
	annotationSession = "session"

	sessionRequired = "required" // signed-in user only
	sessionSkip     = "skip"     // no session restore (login, health)
)

var errNotSignedIn = errors.New("not signed in, run `optima login` first")

// NewRootCommand builds the optima command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "optima",
		Short:         "Turn study materials into summaries, quizzes and key concepts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.Config.Validate(); err != nil {
				return err
			}
			if err := app.Open(); err != nil {
				return err
			}

			switch cmd.Annotations[annotationSession] {
			case sessionSkip:
				return nil
			case sessionRequired:
				if err := app.Session.Init(cmd.Context()); err != nil {
					return err
				}
				if !app.Session.IsAuthenticated() {
					return errNotSignedIn
				}
				return nil
			default:
				return app.Session.Init(cmd.Context())
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&app.Config.APIURL, "api-url", app.Config.APIURL, "backend base URL")
	flags.StringVar(&app.Config.DBPath, "db", app.Config.DBPath, "local database path")
	flags.DurationVar(&app.Config.Timeout, "timeout", app.Config.Timeout, "request timeout")

	root.SetIn(app.In)
	root.SetOut(app.Out)
	root.SetErr(app.Err)

	root.AddCommand(
		newLoginCommand(app),
		newRegisterCommand(app),
		newLogoutCommand(app),
		newWhoamiCommand(app),
		newHealthCommand(app),
		newDashboardCommand(app),
		newHistoryCommand(app),
		newShowCommand(app),
		newDeleteCommand(app),
		newDownloadCommand(app),
		newExportCommand(app),
		newUploadCommand(app),
		newGenerateCommand(app),
		newQuizCommand(app),
		newAttemptsCommand(app),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, app *App, args []string) int {
	defer func() {
		if err := app.Close(); err != nil {
			app.Logger.Error("failed to close local store", "error", err)
		}
	}()

	root := NewRootCommand(app)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		app.Report(err)
		return 1
	}
	return 0
}

func requireSession(cmd *cobra.Command) {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[annotationSession] = sessionRequired
}

func skipSession(cmd *cobra.Command) {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[annotationSession] = sessionSkip
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid material id %q", arg)
	}
	return id, nil
}
