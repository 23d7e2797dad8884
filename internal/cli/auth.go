package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/optima-study/optima/internal/client"
)

func newLoginCommand(app *App) *cobra.Command {
	var creds client.Credentials

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.promptMissing(&creds.Email, "Email: "); err != nil {
				return err
			}
			if err := app.promptMissing(&creds.Password, "Password: "); err != nil {
				return err
			}

			if err := app.Session.Login(cmd.Context(), creds); err != nil {
				return err
			}
			// A different account must not see the previous one's cache.
			if err := app.Store.ClearMaterials(cmd.Context()); err != nil {
				app.Logger.Error("failed to clear cached materials", "error", err)
			}

			if u := app.Session.User(); u != nil {
				fmt.Fprintf(app.Out, "Signed in as %s (%s)\n", u.Username, u.Email)
			} else {
				fmt.Fprintln(app.Out, "Signed in")
			}
			return nil
		},
	}
	skipSession(cmd)

	cmd.Flags().StringVarP(&creds.Email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&creds.Password, "password", "p", "", "account password (prompted when omitted)")
	return cmd
}

func newRegisterCommand(app *App) *cobra.Command {
	var reg client.Registration

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.promptMissing(&reg.Username, "Username: "); err != nil {
				return err
			}
			if err := app.promptMissing(&reg.Email, "Email: "); err != nil {
				return err
			}
			if err := app.promptMissing(&reg.Password, "Password: "); err != nil {
				return err
			}

			if err := app.Session.Register(cmd.Context(), reg); err != nil {
				return err
			}
			fmt.Fprintln(app.Out, "Account created. Run `optima login` to sign in.")
			return nil
		},
	}
	skipSession(cmd)

	cmd.Flags().StringVarP(&reg.Username, "username", "u", "", "user name")
	cmd.Flags().StringVarP(&reg.Email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&reg.Password, "password", "p", "", "account password (prompted when omitted)")
	return cmd
}

func newLogoutCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget cached materials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.Session.Logout(cmd.Context()); err != nil {
				return err
			}
			if err := app.Store.ClearMaterials(cmd.Context()); err != nil {
				app.Logger.Error("failed to clear cached materials", "error", err)
			}
			fmt.Fprintln(app.Out, "Signed out")
			return nil
		},
	}
	skipSession(cmd)
	return cmd
}

func newWhoamiCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u := app.Session.User()
			if u == nil {
				fmt.Fprintln(app.Out, "Signed in (profile unavailable)")
				return nil
			}

			w := app.table()
			fmt.Fprintf(w, "Username:\t%s\n", u.Username)
			fmt.Fprintf(w, "Email:\t%s\n", u.Email)
			fmt.Fprintf(w, "Active:\t%t\n", u.IsActive)
			fmt.Fprintf(w, "Member since:\t%s\n", formatDate(u.CreatedAt.Time))
			return w.Flush()
		},
	}
	requireSession(cmd)
	return cmd
}

// promptMissing asks for a value the flags did not supply.
func (a *App) promptMissing(v *string, prompt string) error {
	if strings.TrimSpace(*v) != "" {
		return nil
	}
	line, err := a.ReadLine(prompt)
	if err != nil {
		return fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(prompt), ": "), err)
	}
	*v = strings.TrimSpace(line)
	return nil
}
