package main

import (
	"github.com/spf13/cobra"

	"github.com/brck/brckctl/internal/auth"
	"github.com/brck/brckctl/internal/session"
	"github.com/brck/brckctl/internal/ui"
)

func newLoginCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the appliance",
		Long: `Log in to the appliance and save the session token.

The password is read without echo when stdin is a terminal, and as a single
line otherwise. The token is stored in session.yaml in the brckctl config
directory; passwords are never stored.`,
		Example: `  # Log in as the default user
  brckctl login

  # Log in from a script
  echo "$BRCK_PASSWORD" | brckctl login --user admin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openAppliance(cmd)
			if err != nil {
				return err
			}

			prompt := ui.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			login := user
			if login == "" {
				login, err = prompt.Line("Login", a.settings.Preferences.DefaultLogin)
				if err != nil {
					return err
				}
			}
			password, err := prompt.Secret("Password")
			if err != nil {
				return err
			}

			g := a.gate(auth.RouteLogin)
			if err := g.Login(cmd.Context(), login, password); err != nil {
				return failed("Login failed", err)
			}

			a.out.PrintSuccess("Logged in",
				ui.Detail{Key: "Appliance", Value: a.client.BaseURL},
				ui.Detail{Key: "User", Value: login},
			)
			if g.RequiresPasswordChange() {
				a.out.PrintWarning("Factory password still in use",
					ui.Detail{Key: "Next step", Value: "brckctl passwd"},
				)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "Login name (prompted when empty)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := session.OpenDefault()
			if err != nil {
				return err
			}
			had, err := store.Clear()
			if err != nil {
				return failed("Logout failed", err)
			}
			p := newPrinter(cmd.OutOrStdout())
			if !had {
				p.PrintWarning("Not logged in")
				return nil
			}
			p.PrintSuccess("Logged out")
			return nil
		},
	}
}

func newPasswdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change the appliance password",
		Long: `Change the appliance administrator password.

A new appliance ships with a factory password and refuses most requests until
it is changed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openAppliance(cmd)
			if err != nil {
				return err
			}
			if err := a.requireSession(auth.RouteChangePassword); err != nil {
				return err
			}

			prompt := ui.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			current, err := prompt.Secret("Current password")
			if err != nil {
				return err
			}
			password, err := prompt.Secret("New password")
			if err != nil {
				return err
			}
			confirmation, err := prompt.Secret("Confirm new password")
			if err != nil {
				return err
			}

			g := a.gate(auth.RouteChangePassword)
			if err := g.ChangePassword(cmd.Context(), current, password, confirmation); err != nil {
				return failed("Password change failed", err)
			}
			a.out.PrintSuccess("Password changed")
			return nil
		},
	}
}
