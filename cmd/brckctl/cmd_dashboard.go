package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/brck/brckctl/internal/auth"
	"github.com/brck/brckctl/internal/brckapi"
	"github.com/brck/brckctl/internal/push"
	"github.com/brck/brckctl/internal/tui"
	"github.com/brck/brckctl/internal/ui"
	"github.com/brck/brckctl/internal/workflow"
)

var fahrenheitDashboard bool

func newDashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Launch the interactive dashboard",
		Long: `Launch the interactive dashboard.

The dashboard waits for the appliance, asks for a login when needed, and
shows live status, diagnostics and the connection views. This is the default
command when brckctl runs without arguments.`,
		Example: `  brckctl dashboard
  brckctl --url http://192.168.88.1/api/v1`,
		Args: cobra.NoArgs,
		RunE: runDashboard,
	}
	cmd.Flags().BoolVarP(&fahrenheitDashboard, "fahrenheit", "F", false, "Show temperatures in °F")
	return cmd
}

func runDashboard(cmd *cobra.Command, args []string) error {
	if !ui.IsTerminal(os.Stdout) {
		return fmt.Errorf("the dashboard needs a terminal; use the subcommands for scripting (see 'brckctl --help')")
	}

	a, err := openAppliance(cmd)
	if err != nil {
		return err
	}

	gate := a.gate(auth.RouteBoot)
	engines := make(map[brckapi.Interface]*workflow.Engine, len(interfaceRoutes))
	for kind := range interfaceRoutes {
		engines[kind] = workflow.NewEngine(kind, a.client,
			workflow.WithPollInterval(a.settings.Preferences.PollInterval))
	}

	err = tui.Run(cmd.Context(), tui.Deps{
		Client:       a.client,
		Gate:         gate,
		Engines:      engines,
		Dialer:       push.NewDialer(a.settings.Appliance.PushBaseURL(), a.store),
		DefaultLogin: a.settings.Preferences.DefaultLogin,
		Fahrenheit:   fahrenheitDashboard,
	})
	if err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}
