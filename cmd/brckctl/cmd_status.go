package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brck/brckctl/internal/auth"
	"github.com/brck/brckctl/internal/brckapi"
	"github.com/brck/brckctl/internal/logging"
	"github.com/brck/brckctl/internal/ui"
)

// statusReport is the JSON shape of 'brckctl status'.
type statusReport struct {
	DeviceMode *brckapi.DeviceMode   `json:"device_mode,omitempty"`
	System     *brckapi.SystemStatus `json:"system"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show battery, uplink and storage status",
		Example: `  brckctl status
  brckctl status --format compact
  brckctl status --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openAppliance(cmd)
			if err != nil {
				return err
			}
			if err := a.requireSession(auth.RouteDashboard); err != nil {
				return err
			}

			system, err := a.client.System(cmd.Context())
			if err != nil {
				return failed("Failed to get status", err)
			}
			report := statusReport{System: system}
			// Device mode is informational; an older API without it is fine.
			if mode, err := a.client.DeviceMode(cmd.Context()); err == nil {
				report.DeviceMode = mode
			} else {
				logging.Debug("Device mode unavailable", zap.Error(err))
			}

			if err := a.render("Status", report, system.FormatDetailed, system.Summary); err != nil {
				return err
			}
			if report.DeviceMode != nil && report.DeviceMode.Retail() && !quiet() {
				link := report.DeviceMode.SetupLink
				if link == "" {
					link = "the BRCK cloud dashboard"
				}
				a.out.Newline()
				a.out.PrintWarning("Appliance is in retail mode",
					ui.Detail{Key: "Finish setup at", Value: link})
			}
			return nil
		},
	}
}

func newSoftwareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "software",
		Short: "Show OS, firmware and package versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openAppliance(cmd)
			if err != nil {
				return err
			}
			if err := a.requireSession(auth.RouteSoftware); err != nil {
				return err
			}
			sw, err := a.client.Software(cmd.Context())
			if err != nil {
				return failed("Failed to get software state", err)
			}
			return a.render("Software", sw, sw.FormatDetailed, nil)
		},
	}
}

func newDiagnosticsCmd() *cobra.Command {
	var fahrenheit bool

	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "Show temperatures and connected Wi-Fi clients",
		Example: `  brckctl diagnostics
  brckctl diagnostics --fahrenheit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openAppliance(cmd)
			if err != nil {
				return err
			}
			if err := a.requireSession(auth.RouteDiagnostics); err != nil {
				return err
			}
			diag, err := a.client.Diagnostics(cmd.Context())
			if err != nil {
				return failed("Failed to get diagnostics", err)
			}
			return a.render("Diagnostics", diag, func() string { return diag.FormatDetailed(fahrenheit) }, nil)
		},
	}
	cmd.Flags().BoolVarP(&fahrenheit, "fahrenheit", "F", false, "Show temperatures in °F")
	return cmd
}
