package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/brck/brckctl/internal/config"
	"github.com/brck/brckctl/internal/ui"
)

func newScanCmd() *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for SupaBRCK appliances on the network",
		Long: `Scan for SupaBRCK appliances using mDNS/DNS-SD discovery.

Every appliance found is recorded in the config file. With --save, the
appliance becomes the default for later commands (only when exactly one
answered).`,
		Example: `  # Scan for 5 seconds (default)
  brckctl scan

  # Longer scan, then use the appliance found
  brckctl scan --timeout 15s --save`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}
			wait := timeout
			if wait <= 0 {
				wait = time.Duration(settings.Preferences.DiscoverTimeout) * time.Second
			}

			p := newPrinter(cmd.OutOrStdout())
			if !quiet() {
				p.PrintHeader("Discovery", "brckctl scan",
					ui.Detail{Key: "Timeout", Value: wait.String()})
			}

			scanner := newScanner()
			scanner.Timeout = wait
			found, err := scanner.Scan(cmd.Context())
			if err != nil {
				return failed("Scan failed", err)
			}

			if outputFormat == formatJSON {
				data, err := json.MarshalIndent(found, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal JSON: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			} else if len(found) == 0 {
				r := ui.NewWarningResult("No appliances found")
				r.Width = ui.MaxContentWidth
				r.Troubleshooting = []string{
					"Ensure the SupaBRCK is powered on",
					"Verify your computer is connected to the SupaBRCK Wi-Fi",
					"Try increasing --timeout for slower networks",
					"Use --url to specify the appliance address manually",
				}
				p.Println(r.Render())
				return nil
			}

			for i, a := range found {
				settings.RememberHost(a.Hostname, a.APIURL(), a.DiscoveredAt)
				if quiet() {
					continue
				}
				details := []ui.Detail{
					{Key: "API", Value: a.APIURL()},
					{Key: "Address", Value: fmt.Sprintf("%s:%d", a.IP, a.Port)},
				}
				if a.Serial != "" {
					details = append(details, ui.Detail{Key: "Serial", Value: a.Serial})
				}
				p.PrintSection(fmt.Sprintf("%d. %s", i+1, a.Hostname), renderPairs(details))
				p.Newline()
			}

			if save {
				if len(found) != 1 {
					return failed("Not saved", fmt.Errorf("%d appliances answered; use --url to pick one", len(found)))
				}
				settings.Appliance.URL = found[0].APIURL()
			}
			if err := settings.Save(); err != nil {
				return failed("Could not save config", err)
			}
			if save && !quiet() {
				p.PrintSuccess("Default appliance saved", ui.Detail{Key: "URL", Value: settings.Appliance.URL})
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Use the appliance found as the default")
	return cmd
}

// renderPairs formats key/value rows for PrintSection.
func renderPairs(details []ui.Detail) string {
	var out string
	for _, d := range details {
		out += fmt.Sprintf("%-10s %s\n", d.Key+":", d.Value)
	}
	return out
}
