// Brckctl configures and monitors a SupaBRCK appliance from the terminal.
//
// It talks to the appliance's local REST and push API. It can log in, show
// system, software and diagnostics state, change power and storage settings,
// and configure and connect the SIM, Ethernet and Wi-Fi interfaces.
//
// Usage:
//
//	brckctl [command] [flags]
//
// Running without arguments launches the interactive dashboard.
// See 'brckctl --help' for available commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/brck/brckctl/internal/brckapi"
	"github.com/brck/brckctl/internal/config"
	"github.com/brck/brckctl/internal/logging"
	"github.com/brck/brckctl/internal/ui"
	"github.com/brck/brckctl/internal/version"
)

// Global flags
var (
	applianceURL string
	outputFormat string
	logLevel     string
	timeout      time.Duration
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()
	if err != nil {
		report(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "brckctl",
	Short: "SupaBRCK configuration utility",
	Long: `A terminal client for the SupaBRCK local API.

Shows system status and diagnostics, changes power and storage settings, and
configures the SIM, Ethernet and Wi-Fi connections.

If no command is specified, the interactive dashboard will launch.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Initialize(logLevel); err != nil {
			return err
		}
		switch outputFormat {
		case formatText, formatCompact, formatJSON:
			return nil
		}
		return fmt.Errorf("invalid --format %q (want text, compact or json)", outputFormat)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDashboard(cmd, args)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&applianceURL, "url", "", "Appliance API URL (default from config, then "+config.DefaultURL+")")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", formatText, "Output format (text, compact, json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); logs go to stderr")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Request timeout, or scan time for scan (default from config)")

	rootCmd.AddCommand(
		newScanCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newPasswdCmd(),
		newStatusCmd(),
		newSoftwareCmd(),
		newDiagnosticsCmd(),
		newPowerCmd(),
		newStorageCmd(),
		newInterfaceCmd(brckapi.SIM),
		newInterfaceCmd(brckapi.Ethernet),
		newInterfaceCmd(brckapi.WiFi),
		newWatchCmd(),
		newDashboardCmd(),
		newVersionCmd(),
	)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "brckctl %s\n", version.Full())
		},
	}
}

// commandError carries the title of the failure box printed for err.
type commandError struct {
	title string
	err   error
}

func (e *commandError) Error() string { return e.title + ": " + e.err.Error() }
func (e *commandError) Unwrap() error { return e.err }

func failed(title string, err error) error {
	if err == nil {
		return nil
	}
	return &commandError{title: title, err: err}
}

// report prints err as a failure box when a command titled it, and as a
// plain line otherwise (flag and argument errors).
func report(w *os.File, err error) {
	var ce *commandError
	if errors.As(err, &ce) {
		p := ui.NewPrinter(w)
		if !ui.IsTerminal(w) {
			p.SetWidth(ui.MaxContentWidth)
		}
		p.PrintFailure(ce.title, ce.err)
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
