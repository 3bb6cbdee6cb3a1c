// Package ui renders the brckctl command output.
//
// Commands print through a Printer, which draws lipgloss boxes sized to the
// terminal: a header naming the command and its target, then a success,
// warning or failure result. Failures built from API errors carry the short
// message and the troubleshooting tips from package brckapi.
//
//	p := ui.NewPrinter(cmd.OutOrStdout())
//	p.PrintHeader("SIM", "brckctl sim connect SIM2", ui.Detail{Key: "Appliance", Value: url})
//	if err != nil {
//	    p.PrintFailure("Connect failed", err)
//	    return err
//	}
//	p.PrintSuccess("Connected", ui.Detail{Key: "Slot", Value: "SIM2"})
//
// Output is meant for people. Scripts should use --format json, which
// bypasses this package.
//
// zap logging is silent unless BRCK_LOG_LEVEL or --log-level is set, so log
// lines never interleave with the boxes by default.
package ui
