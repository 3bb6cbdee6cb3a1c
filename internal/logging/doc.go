// Package logging provides structured logging for brckctl.
//
// It wraps a global zap logger with helpers for the events the client cares
// about: appliance HTTP round trips, push channel traffic and connection
// state changes.
//
// Logging is silent unless a level is given, either through Initialize or the
// BRCK_LOG_LEVEL environment variable. Output goes to stderr so that
// machine-readable command output on stdout stays clean.
//
//	if err := logging.Initialize("debug"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
//	logging.Info("Slot configured",
//	    zap.String("kind", "sim"),
//	    zap.String("slot", "SIM1"),
//	)
//
// All functions are safe for concurrent use.
package logging
