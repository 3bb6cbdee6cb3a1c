package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brck/brckctl/internal/auth"
	"github.com/brck/brckctl/internal/brckapi"
	"github.com/brck/brckctl/internal/config"
	"github.com/brck/brckctl/internal/discovery"
	"github.com/brck/brckctl/internal/logging"
	"github.com/brck/brckctl/internal/session"
	"github.com/brck/brckctl/internal/ui"
)

// Output formats
const (
	formatText    = "text"
	formatCompact = "compact"
	formatJSON    = "json"
)

// newScanner is replaced in tests.
var newScanner = discovery.NewScanner

// appliance bundles what a command needs to reach the BRCK.
type appliance struct {
	settings *config.Settings
	client   *brckapi.Client
	store    session.Store
	out      *ui.Printer
	w        io.Writer
	errw     io.Writer
}

// openAppliance resolves the API URL (flag, then BRCK_URL, then the config
// file) and opens the saved session. When the URL came from the config file
// and does not answer, it falls back to mDNS discovery.
func openAppliance(cmd *cobra.Command) (*appliance, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}
	settings.ApplyEnv()
	explicit := applianceURL != "" || os.Getenv(config.EnvURL) != ""
	if applianceURL != "" {
		settings.Appliance.URL = applianceURL
	}

	store, err := session.OpenDefault()
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	client := brckapi.NewClient(settings.Appliance.URL, store)
	client.SetTimeouts(settings.Appliance.ReadTimeout, settings.Appliance.WriteTimeout)
	if timeout > 0 {
		client.SetTimeouts(timeout, timeout)
	}

	a := &appliance{
		settings: settings,
		client:   client,
		store:    store,
		out:      newPrinter(cmd.OutOrStdout()),
		w:        cmd.OutOrStdout(),
		errw:     cmd.ErrOrStderr(),
	}
	if !explicit && settings.Preferences.AutoDiscover {
		if err := a.discoverIfUnreachable(cmd.Context()); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func newPrinter(w io.Writer) *ui.Printer {
	p := ui.NewPrinter(w)
	if f, ok := w.(*os.File); !ok || !ui.IsTerminal(f) {
		p.SetWidth(ui.MaxContentWidth)
	}
	return p
}

func (a *appliance) discoverIfUnreachable(ctx context.Context) error {
	err := a.client.Ping(ctx)
	if err == nil || !brckapi.IsUnreachable(err) {
		return nil
	}

	fmt.Fprintf(a.errw, "%s is not answering, searching the local network...\n", a.client.BaseURL)
	scanner := newScanner()
	scanner.Timeout = time.Duration(a.settings.Preferences.DiscoverTimeout) * time.Second
	found, ferr := scanner.Find(ctx)
	if errors.Is(ferr, discovery.ErrNotFound) {
		return failed("Appliance not reachable", err)
	}
	if ferr != nil {
		return failed("Discovery failed", ferr)
	}

	fmt.Fprintf(a.errw, "Found %s\n\n", found)
	a.useURL(found.APIURL())
	a.settings.RememberHost(found.Hostname, found.APIURL(), found.DiscoveredAt)
	if err := a.settings.Save(); err != nil {
		logging.Warn("Could not record discovered appliance", zap.Error(err))
	}
	return nil
}

func (a *appliance) useURL(u string) {
	a.settings.Appliance.URL = u
	a.client.BaseURL = strings.TrimRight(u, "/")
}

// gate returns an auth gate over the saved session, wired to the client.
func (a *appliance) gate(start auth.Route) *auth.Gate {
	g := auth.NewGate(a.client, a.store, start)
	g.Attach(a.client)
	return g
}

// requireSession checks that route is reachable with the saved session.
func (a *appliance) requireSession(route auth.Route) error {
	switch a.gate(auth.RouteLogin).Resolve(route) {
	case auth.RouteLogin:
		return failed("Not logged in", errors.New("run 'brckctl login' first"))
	case auth.RouteChangePassword:
		return failed("Password change required",
			errors.New("the appliance still uses its factory password; run 'brckctl passwd' first"))
	}
	return nil
}

// render prints v as JSON, or as the text from detailed (compact when given
// and --format compact).
func (a *appliance) render(title string, v any, detailed func() string, compact func() string) error {
	switch outputFormat {
	case formatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(a.w, string(data))
		return err
	case formatCompact:
		if compact != nil {
			_, err := fmt.Fprintln(a.w, compact())
			return err
		}
		fallthrough
	default:
		a.out.PrintSection(title, detailed())
		return nil
	}
}

// quiet reports whether decoration (headers, success boxes) is suppressed.
func quiet() bool {
	return outputFormat == formatJSON
}

// parseAssignments splits --set name=value pairs.
func parseAssignments(pairs []string) (map[string]string, []string, error) {
	values := make(map[string]string, len(pairs))
	order := make([]string, 0, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, nil, fmt.Errorf("invalid --set %q (want name=value)", p)
		}
		if _, dup := values[name]; !dup {
			order = append(order, name)
		}
		values[name] = value
	}
	return values, order, nil
}
