package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/brck/brckctl/internal/auth"
	"github.com/brck/brckctl/internal/brckapi"
)

// loadedMsg carries the result of a status fetch.
type loadedMsg struct {
	route auth.Route
	value any
	err   error
}

// systemMsg is a /dashboard push update.
type systemMsg struct {
	status *brckapi.SystemStatus
}

// diagnosticsMsg is a /diagnostics push update.
type diagnosticsMsg struct {
	diag *brckapi.Diagnostics
}

// statusModel holds the read-only views.
type statusModel struct {
	system      *brckapi.SystemStatus
	deviceMode  *brckapi.DeviceMode
	software    *brckapi.SoftwareState
	diagnostics *brckapi.Diagnostics
	power       *brckapi.PowerConfig
	storage     *brckapi.StorageState

	fahrenheit bool
	errs       map[auth.Route]error
	updated    map[auth.Route]time.Time
	gauge      progress.Model
}

func newStatusModel(fahrenheit bool) *statusModel {
	return &statusModel{
		fahrenheit: fahrenheit,
		errs:       make(map[auth.Route]error),
		updated:    make(map[auth.Route]time.Time),
		gauge:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
	}
}

// loadCmd fetches the data behind a status route.
func loadCmd(ctx context.Context, client *brckapi.Client, route auth.Route) tea.Cmd {
	fetch := func() (any, error) {
		switch route {
		case auth.RouteDashboard:
			sys, err := client.System(ctx)
			if err != nil {
				return nil, err
			}
			// Device mode is best effort; the dashboard works without it.
			mode, _ := client.DeviceMode(ctx)
			return dashboardData{sys, mode}, nil
		case auth.RouteSoftware:
			return client.Software(ctx)
		case auth.RouteDiagnostics:
			return client.Diagnostics(ctx)
		case auth.RoutePower:
			return client.Power(ctx)
		case auth.RouteStorage:
			return client.Storage(ctx)
		}
		return nil, nil
	}
	return func() tea.Msg {
		v, err := fetch()
		return loadedMsg{route: route, value: v, err: err}
	}
}

type dashboardData struct {
	system *brckapi.SystemStatus
	mode   *brckapi.DeviceMode
}

func (m *statusModel) apply(msg loadedMsg) {
	if msg.err != nil {
		m.errs[msg.route] = msg.err
		return
	}
	delete(m.errs, msg.route)
	m.updated[msg.route] = time.Now()
	switch v := msg.value.(type) {
	case dashboardData:
		m.system, m.deviceMode = v.system, v.mode
	case *brckapi.SoftwareState:
		m.software = v
	case *brckapi.Diagnostics:
		m.diagnostics = v
	case *brckapi.PowerConfig:
		m.power = v
	case *brckapi.StorageState:
		m.storage = v
	}
}

func (m *statusModel) view(route auth.Route, spinner string) string {
	var b strings.Builder
	var body string
	loading := false

	switch route {
	case auth.RouteDashboard:
		b.WriteString(RenderTitle("Dashboard"))
		if m.system == nil {
			loading = true
		} else {
			body = m.dashboardView()
		}
	case auth.RouteSoftware:
		b.WriteString(RenderTitle("Software"))
		if m.software == nil {
			loading = true
		} else {
			body = m.software.FormatDetailed()
		}
	case auth.RouteDiagnostics:
		b.WriteString(RenderTitle("Diagnostics"))
		if m.diagnostics == nil {
			loading = true
		} else {
			body = m.diagnostics.FormatDetailed(m.fahrenheit) + "\n" + SubtitleStyle.Render("t toggles °C/°F")
		}
	case auth.RoutePower:
		b.WriteString(RenderTitle("Power"))
		if m.power == nil {
			loading = true
		} else {
			body = m.power.FormatDetailed() + "\n" + SubtitleStyle.Render("Change with: brckctl power set")
		}
	case auth.RouteStorage:
		b.WriteString(RenderTitle("Storage"))
		if m.storage == nil {
			loading = true
		} else {
			body = m.gaugeLine("Used", m.storage.Storage.UsedPercent()/100) + "\n\n" + m.storage.FormatDetailed()
		}
	}
	b.WriteString("\n")

	if err := m.errs[route]; err != nil {
		b.WriteString(ErrorBoxStyle.Render(brckapi.GetShortErrorMessage(err)))
		b.WriteString("\n\n")
	}
	if loading {
		b.WriteString(spinner + " Loading...")
		return b.String()
	}
	b.WriteString(indent(body, "  "))
	if t, ok := m.updated[route]; ok {
		b.WriteString("\n\n" + SubtitleStyle.Render("Updated "+t.Format("15:04:05")))
	}
	return b.String()
}

func (m *statusModel) dashboardView() string {
	s := m.system
	var b strings.Builder

	if level, err := strconv.ParseFloat(s.Battery.BatteryLevel.String(), 64); err == nil {
		b.WriteString(m.gaugeLine("Battery", level/100))
		b.WriteString("\n")
	}
	b.WriteString(m.gaugeLine("Storage", s.Storage.UsedPercent()/100))
	b.WriteString("\n\n")
	b.WriteString(s.FormatDetailed())

	if m.deviceMode != nil && m.deviceMode.Retail() {
		b.WriteString("\n")
		link := m.deviceMode.SetupLink
		if link == "" {
			link = "the BRCK cloud dashboard"
		}
		b.WriteString(WarnStyle.Render(fmt.Sprintf("Retail mode: finish setup at %s", link)))
	}
	return b.String()
}

func (m *statusModel) gaugeLine(label string, fraction float64) string {
	fraction = min(max(fraction, 0), 1)
	return LabelStyle.Render(label) + m.gauge.ViewAs(fraction)
}
