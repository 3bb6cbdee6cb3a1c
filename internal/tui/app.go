package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/brck/brckctl/internal/auth"
	"github.com/brck/brckctl/internal/brckapi"
	"github.com/brck/brckctl/internal/logging"
	"github.com/brck/brckctl/internal/workflow"
)

// Tabs lists the main views in tab order. The number keys jump to them.
var Tabs = []auth.Route{
	auth.RouteDashboard, auth.RouteSIM, auth.RouteEthernet, auth.RouteWiFi,
	auth.RoutePower, auth.RouteStorage, auth.RouteSoftware, auth.RouteDiagnostics,
}

var tabLabels = map[auth.Route]string{
	auth.RouteDashboard:   "Dashboard",
	auth.RouteSIM:         "SIM",
	auth.RouteEthernet:    "Ethernet",
	auth.RouteWiFi:        "Wi-Fi",
	auth.RoutePower:       "Power",
	auth.RouteStorage:     "Storage",
	auth.RouteSoftware:    "Software",
	auth.RouteDiagnostics: "Diagnostics",
}

var routeKinds = map[auth.Route]brckapi.Interface{
	auth.RouteSIM:      brckapi.SIM,
	auth.RouteEthernet: brckapi.Ethernet,
	auth.RouteWiFi:     brckapi.WiFi,
}

// routeMsg is sent by the navigator listener. The model always re-reads the
// navigator, so stale or reordered messages are harmless.
type routeMsg struct{}

// bootDoneMsg ends a boot check.
type bootDoneMsg struct {
	err error
}

// pushErrMsg reports a push channel failure.
type pushErrMsg struct {
	channel string
	err     error
}

// Model is the top-level dashboard model.
type Model struct {
	ctx  context.Context
	deps Deps

	route  auth.Route
	width  int
	height int

	login    authModel
	password authModel
	conn     map[brckapi.Interface]*connectivityModel
	status   *statusModel
	live     *live

	spinner  spinner.Model
	help     help.Model
	keys     globalKeyMap
	booting  bool
	footer   string
	quitting bool
}

// NewModel creates the dashboard model. Deps must carry a client and a gate.
func NewModel(ctx context.Context, deps Deps) Model {
	deps.defaults()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	m := Model{
		ctx:      ctx,
		deps:     deps,
		route:    deps.Gate.Navigator().Current(),
		width:    MinTerminalWidth,
		height:   24,
		login:    newLoginModel(deps.DefaultLogin),
		password: newPasswordModel(),
		conn:     make(map[brckapi.Interface]*connectivityModel),
		status:   newStatusModel(deps.Fahrenheit),
		live:     newLive(ctx, deps.Engines, deps.Dialer),
		spinner:  sp,
		help:     help.New(),
		keys:     newGlobalKeys(),
	}
	for kind, e := range deps.Engines {
		m.conn[kind] = newConnectivityModel(e)
	}
	return m
}

// Route returns the route being shown.
func (m Model) Route() auth.Route { return m.route }

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.enter(m.route))
}

// enter starts whatever the route needs when it becomes current.
func (m *Model) enter(route auth.Route) tea.Cmd {
	m.live.mount(route)
	switch {
	case route == auth.RouteBoot:
		if m.booting {
			return nil
		}
		m.booting = true
		ctx, gate, interval := m.ctx, m.deps.Gate, m.deps.BootInterval
		return func() tea.Msg { return bootDoneMsg{err: gate.Boot(ctx, interval)} }
	case route == auth.RouteLogin:
		m.login = newLoginModel(m.deps.DefaultLogin)
	case route == auth.RouteChangePassword:
		m.password = newPasswordModel()
	case routeKinds[route] != "":
		if c, ok := m.conn[routeKinds[route]]; ok {
			c.sync()
		}
	default:
		return loadCmd(m.ctx, m.deps.Client, route)
	}
	return nil
}

// navigate asks the gate for a route and switches to wherever it lands.
func (m *Model) navigate(route auth.Route) tea.Cmd {
	return m.show(m.deps.Gate.Navigator().Go(route))
}

func (m *Model) show(route auth.Route) tea.Cmd {
	if route == m.route {
		return nil
	}
	prev := m.route
	m.route = route
	m.footer = ""
	logging.Debug("Showing view", zap.String("from", string(prev)), zap.String("to", string(route)))

	if route == auth.RouteLogin && !m.deps.Gate.IsAuthenticated() {
		m.live.mount(route)
		for _, e := range m.deps.Engines {
			e.Reset()
		}
	}
	return m.enter(route)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case routeMsg:
		return m, m.show(m.deps.Gate.Navigator().Current())

	case bootDoneMsg:
		m.booting = false
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.footer = msg.err.Error()
		}
		return m, m.show(m.deps.Gate.Navigator().Current())

	case authDoneMsg:
		// Success already navigated; failures are shown from the gate.
		return m, m.show(m.deps.Gate.Navigator().Current())

	case engineMsg:
		if c, ok := m.conn[msg.kind]; ok {
			c.sync()
		}
		return m, nil

	case writeDoneMsg:
		if c, ok := m.conn[msg.kind]; ok {
			c.sync()
		}
		if msg.err != nil && !errors.Is(msg.err, workflow.ErrStale) && !errors.Is(msg.err, workflow.ErrSelectionChanged) {
			logging.Debug("Write finished with error", zap.String("kind", string(msg.kind)), zap.Error(msg.err))
		}
		return m, nil

	case loadedMsg:
		m.status.apply(msg)
		return m, nil

	case systemMsg:
		m.status.system = msg.status
		m.status.updated[auth.RouteDashboard] = time.Now()
		return m, nil

	case diagnosticsMsg:
		m.status.diagnostics = msg.diag
		m.status.updated[auth.RouteDiagnostics] = time.Now()
		return m, nil

	case pushErrMsg:
		m.footer = "live updates (" + msg.channel + "): " + msg.err.Error()
		return m, nil

	case statusMsg:
		m.footer = msg.text
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.route {
	case auth.RouteLogin:
		var cmd tea.Cmd
		m.login, cmd = m.login.update(m.ctx, m.deps.Gate, msg)
		return m, cmd
	case auth.RouteChangePassword:
		if msg.String() == "esc" && !m.deps.Gate.RequiresPasswordChange() {
			return m, m.navigate(auth.RouteDashboard)
		}
		var cmd tea.Cmd
		m.password, cmd = m.password.update(m.ctx, m.deps.Gate, msg)
		return m, cmd
	case auth.RouteBoot:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	conn := m.conn[routeKinds[m.route]]
	if conn != nil && conn.editing() {
		return m, conn.update(m.ctx, msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Next):
		return m, m.navigate(m.tab(1))
	case key.Matches(msg, m.keys.Prev):
		return m, m.navigate(m.tab(-1))
	case key.Matches(msg, m.keys.Jump):
		i := int(msg.String()[0] - '1')
		return m, m.navigate(Tabs[i])
	case key.Matches(msg, m.keys.Logout):
		m.deps.Gate.Logout()
		return m, m.show(m.deps.Gate.Navigator().Current())
	case key.Matches(msg, m.keys.Password):
		return m, m.navigate(auth.RouteChangePassword)
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refresh()
	case msg.String() == "t" && m.route == auth.RouteDiagnostics:
		m.status.fahrenheit = !m.status.fahrenheit
		return m, nil
	}

	if conn != nil {
		return m, conn.update(m.ctx, msg)
	}
	return m, nil
}

func (m Model) tab(delta int) auth.Route {
	for i, r := range Tabs {
		if r == m.route {
			return Tabs[(i+delta+len(Tabs))%len(Tabs)]
		}
	}
	return auth.RouteDashboard
}

func (m Model) refresh() tea.Cmd {
	if kind, ok := routeKinds[m.route]; ok {
		e := m.deps.Engines[kind]
		if e == nil {
			return nil
		}
		ctx := m.ctx
		return func() tea.Msg {
			err := e.Refresh(ctx)
			if err != nil && !errors.Is(err, workflow.ErrRefreshInFlight) {
				return statusMsg{text: "refresh failed: " + brckapi.GetShortErrorMessage(err)}
			}
			return engineMsg{kind: kind}
		}
	}
	return loadCmd(m.ctx, m.deps.Client, m.route)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	sp := m.spinner.View()

	var content, footer string
	tabs := ""
	switch m.route {
	case auth.RouteBoot:
		content = RenderTitle("Waiting for the SupaBRCK") + "\n" +
			sp + " Trying " + m.deps.Client.BaseURL + "\n\n" +
			SubtitleStyle.Render("Check that you are connected to the SupaBRCK network.")
		footer = "q quit"
	case auth.RouteLogin:
		content = m.login.view(m.deps.Gate, sp)
		footer = m.help.View(m.login.keys)
	case auth.RouteChangePassword:
		content = m.password.view(m.deps.Gate, sp)
		footer = m.help.View(m.password.keys)
	default:
		tabs = m.renderTabs()
		if c := m.conn[routeKinds[m.route]]; c != nil {
			content = c.view(m.width, sp)
			if c.editing() {
				footer = m.help.View(c.formKeys)
			} else {
				footer = m.help.View(c.keys) + "\n" + m.help.View(m.keys)
			}
		} else {
			content = m.status.view(m.route, sp)
			footer = m.help.View(m.keys)
		}
	}
	if m.footer != "" {
		footer = WarnStyle.Render(m.footer) + "\n" + footer
	}
	return RenderApplicationContainer(tabs, content, footer, m.width, m.height)
}

func (m Model) renderTabs() string {
	parts := make([]string, 0, len(Tabs))
	for i, r := range Tabs {
		label := strings.Join([]string{string(rune('1' + i)), tabLabels[r]}, " ")
		if r == m.route {
			parts = append(parts, ActiveTabStyle.Render(label))
		} else {
			parts = append(parts, TabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}
