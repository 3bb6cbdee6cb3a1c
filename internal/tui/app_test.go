package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brck/brckctl/internal/auth"
	"github.com/brck/brckctl/internal/brckapi"
	"github.com/brck/brckctl/internal/push"
	"github.com/brck/brckctl/internal/session"
	"github.com/brck/brckctl/internal/testutil/fakebrck"
	"github.com/brck/brckctl/internal/workflow"
)

type harness struct {
	fake *fakebrck.Appliance
	gate *auth.Gate
	sim  *workflow.Engine
}

func newTestModel(t *testing.T, loggedIn bool) (Model, *harness) {
	t.Helper()
	ctx := context.Background()

	fake := fakebrck.Start(t)
	client := brckapi.NewClient(fake.URL(), session.NewMemoryStore())
	gate := auth.NewGate(client, client.Session(), auth.RouteLogin)
	gate.Attach(client)
	sim := workflow.NewEngine(brckapi.SIM, client)

	if loggedIn {
		if err := gate.Login(ctx, fakebrck.DefaultLogin, fakebrck.DefaultPassword); err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		if err := sim.Refresh(ctx); err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
	}

	m := NewModel(ctx, Deps{
		Client:       client,
		Gate:         gate,
		Engines:      map[brckapi.Interface]*workflow.Engine{brckapi.SIM: sim},
		DefaultLogin: fakebrck.DefaultLogin,
	})
	t.Cleanup(m.live.close)
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, &harness{fake: fake, gate: gate, sim: sim}
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

// press sends one key and returns the command it produced.
func press(t *testing.T, m Model, k string) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(keyMsg(k))
	return next.(Model), cmd
}

// typeText sends s one rune at a time. Cursor blink commands are dropped.
func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	for _, r := range s {
		m, _ = press(t, m, string(r))
	}
	return m
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command, got nil")
	}
	return update(t, m, cmd())
}

func TestLoginFlow(t *testing.T) {
	m, _ := newTestModel(t, false)
	if m.Route() != auth.RouteLogin {
		t.Fatalf("Route() = %v, want %v", m.Route(), auth.RouteLogin)
	}
	if !strings.Contains(m.View(), "Log in to your SupaBRCK") {
		t.Error("login view is missing its title")
	}

	m = typeText(t, m, fakebrck.DefaultPassword)
	m, cmd := press(t, m, "enter")
	m = run(t, m, cmd)
	if m.Route() != auth.RouteDashboard {
		t.Fatalf("Route() = %v, want %v", m.Route(), auth.RouteDashboard)
	}

	m, cmd = press(t, m, "r")
	m = run(t, m, cmd)
	view := m.View()
	for _, want := range []string{"Dashboard", "Battery", "Storage"} {
		if !strings.Contains(view, want) {
			t.Errorf("dashboard view missing %q", want)
		}
	}
}

func TestLoginShowsError(t *testing.T) {
	m, h := newTestModel(t, false)

	m = typeText(t, m, "wrong")
	m, cmd := press(t, m, "enter")
	m = run(t, m, cmd)
	if m.Route() != auth.RouteLogin {
		t.Errorf("Route() = %v, want %v", m.Route(), auth.RouteLogin)
	}
	if h.gate.IsAuthenticated() {
		t.Error("IsAuthenticated() = true after a bad password")
	}
	if !strings.Contains(m.View(), "Invalid credentials") {
		t.Error("view does not show the login error")
	}
}

func TestNumberKeysJumpToTabs(t *testing.T) {
	m, _ := newTestModel(t, true)

	tests := []struct {
		key  string
		want auth.Route
	}{
		{"2", auth.RouteSIM},
		{"5", auth.RoutePower},
		{"8", auth.RouteDiagnostics},
		{"1", auth.RouteDashboard},
	}
	for _, tt := range tests {
		m, _ = press(t, m, tt.key)
		if m.Route() != tt.want {
			t.Errorf("after %q Route() = %v, want %v", tt.key, m.Route(), tt.want)
		}
	}

	m, _ = press(t, m, "right")
	if m.Route() != auth.RouteSIM {
		t.Errorf("after right Route() = %v, want %v", m.Route(), auth.RouteSIM)
	}
}

func TestStatusViewLoads(t *testing.T) {
	m, _ := newTestModel(t, true)

	m, cmd := press(t, m, "7")
	if m.Route() != auth.RouteSoftware {
		t.Fatalf("Route() = %v, want %v", m.Route(), auth.RouteSoftware)
	}
	m = run(t, m, cmd)
	if !strings.Contains(m.View(), "brck-local-api") {
		t.Error("software view does not list installed packages")
	}
}

func TestConfigureSIMFromTheDashboard(t *testing.T) {
	m, h := newTestModel(t, true)

	m, _ = press(t, m, "2")
	if !strings.Contains(m.View(), "SIM 2") {
		t.Error("SIM view does not show the SIM 2 card")
	}

	m, _ = press(t, m, "c")
	if got := h.sim.Snapshot().Dialog; got != workflow.DialogConfigure {
		t.Fatalf("Dialog = %v, want %v", got, workflow.DialogConfigure)
	}
	m = typeText(t, m, "-data")
	if got := h.sim.Snapshot().Fields["apn"]; got.Value != "safaricom-data" || !got.Edited {
		t.Errorf("apn field = %+v, want edited safaricom-data", got)
	}

	m, cmd := press(t, m, "enter")
	m = run(t, m, cmd)

	body := h.fake.LastBody("PATCH", "/networks/sim/SIM1")
	cfg, _ := body["configuration"].(map[string]any)
	nw, _ := cfg["network"].(map[string]any)
	if nw["apn"] != "safaricom-data" {
		t.Errorf("network = %v, want apn safaricom-data", nw)
	}
	if _, ok := nw["username"]; ok {
		t.Errorf("network = %v, want the unedited username omitted", nw)
	}
	if got := h.sim.Snapshot().Dialog; got != workflow.DialogNone {
		t.Errorf("Dialog = %v after a successful configure, want none", got)
	}
	if m.conn[brckapi.SIM].editing() {
		t.Error("form still has focus after the dialog closed")
	}
}

func TestUnlockLockedSIM(t *testing.T) {
	m, h := newTestModel(t, true)
	h.fake.UpdateSlot(brckapi.SIM, "SIM2", func(s *brckapi.Slot) {
		s.Info.(*brckapi.SIMInfo).PinLocked = true
	})
	if err := h.sim.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	m, _ = press(t, m, "2")
	m, _ = press(t, m, "down")
	m, _ = press(t, m, "enter")
	if got := h.sim.Snapshot().Dialog; got != workflow.DialogUnlock {
		t.Fatalf("Dialog = %v, want %v", got, workflow.DialogUnlock)
	}

	m = typeText(t, m, fakebrck.PIN)
	m, cmd := press(t, m, "enter")
	_ = run(t, m, cmd)

	body := h.fake.LastBody("PATCH", "/networks/sim/SIM2")
	cfg, _ := body["configuration"].(map[string]any)
	if cfg["pin"] != fakebrck.PIN {
		t.Errorf("configuration = %v, want pin %s", cfg, fakebrck.PIN)
	}
}

func TestAPNPromptDuringConnect(t *testing.T) {
	m, h := newTestModel(t, true)

	m, _ = press(t, m, "2")
	m, _ = press(t, m, "down")
	m, _ = press(t, m, "enter")
	if got := h.sim.Snapshot().Dialog; got != workflow.DialogConnect {
		t.Fatalf("Dialog = %v, want %v", got, workflow.DialogConnect)
	}
	m, cmd := press(t, m, "enter")
	m = run(t, m, cmd)

	h.sim.OnConnectionEvent(push.ConnectionEvent{Event: push.RequiresAPN})
	m = update(t, m, engineMsg{kind: brckapi.SIM})
	if !strings.Contains(m.View(), "The SIM needs an APN") {
		t.Error("view does not ask for the APN")
	}
	if !m.conn[brckapi.SIM].editing() {
		t.Fatal("APN input does not have focus")
	}

	m = typeText(t, m, "internet")
	m, cmd = press(t, m, "enter")
	_ = run(t, m, cmd)

	body := h.fake.LastBody("PATCH", "/networks/sim/SIM2")
	cfg, _ := body["configuration"].(map[string]any)
	nw, _ := cfg["network"].(map[string]any)
	if nw["apn"] != "internet" {
		t.Errorf("network = %v, want apn internet", nw)
	}
	if _, ok := nw["username"]; ok {
		t.Errorf("network = %v, want the empty username omitted", nw)
	}
	if got := h.sim.Snapshot().Dialog; got != workflow.DialogConnect {
		t.Errorf("Dialog = %v, want the connect flow kept open", got)
	}
}

func TestEscClosesDialog(t *testing.T) {
	m, h := newTestModel(t, true)

	m, _ = press(t, m, "2")
	m, _ = press(t, m, "c")
	m, _ = press(t, m, "esc")
	if got := h.sim.Snapshot().Dialog; got != workflow.DialogNone {
		t.Errorf("Dialog = %v, want none", got)
	}
	if m.Route() != auth.RouteSIM {
		t.Errorf("Route() = %v, want %v", m.Route(), auth.RouteSIM)
	}
}

func TestSessionExpiryReturnsToLogin(t *testing.T) {
	m, h := newTestModel(t, true)

	h.fake.ExpireSessions()
	m, cmd := press(t, m, "r")
	m = run(t, m, cmd)
	m = update(t, m, routeMsg{})

	if m.Route() != auth.RouteLogin {
		t.Fatalf("Route() = %v, want %v", m.Route(), auth.RouteLogin)
	}
	if s := h.sim.Snapshot(); s.Loaded || len(s.Slots) != 0 {
		t.Errorf("SIM engine kept %d slots after the session expired", len(s.Slots))
	}
}

func TestLogoutKey(t *testing.T) {
	m, h := newTestModel(t, true)

	m, _ = press(t, m, "L")
	if m.Route() != auth.RouteLogin {
		t.Errorf("Route() = %v, want %v", m.Route(), auth.RouteLogin)
	}
	if h.gate.IsAuthenticated() {
		t.Error("IsAuthenticated() = true after logout")
	}
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel(t, true)

	m, cmd := press(t, m, "q")
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
	if m.View() != "" {
		t.Error("View() not empty after quitting")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOnlyTheShownTabPollsAndListens(t *testing.T) {
	ctx := context.Background()
	fake := fakebrck.Start(t)
	client := brckapi.NewClient(fake.URL(), session.NewMemoryStore())
	gate := auth.NewGate(client, client.Session(), auth.RouteLogin)
	gate.Attach(client)
	engines := map[brckapi.Interface]*workflow.Engine{
		brckapi.SIM:      workflow.NewEngine(brckapi.SIM, client, workflow.WithPollInterval(20*time.Millisecond)),
		brckapi.Ethernet: workflow.NewEngine(brckapi.Ethernet, client, workflow.WithPollInterval(20*time.Millisecond)),
	}
	m := NewModel(ctx, Deps{
		Client:       client,
		Gate:         gate,
		Engines:      engines,
		Dialer:       push.NewDialer(fake.PushURL(), client.Session()),
		DefaultLogin: fakebrck.DefaultLogin,
	})
	t.Cleanup(m.live.close)
	_ = m.Init()

	// Nothing runs behind the login screen.
	time.Sleep(60 * time.Millisecond)
	if got := fake.Count("GET", "/networks/sim/") + fake.Count("GET", "/networks/ethernet/"); got != 0 {
		t.Errorf("GET /networks count before login = %d, want 0", got)
	}
	for _, ch := range push.Channels {
		if got := fake.Dials(ch); got != 0 {
			t.Errorf("Dials(%s) before login = %d, want 0", ch, got)
		}
	}

	if err := gate.Login(ctx, fakebrck.DefaultLogin, fakebrck.DefaultPassword); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	m = update(t, m, routeMsg{})
	if m.Route() != auth.RouteDashboard {
		t.Fatalf("Route() = %v, want %v", m.Route(), auth.RouteDashboard)
	}
	if !fake.WaitSubscribers(push.ChannelDashboard, 1, 2*time.Second) {
		t.Fatal("dashboard channel never opened")
	}

	m, _ = press(t, m, "2")
	waitFor(t, "SIM polls", func() bool { return fake.Count("GET", "/networks/sim/") >= 2 })
	if !fake.WaitSubscribers(push.ChannelSIM, 1, 2*time.Second) {
		t.Fatal("sim-connectivity channel never opened")
	}
	if !fake.WaitSubscribers(push.ChannelDashboard, 0, 2*time.Second) {
		t.Error("dashboard channel still open on the SIM tab")
	}
	if got := fake.Count("GET", "/networks/ethernet/"); got != 0 {
		t.Errorf("GET /networks/ethernet/ count on the SIM tab = %d, want 0", got)
	}

	m, _ = press(t, m, "3")
	if m.Route() != auth.RouteEthernet {
		t.Fatalf("Route() = %v, want %v", m.Route(), auth.RouteEthernet)
	}
	if !fake.WaitSubscribers(push.ChannelSIM, 0, 2*time.Second) {
		t.Error("sim-connectivity channel still open after leaving the SIM tab")
	}
	waitFor(t, "Ethernet polls", func() bool { return fake.Count("GET", "/networks/ethernet/") >= 2 })

	time.Sleep(20 * time.Millisecond)
	left := fake.Count("GET", "/networks/sim/")
	time.Sleep(100 * time.Millisecond)
	if got := fake.Count("GET", "/networks/sim/"); got != left {
		t.Errorf("GET /networks/sim/ count after leaving = %d, want %d", got, left)
	}
}
