package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brck/brckctl/internal/brckapi"
	"github.com/brck/brckctl/internal/session"
	"github.com/brck/brckctl/internal/testutil/fakebrck"
)

type recorder struct {
	mu     sync.Mutex
	routes []Route
}

func (r *recorder) record(route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
}

func (r *recorder) count(route Route) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.routes {
		if got == route {
			n++
		}
	}
	return n
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.routes)
}

func newGate(t *testing.T, opts ...fakebrck.Option) (*Gate, *brckapi.Client, *fakebrck.Appliance, *recorder) {
	t.Helper()
	fake := fakebrck.Start(t, opts...)
	client := brckapi.NewClient(fake.URL(), session.NewMemoryStore())
	g := NewGate(client, client.Session(), RouteLogin)
	g.Attach(client)
	rec := &recorder{}
	t.Cleanup(g.Navigator().Listen(rec.record))
	return g, client, fake, rec
}

func TestLoginStoresSessionAndNavigates(t *testing.T) {
	g, _, _, _ := newGate(t)

	if err := g.Login(context.Background(), fakebrck.DefaultLogin, fakebrck.DefaultPassword); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !g.IsAuthenticated() {
		t.Error("IsAuthenticated() = false after Login")
	}
	if g.RequiresPasswordChange() {
		t.Error("RequiresPasswordChange() = true, want false")
	}
	if got := g.Navigator().Current(); got != RouteDashboard {
		t.Errorf("Current() = %v, want %v", got, RouteDashboard)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	g, client, _, rec := newGate(t)

	err := g.Login(context.Background(), fakebrck.DefaultLogin, "wrong")
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("Login() error = %v, want *AuthError", err)
	}
	if ae.Message != "Invalid credentials" {
		t.Errorf("Message = %q, want %q", ae.Message, "Invalid credentials")
	}
	if g.LastError() == nil || g.LastError().Message != "Invalid credentials" {
		t.Errorf("LastError() = %v", g.LastError())
	}
	if g.Working() {
		t.Error("Working() = true after a failed login")
	}
	if _, ok := client.Session().Load(); ok {
		t.Error("session stored after a failed login")
	}
	if rec.len() != 0 {
		t.Errorf("navigations = %v, want none", rec.routes)
	}
	if got := g.Navigator().Current(); got != RouteLogin {
		t.Errorf("Current() = %v, want %v", got, RouteLogin)
	}
}

func TestLoginRequiresFields(t *testing.T) {
	g, _, fake, _ := newGate(t)

	err := g.Login(context.Background(), " ", "")
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("Login() error = %v, want *AuthError", err)
	}
	if ae.Fields["login"] == "" || ae.Fields["password"] == "" {
		t.Errorf("Fields = %v, want login and password", ae.Fields)
	}
	if got := fake.Count("POST", "/auth"); got != 0 {
		t.Errorf("POST /auth count = %d, want 0", got)
	}
}

func TestProtectedRouteRedirectsAndReturns(t *testing.T) {
	g, _, _, _ := newGate(t)
	nav := g.Navigator()

	if got := nav.Go(RouteWiFi); got != RouteLogin {
		t.Fatalf("Go(%v) = %v, want %v", RouteWiFi, got, RouteLogin)
	}
	if got := nav.Go(RouteBoot); got != RouteBoot {
		t.Errorf("Go(%v) = %v, want the public route", RouteBoot, got)
	}
	if err := g.Login(context.Background(), fakebrck.DefaultLogin, fakebrck.DefaultPassword); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if got := nav.Current(); got != RouteWiFi {
		t.Errorf("Current() = %v, want the remembered %v", got, RouteWiFi)
	}
}

func TestForcedPasswordChange(t *testing.T) {
	g, _, fake, _ := newGate(t, fakebrck.WithCredentials("admin", "admin", false))
	nav := g.Navigator()
	ctx := context.Background()

	nav.Go(RoutePower)
	if err := g.Login(ctx, "admin", "admin"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !g.RequiresPasswordChange() {
		t.Fatal("RequiresPasswordChange() = false, want true")
	}
	if got := nav.Current(); got != RouteChangePassword {
		t.Fatalf("Current() = %v, want %v", got, RouteChangePassword)
	}
	for _, r := range []Route{RouteDashboard, RouteSIM, RoutePower} {
		if got := nav.Go(r); got != RouteChangePassword {
			t.Errorf("Go(%v) = %v, want %v", r, got, RouteChangePassword)
		}
	}

	err := g.ChangePassword(ctx, "admin", "n3w-secret", "different")
	if err == nil || fake.Count("PATCH", "/auth/password") != 0 {
		t.Fatalf("mismatched ChangePassword() error = %v, requests = %d", err, fake.Count("PATCH", "/auth/password"))
	}

	if err := g.ChangePassword(ctx, "admin", "n3w-secret", "n3w-secret"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	if !fake.PasswordChanged() {
		t.Error("appliance password not changed")
	}
	if g.RequiresPasswordChange() {
		t.Error("RequiresPasswordChange() = true after the change")
	}
	if got := nav.Current(); got != RoutePower {
		t.Errorf("Current() = %v, want the remembered %v", got, RoutePower)
	}
}

func TestChangePasswordServerRejection(t *testing.T) {
	g, _, _, _ := newGate(t)
	ctx := context.Background()
	_ = g.Login(ctx, fakebrck.DefaultLogin, fakebrck.DefaultPassword)
	g.Navigator().Go(RouteChangePassword)

	err := g.ChangePassword(ctx, "not-it", "n3w-secret", "n3w-secret")
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("ChangePassword() error = %v, want *AuthError", err)
	}
	if ae.Fields["current_password"] == "" {
		t.Errorf("Fields = %v, want current_password", ae.Fields)
	}
	if got := g.Navigator().Current(); got != RouteChangePassword {
		t.Errorf("Current() = %v, want %v", got, RouteChangePassword)
	}
}

func TestSessionExpiryNavigatesOnce(t *testing.T) {
	g, client, fake, rec := newGate(t)
	ctx := context.Background()
	if err := g.Login(ctx, fakebrck.DefaultLogin, fakebrck.DefaultPassword); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	g.Navigator().Go(RouteSIM)
	fake.ExpireSessions()

	var wg sync.WaitGroup
	calls := []func() error{
		func() error { _, err := client.System(ctx); return err },
		func() error { _, err := client.Software(ctx); return err },
		func() error { _, err := client.Diagnostics(ctx); return err },
		func() error { _, err := client.Connections(ctx, brckapi.SIM); return err },
		func() error { _, err := client.Power(ctx); return err },
	}
	for _, call := range calls {
		wg.Add(1)
		go func(call func() error) {
			defer wg.Done()
			if err := call(); !brckapi.IsSession(err) {
				t.Errorf("call error = %v, want session error", err)
			}
		}(call)
	}
	wg.Wait()

	if g.IsAuthenticated() {
		t.Error("IsAuthenticated() = true after 401")
	}
	if got := rec.count(RouteLogin); got != 1 {
		t.Errorf("navigations to %v = %d, want 1", RouteLogin, got)
	}

	if err := g.Login(ctx, fakebrck.DefaultLogin, fakebrck.DefaultPassword); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if got := g.Navigator().Current(); got != RouteSIM {
		t.Errorf("Current() after re-login = %v, want %v", got, RouteSIM)
	}
}

func TestLogout(t *testing.T) {
	g, _, _, _ := newGate(t)
	_ = g.Login(context.Background(), fakebrck.DefaultLogin, fakebrck.DefaultPassword)

	g.Logout()
	if g.IsAuthenticated() {
		t.Error("IsAuthenticated() = true after Logout")
	}
	if got := g.Navigator().Current(); got != RouteLogin {
		t.Errorf("Current() = %v, want %v", got, RouteLogin)
	}

	_ = g.Login(context.Background(), fakebrck.DefaultLogin, fakebrck.DefaultPassword)
	if got := g.Navigator().Go(RouteLogout); got != RouteLogin || g.IsAuthenticated() {
		t.Errorf("Go(%v) = %v authenticated = %v, want login and no session", RouteLogout, got, g.IsAuthenticated())
	}
}

func TestUnreachableNavigatesToBoot(t *testing.T) {
	g, client, fake, _ := newGate(t)
	ctx := context.Background()
	_ = g.Login(ctx, fakebrck.DefaultLogin, fakebrck.DefaultPassword)
	g.Navigator().Go(RouteDiagnostics)

	fake.Close()
	if _, err := client.Diagnostics(ctx); !brckapi.IsUnreachable(err) {
		t.Fatalf("Diagnostics() error = %v, want unreachable", err)
	}
	if got := g.Navigator().Current(); got != RouteBoot {
		t.Errorf("Current() = %v, want %v", got, RouteBoot)
	}
	if !g.IsAuthenticated() {
		t.Error("session dropped on a transport failure")
	}
}

type flakyPinger struct {
	mu       sync.Mutex
	failures int
	pings    int
}

func (p *flakyPinger) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pings++
	if p.pings <= p.failures {
		return brckapi.ClassifyNetworkError(errors.New("connection refused"))
	}
	return nil
}

func (p *flakyPinger) Authenticate(ctx context.Context, creds brckapi.Credentials) (*brckapi.AuthResult, error) {
	return &brckapi.AuthResult{Token: "t"}, nil
}

func (p *flakyPinger) ChangePassword(ctx context.Context, change brckapi.PasswordChange) error {
	return nil
}

func TestBootWaitsForAppliance(t *testing.T) {
	gw := &flakyPinger{failures: 2}
	store := session.NewMemoryStore()
	_ = store.Save(session.State{Token: "t"})
	g := NewGate(gw, store, RouteStorage)
	g.Unreachable(errors.New("down"))

	if err := g.Boot(context.Background(), 5*time.Millisecond); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	if gw.pings != 3 {
		t.Errorf("pings = %d, want 3", gw.pings)
	}
	if got := g.Navigator().Current(); got != RouteStorage {
		t.Errorf("Current() = %v, want %v", got, RouteStorage)
	}
}

func TestBootCancelled(t *testing.T) {
	gw := &flakyPinger{failures: 1 << 30}
	g := NewGate(gw, session.NewMemoryStore(), RouteBoot)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := g.Boot(ctx, 5*time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Boot() error = %v, want deadline exceeded", err)
	}
	if got := g.Navigator().Current(); got != RouteBoot {
		t.Errorf("Current() = %v, want %v", got, RouteBoot)
	}
}

func TestNavigatorDeduplicates(t *testing.T) {
	n := NewNavigator(RouteBoot, nil)
	rec := &recorder{}
	cancel := n.Listen(rec.record)

	n.Go(RouteLogin)
	n.Go(RouteLogin)
	n.Go(RouteDashboard)
	if rec.len() != 2 {
		t.Errorf("notifications = %v, want 2", rec.routes)
	}

	cancel()
	n.Go(RouteSIM)
	if rec.len() != 2 {
		t.Errorf("notifications after cancel = %v, want 2", rec.routes)
	}
}

func TestParseRoute(t *testing.T) {
	if r, err := ParseRoute("/wifi"); err != nil || r != RouteWiFi {
		t.Errorf("ParseRoute(/wifi) = %v, %v", r, err)
	}
	if _, err := ParseRoute("/admin"); err == nil {
		t.Error("ParseRoute(/admin) error = nil, want error")
	}
	if RouteLogin.Protected() || !RouteSoftware.Protected() {
		t.Error("Protected() misclassifies routes")
	}
}
