package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brck/brckctl/internal/brckapi"
	"github.com/brck/brckctl/internal/logging"
	"github.com/brck/brckctl/internal/session"
	"github.com/brck/brckctl/internal/workflow"
)

// DefaultBootInterval is how often Boot pings an unreachable appliance.
const DefaultBootInterval = 10 * time.Second

// ErrBusy is returned when a login or password change is already running.
var ErrBusy = errors.New("authentication already in progress")

// Gateway is the part of the API client the gate needs.
type Gateway interface {
	Ping(ctx context.Context) error
	Authenticate(ctx context.Context, creds brckapi.Credentials) (*brckapi.AuthResult, error)
	ChangePassword(ctx context.Context, change brckapi.PasswordChange) error
}

// Hooks is implemented by *brckapi.Client.
type Hooks interface {
	OnSessionExpired(fn func())
	OnUnreachable(fn func(error))
}

// AuthError is a failed login or password change.
type AuthError struct {
	Message string
	Fields  map[string]string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func authError(err error) *AuthError {
	ae := &AuthError{Message: brckapi.GetShortErrorMessage(err), Err: err}
	var apiErr *brckapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Kind == brckapi.KindValidation || apiErr.Kind == brckapi.KindOperational {
			ae.Message = apiErr.Message
		}
		ae.Fields = apiErr.Fields
	}
	return ae
}

func localError(errs []error) *AuthError {
	return &AuthError{
		Message: "Please fill in the highlighted fields",
		Fields:  workflow.FieldMap(errs),
		Err:     workflow.ValidationError(errs),
	}
}

// Gate is the session gate. It is safe for concurrent use.
type Gate struct {
	gw    Gateway
	store session.Store
	nav   *Navigator

	mu        sync.Mutex
	pending   Route
	working   bool
	lastError *AuthError
}

// NewGate creates a gate whose navigator starts at start.
func NewGate(gw Gateway, store session.Store, start Route) *Gate {
	g := &Gate{gw: gw, store: store}
	g.nav = NewNavigator(start, g.Resolve)
	return g
}

// Navigator returns the gate's navigator.
func (g *Gate) Navigator() *Navigator { return g.nav }

// Attach wires the client's 401 and transport failure signals into the gate.
func (g *Gate) Attach(h Hooks) {
	h.OnSessionExpired(g.SessionExpired)
	h.OnUnreachable(g.Unreachable)
}

// IsAuthenticated reports whether a token is stored.
func (g *Gate) IsAuthenticated() bool {
	_, ok := g.store.Load()
	return ok
}

// RequiresPasswordChange reports whether the appliance still has its factory
// password.
func (g *Gate) RequiresPasswordChange() bool {
	st, ok := g.store.Load()
	return ok && st.MustChangePassword()
}

// Working reports whether a login or password change is in flight.
func (g *Gate) Working() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.working
}

// LastError returns the last login or password change failure.
func (g *Gate) LastError() *AuthError {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastError
}

// Resolve applies the access rules to a requested route.
func (g *Gate) Resolve(route Route) Route {
	if route == RouteLogout {
		g.clear()
		return RouteLogin
	}
	if !route.Protected() {
		return route
	}
	if !g.IsAuthenticated() {
		g.remember(route)
		return RouteLogin
	}
	if route != RouteChangePassword && g.RequiresPasswordChange() {
		g.remember(route)
		return RouteChangePassword
	}
	return route
}

func (g *Gate) remember(route Route) {
	if route == RouteChangePassword || !route.Protected() {
		return
	}
	g.mu.Lock()
	g.pending = route
	g.mu.Unlock()
}

// destination pops the remembered route, or the dashboard.
func (g *Gate) destination() Route {
	g.mu.Lock()
	defer g.mu.Unlock()
	dest := g.pending
	g.pending = ""
	if dest == "" {
		dest = RouteDashboard
	}
	return dest
}

func (g *Gate) begin() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.working {
		return false
	}
	g.working = true
	g.lastError = nil
	return true
}

func (g *Gate) end(ae *AuthError) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.working = false
	g.lastError = ae
}

// Login authenticates and stores the session. On success it navigates to the
// remembered destination; on failure the session stays empty and the route
// is unchanged.
func (g *Gate) Login(ctx context.Context, login, password string) error {
	if !g.begin() {
		return ErrBusy
	}

	login = strings.TrimSpace(login)
	var errs []error
	if login == "" {
		errs = append(errs, &workflow.FieldError{Field: "login", Message: "login required"})
	}
	if password == "" {
		errs = append(errs, &workflow.FieldError{Field: "password", Message: "password required"})
	}
	if len(errs) > 0 {
		ae := localError(errs)
		g.end(ae)
		return ae
	}

	res, err := g.gw.Authenticate(ctx, brckapi.Credentials{Login: login, Password: password})
	if err != nil {
		ae := authError(err)
		g.end(ae)
		logging.Info("Login failed", zap.String("login", login), zap.String("reason", ae.Message))
		return ae
	}

	if err := g.store.Save(session.State{Token: res.Token, PasswordChanged: res.PasswordChanged}); err != nil {
		ae := &AuthError{Message: "could not save session", Err: err}
		g.end(ae)
		return ae
	}
	g.end(nil)
	logging.Info("Logged in", zap.String("login", login))

	g.nav.Go(g.destination())
	return nil
}

// ChangePassword replaces the appliance password and releases the forced
// change redirect.
func (g *Gate) ChangePassword(ctx context.Context, current, password, confirmation string) error {
	if !g.begin() {
		return ErrBusy
	}
	if errs := workflow.ValidatePasswordChange(current, password, confirmation); len(errs) > 0 {
		ae := localError(errs)
		g.end(ae)
		return ae
	}

	err := g.gw.ChangePassword(ctx, brckapi.PasswordChange{
		CurrentPassword:      current,
		Password:             password,
		PasswordConfirmation: confirmation,
	})
	if err != nil {
		ae := authError(err)
		g.end(ae)
		return ae
	}
	if err := g.store.SetPasswordChanged(true); err != nil {
		logging.Warn("Failed to record password change", zap.Error(err))
	}
	g.end(nil)

	g.nav.Go(g.destination())
	return nil
}

// Logout clears the session and returns to the login view.
func (g *Gate) Logout() {
	g.clear()
	g.nav.Go(RouteLogin)
}

func (g *Gate) clear() {
	if _, err := g.store.Clear(); err != nil {
		logging.Warn("Failed to clear session", zap.Error(err))
	}
	g.mu.Lock()
	g.pending = ""
	g.mu.Unlock()
}

// SessionExpired handles a 401: the session is dropped and the user is sent
// to login, coming back to the current view afterwards.
func (g *Gate) SessionExpired() {
	if _, err := g.store.Clear(); err != nil {
		logging.Warn("Failed to clear session", zap.Error(err))
	}
	g.remember(g.nav.Current())
	g.nav.Go(RouteLogin)
}

// Unreachable handles a transport failure by switching to the boot check.
func (g *Gate) Unreachable(err error) {
	logging.Warn("Appliance unreachable", zap.Error(err))
	g.remember(g.nav.Current())
	g.nav.Go(RouteBoot)
}

// Boot pings the appliance every interval until it answers, then navigates
// to the remembered destination. It returns ctx's error if cancelled first.
func (g *Gate) Boot(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultBootInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := g.gw.Ping(ctx)
		if err == nil {
			logging.Info("Appliance reachable")
			g.nav.Go(g.destination())
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.Debug("Appliance still unreachable", zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
