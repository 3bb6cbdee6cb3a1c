package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brck/brckctl/internal/auth"
	"github.com/brck/brckctl/internal/brckapi"
	"github.com/brck/brckctl/internal/push"
	"github.com/brck/brckctl/internal/workflow"
)

// Deps is everything the dashboard talks to.
type Deps struct {
	Client  *brckapi.Client
	Gate    *auth.Gate
	Engines map[brckapi.Interface]*workflow.Engine
	// Dialer is optional; without it the dashboard polls only.
	Dialer *push.Dialer

	DefaultLogin string
	Fahrenheit   bool
	BootInterval time.Duration
}

func (d *Deps) defaults() {
	if d.Engines == nil {
		d.Engines = make(map[brckapi.Interface]*workflow.Engine)
	}
	if d.BootInterval <= 0 {
		d.BootInterval = auth.DefaultBootInterval
	}
}

// Run shows the dashboard until the user quits or ctx ends. Each view polls
// its engine and opens its push channel only while it is shown.
func Run(ctx context.Context, deps Deps, opts ...tea.ProgramOption) error {
	if deps.Client == nil || deps.Gate == nil {
		return errors.New("tui: client and gate are required")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewModel(ctx, deps)
	deps = model.deps
	p := tea.NewProgram(model, append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)...)
	model.live.attach(p.Send)
	defer model.live.close()

	// Send blocks until the event loop takes the message, and navigation
	// happens inside Update, so listeners must not call it synchronously.
	stopNav := deps.Gate.Navigator().Listen(func(auth.Route) {
		go p.Send(routeMsg{})
	})
	defer stopNav()

	for kind, e := range deps.Engines {
		go forwardChanges(ctx, p, kind, e)
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func forwardChanges(ctx context.Context, p *tea.Program, kind brckapi.Interface, e *workflow.Engine) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.Changes():
			p.Send(engineMsg{kind: kind})
		}
	}
}
