package tui

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/brck/brckctl/internal/auth"
	"github.com/brck/brckctl/internal/brckapi"
	"github.com/brck/brckctl/internal/logging"
	"github.com/brck/brckctl/internal/push"
	"github.com/brck/brckctl/internal/workflow"
)

// routeChannels is the push channel each view listens on while shown.
var routeChannels = map[auth.Route]string{
	auth.RouteDashboard:   push.ChannelDashboard,
	auth.RouteSIM:         push.ChannelSIM,
	auth.RouteDiagnostics: push.ChannelDiagnostics,
}

// live runs the polling and push subscriptions of the view being shown. It
// is shared by every copy of the Model.
type live struct {
	ctx     context.Context
	engines map[brckapi.Interface]*workflow.Engine
	dialer  *push.Dialer

	mu   sync.Mutex
	send func(tea.Msg)
	subs map[string]*push.Subscription
}

func newLive(ctx context.Context, engines map[brckapi.Interface]*workflow.Engine, dialer *push.Dialer) *live {
	return &live{
		ctx:     ctx,
		engines: engines,
		dialer:  dialer,
		subs:    make(map[string]*push.Subscription),
	}
}

// attach sets where push updates are delivered. Until then they are dropped.
func (l *live) attach(send func(tea.Msg)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.send = send
}

func (l *live) deliver(msg tea.Msg) {
	l.mu.Lock()
	send := l.send
	l.mu.Unlock()
	if send != nil {
		// Send blocks until the event loop takes the message, and mount
		// runs inside Update.
		go send(msg)
	}
}

// mount polls the engine and opens the channel that route shows, and stops
// everything else. Routes outside the tabs stop all of it.
func (l *live) mount(route auth.Route) {
	kind := routeKinds[route]
	for k, e := range l.engines {
		if k == kind {
			e.Start(l.ctx)
		} else {
			e.Stop()
		}
	}

	want := routeChannels[route]
	if want == push.ChannelSIM && l.engines[brckapi.SIM] == nil {
		want = ""
	}

	l.mu.Lock()
	var drop []*push.Subscription
	for channel, s := range l.subs {
		if channel != want {
			drop = append(drop, s)
			delete(l.subs, channel)
		}
	}
	_, have := l.subs[want]
	l.mu.Unlock()

	for _, s := range drop {
		s.Unsubscribe()
	}
	if want == "" || have || l.dialer == nil {
		return
	}

	s, err := l.dialer.Subscribe(l.ctx, want, l.handler(want), l.onError(want))
	if err != nil {
		logging.Warn("Push subscribe failed", zap.String("channel", want), zap.Error(err))
		l.onError(want)(fmt.Errorf("subscribe: %w", err))
		return
	}
	l.mu.Lock()
	l.subs[want] = s
	l.mu.Unlock()
}

// close stops polling and every subscription.
func (l *live) close() {
	l.mount("")
}

func (l *live) onError(channel string) func(error) {
	return func(err error) { l.deliver(pushErrMsg{channel: channel, err: err}) }
}

func (l *live) handler(channel string) func(push.Message) {
	switch channel {
	case push.ChannelDashboard:
		return func(msg push.Message) {
			if msg.Event != push.EventSystem {
				return
			}
			status, err := push.DecodeSystem(msg)
			if err != nil {
				l.onError(channel)(err)
				return
			}
			l.deliver(systemMsg{status: status})
		}
	case push.ChannelDiagnostics:
		return func(msg push.Message) {
			if msg.Event != push.EventDiagnostics {
				return
			}
			diag, err := push.DecodeDiagnostics(msg)
			if err != nil {
				l.onError(channel)(err)
				return
			}
			l.deliver(diagnosticsMsg{diag: diag})
		}
	default:
		sim := l.engines[brckapi.SIM]
		return func(msg push.Message) {
			if msg.Event != push.EventConnection {
				return
			}
			ev, err := push.DecodeConnectionEvent(msg)
			if err != nil {
				l.onError(channel)(err)
				return
			}
			logging.LogConnection(brckapi.SIM.Label(), ev.Event)
			sim.OnConnectionEvent(ev)
		}
	}
}
