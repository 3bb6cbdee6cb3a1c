package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/brck/brckctl/internal/brckapi"
	"github.com/brck/brckctl/internal/logging"
	"github.com/brck/brckctl/internal/session"
)

// Channel names served by the appliance.
const (
	ChannelDashboard   = "dashboard"
	ChannelSIM         = "sim-connectivity"
	ChannelDiagnostics = "diagnostics"
)

// Event names carried in the envelope.
const (
	EventSystem      = "system"
	EventDiagnostics = "diagnostics"
	EventConnection  = "conn_event"
	EventMessage     = "message"
)

// Channels lists the known channels.
var Channels = []string{ChannelDashboard, ChannelSIM, ChannelDiagnostics}

const (
	DefaultMinBackoff = 1 * time.Second
	DefaultMaxBackoff = 30 * time.Second

	handshakeTimeout = 10 * time.Second
)

// Message is one decoded envelope.
type Message struct {
	Channel string
	Event   string
	Data    json.RawMessage
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Dialer opens subscriptions against one appliance.
type Dialer struct {
	BaseURL    string
	MinBackoff time.Duration
	MaxBackoff time.Duration

	store session.Store
	ws    *websocket.Dialer
}

// NewDialer creates a dialer for baseURL (ws:// or wss://). The session token
// is read from store on every dial.
func NewDialer(baseURL string, store session.Store) *Dialer {
	return &Dialer{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		MinBackoff: DefaultMinBackoff,
		MaxBackoff: DefaultMaxBackoff,
		store:      store,
		ws: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

// Subscription is a live channel. Callbacks run on its reader goroutine.
type Subscription struct {
	channel   string
	url       string
	dialer    *Dialer
	onMessage func(Message)
	onError   func(error)

	cancel    context.CancelFunc
	done      chan struct{}
	closed    atomic.Bool
	connected atomic.Bool
	once      sync.Once
}

// Subscribe starts listening on channel. It returns as soon as the reader is
// running; the first connection attempt happens in the background, so a
// channel that never connects only produces onError calls.
func (d *Dialer) Subscribe(ctx context.Context, channel string, onMessage func(Message), onError func(error)) (*Subscription, error) {
	if channel == "" {
		return nil, errors.New("push channel name is required")
	}
	u, err := url.Parse(d.BaseURL + "/" + strings.TrimLeft(channel, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid push URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid push URL %q: scheme must be ws or wss", u.String())
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		channel:   channel,
		url:       u.String(),
		dialer:    d,
		onMessage: onMessage,
		onError:   onError,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go s.run(ctx)
	return s, nil
}

// Channel returns the subscribed channel name.
func (s *Subscription) Channel() string { return s.channel }

// Connected reports whether the socket is currently open.
func (s *Subscription) Connected() bool { return s.connected.Load() }

// Unsubscribe closes the connection and stops reconnecting. No callback runs
// after it returns. It must not be called from inside a callback.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.closed.Store(true)
		s.cancel()
		<-s.done
		logging.LogConnection(s.url, "unsubscribed")
	})
}

// Done is closed once the reader goroutine has exited.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) run(ctx context.Context) {
	defer close(s.done)

	backoff := s.dialer.MinBackoff
	for {
		opened, err := s.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}
		s.fail(err)
		if opened {
			backoff = s.dialer.MinBackoff
		}

		logging.Debug("Push channel reconnecting",
			zap.String("channel", s.channel),
			zap.Duration("backoff", backoff),
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff *= 2
		if backoff > s.dialer.MaxBackoff {
			backoff = s.dialer.MaxBackoff
		}
	}
}

// connectAndRead dials once and reads until the connection drops. opened
// reports whether the handshake succeeded.
func (s *Subscription) connectAndRead(ctx context.Context) (opened bool, err error) {
	header := http.Header{}
	if st, ok := s.dialer.store.Load(); ok && st.Token != "" {
		header.Set(brckapi.AuthHeader, st.Token)
	}

	conn, resp, err := s.dialer.ws.DialContext(ctx, s.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dial %s: %w (HTTP %d)", s.url, err, resp.StatusCode)
		}
		return false, fmt.Errorf("dial %s: %w", s.url, err)
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		_ = conn.Close()
		s.connected.Store(false)
		logging.LogConnection(s.url, "closed")
	}()
	s.connected.Store(true)
	logging.LogConnection(s.url, "connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read %s: %w", s.channel, err)
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logging.LogPushMessage(s.channel, "", data)
			s.fail(fmt.Errorf("malformed frame on %s: %w", s.channel, err))
			continue
		}
		logging.LogPushMessage(s.channel, env.Event, env.Data)

		if env.Event == EventMessage || env.Event == "" {
			continue
		}
		s.deliver(Message{Channel: s.channel, Event: env.Event, Data: env.Data})
	}
}

func (s *Subscription) deliver(m Message) {
	if s.closed.Load() || s.onMessage == nil {
		return
	}
	s.onMessage(m)
}

func (s *Subscription) fail(err error) {
	if err == nil {
		return
	}
	logging.Warn("Push channel error",
		zap.String("channel", s.channel),
		zap.Error(err),
	)
	if s.closed.Load() || s.onError == nil {
		return
	}
	s.onError(err)
}

// DecodeSystem decodes a "system" event from the dashboard channel.
func DecodeSystem(m Message) (*brckapi.SystemStatus, error) {
	var out brckapi.SystemStatus
	if err := json.Unmarshal(m.Data, &out); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", m.Event, err)
	}
	return &out, nil
}

// DecodeDiagnostics decodes a "diagnostics" event.
func DecodeDiagnostics(m Message) (*brckapi.Diagnostics, error) {
	var out brckapi.Diagnostics
	if err := json.Unmarshal(m.Data, &out); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", m.Event, err)
	}
	return &out, nil
}

// ConnectionEvent is one step of a SIM connection attempt.
type ConnectionEvent struct {
	Event       string `json:"event"`
	Description string `json:"description"`
}

// DecodeConnectionEvent decodes a "conn_event" payload. A missing
// description is filled in from the known event table.
func DecodeConnectionEvent(m Message) (ConnectionEvent, error) {
	var ev ConnectionEvent
	if err := json.Unmarshal(m.Data, &ev); err != nil {
		return ev, fmt.Errorf("decode %s event: %w", m.Event, err)
	}
	if ev.Event == "" {
		return ev, fmt.Errorf("decode %s event: missing event name", m.Event)
	}
	if ev.Description == "" {
		ev.Description = Describe(ev.Event)
	}
	return ev, nil
}
