package fakebrck

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

type hub struct {
	mu    sync.Mutex
	subs  map[string]map[*subscriber]bool
	dials map[string]int
}

func newHub() *hub {
	return &hub{
		subs:  make(map[string]map[*subscriber]bool),
		dials: make(map[string]int),
	}
}

func (h *hub) add(channel string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[*subscriber]bool)
	}
	h.subs[channel][s] = true
	h.dials[channel]++
}

func (h *hub) remove(channel string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[channel], s)
}

func (h *hub) snapshot(channel string) []*subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*subscriber, 0, len(h.subs[channel]))
	for s := range h.subs[channel] {
		out = append(out, s)
	}
	return out
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.subs {
		for s := range subs {
			_ = s.conn.Close()
		}
	}
}

func (a *Appliance) handlePush(w http.ResponseWriter, r *http.Request) {
	channel := mux.Vars(r)["channel"]

	token := r.Header.Get(authHeader)
	a.mu.Lock()
	ok := token != "" && a.tokens[token]
	a.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s := &subscriber{conn: conn}
	a.hub.add(channel, s)
	defer func() {
		a.hub.remove(channel, s)
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Emit sends an {event, data} frame to every subscriber on channel.
func (a *Appliance) Emit(channel, event string, data any) error {
	frame, err := json.Marshal(map[string]any{"event": event, "data": data})
	if err != nil {
		return err
	}
	return a.EmitRaw(channel, frame)
}

// EmitRaw sends frame unchanged, for malformed-frame tests.
func (a *Appliance) EmitRaw(channel string, frame []byte) error {
	for _, s := range a.hub.snapshot(channel) {
		if err := s.send(frame); err != nil {
			return err
		}
	}
	return nil
}

// Subscribers returns how many clients are listening on channel.
func (a *Appliance) Subscribers(channel string) int {
	a.hub.mu.Lock()
	defer a.hub.mu.Unlock()
	return len(a.hub.subs[channel])
}

// Dials returns how many connections were ever accepted on channel.
func (a *Appliance) Dials(channel string) int {
	a.hub.mu.Lock()
	defer a.hub.mu.Unlock()
	return a.hub.dials[channel]
}

// WaitSubscribers blocks until channel has n subscribers or timeout elapses.
func (a *Appliance) WaitSubscribers(channel string, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if a.Subscribers(channel) == n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return a.Subscribers(channel) == n
}

// DropSubscribers closes every connection on channel from the server side.
func (a *Appliance) DropSubscribers(channel string) {
	for _, s := range a.hub.snapshot(channel) {
		_ = s.conn.Close()
	}
}
