package fakebrck

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brck/brckctl/internal/brckapi"
)

// Hold keeps one request in flight until Release is called.
type Hold struct {
	arrived chan struct{}
	release chan struct{}
	once    sync.Once
}

// Arrived is closed once the held request reaches the appliance.
func (h *Hold) Arrived() <-chan struct{} { return h.arrived }

// Release lets the held request continue.
func (h *Hold) Release() {
	h.once.Do(func() { close(h.release) })
}

// WaitArrived blocks until the request arrives or the timeout elapses.
func (h *Hold) WaitArrived(timeout time.Duration) bool {
	select {
	case <-h.arrived:
		return true
	case <-time.After(timeout):
		return false
	}
}

// HoldNext holds the next request matching method and path, e.g.
// HoldNext("GET", "/networks/sim/").
func (a *Appliance) HoldNext(method, path string) *Hold {
	h := &Hold{arrived: make(chan struct{}), release: make(chan struct{})}
	a.mu.Lock()
	a.holds[key(method, path)] = append(a.holds[key(method, path)], h)
	a.mu.Unlock()
	return h
}

func (a *Appliance) releaseAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k, hs := range a.holds {
		for _, h := range hs {
			h.Release()
		}
		delete(a.holds, k)
	}
}

// FailNext makes the next request matching method and path reply with status
// and body instead of reaching its handler.
func (a *Appliance) FailNext(method, path string, status int, body any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := key(method, path)
	a.failures[k] = append(a.failures[k], Failure{Status: status, Body: body})
}

// FailValidation is FailNext with a 422 field error body.
func (a *Appliance) FailValidation(method, path string, fields map[string]string) {
	a.FailNext(method, path, http.StatusUnprocessableEntity, validationError(fields))
}

// Count returns how many requests matched method and path.
func (a *Appliance) Count(method, path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts[key(method, path)]
}

// LastBody returns the most recent JSON body sent to method and path.
func (a *Appliance) LastBody(method, path string) map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	bodies := a.bodies[key(method, path)]
	if len(bodies) == 0 {
		return nil
	}
	return bodies[len(bodies)-1]
}

// Token issues a valid session token without going through /auth.
func (a *Appliance) Token() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	token := uuid.NewString()
	a.tokens[token] = true
	return token
}

// ExpireSessions invalidates every issued token.
func (a *Appliance) ExpireSessions() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokens = make(map[string]bool)
}

// PasswordChanged reports whether the factory password was replaced.
func (a *Appliance) PasswordChanged() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.passwordChanged
}

// Slots returns a copy of the slots for kind.
func (a *Appliance) Slots(kind brckapi.Interface) []brckapi.Slot {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]brckapi.Slot, len(a.slots[kind]))
	for i, s := range a.slots[kind] {
		out[i] = s.Clone()
	}
	return out
}

// SetSlots replaces the slots for kind.
func (a *Appliance) SetSlots(kind brckapi.Interface, slots []brckapi.Slot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := make([]brckapi.Slot, len(slots))
	for i, s := range slots {
		cp[i] = s.Clone()
	}
	a.slots[kind] = cp
}

// UpdateSlot edits one slot in place.
func (a *Appliance) UpdateSlot(kind brckapi.Interface, id string, fn func(*brckapi.Slot)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.slots[kind] {
		if a.slots[kind][i].ID == id {
			fn(&a.slots[kind][i])
		}
	}
}

// OnConfigure replaces the default PATCH /networks/{kind}/{id} handling. The
// hook returns the status and JSON body to send. Pass nil to restore.
func (a *Appliance) OnConfigure(fn func(kind brckapi.Interface, id string, cfg map[string]any) (int, any)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configureHook = fn
}

// SetDeviceMode sets what GET /device-mode reports.
func (a *Appliance) SetDeviceMode(mode brckapi.DeviceMode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deviceMode = mode
}

// SetSystem sets what GET /system reports.
func (a *Appliance) SetSystem(status brckapi.SystemStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.system = status
}

// Power returns the stored power configuration.
func (a *Appliance) Power() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]any, len(a.power))
	for k, v := range a.power {
		out[k] = v
	}
	return out
}
