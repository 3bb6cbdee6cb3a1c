package auth

import (
	"sync"

	"go.uber.org/zap"

	"github.com/brck/brckctl/internal/logging"
)

// Navigator holds the current route. Every navigation passes through the
// resolver, and listeners hear only about actual changes, so a burst of
// redirects to the same route produces one notification.
type Navigator struct {
	mu        sync.Mutex
	current   Route
	resolve   func(Route) Route
	listeners map[int]func(Route)
	nextID    int
}

// NewNavigator creates a navigator at start. A nil resolve passes routes
// through unchanged.
func NewNavigator(start Route, resolve func(Route) Route) *Navigator {
	if resolve == nil {
		resolve = func(r Route) Route { return r }
	}
	return &Navigator{
		current:   start,
		resolve:   resolve,
		listeners: make(map[int]func(Route)),
	}
}

// Current returns the current route.
func (n *Navigator) Current() Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Go resolves route and moves there. It returns where it ended up.
func (n *Navigator) Go(route Route) Route {
	target := n.resolve(route)

	n.mu.Lock()
	if target == n.current {
		n.mu.Unlock()
		return target
	}
	from := n.current
	n.current = target
	listeners := make([]func(Route), 0, len(n.listeners))
	for _, fn := range n.listeners {
		listeners = append(listeners, fn)
	}
	n.mu.Unlock()

	logging.Debug("Navigate",
		zap.String("from", string(from)),
		zap.String("requested", string(route)),
		zap.String("to", string(target)),
	)
	for _, fn := range listeners {
		fn(target)
	}
	return target
}

// Listen registers fn for route changes and returns a function that
// removes it.
func (n *Navigator) Listen(fn func(Route)) (cancel func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners, id)
	}
}
