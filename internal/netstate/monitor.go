// Package netstate tracks whether the application origin is reachable.
package netstate

import (
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Monitor holds the current connectivity state and notifies subscribers of
// transitions.
type Monitor struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func(online bool)
	logger *slog.Logger
}

// NewMonitor creates a monitor in the given initial state.
func NewMonitor(online bool, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		online: online,
		subs:   map[int]func(bool){},
		logger: logger,
	}
}

// Online reports the current state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set records the observed state. Subscribers are called, in subscription
// order, only when the state changes. Returns true on a transition.
func (m *Monitor) Set(online bool) bool {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return false
	}
	m.online = online
	subs := m.snapshot()
	m.mu.Unlock()

	m.logger.Info("connectivity changed", "online", online)
	for _, f := range subs {
		f(online)
	}
	return true
}

// Subscribe registers f for state transitions and returns a function that
// removes it.
func (m *Monitor) Subscribe(f func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = f
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// OnReconnect calls f on every offline to online transition.
func (m *Monitor) OnReconnect(f func()) (unsubscribe func()) {
	return m.Subscribe(func(online bool) {
		if online {
			f()
		}
	})
}

func (m *Monitor) snapshot() []func(bool) {
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	// ids are assigned increasingly; keep subscription order.
	sort.Ints(ids)
	out := make([]func(bool), len(ids))
	for i, id := range ids {
		out[i] = m.subs[id]
	}
	return out
}

// Transport reports the outcome of requests to the origin to a Monitor.
// A transport error marks the origin offline; any response marks it online.
type Transport struct {
	Base    http.RoundTripper
	Monitor *Monitor

	// Origin limits reporting to requests for this scheme and host.
	// Requests to other hosts pass through unobserved. Empty reports all.
	Origin string
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if req.Context().Err() == nil && t.observes(req.URL) {
		t.Monitor.Set(err == nil)
	}
	return resp, err
}

func (t *Transport) observes(u *url.URL) bool {
	if t.Origin == "" {
		return true
	}
	origin, err := url.Parse(t.Origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, origin.Scheme) && strings.EqualFold(u.Host, origin.Host)
}
