package testutil

import (
	"errors"
	"net/http"
	"sync"
)

// ErrNetworkDown is returned by a Network that has been switched off.
var ErrNetworkDown = errors.New("dial tcp: connect: network is unreachable")

// Network is an http.RoundTripper that can be switched off, simulating
// loss of connectivity.
type Network struct {
	mu   sync.Mutex
	Base http.RoundTripper
	down bool
	log  []string
}

// SetDown switches connectivity off (true) or on (false).
func (n *Network) SetDown(down bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.down = down
}

// Down reports whether the network is switched off.
func (n *Network) Down() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.down
}

// Requests returns "METHOD path" for every request attempted.
func (n *Network) Requests() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.log...)
}

// RoundTrip implements http.RoundTripper.
func (n *Network) RoundTrip(req *http.Request) (*http.Response, error) {
	n.mu.Lock()
	n.log = append(n.log, req.Method+" "+req.URL.Path)
	down := n.down
	base := n.Base
	n.mu.Unlock()

	if down {
		return nil, ErrNetworkDown
	}
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
