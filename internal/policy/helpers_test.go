package policy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/precedent-offline/internal/store"
)

var errOffline = errors.New("dial tcp: network is unreachable")

// fakeNetwork serves canned responses and can be switched off.
type fakeNetwork struct {
	mu       sync.Mutex
	down     bool
	status   int
	body     string
	requests []string
}

func (n *fakeNetwork) RoundTrip(req *http.Request) (*http.Response, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests = append(n.requests, req.Method+" "+req.URL.String())
	if n.down {
		return nil, errOffline
	}
	status := n.status
	if status == 0 {
		status = http.StatusOK
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return &http.Response{
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode:    status,
		Header:        h,
		Body:          io.NopCloser(strings.NewReader(n.body)),
		ContentLength: int64(len(n.body)),
		Request:       req,
	}, nil
}

func (n *fakeNetwork) setDown(down bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.down = down
}

func (n *fakeNetwork) calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.requests)
}

func newTestCache(t *testing.T) *store.Cache {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	c, err := s.OpenCache(context.Background(), "v1")
	require.NoError(t, err)
	return c
}

func newRequest(t *testing.T, method, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	return req
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}
