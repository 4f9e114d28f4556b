package intercept

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/precedent-offline/internal/config"
	"github.com/roach88/precedent-offline/internal/store"
)

var errUnreachable = errors.New("dial tcp: connect: network is unreachable")

// switchNetwork forwards to the default transport unless it is down.
type switchNetwork struct {
	mu   sync.Mutex
	down bool
	seen []string
}

func (n *switchNetwork) RoundTrip(req *http.Request) (*http.Response, error) {
	n.mu.Lock()
	n.seen = append(n.seen, req.Method+" "+req.URL.Path)
	down := n.down
	n.mu.Unlock()
	if down {
		return nil, errUnreachable
	}
	return http.DefaultTransport.RoundTrip(req)
}

func (n *switchNetwork) setDown(down bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.down = down
}

// origin records the mutations it receives.
type origin struct {
	mu    sync.Mutex
	posts []string
	srv   *httptest.Server
}

func newOrigin(t *testing.T) *origin {
	t.Helper()
	o := &origin{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/wards", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"wards":["Belsize","Frognal"]}`)
	})
	mux.HandleFunc("GET /api/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"total_cases":1824}`)
	})
	mux.HandleFunc("POST /api/v1/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		o.mu.Lock()
		o.posts = append(o.posts, r.URL.Path+" "+string(body))
		o.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"sc-1"}`)
	})
	mux.HandleFunc("GET /cases/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<h1>Case</h1>")
	})
	o.srv = httptest.NewServer(mux)
	t.Cleanup(o.srv.Close)
	return o
}

func (o *origin) received() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.posts...)
}

type fixture struct {
	origin  *origin
	network *switchNetwork
	store   *store.Store
	ic      *Interceptor
	outbox  *Outbox
	cfg     config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	o := newOrigin(t)

	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	cfg := config.Default()
	cfg.Origin = o.srv.URL

	cache, err := s.OpenCache(context.Background(), cfg.Generation)
	require.NoError(t, err)

	network := &switchNetwork{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ic, err := New(Options{
		Origin:          cfg.Origin,
		APIPrefix:       cfg.APIPrefix,
		Cache:           cache,
		CacheableAPI:    cfg.CacheableAPI,
		OfflineDocument: cfg.OfflineDocument,
		Network:         network,
		Logger:          logger,
	})
	require.NoError(t, err)

	return &fixture{
		origin:  o,
		network: network,
		store:   s,
		ic:      ic,
		outbox:  NewOutbox(ic, s, cfg.Kinds, logger),
		cfg:     cfg,
	}
}

func readAll(t *testing.T, r io.ReadCloser) string {
	t.Helper()
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}
