package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/precedent-offline/internal/clients"
	"github.com/roach88/precedent-offline/internal/config"
	"github.com/roach88/precedent-offline/internal/store"
)

// fakeClients records commands instead of talking to real instances.
type fakeClients struct {
	mu            sync.Mutex
	open          []clients.Client
	notifications map[string]clients.Notification
	focused       []string
	opened        []string
	dismissed     []string
	claimed       []string
}

func newFakeClients(open ...clients.Client) *fakeClients {
	return &fakeClients{open: open, notifications: map[string]clients.Notification{}}
}

func (f *fakeClients) Match(url string) []clients.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []clients.Client
	for _, c := range f.open {
		if clients.SameTarget(c.URL, url) {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeClients) Focus(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focused = append(f.focused, id)
	return nil
}

func (f *fakeClients) Open(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, url)
	return nil
}

func (f *fakeClients) Claim(generation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claimed = append(f.claimed, generation)
	return len(f.open)
}

func (f *fakeClients) Show(n clients.Notification) clients.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n.Tag == "" {
		n.Tag = "generated"
	}
	f.notifications[n.Tag] = n
	return n
}

func (f *fakeClients) Dismiss(tag string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.notifications, tag)
	f.dismissed = append(f.dismissed, tag)
}

func (f *fakeClients) Notification(tag string) (clients.Notification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[tag]
	return n, ok
}

// newAssetOrigin serves the manifest; paths in missing answer 404.
func newAssetOrigin(t *testing.T, missing ...string) *httptest.Server {
	t.Helper()
	skip := map[string]bool{}
	for _, p := range missing {
		skip[p] = true
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if skip[r.URL.Path] {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "asset "+r.URL.Path)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newCoordinator(t *testing.T, s *store.Store, origin string, generation string, fc *fakeClients) *Coordinator {
	t.Helper()
	cfg := config.Default()
	return New(Options{
		Store:         s,
		Generation:    generation,
		Origin:        origin,
		Manifest:      cfg.Manifest,
		Clients:       fc,
		Notifications: cfg.Notification,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}
