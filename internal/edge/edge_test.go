package edge

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/precedent-offline/internal/config"
	"github.com/roach88/precedent-offline/internal/lifecycle"
	"github.com/roach88/precedent-offline/internal/reconcile"
	"github.com/roach88/precedent-offline/internal/store"
	"github.com/roach88/precedent-offline/internal/testutil"
)

type harness struct {
	origin  *testutil.Origin
	network *testutil.Network
	store   *store.Store
	edge    *Edge
	server  *httptest.Server
}

func newHarness(t *testing.T, opts ...func(*Options)) *harness {
	t.Helper()
	cfg := config.Default()
	pages := testutil.ManifestPages(cfg.Manifest)
	pages["/api/v1/wards"] = `{"wards":["Camden Town","Kentish Town"]}`
	origin := testutil.NewOrigin(pages)
	t.Cleanup(origin.Close)
	cfg.Origin = origin.URL
	cfg.Probe.Interval = 0

	clock := testutil.NewDeterministicClock(time.Time{}, 0)
	s, err := store.Open(":memory:", store.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	network := &testutil.Network{}
	o := Options{
		Config:  cfg,
		Store:   s,
		Network: network,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, f := range opts {
		f(&o)
	}
	e, err := New(context.Background(), o)
	require.NoError(t, err)

	srv := httptest.NewServer(e.Handler())
	t.Cleanup(srv.Close)
	return &harness{origin: origin, network: network, store: s, edge: e, server: srv}
}

func (h *harness) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(h.server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestStart_InstallsAndActivates(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.edge.Start(context.Background()))
	assert.Equal(t, lifecycle.StateActive, h.edge.Coordinator.State())

	st, err := h.edge.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "active", st.State)
	assert.True(t, st.Durable)
}

func TestStart_FailedInstallLeavesRedundant(t *testing.T) {
	h := newHarness(t)
	h.network.SetDown(true)

	require.Error(t, h.edge.Start(context.Background()))
	assert.Equal(t, lifecycle.StateRedundant, h.edge.Coordinator.State())
}

func TestOfflineSaveReplaysExactlyOnce(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.edge.Start(context.Background()))

	h.network.SetDown(true)
	payload := `{"case_reference":"2023/0412/P","project_id":"loft","notes":"ridge height","tags":["dormer"]}`
	resp := h.post(t, "/api/v1/saved-cases", payload)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var queued struct {
		Queued bool   `json:"queued"`
		ID     int64  `json:"id"`
		Kind   string `json:"kind"`
	}
	decode(t, resp, &queued)
	assert.True(t, queued.Queued)
	assert.Equal(t, config.KindSavedCaseCreate, queued.Kind)
	assert.Empty(t, h.origin.Mutations())

	h.network.SetDown(false)
	resp = h.post(t, SyncPath+"?tag=sync-saved-case-create", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report struct {
		Replayed int `json:"replayed"`
		Failed   int `json:"failed"`
	}
	decode(t, resp, &report)
	assert.Equal(t, 1, report.Replayed)

	// A second pass finds nothing to send.
	resp = h.post(t, SyncPath, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	muts := h.origin.Mutations()
	require.Len(t, muts, 1)
	assert.Equal(t, "/api/v1/saved-cases", muts[0].Path)
	assert.JSONEq(t, payload, string(muts[0].Body))
	assert.NotEmpty(t, muts[0].IdempotencyKey)
}

func TestReconnectTriggersReplay(t *testing.T) {
	reports := make(chan reconcile.Report, 4)
	h := newHarness(t, func(o *Options) {
		o.OnReport = func(_ reconcile.Trigger, r reconcile.Report, _ error) { reports <- r }
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h.edge.Start(ctx))

	go func() { _ = h.edge.Run(ctx) }()
	select {
	case <-reports:
	case <-time.After(2 * time.Second):
		t.Fatal("startup pass did not run")
	}

	h.network.SetDown(true)
	resp := h.post(t, "/api/v1/search-history", `{"query":"basement","results_count":2}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.False(t, h.edge.Monitor.Online())

	h.network.SetDown(false)
	assert.True(t, h.edge.Probe.Check(ctx))

	select {
	case r := <-reports:
		assert.Equal(t, 1, r.Replayed())
	case <-time.After(2 * time.Second):
		t.Fatal("reconnect did not trigger a pass")
	}
	require.Len(t, h.origin.Mutations(), 1)
}

func TestPushEndpoint(t *testing.T) {
	h := newHarness(t)

	resp := h.post(t, PushPath, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var n struct {
		Title string `json:"title"`
		Badge string `json:"badge"`
	}
	decode(t, resp, &n)
	assert.Equal(t, "Planning Precedent AI", n.Title)
	assert.Equal(t, "/icons/badge-72x72.png", n.Badge)
	assert.Len(t, h.edge.Hub.Notifications(), 1)
}

func TestNetworkOnlyWithoutStore(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Store = nil })
	require.NoError(t, h.edge.Start(context.Background()))
	assert.Nil(t, h.edge.Reconciler)

	resp, err := http.Get(h.server.URL + "/api/v1/wards")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	h.network.SetDown(true)
	resp = h.post(t, "/api/v1/saved-cases", `{"case_reference":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Get(h.server.URL + StatusPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	var st Status
	decode(t, resp, &st)
	assert.False(t, st.Durable)
}
