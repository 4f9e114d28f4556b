// Package edge assembles the offline layer into one runnable process.
package edge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/roach88/precedent-offline/internal/clients"
	"github.com/roach88/precedent-offline/internal/config"
	"github.com/roach88/precedent-offline/internal/intercept"
	"github.com/roach88/precedent-offline/internal/lifecycle"
	"github.com/roach88/precedent-offline/internal/netstate"
	"github.com/roach88/precedent-offline/internal/policy"
	"github.com/roach88/precedent-offline/internal/reconcile"
	"github.com/roach88/precedent-offline/internal/remote"
	"github.com/roach88/precedent-offline/internal/store"
)

// Control endpoints served next to the proxied application.
const (
	PushPath   = "/_offline/push"
	SyncPath   = "/_offline/sync"
	StatusPath = "/_offline/status"
)

// maxPushPayload bounds a push body.
const maxPushPayload = 4 << 10

// Options configures an Edge.
type Options struct {
	Config config.Config

	// Store is the durable store. Nil runs network-only without queueing.
	Store *store.Store

	// Network carries every origin request. Nil means http.DefaultTransport.
	Network http.RoundTripper

	// Replayer delivers queued actions. Nil posts to Config.RemoteBase().
	Replayer reconcile.Replayer

	// Opener opens a window when no instance is connected.
	Opener func(ctx context.Context, url string) error

	// OnReport observes every reconcile pass run by Run.
	OnReport func(reconcile.Trigger, reconcile.Report, error)

	Logger *slog.Logger
}

// Edge is the assembled offline layer.
type Edge struct {
	Config      config.Config
	Store       *store.Store
	Monitor     *netstate.Monitor
	Interceptor *intercept.Interceptor
	Outbox      *intercept.Outbox
	Proxy       *intercept.Proxy
	Hub         *clients.Hub
	Coordinator *lifecycle.Coordinator
	Reconciler  *reconcile.Reconciler
	Probe       *netstate.Probe

	logger  *slog.Logger
	stopRec func()
}

// New wires every component. Nothing runs until Start and Run.
func New(ctx context.Context, opts Options) (*Edge, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("edge: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := opts.Network
	if base == nil {
		base = http.DefaultTransport
	}

	e := &Edge{Config: cfg, Store: opts.Store, logger: logger}
	e.Monitor = netstate.NewMonitor(true, logger)
	network := &netstate.Transport{Base: base, Monitor: e.Monitor, Origin: cfg.Origin}

	var cache policy.Cache = policy.NoCache{}
	if opts.Store != nil {
		c, err := opts.Store.OpenCache(ctx, cfg.Generation)
		if err != nil {
			return nil, fmt.Errorf("edge: %w", policy.StoreError(err))
		}
		cache = c
	} else {
		logger.Warn("persistent store unavailable, running network-only")
	}

	ic, err := intercept.New(intercept.Options{
		Origin:          cfg.Origin,
		APIPrefix:       cfg.APIPrefix,
		Cache:           cache,
		CacheableAPI:    cfg.CacheableAPI,
		OfflineDocument: cfg.OfflineDocument,
		Network:         network,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("edge: %w", err)
	}
	e.Interceptor = ic

	if opts.Store != nil {
		e.Outbox = intercept.NewOutbox(ic, opts.Store, cfg.Kinds, logger)
	}
	e.Proxy = intercept.NewProxy(ic, e.Outbox, cfg.KindForPath, logger)

	// Hub callbacks run only after New returns, when Coordinator is set.
	hubOpts := []clients.Option{
		clients.WithLogger(logger),
		clients.OnInstallPrompt(func(available bool) {
			e.Coordinator.InstallPrompt().Set(available)
		}),
		clients.OnNotificationClick(func(ctx context.Context, tag, action string) {
			if err := e.Coordinator.HandleClick(ctx, tag, action); err != nil {
				logger.Warn("notification click failed", "tag", tag, "error", err)
			}
		}),
	}
	if opts.Opener != nil {
		hubOpts = append(hubOpts, clients.WithOpener(opts.Opener))
	}
	e.Hub = clients.NewHub(hubOpts...)

	e.Coordinator = lifecycle.New(lifecycle.Options{
		Store:         opts.Store,
		Generation:    cfg.Generation,
		Origin:        cfg.Origin,
		Manifest:      cfg.Manifest,
		Network:       network,
		Clients:       e.Hub,
		Notifications: cfg.Notification,
		Logger:        logger,
	})

	if opts.Store != nil {
		replayer := opts.Replayer
		if replayer == nil {
			replayer = remote.New(cfg.RemoteBase(),
				remote.WithHTTPClient(&http.Client{Transport: network}),
				remote.WithLogger(logger),
			)
		}
		recOpts := []reconcile.Option{reconcile.WithLogger(logger)}
		if opts.OnReport != nil {
			recOpts = append(recOpts, reconcile.WithReportHook(opts.OnReport))
		}
		e.Reconciler = reconcile.New(opts.Store, replayer, cfg.Kinds, recOpts...)
		e.stopRec = e.Monitor.OnReconnect(func() {
			e.Reconciler.Trigger(reconcile.Trigger{Reason: "online"})
		})
	}

	e.Probe = &netstate.Probe{
		URL:      strings.TrimRight(cfg.Origin, "/") + cfg.Probe.Path,
		Interval: cfg.Probe.Interval,
		Timeout:  cfg.Probe.Timeout,
		Client:   &http.Client{Transport: network},
		Monitor:  e.Monitor,
		Logger:   logger,
	}
	return e, nil
}

// Start brings the lifecycle to Active: it resumes an earlier install or
// installs the manifest, then activates. A failed install leaves the edge
// without background replay.
func (e *Edge) Start(ctx context.Context) error {
	if e.Store == nil {
		return nil
	}
	restored, err := e.Coordinator.Restore(ctx)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if !restored {
		if err := e.Coordinator.Install(ctx); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}
	if e.Coordinator.State() == lifecycle.StateWaiting {
		if _, err := e.Coordinator.Activate(ctx); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}
	return nil
}

// Run runs the reconciler loop and the connectivity probe until ctx is
// cancelled. Queued actions left from an earlier run are replayed first.
func (e *Edge) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	if e.Reconciler != nil && e.Coordinator.State() == lifecycle.StateActive {
		e.Reconciler.Trigger(reconcile.Trigger{Reason: "startup"})
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.Reconciler.Run(ctx)
		}()
	}
	if e.Config.Probe.Interval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.Probe.Run(ctx)
		}()
	}
	<-ctx.Done()
	wg.Wait()
	if e.stopRec != nil {
		e.stopRec()
	}
	return ctx.Err()
}

// Status is the edge state reported on StatusPath.
type Status struct {
	State         string   `json:"state"`
	Generation    string   `json:"generation"`
	Online        bool     `json:"online"`
	Pending       int      `json:"pending"`
	Tags          []string `json:"tags"`
	Clients       int      `json:"clients"`
	InstallPrompt bool     `json:"install_prompt"`
	Durable       bool     `json:"durable"`
}

// Status returns a snapshot of the edge.
func (e *Edge) Status(ctx context.Context) (Status, error) {
	st := Status{
		State:         e.Coordinator.State().String(),
		Generation:    e.Config.Generation,
		Online:        e.Monitor.Online(),
		Tags:          []string{},
		Clients:       len(e.Hub.Clients()),
		InstallPrompt: e.Coordinator.InstallPrompt().Available(),
		Durable:       e.Store != nil,
	}
	if e.Store == nil {
		return st, nil
	}
	var err error
	if st.Pending, err = e.Store.PendingCount(ctx, ""); err != nil {
		return st, err
	}
	if st.Tags, err = e.Store.Tags(ctx); err != nil {
		return st, err
	}
	return st, nil
}

// Handler serves the proxied application and the control endpoints.
func (e *Edge) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(clients.Path, e.Hub)
	mux.HandleFunc("POST "+PushPath, e.handlePush)
	mux.HandleFunc("POST "+SyncPath, e.handleSync)
	mux.HandleFunc("GET "+StatusPath, e.handleStatus)
	mux.Handle("/", e.Proxy)
	return mux
}

func (e *Edge) handlePush(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxPushPayload))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read payload"})
		return
	}
	n, err := e.Coordinator.HandlePush(r.Context(), data)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// handleSync runs a pass for ?tag=, or for every kind, and reports it.
func (e *Edge) handleSync(w http.ResponseWriter, r *http.Request) {
	if e.Reconciler == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no durable queue"})
		return
	}
	var (
		report reconcile.Report
		err    error
	)
	if tag := r.URL.Query().Get("tag"); tag != "" {
		report, err = e.Reconciler.HandleSyncEvent(r.Context(), tag)
	} else {
		report, err = e.Reconciler.Reconcile(r.Context())
	}
	status := http.StatusOK
	if err != nil && !policy.HasCode(err, policy.ErrCodeReplayFailed) {
		status = http.StatusInternalServerError
	}
	resp := struct {
		Replayed int                    `json:"replayed"`
		Failed   int                    `json:"failed"`
		Items    []reconcile.ItemResult `json:"items"`
		Error    string                 `json:"error,omitempty"`
	}{Replayed: report.Replayed(), Failed: report.Failed(), Items: report.Items}
	if resp.Items == nil {
		resp.Items = []reconcile.ItemResult{}
	}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, status, resp)
}

func (e *Edge) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := e.Status(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
