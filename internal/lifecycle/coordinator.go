package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/roach88/precedent-offline/internal/clients"
	"github.com/roach88/precedent-offline/internal/config"
	"github.com/roach88/precedent-offline/internal/policy"
	"github.com/roach88/precedent-offline/internal/store"
)

// maxAssetSize bounds one precached manifest asset.
const maxAssetSize = 16 << 20

// ErrAssetTooLarge fails an install whose manifest asset exceeds maxAssetSize.
var ErrAssetTooLarge = errors.New("asset too large to precache")

// Clients is the set of application instances the coordinator acts on.
// Implemented by *clients.Hub.
type Clients interface {
	Match(url string) []clients.Client
	Focus(id string) error
	Open(ctx context.Context, url string) error
	Claim(generation string) int
	Show(n clients.Notification) clients.Notification
	Dismiss(tag string)
	Notification(tag string) (clients.Notification, bool)
}

// Options configures a Coordinator.
type Options struct {
	Store      *store.Store
	Generation string
	Origin     string
	Manifest   []string

	// Network fetches manifest assets. It must not be the interceptor, so
	// a stale cache can never satisfy an install.
	Network http.RoundTripper

	Clients       Clients
	Notifications config.Notification
	Logger        *slog.Logger
}

// ActivateReport lists what activation changed.
type ActivateReport struct {
	Purged  []string `json:"purged"`
	Claimed int      `json:"claimed"`
}

// Coordinator owns the lifecycle state machine and the install prompt.
type Coordinator struct {
	mu    sync.Mutex
	state State

	store      *store.Store
	generation string
	origin     string
	manifest   []string
	client     *http.Client
	clients    Clients
	defaults   config.Notification
	prompt     *InstallPrompt
	logger     *slog.Logger
}

// New creates a coordinator in the Installing state.
func New(opts Options) *Coordinator {
	network := opts.Network
	if network == nil {
		network = http.DefaultTransport
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		state:      StateInstalling,
		store:      opts.Store,
		generation: opts.Generation,
		origin:     strings.TrimRight(opts.Origin, "/"),
		manifest:   append([]string(nil), opts.Manifest...),
		client:     &http.Client{Transport: network},
		clients:    opts.Clients,
		defaults:   opts.Notifications,
		prompt:     NewInstallPrompt(),
		logger:     logger,
	}
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Generation returns the current cache generation name.
func (c *Coordinator) Generation() string {
	return c.generation
}

// InstallPrompt returns the install prompt holder.
func (c *Coordinator) InstallPrompt() *InstallPrompt {
	return c.prompt
}

// Install fetches every manifest asset and stores them in the current
// generation in one transaction. If any asset fails nothing is written and
// the coordinator becomes Redundant.
func (c *Coordinator) Install(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInstalling {
		return &TransitionError{Op: "install", From: c.state}
	}

	entries := make([]store.CachedResponse, 0, len(c.manifest))
	for _, path := range c.manifest {
		entry, err := c.fetch(ctx, path)
		if err != nil {
			c.state = StateRedundant
			c.logger.Error("install failed",
				"generation", c.generation,
				"asset", path,
				"error", err,
			)
			return fmt.Errorf("install %s: %w", c.generation, err)
		}
		entries = append(entries, entry)
	}

	cache, err := c.store.OpenCache(ctx, c.generation)
	if err == nil {
		err = cache.PutAll(ctx, entries)
	}
	if err != nil {
		c.state = StateRedundant
		return fmt.Errorf("install %s: %w", c.generation, policy.StoreError(err))
	}

	c.state = StateWaiting
	c.logger.Info("installed",
		"generation", c.generation,
		"assets", len(entries),
	)
	return nil
}

// Restore resumes from an earlier install, as after a restart. When the
// current generation already holds every manifest asset the coordinator
// moves to Waiting if other generations are still present, else to Active.
// Returns false when a fresh install is needed.
func (c *Coordinator) Restore(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInstalling {
		return false, &TransitionError{Op: "restore", From: c.state}
	}

	generations, err := c.store.Generations(ctx)
	if err != nil {
		return false, policy.StoreError(err)
	}
	found := false
	for _, g := range generations {
		if g == c.generation {
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}

	cache, err := c.store.OpenCache(ctx, c.generation)
	if err != nil {
		return false, policy.StoreError(err)
	}
	for _, path := range c.manifest {
		key, err := policy.KeyFor(c.origin + path)
		if err != nil {
			return false, fmt.Errorf("restore: %w", err)
		}
		_, ok, err := cache.Match(ctx, key)
		if err != nil {
			return false, policy.StoreError(err)
		}
		if !ok {
			return false, nil
		}
	}

	c.state = StateActive
	if len(generations) > 1 {
		c.state = StateWaiting
	}
	c.logger.Info("restored",
		"generation", c.generation,
		"state", c.state.String(),
	)
	return true, nil
}

// Activate removes every cache generation except the current one and
// claims all connected instances.
func (c *Coordinator) Activate(ctx context.Context) (ActivateReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateWaiting {
		return ActivateReport{}, &TransitionError{Op: "activate", From: c.state}
	}

	generations, err := c.store.Generations(ctx)
	if err != nil {
		return ActivateReport{}, fmt.Errorf("activate: %w", policy.StoreError(err))
	}
	report := ActivateReport{Purged: []string{}}
	for _, g := range generations {
		if g == c.generation {
			continue
		}
		if err := c.store.DeleteGeneration(ctx, g); err != nil {
			return report, fmt.Errorf("activate: %w", policy.StoreError(err))
		}
		report.Purged = append(report.Purged, g)
	}

	if c.clients != nil {
		report.Claimed = c.clients.Claim(c.generation)
	}
	c.state = StateActive
	c.logger.Info("activated",
		"generation", c.generation,
		"purged", report.Purged,
		"claimed", report.Claimed,
	)
	return report, nil
}

// Retire marks the coordinator Redundant.
func (c *Coordinator) Retire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRedundant {
		return &TransitionError{Op: "retire", From: c.state}
	}
	c.state = StateRedundant
	return nil
}

// HandlePush displays a notification for a push payload.
func (c *Coordinator) HandlePush(ctx context.Context, data []byte) (clients.Notification, error) {
	payload := ParsePush(data)
	n := BuildNotification(payload, c.defaults)
	if c.clients == nil {
		return n, errors.New("handle push: no notification surface")
	}
	shown := c.clients.Show(n)
	c.logger.Debug("push handled",
		"payload", payload.Kind.String(),
		"tag", shown.Tag,
	)
	return shown, nil
}

// HandleClick dismisses the clicked notification, then focuses an instance
// already showing its URL or opens a new one. The "dismiss" action only
// dismisses.
func (c *Coordinator) HandleClick(ctx context.Context, tag, action string) error {
	if c.clients == nil {
		return errors.New("handle click: no clients")
	}
	n, ok := c.clients.Notification(tag)
	c.clients.Dismiss(tag)
	if action == "dismiss" {
		return nil
	}

	target := c.defaults.URL
	if ok && n.URL != "" {
		target = n.URL
	}
	if target == "" {
		target = "/"
	}

	if matches := c.clients.Match(target); len(matches) > 0 {
		if err := c.clients.Focus(matches[0].ID); err == nil {
			return nil
		}
	}
	if err := c.clients.Open(ctx, target); err != nil {
		return fmt.Errorf("handle click: %w", err)
	}
	return nil
}

func (c *Coordinator) fetch(ctx context.Context, path string) (store.CachedResponse, error) {
	url := c.origin + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return store.CachedResponse{}, fmt.Errorf("fetch %s: %w", path, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return store.CachedResponse{}, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return store.CachedResponse{}, fmt.Errorf("fetch %s: status %d", path, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize+1))
	if err != nil {
		return store.CachedResponse{}, fmt.Errorf("fetch %s: read body: %w", path, err)
	}
	if len(body) > maxAssetSize {
		return store.CachedResponse{}, fmt.Errorf("fetch %s: %w", path, ErrAssetTooLarge)
	}
	return store.CachedResponse{
		Key:    policy.Key(req),
		Method: http.MethodGet,
		URL:    url,
		Status: resp.StatusCode,
		Header: store.HeaderSubset(resp.Header),
		Body:   body,
	}, nil
}
