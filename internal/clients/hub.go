package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type conn struct {
	mu     sync.Mutex
	client Client
	send   chan Message
	done   chan struct{}
}

func (c *conn) snapshot() Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

// Hub is the registry of connected instances.
type Hub struct {
	mu            sync.RWMutex
	conns         map[string]*conn
	notifications map[string]Notification

	now             func() time.Time
	logger          *slog.Logger
	opener          func(ctx context.Context, url string) error
	onInstallPrompt func(available bool)
	onClick         func(ctx context.Context, tag, action string)
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// WithClock sets the time source for LastSeen and ShownAt.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// WithOpener sets how Open creates a new window when no connected instance
// can do it, e.g. by launching the system browser.
func WithOpener(f func(ctx context.Context, url string) error) Option {
	return func(h *Hub) { h.opener = f }
}

// OnInstallPrompt registers f for install-prompt availability reports.
func OnInstallPrompt(f func(available bool)) Option {
	return func(h *Hub) { h.onInstallPrompt = f }
}

// OnNotificationClick registers f for notification clicks reported by
// instances.
func OnNotificationClick(f func(ctx context.Context, tag, action string)) Option {
	return func(h *Hub) { h.onClick = f }
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		conns:         map[string]*conn{},
		notifications: map[string]Notification{},
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Clients returns every connected instance ordered by id.
func (h *Hub) Clients() []Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Client, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Match returns the instances currently displaying url.
func (h *Hub) Match(url string) []Client {
	var out []Client
	for _, c := range h.Clients() {
		if SameTarget(c.URL, url) {
			out = append(out, c)
		}
	}
	return out
}

// Focus asks instance id to take focus.
func (h *Hub) Focus(id string) error {
	c, ok := h.get(id)
	if !ok {
		return fmt.Errorf("focus %s: %w", id, ErrNoClient)
	}
	h.mu.RLock()
	for _, other := range h.conns {
		other.mu.Lock()
		other.client.Focused = other == c
		other.mu.Unlock()
	}
	h.mu.RUnlock()
	return h.deliver(c, Message{Type: "focus", ID: id})
}

// Open shows url in a new window. The configured opener is preferred;
// otherwise the focused (or any) connected instance is asked to open it.
func (h *Hub) Open(ctx context.Context, url string) error {
	if h.opener != nil {
		if err := h.opener(ctx, url); err != nil {
			return fmt.Errorf("open %s: %w", url, err)
		}
		return nil
	}
	c, ok := h.pick()
	if !ok {
		return fmt.Errorf("open %s: %w", url, ErrNoClient)
	}
	return h.deliver(c, Message{Type: "open", URL: url})
}

// Claim makes every connected instance controlled by generation and
// returns how many were claimed.
func (h *Hub) Claim(generation string) int {
	h.mu.RLock()
	conns := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	n := 0
	for _, c := range conns {
		c.mu.Lock()
		c.client.Generation = generation
		c.mu.Unlock()
		if h.deliver(c, Message{Type: "claim", Generation: generation}) == nil {
			n++
		}
	}
	return n
}

// Show displays n on every connected instance. A notification with the
// same tag as a visible one replaces it. An empty tag is assigned.
func (h *Hub) Show(n Notification) Notification {
	if n.Tag == "" {
		n.Tag = uuid.NewString()
	}
	n.ShownAt = h.now().UTC()

	h.mu.Lock()
	h.notifications[n.Tag] = n
	h.mu.Unlock()

	h.broadcast(Message{Type: "notification", Notification: &n})
	h.logger.Info("notification shown", "tag", n.Tag, "title", n.Title)
	return n
}

// Dismiss closes the notification with tag. Unknown tags are ignored.
func (h *Hub) Dismiss(tag string) {
	h.mu.Lock()
	_, ok := h.notifications[tag]
	delete(h.notifications, tag)
	h.mu.Unlock()
	if ok {
		h.broadcast(Message{Type: "dismiss", Tag: tag})
	}
}

// Notification returns the visible notification with tag.
func (h *Hub) Notification(tag string) (Notification, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n, ok := h.notifications[tag]
	return n, ok
}

// Notifications returns the visible notifications, oldest first.
func (h *Hub) Notifications() []Notification {
	h.mu.RLock()
	out := make([]Notification, 0, len(h.notifications))
	for _, n := range h.notifications {
		out = append(out, n)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ShownAt.Equal(out[j].ShownAt) {
			return out[i].ShownAt.Before(out[j].ShownAt)
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

// ServeHTTP upgrades the request and serves one instance until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("client upgrade failed", "error", err)
		return
	}
	defer func() { _ = ws.Close() }()

	c := &conn{
		client: Client{ID: uuid.NewString(), LastSeen: h.now().UTC()},
		send:   make(chan Message, sendBuffer),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	h.conns[c.client.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client connected", "id", c.client.ID)

	defer func() {
		h.mu.Lock()
		delete(h.conns, c.client.ID)
		h.mu.Unlock()
		close(c.done)
		h.logger.Debug("client disconnected", "id", c.client.ID)
	}()

	go h.writePump(ws, c)
	_ = h.deliver(c, Message{Type: "welcome", ID: c.client.ID})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = h.deliver(c, Message{Type: "error", Error: "invalid message format"})
			continue
		}
		h.handle(r.Context(), c, msg)
	}
}

func (h *Hub) handle(ctx context.Context, c *conn, msg Message) {
	c.mu.Lock()
	c.client.LastSeen = h.now().UTC()
	c.mu.Unlock()

	switch msg.Type {
	case "hello", "navigate":
		c.mu.Lock()
		c.client.URL = msg.URL
		if msg.Generation != "" {
			c.client.Generation = msg.Generation
		}
		c.mu.Unlock()
	case "focus":
		h.mu.RLock()
		for _, other := range h.conns {
			other.mu.Lock()
			other.client.Focused = other == c
			other.mu.Unlock()
		}
		h.mu.RUnlock()
	case "install-prompt":
		if h.onInstallPrompt != nil && msg.Available != nil {
			h.onInstallPrompt(*msg.Available)
		}
	case "notification-click":
		if h.onClick != nil {
			h.onClick(ctx, msg.Tag, msg.Action)
		}
	default:
		_ = h.deliver(c, Message{Type: "error", Error: "unknown message type: " + msg.Type})
	}
}

func (h *Hub) writePump(ws *websocket.Conn, c *conn) {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = ws.Close()
				return
			}
		}
	}
}

// deliver queues msg for c without blocking.
func (h *Hub) deliver(c *conn, msg Message) error {
	select {
	case <-c.done:
		return fmt.Errorf("deliver %s: %w", msg.Type, ErrNoClient)
	case c.send <- msg:
		return nil
	default:
		h.logger.Warn("client send buffer full, dropping message",
			"id", c.client.ID,
			"type", msg.Type,
		)
		return fmt.Errorf("deliver %s: send buffer full", msg.Type)
	}
}

func (h *Hub) broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.conns {
		_ = h.deliver(c, msg)
	}
}

func (h *Hub) get(id string) (*conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[id]
	return c, ok
}

// pick returns the focused instance, else the one seen most recently.
func (h *Hub) pick() (*conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var best *conn
	var bestClient Client
	for _, c := range h.conns {
		snap := c.snapshot()
		if best == nil || (snap.Focused && !bestClient.Focused) ||
			(snap.Focused == bestClient.Focused && snap.LastSeen.After(bestClient.LastSeen)) {
			best, bestClient = c, snap
		}
	}
	return best, best != nil
}
