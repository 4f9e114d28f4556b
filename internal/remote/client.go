// Package remote replays queued mutations against the application origin.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/roach88/precedent-offline/internal/store"
)

// IdempotencyHeader carries the per-action key so the origin can drop
// duplicate deliveries of the same mutation.
const IdempotencyHeader = "X-Idempotency-Key"

// maxErrorBody bounds how much of a rejected response is kept for diagnostics.
const maxErrorBody = 4 << 10

// StatusError is returned when the origin answers with a non-2xx status.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("replay %s: status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("replay %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// IsStatusError reports whether err carries a remote status rejection.
func IsStatusError(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

// Client posts pending actions to the origin.
type Client struct {
	base   string
	http   *http.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// New creates a client for the origin at base, e.g. "https://precedent.test".
func New(base string, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Replay posts the action payload to endpoint exactly as it was queued.
// Any 2xx answer is success.
func (c *Client) Replay(ctx context.Context, endpoint string, action store.PendingAction) error {
	url := c.base + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(action.Payload))
	if err != nil {
		return fmt.Errorf("replay %s: build request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if action.IdempotencyKey != "" {
		req.Header.Set(IdempotencyHeader, action.IdempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("replay %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug("action replayed",
		"id", action.ID,
		"kind", action.Kind,
		"endpoint", endpoint,
		"status", resp.StatusCode,
	)
	return nil
}
