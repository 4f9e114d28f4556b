package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// CachedResponse is a stored successful GET response.
type CachedResponse struct {
	Generation string
	Key        string
	Method     string
	URL        string
	Status     int
	Header     http.Header
	Body       []byte
	CapturedAt time.Time
}

// Cache is one cache generation. All reads and writes are scoped to it.
type Cache struct {
	store *Store
	name  string
}

// OpenCache returns the named cache generation, creating it if needed.
func (s *Store) OpenCache(ctx context.Context, name string) (*Cache, error) {
	if name == "" {
		return nil, fmt.Errorf("open cache: empty generation name")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_generations (name, created_at) VALUES (?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, s.stamp())
	if err != nil {
		return nil, fmt.Errorf("open cache %q: %w", name, err)
	}
	return &Cache{store: s, name: name}, nil
}

// Generations lists every cache generation present, oldest first.
func (s *Store) Generations(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, "generations", `
		SELECT name FROM cache_generations ORDER BY created_at ASC, name COLLATE BINARY ASC
	`)
}

// DeleteGeneration removes a generation and every entry in it.
// Deleting an unknown generation is a no-op.
func (s *Store) DeleteGeneration(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete generation %q: begin tx: %w", name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE generation = ?`, name); err != nil {
		return fmt.Errorf("delete generation %q: entries: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_generations WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete generation %q: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete generation %q: commit: %w", name, err)
	}
	return nil
}

// Name returns the generation name.
func (c *Cache) Name() string {
	return c.name
}

// Match looks up a cached response by request key.
// Returns ok=false when nothing is stored under the key.
func (c *Cache) Match(ctx context.Context, key string) (CachedResponse, bool, error) {
	row := c.store.db.QueryRowContext(ctx, `
		SELECT key, method, url, status, header, body, captured_at
		FROM cache_entries
		WHERE generation = ? AND key = ?
	`, c.name, key)

	var (
		r          CachedResponse
		header     string
		body       []byte
		capturedAt int64
	)
	err := row.Scan(&r.Key, &r.Method, &r.URL, &r.Status, &header, &body, &capturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CachedResponse{}, false, nil
	}
	if err != nil {
		return CachedResponse{}, false, fmt.Errorf("cache match: %w", err)
	}

	if r.Header, err = unmarshalHeader(header); err != nil {
		return CachedResponse{}, false, fmt.Errorf("cache match: %w", err)
	}
	if r.Body, err = decodeBody(body); err != nil {
		return CachedResponse{}, false, fmt.Errorf("cache match: %w", err)
	}
	r.Generation = c.name
	r.CapturedAt = fromStamp(capturedAt)
	return r, true, nil
}

// Put stores a response, replacing any previous entry under the same key.
func (c *Cache) Put(ctx context.Context, r CachedResponse) error {
	return c.PutAll(ctx, []CachedResponse{r})
}

// PutAll stores several responses in one transaction. Either every entry
// is written or none is.
func (c *Cache) PutAll(ctx context.Context, responses []CachedResponse) error {
	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache put: begin tx: %w", err)
	}
	defer tx.Rollback()

	capturedAt := c.store.stamp()
	for _, r := range responses {
		if r.Key == "" {
			return fmt.Errorf("cache put: empty key for %s", r.URL)
		}
		header, err := marshalHeader(r.Header)
		if err != nil {
			return fmt.Errorf("cache put %s: %w", r.Key, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cache_entries
			(generation, key, method, url, status, header, body, captured_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(generation, key) DO UPDATE SET
				method = excluded.method,
				url = excluded.url,
				status = excluded.status,
				header = excluded.header,
				body = excluded.body,
				captured_at = excluded.captured_at
		`,
			c.name,
			r.Key,
			r.Method,
			r.URL,
			r.Status,
			header,
			encodeBody(r.Body),
			capturedAt,
		)
		if err != nil {
			return fmt.Errorf("cache put %s: %w", r.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache put: commit: %w", err)
	}
	return nil
}

// Delete removes one entry. Unknown keys are ignored.
func (c *Cache) Delete(ctx context.Context, key string) error {
	_, err := c.store.db.ExecContext(ctx, `
		DELETE FROM cache_entries WHERE generation = ? AND key = ?
	`, c.name, key)
	if err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	return nil
}

// Keys lists the keys stored in this generation, sorted.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	return c.store.queryStrings(ctx, "cache keys", `
		SELECT key FROM cache_entries WHERE generation = ? ORDER BY key COLLATE BINARY ASC
	`, c.name)
}
