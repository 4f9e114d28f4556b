package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// TagPrefix prefixes every background-sync registration tag.
const TagPrefix = "sync-"

// PendingAction is a mutation queued while the origin was unreachable.
type PendingAction struct {
	ID             int64           `json:"id"`
	Kind           string          `json:"kind"`
	Payload        json.RawMessage `json:"payload"`
	IdempotencyKey string          `json:"idempotency_key"`
	EnqueuedAt     time.Time       `json:"enqueued_at"`
}

type enqueueRequest struct {
	Kind    string `validate:"required,max=64"`
	Payload string `validate:"required,json"`
}

// SyncTag returns the background-sync tag for a pending action kind.
func SyncTag(kind string) string {
	return TagPrefix + kind
}

// KindFromTag extracts the kind from a sync tag.
// Returns false if the tag does not carry the sync prefix.
func KindFromTag(tag string) (string, bool) {
	kind, ok := strings.CutPrefix(tag, TagPrefix)
	if !ok || kind == "" {
		return "", false
	}
	return kind, true
}

// Enqueue appends a pending action and returns it with its assigned id.
// The row is committed before Enqueue returns.
//
// Each call creates a new record; identical payloads are not deduplicated.
// The idempotency key is a UUIDv7 sent with every replay of this action.
func (s *Store) Enqueue(ctx context.Context, kind string, payload json.RawMessage) (PendingAction, error) {
	req := enqueueRequest{Kind: kind, Payload: string(payload)}
	if err := validate.Struct(req); err != nil {
		return PendingAction{}, fmt.Errorf("enqueue: invalid action: %w", err)
	}

	key, err := uuid.NewV7()
	if err != nil {
		return PendingAction{}, fmt.Errorf("enqueue: idempotency key: %w", err)
	}

	enqueuedAt := s.stamp()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_actions (kind, payload, idempotency_key, enqueued_at)
		VALUES (?, ?, ?, ?)
	`, kind, string(payload), key.String(), enqueuedAt)
	if err != nil {
		return PendingAction{}, fmt.Errorf("enqueue: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return PendingAction{}, fmt.Errorf("enqueue: last insert id: %w", err)
	}

	return PendingAction{
		ID:             id,
		Kind:           kind,
		Payload:        append(json.RawMessage(nil), payload...),
		IdempotencyKey: key.String(),
		EnqueuedAt:     fromStamp(enqueuedAt),
	}, nil
}

// ListPending returns all pending actions of a kind, oldest first. An
// empty kind lists every kind, in enqueue order.
// Returns an empty slice (not nil) if nothing is queued.
func (s *Store) ListPending(ctx context.Context, kind string) ([]PendingAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, payload, idempotency_key, enqueued_at
		FROM pending_actions
		WHERE ? = '' OR kind = ?
		ORDER BY id ASC
	`, kind, kind)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	actions := []PendingAction{}
	for rows.Next() {
		var (
			a          PendingAction
			payload    string
			enqueuedAt int64
		)
		if err := rows.Scan(&a.ID, &a.Kind, &payload, &a.IdempotencyKey, &enqueuedAt); err != nil {
			return nil, fmt.Errorf("list pending: scan: %w", err)
		}
		a.Payload = json.RawMessage(payload)
		a.EnqueuedAt = fromStamp(enqueuedAt)
		actions = append(actions, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending: iterate: %w", err)
	}

	return actions, nil
}

// Remove deletes a pending action. Removing an unknown id is a no-op.
func (s *Store) Remove(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_actions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove pending %d: %w", id, err)
	}
	return nil
}

// PendingCount returns the number of queued actions of a kind.
// An empty kind counts every queued action.
func (s *Store) PendingCount(ctx context.Context, kind string) (int, error) {
	var (
		count int
		err   error
	)
	if kind == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_actions`).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_actions WHERE kind = ?`, kind).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("pending count: %w", err)
	}
	return count, nil
}

// PendingKinds returns the distinct kinds with queued actions, sorted by name.
func (s *Store) PendingKinds(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, "pending kinds", `
		SELECT DISTINCT kind FROM pending_actions ORDER BY kind COLLATE BINARY ASC
	`)
}

// RegisterTag records a background-sync registration.
// Registering the same tag twice keeps the original registration.
func (s *Store) RegisterTag(ctx context.Context, tag string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_tags (tag, registered_at) VALUES (?, ?)
		ON CONFLICT(tag) DO NOTHING
	`, tag, s.stamp())
	if err != nil {
		return fmt.Errorf("register tag %q: %w", tag, err)
	}
	return nil
}

// UnregisterTag drops a background-sync registration. Unknown tags are ignored.
func (s *Store) UnregisterTag(ctx context.Context, tag string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sync_tags WHERE tag = ?`, tag); err != nil {
		return fmt.Errorf("unregister tag %q: %w", tag, err)
	}
	return nil
}

// Tags returns every registered sync tag in registration order.
func (s *Store) Tags(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, "tags", `
		SELECT tag FROM sync_tags ORDER BY registered_at ASC, tag COLLATE BINARY ASC
	`)
}

func (s *Store) queryStrings(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return out, nil
}
