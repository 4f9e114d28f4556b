package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("not found")

// SavedItem is the local copy of a saved case, keyed by its case reference.
type SavedItem struct {
	BusinessKey string    `json:"case_reference" validate:"required,max=128"`
	ProjectID   string    `json:"project_id,omitempty" validate:"max=128"`
	Notes       string    `json:"notes,omitempty" validate:"max=4096"`
	Tags        []string  `json:"tags,omitempty" validate:"dive,required,max=64"`
	SavedAt     time.Time `json:"saved_at"`
}

// PutSavedItem stores a saved item. A later put for the same business key
// replaces the earlier one. A zero SavedAt is stamped with the store clock.
func (s *Store) PutSavedItem(ctx context.Context, item SavedItem) (SavedItem, error) {
	if err := validate.Struct(item); err != nil {
		return SavedItem{}, fmt.Errorf("put saved item: %w", err)
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	if item.SavedAt.IsZero() {
		item.SavedAt = s.now().UTC()
	}

	tags, err := json.Marshal(item.Tags)
	if err != nil {
		return SavedItem{}, fmt.Errorf("put saved item: marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO saved_items (business_key, project_id, notes, tags, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(business_key) DO UPDATE SET
			project_id = excluded.project_id,
			notes = excluded.notes,
			tags = excluded.tags,
			saved_at = excluded.saved_at
	`,
		item.BusinessKey,
		item.ProjectID,
		item.Notes,
		string(tags),
		item.SavedAt.UTC().UnixNano(),
	)
	if err != nil {
		return SavedItem{}, fmt.Errorf("put saved item %q: %w", item.BusinessKey, err)
	}
	item.SavedAt = item.SavedAt.UTC()
	return item, nil
}

// GetSavedItem returns the saved item for a business key, or ErrNotFound.
func (s *Store) GetSavedItem(ctx context.Context, key string) (SavedItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT business_key, project_id, notes, tags, saved_at
		FROM saved_items
		WHERE business_key = ?
	`, key)

	item, err := scanSavedItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedItem{}, fmt.Errorf("saved item %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return SavedItem{}, fmt.Errorf("saved item %q: %w", key, err)
	}
	return item, nil
}

// ListSavedItems returns every saved item ordered by business key.
func (s *Store) ListSavedItems(ctx context.Context) ([]SavedItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT business_key, project_id, notes, tags, saved_at
		FROM saved_items
		ORDER BY business_key COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list saved items: %w", err)
	}
	defer rows.Close()

	items := []SavedItem{}
	for rows.Next() {
		item, err := scanSavedItem(rows)
		if err != nil {
			return nil, fmt.Errorf("list saved items: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list saved items: iterate: %w", err)
	}
	return items, nil
}

// DeleteSavedItem removes the local copy. Unknown keys are ignored.
func (s *Store) DeleteSavedItem(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM saved_items WHERE business_key = ?`, key); err != nil {
		return fmt.Errorf("delete saved item %q: %w", key, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSavedItem(row rowScanner) (SavedItem, error) {
	var (
		item    SavedItem
		tags    string
		savedAt int64
	)
	if err := row.Scan(&item.BusinessKey, &item.ProjectID, &item.Notes, &tags, &savedAt); err != nil {
		return SavedItem{}, err
	}
	if err := json.Unmarshal([]byte(tags), &item.Tags); err != nil {
		return SavedItem{}, fmt.Errorf("unmarshal tags: %w", err)
	}
	item.SavedAt = fromStamp(savedAt)
	return item, nil
}
