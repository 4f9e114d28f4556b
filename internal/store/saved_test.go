package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSavedItem_LastWriteWins(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.PutSavedItem(ctx, SavedItem{BusinessKey: "2023/4567/P", Notes: "first"})
	require.NoError(t, err)
	_, err = s.PutSavedItem(ctx, SavedItem{BusinessKey: "2023/4567/P", Notes: "second", Tags: []string{"rear-extension"}})
	require.NoError(t, err)

	items, err := s.ListSavedItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1, "one local copy per business key")
	assert.Equal(t, "second", items[0].Notes)
	assert.Equal(t, []string{"rear-extension"}, items[0].Tags)
}

func TestSavedItem_GetAndDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	savedAt := time.Date(2024, 5, 2, 14, 30, 0, 0, time.UTC)
	put, err := s.PutSavedItem(ctx, SavedItem{
		BusinessKey: "2022/1111/P",
		ProjectID:   "proj-1",
		SavedAt:     savedAt,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{}, put.Tags)

	got, err := s.GetSavedItem(ctx, "2022/1111/P")
	require.NoError(t, err)
	assert.Equal(t, "proj-1", got.ProjectID)
	assert.True(t, savedAt.Equal(got.SavedAt))

	require.NoError(t, s.DeleteSavedItem(ctx, "2022/1111/P"))
	require.NoError(t, s.DeleteSavedItem(ctx, "2022/1111/P"))

	_, err = s.GetSavedItem(ctx, "2022/1111/P")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSavedItem_StampsSavedAt(t *testing.T) {
	s := createTestStore(t)

	item, err := s.PutSavedItem(context.Background(), SavedItem{BusinessKey: "2021/0002/P"})
	require.NoError(t, err)
	assert.False(t, item.SavedAt.IsZero())
}

func TestSavedItem_Validation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.PutSavedItem(ctx, SavedItem{})
	assert.Error(t, err, "business key is required")

	_, err = s.PutSavedItem(ctx, SavedItem{BusinessKey: "2021/0003/P", Tags: []string{""}})
	assert.Error(t, err, "empty tags are rejected")

	items, err := s.ListSavedItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}
