package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/precedent-offline/internal/store"
)

func TestReplay_PostsPayloadWithIdempotencyKey(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotKey    string
		gotType   string
		gotBody   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotKey = r.Header.Get(IdempotencyHeader)
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	payload := json.RawMessage(`{"case_reference":"2023/0412/P","project_id":"p-7"}`)
	err := c.Replay(context.Background(), "/api/v1/saved-cases", store.PendingAction{
		ID:             3,
		Kind:           "saved-case-create",
		Payload:        payload,
		IdempotencyKey: "018f2b6c-0000-7000-8000-000000000003",
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/v1/saved-cases", gotPath)
	assert.Equal(t, "018f2b6c-0000-7000-8000-000000000003", gotKey)
	assert.Equal(t, "application/json", gotType)
	assert.JSONEq(t, string(payload), string(gotBody))
}

func TestReplay_NonSuccessIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"project not found"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	err := New(srv.URL).Replay(context.Background(), "/api/v1/saved-cases", store.PendingAction{
		Payload: json.RawMessage(`{}`),
	})
	require.Error(t, err)
	assert.True(t, IsStatusError(err))

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
	assert.Contains(t, se.Body, "project not found")
}

func TestReplay_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := New(url).Replay(context.Background(), "/api/v1/search-history", store.PendingAction{
		Payload: json.RawMessage(`{"query":"rear extension"}`),
	})
	require.Error(t, err)
	assert.False(t, IsStatusError(err))
}
