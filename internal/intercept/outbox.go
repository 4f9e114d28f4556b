package intercept

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/roach88/precedent-offline/internal/config"
	"github.com/roach88/precedent-offline/internal/policy"
	"github.com/roach88/precedent-offline/internal/remote"
	"github.com/roach88/precedent-offline/internal/store"
)

// ErrUnknownKind is returned for a pending action kind with no endpoint.
var ErrUnknownKind = errors.New("unknown action kind")

// maxSubmitBody bounds the response body kept in a Result.
const maxSubmitBody = 1 << 20

// Result is the outcome of a submitted mutation.
type Result struct {
	// Queued is true when the origin was unreachable and the mutation was
	// stored for replay.
	Queued bool `json:"queued"`

	ID   int64  `json:"id,omitempty"`
	Kind string `json:"kind"`

	// Status and Body are set when the origin answered.
	Status int             `json:"status,omitempty"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// SavedCase is the request body of saved-case-create.
type SavedCase struct {
	CaseReference string   `json:"case_reference"`
	ProjectID     string   `json:"project_id,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	Tags          []string `json:"tags"`
}

// SearchEntry is the request body of search-history-append.
type SearchEntry struct {
	Query        string         `json:"query"`
	Filters      map[string]any `json:"filters,omitempty"`
	ResultsCount int            `json:"results_count"`
}

// Outbox submits mutations through the interceptor and queues them when
// the origin cannot be reached.
type Outbox struct {
	client *http.Client
	origin string
	store  *store.Store
	kinds  map[string]string
	logger *slog.Logger
}

// NewOutbox creates an outbox. kinds maps each action kind to its endpoint
// path on the interceptor's origin.
func NewOutbox(ic *Interceptor, s *store.Store, kinds map[string]string, logger *slog.Logger) *Outbox {
	if logger == nil {
		logger = slog.Default()
	}
	k := make(map[string]string, len(kinds))
	for kind, endpoint := range kinds {
		k[kind] = endpoint
	}
	return &Outbox{
		client: &http.Client{Transport: ic},
		origin: ic.Origin(),
		store:  s,
		kinds:  k,
		logger: logger,
	}
}

// Endpoint returns the endpoint path for kind.
func (o *Outbox) Endpoint(kind string) (string, bool) {
	endpoint, ok := o.kinds[kind]
	return endpoint, ok
}

// Submit posts payload to the kind's endpoint. On a connectivity failure
// the payload is queued unchanged and a queued Result is returned.
// A non-2xx answer from the origin is returned as *remote.StatusError
// alongside the Result.
func (o *Outbox) Submit(ctx context.Context, kind string, payload json.RawMessage) (Result, error) {
	endpoint, ok := o.kinds[kind]
	if !ok {
		return Result{}, fmt.Errorf("submit %q: %w", kind, ErrUnknownKind)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.origin+endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("submit %q: build request: %w", kind, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		if !policy.IsNetworkError(err) {
			return Result{}, fmt.Errorf("submit %q: %w", kind, err)
		}
		action, qerr := o.Queue(ctx, kind, payload)
		if qerr != nil {
			return Result{}, fmt.Errorf("submit %q: %w", kind, qerr)
		}
		return Result{Queued: true, ID: action.ID, Kind: kind}, nil
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSubmitBody))
	if err != nil {
		return Result{}, fmt.Errorf("submit %q: read response: %w", kind, err)
	}
	result := Result{Kind: kind, Status: resp.StatusCode}
	if json.Valid(body) {
		result.Body = body
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, &remote.StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	return result, nil
}

// Queue stores payload as a pending action of kind and registers the
// kind's sync tag. The action is durable when Queue returns.
func (o *Outbox) Queue(ctx context.Context, kind string, payload json.RawMessage) (store.PendingAction, error) {
	if o.store == nil {
		return store.PendingAction{}, policy.StoreError(errors.New("no durable queue"))
	}
	action, err := o.store.Enqueue(ctx, kind, payload)
	if err != nil {
		return store.PendingAction{}, policy.StoreError(err)
	}
	if err := o.store.RegisterTag(ctx, store.SyncTag(kind)); err != nil {
		// The action is already durable; the next reconcile of all kinds
		// still picks it up.
		o.logger.Warn("sync tag registration failed",
			"kind", kind,
			"id", action.ID,
			"error", err,
		)
	}
	o.logger.Info("mutation queued for replay",
		"kind", kind,
		"id", action.ID,
	)
	return action, nil
}

// SaveCase mirrors the saved case locally and submits it to the origin.
func (o *Outbox) SaveCase(ctx context.Context, item store.SavedItem) (Result, error) {
	if o.store != nil {
		saved, err := o.store.PutSavedItem(ctx, item)
		if err != nil {
			return Result{}, fmt.Errorf("save case: %w", err)
		}
		item = saved
	}
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	payload, err := json.Marshal(SavedCase{
		CaseReference: item.BusinessKey,
		ProjectID:     item.ProjectID,
		Notes:         item.Notes,
		Tags:          tags,
	})
	if err != nil {
		return Result{}, fmt.Errorf("save case: marshal: %w", err)
	}
	return o.Submit(ctx, config.KindSavedCaseCreate, payload)
}

// AppendSearch records a search in the remote history.
func (o *Outbox) AppendSearch(ctx context.Context, entry SearchEntry) (Result, error) {
	if strings.TrimSpace(entry.Query) == "" {
		return Result{}, errors.New("append search: empty query")
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return Result{}, fmt.Errorf("append search: marshal: %w", err)
	}
	return o.Submit(ctx, config.KindSearchHistoryAppend, payload)
}
