package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/precedent-offline/internal/policy"
	"github.com/roach88/precedent-offline/internal/store"
)

// ErrUnknownKind marks pending actions whose kind has no replay endpoint.
var ErrUnknownKind = errors.New("no endpoint for action kind")

// Outcome is the result of replaying one pending action.
type Outcome string

const (
	OutcomeReplayed Outcome = "replayed"
	OutcomeFailed   Outcome = "failed"
)

// ItemResult records what happened to one pending action in a pass.
type ItemResult struct {
	Kind    string  `json:"kind"`
	ID      int64   `json:"id"`
	Outcome Outcome `json:"outcome"`
	Err     error   `json:"-"`
}

// Report summarizes a reconcile pass.
type Report struct {
	Items []ItemResult `json:"items"`
}

// Replayed returns the number of actions delivered and removed.
func (r Report) Replayed() int { return r.count(OutcomeReplayed) }

// Failed returns the number of actions left queued.
func (r Report) Failed() int { return r.count(OutcomeFailed) }

func (r Report) count(o Outcome) int {
	n := 0
	for _, item := range r.Items {
		if item.Outcome == o {
			n++
		}
	}
	return n
}

// Reconciler drains the durable queue through a Replayer.
type Reconciler struct {
	store     *store.Store
	replayer  Replayer
	endpoints map[string]string
	logger    *slog.Logger
	queue     *triggerQueue
	onReport  func(Trigger, Report, error)
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the reconciler logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// WithReportHook registers f to observe every pass run by Run.
func WithReportHook(f func(Trigger, Report, error)) Option {
	return func(r *Reconciler) {
		r.onReport = f
	}
}

// New creates a Reconciler. endpoints maps each kind to its replay path.
func New(s *store.Store, replayer Replayer, endpoints map[string]string, opts ...Option) *Reconciler {
	e := make(map[string]string, len(endpoints))
	for kind, endpoint := range endpoints {
		e[kind] = endpoint
	}
	r := &Reconciler{
		store:     s,
		replayer:  replayer,
		endpoints: e,
		logger:    slog.Default(),
		queue:     newTriggerQueue(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile replays pending actions of the given kinds, or of every kind
// with queued actions or a registered tag when none are given.
//
// A failed action stays queued and does not stop the pass. The returned
// error is reserved for store failures and cancellation.
func (r *Reconciler) Reconcile(ctx context.Context, kinds ...string) (Report, error) {
	if len(kinds) == 0 {
		all, err := r.knownKinds(ctx)
		if err != nil {
			return Report{}, err
		}
		kinds = all
	}

	var report Report
	for _, kind := range kinds {
		if err := r.reconcileKind(ctx, kind, &report); err != nil {
			return report, err
		}
	}
	return report, nil
}

// HandleSyncEvent runs a pass for the kind named by a background-sync tag.
// It fails when any action is left queued, so the event is retried on the
// next connectivity change.
func (r *Reconciler) HandleSyncEvent(ctx context.Context, tag string) (Report, error) {
	kind, ok := store.KindFromTag(tag)
	if !ok {
		return Report{}, fmt.Errorf("sync event: unrecognized tag %q", tag)
	}
	report, err := r.Reconcile(ctx, kind)
	if err != nil {
		return report, err
	}
	if n := report.Failed(); n > 0 {
		return report, &policy.OfflineError{
			Code:    policy.ErrCodeReplayFailed,
			Message: fmt.Sprintf("%d %s action(s) still queued", n, kind),
		}
	}
	return report, nil
}

func (r *Reconciler) reconcileKind(ctx context.Context, kind string, report *Report) error {
	pending, err := r.store.ListPending(ctx, kind)
	if err != nil {
		return policy.StoreError(err)
	}
	endpoint, known := r.endpoints[kind]

	for _, action := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		var replayErr error
		if !known {
			replayErr = fmt.Errorf("%w: %s", ErrUnknownKind, kind)
		} else {
			replayErr = r.replayer.Replay(ctx, endpoint, action)
		}

		if replayErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("replay failed, action stays queued",
				"kind", kind,
				"id", action.ID,
				"enqueued_at", action.EnqueuedAt,
				"error", replayErr,
			)
			report.Items = append(report.Items, ItemResult{
				Kind:    kind,
				ID:      action.ID,
				Outcome: OutcomeFailed,
				Err: &policy.OfflineError{
					Code:    policy.ErrCodeReplayFailed,
					Message: "replay rejected",
					URL:     endpoint,
					Err:     replayErr,
				},
			})
			continue
		}

		if err := r.store.Remove(ctx, action.ID); err != nil {
			// Delivered but still queued: the idempotency key covers the
			// duplicate on the next pass.
			return policy.StoreError(err)
		}
		r.logger.Info("action replayed",
			"kind", kind,
			"id", action.ID,
		)
		report.Items = append(report.Items, ItemResult{Kind: kind, ID: action.ID, Outcome: OutcomeReplayed})
	}

	remaining, err := r.store.PendingCount(ctx, kind)
	if err != nil {
		return policy.StoreError(err)
	}
	if remaining == 0 {
		if err := r.store.UnregisterTag(ctx, store.SyncTag(kind)); err != nil {
			return policy.StoreError(err)
		}
	}
	return nil
}

// knownKinds returns every kind with queued actions or a registered tag.
func (r *Reconciler) knownKinds(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}

	kinds, err := r.store.PendingKinds(ctx)
	if err != nil {
		return nil, policy.StoreError(err)
	}
	for _, k := range kinds {
		seen[k] = true
	}

	tags, err := r.store.Tags(ctx)
	if err != nil {
		return nil, policy.StoreError(err)
	}
	for _, tag := range tags {
		if k, ok := store.KindFromTag(tag); ok {
			seen[k] = true
		}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}
