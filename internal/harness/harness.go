package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/roach88/precedent-offline/internal/config"
	"github.com/roach88/precedent-offline/internal/edge"
	"github.com/roach88/precedent-offline/internal/policy"
	"github.com/roach88/precedent-offline/internal/remote"
	"github.com/roach88/precedent-offline/internal/store"
	"github.com/roach88/precedent-offline/internal/testutil"
)

// edgeHost is the host scenario requests are addressed to.
const edgeHost = "http://edge.test"

// Harness is the scenario execution engine.
type Harness struct {
	origin  *testutil.Origin
	network *testutil.Network
	store   *store.Store
	edge    *edge.Edge
	handler http.Handler
	logger  *slog.Logger

	mu       sync.Mutex
	opened   []string
	lastNote string
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database and a fresh origin.
// Execution errors (a broken environment) are returned as error; a step or
// assertion that does not hold is recorded in the result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	cfg := config.Default()
	pages := testutil.ManifestPages(cfg.Manifest)
	for path, body := range scenario.Pages {
		pages[path] = body
	}
	origin := testutil.NewOrigin(pages)
	defer origin.Close()
	cfg.Origin = origin.URL
	cfg.Probe.Interval = 0

	clock := testutil.NewDeterministicClock(testutil.DefaultEpoch, 0)
	st, err := store.Open(":memory:", store.WithClock(clock.Now))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		origin:  origin,
		network: &testutil.Network{},
		store:   st,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	h.edge, err = edge.New(ctx, edge.Options{
		Config:  cfg,
		Store:   st,
		Network: h.network,
		Opener:  h.open,
		Logger:  h.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build edge: %w", err)
	}
	h.handler = h.edge.Handler()

	result := NewResult()
	for i, step := range scenario.Steps {
		ev, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Do, err)
		}
		result.AddTrace(ev)
		if step.Expect != nil {
			for _, msg := range checkExpect(step.Expect, ev) {
				result.AddError(fmt.Sprintf("step %d (%s): %s", i, step.Do, msg))
			}
		}
	}

	for _, msg := range h.evaluate(ctx, result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) open(_ context.Context, url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened = append(h.opened, url)
	return nil
}

// execute runs one step. Only environment failures are returned as error;
// edge failures are part of the trace.
func (h *Harness) execute(ctx context.Context, s Step) (TraceEvent, error) {
	ev := TraceEvent{Step: s.Do}
	co := h.edge.Coordinator

	switch s.Do {
	case StepStart:
		ev.Error = h.edge.Start(ctx) != nil
		ev.State = co.State().String()

	case StepInstall:
		ev.Error = co.Install(ctx) != nil
		ev.State = co.State().String()

	case StepActivate:
		_, err := co.Activate(ctx)
		ev.Error = err != nil
		ev.State = co.State().String()

	case StepOffline, StepOnline:
		h.network.SetDown(s.Do == StepOffline)
		online := h.edge.Probe.Check(ctx)
		ev.Online = &online

	case StepRequest:
		h.request(s, &ev)

	case StepSubmit:
		if h.edge.Outbox == nil {
			return ev, errors.New("edge has no outbox")
		}
		res, err := h.edge.Outbox.Submit(ctx, s.Kind, []byte(s.Body))
		ev.Kind = s.Kind
		ev.Queued = res.Queued
		ev.Status = res.Status
		if err != nil {
			ev.Error = true
			var se *remote.StatusError
			if errors.As(err, &se) {
				ev.Body = se.Body
			}
		}

	case StepSave:
		if h.edge.Outbox == nil {
			return ev, errors.New("edge has no outbox")
		}
		var item store.SavedItem
		if err := json.Unmarshal([]byte(s.Body), &item); err != nil {
			return ev, fmt.Errorf("save body: %w", err)
		}
		res, err := h.edge.Outbox.SaveCase(ctx, item)
		ev.Kind = res.Kind
		ev.Queued = res.Queued
		ev.Status = res.Status
		ev.Error = err != nil

	case StepReject:
		h.origin.Reject(s.Path, s.Status)
		ev.Path = s.Path
		ev.Status = s.Status

	case StepAccept:
		h.origin.Reject(s.Path, 0)
		ev.Path = s.Path

	case StepPage:
		h.origin.SetPage(s.Path, s.Body)
		ev.Path = s.Path

	case StepSync:
		if h.edge.Reconciler == nil {
			return ev, errors.New("edge has no reconciler")
		}
		var err error
		ev.Tag = s.Tag
		if s.Tag != "" {
			report, rerr := h.edge.Reconciler.HandleSyncEvent(ctx, s.Tag)
			ev.Replayed, ev.Failed, err = report.Replayed(), report.Failed(), rerr
		} else {
			report, rerr := h.edge.Reconciler.Reconcile(ctx)
			ev.Replayed, ev.Failed, err = report.Replayed(), report.Failed(), rerr
		}
		if err != nil {
			ev.Error = true
			ev.Code = errorCode(err)
		}

	case StepPush:
		n, err := co.HandlePush(ctx, []byte(s.Body))
		if err != nil {
			return ev, err
		}
		h.mu.Lock()
		h.lastNote = n.Tag
		h.mu.Unlock()
		ev.Title = n.Title
		ev.Body = n.Body
		ev.Path = n.URL

	case StepClick:
		h.mu.Lock()
		tag := h.lastNote
		before := len(h.opened)
		h.mu.Unlock()

		ev.Error = co.HandleClick(ctx, tag, s.Action) != nil

		h.mu.Lock()
		if len(h.opened) > before {
			ev.Opened = h.opened[len(h.opened)-1]
		}
		h.mu.Unlock()

	default:
		return ev, fmt.Errorf("unknown step %q", s.Do)
	}
	return ev, nil
}

// request sends a step through the edge handler as a browser would.
func (h *Harness) request(s Step, ev *TraceEvent) {
	method := s.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if s.Body != "" {
		body = strings.NewReader(s.Body)
	}
	req := httptest.NewRequest(method, edgeHost+s.Path, body)
	if s.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.Mode != "" {
		req.Header.Set("Sec-Fetch-Mode", s.Mode)
	}

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	ev.Method = method
	ev.Path = s.Path
	ev.Status = rec.Code
	ev.Cache = rec.Header().Get(policy.CacheHeader)
	ev.Body = strings.TrimSpace(rec.Body.String())
}

// errorCode returns the offline error code carried by err, if any.
func errorCode(err error) string {
	var oe *policy.OfflineError
	if errors.As(err, &oe) {
		return string(oe.Code)
	}
	return ""
}

func checkExpect(want *Expect, got TraceEvent) []string {
	var errs []string
	mismatch := func(field string, w, g any) {
		errs = append(errs, fmt.Sprintf("expected %s %v, got %v", field, w, g))
	}
	if want.Status != 0 && want.Status != got.Status {
		mismatch("status", want.Status, got.Status)
	}
	if want.Cache != "" && want.Cache != got.Cache {
		mismatch("cache", want.Cache, got.Cache)
	}
	if want.Body != "" && want.Body != got.Body {
		mismatch("body", want.Body, got.Body)
	}
	if want.Code != "" && want.Code != got.Code {
		mismatch("code", want.Code, got.Code)
	}
	if want.State != "" && want.State != got.State {
		mismatch("state", want.State, got.State)
	}
	if want.Title != "" && want.Title != got.Title {
		mismatch("title", want.Title, got.Title)
	}
	if want.Opened != "" && want.Opened != got.Opened {
		mismatch("opened", want.Opened, got.Opened)
	}
	if want.Queued != nil && *want.Queued != got.Queued {
		mismatch("queued", *want.Queued, got.Queued)
	}
	if want.Replayed != nil && *want.Replayed != got.Replayed {
		mismatch("replayed", *want.Replayed, got.Replayed)
	}
	if want.Failed != nil && *want.Failed != got.Failed {
		mismatch("failed", *want.Failed, got.Failed)
	}
	if want.Error != nil && *want.Error != got.Error {
		mismatch("error", *want.Error, got.Error)
	}
	return errs
}
