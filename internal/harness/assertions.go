package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", ev.Seq, ev.Step, ev.Method, ev.Path)
		}
	}
	return buf.String()
}

// evaluate runs every assertion and returns the failure messages.
func (h *Harness) evaluate(ctx context.Context, result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := h.assert(ctx, result.Trace, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func (h *Harness) assert(ctx context.Context, trace []TraceEvent, a Assertion) error {
	switch a.Type {
	case AssertPending:
		n, err := h.store.PendingCount(ctx, a.Kind)
		if err != nil {
			return fmt.Errorf("pending assertion: %w", err)
		}
		return expectCount(a.Type, describeKind(a.Kind)+" pending actions", a.Count, n, trace)

	case AssertDelivered:
		n := 0
		keys := map[string]bool{}
		for _, m := range h.origin.Mutations() {
			if m.Path == a.Path {
				n++
				keys[m.IdempotencyKey] = true
			}
		}
		if err := expectCount(a.Type, "mutations on "+a.Path, a.Count, n, trace); err != nil {
			return err
		}
		if len(keys) != n {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d distinct idempotency keys on %s", n, a.Path),
				Actual:   fmt.Sprintf("%d distinct keys", len(keys)),
				Trace:    trace,
			}
		}
		return nil

	case AssertState:
		got := h.edge.Coordinator.State().String()
		if got != a.State {
			return &AssertionError{
				Type:     a.Type,
				Expected: "lifecycle " + a.State,
				Actual:   "lifecycle " + got,
				Trace:    trace,
			}
		}
		return nil

	case AssertTags:
		tags, err := h.store.Tags(ctx)
		if err != nil {
			return fmt.Errorf("tags assertion: %w", err)
		}
		want := append([]string{}, a.Tags...)
		slices.Sort(want)
		got := append([]string{}, tags...)
		slices.Sort(got)
		if !slices.Equal(want, got) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("tags %v", want),
				Actual:   fmt.Sprintf("tags %v", got),
				Trace:    trace,
			}
		}
		return nil

	case AssertSaved:
		items, err := h.store.ListSavedItems(ctx)
		if err != nil {
			return fmt.Errorf("saved assertion: %w", err)
		}
		return expectCount(a.Type, "saved items", a.Count, len(items), trace)

	case AssertTraceCount:
		n := 0
		for _, ev := range trace {
			if ev.Step == a.Step {
				n++
			}
		}
		return expectCount(a.Type, a.Step+" steps", a.Count, n, trace)

	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func expectCount(typ, what string, want, got int, trace []TraceEvent) error {
	if want == got {
		return nil
	}
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("%d %s", want, what),
		Actual:   fmt.Sprintf("%d", got),
		Trace:    trace,
	}
}

func describeKind(kind string) string {
	if kind == "" {
		return "all"
	}
	return kind
}
