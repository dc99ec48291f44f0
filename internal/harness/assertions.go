package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/fusion/internal/card"
	"github.com/roach88/fusion/internal/store"
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
			fmt.Fprintf(&buf, "  [%d] %s", ev.Seq, ev.Kind)
			if ev.Handle != "" {
				fmt.Fprintf(&buf, " %s", ev.Handle)
			}
			if ev.Cards != nil {
				fmt.Fprintf(&buf, " %v", ev.Cards)
			}
			fmt.Fprintf(&buf, " -> selected=%v eligible=%t", ev.Outcome.Selected, ev.Outcome.Eligible)
			if ev.Outcome.Fuse != "" {
				fmt.Fprintf(&buf, " fuse=%s", ev.Outcome.Fuse)
			}
			if ev.Outcome.Result != "" {
				fmt.Fprintf(&buf, " result=%s", ev.Outcome.Result)
			}
			if ev.Outcome.Error != "" {
				fmt.Fprintf(&buf, " error=%s", ev.Outcome.Error)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// matches reports whether ev satisfies a trace_contains assertion.
// Slot and Result are only compared when set.
func (a Assertion) matches(ev TraceEvent) bool {
	if ev.Kind != a.Kind || ev.Outcome.Error != "" {
		return false
	}
	if a.Slot != nil && ev.Handle != slotHandles([]int{*a.Slot})[0] {
		return false
	}
	if a.Result != "" && !card.Equal(card.ID(a.Result), card.ID(ev.Outcome.Result)) {
		return false
	}
	return true
}

// assertTraceContains checks that an accepted event matching the assertion
// exists.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	if slices.ContainsFunc(trace, assertion.matches) {
		return nil
	}

	expected := "event " + assertion.Kind
	if assertion.Slot != nil {
		expected += fmt.Sprintf(" on slot %d", *assertion.Slot)
	}
	if assertion.Result != "" {
		expected += " with result " + assertion.Result
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrences of Kinds appear in the
// listed order. Events in between are allowed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		if _, seen := positions[ev.Kind]; !seen {
			positions[ev.Kind] = i + 1 // 1-indexed for readability
		}
	}

	for _, kind := range assertion.Kinds {
		if positions[kind] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all kinds present: %v", assertion.Kinds),
				Actual:   fmt.Sprintf("missing kind: %s", kind),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Kinds); i++ {
		prev, curr := assertion.Kinds[i-1], assertion.Kinds[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("kinds in order: %v", assertion.Kinds),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks that Kind appears exactly Count times, rejected
// events included.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Kind == assertion.Kind {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Kind),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState reads the session log back from the store, folds it
// into a FinalState and compares the fields the assertion sets.
func assertFinalState(ctx context.Context, st *store.Store, sessionID string, assertion Assertion) error {
	events, err := st.ReadEvents(ctx, sessionID)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("events for session %s", sessionID),
			Actual:   fmt.Sprintf("read error: %v", err),
		}
	}

	trace := make([]TraceEvent, 0, len(events))
	for _, ev := range events {
		trace = append(trace, TraceEvent{
			Seq:     ev.Seq,
			Kind:    string(ev.Kind),
			Handle:  ev.Handle,
			Cards:   ev.Cards,
			Outcome: ev.Outcome,
		})
	}
	state := finalState(trace)

	if assertion.Selected != nil {
		if want := slotHandles(assertion.Selected); !slices.Equal(want, state.Selected) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("selected %v", want),
				Actual:   fmt.Sprintf("selected %v", state.Selected),
				Trace:    trace,
			}
		}
	}

	if assertion.Eligible != nil && *assertion.Eligible != state.Eligible {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("eligible=%t", *assertion.Eligible),
			Actual:   fmt.Sprintf("eligible=%t", state.Eligible),
			Trace:    trace,
		}
	}

	if assertion.LastResult != "" && !card.Equal(card.ID(assertion.LastResult), card.ID(state.LastResult)) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("last result %s", assertion.LastResult),
			Actual:   fmt.Sprintf("last result %q", state.LastResult),
			Trace:    trace,
		}
	}

	return nil
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store     *store.Store
	Ctx       context.Context
	SessionID string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, actx.SessionID, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
