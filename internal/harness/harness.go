package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/fusion/internal/card"
	"github.com/roach88/fusion/internal/catalog"
	"github.com/roach88/fusion/internal/compiler"
	"github.com/roach88/fusion/internal/ir"
	"github.com/roach88/fusion/internal/session"
	"github.com/roach88/fusion/internal/store"
	"github.com/roach88/fusion/internal/testutil"
)

// Harness is the test execution engine.
// It drives one session per scenario with a deterministic clock and
// session ID.
type Harness struct {
	store   *store.Store
	session *session.Session
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
//  1. Create fresh in-memory database
//  2. Load the book and build the catalog
//  3. Store the book and session, then deal the hand
//  4. Execute steps with expect validation
//  5. Read the trace back from the store and evaluate assertions
//
// Step rejections are outcomes, checked against expect clauses. Run only
// returns an error when the scenario cannot execute at all.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with session and catalog logging sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	ctx := context.Background()

	book, err := loadBook(scenario)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	cat, report := catalog.BuildWithOptions(catalog.FromSpecs(book.Recipes), catalog.BuildOptions{Logger: logger})

	// Book and session rows sit at seq 0 so the first event is seq 1.
	bookHash, err := st.WriteBook(ctx, book, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to store book: %w", err)
	}

	sess := session.New(cat,
		session.WithIDGenerator(testutil.NewFixedSessionGenerator(scenario.SessionID)),
		session.WithClock(testutil.NewDeterministicClock()),
		session.WithRecorder(st),
		session.WithHandSize(scenario.handSize()),
		session.WithLogger(logger),
	)

	if err := st.WriteSession(ctx, ir.SessionRecord{
		ID:       sess.ID(),
		BookHash: bookHash,
		Hand:     scenario.Hand,
		HandSize: sess.HandSize(),
	}); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	h := &Harness{
		store:   st,
		session: sess,
		logger:  logger,
	}

	result := NewResult()
	result.SessionID = sess.ID()
	result.Catalog = CatalogSummary{
		Loaded:     report.Loaded,
		Invalid:    len(report.Invalid),
		Duplicates: len(report.Duplicates),
	}

	if len(scenario.Hand) > 0 {
		if _, err := sess.Deal(ctx, card.FromStrings(scenario.Hand)); err != nil {
			return nil, fmt.Errorf("failed to deal hand: %w", err)
		}
	}

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("failed to execute steps: %w", err)
		}
	}

	events, err := st.ReadEvents(ctx, sess.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	for _, ev := range events {
		result.AddEventTrace(ev)
	}
	result.State = finalState(result.Trace)

	actx := &AssertionContext{
		Store:     st,
		Ctx:       ctx,
		SessionID: sess.ID(),
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func loadBook(scenario *Scenario) (*ir.Book, error) {
	if scenario.Book == "" {
		return &ir.Book{Recipes: scenario.Recipes}, nil
	}
	book, err := compiler.LoadBook(scenario.Book)
	if err != nil {
		return nil, fmt.Errorf("failed to load book: %w", err)
	}
	return book, nil
}

// executeStep performs one step and checks its expect clause.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) error {
	var (
		ev  ir.Event
		err error
	)

	switch step.Op {
	case OpToggleOn:
		ev, err = h.session.ToggleOn(ctx, session.SlotHandle(*step.Slot))
	case OpToggleOff:
		ev, err = h.session.ToggleOff(ctx, session.SlotHandle(*step.Slot))
	case OpToggle:
		ev, err = h.session.Toggle(ctx, session.SlotHandle(*step.Slot))
	case OpClear:
		ev, err = h.session.Clear(ctx)
	case OpFuse:
		ev, err = h.session.Fuse(ctx)
	case OpDeal:
		ev, err = h.session.Deal(ctx, card.FromStrings(step.Cards))
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}

	// A rejection carries its code in the outcome; anything else (a store
	// failure) aborts the run.
	if err != nil && ev.Outcome.Error == "" {
		return fmt.Errorf("steps[%d] (%s): %w", index, step.Op, err)
	}

	h.logger.Debug("step executed", "index", index, "op", step.Op, "seq", ev.Seq)

	prefix := fmt.Sprintf("steps[%d] (%s)", index, step.Op)
	if step.Expect == nil {
		if ev.Outcome.Error != "" {
			result.AddError(fmt.Sprintf("%s: unexpected error %s", prefix, ev.Outcome.Error))
		}
		return nil
	}

	for _, msg := range checkExpect(*step.Expect, ev.Outcome) {
		result.AddError(prefix + ": " + msg)
	}
	return nil
}

// checkExpect compares an outcome against an expect clause and returns
// one message per mismatch.
func checkExpect(want Expect, got ir.Outcome) []string {
	var msgs []string

	if want.Error != got.Error {
		switch {
		case want.Error == "":
			msgs = append(msgs, fmt.Sprintf("unexpected error %s", got.Error))
		case got.Error == "":
			msgs = append(msgs, fmt.Sprintf("expected error %s, step succeeded", want.Error))
		default:
			msgs = append(msgs, fmt.Sprintf("expected error %s, got %s", want.Error, got.Error))
		}
	}

	if want.Eligible != nil && *want.Eligible != got.Eligible {
		msgs = append(msgs, fmt.Sprintf("expected eligible=%t, got %t", *want.Eligible, got.Eligible))
	}

	if want.Selected != nil {
		if handles := slotHandles(want.Selected); !slices.Equal(handles, got.Selected) {
			msgs = append(msgs, fmt.Sprintf("expected selected %v, got %v", handles, got.Selected))
		}
	}

	if want.Evicted != nil {
		if handles := slotHandles(want.Evicted); !slices.Equal(handles, got.Deselected) {
			msgs = append(msgs, fmt.Sprintf("expected evicted %v, got %v", handles, got.Deselected))
		}
	}

	if want.Outcome != "" && want.Outcome != got.Fuse {
		msgs = append(msgs, fmt.Sprintf("expected outcome %s, got %q", want.Outcome, got.Fuse))
	}

	if want.Result != "" && !card.Equal(card.ID(want.Result), card.ID(got.Result)) {
		msgs = append(msgs, fmt.Sprintf("expected result %s, got %q", want.Result, got.Result))
	}

	return msgs
}

func slotHandles(slots []int) []string {
	out := make([]string, len(slots))
	for i, slot := range slots {
		out[i] = session.SlotHandle(slot)
	}
	return out
}
