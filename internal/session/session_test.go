package session

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fusion/internal/card"
	"github.com/roach88/fusion/internal/catalog"
	"github.com/roach88/fusion/internal/ir"
	"github.com/roach88/fusion/internal/selection"
	"github.com/roach88/fusion/internal/testutil"
)

type memRecorder struct {
	events []ir.Event
	err    error
}

func (r *memRecorder) WriteEvent(_ context.Context, ev ir.Event) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func testHolder(t *testing.T) *catalog.Holder {
	t.Helper()
	c, report := catalog.Build([]catalog.Recipe{
		{Ingredients: []card.ID{"Fire", "Water"}, Result: "Steam"},
		{Ingredients: []card.ID{"Earth", "Fire"}, Result: "Lava"},
	})
	require.Equal(t, 2, report.Loaded)
	return catalog.NewHolder(c)
}

func newTestSession(t *testing.T, opts ...Option) (*Session, *memRecorder) {
	t.Helper()
	rec := &memRecorder{}
	base := []Option{
		WithID("s-1"),
		WithClock(testutil.NewDeterministicClock()),
		WithRecorder(rec),
	}
	return New(testHolder(t), append(base, opts...)...), rec
}

func deal(t *testing.T, s *Session, cards ...string) {
	t.Helper()
	_, err := s.Deal(context.Background(), card.FromStrings(cards))
	require.NoError(t, err)
}

func TestNew_GeneratesUUIDv7(t *testing.T) {
	s := New(testHolder(t))
	assert.Len(t, s.ID(), 36)
	assert.NotEqual(t, s.ID(), New(testHolder(t)).ID())
}

func TestNew_IDGenerator(t *testing.T) {
	gen := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", New(nil, WithIDGenerator(gen)).ID())
	assert.Equal(t, "b", New(nil, WithIDGenerator(gen)).ID())
	assert.Panics(t, func() { gen.Generate() })
}

func TestDeal_AssignsSlots(t *testing.T) {
	s, rec := newTestSession(t)
	ev, err := s.Deal(context.Background(), card.FromStrings([]string{"Fire", "Water", "Fire"}))
	require.NoError(t, err)

	assert.Equal(t, []selection.Instance{
		{Handle: "slot-0", Card: "Fire"},
		{Handle: "slot-1", Card: "Water"},
		{Handle: "slot-2", Card: "Fire"},
	}, s.Hand())

	assert.Equal(t, ir.EventDeal, ev.Kind)
	assert.Equal(t, int64(1), ev.Seq)
	assert.Equal(t, []string{"Fire", "Water", "Fire"}, ev.Cards)
	assert.Equal(t, ir.MustEventID("s-1", ir.EventDeal, "", ev.Cards, 1), ev.ID)
	require.Len(t, rec.events, 1)
	assert.Equal(t, ev, rec.events[0])
}

func TestDeal_TruncatesToHandSize(t *testing.T) {
	s, _ := newTestSession(t)
	ev, err := s.Deal(context.Background(), card.FromStrings([]string{"a", "b", "c", "d"}))
	require.NoError(t, err)
	assert.Len(t, s.Hand(), DefaultHandSize)
	assert.Equal(t, []string{"a", "b", "c"}, ev.Cards)

	s2, _ := newTestSession(t, WithHandSize(0))
	deal(t, s2, "a", "b", "c", "d")
	assert.Len(t, s2.Hand(), 4)
}

func TestDeal_ClearsSelectionAndResult(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)
	deal(t, s, "Fire", "Water", "Earth")

	_, _ = s.ToggleOn(ctx, "slot-0")
	_, _ = s.ToggleOn(ctx, "slot-1")
	_, err := s.Fuse(ctx)
	require.NoError(t, err)
	require.Equal(t, card.ID("Steam"), s.LastResult())

	_, _ = s.ToggleOn(ctx, "slot-2")
	ev, err := s.Deal(ctx, card.FromStrings([]string{"Earth", "Fire"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"slot-2"}, ev.Outcome.Deselected)
	assert.Empty(t, ev.Outcome.Selected)
	assert.Empty(t, s.LastResult())
}

func TestDeal_InvalidCard(t *testing.T) {
	s, rec := newTestSession(t)
	ev, err := s.Deal(context.Background(), []card.ID{"Fire", ""})
	require.Error(t, err)
	assert.True(t, IsInvalidHand(err))
	assert.Equal(t, string(ErrCodeInvalidHand), ev.Outcome.Error)
	assert.Empty(t, s.Hand())
	assert.Len(t, rec.events, 1, "rejections are recorded")
}

func TestToggleOn_UnknownSlot(t *testing.T) {
	s, rec := newTestSession(t)
	deal(t, s, "Fire", "Water")

	ev, err := s.ToggleOn(context.Background(), "slot-9")
	require.Error(t, err)
	assert.True(t, IsUnknownSlot(err))
	assert.Equal(t, "UNKNOWN_SLOT", ev.Outcome.Error)
	assert.Equal(t, int64(2), ev.Seq)
	assert.Len(t, rec.events, 2)
}

func TestToggleOff_UnknownSlot(t *testing.T) {
	s, _ := newTestSession(t)
	_, err := s.ToggleOff(context.Background(), "slot-0")
	assert.True(t, IsUnknownSlot(err))
}

func TestToggle_Flips(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)
	deal(t, s, "Fire", "Water")

	ev, err := s.Toggle(ctx, "slot-0")
	require.NoError(t, err)
	assert.Equal(t, ir.EventToggleOn, ev.Kind)
	assert.Equal(t, []string{"slot-0"}, ev.Outcome.Selected)

	ev, err = s.Toggle(ctx, "slot-0")
	require.NoError(t, err)
	assert.Equal(t, ir.EventToggleOff, ev.Kind)
	assert.Empty(t, ev.Outcome.Selected)
}

func TestToggleOn_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)
	deal(t, s, "Fire", "Water", "Earth")

	_, _ = s.ToggleOn(ctx, "slot-0")
	_, _ = s.ToggleOn(ctx, "slot-1")
	ev, err := s.ToggleOn(ctx, "slot-2")
	require.NoError(t, err)

	assert.Equal(t, []string{"slot-1", "slot-2"}, ev.Outcome.Selected)
	assert.Equal(t, []string{"slot-0"}, ev.Outcome.Deselected)
	assert.False(t, ev.Outcome.Eligible, "Water+Earth has no recipe")
}

func TestFuse_Success(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)
	deal(t, s, "Fire", "Water", "Earth")

	_, _ = s.ToggleOn(ctx, "slot-1")
	ev, err := s.ToggleOn(ctx, "slot-0")
	require.NoError(t, err)
	assert.True(t, ev.Outcome.Eligible)

	ev, err = s.Fuse(ctx)
	require.NoError(t, err)
	assert.Equal(t, ir.FuseSuccess, ev.Outcome.Fuse)
	assert.Equal(t, "Steam", ev.Outcome.Result)
	assert.Equal(t, []string{"slot-1", "slot-0"}, ev.Outcome.Deselected)
	assert.Empty(t, ev.Outcome.Selected)
	assert.False(t, ev.Outcome.Eligible)

	assert.Len(t, s.Hand(), 3, "fusing does not consume hand slots")
	assert.Equal(t, card.ID("Steam"), s.LastResult())
}

func TestFuse_NoRecipe(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)
	deal(t, s, "Water", "Earth")

	_, _ = s.ToggleOn(ctx, "slot-0")
	_, _ = s.ToggleOn(ctx, "slot-1")
	ev, err := s.Fuse(ctx)
	require.NoError(t, err)

	assert.Equal(t, ir.FuseNoRecipe, ev.Outcome.Fuse)
	assert.Empty(t, ev.Outcome.Result)
	assert.Equal(t, []string{"slot-0", "slot-1"}, ev.Outcome.Selected)
	assert.Empty(t, s.LastResult())
}

func TestFuse_InvalidState(t *testing.T) {
	ctx := context.Background()
	s, rec := newTestSession(t)
	deal(t, s, "Fire", "Water")
	_, _ = s.ToggleOn(ctx, "slot-0")

	ev, err := s.Fuse(ctx)
	require.Error(t, err)
	assert.True(t, selection.IsInvalidState(err))
	assert.Equal(t, "INVALID_STATE", ev.Outcome.Error)
	assert.Equal(t, []string{"slot-0"}, ev.Outcome.Selected)
	assert.Len(t, rec.events, 3)
}

func TestFuse_SameCardTwoSlots(t *testing.T) {
	c, _ := catalog.Build([]catalog.Recipe{
		{Ingredients: []card.ID{"Fire", "Fire"}, Result: "Inferno"},
	})
	ctx := context.Background()
	s := New(c, WithID("s-2"))
	deal(t, s, "Fire", "Fire")

	_, _ = s.ToggleOn(ctx, "slot-0")
	ev, err := s.ToggleOn(ctx, "slot-1")
	require.NoError(t, err)
	assert.True(t, ev.Outcome.Eligible)

	ev, err = s.Fuse(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Inferno", ev.Outcome.Result)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)
	deal(t, s, "Fire", "Water")
	_, _ = s.ToggleOn(ctx, "slot-0")
	_, _ = s.ToggleOn(ctx, "slot-1")

	ev, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, ir.EventClear, ev.Kind)
	assert.Equal(t, []string{"slot-0", "slot-1"}, ev.Outcome.Deselected)
	assert.False(t, s.Eligible())
	assert.Empty(t, s.Selected())
}

func TestRecord_SeqIsMonotonic(t *testing.T) {
	ctx := context.Background()
	s, rec := newTestSession(t)
	deal(t, s, "Fire", "Water")
	_, _ = s.ToggleOn(ctx, "slot-0")
	_, _ = s.ToggleOn(ctx, "slot-0")
	_, _ = s.ToggleOff(ctx, "slot-0")
	_, _ = s.Clear(ctx)

	require.Len(t, rec.events, 5)
	for i, ev := range rec.events {
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.Equal(t, "s-1", ev.SessionID)
	}
}

func TestRecord_RecorderFailure(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	s := New(testHolder(t), WithID("s-1"), WithRecorder(rec))

	_, err := s.Deal(context.Background(), []card.ID{"Fire"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, s.Hand(), 1, "state changes before recording")
}

func TestSession_ObserverSeesEviction(t *testing.T) {
	ctx := context.Background()
	obs := &countingObserver{}
	s, _ := newTestSession(t, WithObserver(obs))
	deal(t, s, "Fire", "Water", "Earth")

	_, _ = s.ToggleOn(ctx, "slot-0")
	_, _ = s.ToggleOn(ctx, "slot-1")
	_, _ = s.ToggleOn(ctx, "slot-2")

	assert.Equal(t, 1, obs.forced)
}

func TestSession_CatalogSwapAffectsEligibility(t *testing.T) {
	ctx := context.Background()
	holder := testHolder(t)
	s := New(holder, WithID("s-3"))
	deal(t, s, "Water", "Earth")
	_, _ = s.ToggleOn(ctx, "slot-0")
	_, _ = s.ToggleOn(ctx, "slot-1")
	require.False(t, s.Eligible())

	holder.Rebuild([]catalog.Recipe{
		{Ingredients: []card.ID{"Water", "Earth"}, Result: "Mud"},
	})
	ev, err := s.Fuse(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Mud", ev.Outcome.Result, "fuse resolves against the current catalog")
}

func TestSession_LogsFusion(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := context.Background()
	s, _ := newTestSession(t, WithLogger(logger))
	deal(t, s, "Fire", "Water")
	_, _ = s.ToggleOn(ctx, "slot-0")
	_, _ = s.ToggleOn(ctx, "slot-1")
	_, _ = s.Fuse(ctx)

	out := buf.String()
	assert.Contains(t, out, "hand dealt")
	assert.Contains(t, out, "fusion succeeded")
	assert.Contains(t, out, "session=s-1")
	assert.Contains(t, out, "result=Steam")
}

type countingObserver struct {
	forced int
}

func (o *countingObserver) SelectionChanged(_ selection.Instance, selected bool, reason selection.Reason) {
	if !selected && reason.Forced() {
		o.forced++
	}
}

func (o *countingObserver) EligibilityChanged(bool) {}
