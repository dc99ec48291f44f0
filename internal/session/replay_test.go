package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fusion/internal/card"
	"github.com/roach88/fusion/internal/catalog"
	"github.com/roach88/fusion/internal/ir"
)

// playSample records a session covering every event kind, including a
// rejected fuse and an eviction.
func playSample(t *testing.T) []ir.Event {
	t.Helper()
	ctx := context.Background()
	s, rec := newTestSession(t)

	deal(t, s, "Fire", "Water", "Earth")
	_, _ = s.Fuse(ctx)
	_, _ = s.ToggleOn(ctx, "slot-0")
	_, _ = s.ToggleOn(ctx, "slot-2")
	_, _ = s.ToggleOn(ctx, "slot-1")
	_, _ = s.Fuse(ctx)
	_, _ = s.ToggleOn(ctx, "slot-0")
	_, _ = s.Fuse(ctx)
	_, _ = s.ToggleOff(ctx, "slot-0")
	_, _ = s.Clear(ctx)
	_, _ = s.ToggleOn(ctx, "slot-7")

	require.Len(t, rec.events, 11)
	require.Equal(t, "Steam", rec.events[7].Outcome.Result)
	return rec.events
}

func TestReplay_Deterministic(t *testing.T) {
	events := playSample(t)

	result, err := Replay(context.Background(), testHolder(t), events)
	require.NoError(t, err)
	assert.True(t, result.Deterministic(), "divergences: %+v", result.Divergences)
	assert.Equal(t, "s-1", result.SessionID)
	assert.Equal(t, 11, result.Events)
}

func TestReplay_Empty(t *testing.T) {
	result, err := Replay(context.Background(), testHolder(t), nil)
	require.NoError(t, err)
	assert.True(t, result.Deterministic())
	assert.Zero(t, result.Events)
}

func TestReplay_DetectsCatalogChange(t *testing.T) {
	events := playSample(t)

	// Without Earth+Fire the pair selected at seq 4 is no longer eligible.
	c, _ := catalog.Build([]catalog.Recipe{
		{Ingredients: []card.ID{"Fire", "Water"}, Result: "Steam"},
	})
	result, err := Replay(context.Background(), c, events)
	require.NoError(t, err)
	require.False(t, result.Deterministic())

	first := result.Divergences[0]
	assert.Equal(t, int64(4), first.Seq)
	assert.Equal(t, DivergedOutcome, first.Reason)
	assert.True(t, first.Recorded.Eligible)
	assert.False(t, first.Replayed.Eligible)
}

func TestReplay_DetectsTamperedOutcome(t *testing.T) {
	events := playSample(t)
	events[7].Outcome.Result = "Gold"

	result, err := Replay(context.Background(), testHolder(t), events)
	require.NoError(t, err)
	require.Len(t, result.Divergences, 1)
	assert.Equal(t, events[7].Seq, result.Divergences[0].Seq)
	assert.Equal(t, "Steam", result.Divergences[0].Replayed.Result)
}

func TestReplay_DetectsTamperedID(t *testing.T) {
	events := playSample(t)
	events[2].Handle = "slot-1"

	result, err := Replay(context.Background(), testHolder(t), events)
	require.NoError(t, err)
	require.NotEmpty(t, result.Divergences)
	assert.Equal(t, DivergedID, result.Divergences[0].Reason)
	assert.Equal(t, events[2].ID, result.Divergences[0].EventID)
}

func TestReplay_RejectsMixedSessions(t *testing.T) {
	events := playSample(t)
	events[3].SessionID = "other"

	_, err := Replay(context.Background(), testHolder(t), events)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "belongs to session")
}

func TestReplay_RejectsOutOfOrder(t *testing.T) {
	events := playSample(t)
	events[1], events[2] = events[2], events[1]

	_, err := Replay(context.Background(), testHolder(t), events)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seq")
}

func TestReplay_UnknownKind(t *testing.T) {
	events := playSample(t)[:1]
	events[0].Kind = "shuffle"

	_, err := Replay(context.Background(), testHolder(t), events)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event kind")
}

func TestReplay_Cancelled(t *testing.T) {
	events := playSample(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Replay(ctx, testHolder(t), events)
	assert.ErrorIs(t, err, context.Canceled)
}
