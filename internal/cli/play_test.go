package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fusion/internal/ir"
	"github.com/roach88/fusion/internal/store"
)

// playInto records one session into db and returns its result.
func playInto(t *testing.T, db string, args ...string) PlayResult {
	t.Helper()
	out, err := execute(t, NewPlayCommand(&RootOptions{Format: "json"}), append([]string{elementsBook, "--db", db}, args...)...)
	require.NoError(t, err)

	var result PlayResult
	decodeData(t, out, &result)
	return result
}

func TestPlayFuse(t *testing.T) {
	out, err := execute(t, NewPlayCommand(&RootOptions{Format: "json"}),
		elementsBook, "--hand", "Fire,Water,Earth", "on:0", "on:1", "fuse")
	require.NoError(t, err)

	var result PlayResult
	resp := decodeData(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, result.SessionID)
	assert.NotEmpty(t, result.BookHash)
	assert.Equal(t, memoryDB, result.Database)
	assert.Zero(t, result.Rejected)

	require.Len(t, result.Events, 4)
	assert.Equal(t, ir.EventDeal, result.Events[0].Kind)
	assert.Equal(t, []string{"Fire", "Water", "Earth"}, result.Events[0].Cards)
	assert.Equal(t, int64(3), result.Events[0].Seq, "book and session take seq 1 and 2")
	for i := 1; i < len(result.Events); i++ {
		assert.Greater(t, result.Events[i].Seq, result.Events[i-1].Seq)
	}

	fuse := result.Events[3]
	assert.Equal(t, ir.EventFuse, fuse.Kind)
	assert.Equal(t, ir.FuseSuccess, fuse.Outcome.Fuse)
	assert.Equal(t, "Steam", fuse.Outcome.Result)

	assert.Equal(t, []string{"Fire", "Water", "Earth"}, result.State.Hand)
	assert.Empty(t, result.State.Selected)
	assert.False(t, result.State.Eligible)
	assert.Equal(t, "Steam", result.State.LastResult)
}

func TestPlayText(t *testing.T) {
	out, err := execute(t, NewPlayCommand(&RootOptions{Format: "text"}),
		elementsBook, "--hand", "Fire,Water,Earth", "on:1", "on:2")
	require.NoError(t, err)

	assert.Contains(t, out, "Session ")
	assert.Contains(t, out, "[3] deal [Fire Water Earth] -> selected=[] eligible=false")
	assert.Contains(t, out, "[5] toggle_on slot-2 -> selected=[slot-1 slot-2] eligible=true")
	assert.Contains(t, out, "✓ 3 event(s) recorded to :memory:")
	assert.Contains(t, out, "Selected: [slot-1 slot-2] eligible=true")
	assert.NotContains(t, out, "Last result:")
}

func TestPlayRejectionsAreRecorded(t *testing.T) {
	out, err := execute(t, NewPlayCommand(&RootOptions{Format: "json"}),
		elementsBook, "--hand", "Fire,Earth", "fuse", "on:9", "on:0", "on:1", "fuse")
	require.NoError(t, err)

	var result PlayResult
	decodeData(t, out, &result)
	assert.Equal(t, 2, result.Rejected)
	require.Len(t, result.Events, 6)
	assert.Equal(t, "INVALID_STATE", result.Events[1].Outcome.Error)
	assert.Equal(t, "UNKNOWN_SLOT", result.Events[2].Outcome.Error)
	assert.Equal(t, "slot-9", result.Events[2].Handle)

	last := result.Events[5]
	assert.Equal(t, ir.FuseNoRecipe, last.Outcome.Fuse)
	assert.Equal(t, []string{"slot-0", "slot-1"}, last.Outcome.Selected, "selection survives a failed fusion")
}

func TestPlayRejectionText(t *testing.T) {
	out, err := execute(t, NewPlayCommand(&RootOptions{Format: "text"}), elementsBook, "fuse")
	require.NoError(t, err)
	assert.Contains(t, out, "fuse -> error=INVALID_STATE")
	assert.Contains(t, out, "(1 rejected)")
}

func TestPlayToggleAndDeal(t *testing.T) {
	out, err := execute(t, NewPlayCommand(&RootOptions{Format: "json"}),
		elementsBook, "deal:Water,Earth", "toggle:0", "toggle:1", "toggle:0", "clear")
	require.NoError(t, err)

	var result PlayResult
	decodeData(t, out, &result)
	require.Len(t, result.Events, 5)
	assert.Equal(t, ir.EventToggleOn, result.Events[1].Kind)
	assert.Equal(t, ir.EventToggleOff, result.Events[3].Kind)
	assert.Equal(t, []string{"slot-1"}, result.Events[3].Outcome.Selected)
	assert.Equal(t, []string{"slot-1"}, result.Events[4].Outcome.Deselected)
	assert.Equal(t, []string{"Water", "Earth"}, result.State.Hand)
}

func TestPlayHandSize(t *testing.T) {
	out, err := execute(t, NewPlayCommand(&RootOptions{Format: "json"}),
		elementsBook, "--hand-size", "2", "--hand", "Fire,Water,Earth")
	require.NoError(t, err)

	var result PlayResult
	decodeData(t, out, &result)
	assert.Equal(t, []string{"Fire", "Water"}, result.State.Hand)
}

func TestPlayPersists(t *testing.T) {
	db := filepath.Join(t.TempDir(), "play.db")
	first := playInto(t, db, "--hand", "Fire,Water", "on:0", "on:1", "fuse")
	second := playInto(t, db, "--session", "named", "--hand", "Water,Earth", "on:0")

	assert.Equal(t, "named", second.SessionID)
	assert.Equal(t, first.BookHash, second.BookHash)
	assert.Greater(t, second.Events[0].Seq, first.Events[len(first.Events)-1].Seq, "seq continues across runs")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	sessions, err := st.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	rec, err := st.ReadSession(ctx, first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Fire", "Water"}, rec.Hand)
	assert.Equal(t, 3, rec.HandSize)

	events, err := st.ReadEvents(ctx, first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, first.Events, events)
}

func TestPlayDuplicateSession(t *testing.T) {
	db := filepath.Join(t.TempDir(), "play.db")
	playInto(t, db, "--session", "s-1")

	out, err := execute(t, NewPlayCommand(&RootOptions{Format: "json"}), elementsBook, "--db", db, "--session", "s-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decodeData(t, out, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeBadArgument, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "session already exists")
}

func TestPlayBadArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown op", []string{"shuffle"}, `unknown operation "shuffle"`},
		{"negative hand size", []string{"--hand-size", "-1"}, "--hand-size must be non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewPlayCommand(&RootOptions{Format: "json"}), append([]string{elementsBook}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			resp := decodeData(t, out, nil)
			require.NotNil(t, resp.Error)
			assert.Equal(t, ErrCodeBadArgument, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, tt.want)
		})
	}
}

func TestPlayMissingBook(t *testing.T) {
	_, err := execute(t, NewPlayCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "none.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestParseOps(t *testing.T) {
	ops, err := parseOps([]string{"on:0", "off:2", "toggle:1", "clear", "fuse", "deal:A,B", "deal"})
	require.NoError(t, err)
	require.Len(t, ops, 7)

	assert.Equal(t, ir.EventToggleOn, ops[0].kind)
	assert.Equal(t, 0, ops[0].slot)
	assert.Equal(t, ir.EventToggleOff, ops[1].kind)
	assert.Equal(t, 2, ops[1].slot)
	assert.True(t, ops[2].toggle)
	assert.Equal(t, 1, ops[2].slot)
	assert.Equal(t, ir.EventClear, ops[3].kind)
	assert.Equal(t, ir.EventFuse, ops[4].kind)
	assert.Equal(t, []string{"A", "B"}, ops[5].cards)
	assert.Equal(t, ir.EventDeal, ops[6].kind)
	assert.Empty(t, ops[6].cards)
}

func TestParseOps_Errors(t *testing.T) {
	tests := []struct {
		arg  string
		want string
	}{
		{"on", "want on:N"},
		{"on:x", "want on:N"},
		{"off:-1", "want off:N"},
		{"fuse:now", "fuse takes no argument"},
		{"clear:1", "clear takes no argument"},
		{"pick:1", `unknown operation "pick:1"`},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			_, err := parseOps([]string{tt.arg})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
