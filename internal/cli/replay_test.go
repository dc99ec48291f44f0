package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fusion/internal/ir"
	"github.com/roach88/fusion/internal/session"
	"github.com/roach88/fusion/internal/store"
)

// recordedDB plays two sessions into a fresh database and returns its path.
func recordedDB(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "fusion.db")
	playInto(t, db, "--session", "steam", "--hand", "Fire,Water,Earth", "on:0", "on:1", "fuse")
	playInto(t, db, "--session", "mud", "--hand", "Fire,Water,Earth", "on:0", "on:1", "on:2", "fuse", "on:9")
	return db
}

func TestReplayDeterministic(t *testing.T) {
	db := recordedDB(t)

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)

	assert.Contains(t, out, "Replay Summary: 2 session(s)")
	assert.Contains(t, out, "✓ Session: steam")
	assert.Contains(t, out, "✓ Session: mud")
	assert.Contains(t, out, "✓ All sessions verified deterministic")
}

func TestReplayDeterministicJSON(t *testing.T) {
	db := recordedDB(t)

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "json"}), "--db", db, "--session", "mud")
	require.NoError(t, err)

	var result ReplayResult
	resp := decodeData(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.AllDeterministic)
	assert.Equal(t, 1, result.TotalSessions)
	require.Len(t, result.Sessions, 1)
	assert.Equal(t, "mud", result.Sessions[0].SessionID)
	assert.Equal(t, 6, result.Sessions[0].Events)
	assert.Empty(t, result.Sessions[0].Divergences)
}

func TestReplayAgainstChangedBook(t *testing.T) {
	db := recordedDB(t)
	book := filepath.Join(t.TempDir(), "v2.cue")
	require.NoError(t, os.WriteFile(book, []byte(`recipe: [
	{ingredients: ["Fire", "Water"], result: "Mist"},
	{ingredients: ["Water", "Earth"], result: "Mud"},
]`), 0644))

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "json"}), "--db", db, "--book", book)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ReplayResult
	resp := decodeData(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_DETERMINISM", resp.Error.Code)
	assert.False(t, result.AllDeterministic)

	byID := map[string]SessionReplay{}
	for _, s := range result.Sessions {
		byID[s.SessionID] = s
	}
	assert.True(t, byID["mud"].Deterministic, "the Mud recipe did not change")

	steam := byID["steam"]
	assert.False(t, steam.Deterministic)
	require.Len(t, steam.Divergences, 1)
	d := steam.Divergences[0]
	assert.Equal(t, ir.EventFuse, d.Kind)
	assert.Equal(t, session.DivergedOutcome, d.Reason)
	assert.Equal(t, "Steam", d.Recorded.Result)
	assert.Equal(t, "Mist", d.Replayed.Result)
}

func TestReplayDivergenceText(t *testing.T) {
	db := recordedDB(t)
	book := filepath.Join(t.TempDir(), "v2.cue")
	require.NoError(t, os.WriteFile(book, []byte(`recipe: [{ingredients: ["Fire", "Water"], result: "Mist"}]`), 0644))

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", db, "--session", "steam", "--book", book)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Session: steam")
	assert.Contains(t, out, "fuse diverged (outcome)")
	assert.Contains(t, out, "result=Steam")
	assert.Contains(t, out, "result=Mist")
	assert.Contains(t, out, "✗ Determinism verification failed")
}

func TestReplayEmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found in database.")
}

func TestReplayUnknownSession(t *testing.T) {
	db := recordedDB(t)

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "json"}), "--db", db, "--session", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decodeData(t, out, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNoSession, resp.Error.Code)
}

func TestReplayDatabaseErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no db", nil, "--db is required"},
		{"missing db", []string{"--db", filepath.Join(os.TempDir(), "fusion-does-not-exist.db")}, "database not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewReplayCommand(&RootOptions{Format: "json"}), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			resp := decodeData(t, out, nil)
			require.NotNil(t, resp.Error)
			assert.Equal(t, ErrCodeDatabase, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, tt.want)
		})
	}
}

func TestReplayHelpText(t *testing.T) {
	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "determinism")
	assert.Contains(t, out, "--book")
	assert.Contains(t, out, "--session")
}
