package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/fusion/internal/ir"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testBook() *ir.Book {
	return &ir.Book{
		Cards: []ir.CardSpec{
			{ID: "fire", Name: "Fire"},
			{ID: "water", Name: "Water"},
			{ID: "steam", Name: "Steam", Description: "Hot mist"},
		},
		Recipes: []ir.RecipeSpec{
			{Ingredients: []string{"fire", "water"}, Result: "steam"},
		},
	}
}

// createTestSession stores testBook and a session playing it.
func createTestSession(t *testing.T, s *Store, id string, seq int64) ir.SessionRecord {
	t.Helper()
	ctx := context.Background()

	hash, err := s.WriteBook(ctx, testBook(), seq)
	if err != nil {
		t.Fatalf("WriteBook() failed: %v", err)
	}
	rec := ir.SessionRecord{
		ID:         id,
		BookHash:   hash,
		Hand:       []string{"fire", "water"},
		HandSize:   3,
		CreatedSeq: seq,
	}
	if err := s.WriteSession(ctx, rec); err != nil {
		t.Fatalf("WriteSession() failed: %v", err)
	}
	return rec
}

// createTestEvent creates an event with a correct content-addressed ID.
func createTestEvent(sessionID string, seq int64, kind ir.EventKind, handle string, selected ...string) ir.Event {
	if selected == nil {
		selected = []string{}
	}
	return ir.Event{
		ID:        ir.MustEventID(sessionID, kind, handle, nil, seq),
		SessionID: sessionID,
		Seq:       seq,
		Kind:      kind,
		Handle:    handle,
		Outcome:   ir.Outcome{Selected: selected},
	}
}
