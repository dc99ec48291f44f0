package store

import (
	"context"
	"fmt"

	"github.com/roach88/fusion/internal/ir"
)

// SessionLog is everything needed to replay one session.
type SessionLog struct {
	Session ir.SessionRecord
	Book    *ir.Book
	Events  []ir.Event
	LastSeq int64
}

// LoadSessionLog reads a session, its book and its events.
func (s *Store) LoadSessionLog(ctx context.Context, sessionID string) (SessionLog, error) {
	var out SessionLog

	rec, err := s.ReadSession(ctx, sessionID)
	if err != nil {
		return out, fmt.Errorf("load session log: %w", err)
	}
	out.Session = rec

	book, err := s.ReadBook(ctx, rec.BookHash)
	if err != nil {
		return out, fmt.Errorf("load session log: %w", err)
	}
	out.Book = book

	events, err := s.ReadEvents(ctx, sessionID)
	if err != nil {
		return out, fmt.Errorf("load session log: %w", err)
	}
	out.Events = events
	if n := len(events); n > 0 {
		out.LastSeq = events[n-1].Seq
	}

	return out, nil
}

// GetLastSeq returns the highest seq number used in the store.
// Used to resume the logical clock so a new session's events follow
// every event already stored.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var maxSeq int64
	for _, q := range []string{
		`SELECT COALESCE(MAX(seq), 0) FROM events`,
		`SELECT COALESCE(MAX(created_seq), 0) FROM sessions`,
		`SELECT COALESCE(MAX(created_seq), 0) FROM books`,
	} {
		var seq int64
		if err := s.db.QueryRowContext(ctx, q).Scan(&seq); err != nil {
			return 0, fmt.Errorf("get last seq: %w", err)
		}
		if seq > maxSeq {
			maxSeq = seq
		}
	}
	return maxSeq, nil
}

// GetLastSeqForSession returns the highest event seq of one session, or 0
// if it has no events.
func (s *Store) GetLastSeqForSession(ctx context.Context, sessionID string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM events WHERE session_id = ?
	`, sessionID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq for session: %w", err)
	}
	return seq, nil
}
