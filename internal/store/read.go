package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/fusion/internal/ir"
)

// ReadBook retrieves a book by content hash.
// Returns sql.ErrNoRows (wrapped) if not found.
func (s *Store) ReadBook(ctx context.Context, hash string) (*ir.Book, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `
		SELECT body FROM books WHERE hash = ?
	`, hash).Scan(&body)
	if err != nil {
		return nil, fmt.Errorf("read book %s: %w", hash, err)
	}
	return unmarshalBook(body)
}

// ReadSession retrieves a session record by ID.
// Returns sql.ErrNoRows (wrapped) if not found.
func (s *Store) ReadSession(ctx context.Context, id string) (ir.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, book_hash, hand, hand_size, created_seq, engine_version, ir_version
		FROM sessions
		WHERE id = ?
	`, id)

	rec, err := scanSession(row)
	if err != nil {
		return ir.SessionRecord{}, fmt.Errorf("read session %s: %w", id, err)
	}
	return rec, nil
}

// ListSessions returns every session ordered by creation:
// ORDER BY created_seq ASC, id COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if there are no sessions.
func (s *Store) ListSessions(ctx context.Context) ([]ir.SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, book_hash, hand, hand_size, created_seq, engine_version, ir_version
		FROM sessions
		ORDER BY created_seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return collectSessions(rows)
}

// ListSessionsForBook returns the sessions that played the given book,
// in creation order.
func (s *Store) ListSessionsForBook(ctx context.Context, bookHash string) ([]ir.SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, book_hash, hand, hand_size, created_seq, engine_version, ir_version
		FROM sessions
		WHERE book_hash = ?
		ORDER BY created_seq ASC, id COLLATE BINARY ASC
	`, bookHash)
	if err != nil {
		return nil, fmt.Errorf("list sessions for book: %w", err)
	}
	return collectSessions(rows)
}

// ReadEvents returns all events of a session in deterministic order:
// ORDER BY seq ASC, id COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if the session has no events.
func (s *Store) ReadEvents(ctx context.Context, sessionID string) ([]ir.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, seq, kind, handle, cards, outcome
		FROM events
		WHERE session_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return collectEvents(rows)
}

// ReadEventsOfKind returns the events of one kind in a session, in the
// same order as ReadEvents.
func (s *Store) ReadEventsOfKind(ctx context.Context, sessionID string, kind ir.EventKind) ([]ir.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, seq, kind, handle, cards, outcome
		FROM events
		WHERE session_id = ? AND kind = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, sessionID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("query %s events: %w", kind, err)
	}
	return collectEvents(rows)
}

// ReadAllEvents returns every event in the store, ordered by seq.
// Sessions sharing a clock interleave.
func (s *Store) ReadAllEvents(ctx context.Context) ([]ir.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, seq, kind, handle, cards, outcome
		FROM events
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query all events: %w", err)
	}
	return collectEvents(rows)
}

// ReadEvent retrieves a single event by ID.
// Returns sql.ErrNoRows (wrapped) if not found.
func (s *Store) ReadEvent(ctx context.Context, id string) (ir.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, seq, kind, handle, cards, outcome
		FROM events
		WHERE id = ?
	`, id)
	ev, err := scanEvent(row)
	if err != nil {
		return ir.Event{}, fmt.Errorf("read event %s: %w", id, err)
	}
	return ev, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (ir.SessionRecord, error) {
	var (
		rec  ir.SessionRecord
		hand string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.BookHash,
		&hand,
		&rec.HandSize,
		&rec.CreatedSeq,
		&rec.EngineVersion,
		&rec.IRVersion,
	); err != nil {
		return ir.SessionRecord{}, err
	}

	cards, err := unmarshalCards(hand)
	if err != nil {
		return ir.SessionRecord{}, err
	}
	rec.Hand = cards
	return rec, nil
}

func scanEvent(row rowScanner) (ir.Event, error) {
	var (
		ev      ir.Event
		kind    string
		cards   string
		outcome string
	)
	if err := row.Scan(&ev.ID, &ev.SessionID, &ev.Seq, &kind, &ev.Handle, &cards, &outcome); err != nil {
		return ir.Event{}, err
	}
	ev.Kind = ir.EventKind(kind)

	var err error
	if ev.Cards, err = unmarshalCards(cards); err != nil {
		return ir.Event{}, err
	}
	if ev.Outcome, err = unmarshalOutcome(outcome); err != nil {
		return ir.Event{}, err
	}
	return ev, nil
}

func collectSessions(rows *sql.Rows) ([]ir.SessionRecord, error) {
	defer rows.Close()

	sessions := []ir.SessionRecord{}
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func collectEvents(rows *sql.Rows) ([]ir.Event, error) {
	defer rows.Close()

	events := []ir.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
