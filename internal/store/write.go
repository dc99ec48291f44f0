package store

import (
	"context"
	"fmt"

	"github.com/roach88/fusion/internal/ir"
)

// WriteBook stores a recipe book under its content hash and returns the
// hash. Uses ON CONFLICT(hash) DO NOTHING: storing the same book twice
// keeps the first created_seq.
func (s *Store) WriteBook(ctx context.Context, book *ir.Book, seq int64) (string, error) {
	body, err := book.CanonicalJSON()
	if err != nil {
		return "", fmt.Errorf("write book: %w", err)
	}
	hash, err := book.Hash()
	if err != nil {
		return "", fmt.Errorf("write book: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO books (hash, body, created_seq)
		VALUES (?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash, string(body), seq)
	if err != nil {
		return "", fmt.Errorf("write book: %w", err)
	}

	return hash, nil
}

// WriteSession inserts a session record. Duplicate IDs are silently ignored.
//
// Note: The book referenced by BookHash must exist (foreign key constraint).
func (s *Store) WriteSession(ctx context.Context, rec ir.SessionRecord) error {
	hand, err := marshalCards(rec.Hand)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}

	engineVersion := rec.EngineVersion
	if engineVersion == "" {
		engineVersion = ir.EngineVersion
	}
	irVersion := rec.IRVersion
	if irVersion == "" {
		irVersion = ir.IRVersion
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions
		(id, book_hash, hand, hand_size, created_seq, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.BookHash,
		hand,
		rec.HandSize,
		rec.CreatedSeq,
		engineVersion,
		irVersion,
	)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}

	return nil
}

// WriteEvent inserts a session event. It implements session.Recorder.
//
// Uses ON CONFLICT DO NOTHING for idempotency. This handles both:
//  1. The same event written twice (same ID)
//  2. A second event claiming an existing (session_id, seq)
//
// Note: The session referenced by SessionID must exist (foreign key constraint).
func (s *Store) WriteEvent(ctx context.Context, ev ir.Event) error {
	if !ev.Kind.Valid() {
		return fmt.Errorf("write event: unknown kind %q", ev.Kind)
	}

	cards, err := marshalCards(ev.Cards)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	outcome, err := marshalOutcome(ev.Outcome)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events
		(id, session_id, seq, kind, handle, cards, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		ev.ID,
		ev.SessionID,
		ev.Seq,
		string(ev.Kind),
		ev.Handle,
		cards,
		outcome,
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	return nil
}
