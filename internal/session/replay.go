package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/fusion/internal/card"
	"github.com/roach88/fusion/internal/ir"
	"github.com/roach88/fusion/internal/selection"
)

// Divergence reasons.
const (
	DivergedOutcome = "outcome"
	DivergedID      = "id"
)

// Divergence is one recorded event that did not replay identically.
type Divergence struct {
	Seq      int64        `json:"seq"`
	EventID  string       `json:"event_id"`
	Kind     ir.EventKind `json:"kind"`
	Reason   string       `json:"reason"`
	Recorded ir.Outcome   `json:"recorded"`
	Replayed ir.Outcome   `json:"replayed"`
}

// ReplayResult summarizes a replay.
type ReplayResult struct {
	SessionID   string       `json:"session_id"`
	Events      int          `json:"events"`
	Divergences []Divergence `json:"divergences,omitempty"`
}

// Deterministic reports whether every event replayed identically.
func (r ReplayResult) Deterministic() bool {
	return len(r.Divergences) == 0
}

// Replay re-applies a recorded session log against m.
//
// Events must belong to one session and be in seq order, as returned by
// store.ReadEvents. Each event's ID is recomputed from its inputs; a
// mismatch means the log was altered. Each event's outcome is recomputed by
// a fresh session; a mismatch means the catalog or the engine behaves
// differently than when the log was written.
//
// Rejected operations replay as rejections, so their errors are not
// returned. Replay only fails on a malformed log.
func Replay(ctx context.Context, m selection.Matcher, events []ir.Event, opts ...Option) (ReplayResult, error) {
	var result ReplayResult
	if len(events) == 0 {
		return result, nil
	}

	result.SessionID = events[0].SessionID
	opts = append(opts, WithID(result.SessionID), WithRecorder(nil))
	s := New(m, opts...)

	var lastSeq int64
	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if ev.SessionID != result.SessionID {
			return result, fmt.Errorf("replay: event %d belongs to session %q, want %q", i, ev.SessionID, result.SessionID)
		}
		if i > 0 && ev.Seq <= lastSeq {
			return result, fmt.Errorf("replay: event %d has seq %d after seq %d", i, ev.Seq, lastSeq)
		}
		lastSeq = ev.Seq

		wantID, err := ir.EventID(ev.SessionID, ev.Kind, ev.Handle, ev.Cards, ev.Seq)
		if err != nil {
			return result, fmt.Errorf("replay: event %d: %w", i, err)
		}
		if wantID != ev.ID {
			result.Divergences = append(result.Divergences, Divergence{
				Seq:      ev.Seq,
				EventID:  ev.ID,
				Kind:     ev.Kind,
				Reason:   DivergedID,
				Recorded: ev.Outcome,
			})
		}

		replayed, err := s.apply(ctx, ev)
		if err != nil {
			return result, fmt.Errorf("replay: event %d: %w", i, err)
		}
		result.Events++

		if !replayed.Outcome.Equal(ev.Outcome) {
			s.logger.Warn("replay diverged",
				"seq", ev.Seq,
				"kind", string(ev.Kind),
				slog.Any("recorded", ev.Outcome),
				slog.Any("replayed", replayed.Outcome),
			)
			result.Divergences = append(result.Divergences, Divergence{
				Seq:      ev.Seq,
				EventID:  ev.ID,
				Kind:     ev.Kind,
				Reason:   DivergedOutcome,
				Recorded: ev.Outcome,
				Replayed: replayed.Outcome,
			})
		}
	}

	return result, nil
}

// apply performs the operation ev records. Session-level rejections are
// part of the outcome and are not returned.
func (s *Session) apply(ctx context.Context, ev ir.Event) (ir.Event, error) {
	var (
		out ir.Event
		err error
	)
	switch ev.Kind {
	case ir.EventDeal:
		out, err = s.Deal(ctx, card.FromStrings(ev.Cards))
	case ir.EventToggleOn:
		out, err = s.ToggleOn(ctx, ev.Handle)
	case ir.EventToggleOff:
		out, err = s.ToggleOff(ctx, ev.Handle)
	case ir.EventClear:
		out, err = s.Clear(ctx)
	case ir.EventFuse:
		out, err = s.Fuse(ctx)
	default:
		return ir.Event{}, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	if err != nil && out.Outcome.Error == "" {
		return out, err
	}
	return out, nil
}
