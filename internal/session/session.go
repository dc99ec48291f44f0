package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/fusion/internal/card"
	"github.com/roach88/fusion/internal/ir"
	"github.com/roach88/fusion/internal/selection"
)

// DefaultHandSize is the number of slots a deal fills. Extra cards are
// dropped.
const DefaultHandSize = 3

// Recorder persists session events. *store.Store implements it.
type Recorder interface {
	WriteEvent(ctx context.Context, ev ir.Event) error
}

// Session is one hand of cards and its selection.
type Session struct {
	id       string
	clock    Sequencer
	recorder Recorder
	logger   *slog.Logger
	handSize int

	ctrl       *selection.Controller
	hand       []selection.Instance
	slots      map[string]card.ID
	lastResult card.ID

	ctrlOpts []selection.Option
}

// Option configures a Session.
type Option func(*Session)

// WithID sets the session ID instead of generating one.
func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// WithIDGenerator generates the session ID from gen.
func WithIDGenerator(gen IDGenerator) Option {
	return func(s *Session) {
		s.id = gen.Generate()
	}
}

// WithClock stamps events from c instead of a fresh Clock.
func WithClock(c Sequencer) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithRecorder persists every event to r.
func WithRecorder(r Recorder) Option {
	return func(s *Session) {
		s.recorder = r
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithHandSize overrides DefaultHandSize. Zero or less means unlimited.
func WithHandSize(n int) Option {
	return func(s *Session) {
		if n < 0 {
			n = 0
		}
		s.handSize = n
	}
}

// WithObserver forwards selection notifications to o.
func WithObserver(o selection.Observer) Option {
	return func(s *Session) {
		s.ctrlOpts = append(s.ctrlOpts, selection.WithObserver(o))
	}
}

// WithEvictionPolicy sets the controller's eviction policy.
func WithEvictionPolicy(p selection.EvictionPolicy) Option {
	return func(s *Session) {
		s.ctrlOpts = append(s.ctrlOpts, selection.WithEvictionPolicy(p))
	}
}

// New creates a session with an empty hand, resolving fusions through m.
// Without WithID or WithIDGenerator the ID is a fresh UUIDv7.
func New(m selection.Matcher, opts ...Option) *Session {
	s := &Session{
		handSize: DefaultHandSize,
		slots:    make(map[string]card.ID),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = UUIDv7Generator{}.Generate()
	}
	if s.clock == nil {
		s.clock = NewClock()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.logger = s.logger.With("session", s.id)
	s.ctrl = selection.New(m, s.ctrlOpts...)
	return s
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// HandSize returns the maximum number of slots a deal fills, or 0 for
// unlimited.
func (s *Session) HandSize() int {
	return s.handSize
}

// Hand returns the slots in deal order.
func (s *Session) Hand() []selection.Instance {
	out := make([]selection.Instance, len(s.hand))
	copy(out, s.hand)
	return out
}

// Selected returns the selected slots in selection order.
func (s *Session) Selected() []selection.Instance {
	return s.ctrl.Selected()
}

// Eligible reports whether the current selection can be fused.
func (s *Session) Eligible() bool {
	return s.ctrl.Eligible()
}

// LastResult returns the card produced by the most recent successful
// fusion since the last deal, or "" if there is none.
func (s *Session) LastResult() card.ID {
	return s.lastResult
}

// SlotHandle returns the handle of the i-th dealt slot.
func SlotHandle(i int) string {
	return fmt.Sprintf("slot-%d", i)
}

// Deal replaces the hand with cards. The selection and the last result
// are cleared. Cards beyond the hand size are dropped.
func (s *Session) Deal(ctx context.Context, cards []card.ID) (ir.Event, error) {
	if s.handSize > 0 && len(cards) > s.handSize {
		s.logger.Debug("truncating hand", "dealt", len(cards), "hand_size", s.handSize)
		cards = cards[:s.handSize]
	}
	var names []string
	if len(cards) > 0 {
		names = card.Strings(cards)
	}

	for i, c := range cards {
		if !card.Valid(c) {
			err := &Error{
				Code:    ErrCodeInvalidHand,
				Message: fmt.Sprintf("card %d: invalid identifier %q", i, c),
			}
			return s.reject(ctx, ir.EventDeal, "", names, err)
		}
	}

	change := s.ctrl.Clear()
	s.hand = make([]selection.Instance, len(cards))
	s.slots = make(map[string]card.ID, len(cards))
	for i, c := range cards {
		inst := selection.Instance{Handle: SlotHandle(i), Card: c}
		s.hand[i] = inst
		s.slots[inst.Handle] = c
	}
	s.lastResult = ""

	s.logger.Info("hand dealt", "cards", names)
	return s.record(ctx, ir.EventDeal, "", names, s.outcome(change))
}

// ToggleOn selects the card in slot handle. A third selection evicts the
// oldest other one.
func (s *Session) ToggleOn(ctx context.Context, handle string) (ir.Event, error) {
	c, ok := s.slots[handle]
	if !ok {
		return s.reject(ctx, ir.EventToggleOn, handle, nil, unknownSlot(handle))
	}
	change, err := s.ctrl.ToggleOn(selection.Instance{Handle: handle, Card: c})
	if err != nil {
		return s.reject(ctx, ir.EventToggleOn, handle, nil, err)
	}
	return s.record(ctx, ir.EventToggleOn, handle, nil, s.outcome(change))
}

// ToggleOff deselects the card in slot handle. Deselecting an unselected
// slot is a no-op.
func (s *Session) ToggleOff(ctx context.Context, handle string) (ir.Event, error) {
	if _, ok := s.slots[handle]; !ok {
		return s.reject(ctx, ir.EventToggleOff, handle, nil, unknownSlot(handle))
	}
	change := s.ctrl.ToggleOff(handle)
	return s.record(ctx, ir.EventToggleOff, handle, nil, s.outcome(change))
}

// Toggle flips the selection state of slot handle, the way a click on a
// card view does.
func (s *Session) Toggle(ctx context.Context, handle string) (ir.Event, error) {
	if s.ctrl.Contains(handle) {
		return s.ToggleOff(ctx, handle)
	}
	return s.ToggleOn(ctx, handle)
}

// Clear deselects everything.
func (s *Session) Clear(ctx context.Context) (ir.Event, error) {
	change := s.ctrl.Clear()
	return s.record(ctx, ir.EventClear, "", nil, s.outcome(change))
}

// Fuse attempts to fuse the selection. On success the result becomes
// LastResult and the selection is cleared; the hand is unchanged. With no
// matching recipe the selection stays as it was. Fusing without exactly
// two cards selected is rejected.
func (s *Session) Fuse(ctx context.Context) (ir.Event, error) {
	res, err := s.ctrl.Fuse()
	if err != nil {
		return s.reject(ctx, ir.EventFuse, "", nil, err)
	}

	out := s.outcome(res.Change)
	out.Fuse = res.Outcome.String()
	if res.Outcome == selection.Success {
		s.lastResult = res.Result
		out.Result = string(res.Result)
		s.logger.Info("fusion succeeded", "result", string(res.Result), "consumed", handles(res.Consumed))
	} else {
		s.logger.Debug("no recipe for selection", "selected", out.Selected)
	}
	return s.record(ctx, ir.EventFuse, "", nil, out)
}

func (s *Session) outcome(change selection.Change) ir.Outcome {
	return ir.Outcome{
		Selected:   s.ctrl.Handles(),
		Deselected: handles(change.Forced()),
		Eligible:   s.ctrl.Eligible(),
	}
}

// reject records a refused call and returns its error.
func (s *Session) reject(ctx context.Context, kind ir.EventKind, handle string, cards []string, cause error) (ir.Event, error) {
	out := ir.Outcome{
		Selected: s.ctrl.Handles(),
		Eligible: s.ctrl.Eligible(),
		Error:    errorCode(cause),
	}
	s.logger.Debug("operation rejected", "kind", string(kind), "handle", handle, "error", cause)

	ev, err := s.record(ctx, kind, handle, cards, out)
	if err != nil {
		return ev, err
	}
	return ev, cause
}

func (s *Session) record(ctx context.Context, kind ir.EventKind, handle string, cards []string, out ir.Outcome) (ir.Event, error) {
	seq := s.clock.Next()
	id, err := ir.EventID(s.id, kind, handle, cards, seq)
	if err != nil {
		return ir.Event{}, fmt.Errorf("record %s: %w", kind, err)
	}

	ev := ir.Event{
		ID:        id,
		SessionID: s.id,
		Seq:       seq,
		Kind:      kind,
		Handle:    handle,
		Cards:     cards,
		Outcome:   out,
	}

	s.logger.Debug("event",
		"seq", seq,
		"kind", string(kind),
		"handle", handle,
		"selected", out.Selected,
		"eligible", out.Eligible,
	)

	if s.recorder != nil {
		if err := s.recorder.WriteEvent(ctx, ev); err != nil {
			return ev, fmt.Errorf("record %s: %w", kind, err)
		}
	}
	return ev, nil
}

func handles(insts []selection.Instance) []string {
	if len(insts) == 0 {
		return nil
	}
	out := make([]string, len(insts))
	for i, inst := range insts {
		out[i] = inst.Handle
	}
	return out
}
