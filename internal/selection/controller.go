package selection

import (
	"fmt"

	"github.com/roach88/fusion/internal/card"
)

// Controller tracks the selected instances and fusion eligibility.
//
// The selection is a single ordered slice; index maps each handle to its
// position for O(1) membership.
type Controller struct {
	matcher  Matcher
	observer Observer
	policy   EvictionPolicy

	order    []Instance
	index    map[string]int
	eligible bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver registers an observer for selection notifications.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observer = o
	}
}

// WithEvictionPolicy overrides the eviction policy.
func WithEvictionPolicy(p EvictionPolicy) Option {
	return func(c *Controller) {
		c.policy = p
	}
}

// New creates an empty controller resolving matches through m.
// A nil matcher never matches.
func New(m Matcher, opts ...Option) *Controller {
	c := &Controller{
		matcher: m,
		policy:  ProtectNewest,
		order:   make([]Instance, 0, Capacity+1),
		index:   make(map[string]int, Capacity+1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ToggleOn selects inst. Selecting an already-selected handle is a no-op
// and does not disturb the order. If the selection then exceeds Capacity,
// the least recently selected other instance is evicted.
func (c *Controller) ToggleOn(inst Instance) (Change, error) {
	if inst.Handle == "" {
		return Change{Eligible: c.eligible}, &Error{
			Code:    ErrCodeInvalidInstance,
			Message: "empty handle",
		}
	}
	if !card.Valid(inst.Card) {
		return Change{Eligible: c.eligible}, &Error{
			Code:    ErrCodeInvalidInstance,
			Message: fmt.Sprintf("invalid card identifier %q for handle %q", string(inst.Card), inst.Handle),
		}
	}
	if c.Contains(inst.Handle) {
		return Change{Eligible: c.eligible}, nil
	}

	var ch Change
	c.index[inst.Handle] = len(c.order)
	c.order = append(c.order, inst)
	ch.Selected = append(ch.Selected, inst)
	c.notifySelection(inst, true, 0)

	if len(c.order) > Capacity {
		victim := c.evictionVictim(inst.Handle)
		c.remove(victim.Handle)
		ch.Deselected = append(ch.Deselected, Deselection{Instance: victim, Reason: ReasonEvicted})
		c.notifySelection(victim, false, ReasonEvicted)
	}

	c.recompute(&ch)
	return ch, nil
}

// ToggleOff deselects the instance with the given handle. Unknown handles
// are a no-op.
func (c *Controller) ToggleOff(handle string) Change {
	pos, ok := c.index[handle]
	if !ok {
		return Change{Eligible: c.eligible}
	}

	inst := c.order[pos]
	c.remove(handle)

	ch := Change{Deselected: []Deselection{{Instance: inst, Reason: ReasonToggled}}}
	c.notifySelection(inst, false, ReasonToggled)
	c.recompute(&ch)
	return ch
}

// Clear deselects every instance. Each is reported as force-deselected.
func (c *Controller) Clear() Change {
	return c.clearAll(ReasonCleared)
}

// Fuse consumes the selection if it matches a recipe.
//
// The match is resolved again rather than trusting the eligibility flag,
// since the catalog may have been swapped since the last mutation. On a
// match the selection is cleared; otherwise it is left untouched and
// Outcome is NoRecipe. Fuse returns an InvalidState error unless exactly
// Capacity instances are selected.
func (c *Controller) Fuse() (FuseResult, error) {
	if len(c.order) != Capacity {
		return FuseResult{}, newInvalidState(len(c.order))
	}

	result, ok := c.match()
	if !ok {
		var ch Change
		c.recompute(&ch)
		return FuseResult{Outcome: NoRecipe, Change: ch}, nil
	}

	consumed := c.Selected()
	ch := c.clearAll(ReasonFused)
	return FuseResult{
		Outcome:  Success,
		Result:   result,
		Consumed: consumed,
		Change:   ch,
	}, nil
}

// Refresh recomputes eligibility without changing the selection. Call it
// after publishing a new catalog.
func (c *Controller) Refresh() Change {
	var ch Change
	c.recompute(&ch)
	return ch
}

// Selected returns a copy of the selection in insertion order.
func (c *Controller) Selected() []Instance {
	out := make([]Instance, len(c.order))
	copy(out, c.order)
	return out
}

// Handles returns the selected handles in insertion order.
func (c *Controller) Handles() []string {
	out := make([]string, len(c.order))
	for i, inst := range c.order {
		out[i] = inst.Handle
	}
	return out
}

// Len returns the number of selected instances.
func (c *Controller) Len() int {
	return len(c.order)
}

// Contains reports whether handle is selected.
func (c *Controller) Contains(handle string) bool {
	_, ok := c.index[handle]
	return ok
}

// Eligible reports whether Fuse would currently succeed, as of the last
// mutation or Refresh.
func (c *Controller) Eligible() bool {
	return c.eligible
}

func (c *Controller) clearAll(reason Reason) Change {
	var ch Change
	for _, inst := range c.order {
		ch.Deselected = append(ch.Deselected, Deselection{Instance: inst, Reason: reason})
	}
	c.order = c.order[:0]
	clear(c.index)

	for _, d := range ch.Deselected {
		c.notifySelection(d.Instance, false, reason)
	}
	c.recompute(&ch)
	return ch
}

// evictionVictim picks the instance to evict after newHandle was appended.
func (c *Controller) evictionVictim(newHandle string) Instance {
	if c.policy == EvictOldest {
		return c.order[0]
	}
	for _, inst := range c.order {
		if inst.Handle != newHandle {
			return inst
		}
	}
	// unreachable while Capacity >= 1
	return c.order[0]
}

// remove deletes handle from the order and reindexes the tail.
func (c *Controller) remove(handle string) {
	pos, ok := c.index[handle]
	if !ok {
		return
	}
	c.order = append(c.order[:pos], c.order[pos+1:]...)
	delete(c.index, handle)
	for i := pos; i < len(c.order); i++ {
		c.index[c.order[i].Handle] = i
	}
}

func (c *Controller) ids() []card.ID {
	ids := make([]card.ID, len(c.order))
	for i, inst := range c.order {
		ids[i] = inst.Card
	}
	return ids
}

func (c *Controller) match() (card.ID, bool) {
	if c.matcher == nil {
		return "", false
	}
	return c.matcher.TryMatch(c.ids()...)
}

// recompute updates eligibility and records it on ch.
func (c *Controller) recompute(ch *Change) {
	eligible := false
	if len(c.order) == Capacity {
		_, eligible = c.match()
	}

	ch.Eligible = eligible
	if eligible == c.eligible {
		return
	}
	c.eligible = eligible
	ch.EligibilityChanged = true
	if c.observer != nil {
		c.observer.EligibilityChanged(eligible)
	}
}

func (c *Controller) notifySelection(inst Instance, selected bool, reason Reason) {
	if c.observer != nil {
		c.observer.SelectionChanged(inst, selected, reason)
	}
}
