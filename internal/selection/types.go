package selection

import (
	"github.com/roach88/fusion/internal/card"
)

// Capacity is the maximum number of selected instances.
const Capacity = 2

// Instance is a caller-supplied handle paired with the card it shows.
// Handles identify instances: two hand slots holding the same card are
// different instances.
type Instance struct {
	Handle string  `json:"handle"`
	Card   card.ID `json:"card"`
}

// Matcher resolves a set of card identifiers to a fusion result.
// *catalog.Catalog and *catalog.Holder implement it.
type Matcher interface {
	TryMatch(ids ...card.ID) (card.ID, bool)
}

// Reason explains why an instance was deselected.
type Reason int

const (
	// ReasonToggled is a deselection the caller asked for.
	ReasonToggled Reason = iota + 1
	// ReasonEvicted is a forced deselection to stay within Capacity.
	ReasonEvicted
	// ReasonCleared is a forced deselection from Clear.
	ReasonCleared
	// ReasonFused is a forced deselection after a successful fusion.
	ReasonFused
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonToggled:
		return "toggled"
	case ReasonEvicted:
		return "evicted"
	case ReasonCleared:
		return "cleared"
	case ReasonFused:
		return "fused"
	default:
		return "unknown"
	}
}

// Forced reports whether the caller did not ask for this deselection
// directly, so the presentation layer must update the instance itself.
func (r Reason) Forced() bool {
	return r == ReasonEvicted || r == ReasonCleared || r == ReasonFused
}

// Deselection records one instance leaving the selection.
type Deselection struct {
	Instance Instance
	Reason   Reason
}

// Change describes the effect of one mutation.
type Change struct {
	// Selected holds the instance newly selected, if any.
	Selected []Instance

	// Deselected holds instances that left the selection, in order.
	Deselected []Deselection

	// Eligible is the fusion eligibility after the mutation.
	Eligible bool

	// EligibilityChanged is true when Eligible differs from before.
	EligibilityChanged bool
}

// Empty reports whether the mutation changed nothing.
func (c Change) Empty() bool {
	return len(c.Selected) == 0 && len(c.Deselected) == 0 && !c.EligibilityChanged
}

// Forced returns the instances deselected without the caller asking.
func (c Change) Forced() []Instance {
	var out []Instance
	for _, d := range c.Deselected {
		if d.Reason.Forced() {
			out = append(out, d.Instance)
		}
	}
	return out
}

// Outcome is the result kind of a fusion attempt.
type Outcome int

const (
	// Success means the selection matched a recipe and was consumed.
	Success Outcome = iota + 1
	// NoRecipe means the selection matched nothing and was left alone.
	NoRecipe
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case NoRecipe:
		return "no_recipe"
	default:
		return "unknown"
	}
}

// FuseResult is returned by Fuse.
type FuseResult struct {
	Outcome Outcome

	// Result is the produced card. Empty unless Outcome is Success.
	Result card.ID

	// Consumed lists the instances fused, in selection order. Empty unless
	// Outcome is Success.
	Consumed []Instance

	// Change describes the selection update: a clear on success, at most
	// an eligibility refresh on NoRecipe.
	Change Change
}

// Observer receives selection notifications as they happen.
// Callbacks run synchronously inside the mutating call and must not call
// back into the Controller.
type Observer interface {
	SelectionChanged(inst Instance, selected bool, reason Reason)
	EligibilityChanged(eligible bool)
}

// EvictionPolicy chooses which instance to evict when over Capacity.
type EvictionPolicy int

const (
	// ProtectNewest evicts the oldest instance that is not the one just
	// selected. This is the default.
	ProtectNewest EvictionPolicy = iota
	// EvictOldest evicts the front of the selection unconditionally.
	EvictOldest
)
