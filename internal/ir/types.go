package ir

import (
	"slices"

	"github.com/roach88/fusion/internal/card"
)

// Book is a compiled recipe book: the card definitions plus the ordered
// recipe list a catalog is built from. Recipe order matters: when two
// recipes share an ingredient set, the first one wins.
type Book struct {
	Cards   []CardSpec   `json:"cards" yaml:"cards"`
	Recipes []RecipeSpec `json:"recipes" yaml:"recipes"`
}

// CardSpec describes a single card.
type CardSpec struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// RecipeSpec is one recipe as authored. It may be malformed; the catalog
// build skips and reports bad entries instead of failing.
type RecipeSpec struct {
	Ingredients []string `json:"ingredients" yaml:"ingredients"`
	Result      string   `json:"result" yaml:"result"`

	// Line is the source line, when known. Not serialized.
	Line int `json:"-" yaml:"-"`
}

// Card looks up a card definition by case-insensitive ID.
func (b *Book) Card(id string) (CardSpec, bool) {
	for _, c := range b.Cards {
		if card.Equal(card.ID(c.ID), card.ID(id)) {
			return c, true
		}
	}
	return CardSpec{}, false
}

// DisplayName returns the card's name, falling back to its ID.
func (b *Book) DisplayName(id string) string {
	if c, ok := b.Card(id); ok && c.Name != "" {
		return c.Name
	}
	return id
}

// toCanonicalMap converts the book to a map for canonical JSON.
func (b *Book) toCanonicalMap() map[string]any {
	cards := make([]any, len(b.Cards))
	for i, c := range b.Cards {
		m := map[string]any{"id": c.ID}
		if c.Name != "" {
			m["name"] = c.Name
		}
		if c.Description != "" {
			m["description"] = c.Description
		}
		cards[i] = m
	}

	recipes := make([]any, len(b.Recipes))
	for i, r := range b.Recipes {
		ingredients := make([]any, len(r.Ingredients))
		for j, ing := range r.Ingredients {
			ingredients[j] = ing
		}
		recipes[i] = map[string]any{
			"ingredients": ingredients,
			"result":      r.Result,
		}
	}

	return map[string]any{
		"cards":   cards,
		"recipes": recipes,
	}
}

// EventKind identifies what a recorded session event did.
type EventKind string

const (
	EventDeal      EventKind = "deal"
	EventToggleOn  EventKind = "toggle_on"
	EventToggleOff EventKind = "toggle_off"
	EventClear     EventKind = "clear"
	EventFuse      EventKind = "fuse"
)

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	switch k {
	case EventDeal, EventToggleOn, EventToggleOff, EventClear, EventFuse:
		return true
	}
	return false
}

// Event is one recorded session operation and what it produced.
//
// ID covers the input (session, kind, handle, cards, seq) but not the
// outcome, so replay can recompute the outcome and compare.
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Seq       int64     `json:"seq"`
	Kind      EventKind `json:"kind"`
	Handle    string    `json:"handle,omitempty"`
	Cards     []string  `json:"cards,omitempty"`
	Outcome   Outcome   `json:"outcome"`
}

// SessionRecord describes a persisted session: which book it played and
// the hand it was created with.
type SessionRecord struct {
	ID            string   `json:"id"`
	BookHash      string   `json:"book_hash"`
	Hand          []string `json:"hand"`
	HandSize      int      `json:"hand_size"`
	CreatedSeq    int64    `json:"created_seq"`
	EngineVersion string   `json:"engine_version"`
	IRVersion     string   `json:"ir_version"`
}

// Fuse outcome values recorded in Outcome.Fuse.
const (
	FuseSuccess  = "success"
	FuseNoRecipe = "no_recipe"
)

// Outcome is the observable state after an event.
type Outcome struct {
	// Selected lists selected handles in selection order.
	Selected []string `json:"selected"`

	// Deselected lists handles force-deselected by this event (eviction,
	// clear, or a successful fuse).
	Deselected []string `json:"deselected,omitempty"`

	Eligible bool   `json:"eligible"`
	Fuse     string `json:"fuse,omitempty"`
	Result   string `json:"result,omitempty"`

	// Error holds an error code when the operation was rejected.
	Error string `json:"error,omitempty"`
}

// Equal reports whether two outcomes match. Nil and empty slices are equal.
func (o Outcome) Equal(p Outcome) bool {
	return slices.Equal(o.Selected, p.Selected) &&
		slices.Equal(o.Deselected, p.Deselected) &&
		o.Eligible == p.Eligible &&
		o.Fuse == p.Fuse &&
		o.Result == p.Result &&
		o.Error == p.Error
}

// ToCanonicalMap converts the outcome to a map for canonical JSON.
// Selected is always present; empty optional fields are omitted.
func (o Outcome) ToCanonicalMap() map[string]any {
	m := map[string]any{
		"selected": stringsToAny(o.Selected),
		"eligible": o.Eligible,
	}
	if len(o.Deselected) > 0 {
		m["deselected"] = stringsToAny(o.Deselected)
	}
	if o.Fuse != "" {
		m["fuse"] = o.Fuse
	}
	if o.Result != "" {
		m["result"] = o.Result
	}
	if o.Error != "" {
		m["error"] = o.Error
	}
	return m
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
