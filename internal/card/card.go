// Package card defines card identifiers and the canonical keys used to look
// up recipes independent of ingredient order and letter case.
package card

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// KeySeparator joins canonical identifiers inside a recipe key.
// Identifiers containing it are invalid, so keys are never ambiguous.
const KeySeparator = "\x1f"

// ID names a card. Comparison is case-insensitive; use Equal or Canonical
// rather than ==.
type ID string

// Canonical returns the canonical form of id: Unicode case folding followed
// by NFC normalization. Every ID maps to exactly one canonical form.
//
// A new Caser is created per call because cases.Caser is stateful and
// Canonical must be safe for concurrent readers.
func Canonical(id ID) string {
	return norm.NFC.String(cases.Fold().String(string(id)))
}

// Equal reports whether a and b name the same card.
func Equal(a, b ID) bool {
	return Canonical(a) == Canonical(b)
}

// Valid reports whether id can take part in a recipe key.
func Valid(id ID) bool {
	c := Canonical(id)
	return c != "" && !strings.Contains(c, KeySeparator)
}

// Key builds the canonical key for an ingredient multiset: canonical forms,
// sorted, joined by KeySeparator. Duplicates are kept.
func Key(ids []ID) (string, error) {
	if len(ids) == 0 {
		return "", fmt.Errorf("key: no identifiers")
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		if !Valid(id) {
			return "", fmt.Errorf("key: invalid identifier %q at position %d", string(id), i)
		}
		parts[i] = Canonical(id)
	}
	sort.Strings(parts)
	return strings.Join(parts, KeySeparator), nil
}

// Strings converts ids to plain strings, preserving order.
func Strings(ids []ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// FromStrings converts plain strings to IDs, preserving order.
func FromStrings(ss []string) []ID {
	out := make([]ID, len(ss))
	for i, s := range ss {
		out[i] = ID(s)
	}
	return out
}
