// Package catalog implements the recipe lookup table.
//
// A Catalog maps a canonical ingredient key (see card.Key) to one result
// card. It is built once from an ordered recipe list and never mutated
// afterwards, so any number of readers may call TryMatch concurrently
// without locking.
//
// Build never fails as a whole. Malformed recipes and later duplicates are
// skipped and listed in the BuildReport; the first recipe seen for a key
// wins.
//
// Rebuilding goes through Holder, which builds a fresh Catalog and swaps
// the reference atomically. Readers see either the old table or the new
// one, never a partial table.
package catalog
