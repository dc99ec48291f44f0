package catalog

import (
	"io"
	"log/slog"

	"github.com/roach88/fusion/internal/card"
	"github.com/roach88/fusion/internal/ir"
)

// Ingredient count bounds for a recipe.
const (
	MinIngredients = 2
	MaxIngredients = 3
)

// Recipe maps an unordered ingredient multiset to one result card.
type Recipe struct {
	Ingredients []card.ID
	Result      card.ID
}

// Entry is one accepted recipe, as stored in the catalog.
type Entry struct {
	// Index is the recipe's position in the build input.
	Index       int
	Key         string
	Ingredients []card.ID
	Result      card.ID
}

// Catalog is an immutable recipe lookup table.
type Catalog struct {
	byKey   map[string]int // key -> position in entries
	entries []Entry
}

// BuildReport summarizes a Build.
type BuildReport struct {
	// Total is the number of recipes offered.
	Total int

	// Loaded is the number of recipes accepted into the table.
	Loaded int

	// Invalid lists entries skipped as InvalidRecipe.
	Invalid []*Issue

	// Duplicates lists entries skipped as DuplicateRecipeKey.
	Duplicates []*Issue
}

// Skipped returns the number of entries that did not make it into the table.
func (r *BuildReport) Skipped() int {
	return len(r.Invalid) + len(r.Duplicates)
}

// Issues returns all issues in input order.
func (r *BuildReport) Issues() []*Issue {
	out := make([]*Issue, 0, r.Skipped())
	i, j := 0, 0
	for i < len(r.Invalid) || j < len(r.Duplicates) {
		switch {
		case j >= len(r.Duplicates):
			out = append(out, r.Invalid[i])
			i++
		case i >= len(r.Invalid):
			out = append(out, r.Duplicates[j])
			j++
		case r.Invalid[i].Index < r.Duplicates[j].Index:
			out = append(out, r.Invalid[i])
			i++
		default:
			out = append(out, r.Duplicates[j])
			j++
		}
	}
	return out
}

// BuildOptions configures Build.
type BuildOptions struct {
	// Logger receives one Warn record per skipped recipe. Nil discards.
	Logger *slog.Logger
}

// Build constructs a catalog from an ordered recipe list.
//
// For each recipe the canonical key is computed (card.Key) and inserted
// only if absent: the first recipe seen for an ingredient set wins.
// Malformed entries are skipped and reported; Build itself cannot fail.
func Build(recipes []Recipe) (*Catalog, *BuildReport) {
	return BuildWithOptions(recipes, BuildOptions{})
}

// BuildWithOptions is Build with a logger for skipped entries.
func BuildWithOptions(recipes []Recipe, opts BuildOptions) (*Catalog, *BuildReport) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Catalog{
		byKey:   make(map[string]int, len(recipes)),
		entries: make([]Entry, 0, len(recipes)),
	}
	report := &BuildReport{Total: len(recipes)}

	for i, r := range recipes {
		key, issue := validateRecipe(i, r)
		if issue != nil {
			report.Invalid = append(report.Invalid, issue)
			logger.Warn("skipping invalid recipe",
				"index", i,
				"code", string(issue.Code),
				"reason", issue.Message,
			)
			continue
		}

		if pos, exists := c.byKey[key]; exists {
			first := c.entries[pos]
			issue := duplicateKey(i, key, first.Index)
			report.Duplicates = append(report.Duplicates, issue)
			logger.Warn("ignoring duplicate recipe",
				"index", i,
				"first_index", first.Index,
				"kept_result", string(first.Result),
				"ignored_result", string(r.Result),
			)
			continue
		}

		ingredients := make([]card.ID, len(r.Ingredients))
		copy(ingredients, r.Ingredients)

		c.byKey[key] = len(c.entries)
		c.entries = append(c.entries, Entry{
			Index:       i,
			Key:         key,
			Ingredients: ingredients,
			Result:      r.Result,
		})
	}

	report.Loaded = len(c.entries)
	return c, report
}

// validateRecipe returns the recipe's canonical key, or the reason it must
// be skipped.
func validateRecipe(index int, r Recipe) (string, *Issue) {
	n := len(r.Ingredients)
	if n == 0 {
		return "", invalidRecipe(index, "no ingredients")
	}
	if n < MinIngredients || n > MaxIngredients {
		return "", invalidRecipe(index, "has %d ingredients, want %d or %d", n, MinIngredients, MaxIngredients)
	}
	if r.Result == "" {
		return "", invalidRecipe(index, "missing result")
	}
	if !card.Valid(r.Result) {
		return "", invalidRecipe(index, "invalid result identifier %q", string(r.Result))
	}

	key, err := card.Key(r.Ingredients)
	if err != nil {
		return "", invalidRecipe(index, "%v", err)
	}
	return key, nil
}

// TryMatch returns the result for the given ingredients, in any order and
// any letter case. It reports false when there is no recipe, when the count
// is outside {2,3}, or when an identifier is invalid.
//
// TryMatch is pure and safe for concurrent use. A nil catalog matches
// nothing.
func (c *Catalog) TryMatch(ids ...card.ID) (card.ID, bool) {
	if c == nil || len(ids) < MinIngredients || len(ids) > MaxIngredients {
		return "", false
	}
	key, err := card.Key(ids)
	if err != nil {
		return "", false
	}
	pos, ok := c.byKey[key]
	if !ok {
		return "", false
	}
	return c.entries[pos].Result, true
}

// Len returns the number of recipes in the table.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Entries returns the accepted recipes in insertion order.
// The returned slice is a copy; the catalog stays immutable.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	out := make([]Entry, len(c.entries))
	for i, e := range c.entries {
		e.Ingredients = append([]card.ID(nil), e.Ingredients...)
		out[i] = e
	}
	return out
}

// FromSpecs converts authored recipe specs into catalog recipes, keeping
// order. Malformed specs pass through untouched so Build can report them.
func FromSpecs(specs []ir.RecipeSpec) []Recipe {
	out := make([]Recipe, len(specs))
	for i, s := range specs {
		out[i] = Recipe{
			Ingredients: card.FromStrings(s.Ingredients),
			Result:      card.ID(s.Result),
		}
	}
	return out
}
