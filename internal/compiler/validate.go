package compiler

import (
	"fmt"

	"github.com/roach88/fusion/internal/card"
	"github.com/roach88/fusion/internal/catalog"
	"github.com/roach88/fusion/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrIngredientCount   = "E201" // recipe needs 2 or 3 ingredients
	ErrEmptyResult       = "E202" // recipe has no result
	ErrUnknownCard       = "E203" // reference to a card not defined in the book
	ErrDuplicateRecipe   = "E204" // ingredient set already claimed
	ErrDuplicateCard     = "E205" // card ID defined twice
	ErrInvalidIdentifier = "E206" // empty or unusable identifier
)

// Severity levels for validation findings.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError represents one lint finding.
type ValidationError struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Line     int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate lints a book. It returns every finding (does not fail-fast).
//
// Errors mark recipes the catalog will skip. Warnings mark things the
// catalog tolerates: references to undefined cards (the game treats them
// as placeholders) and later duplicates (first one wins).
func Validate(book *ir.Book) []ValidationError {
	var errs []ValidationError

	known := make(map[string]bool, len(book.Cards))
	for i, c := range book.Cards {
		field := fmt.Sprintf("card[%d]", i)
		if !card.Valid(card.ID(c.ID)) {
			errs = append(errs, ValidationError{
				Field:    field,
				Message:  fmt.Sprintf("invalid card ID %q", c.ID),
				Code:     ErrInvalidIdentifier,
				Severity: SeverityError,
			})
			continue
		}
		key := card.Canonical(card.ID(c.ID))
		if known[key] {
			errs = append(errs, ValidationError{
				Field:    field,
				Message:  fmt.Sprintf("duplicate card ID %q", c.ID),
				Code:     ErrDuplicateCard,
				Severity: SeverityError,
			})
		}
		known[key] = true
	}

	firstByKey := make(map[string]int)
	for i, r := range book.Recipes {
		field := fmt.Sprintf("recipe[%d]", i)

		n := len(r.Ingredients)
		if n < catalog.MinIngredients || n > catalog.MaxIngredients {
			errs = append(errs, ValidationError{
				Field:    field + ".ingredients",
				Message:  fmt.Sprintf("has %d ingredients, want %d or %d", n, catalog.MinIngredients, catalog.MaxIngredients),
				Code:     ErrIngredientCount,
				Severity: SeverityError,
				Line:     r.Line,
			})
		}

		if r.Result == "" {
			errs = append(errs, ValidationError{
				Field:    field + ".result",
				Message:  "result is required",
				Code:     ErrEmptyResult,
				Severity: SeverityError,
				Line:     r.Line,
			})
		}

		refs := append(append([]string(nil), r.Ingredients...), r.Result)
		badRef := false
		for _, ref := range refs {
			if ref == "" {
				continue
			}
			if !card.Valid(card.ID(ref)) {
				badRef = true
				errs = append(errs, ValidationError{
					Field:    field,
					Message:  fmt.Sprintf("invalid card ID %q", ref),
					Code:     ErrInvalidIdentifier,
					Severity: SeverityError,
					Line:     r.Line,
				})
				continue
			}
			if len(book.Cards) > 0 && !known[card.Canonical(card.ID(ref))] {
				errs = append(errs, ValidationError{
					Field:    field,
					Message:  fmt.Sprintf("card %q is not defined; it will be a placeholder", ref),
					Code:     ErrUnknownCard,
					Severity: SeverityWarning,
					Line:     r.Line,
				})
			}
		}

		if badRef || r.Result == "" || n < catalog.MinIngredients || n > catalog.MaxIngredients {
			continue
		}
		key, err := card.Key(card.FromStrings(r.Ingredients))
		if err != nil {
			continue
		}
		if first, dup := firstByKey[key]; dup {
			errs = append(errs, ValidationError{
				Field:    field,
				Message:  fmt.Sprintf("ingredient set already defined by recipe[%d]; this recipe is ignored", first),
				Code:     ErrDuplicateRecipe,
				Severity: SeverityWarning,
				Line:     r.Line,
			})
			continue
		}
		firstByKey[key] = i
	}

	return errs
}

// HasErrors reports whether any finding has error severity.
func HasErrors(findings []ValidationError) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}
