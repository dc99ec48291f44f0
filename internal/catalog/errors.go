package catalog

import (
	"errors"
	"fmt"
)

// IssueCode categorizes build issues.
type IssueCode string

const (
	// ErrCodeInvalidRecipe marks an entry with no ingredients, an ingredient
	// count outside {2,3}, an invalid ingredient or a missing result.
	ErrCodeInvalidRecipe IssueCode = "INVALID_RECIPE"

	// ErrCodeDuplicateKey marks an entry whose ingredient set was already
	// claimed by an earlier recipe.
	ErrCodeDuplicateKey IssueCode = "DUPLICATE_RECIPE_KEY"
)

// Issue describes one recipe skipped during Build. Issues are diagnostics,
// never fatal to the build.
type Issue struct {
	// Index is the recipe's position in the input list.
	Index int

	Code IssueCode

	// Key is the canonical ingredient key, when it could be computed.
	Key string

	Message string
}

// Error implements the error interface.
func (e *Issue) Error() string {
	return fmt.Sprintf("%s: recipe %d: %s", e.Code, e.Index, e.Message)
}

// IsInvalidRecipe returns true if err is an InvalidRecipe issue.
// Uses errors.As to handle wrapped errors.
func IsInvalidRecipe(err error) bool {
	var is *Issue
	if errors.As(err, &is) {
		return is.Code == ErrCodeInvalidRecipe
	}
	return false
}

// IsDuplicateKey returns true if err is a DuplicateRecipeKey issue.
func IsDuplicateKey(err error) bool {
	var is *Issue
	if errors.As(err, &is) {
		return is.Code == ErrCodeDuplicateKey
	}
	return false
}

func invalidRecipe(index int, format string, args ...any) *Issue {
	return &Issue{
		Index:   index,
		Code:    ErrCodeInvalidRecipe,
		Message: fmt.Sprintf(format, args...),
	}
}

func duplicateKey(index int, key string, firstIndex int) *Issue {
	return &Issue{
		Index:   index,
		Code:    ErrCodeDuplicateKey,
		Key:     key,
		Message: fmt.Sprintf("ingredient set already defined by recipe %d", firstIndex),
	}
}
