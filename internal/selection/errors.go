package selection

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes selection errors.
type ErrorCode string

const (
	// ErrCodeInvalidState indicates Fuse was called without exactly
	// Capacity cards selected. This is a caller bug, not a game condition.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"

	// ErrCodeInvalidInstance indicates an instance with an empty handle or
	// an unusable card identifier.
	ErrCodeInvalidInstance ErrorCode = "INVALID_INSTANCE"
)

// Error is returned by Controller operations the caller should not have
// made. It is never retried.
type Error struct {
	Code    ErrorCode
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInvalidState returns true if err is an InvalidState error.
// Uses errors.As to handle wrapped errors.
func IsInvalidState(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeInvalidState
	}
	return false
}

// IsInvalidInstance returns true if err is an InvalidInstance error.
func IsInvalidInstance(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeInvalidInstance
	}
	return false
}

func newInvalidState(have int) *Error {
	return &Error{
		Code:    ErrCodeInvalidState,
		Message: fmt.Sprintf("fuse requires exactly %d selected cards, have %d", Capacity, have),
	}
}
