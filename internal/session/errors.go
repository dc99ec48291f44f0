package session

import (
	"errors"
	"fmt"

	"github.com/roach88/fusion/internal/selection"
)

// ErrorCode categorizes session errors.
type ErrorCode string

const (
	// ErrCodeUnknownSlot indicates a handle that names no slot in the hand.
	ErrCodeUnknownSlot ErrorCode = "UNKNOWN_SLOT"

	// ErrCodeInvalidHand indicates a deal with an unusable card identifier.
	ErrCodeInvalidHand ErrorCode = "INVALID_HAND"
)

// Error is returned when a session operation is rejected.
type Error struct {
	Code    ErrorCode
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnknownSlot returns true if err is an UnknownSlot error.
// Uses errors.As to handle wrapped errors.
func IsUnknownSlot(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeUnknownSlot
	}
	return false
}

// IsInvalidHand returns true if err is an InvalidHand error.
func IsInvalidHand(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeInvalidHand
	}
	return false
}

func unknownSlot(handle string) *Error {
	return &Error{
		Code:    ErrCodeUnknownSlot,
		Message: fmt.Sprintf("no card in slot %q", handle),
	}
}

// errorCode returns the code recorded in Outcome.Error for a rejected call.
func errorCode(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return string(se.Code)
	}
	var sel *selection.Error
	if errors.As(err, &sel) {
		return string(sel.Code)
	}
	return "ERROR"
}
