package core

import (
	"errors"
	"fmt"
)

var (
	ErrMissingField       = errors.New("missing required field")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidID          = errors.New("invalid transaction id")
	ErrTypeMismatch       = errors.New("transaction type mismatch")
	ErrDescriptionTooLong = errors.New("description too long")

	// ErrNotFound is returned by stores when an id matches no record.
	ErrNotFound = errors.New("transaction not found")
)

// ValidationError reports a missing or invalid input field.
type ValidationError struct {
	Field string
	Err   error
}

// NewValidationError wraps err with the name of the offending field.
func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is, or wraps, a caller input problem.
func IsValidation(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	return errors.Is(err, ErrInvalidID) || errors.Is(err, ErrInvalidType) ||
		errors.Is(err, ErrTypeMismatch) || errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidAmount) || errors.Is(err, ErrMissingField)
}
