package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline's failure taxonomy.
var (
	// ErrNoQueryTerm is the only hard input-validation error: the caller
	// supplied nothing usable to search with.
	ErrNoQueryTerm = errors.New("no usable query term")

	// ErrDocumentUnprocessable means the registration document yielded no
	// HSN/TSN pair, or the resolver found no matching vehicle (422-shaped).
	ErrDocumentUnprocessable = errors.New("document unprocessable")

	// ErrLookupUnavailable means the vehicle-lookup endpoint could not be
	// reached (503-shaped).
	ErrLookupUnavailable = errors.New("vehicle lookup unavailable")

	ErrInvalidBrand = errors.New("invalid brand filter")
	ErrInvalidHSN   = errors.New("invalid HSN")
	ErrInvalidTSN   = errors.New("invalid TSN")
)

// ValidationError wraps a sentinel with the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
