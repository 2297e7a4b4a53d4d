package route

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every error returned by the tracking core wraps one of these.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
)

var (
	ErrSessionNotFound     = fmt.Errorf("session %w", ErrNotFound)
	ErrSessionCompleted    = fmt.Errorf("%w: session is completed", ErrInvalidState)
	ErrOpenSessionExists   = fmt.Errorf("%w: employee already has an open session", ErrConflict)
	ErrSessionNotOwned     = fmt.Errorf("%w: session belongs to another employee", ErrForbidden)
	ErrNoCompletionPending = fmt.Errorf("%w: no completion candidate for session", ErrInvalidState)
)

// ValidationError describes a malformed field in a coordinate, event or session payload.
type ValidationError struct {
	Field  string
	Reason string
}

// Invalid returns a ValidationError for field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
