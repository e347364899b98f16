package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means no usable grant exists for the requested project.
	// Callers redirect to verification and render nothing.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the grant is valid but its role or scope excludes the action.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition means the item's current status does not allow the action.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrConflict is returned when a conditional update lost a race.
	ErrConflict = fmt.Errorf("%w: item was already updated", ErrInvalidTransition)
)

// ValidationError reports a missing or malformed mandatory field. It is raised
// before any store call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}
