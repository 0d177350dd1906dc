package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the referenced message id does not resolve.
	ErrNotFound = errors.New("message not found")

	// ErrInvalidTransition means the requested state change is not reachable
	// from the message's current state. Storage is left untouched.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// ValidationError reports a malformed or missing request field. It never
// reaches the broker or push layers.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}
