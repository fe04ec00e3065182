package store

import "fmt"

// ErrNotFound is returned when a lookup by name finds no record.
type ErrNotFound struct {
	Kind string
	Name string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// ValidationError signals a rejected write: an illegal status
// transition or an unknown enum value (spec §7's "validation error"
// kind). The agent's components do not treat it apart from other
// store errors: they return it, and pkg/agent aborts the rest of the
// tick.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Reason)
}
