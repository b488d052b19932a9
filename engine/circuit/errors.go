package circuit

import (
	"errors"
	"fmt"
)

// Sentinel errors for topology and edit failures. All of them are local:
// a rejected operation leaves the topology unchanged.
var (
	ErrSelfConnection   = errors.New("cannot wire a component to itself")
	ErrUnknownComponent = errors.New("unknown component")
	ErrUnknownWire      = errors.New("unknown wire")
	ErrUnknownKind      = errors.New("unknown component kind")
	ErrBadTerminal      = errors.New("unknown terminal slot")
	ErrInvalidEdit      = errors.New("invalid edit value")
	ErrNotASwitch       = errors.New("component is not a switch")
)

// EditError wraps ErrInvalidEdit with the offending field and value.
type EditError struct {
	Field string
	Value float64
}

func (e *EditError) Error() string {
	return fmt.Sprintf("edit: %s: %s (value=%g)", ErrInvalidEdit, e.Field, e.Value)
}

func (e *EditError) Unwrap() error { return ErrInvalidEdit }

// NewEditError creates an EditError for a rejected field edit.
func NewEditError(field string, value float64) *EditError {
	return &EditError{Field: field, Value: value}
}
