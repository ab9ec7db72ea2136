package ot

import (
	"errors"
	"fmt"
)

var (
	// ErrPositionOutOfBounds is wrapped by every PositionError, so callers can test with errors.Is.
	ErrPositionOutOfBounds = errors.New("position out of bounds")
)

// PositionError reports an offset that falls outside the bounds of the text
// (or version history) it was checked against.
type PositionError struct {
	// Field names the offending value: "position", "length", "count" or "base version".
	Field string

	// Kind is the payload kind of the operation being checked.
	Kind Kind

	// Offset is the rejected value.
	Offset int

	// Limit is the inclusive upper bound the value was checked against.
	Limit int
}

func (e *PositionError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("%s %s %d is negative: %v", e.Kind, e.Field, e.Offset, ErrPositionOutOfBounds)
	}
	return fmt.Sprintf("%s %s %d exceeds %d: %v", e.Kind, e.Field, e.Offset, e.Limit, ErrPositionOutOfBounds)
}

func (e *PositionError) Unwrap() error {
	return ErrPositionOutOfBounds
}
