package observation

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState reports a snapshot that breaks the encoder's preconditions.
	// It signals a contract violation between caller and engine and is never retried.
	ErrInvalidState = errors.New("invalid simulation state")

	ErrUnknownRepresentation = errors.New("unknown observation representation")
)

// StateError describes why a snapshot was rejected. It unwraps to ErrInvalidState.
type StateError struct {
	Reason string
	Left   int
	Right  int
	Active int
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s (left=%d right=%d active=%d)", ErrInvalidState, e.Reason, e.Left, e.Right, e.Active)
}

func (e *StateError) Unwrap() error {
	return ErrInvalidState
}

func stateError(reason string, n1, n2, active int) *StateError {
	return &StateError{Reason: reason, Left: n1, Right: n2, Active: active}
}
