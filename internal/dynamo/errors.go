package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation commands. None of them reach callers of the
// engine; the worker counts and logs them.
var (
	// ErrUnknownBody indicates a command referenced a body id that is not live.
	ErrUnknownBody = errors.New("dynamo: unknown body id")

	// ErrUnknownCollider indicates a collider id that is not live.
	ErrUnknownCollider = errors.New("dynamo: unknown collider id")

	// ErrDuplicateBody indicates a create for a body id that is already live.
	ErrDuplicateBody = errors.New("dynamo: body id already live")

	// ErrDuplicateCollider indicates a create for a collider id that is already live.
	ErrDuplicateCollider = errors.New("dynamo: collider id already live")

	// ErrInvalidShape indicates a degenerate collision shape.
	ErrInvalidShape = errors.New("dynamo: invalid shape")

	// ErrNonFinite indicates a NaN or Inf component in a command vector.
	ErrNonFinite = errors.New("dynamo: non-finite vector")

	// ErrInvalidConfig indicates an engine configuration that cannot run.
	ErrInvalidConfig = errors.New("dynamo: invalid config")
)

// CommandError wraps an error with the command and frame it happened at.
type CommandError struct {
	Frame   uint64
	Command string
	Wrapped error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("frame %d: %s: %v", e.Frame, e.Command, e.Wrapped)
}

func (e *CommandError) Unwrap() error {
	return e.Wrapped
}
