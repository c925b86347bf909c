package runtime

import (
	"errors"
	"fmt"
)

var (
	// ErrCommandFailed is wrapped by every CommandError.
	ErrCommandFailed = errors.New("runtime command failed")

	// ErrUnreachable means the container engine did not answer.
	ErrUnreachable = errors.New("container runtime unreachable")

	// ErrServiceNotDefined means the compose file has no such service.
	ErrServiceNotDefined = errors.New("service not defined in compose file")
)

// CommandError wraps a failed runtime operation with its context.
type CommandError struct {
	Op      string // build, stop, start, verify
	Service string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Service, e.Err)
}

func (e *CommandError) Unwrap() []error {
	return []error{ErrCommandFailed, e.Err}
}
