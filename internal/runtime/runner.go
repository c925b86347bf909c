package runtime

import (
	"context"
	"io"
	"os"
	"os/exec"
)

// Command is one external program invocation.
type Command struct {
	Name string
	Args []string
	Env  []string // appended to the current process environment
	Dir  string
}

// Runner executes commands. ExecRunner is the real implementation; tests
// substitute a recorder.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands with os/exec, streaming their output.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Run starts cmd and waits for it to exit. A non-zero exit is an error.
func (r ExecRunner) Run(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Dir = c.Dir
	cmd.Stdout = r.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = r.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	return cmd.Run()
}
