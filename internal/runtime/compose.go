package runtime

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/kebairia/deployctl/internal/logger"
)

// ErrTimeout is the cancellation cause when runtime.timeout elapses.
var ErrTimeout = errors.New("operation timed out")

// ComposeOption lets you override default settings on a Compose.
type ComposeOption func(*Compose)

// Compose drives one service through the docker compose CLI.
type Compose struct {
	Binary    string
	File      string
	Project   string
	Service   string
	VerifyCmd []string
	Env       map[string]string
	Timeout   time.Duration
	Runner    Runner
	Logger    logger.Logger
}

// NewCompose returns a Compose for service plus any overrides.
func NewCompose(service string, opts ...ComposeOption) *Compose {
	c := &Compose{
		Binary:  "docker",
		Service: service,
		Env:     map[string]string{},
		Runner:  ExecRunner{},
		Logger:  logger.Global(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithComposeBinary overrides the CLI binary ("docker" or "docker-compose").
func WithComposeBinary(binary string) ComposeOption {
	return func(c *Compose) {
		if binary != "" {
			c.Binary = binary
		}
	}
}

// WithComposeFile sets the compose file passed with -f.
func WithComposeFile(file string) ComposeOption {
	return func(c *Compose) {
		if file != "" {
			c.File = file
		}
	}
}

// WithComposeProject sets the project name passed with -p.
func WithComposeProject(project string) ComposeOption {
	return func(c *Compose) {
		if project != "" {
			c.Project = project
		}
	}
}

// WithVerifyCommand sets the test command run inside the built image.
func WithVerifyCommand(cmd []string) ComposeOption {
	return func(c *Compose) {
		if len(cmd) > 0 {
			c.VerifyCmd = cmd
		}
	}
}

// WithComposeEnv adds variables to the compose process environment.
func WithComposeEnv(env map[string]string) ComposeOption {
	return func(c *Compose) {
		for k, v := range env {
			c.Env[k] = v
		}
	}
}

// WithComposeTimeout bounds every compose invocation. Zero means no bound.
func WithComposeTimeout(timeout time.Duration) ComposeOption {
	return func(c *Compose) {
		c.Timeout = timeout
	}
}

// WithRunner overrides how commands are executed.
func WithRunner(r Runner) ComposeOption {
	return func(c *Compose) {
		if r != nil {
			c.Runner = r
		}
	}
}

// WithComposeLogger sets the logger.
func WithComposeLogger(log logger.Logger) ComposeOption {
	return func(c *Compose) {
		if log != nil {
			c.Logger = log
		}
	}
}

// SetEnv adds variables to the compose process environment after
// construction, e.g. once secrets have been resolved.
func (c *Compose) SetEnv(env map[string]string) {
	for k, v := range env {
		c.Env[k] = v
	}
}

// Build rebuilds the service image without reusing any cached layer.
func (c *Compose) Build(ctx context.Context) error {
	return c.run(ctx, "build", "build", "--no-cache", c.Service)
}

// Stop stops the running service. Stopping a stopped service succeeds.
func (c *Compose) Stop(ctx context.Context) error {
	return c.run(ctx, "stop", "stop", c.Service)
}

// Start starts the service from the current image in the background.
// Starting a running service succeeds.
func (c *Compose) Start(ctx context.Context) error {
	return c.run(ctx, "start", "up", "-d", "--no-build", c.Service)
}

// RunVerification runs the verification command in a throwaway container
// of the freshly built image.
func (c *Compose) RunVerification(ctx context.Context) error {
	if len(c.VerifyCmd) == 0 {
		return &CommandError{Op: "verify", Service: c.Service, Err: errors.New("no verification command configured")}
	}
	args := append([]string{"run", "--rm", "--no-deps", c.Service}, c.VerifyCmd...)
	return c.run(ctx, "verify", args...)
}

func (c *Compose) command(args ...string) Command {
	var full []string
	// The standalone v1 binary takes no "compose" subcommand.
	if filepath.Base(c.Binary) != "docker-compose" {
		full = append(full, "compose")
	}
	if c.File != "" {
		full = append(full, "-f", c.File)
	}
	if c.Project != "" {
		full = append(full, "-p", c.Project)
	}
	full = append(full, args...)

	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+c.Env[k])
	}

	return Command{Name: c.Binary, Args: full, Env: env}
}

func (c *Compose) run(ctx context.Context, op string, args ...string) error {
	log := c.Logger.With("service", c.Service, "op", op)
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, c.Timeout, ErrTimeout)
		defer cancel()
	}

	cmd := c.command(args...)
	log.Info(op+" started", "command", cmd.Name, "args", cmd.Args)

	startTime := time.Now()
	if err := c.Runner.Run(ctx, cmd); err != nil {
		if cause := context.Cause(ctx); cause != nil {
			err = fmt.Errorf("%w: %w", cause, err)
		}
		log.Error(op+" failed", "error", err.Error())
		return &CommandError{Op: op, Service: c.Service, Err: err}
	}

	log.Info(op+" completed", "duration", time.Since(startTime).String())
	return nil
}
