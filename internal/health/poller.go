package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kebairia/deployctl/internal/logger"
)

// ErrTimeout is returned after every allowed attempt has failed.
var ErrTimeout = errors.New("service did not become ready")

const (
	DefaultMaxAttempts = 30
	DefaultInterval    = 10 * time.Second
)

// Outcome is the terminal state of a poll.
type Outcome string

const (
	OutcomeHealthy Outcome = "healthy"
	OutcomeTimeout Outcome = "timeout"
)

// Report summarises a finished poll.
type Report struct {
	Outcome  Outcome
	Attempts int
	Last     Result
}

// PollerOption lets you override default settings on a Poller.
type PollerOption func(*Poller)

// Poller repeats a Checker at a fixed interval until it succeeds or the
// attempt budget is spent.
type Poller struct {
	checker     Checker
	maxAttempts int
	interval    time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	log         logger.Logger
}

// WithMaxAttempts sets the attempt budget.
func WithMaxAttempts(n int) PollerOption {
	return func(p *Poller) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithInterval sets the pause after a failed attempt.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithSleep replaces the wait between attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) PollerOption {
	return func(p *Poller) {
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) PollerOption {
	return func(p *Poller) {
		if log != nil {
			p.log = log
		}
	}
}

// NewPoller returns a Poller for checker with the default budget of 30
// attempts, 10s apart.
func NewPoller(checker Checker, opts ...PollerOption) *Poller {
	p := &Poller{
		checker:     checker,
		maxAttempts: DefaultMaxAttempts,
		interval:    DefaultInterval,
		sleep:       sleepContext,
		log:         logger.Global(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxAttempts returns the attempt budget.
func (p *Poller) MaxAttempts() int { return p.maxAttempts }

// PollUntilReady checks until the first healthy result. It waits the
// interval after each failure except the last, and returns ErrTimeout
// after exactly MaxAttempts failures. Cancelling ctx stops the poll early
// with the context's error.
func (p *Poller) PollUntilReady(ctx context.Context) (Report, error) {
	var report Report
	p.log.Info("health poll started", "max_attempts", p.maxAttempts, "interval", p.interval.String())

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		res := p.checker.Check(ctx)
		report.Attempts = attempt
		report.Last = res

		if res.Healthy {
			report.Outcome = OutcomeHealthy
			p.log.Info("health poll completed", "attempts", attempt, "result", res.Message)
			return report, nil
		}
		p.log.Warn("service not ready",
			"attempt", attempt,
			"max_attempts", p.maxAttempts,
			"result", res.Message,
		)

		if attempt == p.maxAttempts {
			break
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			report.Outcome = OutcomeTimeout
			return report, fmt.Errorf("health poll interrupted after %d attempts: %w", attempt, err)
		}
	}

	report.Outcome = OutcomeTimeout
	p.log.Error("health poll failed", "attempts", report.Attempts, "last_result", report.Last.Message)
	return report, fmt.Errorf("%w after %d attempts: %s", ErrTimeout, report.Attempts, report.Last.Message)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-t.C:
		return nil
	}
}
