package health

import (
	"context"
	"time"
)

// Result is the outcome of a single readiness check.
type Result struct {
	Healthy   bool          `json:"healthy"     yaml:"healthy"`
	Message   string        `json:"message"     yaml:"message"`
	CheckedAt time.Time     `json:"checked_at"  yaml:"checked_at"`
	Duration  time.Duration `json:"duration_ns" yaml:"duration"`
}

// Checker performs one readiness check.
type Checker interface {
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) Result

func (f CheckerFunc) Check(ctx context.Context) Result { return f(ctx) }
