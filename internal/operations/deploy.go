package operations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kebairia/deployctl/internal/backup"
	"github.com/kebairia/deployctl/internal/health"
	"github.com/kebairia/deployctl/internal/logger"
	"github.com/kebairia/deployctl/internal/metrics"
)

// OrchestratorOption lets you override default settings on an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// Orchestrator runs the deployment state machine:
//
//	validating → backing-up → building → verifying → stopping-old →
//	starting-new → polling → {healthy | rolling-back} → done
type Orchestrator struct {
	serviceName string
	validator   PrerequisiteChecker
	backups     BackupStore
	service     ServiceController
	poller      HealthPoller
	rollback    *RollbackExecutor
	retention   backup.RetentionPolicy
	skipVerify  bool
	history     HistoryRecorder
	metrics     MetricsRecorder
	now         func() time.Time
	log         logger.Logger
}

// WithRetention sets the policy applied after a healthy deploy.
func WithRetention(policy backup.RetentionPolicy) OrchestratorOption {
	return func(o *Orchestrator) {
		o.retention = policy
	}
}

// WithSkipVerify disables the verification phase.
func WithSkipVerify(skip bool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.skipVerify = skip
	}
}

// WithHistory records every attempt.
func WithHistory(h HistoryRecorder) OrchestratorOption {
	return func(o *Orchestrator) {
		o.history = h
	}
}

// WithMetrics exports every attempt.
func WithMetrics(m MetricsRecorder) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// NewOrchestrator wires the collaborators of a deploy.
func NewOrchestrator(
	serviceName string,
	validator PrerequisiteChecker,
	backups BackupStore,
	service ServiceController,
	poller HealthPoller,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		serviceName: serviceName,
		validator:   validator,
		backups:     backups,
		service:     service,
		poller:      poller,
		retention:   backup.RetentionPolicy{KeepLast: backup.DefaultKeepLast},
		now:         time.Now,
		log:         logger.Global(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.rollback = NewRollbackExecutor(backups, service, o.log)
	return o
}

// Deploy runs one attempt to completion. The returned Attempt is always
// non-nil; the error is the reason the attempt failed. A health timeout
// triggers exactly one rollback and is still reported as a failure, even
// when the rollback succeeds.
func (o *Orchestrator) Deploy(ctx context.Context) (*Attempt, error) {
	a := newAttempt(o.serviceName, o.now())
	log := o.log.With("attempt", a.ID, "service", o.serviceName)
	log.Info("deploy started")

	err := o.run(ctx, a, log)
	a.finish(o.now(), err)

	if err != nil {
		log.Error("deploy failed",
			"phase", a.FailedPhase,
			"rollback", a.Rollback,
			"duration", a.Duration().String(),
			"error", err.Error(),
		)
	} else {
		log.Info("deploy completed",
			"backup", a.Backup,
			"poll_attempts", a.PollAttempts,
			"duration", a.Duration().String(),
		)
	}

	o.record(a, log)
	return a, err
}

func (o *Orchestrator) run(ctx context.Context, a *Attempt, log logger.Logger) error {
	a.enter(PhaseValidating)
	if err := o.validator.Check(ctx); err != nil {
		if !errors.Is(err, ErrPrerequisite) {
			err = fmt.Errorf("%w: %w", ErrPrerequisite, err)
		}
		return err
	}

	a.enter(PhaseBackingUp)
	rec, err := o.backups.Create(ctx, backup.ReasonDeploy)
	if err != nil {
		return err
	}
	a.Backup = rec.Name

	a.enter(PhaseBuilding)
	if err := o.service.Build(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrBuild, err)
	}

	if o.skipVerify {
		log.Warn("verification skipped")
	} else {
		a.enter(PhaseVerifying)
		if err := o.service.RunVerification(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrVerification, err)
		}
	}

	// From here on the old service is affected, so failures roll back.
	a.enter(PhaseStoppingOld)
	if err := o.service.Stop(ctx); err != nil {
		return o.recover(ctx, a, log, fmt.Errorf("%w: stop old service: %w", ErrServiceControl, err))
	}

	a.enter(PhaseStartingNew)
	if err := o.service.Start(ctx); err != nil {
		return o.recover(ctx, a, log, fmt.Errorf("%w: start new service: %w", ErrServiceControl, err))
	}

	a.enter(PhasePolling)
	report, err := o.poller.PollUntilReady(ctx)
	a.PollAttempts = report.Attempts
	if report.Attempts > 0 {
		last := report.Last
		a.lastHealth = &last
	}
	if err != nil {
		if errors.Is(err, health.ErrTimeout) {
			err = fmt.Errorf("%w: %w", ErrHealthTimeout, err)
		}
		return o.recover(ctx, a, log, err)
	}

	a.enter(PhaseHealthy)
	cleanup, err := o.backups.Cleanup(o.retention)
	if err != nil {
		log.Warn("backup cleanup failed", "error", err.Error())
	} else {
		a.backupsRetained = len(cleanup.Kept)
	}
	return nil
}

// recover performs the single rollback of an attempt and returns cause
// unchanged; the rollback result is recorded on a.
func (o *Orchestrator) recover(ctx context.Context, a *Attempt, log logger.Logger, cause error) error {
	a.FailedPhase = a.Phase
	a.enter(PhaseRollingBack)
	log.Warn("rolling back", "failed_phase", a.FailedPhase, "reason", cause.Error())

	// An interrupt must not leave the service half-deployed.
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}

	if _, err := o.rollback.Rollback(ctx); err != nil {
		a.Rollback = RollbackFailed
		a.RollbackError = err.Error()
	} else {
		a.Rollback = RollbackSucceeded
	}
	return cause
}

func (o *Orchestrator) record(a *Attempt, log logger.Logger) {
	if o.history != nil {
		if err := o.history.RecordAttempt(a.Entry()); err != nil {
			log.Warn("history update failed", "error", err.Error())
		}
		if a.lastHealth != nil {
			if err := o.history.SaveHealth(*a.lastHealth); err != nil {
				log.Warn("history update failed", "error", err.Error())
			}
		}
	}

	if o.metrics != nil {
		o.metrics.ObserveDeploy(metrics.Deploy{
			Service:         a.Service,
			Success:         a.Outcome == OutcomeSuccess,
			FinishedAt:      a.FinishedAt,
			Duration:        a.Duration(),
			PollAttempts:    a.PollAttempts,
			RolledBack:      a.Rollback != RollbackNone,
			BackupsRetained: a.backupsRetained,
		})
		if a.Rollback != RollbackNone {
			o.metrics.ObserveRollback(a.Service, a.Rollback == RollbackSucceeded)
		}
		if err := o.metrics.Flush(); err != nil {
			log.Warn("metrics export failed", "error", err.Error())
		}
	}
}
