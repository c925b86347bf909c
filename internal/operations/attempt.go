package operations

import (
	"time"

	"github.com/google/uuid"

	"github.com/kebairia/deployctl/internal/health"
	"github.com/kebairia/deployctl/internal/history"
)

// Phase is a step of the deployment state machine.
type Phase string

const (
	PhaseValidating  Phase = "validating"
	PhaseBackingUp   Phase = "backing-up"
	PhaseBuilding    Phase = "building"
	PhaseVerifying   Phase = "verifying"
	PhaseStoppingOld Phase = "stopping-old"
	PhaseStartingNew Phase = "starting-new"
	PhasePolling     Phase = "polling"
	PhaseHealthy     Phase = "healthy"
	PhaseRollingBack Phase = "rolling-back"
	PhaseDone        Phase = "done"
)

// Outcome is the final verdict of an attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// RollbackResult records whether a rollback ran and how it ended.
type RollbackResult string

const (
	RollbackNone      RollbackResult = ""
	RollbackSucceeded RollbackResult = "succeeded"
	RollbackFailed    RollbackResult = "failed"
)

// Attempt is the record of one deploy run.
type Attempt struct {
	ID      string
	Service string
	Phase   Phase
	// FailedPhase is the phase that was running when the attempt failed.
	FailedPhase   Phase
	Outcome       Outcome
	Backup        string
	PollAttempts  int
	Rollback      RollbackResult
	RollbackError string
	Err           error
	StartedAt     time.Time
	FinishedAt    time.Time

	lastHealth      *health.Result
	backupsRetained int
}

func newAttempt(service string, now time.Time) *Attempt {
	return &Attempt{
		ID:              uuid.NewString(),
		Service:         service,
		StartedAt:       now,
		backupsRetained: -1,
	}
}

func (a *Attempt) enter(p Phase) {
	a.Phase = p
}

func (a *Attempt) finish(now time.Time, err error) {
	a.FinishedAt = now
	a.Err = err
	if err != nil {
		a.Outcome = OutcomeFailed
		if a.FailedPhase == "" {
			a.FailedPhase = a.Phase
		}
	} else {
		a.Outcome = OutcomeSuccess
	}
	a.Phase = PhaseDone
}

// Duration is the wall time of the attempt.
func (a *Attempt) Duration() time.Duration {
	return a.FinishedAt.Sub(a.StartedAt)
}

// Entry converts the attempt into its persisted form.
func (a *Attempt) Entry() history.Entry {
	e := history.Entry{
		ID:           a.ID,
		Kind:         history.KindDeploy,
		Service:      a.Service,
		Phase:        string(a.Phase),
		Outcome:      string(a.Outcome),
		Backup:       a.Backup,
		PollAttempts: a.PollAttempts,
		Rollback:     string(a.Rollback),
		StartedAt:    a.StartedAt,
		FinishedAt:   a.FinishedAt,
	}
	if a.FailedPhase != "" {
		e.Phase = string(a.FailedPhase)
	}
	if a.Err != nil {
		e.Error = a.Err.Error()
	}
	return e
}
