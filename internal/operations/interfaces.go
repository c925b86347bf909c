package operations

import (
	"context"

	"github.com/kebairia/deployctl/internal/backup"
	"github.com/kebairia/deployctl/internal/health"
	"github.com/kebairia/deployctl/internal/history"
	"github.com/kebairia/deployctl/internal/metrics"
)

// ServiceController drives the lifecycle of the deployed service.
type ServiceController interface {
	Build(ctx context.Context) error
	Stop(ctx context.Context) error
	Start(ctx context.Context) error
	RunVerification(ctx context.Context) error
}

// HealthPoller waits for the service to report ready.
type HealthPoller interface {
	PollUntilReady(ctx context.Context) (health.Report, error)
}

// BackupStore snapshots and restores service state.
type BackupStore interface {
	Create(ctx context.Context, reason string) (backup.Record, error)
	Cleanup(policy backup.RetentionPolicy) (backup.CleanupReport, error)
	Latest() (backup.Record, error)
	Verify(rec backup.Record) error
	Restore(rec backup.Record) error
}

// PrerequisiteChecker decides whether a deploy may start.
type PrerequisiteChecker interface {
	Check(ctx context.Context) error
}

// HistoryRecorder persists attempt summaries.
type HistoryRecorder interface {
	RecordAttempt(e history.Entry) error
	SaveHealth(res health.Result) error
}

// MetricsRecorder exports run outcomes.
type MetricsRecorder interface {
	ObserveDeploy(d metrics.Deploy)
	ObserveRollback(service string, success bool)
	Flush() error
}

// RuntimeProbe checks that the container engine answers.
type RuntimeProbe interface {
	Ping(ctx context.Context) error
}

// SecretSource resolves key/value secrets stored at a path.
type SecretSource interface {
	ReadSecrets(ctx context.Context, path string) (map[string]string, error)
}
