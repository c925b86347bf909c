package operations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kebairia/deployctl/internal/backup"
	"github.com/kebairia/deployctl/internal/config"
	"github.com/kebairia/deployctl/internal/health"
	"github.com/kebairia/deployctl/internal/history"
	"github.com/kebairia/deployctl/internal/logger"
	"github.com/kebairia/deployctl/internal/metrics"
	"github.com/kebairia/deployctl/internal/runtime"
	"github.com/kebairia/deployctl/internal/vault"
)

// OperationManager builds every component from the configuration and
// exposes the commands.
type OperationManager struct {
	cfg     *config.Config
	log     logger.Logger
	backups *backup.Manager
	compose *runtime.Compose
	docker  *runtime.Docker
	metrics *metrics.Recorder
	state   stateFile
}

// ManagerOption lets you override default settings on an OperationManager.
type ManagerOption func(*OperationManager)

// WithRunner replaces how compose commands are executed.
func WithRunner(r runtime.Runner) ManagerOption {
	return func(om *OperationManager) {
		om.compose.Runner = r
	}
}

// NewOperationManager wires the backup manager, compose controller, docker
// client and metrics recorder from a validated configuration.
func NewOperationManager(cfg *config.Config, log logger.Logger, opts ...ManagerOption) (*OperationManager, error) {
	if log == nil {
		log = logger.Global()
	}

	backups := backup.NewManager(cfg.Backup.Directory,
		backup.Sources{
			ConfigFile: cfg.Service.EnvFile,
			DataDir:    cfg.Service.DataDir,
			LogsDir:    cfg.Service.LogsDir,
		},
		backup.WithTimestampFormat(cfg.Backup.TimestampFormat),
		backup.WithCompressLogs(cfg.Backup.CompressLogs),
		backup.WithLogger(log),
	)

	compose := runtime.NewCompose(cfg.Service.Name,
		runtime.WithComposeBinary(cfg.Runtime.Binary),
		runtime.WithComposeFile(cfg.Service.ComposeFile),
		runtime.WithComposeProject(cfg.Service.Project),
		runtime.WithVerifyCommand(cfg.Verify.Command),
		runtime.WithComposeTimeout(cfg.Runtime.Timeout),
		runtime.WithComposeLogger(log),
	)

	docker, err := runtime.NewDocker(cfg.Runtime.DockerHost)
	if err != nil {
		return nil, fmt.Errorf("docker client init: %w", err)
	}

	om := &OperationManager{
		cfg:     cfg,
		log:     log,
		backups: backups,
		compose: compose,
		docker:  docker,
		metrics: metrics.NewRecorder(cfg.Metrics.Textfile),
		state:   stateFile{path: cfg.StatePath()},
	}
	for _, opt := range opts {
		opt(om)
	}
	return om, nil
}

// Close releases the docker client.
func (om *OperationManager) Close() error {
	return om.docker.Close()
}

// BackupManager returns the backup manager.
func (om *OperationManager) BackupManager() *backup.Manager {
	return om.backups
}

func (om *OperationManager) retention() backup.RetentionPolicy {
	return backup.RetentionPolicy{KeepLast: om.cfg.Retention.KeepLast}
}

func (om *OperationManager) poller() *health.Poller {
	checker := health.NewHTTPChecker(om.cfg.Health.Endpoint).WithTimeout(om.cfg.Health.RequestTimeout)
	return health.NewPoller(checker,
		health.WithMaxAttempts(om.cfg.Health.MaxAttempts),
		health.WithInterval(om.cfg.Health.Interval),
		health.WithLogger(om.log),
	)
}

func (om *OperationManager) secretSource() SecretSource {
	if om.cfg.Vault.Address == "" {
		return nil
	}
	return vaultSecrets{cfg: om.cfg.Vault}
}

// Deploy runs a full deployment attempt.
func (om *OperationManager) Deploy(ctx context.Context, skipVerify bool) (*Attempt, error) {
	validator := NewValidator(om.cfg,
		WithRuntimeProbe(om.docker),
		WithSecretSource(om.secretSource()),
		WithWritableCheck(om.backups.CheckWritable),
		WithEnvExport(om.compose.SetEnv),
		WithValidatorLogger(om.log),
	)

	orchestrator := NewOrchestrator(om.cfg.Service.Name, validator, om.backups, om.compose, om.poller(),
		WithRetention(om.retention()),
		WithSkipVerify(skipVerify || !om.cfg.Verify.Enabled),
		WithHistory(om.state),
		WithMetrics(om.metrics),
		WithLogger(om.log),
	)
	return orchestrator.Deploy(ctx)
}

// Rollback restores the last backup on demand and records the result.
func (om *OperationManager) Rollback(ctx context.Context) (backup.Record, error) {
	started := time.Now()
	om.exportSecrets(ctx)

	executor := NewRollbackExecutor(om.backups, om.compose, om.log)
	rec, err := executor.Rollback(ctx)
	if errors.Is(err, backup.ErrNoBackupAvailable) {
		// Nothing was attempted, so nothing is recorded.
		return rec, err
	}

	entry := history.Entry{
		ID:         uuid.NewString(),
		Kind:       history.KindRollback,
		Service:    om.cfg.Service.Name,
		Phase:      string(PhaseDone),
		Outcome:    string(OutcomeSuccess),
		Backup:     rec.Name,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err != nil {
		entry.Outcome = string(OutcomeFailed)
		entry.Phase = string(PhaseRollingBack)
		entry.Error = err.Error()
	}
	if herr := om.state.RecordAttempt(entry); herr != nil {
		om.log.Warn("history update failed", "error", herr.Error())
	}

	om.metrics.ObserveRollback(om.cfg.Service.Name, err == nil)
	if merr := om.metrics.Flush(); merr != nil {
		om.log.Warn("metrics export failed", "error", merr.Error())
	}
	return rec, err
}

// exportSecrets hands Vault secrets to compose outside of a deploy. A
// failure is logged; compose may still succeed with the env file alone.
func (om *OperationManager) exportSecrets(ctx context.Context) {
	src := om.secretSource()
	if src == nil {
		return
	}
	values, err := src.ReadSecrets(ctx, om.cfg.Vault.SecretPath)
	if err != nil {
		om.log.Warn("vault secrets unavailable", "error", err.Error())
		return
	}
	om.compose.SetEnv(values)
}

// Backup takes a manual snapshot.
func (om *OperationManager) Backup(ctx context.Context) (backup.Record, error) {
	return om.backups.Create(ctx, backup.ReasonManual)
}

// Cleanup applies the configured retention policy.
func (om *OperationManager) Cleanup() (backup.CleanupReport, error) {
	report, err := om.backups.Cleanup(om.retention())
	if err != nil {
		return report, err
	}
	om.log.Info("cleanup completed",
		"kept", len(report.Kept),
		"removed", len(report.Removed),
		"staging_removed", len(report.Staging),
	)
	return report, nil
}

// vaultSecrets logs in to Vault for every read.
type vaultSecrets struct {
	cfg config.VaultConfig
}

func (v vaultSecrets) ReadSecrets(ctx context.Context, path string) (map[string]string, error) {
	client, err := vault.NewClient(ctx,
		vault.WithAddress(v.cfg.Address),
		vault.WithAppRole(v.cfg.RoleID, v.cfg.ApproleName),
	)
	if err != nil {
		return nil, err
	}
	return client.ReadSecrets(ctx, path)
}
