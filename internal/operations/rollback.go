package operations

import (
	"context"
	"fmt"
	"time"

	"github.com/kebairia/deployctl/internal/backup"
	"github.com/kebairia/deployctl/internal/logger"
)

// RollbackExecutor restores the last backup and restarts the service.
type RollbackExecutor struct {
	backups BackupStore
	service ServiceController
	log     logger.Logger
}

// NewRollbackExecutor returns a RollbackExecutor.
func NewRollbackExecutor(backups BackupStore, service ServiceController, log logger.Logger) *RollbackExecutor {
	if log == nil {
		log = logger.Global()
	}
	return &RollbackExecutor{backups: backups, service: service, log: log}
}

// Rollback resolves the last-backup pointer, checks the backup, stops the
// service, restores configuration and data, and starts the service again.
// When no usable backup exists nothing is stopped or modified. Health is
// not polled afterwards.
func (r *RollbackExecutor) Rollback(ctx context.Context) (backup.Record, error) {
	start := time.Now()

	rec, err := r.backups.Latest()
	if err != nil {
		r.log.Error("rollback failed", "error", err.Error())
		return backup.Record{}, fmt.Errorf("%w: %w", ErrRollback, err)
	}
	log := r.log.With("backup", rec.Name)
	log.Info("rollback started", "path", rec.Path)

	if err := r.backups.Verify(rec); err != nil {
		log.Error("rollback failed", "step", "verify", "error", err.Error())
		return rec, fmt.Errorf("%w: %w", ErrRollback, err)
	}

	if err := r.service.Stop(ctx); err != nil {
		log.Error("rollback failed", "step", "stop", "error", err.Error())
		return rec, fmt.Errorf("%w: stop service: %w", ErrRollback, err)
	}

	if err := r.backups.Restore(rec); err != nil {
		log.Error("rollback failed", "step", "restore", "error", err.Error())
		return rec, fmt.Errorf("%w: %w", ErrRollback, err)
	}

	if err := r.service.Start(ctx); err != nil {
		log.Error("rollback failed", "step", "start", "error", err.Error())
		return rec, fmt.Errorf("%w: start service: %w", ErrRollback, err)
	}

	log.Info("rollback completed", "duration", time.Since(start).String())
	return rec, nil
}
