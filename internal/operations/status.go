package operations

import (
	"context"
	"errors"
	"os"

	"github.com/kebairia/deployctl/internal/backup"
	"github.com/kebairia/deployctl/internal/health"
	"github.com/kebairia/deployctl/internal/history"
	"github.com/kebairia/deployctl/internal/runtime"
)

// Status is the current picture of the deployed service.
type Status struct {
	Service      string                   `json:"service"                 yaml:"service"`
	Project      string                   `json:"project"                 yaml:"project"`
	Containers   []runtime.ContainerState `json:"containers"              yaml:"containers"`
	RuntimeError string                   `json:"runtime_error,omitempty" yaml:"runtime_error,omitempty"`
	LastAttempt  *history.Entry           `json:"last_attempt,omitempty"  yaml:"last_attempt,omitempty"`
	LastHealth   *health.Result           `json:"last_health,omitempty"   yaml:"last_health,omitempty"`
	Check        *health.Result           `json:"check,omitempty"         yaml:"check,omitempty"`
	LastBackup   string                   `json:"last_backup,omitempty"   yaml:"last_backup,omitempty"`
	Backups      int                      `json:"backups"                 yaml:"backups"`
}

// BackupInfo is a backup record with its metadata.
type BackupInfo struct {
	Record   backup.Record
	Metadata backup.Metadata
	// Latest marks the record named by the last-backup pointer.
	Latest bool
}

// Status gathers container state, history and backups. Parts that cannot
// be read are left empty; only a broken backup directory is an error.
// With check set, one readiness request is made and its result stored.
func (om *OperationManager) Status(ctx context.Context, check bool) (*Status, error) {
	st := &Status{
		Service: om.cfg.Service.Name,
		Project: om.cfg.Service.Project,
	}

	containers, err := om.docker.ServiceContainers(ctx, om.cfg.Service.Project, om.cfg.Service.Name)
	if err != nil {
		st.RuntimeError = err.Error()
	}
	st.Containers = containers

	if _, err := os.Stat(om.cfg.StatePath()); err != nil {
		om.log.Debug("no deployment history", "path", om.cfg.StatePath())
	} else if store, err := history.Open(om.cfg.StatePath()); err != nil {
		om.log.Warn("history unavailable", "error", err.Error())
	} else {
		if e, ok, err := store.LastAttempt(); err == nil && ok {
			st.LastAttempt = &e
		}
		if res, ok, err := store.LastHealth(); err == nil && ok {
			st.LastHealth = &res
		}
		_ = store.Close()
	}

	records, err := om.backups.List()
	if err != nil {
		return st, err
	}
	st.Backups = len(records)
	if name, err := om.backups.Pointer().Read(); err == nil {
		st.LastBackup = name
	} else if !errors.Is(err, backup.ErrNoBackupAvailable) {
		return st, err
	}

	if check {
		checker := health.NewHTTPChecker(om.cfg.Health.Endpoint).WithTimeout(om.cfg.Health.RequestTimeout)
		res := checker.Check(ctx)
		st.Check = &res
		if err := om.state.SaveHealth(res); err != nil {
			om.log.Warn("history update failed", "error", err.Error())
		}
	}
	return st, nil
}

// ListBackups returns every backup, newest first.
func (om *OperationManager) ListBackups() ([]BackupInfo, error) {
	records, err := om.backups.List()
	if err != nil {
		return nil, err
	}
	latest, err := om.backups.Pointer().Read()
	if err != nil && !errors.Is(err, backup.ErrNoBackupAvailable) {
		return nil, err
	}

	infos := make([]BackupInfo, 0, len(records))
	for _, rec := range records {
		info := BackupInfo{Record: rec, Latest: rec.Name == latest}
		if meta, err := om.backups.Metadata(rec); err == nil {
			info.Metadata = meta
		} else {
			om.log.Debug("backup metadata unreadable", "backup", rec.Name, "error", err.Error())
		}
		infos = append(infos, info)
	}
	return infos, nil
}
