package backup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultKeepLast is the number of backups kept when nothing is configured.
const DefaultKeepLast = 5

// RetentionPolicy governs how many backups survive Cleanup.
type RetentionPolicy struct {
	KeepLast int
}

// CleanupReport lists what a Cleanup run kept and removed.
type CleanupReport struct {
	Kept    []string
	Removed []string
	// Protected is set when the pointer target fell outside the keep
	// window and was kept anyway.
	Protected string
	// Staging lists leftover staging directories of interrupted backups.
	Staging []string
}

// Cleanup deletes every record beyond policy.KeepLast, newest first. The
// record named by the last-backup pointer is never deleted. A failed
// delete is logged and collected; the remaining records are still
// processed. Staging directories left behind by interrupted backups are
// removed as well.
func (m *Manager) Cleanup(policy RetentionPolicy) (CleanupReport, error) {
	var report CleanupReport
	if policy.KeepLast < 1 {
		return report, fmt.Errorf("%w: keep_last must be at least 1, got %d",
			ErrInvalidRetention, policy.KeepLast)
	}

	records, err := m.List()
	if err != nil {
		return report, err
	}

	current, err := m.Pointer().Read()
	if err != nil && !errors.Is(err, ErrNoBackupAvailable) {
		// Without a readable pointer nothing can be proven safe to delete.
		return report, fmt.Errorf("%w: %w", ErrBackup, err)
	}

	var errs []error
	report.Staging, errs = m.removeStaging()

	for i, rec := range records {
		if i < policy.KeepLast {
			report.Kept = append(report.Kept, rec.Name)
			continue
		}
		if rec.Name == current {
			m.log.Warn("keeping backup referenced by last backup pointer",
				"backup", rec.Name, "keep_last", policy.KeepLast)
			report.Kept = append(report.Kept, rec.Name)
			report.Protected = rec.Name
			continue
		}
		if err := os.RemoveAll(rec.Path); err != nil {
			m.log.Error("failed to delete old backup", "backup", rec.Name, "error", err.Error())
			errs = append(errs, fmt.Errorf("delete %s: %w", rec.Name, err))
			report.Kept = append(report.Kept, rec.Name)
			continue
		}
		m.log.Info("deleted old backup", "backup", rec.Name)
		report.Removed = append(report.Removed, rec.Name)
	}

	if len(errs) > 0 {
		return report, fmt.Errorf("%w: %w", ErrBackup, errors.Join(errs...))
	}
	return report, nil
}

// removeStaging deletes every staging directory under the root. Create
// removes or publishes its own staging directory before returning, so
// any that remain belong to a run that never finished.
func (m *Manager) removeStaging() ([]string, []error) {
	entries, err := os.ReadDir(m.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, []error{fmt.Errorf("list %s: %w", m.root, err)}
	}

	var removed []string
	var errs []error
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), stagingPrefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.root, e.Name())); err != nil {
			m.log.Error("failed to delete staging directory", "dir", e.Name(), "error", err.Error())
			errs = append(errs, fmt.Errorf("delete %s: %w", e.Name(), err))
			continue
		}
		m.log.Info("deleted leftover staging directory", "dir", e.Name())
		removed = append(removed, e.Name())
	}
	return removed, errs
}
