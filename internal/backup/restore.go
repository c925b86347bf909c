package backup

import (
	"fmt"
	"os"
	"path/filepath"
)

// Verify checks that rec still matches its metadata. It never modifies
// anything and is meant to run before the service is stopped.
func (m *Manager) Verify(rec Record) error {
	meta, err := m.Metadata(rec)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCorruptBackup, rec.Name, err)
	}
	if meta.ConfigFile != "" {
		sum, err := fileChecksum(filepath.Join(rec.Path, meta.ConfigFile))
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrCorruptBackup, rec.Name, err)
		}
		if sum != meta.ConfigChecksum {
			return fmt.Errorf("%w: %s: config checksum %s, want %s",
				ErrCorruptBackup, rec.Name, sum, meta.ConfigChecksum)
		}
	}
	if meta.HasData {
		if ok, isDir, err := exists(filepath.Join(rec.Path, "data")); err != nil || !ok || !isDir {
			return fmt.Errorf("%w: %s: data directory missing", ErrCorruptBackup, rec.Name)
		}
	}
	return nil
}

// Restore overwrites the live configuration file and replaces the live
// data directory with the copies held in rec. Data replacement discards
// the current contents; when rec was taken without a data directory the
// live one is removed. A config file rec did not capture is left alone.
// Logs are never restored.
func (m *Manager) Restore(rec Record) error {
	meta, err := m.Metadata(rec)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptBackup, err)
	}
	log := m.log.With("backup", rec.Name)
	log.Info("restore started", "source", rec.Path)

	if meta.ConfigFile != "" && m.sources.ConfigFile != "" {
		src := filepath.Join(rec.Path, meta.ConfigFile)
		tmp := m.sources.ConfigFile + ".restore-tmp"
		if err := copyFile(src, tmp); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("restore config file: %w", err)
		}
		if err := os.Rename(tmp, m.sources.ConfigFile); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("restore config file: %w", err)
		}
		log.Info("config file restored", "path", m.sources.ConfigFile)
	}

	if meta.HasData && m.sources.DataDir != "" {
		live := filepath.Clean(m.sources.DataDir)
		tmp := live + ".restore-tmp"
		if err := os.RemoveAll(tmp); err != nil {
			return fmt.Errorf("restore data dir: %w", err)
		}
		if err := copyDir(filepath.Join(rec.Path, "data"), tmp); err != nil {
			_ = os.RemoveAll(tmp)
			return fmt.Errorf("restore data dir: %w", err)
		}
		if err := os.RemoveAll(live); err != nil {
			_ = os.RemoveAll(tmp)
			return fmt.Errorf("discard current data dir: %w", err)
		}
		if err := os.Rename(tmp, live); err != nil {
			return fmt.Errorf("restore data dir: %w", err)
		}
		log.Info("data directory restored", "path", live)
	} else if m.sources.DataDir != "" {
		live := filepath.Clean(m.sources.DataDir)
		if err := os.RemoveAll(live); err != nil {
			return fmt.Errorf("discard current data dir: %w", err)
		}
		log.Info("data directory removed, backup holds none", "path", live)
	}

	log.Info("restore completed")
	return nil
}
