package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kebairia/deployctl/internal/logger"
)

// NamePrefix starts the directory name of every backup record.
const NamePrefix = "backup_"

const stagingPrefix = ".staging-"

// DefaultTimestampFormat sorts lexically in creation order.
const DefaultTimestampFormat = "20060102_150405"

// Sources are the live paths captured by a backup and restored by a
// rollback. Any of them may be empty or absent on disk.
type Sources struct {
	ConfigFile string
	DataDir    string
	LogsDir    string
}

// Record identifies one snapshot on disk.
type Record struct {
	Name      string
	Path      string
	CreatedAt time.Time
}

// Option lets you override default settings on a Manager.
type Option func(*Manager)

// Manager creates, lists, prunes and restores backups under one root.
type Manager struct {
	root            string
	sources         Sources
	timestampFormat string
	compressLogs    bool
	now             func() time.Time
	log             logger.Logger
}

// WithTimestampFormat overrides the time layout used in backup names.
func WithTimestampFormat(format string) Option {
	return func(m *Manager) {
		if format != "" {
			m.timestampFormat = format
		}
	}
}

// WithCompressLogs stores copied log files zstd-compressed.
func WithCompressLogs(enabled bool) Option {
	return func(m *Manager) {
		m.compressLogs = enabled
	}
}

// WithClock overrides the time source used to name backups.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// NewManager returns a Manager storing backups under root.
func NewManager(root string, sources Sources, opts ...Option) *Manager {
	m := &Manager{
		root:            root,
		sources:         sources,
		timestampFormat: DefaultTimestampFormat,
		now:             time.Now,
		log:             logger.Global(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Root returns the backups directory.
func (m *Manager) Root() string { return m.root }

// Sources returns the live paths this manager captures.
func (m *Manager) Sources() Sources { return m.sources }

// Pointer returns the last-backup marker for this root.
func (m *Manager) Pointer() Pointer { return NewPointer(m.root) }

// CheckWritable verifies the backup root exists (creating it if needed)
// and accepts writes.
func (m *Manager) CheckWritable() error {
	if err := EnsureDirectoryExist(m.root); err != nil {
		return err
	}
	return VerifyWritable(m.root)
}

// Create captures the configuration file, data directory and logs
// directory into a new timestamped record. Sources that do not exist are
// skipped. The copy is staged in a hidden directory and renamed into
// place; the pointer is written only after that rename succeeds.
func (m *Manager) Create(ctx context.Context, reason string) (Record, error) {
	start := m.now()
	name := NamePrefix + start.Format(m.timestampFormat)
	rec := Record{Name: name, Path: filepath.Join(m.root, name), CreatedAt: start}
	log := m.log.With("backup", name)

	if err := EnsureDirectoryExist(m.root); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrBackup, err)
	}

	staging := filepath.Join(m.root, stagingPrefix+name)
	if err := os.RemoveAll(staging); err != nil {
		return Record{}, fmt.Errorf("%w: clear staging dir: %w", ErrBackup, err)
	}
	if err := os.Mkdir(staging, 0o755); err != nil {
		return Record{}, fmt.Errorf("%w: create staging dir: %w", ErrBackup, err)
	}

	log.Info("backup started", "reason", reason, "path", rec.Path)

	meta, err := m.capture(ctx, staging)
	if err != nil {
		_ = os.RemoveAll(staging)
		log.Error("backup failed", "error", err.Error())
		return Record{}, fmt.Errorf("%w: %w", ErrBackup, err)
	}
	meta.Name = name
	meta.Reason = reason
	meta.CreatedAt = start
	meta.DurationMs = time.Since(start).Milliseconds()
	if err := meta.Write(staging); err != nil {
		_ = os.RemoveAll(staging)
		return Record{}, fmt.Errorf("%w: %w", ErrBackup, err)
	}

	// Same-second collisions replace the earlier record.
	if err := os.RemoveAll(rec.Path); err != nil {
		_ = os.RemoveAll(staging)
		return Record{}, fmt.Errorf("%w: replace %s: %w", ErrBackup, name, err)
	}
	if err := os.Rename(staging, rec.Path); err != nil {
		_ = os.RemoveAll(staging)
		return Record{}, fmt.Errorf("%w: publish %s: %w", ErrBackup, name, err)
	}

	if err := m.Pointer().Write(name); err != nil {
		return Record{}, fmt.Errorf("%w: update last backup pointer: %w", ErrBackup, err)
	}

	log.Info("backup completed",
		"path", rec.Path,
		"size_bytes", meta.SizeBytes,
		"duration", time.Since(start).String(),
	)
	return rec, nil
}

func (m *Manager) capture(ctx context.Context, dst string) (Metadata, error) {
	var meta Metadata

	if m.sources.ConfigFile != "" {
		ok, isDir, err := exists(m.sources.ConfigFile)
		if err != nil {
			return meta, fmt.Errorf("stat config file: %w", err)
		}
		if ok && !isDir {
			base := filepath.Base(m.sources.ConfigFile)
			if err := copyFile(m.sources.ConfigFile, filepath.Join(dst, base)); err != nil {
				return meta, fmt.Errorf("copy config file: %w", err)
			}
			sum, err := fileChecksum(filepath.Join(dst, base))
			if err != nil {
				return meta, fmt.Errorf("checksum config file: %w", err)
			}
			meta.ConfigFile = base
			meta.ConfigChecksum = sum
		} else {
			m.log.Debug("config file absent, skipped", "path", m.sources.ConfigFile)
		}
	}
	if err := ctx.Err(); err != nil {
		return meta, err
	}

	hasData, err := copyIfDir(m.sources.DataDir, filepath.Join(dst, "data"))
	if err != nil {
		return meta, fmt.Errorf("copy data dir: %w", err)
	}
	meta.HasData = hasData
	if err := ctx.Err(); err != nil {
		return meta, err
	}

	hasLogs, err := copyIfDir(m.sources.LogsDir, filepath.Join(dst, "logs"))
	if err != nil {
		return meta, fmt.Errorf("copy logs dir: %w", err)
	}
	meta.HasLogs = hasLogs
	if hasLogs && m.compressLogs {
		if err := compressTree(filepath.Join(dst, "logs")); err != nil {
			return meta, err
		}
		meta.LogsCompressed = true
	}

	size, err := treeSize(dst)
	if err != nil {
		return meta, fmt.Errorf("measure backup: %w", err)
	}
	meta.SizeBytes = size
	return meta, nil
}

func copyIfDir(src, dst string) (bool, error) {
	if src == "" {
		return false, nil
	}
	ok, isDir, err := exists(src)
	if err != nil {
		return false, err
	}
	if !ok || !isDir {
		return false, nil
	}
	return true, copyDir(src, dst)
}

// List returns every backup record, newest first. A missing root yields
// an empty list.
func (m *Manager) List() ([]Record, error) {
	entries, err := os.ReadDir(m.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrBackup, m.root, err)
	}

	var records []Record
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), NamePrefix) {
			continue
		}
		rec := Record{Name: e.Name(), Path: filepath.Join(m.root, e.Name())}
		ts := strings.TrimPrefix(e.Name(), NamePrefix)
		if t, err := time.ParseInLocation(m.timestampFormat, ts, time.Local); err == nil {
			rec.CreatedAt = t
		} else if info, err := e.Info(); err == nil {
			rec.CreatedAt = info.ModTime()
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].Name > records[j].Name
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Get returns the record with the given name, or ErrNoBackupAvailable if
// its directory does not exist.
func (m *Manager) Get(name string) (Record, error) {
	path := filepath.Join(m.root, name)
	ok, isDir, err := exists(path)
	if err != nil {
		return Record{}, fmt.Errorf("%w: stat %s: %w", ErrBackup, name, err)
	}
	if !ok || !isDir {
		return Record{}, fmt.Errorf("%w: backup %q referenced by %s is missing",
			ErrNoBackupAvailable, name, PointerFilename)
	}
	rec := Record{Name: name, Path: path}
	var meta Metadata
	if err := meta.Load(path); err == nil {
		rec.CreatedAt = meta.CreatedAt
	}
	return rec, nil
}

// Latest resolves the last-backup pointer to an existing record.
func (m *Manager) Latest() (Record, error) {
	name, err := m.Pointer().Read()
	if err != nil {
		return Record{}, err
	}
	return m.Get(name)
}

// Metadata loads the metadata stored with rec.
func (m *Manager) Metadata(rec Record) (Metadata, error) {
	var meta Metadata
	err := meta.Load(rec.Path)
	return meta, err
}
