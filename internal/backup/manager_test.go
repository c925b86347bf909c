package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kebairia/deployctl/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// steppingClock returns a clock that advances one second per call.
func steppingClock() func() time.Time {
	t := time.Date(2025, 4, 24, 21, 0, 0, 0, time.Local)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

type fixture struct {
	root    string
	sources Sources
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		root: filepath.Join(dir, "backups"),
		sources: Sources{
			ConfigFile: filepath.Join(dir, ".env"),
			DataDir:    filepath.Join(dir, "data"),
			LogsDir:    filepath.Join(dir, "logs"),
		},
	}
	require.NoError(t, os.WriteFile(f.sources.ConfigFile, []byte("SECRET_KEY=one\n"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(f.sources.DataDir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.sources.DataDir, "nested", "db.json"), []byte(`{"v":1}`), 0o644))
	require.NoError(t, os.MkdirAll(f.sources.LogsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.sources.LogsDir, "app.log"), []byte("started\n"), 0o644))
	return f
}

func (f fixture) manager(opts ...Option) *Manager {
	opts = append([]Option{WithClock(steppingClock()), WithLogger(logger.Nop())}, opts...)
	return NewManager(f.root, f.sources, opts...)
}

func TestCreate_CopiesSourcesAndWritesPointer(t *testing.T) {
	f := newFixture(t)
	m := f.manager()

	rec, err := m.Create(context.Background(), ReasonManual)
	require.NoError(t, err)

	assert.Equal(t, "backup_20250424_210001", rec.Name)
	assert.FileExists(t, filepath.Join(rec.Path, ".env"))
	assert.FileExists(t, filepath.Join(rec.Path, "data", "nested", "db.json"))
	assert.FileExists(t, filepath.Join(rec.Path, "logs", "app.log"))

	name, err := m.Pointer().Read()
	require.NoError(t, err)
	assert.Equal(t, rec.Name, name)

	meta, err := m.Metadata(rec)
	require.NoError(t, err)
	assert.Equal(t, ReasonManual, meta.Reason)
	assert.Equal(t, ".env", meta.ConfigFile)
	assert.NotEmpty(t, meta.ConfigChecksum)
	assert.True(t, meta.HasData)
	assert.True(t, meta.HasLogs)
	assert.Positive(t, meta.SizeBytes)

	// No staging directory is left behind.
	entries, err := os.ReadDir(f.root)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), stagingPrefix)
	}
}

func TestCreate_SkipsAbsentSources(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(filepath.Join(dir, "backups"), Sources{
		ConfigFile: filepath.Join(dir, "missing.env"),
		DataDir:    filepath.Join(dir, "missing-data"),
		LogsDir:    "",
	}, WithClock(steppingClock()), WithLogger(logger.Nop()))

	rec, err := m.Create(context.Background(), ReasonDeploy)
	require.NoError(t, err)

	meta, err := m.Metadata(rec)
	require.NoError(t, err)
	assert.Empty(t, meta.ConfigFile)
	assert.False(t, meta.HasData)
	assert.False(t, meta.HasLogs)
	assert.NoDirExists(t, filepath.Join(rec.Path, "data"))
}

func TestCreate_RepeatedCallsProduceDistinctRecords(t *testing.T) {
	f := newFixture(t)
	m := f.manager()

	var names []string
	for i := 0; i < 3; i++ {
		rec, err := m.Create(context.Background(), ReasonManual)
		require.NoError(t, err)
		assert.DirExists(t, rec.Path)
		assert.NotContains(t, names, rec.Name)
		names = append(names, rec.Name)

		current, err := m.Pointer().Read()
		require.NoError(t, err)
		assert.Equal(t, rec.Name, current)
	}

	records, err := m.List()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, names[2], records[0].Name, "newest first")
	assert.Equal(t, names[0], records[2].Name)
}

func TestCreate_SameSecondOverwrites(t *testing.T) {
	f := newFixture(t)
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local)
	m := f.manager(WithClock(func() time.Time { return fixed }))

	_, err := m.Create(context.Background(), ReasonManual)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.sources.ConfigFile, []byte("SECRET_KEY=two\n"), 0o600))
	rec, err := m.Create(context.Background(), ReasonManual)
	require.NoError(t, err)

	records, err := m.List()
	require.NoError(t, err)
	assert.Len(t, records, 1)

	data, err := os.ReadFile(filepath.Join(rec.Path, ".env"))
	require.NoError(t, err)
	assert.Equal(t, "SECRET_KEY=two\n", string(data))
}

func TestCreate_CompressLogs(t *testing.T) {
	f := newFixture(t)
	m := f.manager(WithCompressLogs(true))

	rec, err := m.Create(context.Background(), ReasonManual)
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(rec.Path, "logs", "app.log"))
	assert.FileExists(t, filepath.Join(rec.Path, "logs", "app.log"+CompressedSuffix))
	// Live logs are untouched.
	assert.FileExists(t, filepath.Join(f.sources.LogsDir, "app.log"))

	meta, err := m.Metadata(rec)
	require.NoError(t, err)
	assert.True(t, meta.LogsCompressed)
}

func TestCreate_CancelledContext(t *testing.T) {
	f := newFixture(t)
	m := f.manager()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Create(ctx, ReasonManual)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackup)

	_, err = m.Pointer().Read()
	assert.ErrorIs(t, err, ErrNoBackupAvailable, "pointer must not reference a partial backup")
	records, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestList_MissingRoot(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nope"), Sources{}, WithLogger(logger.Nop()))
	records, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLatest(t *testing.T) {
	f := newFixture(t)
	m := f.manager()

	_, err := m.Latest()
	assert.ErrorIs(t, err, ErrNoBackupAvailable)

	rec, err := m.Create(context.Background(), ReasonManual)
	require.NoError(t, err)

	latest, err := m.Latest()
	require.NoError(t, err)
	assert.Equal(t, rec.Name, latest.Name)

	require.NoError(t, os.RemoveAll(rec.Path))
	_, err = m.Latest()
	assert.ErrorIs(t, err, ErrNoBackupAvailable)
}

func TestCheckWritable(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "new", "backups"), Sources{}, WithLogger(logger.Nop()))
	require.NoError(t, m.CheckWritable())
	assert.DirExists(t, m.Root())
}
