package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestore_ReplacesConfigAndData(t *testing.T) {
	f := newFixture(t)
	m := f.manager()

	rec, err := m.Create(context.Background(), ReasonDeploy)
	require.NoError(t, err)

	// Simulate a bad deploy changing state.
	require.NoError(t, os.WriteFile(f.sources.ConfigFile, []byte("SECRET_KEY=broken\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(f.sources.DataDir, "new.json"), []byte("{}"), 0o644))

	require.NoError(t, m.Verify(rec))
	require.NoError(t, m.Restore(rec))

	data, err := os.ReadFile(f.sources.ConfigFile)
	require.NoError(t, err)
	assert.Equal(t, "SECRET_KEY=one\n", string(data))

	assert.FileExists(t, filepath.Join(f.sources.DataDir, "nested", "db.json"))
	assert.NoFileExists(t, filepath.Join(f.sources.DataDir, "new.json"), "data is replaced, not merged")
}

func TestRestore_RemovesDataAbsentFromBackup(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.RemoveAll(f.sources.DataDir))
	m := f.manager()

	rec, err := m.Create(context.Background(), ReasonDeploy)
	require.NoError(t, err)
	meta, err := m.Metadata(rec)
	require.NoError(t, err)
	require.False(t, meta.HasData)

	// The failed deploy created a data directory.
	require.NoError(t, os.MkdirAll(f.sources.DataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.sources.DataDir, "new.json"), []byte("{}"), 0o644))

	require.NoError(t, m.Verify(rec))
	require.NoError(t, m.Restore(rec))

	assert.NoDirExists(t, f.sources.DataDir)
	data, err := os.ReadFile(f.sources.ConfigFile)
	require.NoError(t, err)
	assert.Equal(t, "SECRET_KEY=one\n", string(data))
}

func TestVerify_DetectsTamperedConfig(t *testing.T) {
	f := newFixture(t)
	m := f.manager()

	rec, err := m.Create(context.Background(), ReasonDeploy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(rec.Path, ".env"), []byte("tampered"), 0o600))

	assert.ErrorIs(t, m.Verify(rec), ErrCorruptBackup)
}

func TestPointer_ReadWrite(t *testing.T) {
	p := NewPointer(t.TempDir())

	_, err := p.Read()
	assert.ErrorIs(t, err, ErrNoBackupAvailable)

	require.NoError(t, os.WriteFile(p.Path(), []byte("  \n"), 0o644))
	_, err = p.Read()
	assert.ErrorIs(t, err, ErrNoBackupAvailable)

	require.NoError(t, p.Write("backup_20250101_000000"))
	name, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, "backup_20250101_000000", name)
}
