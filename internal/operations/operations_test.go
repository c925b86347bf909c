package operations

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebairia/deployctl/internal/backup"
	"github.com/kebairia/deployctl/internal/history"
	"github.com/kebairia/deployctl/internal/logger"
	"github.com/kebairia/deployctl/internal/runtime"
)

type commandRecorder struct {
	calls [][]string
}

func (r *commandRecorder) Run(_ context.Context, cmd runtime.Command) error {
	r.calls = append(r.calls, cmd.Args)
	return nil
}

func (r *commandRecorder) ops() []string {
	var ops []string
	for _, args := range r.calls {
		for _, op := range []string{"build", "stop", "up", "run"} {
			for _, a := range args {
				if a == op {
					ops = append(ops, op)
				}
			}
		}
	}
	return ops
}

func newTestManager(t *testing.T) (*OperationManager, *commandRecorder) {
	t.Helper()
	cfg := testConfig(t, "DEPLOYCTL_TEST_GROQ=g\nDEPLOYCTL_TEST_SECRET=s\n")
	cfg.Runtime.DockerHost = "unix://" + filepath.Join(t.TempDir(), "missing.sock")
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "deployctl.prom")
	require.NoError(t, os.MkdirAll(cfg.Service.DataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Service.DataDir, "app.db"), []byte("v1"), 0o644))

	rec := &commandRecorder{}
	om, err := NewOperationManager(cfg, logger.Nop(), WithRunner(rec))
	require.NoError(t, err)
	t.Cleanup(func() { _ = om.Close() })
	return om, rec
}

func TestManager_BackupThenRollback(t *testing.T) {
	om, rec := newTestManager(t)
	ctx := context.Background()
	dataFile := filepath.Join(om.cfg.Service.DataDir, "app.db")

	created, err := om.Backup(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(dataFile, []byte("v2"), 0o644))
	require.NoError(t, os.WriteFile(om.cfg.Service.EnvFile, []byte("DEPLOYCTL_TEST_GROQ=changed\n"), 0o600))

	restored, err := om.Rollback(ctx)
	require.NoError(t, err)
	assert.Equal(t, created.Name, restored.Name)

	data, err := os.ReadFile(dataFile)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))

	env, err := os.ReadFile(om.cfg.Service.EnvFile)
	require.NoError(t, err)
	assert.Contains(t, string(env), "DEPLOYCTL_TEST_SECRET=s")

	assert.Equal(t, []string{"stop", "up"}, rec.ops())

	store, err := history.Open(om.cfg.StatePath())
	require.NoError(t, err)
	defer store.Close()
	last, ok, err := store.LastAttempt()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, history.KindRollback, last.Kind)
	assert.Equal(t, "success", last.Outcome)

	prom, err := os.ReadFile(om.cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `deployctl_rollback_last_success{service="app"} 1`)
}

func TestManager_RollbackWithoutBackup(t *testing.T) {
	om, rec := newTestManager(t)
	root := filepath.Dir(om.cfg.Service.EnvFile)
	before := snapshotTree(t, root)

	_, err := om.Rollback(context.Background())
	require.ErrorIs(t, err, backup.ErrNoBackupAvailable)
	assert.Empty(t, rec.calls)

	assert.Equal(t, before, snapshotTree(t, root))
	assert.NoFileExists(t, om.cfg.StatePath())
	assert.NoFileExists(t, om.cfg.Metrics.Textfile)
}

func TestManager_ListAndCleanup(t *testing.T) {
	om, _ := newTestManager(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	clock := func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	om.backups = backup.NewManager(om.cfg.Backup.Directory, om.backups.Sources(),
		backup.WithClock(clock),
		backup.WithLogger(logger.Nop()),
	)
	om.cfg.Retention.KeepLast = 2

	for i := 0; i < 4; i++ {
		_, err := om.Backup(context.Background())
		require.NoError(t, err)
	}

	infos, err := om.ListBackups()
	require.NoError(t, err)
	require.Len(t, infos, 4)
	assert.True(t, infos[0].Latest)
	assert.False(t, infos[1].Latest)
	assert.Equal(t, backup.ReasonManual, infos[0].Metadata.Reason)

	report, err := om.Cleanup()
	require.NoError(t, err)
	assert.Len(t, report.Removed, 2)

	infos, err = om.ListBackups()
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestManager_StatusWithCheck(t *testing.T) {
	om, _ := newTestManager(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	om.cfg.Health.Endpoint = server.URL

	_, err := om.Backup(context.Background())
	require.NoError(t, err)

	st, err := om.Status(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "app", st.Service)
	assert.NotEmpty(t, st.RuntimeError)
	assert.Equal(t, 1, st.Backups)
	assert.NotEmpty(t, st.LastBackup)
	require.NotNil(t, st.Check)
	assert.True(t, st.Check.Healthy)

	// The probe result is persisted and shows up as the last health result.
	st, err = om.Status(context.Background(), false)
	require.NoError(t, err)
	require.NotNil(t, st.LastHealth)
	assert.True(t, st.LastHealth.Healthy)
	assert.Nil(t, st.Check)
}

func TestManager_DeployStopsAtPrerequisites(t *testing.T) {
	om, rec := newTestManager(t)

	a, err := om.Deploy(context.Background(), false)
	require.ErrorIs(t, err, ErrPrerequisite)
	assert.ErrorIs(t, err, runtime.ErrUnreachable)
	assert.Equal(t, PhaseValidating, a.FailedPhase)
	assert.Empty(t, rec.calls)

	records, err := om.backups.List()
	require.NoError(t, err)
	assert.Empty(t, records)

	store, err := history.Open(om.cfg.StatePath())
	require.NoError(t, err)
	defer store.Close()
	last, ok, err := store.LastAttempt()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "failed", last.Outcome)
	assert.Equal(t, string(PhaseValidating), last.Phase)
}
