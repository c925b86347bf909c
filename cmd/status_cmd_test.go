package cmd

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kebairia/deployctl/internal/health"
	"github.com/kebairia/deployctl/internal/history"
	"github.com/kebairia/deployctl/internal/operations"
	"github.com/kebairia/deployctl/internal/runtime"
)

func sampleStatus() *operations.Status {
	finished := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	return &operations.Status{
		Service: "app",
		Project: "app",
		Containers: []runtime.ContainerState{
			{ID: "c1", Name: "app-app-1", Image: "app-app", State: "running", Status: "Up 5 minutes", Created: finished},
		},
		LastAttempt: &history.Entry{
			ID:         "a1",
			Kind:       history.KindDeploy,
			Outcome:    "failed",
			Phase:      "polling",
			Rollback:   "succeeded",
			Error:      "health check timed out",
			FinishedAt: finished,
		},
		LastHealth: &health.Result{Healthy: false, Message: "HTTP 503 Service Unavailable", CheckedAt: finished},
		LastBackup: "backup_20260301_120000",
		Backups:    3,
	}
}

func TestWriteStatusText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStatus(&buf, sampleStatus(), "text"))

	out := buf.String()
	assert.Contains(t, out, "app-app-1 running")
	assert.Contains(t, out, "Last deploy:")
	assert.Contains(t, out, "failed at 2026-03-01T12:05:00Z (polling)")
	assert.Contains(t, out, "Rollback:")
	assert.Contains(t, out, "3 (last: backup_20260301_120000)")
}

func TestWriteStatusTextEmpty(t *testing.T) {
	var buf bytes.Buffer
	st := &operations.Status{Service: "app", Project: "app", RuntimeError: "container runtime unreachable"}
	require.NoError(t, writeStatus(&buf, st, "text"))

	out := buf.String()
	assert.Contains(t, out, "unavailable: container runtime unreachable")
	assert.Contains(t, out, "never")
	assert.Contains(t, out, "(last: none)")
}

func TestWriteStatusJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStatus(&buf, sampleStatus(), "json"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "app", decoded["service"])
	assert.Equal(t, float64(3), decoded["backups"])
	assert.Equal(t, "failed", decoded["last_attempt"].(map[string]any)["outcome"])
}

func TestWriteStatusYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStatus(&buf, sampleStatus(), "yaml"))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "backup_20260301_120000", decoded["last_backup"])
	containers := decoded["containers"].([]any)
	require.Len(t, containers, 1)
	assert.Equal(t, "running", containers[0].(map[string]any)["state"])
}
