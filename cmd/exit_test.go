package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kebairia/deployctl/internal/backup"
	"github.com/kebairia/deployctl/internal/config"
	"github.com/kebairia/deployctl/internal/health"
	"github.com/kebairia/deployctl/internal/operations"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitOK},
		{"unclassified", errors.New("boom"), ExitFailure},
		{"config load", fmt.Errorf("%w: read base config", config.ErrLoadConfig), ExitConfig},
		{"config invalid", fmt.Errorf("%w: service.name is required", config.ErrValidateConfig), ExitConfig},
		{"prerequisite", fmt.Errorf("%w: docker unreachable", operations.ErrPrerequisite), ExitConfig},
		{"build", fmt.Errorf("%w: exit status 1", operations.ErrBuild), ExitBuild},
		{"verification", fmt.Errorf("%w: tests failed", operations.ErrVerification), ExitBuild},
		{"health timeout", fmt.Errorf("%w: %w", operations.ErrHealthTimeout, health.ErrTimeout), ExitHealthTimeout},
		{"not ready", fmt.Errorf("%w: HTTP 503", ErrNotReady), ExitHealthTimeout},
		{"rollback", fmt.Errorf("%w: start service", operations.ErrRollback), ExitRollback},
		{"no backup", fmt.Errorf("%w: %w", operations.ErrRollback, backup.ErrNoBackupAvailable), ExitRollback},
		{"backup", fmt.Errorf("%w: disk full", backup.ErrBackup), ExitBackup},
		{"retention", backup.ErrInvalidRetention, ExitBackup},
		{"stop failure", fmt.Errorf("%w: stop old service", operations.ErrServiceControl), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
