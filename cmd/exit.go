package cmd

import (
	"errors"

	"github.com/kebairia/deployctl/internal/backup"
	"github.com/kebairia/deployctl/internal/config"
	"github.com/kebairia/deployctl/internal/operations"
)

// Process exit codes.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitConfig        = 2
	ExitBuild         = 3
	ExitHealthTimeout = 4
	ExitRollback      = 5
	ExitBackup        = 6
)

// ErrNotReady is returned by "status --check" when the readiness probe fails.
var ErrNotReady = errors.New("service not ready")

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, config.ErrLoadConfig),
		errors.Is(err, config.ErrValidateConfig),
		errors.Is(err, operations.ErrPrerequisite):
		return ExitConfig
	case errors.Is(err, operations.ErrBuild),
		errors.Is(err, operations.ErrVerification):
		return ExitBuild
	case errors.Is(err, operations.ErrHealthTimeout),
		errors.Is(err, ErrNotReady):
		return ExitHealthTimeout
	case errors.Is(err, operations.ErrRollback),
		errors.Is(err, backup.ErrNoBackupAvailable):
		return ExitRollback
	case errors.Is(err, backup.ErrBackup),
		errors.Is(err, backup.ErrInvalidRetention):
		return ExitBackup
	default:
		return ExitFailure
	}
}
