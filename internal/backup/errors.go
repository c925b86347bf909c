package backup

import "errors"

var (
	// ErrBackup wraps any filesystem failure while creating or pruning backups.
	ErrBackup = errors.New("backup failed")

	// ErrNoBackupAvailable means the last-backup pointer is absent or names
	// a backup that no longer exists on disk.
	ErrNoBackupAvailable = errors.New("no backup available")

	// ErrCorruptBackup means a backup's contents no longer match its metadata.
	ErrCorruptBackup = errors.New("backup is corrupt")

	// ErrInvalidRetention is returned for a retention policy that would
	// delete every backup.
	ErrInvalidRetention = errors.New("invalid retention policy")
)
