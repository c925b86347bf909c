package backup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// PointerFilename is the marker file holding the name of the newest backup.
const PointerFilename = ".last_backup"

// Pointer is the on-disk "last backup" marker. It has a single writer
// (Manager.Create) and is re-read at every point of use.
type Pointer struct {
	path string
}

// NewPointer returns the pointer stored inside root.
func NewPointer(root string) Pointer {
	return Pointer{path: filepath.Join(root, PointerFilename)}
}

// Path returns the marker file location.
func (p Pointer) Path() string { return p.path }

// Read returns the backup name stored in the marker. A missing or empty
// marker yields ErrNoBackupAvailable.
func (p Pointer) Read() (string, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNoBackupAvailable
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", p.path, err)
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", ErrNoBackupAvailable
	}
	return name, nil
}

// Write replaces the marker contents through a rename so readers never
// observe a half-written name.
func (p Pointer) Write(name string) error {
	tmp, err := os.CreateTemp(filepath.Dir(p.path), PointerFilename+".tmp-")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(name + "\n"); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p.path)
}
