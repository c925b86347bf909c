package operations

import (
	"github.com/kebairia/deployctl/internal/health"
	"github.com/kebairia/deployctl/internal/history"
)

// stateFile opens the history database for each write so that no handle
// (and no bbolt file lock) is held while a deploy runs.
type stateFile struct {
	path string
}

func (s stateFile) RecordAttempt(e history.Entry) error {
	store, err := history.Open(s.path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.RecordAttempt(e)
}

func (s stateFile) SaveHealth(res health.Result) error {
	store, err := history.Open(s.path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveHealth(res)
}
