package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/kebairia/deployctl/internal/health"
)

var (
	// Bucket names
	bucketAttempts = []byte("attempts")
	bucketHealth   = []byte("health")

	keyLastHealth = []byte("last")
)

// DefaultOpenTimeout is how long Open waits for another process holding
// the database.
const DefaultOpenTimeout = 2 * time.Second

// Kinds of recorded attempts.
const (
	KindDeploy   = "deploy"
	KindRollback = "rollback"
)

// Entry is the persisted summary of one deploy or rollback run.
type Entry struct {
	ID           string    `json:"id"                      yaml:"id"`
	Kind         string    `json:"kind"                    yaml:"kind"`
	Service      string    `json:"service"                 yaml:"service"`
	Phase        string    `json:"phase"                   yaml:"phase"`
	Outcome      string    `json:"outcome"                 yaml:"outcome"`
	Backup       string    `json:"backup,omitempty"        yaml:"backup,omitempty"`
	PollAttempts int       `json:"poll_attempts,omitempty" yaml:"poll_attempts,omitempty"`
	Rollback     string    `json:"rollback,omitempty"      yaml:"rollback,omitempty"`
	Error        string    `json:"error,omitempty"         yaml:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"              yaml:"started_at"`
	FinishedAt   time.Time `json:"finished_at"             yaml:"finished_at"`
}

// Store keeps deployment history in a bbolt file.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: DefaultOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketAttempts, bucketHealth} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// attemptKey orders entries by start time, then ID.
func attemptKey(e Entry) []byte {
	key := make([]byte, 8, 8+len(e.ID))
	binary.BigEndian.PutUint64(key, uint64(e.StartedAt.UnixNano()))
	return append(key, e.ID...)
}

// RecordAttempt stores e, replacing any entry with the same start time and ID.
func (s *Store) RecordAttempt(e Entry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketAttempts).Put(attemptKey(e), data)
	})
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (s *Store) Recent(n int) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAttempts).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode history entry: %w", err)
			}
			entries = append(entries, e)
			if n > 0 && len(entries) == n {
				break
			}
		}
		return nil
	})
	return entries, err
}

// LastAttempt returns the newest entry. ok is false when none exist.
func (s *Store) LastAttempt() (e Entry, ok bool, err error) {
	entries, err := s.Recent(1)
	if err != nil || len(entries) == 0 {
		return Entry{}, false, err
	}
	return entries[0], true, nil
}

// SaveHealth stores the most recent readiness result.
func (s *Store) SaveHealth(res health.Result) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(res)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketHealth).Put(keyLastHealth, data)
	})
}

// LastHealth returns the most recent readiness result. ok is false when
// none has been stored.
func (s *Store) LastHealth() (res health.Result, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketHealth).Get(keyLastHealth)
		if data == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(data, &res)
	})
	return res, ok, err
}
