// Package journal keeps a history of duplicate cleanup runs in a bolt file.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/boltdb/bolt"
	"github.com/mitchellh/go-homedir"
)

var bucketName = []byte("Runs")

// lockTimeout is how long an operation waits for another process to release the file.
const lockTimeout = 5 * time.Second

// keyLayout sorts lexicographically in time order.
const keyLayout = "20060102T150405.000000000Z"

// Run is one recorded cleanup run.
type Run struct {
	ID                string    `json:"id"`
	StartedAt         time.Time `json:"startedAt"`
	FinishedAt        time.Time `json:"finishedAt"`
	DryRun            bool      `json:"dryRun"`
	CheckManual       bool      `json:"checkManual"`
	DuplicateAPICount int       `json:"duplicateApiCount"`
	ManualCount       int       `json:"manualCount"`
	AmbiguousCount    int       `json:"ambiguousCount"`
	Planned           int       `json:"planned"`
	Deleted           []string  `json:"deleted,omitempty"`
	Error             string    `json:"error,omitempty"`
}

// Journal is a bolt-backed run history. The bolt file is opened for each
// Record or List and closed again, so several processes can share it.
type Journal struct {
	path string
	mu   sync.Mutex
}

// Open checks that the journal at path can be opened, creating it if needed. A leading ~ is expanded.
func Open(path string) (*Journal, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand journal path %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	j := &Journal{path: expanded}
	if err := j.update(func(tx *bolt.Tx) error { return nil }); err != nil {
		return nil, err
	}

	return j, nil
}

// Close exists so callers can treat the journal like other stores; the file is never held open.
func (j *Journal) Close() error {
	return nil
}

func (j *Journal) open() (*bolt.DB, error) {
	db, err := bolt.Open(j.path, 0o600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", j.path, err)
	}
	return db, nil
}

func (j *Journal) update(fn func(tx *bolt.Tx) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	db, err := j.open()
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketName); err != nil {
			return err
		}
		return fn(tx)
	})
}

// Record stores a run.
func (j *Journal) Record(run Run) error {
	marshalled, err := json.Marshal(&run)
	if err != nil {
		return err
	}

	key := []byte(run.StartedAt.UTC().Format(keyLayout) + "/" + run.ID)

	return j.update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, marshalled)
	})
}

// List returns up to limit runs, newest first. A limit of zero or less returns all runs.
func (j *Journal) List(limit int) ([]Run, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	db, err := j.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var runs []Run

	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		c := b.Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("corrupt journal entry %s: %w", string(k), err)
			}
			runs = append(runs, run)

			if limit > 0 && len(runs) >= limit {
				break
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return runs, nil
}
