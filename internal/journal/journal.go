// Package journal keeps a history of harness runs in a bbolt file so flaky
// scenarios can be spotted across runs.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	bbolt "go.etcd.io/bbolt"
)

var (
	bucketRuns    = []byte("runs")
	bucketResults = []byte("results")
)

// ErrRunNotFound is returned for an unknown run ID.
var ErrRunNotFound = errors.New("journal: run not found")

// RunInfo summarises one run.
type RunInfo struct {
	ID       string    `json:"id"`
	Suite    string    `json:"suite,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitzero"`
	Passed   int       `json:"passed"`
	Failed   int       `json:"failed"`
	Errored  int       `json:"errored"`
	Skipped  int       `json:"skipped"`
}

// Record is the outcome of one scenario within a run.
type Record struct {
	RunID    string        `json:"run_id"`
	Scenario string        `json:"scenario"`
	Story    string        `json:"story,omitempty"`
	Status   string        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// Journal wraps a bbolt database.
type Journal struct {
	bolt *bbolt.DB
}

// NewRunID returns a time-ordered run identifier.
func NewRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Open opens or creates a journal file and ensures all buckets exist.
func Open(path string) (*Journal, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketRuns, bucketResults} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: create buckets: %w", err)
	}
	return &Journal{bolt: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j.bolt != nil {
		return j.bolt.Close()
	}
	return nil
}

// Path returns the filesystem path of the journal.
func (j *Journal) Path() string {
	if j.bolt != nil {
		return j.bolt.Path()
	}
	return ""
}

// PutRun creates or replaces a run summary.
func (j *Journal) PutRun(info RunInfo) error {
	if info.ID == "" {
		return errors.New("journal: run id is required")
	}
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("journal: encode run %s: %w", info.ID, err)
	}
	return j.bolt.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.Bucket(bucketResults).CreateBucketIfNotExists([]byte(info.ID)); err != nil {
			return err
		}
		return tx.Bucket(bucketRuns).Put([]byte(info.ID), data)
	})
}

// Append stores a scenario record under its run.
func (j *Journal) Append(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("journal: encode record %s: %w", rec.Scenario, err)
	}
	return j.bolt.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketRuns).Get([]byte(rec.RunID)) == nil {
			return fmt.Errorf("%w: %s", ErrRunNotFound, rec.RunID)
		}
		b, err := tx.Bucket(bucketResults).CreateBucketIfNotExists([]byte(rec.RunID))
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), data)
	})
}

// Runs lists run summaries, newest first. A limit of 0 returns all.
func (j *Journal) Runs(limit int) ([]RunInfo, error) {
	var out []RunInfo
	err := j.bolt.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var info RunInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return fmt.Errorf("journal: decode run %s: %w", k, err)
			}
			out = append(out, info)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// Run returns one run and its records in execution order.
func (j *Journal) Run(id string) (RunInfo, []Record, error) {
	var info RunInfo
	var recs []Record
	err := j.bolt.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketRuns).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		if err := json.Unmarshal(v, &info); err != nil {
			return fmt.Errorf("journal: decode run %s: %w", id, err)
		}
		b := tx.Bucket(bucketResults).Bucket([]byte(id))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("journal: decode record: %w", err)
			}
			recs = append(recs, r)
			return nil
		})
	})
	if err != nil {
		return RunInfo{}, nil, err
	}
	return info, recs, nil
}

// History returns the most recent records for one scenario, newest first.
func (j *Journal) History(scenario string, limit int) ([]Record, error) {
	var out []Record
	err := j.bolt.View(func(tx *bbolt.Tx) error {
		results := tx.Bucket(bucketResults)
		c := tx.Bucket(bucketRuns).Cursor()
		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			b := results.Bucket(k)
			if b == nil {
				continue
			}
			rc := b.Cursor()
			for rk, v := rc.Last(); rk != nil; rk, v = rc.Prev() {
				var r Record
				if err := json.Unmarshal(v, &r); err != nil {
					return fmt.Errorf("journal: decode record: %w", err)
				}
				if r.Scenario != scenario {
					continue
				}
				out = append(out, r)
				if limit > 0 && len(out) >= limit {
					return nil
				}
			}
		}
		return nil
	})
	return out, err
}

func seqKey(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}
