// file: internal/storage/store.go
// version: 1.0.0
// guid: 1a2b3c4d-5e6f-4a8b-9c0d-1e2f3a4b5c6e

package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record exists for a key.
	ErrNotFound = errors.New("storage: not found")
	// ErrStaleWrite is returned when a compare-and-swap loses to a newer
	// version already persisted.
	ErrStaleWrite = errors.New("storage: stale write rejected")
)

// Store persists batch job state. Logical layout per jobID:
//
//   job:<id>:state -> versioned JobState JSON (token excluded)
//   job:<id>:token -> TokenEnvelope JSON
//   job:<id>:alarm -> absolute fire time
//
// State and token are written as a single batch where the substrate
// supports it; the in-memory fake used by tests holds a plain lock.
type Store interface {
	// PutJobState writes state iff version is strictly newer than what is
	// persisted. Returns ErrStaleWrite otherwise.
	PutJobState(jobID string, state []byte, version int64) error
	GetJobState(jobID string) (state []byte, version int64, err error)

	PutToken(jobID string, envelope []byte) error
	GetToken(jobID string) ([]byte, error)

	// PutJobStateAndToken writes both records atomically.
	PutJobStateAndToken(jobID string, state []byte, version int64, envelope []byte) error

	PutAlarm(jobID string, at time.Time) error
	GetAlarm(jobID string) (time.Time, error)

	// ListAlarms returns all pending alarms, for rescheduling on startup.
	ListAlarms() (map[string]time.Time, error)

	// DeleteJob removes state, token, and alarm for a job.
	DeleteJob(jobID string) error

	Close() error
}
