// file: internal/storage/pebble_store.go
// version: 1.1.0
// guid: 0c1d2e3f-4a5b-4c7d-8e9f-0a1b2c3d4e60

package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/pebble/v2"
)

// PebbleStore implements Store using PebbleDB (LSM key-value store).
//
// Key Schema:
// - job:<id>:state -> versionedState JSON
// - job:<id>:token -> TokenEnvelope JSON (opaque to this package)
// - job:<id>:alarm -> RFC3339Nano fire time
type PebbleStore struct {
	db *pebble.DB
}

type versionedState struct {
	Version int64           `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// NewPebbleStore opens (or creates) the job store at path.
func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open job store: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

// Close closes the database.
func (p *PebbleStore) Close() error {
	return p.db.Close()
}

func stateKey(jobID string) []byte { return []byte("job:" + jobID + ":state") }
func tokenKey(jobID string) []byte { return []byte("job:" + jobID + ":token") }
func alarmKey(jobID string) []byte { return []byte("job:" + jobID + ":alarm") }

func (p *PebbleStore) currentVersion(jobID string) (int64, error) {
	raw, closer, err := p.db.Get(stateKey(jobID))
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer closer.Close()

	var vs versionedState
	if err := json.Unmarshal(raw, &vs); err != nil {
		return 0, err
	}
	return vs.Version, nil
}

func encodeState(state []byte, version int64) ([]byte, error) {
	return json.Marshal(versionedState{Version: version, Data: state})
}

// PutJobState writes state guarded by the version counter.
func (p *PebbleStore) PutJobState(jobID string, state []byte, version int64) error {
	stored, err := p.currentVersion(jobID)
	if err != nil {
		return err
	}
	if stored >= version {
		return ErrStaleWrite
	}
	raw, err := encodeState(state, version)
	if err != nil {
		return err
	}
	return p.db.Set(stateKey(jobID), raw, pebble.Sync)
}

// GetJobState returns the persisted state and its version.
func (p *PebbleStore) GetJobState(jobID string) ([]byte, int64, error) {
	raw, closer, err := p.db.Get(stateKey(jobID))
	if err == pebble.ErrNotFound {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	defer closer.Close()

	var vs versionedState
	if err := json.Unmarshal(raw, &vs); err != nil {
		return nil, 0, err
	}
	return vs.Data, vs.Version, nil
}

// PutToken stores the token envelope.
func (p *PebbleStore) PutToken(jobID string, envelope []byte) error {
	return p.db.Set(tokenKey(jobID), envelope, pebble.Sync)
}

// GetToken fetches the token envelope.
func (p *PebbleStore) GetToken(jobID string) ([]byte, error) {
	raw, closer, err := p.db.Get(tokenKey(jobID))
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

// PutJobStateAndToken writes state and token in one batch so a crash can
// never leave a token without its state.
func (p *PebbleStore) PutJobStateAndToken(jobID string, state []byte, version int64, envelope []byte) error {
	stored, err := p.currentVersion(jobID)
	if err != nil {
		return err
	}
	if stored >= version {
		return ErrStaleWrite
	}
	raw, err := encodeState(state, version)
	if err != nil {
		return err
	}

	batch := p.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(stateKey(jobID), raw, nil); err != nil {
		return err
	}
	if err := batch.Set(tokenKey(jobID), envelope, nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

// PutAlarm records the absolute cleanup time for a job.
func (p *PebbleStore) PutAlarm(jobID string, at time.Time) error {
	return p.db.Set(alarmKey(jobID), []byte(at.UTC().Format(time.RFC3339Nano)), pebble.Sync)
}

// GetAlarm fetches the pending alarm time.
func (p *PebbleStore) GetAlarm(jobID string) (time.Time, error) {
	raw, closer, err := p.db.Get(alarmKey(jobID))
	if err == pebble.ErrNotFound {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, err
	}
	defer closer.Close()
	return time.Parse(time.RFC3339Nano, string(raw))
}

// ListAlarms scans all pending alarms.
func (p *PebbleStore) ListAlarms() (map[string]time.Time, error) {
	alarms := make(map[string]time.Time)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("job:"),
		UpperBound: []byte("job;"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := string(iter.Key())
		if !strings.HasSuffix(key, ":alarm") {
			continue
		}
		jobID := strings.TrimSuffix(strings.TrimPrefix(key, "job:"), ":alarm")
		at, err := time.Parse(time.RFC3339Nano, string(iter.Value()))
		if err != nil {
			continue
		}
		alarms[jobID] = at
	}
	return alarms, nil
}

// DeleteJob removes every persisted record for a job.
func (p *PebbleStore) DeleteJob(jobID string) error {
	batch := p.db.NewBatch()
	defer batch.Close()
	for _, key := range [][]byte{stateKey(jobID), tokenKey(jobID), alarmKey(jobID)} {
		if err := batch.Delete(key, nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}
