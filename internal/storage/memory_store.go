// file: internal/storage/memory_store.go
// version: 1.0.0
// guid: 2d3e4f5a-6b7c-4d8e-9f0a-1b2c3d4e5f60

package storage

import (
	"sync"
	"time"
)

// MemoryStore is the in-memory Store used by tests.
type MemoryStore struct {
	mu       sync.Mutex
	states   map[string]versionedState
	tokens   map[string][]byte
	alarms   map[string]time.Time
	failNext error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]versionedState),
		tokens: make(map[string][]byte),
		alarms: make(map[string]time.Time),
	}
}

// FailNextWrite makes the next write return err, for fail-open tests.
func (m *MemoryStore) FailNextWrite(err error) {
	m.mu.Lock()
	m.failNext = err
	m.mu.Unlock()
}

func (m *MemoryStore) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *MemoryStore) PutJobState(jobID string, state []byte, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if stored, ok := m.states[jobID]; ok && stored.Version >= version {
		return ErrStaleWrite
	}
	m.states[jobID] = versionedState{Version: version, Data: append([]byte(nil), state...)}
	return nil
}

func (m *MemoryStore) GetJobState(jobID string) ([]byte, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vs, ok := m.states[jobID]
	if !ok {
		return nil, 0, ErrNotFound
	}
	return append([]byte(nil), vs.Data...), vs.Version, nil
}

func (m *MemoryStore) PutToken(jobID string, envelope []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.tokens[jobID] = append([]byte(nil), envelope...)
	return nil
}

func (m *MemoryStore) GetToken(jobID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	envelope, ok := m.tokens[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), envelope...), nil
}

func (m *MemoryStore) PutJobStateAndToken(jobID string, state []byte, version int64, envelope []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if stored, ok := m.states[jobID]; ok && stored.Version >= version {
		return ErrStaleWrite
	}
	m.states[jobID] = versionedState{Version: version, Data: append([]byte(nil), state...)}
	m.tokens[jobID] = append([]byte(nil), envelope...)
	return nil
}

func (m *MemoryStore) PutAlarm(jobID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alarms[jobID] = at
	return nil
}

func (m *MemoryStore) GetAlarm(jobID string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.alarms[jobID]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	return at, nil
}

func (m *MemoryStore) ListAlarms() (map[string]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]time.Time, len(m.alarms))
	for id, at := range m.alarms {
		out[id] = at
	}
	return out, nil
}

func (m *MemoryStore) DeleteJob(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, jobID)
	delete(m.tokens, jobID)
	delete(m.alarms, jobID)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
