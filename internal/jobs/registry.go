// file: internal/jobs/registry.go
// version: 1.2.0
// guid: 7c8d9e0f-1a2b-4c3d-e4f5-a6b7c8d9e0f1

package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Shapuzzz/bookstrack-backend/internal/storage"
	"github.com/Shapuzzz/bookstrack-backend/internal/stream"
)

// LaunchResult is what a caller needs to follow a job it just launched.
type LaunchResult struct {
	JobID              string    `json:"jobId"`
	StreamURL          string    `json:"streamURL"`
	AuthToken          string    `json:"authToken"`
	AuthTokenExpiresAt time.Time `json:"authTokenExpiresAt"`
}

// Registry owns the live actors and their cleanup alarms. It is the only
// entry point the HTTP layer talks to.
type Registry struct {
	cfg    Config
	store  storage.Store
	enrich EnrichFunc

	mu     sync.Mutex
	actors map[string]*Actor
	alarms map[string]*time.Timer
	closed bool
}

// NewRegistry creates a registry and reschedules any cleanup alarms left
// over from a previous run.
func NewRegistry(cfg Config, store storage.Store, enrich EnrichFunc) *Registry {
	r := &Registry{
		cfg:    cfg,
		store:  store,
		enrich: enrich,
		actors: make(map[string]*Actor),
		alarms: make(map[string]*time.Timer),
	}
	r.rescheduleAlarms()
	return r
}

// Launch creates a job, starts its actor, and schedules its cleanup alarm.
func (r *Registry) Launch(ownerPrincipal string, items []ItemInput) (LaunchResult, error) {
	if len(items) == 0 {
		return LaunchResult{}, errors.New("jobs: no items to enrich")
	}
	for i, in := range items {
		if in.Empty() {
			return LaunchResult{}, fmt.Errorf("jobs: item %d has neither isbn nor title", i)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return LaunchResult{}, errors.New("jobs: registry is shut down")
	}

	jobID := ulid.Make().String()
	actor, token, err := startActor(r.cfg, r.store, r.enrich, jobID, ownerPrincipal, items, r.remove)
	if err != nil {
		return LaunchResult{}, fmt.Errorf("failed to launch job: %w", err)
	}
	r.actors[jobID] = actor
	r.alarms[jobID] = time.AfterFunc(r.cfg.CleanupAfter, func() { r.fireAlarm(jobID) })

	return LaunchResult{
		JobID:              jobID,
		StreamURL:          "/ws/progress?jobId=" + jobID,
		AuthToken:          token.AuthToken,
		AuthTokenExpiresAt: token.AuthTokenExpiresAt,
	}, nil
}

func (r *Registry) actor(jobID string) (*Actor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.actors[jobID]
	return a, ok
}

// remove is the actor's onStop hook.
func (r *Registry) remove(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.actors, jobID)
	if t, ok := r.alarms[jobID]; ok {
		t.Stop()
		delete(r.alarms, jobID)
	}
}

func (r *Registry) fireAlarm(jobID string) {
	if a, ok := r.actor(jobID); ok {
		a.OnAlarm()
		return
	}
	// No live actor: a job recovered from a previous run. Delete its
	// persisted records directly.
	if err := r.store.DeleteJob(jobID); err != nil {
		log.Printf("[WARN] jobs: alarm cleanup for recovered job %s failed: %v", jobID, err)
		return
	}
	r.mu.Lock()
	delete(r.alarms, jobID)
	r.mu.Unlock()
	log.Printf("[INFO] jobs: recovered job %s cleaned up by alarm", jobID)
}

// rescheduleAlarms re-arms persisted cleanup alarms after a restart.
// Overdue alarms fire immediately.
func (r *Registry) rescheduleAlarms() {
	alarms, err := r.store.ListAlarms()
	if err != nil {
		log.Printf("[ERROR] jobs: failed to list pending alarms: %v", err)
		return
	}
	for jobID, at := range alarms {
		wait := time.Until(at)
		if wait < 0 {
			wait = 0
		}
		id := jobID
		r.alarms[jobID] = time.AfterFunc(wait, func() { r.fireAlarm(id) })
	}
	if len(alarms) > 0 {
		log.Printf("[INFO] jobs: rescheduled %d cleanup alarms from previous run", len(alarms))
	}
}

// AttachStream dispatches to the job's actor.
func (r *Registry) AttachStream(jobID, presentedToken string, lastSeq uint64) (<-chan stream.Message, func(), error) {
	a, ok := r.actor(jobID)
	if !ok {
		return nil, nil, ErrJobNotFound
	}
	return a.AttachStream(presentedToken, lastSeq)
}

// Cancel dispatches to the job's actor.
func (r *Registry) Cancel(jobID, presentedToken string) error {
	a, ok := r.actor(jobID)
	if !ok {
		return ErrJobNotFound
	}
	return a.Cancel(presentedToken)
}

// RefreshToken dispatches to the job's actor.
func (r *Registry) RefreshToken(jobID, presentedToken string) (TokenEnvelope, error) {
	a, ok := r.actor(jobID)
	if !ok {
		return TokenEnvelope{}, ErrJobNotFound
	}
	return a.RefreshToken(presentedToken)
}

// Snapshot returns the job state, falling back to the persisted record
// when the actor did not survive a restart.
func (r *Registry) Snapshot(jobID string) (JobState, error) {
	if a, ok := r.actor(jobID); ok {
		return a.Snapshot()
	}
	raw, _, err := r.store.GetJobState(jobID)
	if errors.Is(err, storage.ErrNotFound) {
		return JobState{}, ErrJobNotFound
	}
	if err != nil {
		return JobState{}, err
	}
	var state JobState
	if err := json.Unmarshal(raw, &state); err != nil {
		return JobState{}, fmt.Errorf("failed to decode persisted job state: %w", err)
	}
	return state, nil
}

// Close stops all timers and actors. Jobs keep their persisted state for
// the next run's alarm rescue.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	actors := make([]*Actor, 0, len(r.actors))
	for _, a := range r.actors {
		actors = append(actors, a)
	}
	for _, t := range r.alarms {
		t.Stop()
	}
	r.alarms = make(map[string]*time.Timer)
	r.mu.Unlock()

	for _, a := range actors {
		a.stop()
	}
}
