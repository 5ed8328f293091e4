// file: internal/jobs/actor.go
// version: 1.3.0
// guid: 6b7c8d9e-0f1a-4b2c-d3e4-f5a6b7c8d9e0

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/Shapuzzz/bookstrack-backend/internal/metrics"
	"github.com/Shapuzzz/bookstrack-backend/internal/providers"
	"github.com/Shapuzzz/bookstrack-backend/internal/storage"
	"github.com/Shapuzzz/bookstrack-backend/internal/stream"
)

// Config holds the batch job timing and persistence knobs.
type Config struct {
	TokenLifetime      time.Duration
	RefreshWindow      time.Duration
	CleanupAfter       time.Duration
	PersistUpdateCount int
	PersistInterval    time.Duration
	ItemConcurrency    int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		TokenLifetime:      2 * time.Hour,
		RefreshWindow:      30 * time.Minute,
		CleanupAfter:       24 * time.Hour,
		PersistUpdateCount: 10,
		PersistInterval:    5 * time.Second,
		ItemConcurrency:    3,
	}
}

// EnrichFunc resolves one batch item to a stored book id. A nil failure
// means success.
type EnrichFunc func(ctx context.Context, input ItemInput) (bookID string, failure *providers.Failure)

// Actor owns one job. All state mutation happens on the single run
// goroutine draining the inbox, so handlers never race; item workers and
// API callers only post closures.
type Actor struct {
	cfg    Config
	store  storage.Store
	enrich EnrichFunc

	state   JobState
	token   TokenEnvelope
	session *stream.Session

	inbox    chan func()
	stopped  chan struct{}
	stopOnce sync.Once

	refreshInProgress       bool
	updatesSinceLastPersist int
	lastPersistedAt         time.Time

	runCtx    context.Context
	cancelRun context.CancelFunc

	onStop func(jobID string)
}

func startActor(cfg Config, store storage.Store, enrich EnrichFunc, jobID, owner string, items []ItemInput, onStop func(string)) (*Actor, TokenEnvelope, error) {
	now := time.Now()
	results := make([]ItemResult, len(items))
	for i, in := range items {
		results[i] = ItemResult{Index: i, Input: in, Outcome: OutcomePending}
	}

	a := &Actor{
		cfg:    cfg,
		store:  store,
		enrich: enrich,
		state: JobState{
			JobID:          jobID,
			OwnerPrincipal: owner,
			Status:         StatusPending,
			TotalItems:     len(items),
			PerItemResults: results,
			CreatedAt:      now,
			UpdatedAt:      now,
			Version:        1,
		},
		token:           mintToken(cfg.TokenLifetime),
		session:         stream.NewSession(jobID),
		inbox:           make(chan func(), 64),
		stopped:         make(chan struct{}),
		lastPersistedAt: now,
		onStop:          onStop,
	}
	a.runCtx, a.cancelRun = context.WithCancel(context.Background())

	// The pending record lands durably before the first item can run.
	if err := a.persistWithToken(); err != nil {
		a.cancelRun()
		return nil, TokenEnvelope{}, err
	}
	if err := store.PutAlarm(jobID, now.Add(cfg.CleanupAfter)); err != nil {
		a.cancelRun()
		return nil, TokenEnvelope{}, err
	}

	a.state.Status = StatusRunning
	a.touch()
	a.persist()

	go a.run()
	a.startItems()
	log.Printf("[INFO] jobs: launched job %s with %d items for %s", jobID, len(items), owner)
	metrics.IncJobLaunched()
	return a, a.token, nil
}

func (a *Actor) run() {
	for {
		select {
		case fn := <-a.inbox:
			fn()
		case <-a.stopped:
			return
		}
	}
}

// post queues a handler on the actor's inbox. Returns false once the
// actor has been stopped by the cleanup alarm.
func (a *Actor) post(fn func()) bool {
	select {
	case a.inbox <- fn:
		return true
	case <-a.stopped:
		return false
	}
}

// do runs a handler on the actor goroutine and waits for it.
func (a *Actor) do(fn func()) error {
	done := make(chan struct{})
	if !a.post(func() { defer close(done); fn() }) {
		return ErrJobNotFound
	}
	select {
	case <-done:
		return nil
	case <-a.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrJobNotFound
		}
	}
}

// startItems fans the items out to a bounded worker pool. Each worker
// reports back through the inbox so result handling stays serialized.
func (a *Actor) startItems() {
	sem := make(chan struct{}, a.cfg.ItemConcurrency)
	for i := range a.state.PerItemResults {
		idx := i
		input := a.state.PerItemResults[i].Input
		go func() {
			select {
			case sem <- struct{}{}:
			case <-a.runCtx.Done():
				return
			}
			defer func() { <-sem }()

			start := time.Now()
			bookID, failure := a.enrich(a.runCtx, input)
			metrics.ObserveJobItem(time.Since(start))
			a.post(func() { a.handleItemResult(idx, bookID, failure) })
		}()
	}
}

// touch records a mutation for versioning and persistence throttling.
func (a *Actor) touch() {
	a.state.Version++
	a.state.UpdatedAt = time.Now()
	a.updatesSinceLastPersist++
}

func (a *Actor) handleItemResult(idx int, bookID string, failure *providers.Failure) {
	if a.state.Status != StatusRunning {
		return
	}
	res := &a.state.PerItemResults[idx]
	if res.Outcome != OutcomePending {
		return
	}

	if failure == nil {
		res.Outcome = OutcomeOK
		res.BookID = bookID
		a.state.CompletedItems++
	} else {
		res.Outcome = OutcomeFailed
		res.ErrorKind = string(failure.Kind)
		a.state.FailedItems++
		log.Printf("[WARN] jobs: job %s item %d failed: %v", a.state.JobID, idx, failure)
	}
	a.touch()

	a.session.Send(stream.TypeItemDone, *res)
	a.session.SendProgress(a.state.progress())

	if a.state.CompletedItems+a.state.FailedItems == a.state.TotalItems {
		a.finish(terminalStatus(a.state.CompletedItems, a.state.FailedItems, a.state.TotalItems))
		return
	}
	a.maybePersist()
}

// finish moves the job to a terminal status, persists unconditionally, and
// closes the stream with a terminal message.
func (a *Actor) finish(st Status) {
	a.state.Status = st
	a.touch()
	a.persist()
	metrics.IncJobFinished(string(st))
	a.session.Close(terminalMessageType(st), a.state.progress())
	a.cancelRun()
	log.Printf("[INFO] jobs: job %s finished with status %s (%d ok, %d failed)",
		a.state.JobID, st, a.state.CompletedItems, a.state.FailedItems)
}

func terminalMessageType(st Status) stream.MessageType {
	switch st {
	case StatusCancelled:
		return stream.TypeCancelled
	case StatusFailed, StatusExpired:
		return stream.TypeFailed
	default:
		// Completed and partial both end the stream with a completed
		// message; the payload status distinguishes them.
		return stream.TypeCompleted
	}
}

// maybePersist writes state when the update-count or elapsed-time
// threshold is crossed.
func (a *Actor) maybePersist() {
	if a.updatesSinceLastPersist >= a.cfg.PersistUpdateCount ||
		time.Since(a.lastPersistedAt) >= a.cfg.PersistInterval {
		a.persist()
	}
}

// persist writes the current state under the version counter. On failure
// the throttle counters are left alone so the next threshold retries.
func (a *Actor) persist() {
	raw, err := json.Marshal(a.state)
	if err != nil {
		log.Printf("[ERROR] jobs: job %s state marshal failed: %v", a.state.JobID, err)
		return
	}
	if err := a.store.PutJobState(a.state.JobID, raw, a.state.Version); err != nil {
		if errors.Is(err, storage.ErrStaleWrite) {
			log.Printf("[ERROR] jobs: job %s stale write at version %d", a.state.JobID, a.state.Version)
			return
		}
		log.Printf("[WARN] jobs: job %s persist failed, will retry: %v", a.state.JobID, err)
		return
	}
	a.updatesSinceLastPersist = 0
	a.lastPersistedAt = time.Now()
}

// persistWithToken writes state and token in one batch.
func (a *Actor) persistWithToken() error {
	raw, err := json.Marshal(a.state)
	if err != nil {
		return err
	}
	envelope, err := json.Marshal(a.token)
	if err != nil {
		return err
	}
	if err := a.store.PutJobStateAndToken(a.state.JobID, raw, a.state.Version, envelope); err != nil {
		return err
	}
	a.updatesSinceLastPersist = 0
	a.lastPersistedAt = time.Now()
	return nil
}

// AttachStream validates the token and connects the single client. The
// returned channel starts with a snapshot, then any retained messages
// after lastSeq, then live delivery.
func (a *Actor) AttachStream(presented string, lastSeq uint64) (<-chan stream.Message, func(), error) {
	var (
		out    <-chan stream.Message
		detach func()
		err    error
	)
	doErr := a.do(func() {
		if err = a.token.Validate(presented, time.Now()); err != nil {
			return
		}
		out, detach = a.session.Attach(lastSeq, a.state.Clone())
	})
	if doErr != nil {
		return nil, nil, doErr
	}
	if err != nil {
		return nil, nil, err
	}
	return out, detach, nil
}

// Cancel stops a running job. Idempotent on terminal jobs.
func (a *Actor) Cancel(presented string) error {
	var err error
	doErr := a.do(func() {
		if err = a.token.Validate(presented, time.Now()); err != nil {
			return
		}
		if a.state.Status.Terminal() {
			return
		}
		if a.state.Status != StatusRunning {
			err = ErrNotRunning
			return
		}
		a.cancelRun()
		a.finish(StatusCancelled)
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// RefreshToken mints a successor token inside the refresh window. The
// persistence write happens off the actor goroutine, so a second refresh
// arriving in the meantime observes refreshInProgress and conflicts.
func (a *Actor) RefreshToken(presented string) (TokenEnvelope, error) {
	type outcome struct {
		env TokenEnvelope
		err error
	}
	reply := make(chan outcome, 1)

	posted := a.post(func() {
		now := time.Now()
		if err := a.token.Validate(presented, now); err != nil {
			reply <- outcome{err: err}
			return
		}
		if !a.token.InRefreshWindow(now, a.cfg.RefreshWindow) {
			reply <- outcome{err: ErrRefreshWindow}
			return
		}
		if a.refreshInProgress {
			reply <- outcome{err: ErrRefreshConflict}
			return
		}
		a.refreshInProgress = true
		next := mintToken(a.cfg.TokenLifetime)

		// Reserve a version through the normal counter so item results
		// landing mid-persist bump past it instead of colliding with it.
		a.touch()
		snapshot := a.state.Clone()

		go func() {
			raw, err := json.Marshal(snapshot)
			if err == nil {
				var envelope []byte
				envelope, err = json.Marshal(next)
				if err == nil {
					err = a.store.PutJobStateAndToken(snapshot.JobID, raw, snapshot.Version, envelope)
					if errors.Is(err, storage.ErrStaleWrite) {
						// An item persist won the version race, so the
						// stored state is newer than the snapshot; only
						// the token still needs to land.
						err = a.store.PutToken(snapshot.JobID, envelope)
					}
				}
			}
			a.post(func() {
				a.refreshInProgress = false
				if err != nil {
					log.Printf("[ERROR] jobs: job %s token refresh persist failed: %v", a.state.JobID, err)
					reply <- outcome{err: err}
					return
				}
				// Install point: the old token is invalid from here on.
				a.token = next
				if a.state.Version == snapshot.Version {
					a.updatesSinceLastPersist = 0
					a.lastPersistedAt = time.Now()
				}
				log.Printf("[INFO] jobs: job %s token refreshed, new expiry %s",
					a.state.JobID, next.AuthTokenExpiresAt.Format(time.RFC3339))
				reply <- outcome{env: next}
			})
		}()
	})
	if !posted {
		return TokenEnvelope{}, ErrJobNotFound
	}

	select {
	case out := <-reply:
		return out.env, out.err
	case <-a.stopped:
		return TokenEnvelope{}, ErrJobNotFound
	}
}

// Snapshot returns a copy of the job state.
func (a *Actor) Snapshot() (JobState, error) {
	var snap JobState
	err := a.do(func() { snap = a.state.Clone() })
	return snap, err
}

// TokenExpiry returns the current token expiry, for launch responses.
func (a *Actor) TokenExpiry() (time.Time, error) {
	var at time.Time
	err := a.do(func() { at = a.token.AuthTokenExpiresAt })
	return at, err
}

// OnAlarm handles the 24h cleanup: non-terminal jobs are expired first,
// then every persisted record is deleted and the actor stops.
func (a *Actor) OnAlarm() {
	a.post(func() {
		if !a.state.Status.Terminal() {
			a.cancelRun()
			a.finish(StatusExpired)
		}
		if err := a.store.DeleteJob(a.state.JobID); err != nil {
			log.Printf("[WARN] jobs: job %s cleanup delete failed: %v", a.state.JobID, err)
		}
		a.session.Close("", nil)
		log.Printf("[INFO] jobs: job %s cleaned up by alarm", a.state.JobID)
		a.stop()
	})
}

// stop is safe to call from both the alarm path and Registry.Close.
func (a *Actor) stop() {
	a.stopOnce.Do(func() {
		close(a.stopped)
		a.cancelRun()
		if a.onStop != nil {
			a.onStop(a.state.JobID)
		}
	})
}
