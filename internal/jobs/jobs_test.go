// file: internal/jobs/jobs_test.go
// version: 1.2.0
// guid: 7b9c1d3e-5f6a-4b8c-ed9f-2a4b6c8d0e2f

package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shapuzzz/bookstrack-backend/internal/providers"
	"github.com/Shapuzzz/bookstrack-backend/internal/storage"
	"github.com/Shapuzzz/bookstrack-backend/internal/stream"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PersistUpdateCount = 2
	cfg.PersistInterval = time.Hour // only the count threshold fires in tests
	return cfg
}

// flakyEnricher fails items whose ISBN starts with "fail".
func flakyEnricher(ctx context.Context, input ItemInput) (string, *providers.Failure) {
	if len(input.ISBN) >= 4 && input.ISBN[:4] == "fail" {
		return "", providers.NewFailure("googlebooks", providers.FailNotFound, "no record")
	}
	return "isbn:" + input.ISBN, nil
}

func items(isbns ...string) []ItemInput {
	out := make([]ItemInput, len(isbns))
	for i, isbn := range isbns {
		out[i] = ItemInput{ISBN: isbn}
	}
	return out
}

func waitForStatus(t *testing.T, r *Registry, jobID string, want Status) JobState {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := r.Snapshot(jobID)
		require.NoError(t, err)
		if snap.Status == want {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", jobID, want)
	return JobState{}
}

func TestBatchLifecyclePartial(t *testing.T) {
	store := storage.NewMemoryStore()
	r := NewRegistry(testConfig(), store, flakyEnricher)
	defer r.Close()

	result, err := r.Launch("user1", items("9780000000001", "9780000000002", "9780000000003", "9780000000004", "fail0000000005"))
	require.NoError(t, err)
	assert.NotEmpty(t, result.JobID)
	assert.Len(t, result.AuthToken, 36, "token is UUID-shaped")

	ch, detach, err := r.AttachStream(result.JobID, result.AuthToken, 0)
	require.NoError(t, err)
	defer detach()

	var itemDone, terminal int
	var terminalPayload Progress
	deadline := time.After(5 * time.Second)
collect:
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				break collect
			}
			switch msg.Type {
			case stream.TypeItemDone:
				itemDone++
			case stream.TypeCompleted, stream.TypeFailed, stream.TypeCancelled:
				terminal++
				raw, _ := json.Marshal(msg.Payload)
				require.NoError(t, json.Unmarshal(raw, &terminalPayload))
			}
		case <-deadline:
			t.Fatal("stream never delivered the terminal message")
		}
	}

	assert.Equal(t, 5, itemDone, "one itemDone per item")
	assert.Equal(t, 1, terminal, "exactly one terminal message")
	assert.Equal(t, StatusPartial, terminalPayload.Status)
	assert.Equal(t, 4, terminalPayload.CompletedItems)
	assert.Equal(t, 1, terminalPayload.FailedItems)

	snap := waitForStatus(t, r, result.JobID, StatusPartial)
	assert.Equal(t, 1, snap.FailedItems)
	assert.Equal(t, "NotFound", findItem(t, snap, "fail0000000005").ErrorKind)
}

func findItem(t *testing.T, snap JobState, isbn string) ItemResult {
	t.Helper()
	for _, res := range snap.PerItemResults {
		if res.Input.ISBN == isbn {
			return res
		}
	}
	t.Fatalf("no item result for %s", isbn)
	return ItemResult{}
}

func TestBatchCompletedAndFailed(t *testing.T) {
	store := storage.NewMemoryStore()
	r := NewRegistry(testConfig(), store, flakyEnricher)
	defer r.Close()

	allOK, err := r.Launch("user1", items("9780000000001", "9780000000002"))
	require.NoError(t, err)
	waitForStatus(t, r, allOK.JobID, StatusCompleted)

	allBad, err := r.Launch("user1", items("fail0000000001", "fail0000000002"))
	require.NoError(t, err)
	waitForStatus(t, r, allBad.JobID, StatusFailed)
}

func TestLaunchValidation(t *testing.T) {
	r := NewRegistry(testConfig(), storage.NewMemoryStore(), flakyEnricher)
	defer r.Close()

	_, err := r.Launch("user1", nil)
	assert.Error(t, err)

	_, err = r.Launch("user1", []ItemInput{{}})
	assert.Error(t, err)
}

func TestDistinctLaunchesDistinctTokens(t *testing.T) {
	r := NewRegistry(testConfig(), storage.NewMemoryStore(), flakyEnricher)
	defer r.Close()

	a, err := r.Launch("user1", items("9780000000001"))
	require.NoError(t, err)
	b, err := r.Launch("user1", items("9780000000001"))
	require.NoError(t, err)
	assert.NotEqual(t, a.AuthToken, b.AuthToken)
}

func TestAttachRejectsWrongToken(t *testing.T) {
	r := NewRegistry(testConfig(), storage.NewMemoryStore(), flakyEnricher)
	defer r.Close()

	result, err := r.Launch("user1", items("9780000000001"))
	require.NoError(t, err)

	_, _, err = r.AttachStream(result.JobID, "00000000-0000-0000-0000-000000000000", 0)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = r.AttachStream("no-such-job", result.AuthToken, 0)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestCancelIsIdempotent(t *testing.T) {
	slowCfg := testConfig()
	store := storage.NewMemoryStore()

	gate := make(chan struct{})
	blocked := func(ctx context.Context, input ItemInput) (string, *providers.Failure) {
		select {
		case <-gate:
		case <-ctx.Done():
		}
		return "isbn:" + input.ISBN, nil
	}

	r := NewRegistry(slowCfg, store, blocked)
	defer r.Close()
	defer close(gate)

	result, err := r.Launch("user1", items("9780000000001", "9780000000002"))
	require.NoError(t, err)

	require.NoError(t, r.Cancel(result.JobID, result.AuthToken))
	snap := waitForStatus(t, r, result.JobID, StatusCancelled)
	assert.Equal(t, StatusCancelled, snap.Status)

	// A second cancel is a no-op, not an error.
	assert.NoError(t, r.Cancel(result.JobID, result.AuthToken))
}

func TestCancelRejectsWrongToken(t *testing.T) {
	r := NewRegistry(testConfig(), storage.NewMemoryStore(), flakyEnricher)
	defer r.Close()

	result, err := r.Launch("user1", items("9780000000001"))
	require.NoError(t, err)

	err = r.Cancel(result.JobID, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshOutsideWindowRejected(t *testing.T) {
	// Default 2h lifetime leaves the token far outside the 30min window.
	r := NewRegistry(testConfig(), storage.NewMemoryStore(), flakyEnricher)
	defer r.Close()

	result, err := r.Launch("user1", items("9780000000001"))
	require.NoError(t, err)

	_, err = r.RefreshToken(result.JobID, result.AuthToken)
	assert.ErrorIs(t, err, ErrRefreshWindow)
}

func TestRefreshInsideWindow(t *testing.T) {
	cfg := testConfig()
	cfg.TokenLifetime = 20 * time.Minute // inside the 30min refresh window
	r := NewRegistry(cfg, storage.NewMemoryStore(), flakyEnricher)
	defer r.Close()

	result, err := r.Launch("user1", items("9780000000001"))
	require.NoError(t, err)

	envelope, err := r.RefreshToken(result.JobID, result.AuthToken)
	require.NoError(t, err)
	assert.NotEqual(t, result.AuthToken, envelope.AuthToken)
	assert.True(t, envelope.AuthTokenExpiresAt.After(result.AuthTokenExpiresAt))

	// The old token is invalid from the install point on.
	err = r.Cancel(result.JobID, result.AuthToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.NoError(t, r.Cancel(result.JobID, envelope.AuthToken))
}

// slowStore delays the atomic state+token write so a second refresh can
// observe refreshInProgress.
type slowStore struct {
	storage.Store
	delay time.Duration
}

func (s *slowStore) PutJobStateAndToken(jobID string, state []byte, version int64, envelope []byte) error {
	time.Sleep(s.delay)
	return s.Store.PutJobStateAndToken(jobID, state, version, envelope)
}

func TestRefreshConflict(t *testing.T) {
	cfg := testConfig()
	cfg.TokenLifetime = 20 * time.Minute
	store := &slowStore{Store: storage.NewMemoryStore(), delay: 150 * time.Millisecond}
	r := NewRegistry(cfg, store, flakyEnricher)
	defer r.Close()

	result, err := r.Launch("user1", items("9780000000001"))
	require.NoError(t, err)

	var mu sync.Mutex
	var succeeded, conflicted int
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.RefreshToken(result.JobID, result.AuthToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case err == ErrRefreshConflict:
				conflicted++
			}
		}()
		time.Sleep(20 * time.Millisecond) // second request lands mid-persist
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded, "exactly one refresh wins")
	assert.Equal(t, 1, conflicted, "the loser sees RefreshConflict")
}

// TestRefreshSurvivesConcurrentItemPersists covers the version race: item
// results persist at higher versions while the refresh write is in flight,
// so the refresh falls back to a token-only write instead of failing.
func TestRefreshSurvivesConcurrentItemPersists(t *testing.T) {
	cfg := testConfig()
	cfg.TokenLifetime = 20 * time.Minute
	cfg.PersistUpdateCount = 1 // every item result persists immediately
	store := &slowStore{Store: storage.NewMemoryStore(), delay: 200 * time.Millisecond}

	gate := make(chan struct{})
	gated := func(ctx context.Context, input ItemInput) (string, *providers.Failure) {
		select {
		case <-gate:
		case <-ctx.Done():
		}
		return "isbn:" + input.ISBN, nil
	}

	r := NewRegistry(cfg, store, gated)
	defer r.Close()

	result, err := r.Launch("user1", items("9780000000001", "9780000000002", "9780000000003"))
	require.NoError(t, err)

	refreshed := make(chan TokenEnvelope, 1)
	refreshErr := make(chan error, 1)
	go func() {
		env, err := r.RefreshToken(result.JobID, result.AuthToken)
		refreshed <- env
		refreshErr <- err
	}()

	// Release the items mid-refresh so their persists land at versions
	// past the one the refresh reserved.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	waitForStatus(t, r, result.JobID, StatusCompleted)

	envelope := <-refreshed
	require.NoError(t, <-refreshErr, "an in-window refresh must not lose to item persists")

	// The new token is live on both the actor and the store.
	assert.ErrorIs(t, r.Cancel(result.JobID, result.AuthToken), ErrInvalidToken)
	assert.NoError(t, r.Cancel(result.JobID, envelope.AuthToken))

	raw, err := store.GetToken(result.JobID)
	require.NoError(t, err)
	var stored TokenEnvelope
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, envelope.AuthToken, stored.AuthToken)
}

// captureStore remembers the first atomic state+token payload.
type captureStore struct {
	storage.Store

	mu    sync.Mutex
	first []byte
}

func (s *captureStore) PutJobStateAndToken(jobID string, state []byte, version int64, envelope []byte) error {
	s.mu.Lock()
	if s.first == nil {
		s.first = append([]byte(nil), state...)
	}
	s.mu.Unlock()
	return s.Store.PutJobStateAndToken(jobID, state, version, envelope)
}

func TestLaunchPersistsPendingBeforeRunning(t *testing.T) {
	store := &captureStore{Store: storage.NewMemoryStore()}
	r := NewRegistry(testConfig(), store, flakyEnricher)
	defer r.Close()

	result, err := r.Launch("user1", items("9780000000001"))
	require.NoError(t, err)

	store.mu.Lock()
	first := store.first
	store.mu.Unlock()
	require.NotNil(t, first, "launch writes the job before returning")

	var persisted JobState
	require.NoError(t, json.Unmarshal(first, &persisted))
	assert.Equal(t, StatusPending, persisted.Status, "the first durable record is pending")
	assert.Equal(t, int64(1), persisted.Version)

	waitForStatus(t, r, result.JobID, StatusCompleted)
}

func TestStopIsIdempotent(t *testing.T) {
	r := NewRegistry(testConfig(), storage.NewMemoryStore(), flakyEnricher)

	result, err := r.Launch("user1", items("9780000000001"))
	require.NoError(t, err)
	waitForStatus(t, r, result.JobID, StatusCompleted)

	a, ok := r.actor(result.JobID)
	require.True(t, ok)

	// The alarm path and Close can both reach stop; neither order panics.
	a.stop()
	a.stop()
	r.Close()
}

func TestTerminalStatePersisted(t *testing.T) {
	store := storage.NewMemoryStore()
	r := NewRegistry(testConfig(), store, flakyEnricher)
	defer r.Close()

	result, err := r.Launch("user1", items("9780000000001", "fail0000000002"))
	require.NoError(t, err)
	waitForStatus(t, r, result.JobID, StatusPartial)

	raw, version, err := store.GetJobState(result.JobID)
	require.NoError(t, err)
	assert.Greater(t, version, int64(1))

	var persisted JobState
	require.NoError(t, json.Unmarshal(raw, &persisted))
	assert.Equal(t, StatusPartial, persisted.Status)
	assert.Equal(t, 1, persisted.CompletedItems)
	assert.Equal(t, 1, persisted.FailedItems)
}

func TestSnapshotFallsBackToStore(t *testing.T) {
	store := storage.NewMemoryStore()
	r := NewRegistry(testConfig(), store, flakyEnricher)

	result, err := r.Launch("user1", items("9780000000001"))
	require.NoError(t, err)
	waitForStatus(t, r, result.JobID, StatusCompleted)
	r.Close()

	// A fresh registry has no live actor but can still serve the snapshot.
	r2 := NewRegistry(testConfig(), store, flakyEnricher)
	defer r2.Close()
	snap, err := r2.Snapshot(result.JobID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, snap.Status)
}

func TestCleanupAlarmDeletesJob(t *testing.T) {
	cfg := testConfig()
	cfg.CleanupAfter = 100 * time.Millisecond
	store := storage.NewMemoryStore()
	r := NewRegistry(cfg, store, flakyEnricher)
	defer r.Close()

	result, err := r.Launch("user1", items("9780000000001"))
	require.NoError(t, err)
	waitForStatus(t, r, result.JobID, StatusCompleted)

	require.Eventually(t, func() bool {
		_, err := r.Snapshot(result.JobID)
		return err == ErrJobNotFound
	}, 3*time.Second, 25*time.Millisecond, "alarm deletes all persisted fields")

	_, _, err = store.GetJobState(result.JobID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetToken(result.JobID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenEnvelopeValidation(t *testing.T) {
	env := TokenEnvelope{AuthToken: "a-token", AuthTokenExpiresAt: time.Now().Add(time.Hour)}

	assert.NoError(t, env.Validate("a-token", time.Now()))
	assert.ErrorIs(t, env.Validate("A-TOKEN", time.Now()), ErrInvalidToken, "comparison is case-sensitive")
	assert.ErrorIs(t, env.Validate("a-token", time.Now().Add(2*time.Hour)), ErrExpiredToken)
}

func TestRefreshWindowBounds(t *testing.T) {
	now := time.Now()
	window := 30 * time.Minute

	inside := TokenEnvelope{AuthTokenExpiresAt: now.Add(20 * time.Minute)}
	assert.True(t, inside.InRefreshWindow(now, window))

	early := TokenEnvelope{AuthTokenExpiresAt: now.Add(90 * time.Minute)}
	assert.False(t, early.InRefreshWindow(now, window))

	expired := TokenEnvelope{AuthTokenExpiresAt: now.Add(-time.Minute)}
	assert.False(t, expired.InRefreshWindow(now, window))
}
