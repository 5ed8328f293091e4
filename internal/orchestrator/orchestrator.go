// file: internal/orchestrator/orchestrator.go
// version: 1.2.0
// guid: 7d6e5f4a-3c2b-4a09-8f7e-6d5c4b3a2190

package orchestrator

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Shapuzzz/bookstrack-backend/internal/metrics"
	"github.com/Shapuzzz/bookstrack-backend/internal/models"
	"github.com/Shapuzzz/bookstrack-backend/internal/providers"
)

// Outcome is the merged result of a fan-out. Partial results are normal:
// Failures lists providers that did not answer, and Works carries whatever
// the rest produced.
type Outcome struct {
	Works    []models.Work
	Provider models.Provider
	Failures []*providers.Failure
}

// Failed reports whether every provider failed.
func (o *Outcome) Failed() bool {
	return len(o.Works) == 0 && len(o.Failures) > 0
}

// Aggregate folds all failures into one value for the caller. Nil when at
// least one provider answered.
func (o *Outcome) Aggregate() *providers.Failure {
	if !o.Failed() {
		return nil
	}
	worst := o.Failures[0]
	for _, f := range o.Failures[1:] {
		if severity(f.Kind) > severity(worst.Kind) {
			worst = f
		}
	}
	agg := *worst
	agg.Provider = string(models.ProviderOrchestrated)
	return &agg
}

func severity(kind providers.FailureKind) int {
	switch kind {
	case providers.FailNotFound:
		return 0
	case providers.FailBadRequest:
		return 1
	case providers.FailRateLimited:
		return 2
	case providers.FailTimeout:
		return 3
	default:
		return 4
	}
}

// Orchestrator fans a query out to the declared providers, normalizes,
// merges, and ranks. Provider-specific payload shapes never cross into
// this package; clients hand back canonical Works.
type Orchestrator struct {
	clients  []providers.Client
	covers   providers.CoverClient
	budget   time.Duration
	limiters map[models.Provider]*rate.Limiter
}

// New builds an orchestrator over the given clients, primary first.
// budget bounds the whole fan-out wall-clock (default 5s).
func New(clients []providers.Client, covers providers.CoverClient, budget time.Duration) *Orchestrator {
	if budget <= 0 {
		budget = 5 * time.Second
	}
	limiters := make(map[models.Provider]*rate.Limiter, len(clients))
	for _, c := range clients {
		// Outbound pacing per provider; generous, just keeps bursts polite.
		limiters[c.Name()] = rate.NewLimiter(rate.Limit(10), 5)
	}
	return &Orchestrator{clients: clients, covers: covers, budget: budget, limiters: limiters}
}

// Search fans out in parallel and merges the results.
func (o *Orchestrator) Search(ctx context.Context, q providers.Query, limit int) *Outcome {
	ctx, cancel := context.WithTimeout(ctx, o.budget)
	defer cancel()

	var (
		mu       sync.Mutex
		perProv  = make([][]models.Work, len(o.clients))
		failures []*providers.Failure
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, client := range o.clients {
		g.Go(func() error {
			if lim := o.limiters[client.Name()]; lim != nil {
				if err := lim.Wait(gctx); err != nil {
					return nil // budget exhausted while pacing; treated as absent
				}
			}
			start := time.Now()
			works, fail := client.Search(gctx, q, limit)
			metrics.ObserveProviderLatency(string(client.Name()), time.Since(start))
			mu.Lock()
			defer mu.Unlock()
			if fail != nil {
				metrics.IncProviderFailure(fail.Provider, string(fail.Kind))
				failures = append(failures, fail)
				log.Printf("[WARN] orchestrator: %s search failed: %v", client.Name(), fail)
				return nil
			}
			perProv[i] = works
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; partial results are fine

	var all []models.Work
	contributed := 0
	var single models.Provider
	for i := range perProv {
		if len(perProv[i]) > 0 {
			contributed++
			single = o.clients[i].Name()
			all = append(all, perProv[i]...)
		}
	}

	merged := Merge(all)
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}

	provider := models.ProviderOrchestrated
	if contributed == 1 {
		provider = single
	}
	return &Outcome{Works: merged, Provider: provider, Failures: failures}
}

// EnrichISBN resolves a single ISBN with provider fallback, then
// supplements a missing cover from the cover provider.
func (o *Orchestrator) EnrichISBN(ctx context.Context, isbn string) *Outcome {
	ctx, cancel := context.WithTimeout(ctx, o.budget)
	defer cancel()

	var (
		works    []models.Work
		failures []*providers.Failure
	)
	for _, client := range o.clients {
		start := time.Now()
		work, fail := client.LookupISBN(ctx, isbn)
		metrics.ObserveProviderLatency(string(client.Name()), time.Since(start))
		if fail != nil {
			metrics.IncProviderFailure(fail.Provider, string(fail.Kind))
			failures = append(failures, fail)
			if !fail.Retryable() {
				break
			}
			continue
		}
		works = append(works, *work)
	}

	merged := Merge(works)
	if len(merged) > 0 && o.covers != nil {
		o.supplementCover(ctx, &merged[0], isbn)
	}

	provider := models.ProviderOrchestrated
	if len(works) == 1 {
		provider = works[0].PrimaryProvider
	}
	return &Outcome{Works: merged, Provider: provider, Failures: failures}
}

func (o *Orchestrator) supplementCover(ctx context.Context, work *models.Work, isbn string) {
	ed := work.PrimaryEdition()
	if ed == nil || ed.CoverImageURL != "" {
		return
	}
	start := time.Now()
	coverURL, fail := o.covers.CoverByISBN(ctx, isbn)
	metrics.ObserveProviderLatency(string(o.covers.Name()), time.Since(start))
	if fail != nil {
		if fail.Kind != providers.FailNotFound {
			metrics.IncProviderFailure(fail.Provider, string(fail.Kind))
		}
		return
	}
	ed.CoverImageURL = coverURL
	work.Contributors = appendUnique(work.Contributors, string(o.covers.Name()))
}
