// file: internal/jobs/enrich.go
// version: 1.0.0
// guid: 8d9e0f1a-2b3c-4d4e-f5a6-b7c8d9e0f1a2

package jobs

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Shapuzzz/bookstrack-backend/internal/cache"
	"github.com/Shapuzzz/bookstrack-backend/internal/fingerprint"
	"github.com/Shapuzzz/bookstrack-backend/internal/models"
	"github.com/Shapuzzz/bookstrack-backend/internal/normalize"
	"github.com/Shapuzzz/bookstrack-backend/internal/orchestrator"
	"github.com/Shapuzzz/bookstrack-backend/internal/providers"
)

// NewCachedEnricher builds the per-item enrichment function batch jobs
// run: ISBN items go through the long-lived enrich cache, title items
// through the search cache.
func NewCachedEnricher(svc *cache.Service, orch *orchestrator.Orchestrator) EnrichFunc {
	return func(ctx context.Context, input ItemInput) (string, *providers.Failure) {
		if input.ISBN != "" {
			return enrichByISBN(ctx, svc, orch, input)
		}
		return enrichByTitle(ctx, svc, orch, input)
	}
}

func enrichByISBN(ctx context.Context, svc *cache.Service, orch *orchestrator.Orchestrator, input ItemInput) (string, *providers.Failure) {
	isbn := fingerprint.NormalizeISBN(input.ISBN)
	if len(isbn) != 10 && len(isbn) != 13 {
		return "", providers.NewFailure(string(models.ProviderOrchestrated), providers.FailBadRequest, "invalid isbn %q", input.ISBN)
	}

	res, err := svc.Get(ctx, fingerprint.KindEnrich, "isbn", map[string]string{"isbn": isbn}, func(ctx context.Context) (*cache.Payload, error) {
		outcome := orch.EnrichISBN(ctx, isbn)
		return searchPayload(outcome)
	})
	if err != nil {
		return "", asFailure(err)
	}
	return workID(res)
}

func enrichByTitle(ctx context.Context, svc *cache.Service, orch *orchestrator.Orchestrator, input ItemInput) (string, *providers.Failure) {
	query := providers.Query{Kind: providers.SearchTitle, Title: input.Title}
	params := map[string]string{"q": input.Title}
	if input.Author != "" {
		query.Kind = providers.SearchTitleAuthor
		query.Author = input.Author
		params["author"] = input.Author
	}

	res, err := svc.Get(ctx, fingerprint.KindSearch, "title", params, func(ctx context.Context) (*cache.Payload, error) {
		outcome := orch.Search(ctx, query, 1)
		return searchPayload(outcome)
	})
	if err != nil {
		return "", asFailure(err)
	}
	return workID(res)
}

// searchPayload converts a fan-out outcome into a cacheable payload. A
// hard not-found becomes a negative entry instead of an error.
func searchPayload(outcome *orchestrator.Outcome) (*cache.Payload, error) {
	if outcome.Failed() {
		agg := outcome.Aggregate()
		if agg.Kind == providers.FailNotFound {
			return &cache.Payload{Value: []byte("[]"), Source: string(outcome.Provider), NotFound: true}, nil
		}
		return nil, agg
	}

	value, err := json.Marshal(outcome.Works)
	if err != nil {
		return nil, err
	}
	quality := 0
	for _, w := range outcome.Works {
		if w.QualityScore > quality {
			quality = w.QualityScore
		}
	}
	return &cache.Payload{Value: value, Source: string(outcome.Provider), Quality: quality}, nil
}

// workID derives the stable identifier an item result reports: primary
// edition ISBN first, then a provider id, then the case-folded title.
func workID(res *cache.Result) (string, *providers.Failure) {
	if res.Negative {
		return "", providers.NewFailure(string(models.ProviderOrchestrated), providers.FailNotFound, "no provider had a record")
	}

	var works []models.Work
	if err := json.Unmarshal(res.Value, &works); err != nil {
		return "", providers.NewFailure(string(models.ProviderOrchestrated), providers.FailMalformed, "cached payload is not a work list")
	}
	if len(works) == 0 {
		return "", providers.NewFailure(string(models.ProviderOrchestrated), providers.FailNotFound, "no matching work")
	}

	w := works[0]
	if ed := w.PrimaryEdition(); ed != nil && ed.ISBN != "" {
		return "isbn:" + ed.ISBN, nil
	}
	if id, ok := w.ProviderIDs[w.PrimaryProvider]; ok && id != "" {
		return string(w.PrimaryProvider) + ":" + id, nil
	}
	return "title:" + normalize.AuthorKey(w.Title), nil
}

func asFailure(err error) *providers.Failure {
	var failure *providers.Failure
	if errors.As(err, &failure) {
		return failure
	}
	return providers.NewFailure(string(models.ProviderOrchestrated), providers.FailTransient, "%v", err)
}
