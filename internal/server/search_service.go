// file: internal/server/search_service.go
// version: 1.2.0
// guid: 2e3f4a5b-6c7d-4e8f-9a0b-1c2d3e4f5a6b

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Shapuzzz/bookstrack-backend/internal/cache"
	"github.com/Shapuzzz/bookstrack-backend/internal/fingerprint"
	"github.com/Shapuzzz/bookstrack-backend/internal/models"
	"github.com/Shapuzzz/bookstrack-backend/internal/providers"
)

// searchISBN handles GET /v1/search/isbn?isbn=…
func (s *Server) searchISBN(c *gin.Context) {
	isbn := fingerprint.NormalizeISBN(c.Query("isbn"))
	if len(isbn) != 10 && len(isbn) != 13 {
		s.RespondWithValidationError(c, "isbn must be 10 or 13 characters")
		return
	}

	query := providers.Query{Kind: providers.SearchISBN, ISBN: isbn}
	s.serveSearch(c, "isbn", map[string]string{"isbn": isbn}, query, s.searchLimit)
}

// searchTitle handles GET /v1/search/title?q=…&maxResults=…
func (s *Server) searchTitle(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		s.RespondWithValidationError(c, "q is required")
		return
	}
	limit := s.searchLimit
	if raw := c.Query("maxResults"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.RespondWithValidationError(c, "maxResults must be a positive integer")
			return
		}
		limit = parsed
	}

	query := providers.Query{Kind: providers.SearchTitle, Title: q}
	s.serveSearch(c, "title", map[string]string{"q": q, "limit": strconv.Itoa(limit)}, query, limit)
}

// searchAuthor handles GET /v1/search/author?q=…
func (s *Server) searchAuthor(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		s.RespondWithValidationError(c, "q is required")
		return
	}

	query := providers.Query{Kind: providers.SearchAuthor, Author: q}
	s.serveSearch(c, "author", map[string]string{"q": q}, query, s.searchLimit)
}

// serveSearch runs the read-through cache over the orchestrator fan-out.
func (s *Server) serveSearch(c *gin.Context, subkind string, params map[string]string, query providers.Query, limit int) {
	res, err := s.cache.Get(c.Request.Context(), fingerprint.KindSearch, subkind, params, func(ctx context.Context) (*cache.Payload, error) {
		outcome := s.orch.Search(ctx, query, limit)
		if outcome.Failed() {
			return nil, outcome.Aggregate()
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
		return &cache.Payload{
			Value:   value,
			Source:  string(outcome.Provider),
			Quality: quality,
		}, nil
	})
	if err != nil {
		var failure *providers.Failure
		if errors.As(err, &failure) {
			s.RespondWithFailure(c, failure)
			return
		}
		s.RespondWithError(c, http.StatusInternalServerError, "ProviderTransient", err.Error())
		return
	}

	// Empty results are a normal 200, never a 404.
	var works []models.Work
	if err := json.Unmarshal(res.Value, &works); err != nil {
		s.RespondWithError(c, http.StatusInternalServerError, "ProviderMalformed", "cached payload is not a work list")
		return
	}
	if works == nil {
		works = []models.Work{}
	}
	// Edge hits carry no stored metadata, so completeness is rebuilt from
	// the decoded works.
	if res.Completeness == 0 {
		for _, w := range works {
			if w.QualityScore > res.Completeness {
				res.Completeness = w.QualityScore
			}
		}
	}
	s.RespondWithCacheResult(c, works, sourceFor(res), imageQualityFor(works), res)
}

// imageQualityFor grades the best edition cover in the result set.
func imageQualityFor(works []models.Work) string {
	quality := providers.ImageQuality("")
	for _, w := range works {
		ed := w.PrimaryEdition()
		if ed == nil {
			continue
		}
		switch providers.ImageQuality(ed.CoverImageURL) {
		case "high":
			return "high"
		case "medium":
			quality = "medium"
		case "low":
			if quality == "none" {
				quality = "low"
			}
		}
	}
	return quality
}

func sourceFor(res *cache.Result) string {
	if res.Status == cache.StatusHit {
		return "cache"
	}
	return string(models.ProviderOrchestrated)
}
