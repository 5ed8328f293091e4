// file: internal/server/envelope.go
// version: 1.3.0
// guid: 5d6e7f8a-9b0c-1d2e-3f4a-5b6c7d8e9f0a

package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Shapuzzz/bookstrack-backend/internal/cache"
	"github.com/Shapuzzz/bookstrack-backend/internal/jobs"
	"github.com/Shapuzzz/bookstrack-backend/internal/providers"
	"github.com/Shapuzzz/bookstrack-backend/internal/server/middleware"
)

// Envelope is the canonical response shape.
type Envelope struct {
	Success  bool           `json:"success"`
	Data     any            `json:"data,omitempty"`
	Metadata ResponseMeta   `json:"metadata"`
	Error    *EnvelopeError `json:"error,omitempty"`
}

// ResponseMeta carries provenance for the response payload.
type ResponseMeta struct {
	Source         string `json:"source"`
	Timestamp      string `json:"timestamp"`
	Cached         bool   `json:"cached"`
	CacheSource    string `json:"cacheSource,omitempty"`
	TTL            int64  `json:"ttl,omitempty"`
	Completeness   int    `json:"completeness"`
	ImageQuality   string `json:"imageQuality,omitempty"`
	ResponseTimeMS int64  `json:"responseTimeMs"`
	RequestID      string `json:"requestId"`
}

// EnvelopeError is the error half of the canonical envelope.
type EnvelopeError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// legacyError matches the response shape from before the unified envelope.
type legacyError struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Status int    `json:"status"`
}

type legacySuccess struct {
	Data any `json:"data,omitempty"`
}

func newMeta(c *gin.Context, source string) ResponseMeta {
	return ResponseMeta{
		Source:    source,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: middleware.GetRequestID(c),
	}
}

// RespondWithData sends a success response in the configured envelope.
func (s *Server) RespondWithData(c *gin.Context, statusCode int, data any, meta ResponseMeta) {
	if !s.unifiedEnvelope {
		c.JSON(statusCode, legacySuccess{Data: data})
		return
	}
	c.JSON(statusCode, Envelope{Success: true, Data: data, Metadata: meta})
}

// RespondWithCacheResult sends a success response annotated with cache
// provenance and payload-quality headers.
func (s *Server) RespondWithCacheResult(c *gin.Context, data any, source, imageQuality string, res *cache.Result) {
	meta := newMeta(c, source)
	meta.Cached = res.Status == cache.StatusHit
	if meta.Cached {
		meta.CacheSource = string(res.Tier)
		meta.TTL = int64(res.TTL.Seconds())
		c.Header("X-Cache-TTL", strconv.FormatInt(meta.TTL, 10))
	}
	meta.Completeness = res.Completeness
	meta.ImageQuality = imageQuality
	meta.ResponseTimeMS = res.Elapsed.Milliseconds()
	c.Header("X-Cache-Status", string(res.Status))
	if res.Tier != "" {
		c.Header("X-Cache-Source", string(res.Tier))
	}
	c.Header("X-Data-Completeness", strconv.Itoa(res.Completeness))
	if imageQuality != "" {
		c.Header("X-Image-Quality", imageQuality)
	}
	c.Header("X-Response-Time", strconv.FormatInt(meta.ResponseTimeMS, 10)+"ms")
	s.RespondWithData(c, http.StatusOK, data, meta)
}

// RespondWithError sends a standardized error response and logs it.
func (s *Server) RespondWithError(c *gin.Context, statusCode int, kind, message string) {
	log.Printf("[ERROR] %s %s -> %d %s: %s (request %s)",
		c.Request.Method, c.Request.URL.Path, statusCode, kind, message, middleware.GetRequestID(c))

	if !s.unifiedEnvelope {
		c.JSON(statusCode, legacyError{Error: message, Code: kind, Status: statusCode})
		return
	}
	c.JSON(statusCode, Envelope{
		Success:  false,
		Metadata: newMeta(c, "error"),
		Error:    &EnvelopeError{Kind: kind, Message: message, Status: statusCode},
	})
}

// RespondWithValidationError sends a 400 for malformed input.
func (s *Server) RespondWithValidationError(c *gin.Context, message string) {
	s.RespondWithError(c, http.StatusBadRequest, "ValidationError", message)
}

// RespondWithFailure maps a provider failure to its HTTP status.
func (s *Server) RespondWithFailure(c *gin.Context, f *providers.Failure) {
	status, kind := failureStatus(f)
	if f.Kind == providers.FailRateLimited && f.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(f.RetryAfter.Seconds())))
	}
	s.RespondWithError(c, status, kind, f.Message)
}

func failureStatus(f *providers.Failure) (int, string) {
	switch f.Kind {
	case providers.FailBadRequest:
		return http.StatusBadRequest, "ValidationError"
	case providers.FailNotFound:
		return http.StatusNotFound, "NotFound"
	case providers.FailRateLimited:
		return http.StatusTooManyRequests, "RateLimited"
	case providers.FailTimeout:
		return http.StatusGatewayTimeout, "ProviderTimeout"
	case providers.FailUnauthenticated:
		return http.StatusInternalServerError, "ProviderUnauthorized"
	case providers.FailMalformed:
		return http.StatusInternalServerError, "ProviderMalformed"
	default:
		return http.StatusInternalServerError, "ProviderTransient"
	}
}

// RespondWithJobError maps job token and lifecycle errors to HTTP.
func (s *Server) RespondWithJobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		s.RespondWithError(c, http.StatusNotFound, "NotFound", "job not found")
	case errors.Is(err, jobs.ErrInvalidToken):
		s.RespondWithError(c, http.StatusUnauthorized, "InvalidToken", "token does not match")
	case errors.Is(err, jobs.ErrExpiredToken):
		s.RespondWithError(c, http.StatusUnauthorized, "ExpiredToken", "token has expired")
	case errors.Is(err, jobs.ErrRefreshConflict):
		s.RespondWithError(c, http.StatusConflict, "RefreshConflict", "a token refresh is already in progress")
	case errors.Is(err, jobs.ErrRefreshWindow):
		s.RespondWithError(c, http.StatusBadRequest, "ValidationError", "token is not within its refresh window")
	case errors.Is(err, jobs.ErrNotRunning):
		s.RespondWithError(c, http.StatusConflict, "Conflict", "job is not running")
	default:
		s.RespondWithError(c, http.StatusInternalServerError, "StorageUnavailable", err.Error())
	}
}
