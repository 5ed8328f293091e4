// file: internal/providers/errors.go
// version: 1.0.0
// guid: 4b9c1d3e-5f7a-4b8c-9d0e-2f4a6b8c0d1e

package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// FailureKind classifies why a provider call did not produce a result.
type FailureKind string

const (
	FailTimeout         FailureKind = "Timeout"
	FailRateLimited     FailureKind = "RateLimited"
	FailUnauthenticated FailureKind = "Unauthenticated"
	FailBadRequest      FailureKind = "BadRequest"
	FailNotFound        FailureKind = "NotFound"
	FailTransient       FailureKind = "Transient5xx"
	FailMalformed       FailureKind = "MalformedPayload"
	FailNetwork         FailureKind = "Network"
)

// Failure is a provider error as a value. Clients never panic into the
// orchestrator; everything comes back as one of these.
type Failure struct {
	Provider   string
	Kind       FailureKind
	Message    string
	RetryAfter time.Duration
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s: %s", f.Provider, f.Kind, f.Message)
}

// Retryable reports whether the orchestrator should try another provider.
func (f *Failure) Retryable() bool {
	switch f.Kind {
	case FailBadRequest, FailUnauthenticated:
		return false
	default:
		return true
	}
}

// NewFailure builds a Failure with a formatted message.
func NewFailure(provider string, kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Provider: provider, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ClassifyHTTP maps a non-2xx response to the failure taxonomy.
func ClassifyHTTP(provider string, resp *http.Response) *Failure {
	f := &Failure{Provider: provider, Message: fmt.Sprintf("status %d", resp.StatusCode)}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		f.Kind = FailRateLimited
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				f.RetryAfter = time.Duration(secs) * time.Second
			}
		}
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		f.Kind = FailUnauthenticated
	case resp.StatusCode == http.StatusNotFound:
		f.Kind = FailNotFound
	case resp.StatusCode >= 500:
		f.Kind = FailTransient
	case resp.StatusCode >= 400:
		f.Kind = FailBadRequest
	default:
		f.Kind = FailTransient
	}
	return f
}

// ClassifyErr maps a transport-level error to the failure taxonomy.
func ClassifyErr(provider string, err error) *Failure {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Failure{Provider: provider, Kind: FailTimeout, Message: err.Error()}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &Failure{Provider: provider, Kind: FailTimeout, Message: err.Error()}
	default:
		return &Failure{Provider: provider, Kind: FailNetwork, Message: err.Error()}
	}
}
