// file: internal/jobs/token.go
// version: 1.0.0
// guid: 5a6b7c8d-9e0f-4a1b-c2d3-e4f5a6b7c8d9

package jobs

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidToken means the presented token does not match.
	ErrInvalidToken = errors.New("jobs: invalid token")
	// ErrExpiredToken means the token matched but its lifetime is over.
	ErrExpiredToken = errors.New("jobs: token expired")
	// ErrRefreshConflict means another refresh is already in flight.
	ErrRefreshConflict = errors.New("jobs: token refresh already in progress")
	// ErrRefreshWindow means refresh was attempted outside the final window
	// of the token's lifetime.
	ErrRefreshWindow = errors.New("jobs: token not within refresh window")
	// ErrNotRunning means the operation needs a running job.
	ErrNotRunning = errors.New("jobs: job is not running")
	// ErrJobNotFound means no live or persisted job exists for the id.
	ErrJobNotFound = errors.New("jobs: job not found")
)

// TokenEnvelope pairs a capability token with its expiry. The two fields
// are always persisted together.
type TokenEnvelope struct {
	AuthToken          string    `json:"authToken"`
	AuthTokenExpiresAt time.Time `json:"authTokenExpiresAt"`
}

// mintToken generates a fresh UUID-shaped token valid for lifetime.
func mintToken(lifetime time.Duration) TokenEnvelope {
	return TokenEnvelope{
		AuthToken:          uuid.NewString(),
		AuthTokenExpiresAt: time.Now().Add(lifetime),
	}
}

// Validate checks the presented token against the envelope. Comparison is
// case-sensitive and constant-time.
func (e TokenEnvelope) Validate(presented string, now time.Time) error {
	if subtle.ConstantTimeCompare([]byte(presented), []byte(e.AuthToken)) != 1 {
		return ErrInvalidToken
	}
	if !now.Before(e.AuthTokenExpiresAt) {
		return ErrExpiredToken
	}
	return nil
}

// InRefreshWindow reports whether a successor token may be minted: only
// during the final window of the lifetime, and never after expiry.
func (e TokenEnvelope) InRefreshWindow(now time.Time, window time.Duration) bool {
	remaining := e.AuthTokenExpiresAt.Sub(now)
	return remaining > 0 && remaining <= window
}
