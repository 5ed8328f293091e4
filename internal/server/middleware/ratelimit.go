// file: internal/server/middleware/ratelimit.go
// version: 2.0.0
// guid: 1331705a-85cb-4158-92f5-5ce203d8a0e7

package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Shapuzzz/bookstrack-backend/internal/metrics"
)

// EndpointClass buckets routes that share a rate-limit window.
type EndpointClass string

const (
	ClassSearch EndpointClass = "search"
	ClassBatch  EndpointClass = "batch"
	ClassImport EndpointClass = "import"
)

type windowKey struct {
	principal string
	class     EndpointClass
}

type windowEntry struct {
	count       int
	windowStart time.Time
}

// PrincipalRateLimiter is a fixed-window counter keyed by
// (principal, endpoint-class). The principal is the bearer token when one
// is presented, otherwise the client address.
type PrincipalRateLimiter struct {
	mu       sync.Mutex
	entries  map[windowKey]*windowEntry
	limit    int
	window   time.Duration
	lastSwep time.Time
}

// NewPrincipalRateLimiter creates a limiter allowing limit requests per
// window per (principal, class) pair.
func NewPrincipalRateLimiter(limit int, window time.Duration) *PrincipalRateLimiter {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &PrincipalRateLimiter{
		entries: make(map[windowKey]*windowEntry),
		limit:   limit,
		window:  window,
	}
}

// Principal derives the caller identity: authenticated identity first,
// source address otherwise.
func Principal(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && len(auth) > len("Bearer ") {
		return "token:" + strings.TrimPrefix(auth, "Bearer ")
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

// allow performs the atomic increment-and-check. It returns the seconds
// until the window resets when the limit is exceeded.
func (r *PrincipalRateLimiter) allow(principal string, class EndpointClass) (bool, int) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Expired windows are swept lazily, at most once per window.
	if now.Sub(r.lastSwep) > r.window {
		for key, entry := range r.entries {
			if now.Sub(entry.windowStart) >= r.window {
				delete(r.entries, key)
			}
		}
		r.lastSwep = now
	}

	key := windowKey{principal: principal, class: class}
	entry, ok := r.entries[key]
	if !ok || now.Sub(entry.windowStart) >= r.window {
		r.entries[key] = &windowEntry{count: 1, windowStart: now}
		return true, 0
	}

	entry.count++
	if entry.count > r.limit {
		retryAfter := int(r.window.Seconds() - now.Sub(entry.windowStart).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		return false, retryAfter
	}
	return true, 0
}

// Middleware returns a Gin middleware enforcing the limit for one
// endpoint class.
func (r *PrincipalRateLimiter) Middleware(class EndpointClass) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retryAfter := r.allow(Principal(c), class)
		if !ok {
			metrics.IncRateLimited(string(class))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limit exceeded",
				"retryAfter": retryAfter,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
