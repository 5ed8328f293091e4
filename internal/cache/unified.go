// file: internal/cache/unified.go
// version: 1.3.0
// guid: 4a6b8c0d-2e3f-4a5b-8c7d-9e1f3a5b7c9d

package cache

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Shapuzzz/bookstrack-backend/internal/fingerprint"
	"github.com/Shapuzzz/bookstrack-backend/internal/metrics"
)

// Status reports whether a read was served from cache.
type Status string

const (
	StatusHit  Status = "HIT"
	StatusMiss Status = "MISS"
)

// Tier identifies which layer satisfied a read.
type Tier string

const (
	TierEdge   Tier = "EDGE"
	TierKV     Tier = "KV"
	TierOrigin Tier = "origin"
)

// Payload is what a loader produces on a cache miss.
type Payload struct {
	Value   []byte
	Source  string
	Quality int
	// NotFound marks a hard provider not-found, eligible for the bounded
	// negative cache when one is configured.
	NotFound bool
}

// Loader fetches the value from origin. It runs at most once per
// fingerprint across all concurrent callers.
type Loader func(ctx context.Context) (*Payload, error)

// Result is a cache read outcome plus the observable metadata the HTTP
// layer exposes as headers.
type Result struct {
	Value        []byte
	Status       Status
	Tier         Tier
	TTL          time.Duration
	Age          time.Duration
	Completeness int
	Negative     bool
	Elapsed      time.Duration
}

// Options tunes the unified service.
type Options struct {
	Policy       TTLPolicy
	EdgeTTL      time.Duration
	QualityFloor int
	// NegativeTTL enables the negative cache when > 0. Capped at 60s.
	NegativeTTL time.Duration
}

// Service is the two-tier read-through cache with single-flight coalescing.
// It owns the coalescer; callers share outcomes per fingerprint.
type Service struct {
	edge  *EdgeCache
	kv    *KVCache
	group singleflight.Group
	opts  Options
}

// NewService wires the tiers together.
func NewService(edge *EdgeCache, kv *KVCache, opts Options) *Service {
	if opts.EdgeTTL <= 0 {
		opts.EdgeTTL = 60 * time.Second
	}
	if opts.NegativeTTL > 60*time.Second {
		opts.NegativeTTL = 60 * time.Second
	}
	if opts.Policy == (TTLPolicy{}) {
		opts.Policy = DefaultTTLPolicy()
	}
	return &Service{edge: edge, kv: kv, opts: opts}
}

// Get runs the read-through contract: edge probe, KV probe with edge
// repopulation, then a coalesced origin load with write-back.
func (s *Service) Get(ctx context.Context, kind fingerprint.Kind, subkind string, params map[string]string, loader Loader) (*Result, error) {
	start := time.Now()
	key := fingerprint.Key(kind, subkind, params)
	edgeKey := fingerprint.EdgeKey(key)
	ttl := s.opts.Policy.For(kind, subkind)

	if value, age, ok := s.edge.Get(edgeKey); ok {
		metrics.IncCacheHit(string(TierEdge))
		return &Result{
			Value:   value,
			Status:  StatusHit,
			Tier:    TierEdge,
			TTL:     ttl,
			Age:     age,
			Elapsed: time.Since(start),
		}, nil
	}

	if value, meta, age, ok := s.kv.Get(key); ok {
		metrics.IncCacheHit(string(TierKV))
		// Best-effort edge repopulation; failure cannot happen in-process
		// but the write stays off the critical path regardless.
		s.edge.Put(edgeKey, value, s.opts.EdgeTTL)
		return &Result{
			Value:        value,
			Status:       StatusHit,
			Tier:         TierKV,
			TTL:          ttl,
			Age:          age,
			Completeness: meta.QualityScore,
			Negative:     meta.Negative,
			Elapsed:      time.Since(start),
		}, nil
	}

	metrics.IncCacheMiss()

	// Coalescing group: exactly one loader per fingerprint in flight.
	shared, err, _ := s.group.Do(key, func() (any, error) {
		payload, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		res := &Result{
			Value:        payload.Value,
			Status:       StatusMiss,
			Tier:         TierOrigin,
			TTL:          ttl,
			Completeness: payload.Quality,
			Negative:     payload.NotFound,
		}

		switch {
		case payload.NotFound:
			if s.opts.NegativeTTL > 0 {
				s.writeBack(key, edgeKey, payload, s.opts.NegativeTTL, true)
				res.TTL = s.opts.NegativeTTL
			}
		case payload.Quality >= s.opts.QualityFloor:
			s.writeBack(key, edgeKey, payload, ttl, false)
		default:
			log.Printf("[DEBUG] cache: skipping write-back for %s, quality %d below floor %d", key, payload.Quality, s.opts.QualityFloor)
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}

	res := *(shared.(*Result))
	res.Elapsed = time.Since(start)
	return &res, nil
}

// writeBack persists to KV then edge. Fail-open: a write error never fails
// the read that produced the value.
func (s *Service) writeBack(key, edgeKey string, payload *Payload, ttl time.Duration, negative bool) {
	meta := Metadata{Source: payload.Source, QualityScore: payload.Quality, Negative: negative}
	if err := s.kv.Put(key, payload.Value, ttl, meta); err != nil {
		metrics.IncCacheWriteError()
	}
	edgeTTL := s.opts.EdgeTTL
	if ttl < edgeTTL {
		edgeTTL = ttl
	}
	s.edge.Put(edgeKey, payload.Value, edgeTTL)
}

// Invalidate drops a fingerprint from both tiers.
func (s *Service) Invalidate(kind fingerprint.Kind, subkind string, params map[string]string) {
	key := fingerprint.Key(kind, subkind, params)
	s.edge.Delete(fingerprint.EdgeKey(key))
	_ = s.kv.Delete(key)
}
