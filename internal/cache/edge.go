// file: internal/cache/edge.go
// version: 1.1.0
// guid: a1b2c3d4-e5f6-4a8b-9c0d-1e2f3a4b5c6d

package cache

import (
	"sync"
	"time"
)

type edgeEntry struct {
	value      []byte
	insertedAt time.Time
	expiresAt  time.Time
}

// EdgeCache is the short-TTL in-process tier, keyed by the URL form of a
// fingerprint. Safe for concurrent use. No coalescing happens here.
type EdgeCache struct {
	mu         sync.RWMutex
	items      map[string]edgeEntry
	defaultTTL time.Duration
}

// NewEdgeCache creates an edge cache with the given default TTL.
func NewEdgeCache(defaultTTL time.Duration) *EdgeCache {
	if defaultTTL <= 0 {
		defaultTTL = 60 * time.Second
	}
	return &EdgeCache{
		items:      make(map[string]edgeEntry),
		defaultTTL: defaultTTL,
	}
}

// Get retrieves a value and its age if it exists and hasn't expired.
func (c *EdgeCache) Get(key string) ([]byte, time.Duration, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, 0, false
	}
	return e.value, time.Since(e.insertedAt), true
}

// Put stores a value with a specific TTL (default TTL when ttl <= 0).
func (c *EdgeCache) Put(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now()
	c.mu.Lock()
	c.items[key] = edgeEntry{value: value, insertedAt: now, expiresAt: now.Add(ttl)}
	c.mu.Unlock()
}

// Delete removes a single key.
func (c *EdgeCache) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Purge removes all entries.
func (c *EdgeCache) Purge() {
	c.mu.Lock()
	c.items = make(map[string]edgeEntry)
	c.mu.Unlock()
}

// Len reports the live entry count, counting expired-but-unswept entries.
func (c *EdgeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
