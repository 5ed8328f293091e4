// file: internal/cache/kv.go
// version: 1.2.0
// guid: 0c1d2e3f-4a5b-4c7d-8e9f-0a1b2c3d4e5f

package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble/v2"

	"github.com/Shapuzzz/bookstrack-backend/internal/fingerprint"
)

// Metadata travels with every KV entry.
type Metadata struct {
	Source       string `json:"source,omitempty"`
	QualityScore int    `json:"quality_score,omitempty"`
	Negative     bool   `json:"negative,omitempty"`
}

type kvEntry struct {
	Value      json.RawMessage `json:"value"`
	Metadata   Metadata        `json:"metadata"`
	InsertedAt time.Time       `json:"inserted_at"`
	TTLSeconds int64           `json:"ttl_seconds"`
}

// KVCache is the durable tier backed by PebbleDB.
//
// Key Schema:
// - cache:v1:<fingerprint> -> kvEntry JSON
//
// The fingerprint version is baked into the namespace so a key-format bump
// orphans old entries instead of serving them.
type KVCache struct {
	db *pebble.DB
}

// OpenKVCache opens (or creates) the durable cache at path.
func OpenKVCache(path string) (*KVCache, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}
	return &KVCache{db: db}, nil
}

// Close closes the underlying store.
func (c *KVCache) Close() error {
	return c.db.Close()
}

func storageKey(key string) []byte {
	return []byte("cache:" + fingerprint.Version + ":" + key)
}

// Get returns the value, its metadata, and its age. Expired entries are
// deleted lazily and reported as a miss.
func (c *KVCache) Get(key string) ([]byte, Metadata, time.Duration, bool) {
	raw, closer, err := c.db.Get(storageKey(key))
	if err == pebble.ErrNotFound {
		return nil, Metadata{}, 0, false
	}
	if err != nil {
		return nil, Metadata{}, 0, false
	}
	defer closer.Close()

	var entry kvEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// Unreadable entry: drop it rather than fail the read.
		_ = c.db.Delete(storageKey(key), pebble.NoSync)
		return nil, Metadata{}, 0, false
	}

	age := time.Since(entry.InsertedAt)
	if entry.TTLSeconds > 0 && age > time.Duration(entry.TTLSeconds)*time.Second {
		_ = c.db.Delete(storageKey(key), pebble.NoSync)
		return nil, Metadata{}, 0, false
	}
	return entry.Value, entry.Metadata, age, true
}

// Put stores a value under key with the given TTL and metadata.
func (c *KVCache) Put(key string, value []byte, ttl time.Duration, meta Metadata) error {
	entry := kvEntry{
		Value:      value,
		Metadata:   meta,
		InsertedAt: time.Now(),
		TTLSeconds: int64(ttl / time.Second),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := c.db.Set(storageKey(key), raw, pebble.NoSync); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Delete removes a key.
func (c *KVCache) Delete(key string) error {
	return c.db.Delete(storageKey(key), pebble.NoSync)
}
