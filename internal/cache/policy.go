// file: internal/cache/policy.go
// version: 1.0.0
// guid: 2e4f6a8b-0c1d-4e3f-9a5b-7c9d1e3f5a7b

package cache

import (
	"time"

	"github.com/Shapuzzz/bookstrack-backend/internal/fingerprint"
)

// TTLPolicy holds the per-kind durable-tier TTLs.
type TTLPolicy struct {
	ISBNEnrich  time.Duration
	ISBNSearch  time.Duration
	TitleSearch time.Duration
	Cover       time.Duration
	AIParse     time.Duration
}

// DefaultTTLPolicy mirrors the documented defaults: ISBN enrich 365d,
// ISBN search 7d, title/author search 6h, covers 30d, AI parse 24h.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		ISBNEnrich:  365 * 24 * time.Hour,
		ISBNSearch:  7 * 24 * time.Hour,
		TitleSearch: 6 * time.Hour,
		Cover:       30 * 24 * time.Hour,
		AIParse:     24 * time.Hour,
	}
}

// For resolves the TTL for a query kind/subkind pair.
func (p TTLPolicy) For(kind fingerprint.Kind, subkind string) time.Duration {
	switch kind {
	case fingerprint.KindEnrich:
		return p.ISBNEnrich
	case fingerprint.KindCover:
		return p.Cover
	case fingerprint.KindAI:
		return p.AIParse
	case fingerprint.KindSearch:
		if subkind == "isbn" {
			return p.ISBNSearch
		}
		return p.TitleSearch
	default:
		return p.TitleSearch
	}
}
