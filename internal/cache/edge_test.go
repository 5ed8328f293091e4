// file: internal/cache/edge_test.go
// version: 1.0.0
// guid: b2c3d4e5-f6a7-4b8c-9d0e-1f2a3b4c5d6e

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeCachePutGet(t *testing.T) {
	c := NewEdgeCache(time.Minute)

	c.Put("/cache/v1/a", []byte("payload"), 0)
	value, age, ok := c.Get("/cache/v1/a")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), value)
	assert.GreaterOrEqual(t, age, time.Duration(0))
}

func TestEdgeCacheMiss(t *testing.T) {
	c := NewEdgeCache(time.Minute)

	_, _, ok := c.Get("/cache/v1/missing")
	assert.False(t, ok)
}

func TestEdgeCacheExpiry(t *testing.T) {
	c := NewEdgeCache(time.Minute)

	c.Put("/cache/v1/short", []byte("x"), 10*time.Millisecond)
	time.Sleep(25 * time.Millisecond)

	_, _, ok := c.Get("/cache/v1/short")
	assert.False(t, ok, "expired entry must be a miss")
}

func TestEdgeCacheDeleteAndPurge(t *testing.T) {
	c := NewEdgeCache(time.Minute)

	c.Put("a", []byte("1"), 0)
	c.Put("b", []byte("2"), 0)
	require.Equal(t, 2, c.Len())

	c.Delete("a")
	_, _, ok := c.Get("a")
	assert.False(t, ok)

	c.Purge()
	assert.Equal(t, 0, c.Len())
}
