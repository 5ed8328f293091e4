// file: internal/providers/covers_test.go
// version: 1.0.0
// guid: 6d8e0f2a-4b5c-4d7e-9f1a-3b5c7d9e1f3a

package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageQuality(t *testing.T) {
	tests := []struct {
		name     string
		coverURL string
		want     string
	}{
		{"no cover", "", "none"},
		{"covers service large", "https://covers.openlibrary.org/b/isbn/9780439708180-L.jpg", "high"},
		{"covers service medium", "https://covers.openlibrary.org/b/id/240727-M.jpg", "medium"},
		{"google zoom thumbnail", "https://books.google.com/books/content?id=x&zoom=1", "medium"},
		{"unrecognized rendition", "https://covers.openlibrary.org/b/id/240727-S.jpg", "low"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ImageQuality(tc.coverURL))
		})
	}
}

func TestCoverByISBN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path == "/b/isbn/9780439708180-L.jpg" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOpenLibraryCoversClientWithBaseURL(srv.URL, time.Second)

	coverURL, fail := c.CoverByISBN(context.Background(), "9780439708180")
	require.Nil(t, fail)
	assert.Equal(t, srv.URL+"/b/isbn/9780439708180-L.jpg", coverURL)
	assert.Equal(t, "high", ImageQuality(coverURL))

	_, fail = c.CoverByISBN(context.Background(), "9780000000000")
	require.NotNil(t, fail)
	assert.Equal(t, FailNotFound, fail.Kind)
}
