// file: internal/providers/covers.go
// version: 1.0.0
// guid: 5c7d9e1f-3a4b-4c6d-8e0f-2a4b6c8d0e2f

package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Shapuzzz/bookstrack-backend/internal/models"
)

// OpenLibraryCoversClient resolves cover art from covers.openlibrary.org.
// A HEAD probe with default=false distinguishes a real cover from the
// 1x1 placeholder the service returns otherwise.
type OpenLibraryCoversClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewOpenLibraryCoversClient creates a cover art client.
func NewOpenLibraryCoversClient(timeout time.Duration) *OpenLibraryCoversClient {
	baseURL := os.Getenv("OPENLIBRARY_COVERS_BASE_URL")
	if baseURL == "" {
		baseURL = "https://covers.openlibrary.org"
	}
	return NewOpenLibraryCoversClientWithBaseURL(baseURL, timeout)
}

// NewOpenLibraryCoversClientWithBaseURL creates a client with a custom base URL.
func NewOpenLibraryCoversClientWithBaseURL(baseURL string, timeout time.Duration) *OpenLibraryCoversClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OpenLibraryCoversClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider identifier.
func (c *OpenLibraryCoversClient) Name() models.Provider {
	return models.ProviderCovers
}

// CoverByISBN returns the large-size cover URL for an ISBN, or a NotFound
// failure when the service has no cover.
func (c *OpenLibraryCoversClient) CoverByISBN(ctx context.Context, isbn string) (string, *Failure) {
	coverURL := fmt.Sprintf("%s/b/isbn/%s-L.jpg?default=false", c.baseURL, url.PathEscape(isbn))

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, coverURL, nil)
	if err != nil {
		return "", NewFailure(string(c.Name()), FailBadRequest, "build request: %v", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", ClassifyErr(string(c.Name()), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return strings.TrimSuffix(coverURL, "?default=false"), nil
	case resp.StatusCode == http.StatusNotFound:
		return "", NewFailure(string(c.Name()), FailNotFound, "no cover for ISBN %s", isbn)
	default:
		return "", ClassifyHTTP(string(c.Name()), resp)
	}
}

// ImageQuality is a coarse flag derived from cover URL features; "-L" URLs
// from the covers service are the large rendition.
func ImageQuality(coverURL string) string {
	switch {
	case coverURL == "":
		return "none"
	case strings.Contains(coverURL, "-L.jpg"):
		return "high"
	case strings.Contains(coverURL, "zoom=1"), strings.Contains(coverURL, "-M.jpg"):
		return "medium"
	default:
		return "low"
	}
}
