// file: internal/providers/googlebooks.go
// version: 1.1.0
// guid: b2c3d4e5-f6a7-4b9c-8d1e-f2a3b4c5d6e7

package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Shapuzzz/bookstrack-backend/internal/models"
	"github.com/Shapuzzz/bookstrack-backend/internal/normalize"
)

// GoogleBooksClient fetches metadata from the Google Books Volume API.
// No API key is required for basic searches (free tier, ~1000 req/day);
// a key raises the quota.
type GoogleBooksClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewGoogleBooksClient creates a new Google Books API client.
func NewGoogleBooksClient(apiKey string, timeout time.Duration) *GoogleBooksClient {
	baseURL := os.Getenv("GOOGLE_BOOKS_BASE_URL")
	if baseURL == "" {
		baseURL = "https://www.googleapis.com/books/v1"
	}
	return NewGoogleBooksClientWithBaseURL(baseURL, apiKey, timeout)
}

// NewGoogleBooksClientWithBaseURL creates a client with a custom base URL (for testing).
func NewGoogleBooksClientWithBaseURL(baseURL, apiKey string, timeout time.Duration) *GoogleBooksClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GoogleBooksClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     ResolveSecret(apiKey),
	}
}

// Name returns the provider identifier.
func (c *GoogleBooksClient) Name() models.Provider {
	return models.ProviderGoogleBooks
}

type googleBooksResponse struct {
	TotalItems int              `json:"totalItems"`
	Items      []googleBooksVol `json:"items"`
}

type googleBooksVol struct {
	ID         string                `json:"id"`
	VolumeInfo googleBooksVolumeInfo `json:"volumeInfo"`
}

type googleBooksVolumeInfo struct {
	Title               string                  `json:"title"`
	Subtitle            string                  `json:"subtitle"`
	Authors             []string                `json:"authors"`
	Publisher           string                  `json:"publisher"`
	PublishedDate       string                  `json:"publishedDate"`
	Description         string                  `json:"description"`
	IndustryIdentifiers []googleBooksIndustryID `json:"industryIdentifiers"`
	PageCount           int                     `json:"pageCount"`
	Categories          []string                `json:"categories"`
	ImageLinks          *googleBooksImageLinks  `json:"imageLinks"`
	Language            string                  `json:"language"`
	PrintType           string                  `json:"printType"`
}

type googleBooksIndustryID struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

type googleBooksImageLinks struct {
	Thumbnail      string `json:"thumbnail"`
	SmallThumbnail string `json:"smallThumbnail"`
}

// Search queries the volumes endpoint with field-scoped query terms.
func (c *GoogleBooksClient) Search(ctx context.Context, q Query, limit int) ([]models.Work, *Failure) {
	var term string
	switch q.Kind {
	case SearchISBN:
		term = "isbn:" + q.ISBN
	case SearchTitle:
		term = "intitle:" + q.Title
	case SearchAuthor:
		term = "inauthor:" + q.Author
	case SearchTitleAuthor:
		term = fmt.Sprintf("intitle:%s+inauthor:%s", q.Title, q.Author)
	default:
		return nil, NewFailure(string(c.Name()), FailBadRequest, "unsupported search kind %q", q.Kind)
	}
	return c.search(ctx, term, limit)
}

// LookupISBN resolves a single volume by ISBN.
func (c *GoogleBooksClient) LookupISBN(ctx context.Context, isbn string) (*models.Work, *Failure) {
	works, fail := c.search(ctx, "isbn:"+isbn, 1)
	if fail != nil {
		return nil, fail
	}
	if len(works) == 0 {
		return nil, NewFailure(string(c.Name()), FailNotFound, "no volume for ISBN %s", isbn)
	}
	return &works[0], nil
}

func (c *GoogleBooksClient) search(ctx context.Context, term string, limit int) ([]models.Work, *Failure) {
	if limit <= 0 || limit > 40 {
		limit = 20
	}
	searchURL := fmt.Sprintf("%s/volumes?q=%s&maxResults=%d", c.baseURL, url.QueryEscape(term), limit)
	if c.apiKey != "" {
		searchURL += "&key=" + url.QueryEscape(c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, NewFailure(string(c.Name()), FailBadRequest, "build request: %v", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ClassifyErr(string(c.Name()), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTP(string(c.Name()), resp)
	}

	var gbResp googleBooksResponse
	if err := json.NewDecoder(resp.Body).Decode(&gbResp); err != nil {
		return nil, NewFailure(string(c.Name()), FailMalformed, "decode response: %v", err)
	}

	works := make([]models.Work, 0, len(gbResp.Items))
	for _, item := range gbResp.Items {
		works = append(works, c.normalizeVolume(item))
	}
	return works, nil
}

// normalizeVolume maps a Google Books volume onto the canonical DTOs.
func (c *GoogleBooksClient) normalizeVolume(vol googleBooksVol) models.Work {
	vi := vol.VolumeInfo

	var isbn10, isbn13 string
	for _, id := range vi.IndustryIdentifiers {
		switch id.Type {
		case "ISBN_13":
			isbn13 = id.Identifier
		case "ISBN_10":
			isbn10 = id.Identifier
		}
	}
	primary, isbns := normalize.CleanISBNs(isbn13, isbn10)

	edition := models.Edition{
		ISBN:            primary,
		ISBNs:           isbns,
		Title:           normalize.TitleOrUnknown(vi.Title),
		Publisher:       vi.Publisher,
		PublicationDate: vi.PublishedDate,
		PageCount:       vi.PageCount,
		Format:          normalize.BindingFormat(vi.PrintType),
		Language:        vi.Language,
	}
	if vi.Subtitle != "" && !strings.EqualFold(vi.Subtitle, vi.Title) {
		edition.EditionTitle = vi.Subtitle
	}
	if vi.ImageLinks != nil {
		if vi.ImageLinks.Thumbnail != "" {
			edition.CoverImageURL = vi.ImageLinks.Thumbnail
		} else if vi.ImageLinks.SmallThumbnail != "" {
			edition.CoverImageURL = vi.ImageLinks.SmallThumbnail
		}
	}

	work := models.Work{
		Title:                normalize.TitleOrUnknown(vi.Title),
		OriginalLanguage:     vi.Language,
		FirstPublicationYear: normalize.Year(vi.PublishedDate),
		Description:          vi.Description,
		SubjectTags:          vi.Categories,
		Contributors:         []string{string(c.Name())},
		PrimaryProvider:      c.Name(),
		ProviderIDs:          map[models.Provider]string{c.Name(): vol.ID},
		ReviewStatus:         models.ReviewUnverified,
		Editions:             []models.Edition{edition},
		Authors:              normalize.Authors(vi.Authors),
	}
	work.QualityScore = normalize.Score(&work)
	return work
}
