// file: internal/providers/openlibrary.go
// version: 1.2.0
// guid: 1a2b3c4d-5e6f-4a8b-9c0d-1e2f3a4b5c6d

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

// OpenLibraryClient handles metadata fetching from the Open Library API.
type OpenLibraryClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewOpenLibraryClient creates a new Open Library API client.
func NewOpenLibraryClient(timeout time.Duration) *OpenLibraryClient {
	baseURL := os.Getenv("OPENLIBRARY_BASE_URL")
	if baseURL == "" {
		baseURL = "https://openlibrary.org"
	}
	return NewOpenLibraryClientWithBaseURL(baseURL, timeout)
}

// NewOpenLibraryClientWithBaseURL creates a client with a custom base URL.
func NewOpenLibraryClientWithBaseURL(baseURL string, timeout time.Duration) *OpenLibraryClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OpenLibraryClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider identifier.
func (c *OpenLibraryClient) Name() models.Provider {
	return models.ProviderOpenLibrary
}

type openLibrarySearchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
	ISBN             []string `json:"isbn"`
	Publisher        []string `json:"publisher"`
	Language         []string `json:"language"`
	Subject          []string `json:"subject"`
	CoverI           int      `json:"cover_i"`
	NumberOfPages    int      `json:"number_of_pages_median"`
}

type openLibrarySearchResponse struct {
	NumFound int                    `json:"numFound"`
	Start    int                    `json:"start"`
	Docs     []openLibrarySearchDoc `json:"docs"`
}

// Search queries /search.json with the appropriate field filter.
func (c *OpenLibraryClient) Search(ctx context.Context, q Query, limit int) ([]models.Work, *Failure) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", limit))
	switch q.Kind {
	case SearchISBN:
		params.Set("q", "isbn:"+q.ISBN)
	case SearchTitle:
		params.Set("title", q.Title)
	case SearchAuthor:
		params.Set("author", q.Author)
	case SearchTitleAuthor:
		params.Set("title", q.Title)
		params.Set("author", q.Author)
	default:
		return nil, NewFailure(string(c.Name()), FailBadRequest, "unsupported search kind %q", q.Kind)
	}

	searchURL := fmt.Sprintf("%s/search.json?%s", c.baseURL, params.Encode())
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

	var searchResp openLibrarySearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, NewFailure(string(c.Name()), FailMalformed, "decode search response: %v", err)
	}

	works := make([]models.Work, 0, len(searchResp.Docs))
	for i := range searchResp.Docs {
		works = append(works, c.normalizeDoc(&searchResp.Docs[i]))
	}
	return works, nil
}

// LookupISBN fetches edition details from /isbn/{isbn}.json.
func (c *OpenLibraryClient) LookupISBN(ctx context.Context, isbn string) (*models.Work, *Failure) {
	apiURL := fmt.Sprintf("%s/isbn/%s.json", c.baseURL, url.PathEscape(isbn))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
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

	var edition struct {
		Key           string   `json:"key"`
		Title         string   `json:"title"`
		Publishers    []string `json:"publishers"`
		PublishDate   string   `json:"publish_date"`
		NumberOfPages int      `json:"number_of_pages"`
		PhysicalForm  string   `json:"physical_format"`
		ISBN10        []string `json:"isbn_10"`
		ISBN13        []string `json:"isbn_13"`
		Covers        []int    `json:"covers"`
		Languages     []struct {
			Key string `json:"key"`
		} `json:"languages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&edition); err != nil {
		return nil, NewFailure(string(c.Name()), FailMalformed, "decode edition: %v", err)
	}

	primary, isbns := normalize.CleanISBNs(append(append([]string{isbn}, edition.ISBN13...), edition.ISBN10...)...)
	ed := models.Edition{
		ISBN:            primary,
		ISBNs:           isbns,
		Title:           normalize.TitleOrUnknown(edition.Title),
		PublicationDate: edition.PublishDate,
		PageCount:       edition.NumberOfPages,
		Format:          normalize.BindingFormat(edition.PhysicalForm),
	}
	if len(edition.Publishers) > 0 {
		ed.Publisher = edition.Publishers[0]
	}
	if len(edition.Covers) > 0 {
		ed.CoverImageURL = fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-L.jpg", edition.Covers[0])
	}
	if len(edition.Languages) > 0 {
		ed.Language = strings.TrimPrefix(edition.Languages[0].Key, "/languages/")
	}

	work := models.Work{
		Title:                normalize.TitleOrUnknown(edition.Title),
		OriginalLanguage:     ed.Language,
		FirstPublicationYear: normalize.Year(edition.PublishDate),
		Contributors:         []string{string(c.Name())},
		PrimaryProvider:      c.Name(),
		ProviderIDs:          map[models.Provider]string{c.Name(): edition.Key},
		ReviewStatus:         models.ReviewUnverified,
		Editions:             []models.Edition{ed},
	}
	work.QualityScore = normalize.Score(&work)
	return &work, nil
}

// normalizeDoc maps a search doc onto the canonical DTOs.
func (c *OpenLibraryClient) normalizeDoc(doc *openLibrarySearchDoc) models.Work {
	primary, isbns := normalize.CleanISBNs(doc.ISBN...)

	edition := models.Edition{
		ISBN:      primary,
		ISBNs:     isbns,
		Title:     normalize.TitleOrUnknown(doc.Title),
		PageCount: doc.NumberOfPages,
		Format:    models.FormatPaperback,
	}
	if len(doc.Publisher) > 0 {
		edition.Publisher = doc.Publisher[0]
	}
	if len(doc.Language) > 0 {
		edition.Language = doc.Language[0]
	}
	if doc.CoverI > 0 {
		edition.CoverImageURL = fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-L.jpg", doc.CoverI)
	}
	if doc.FirstPublishYear > 0 {
		edition.PublicationDate = fmt.Sprintf("%d", doc.FirstPublishYear)
	}

	work := models.Work{
		Title:           normalize.TitleOrUnknown(doc.Title),
		SubjectTags:     doc.Subject,
		Contributors:    []string{string(c.Name())},
		PrimaryProvider: c.Name(),
		ProviderIDs:     map[models.Provider]string{c.Name(): doc.Key},
		ReviewStatus:    models.ReviewUnverified,
		Editions:        []models.Edition{edition},
		Authors:         normalize.Authors(doc.AuthorName),
	}
	if doc.FirstPublishYear > 0 {
		year := doc.FirstPublishYear
		work.FirstPublicationYear = &year
	}
	work.QualityScore = normalize.Score(&work)
	return work
}
