// file: internal/providers/client.go
// version: 1.0.0
// guid: 7e1f3a5b-8c0d-4e2f-a4b6-c8d0e2f4a6b8

package providers

import (
	"context"

	"github.com/Shapuzzz/bookstrack-backend/internal/models"
)

// SearchKind selects which query fields a search uses.
type SearchKind string

const (
	SearchISBN        SearchKind = "isbn"
	SearchTitle       SearchKind = "title"
	SearchAuthor      SearchKind = "author"
	SearchTitleAuthor SearchKind = "titleauthor"
)

// Query carries the parsed search parameters.
type Query struct {
	Kind   SearchKind
	ISBN   string
	Title  string
	Author string
}

// Client is a pluggable metadata provider. Implementations classify every
// error into a Failure value and never surface provider-specific payload
// shapes past this boundary.
type Client interface {
	Name() models.Provider
	Search(ctx context.Context, q Query, limit int) ([]models.Work, *Failure)
	LookupISBN(ctx context.Context, isbn string) (*models.Work, *Failure)
}

// CoverClient resolves cover art URLs by ISBN.
type CoverClient interface {
	Name() models.Provider
	CoverByISBN(ctx context.Context, isbn string) (string, *Failure)
}
