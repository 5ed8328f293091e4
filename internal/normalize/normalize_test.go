// file: internal/normalize/normalize_test.go
// version: 1.0.0
// guid: 3d5e7f9a-1b2c-4d3e-af5b-8c0d2e4f6a8b

package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shapuzzz/bookstrack-backend/internal/models"
)

func TestTitleOrUnknown(t *testing.T) {
	assert.Equal(t, "Dune", TitleOrUnknown(" Dune "))
	assert.Equal(t, models.UnknownTitle, TitleOrUnknown(""))
	assert.Equal(t, models.UnknownTitle, TitleOrUnknown("   "))
}

func TestYear(t *testing.T) {
	cases := []struct {
		date string
		want *int
	}{
		{"1997", intPtr(1997)},
		{"1997-06", intPtr(1997)},
		{"1997-06-26", intPtr(1997)},
		{"June 1997", nil},
		{"97", nil},
		{"", nil},
		{"199706", nil},
		{"0000", nil},
	}
	for _, tc := range cases {
		got := Year(tc.date)
		if tc.want == nil {
			assert.Nil(t, got, "date %q", tc.date)
		} else {
			require.NotNil(t, got, "date %q", tc.date)
			assert.Equal(t, *tc.want, *got)
		}
	}
}

func intPtr(i int) *int { return &i }

func TestBindingFormat(t *testing.T) {
	cases := map[string]models.Format{
		"Hardcover":            models.FormatHardcover,
		"hardback":             models.FormatHardcover,
		"Library Binding":      models.FormatHardcover,
		"Mass Market Paperback": models.FormatPaperback,
		"Trade Paperback":      models.FormatPaperback,
		"Kindle Edition":       models.FormatEbook,
		"digital download":     models.FormatEbook,
		"Audio CD":             models.FormatAudiobook,
		"Audiobook":            models.FormatAudiobook,
		"unknown binding":      models.FormatPaperback,
		"":                     models.FormatPaperback,
	}
	for binding, want := range cases {
		assert.Equal(t, want, BindingFormat(binding), "binding %q", binding)
	}
}

func TestCleanISBNsPrefers13Digit(t *testing.T) {
	primary, isbns := CleanISBNs("0-439-70818-2", "978-0-439-70818-0")
	assert.Equal(t, "9780439708180", primary)
	assert.ElementsMatch(t, []string{"0439708182", "9780439708180"}, isbns)
	assert.Contains(t, isbns, primary, "primary is always a member of the set")
}

func TestCleanISBNsDropsFalsyAndDuplicates(t *testing.T) {
	primary, isbns := CleanISBNs("", "0439708182", " 0439708182 ", "")
	assert.Equal(t, "0439708182", primary)
	assert.Equal(t, []string{"0439708182"}, isbns)
}

func TestCleanISBNsEmpty(t *testing.T) {
	primary, isbns := CleanISBNs("", "  ")
	assert.Empty(t, primary)
	assert.Empty(t, isbns)
}

func TestAuthors(t *testing.T) {
	authors := Authors([]string{"J.K. Rowling", "j.k. rowling", "", "Mary GrandPré"})
	require.Len(t, authors, 2)
	assert.Equal(t, "J.K. Rowling", authors[0].Name)
	assert.Equal(t, models.GenderUnknown, authors[0].Gender)
	assert.Equal(t, "Mary GrandPré", authors[1].Name)
}

func TestScore(t *testing.T) {
	bare := &models.Work{Title: "Bare"}
	assert.Equal(t, 50, Score(bare))

	full := &models.Work{
		Title:       "Full",
		Description: strings.Repeat("a", 60),
		SubjectTags: []string{"Fiction"},
		Authors:     []models.Author{{Name: "Someone"}},
		Editions: []models.Edition{{
			ISBN:          "9780439708180",
			CoverImageURL: "https://covers.example/x.jpg",
			PageCount:     309,
			Publisher:     "Scholastic",
		}},
	}
	assert.Equal(t, 100, Score(full))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-5))
	assert.Equal(t, 100, Clamp(120))
	assert.Equal(t, 42, Clamp(42))
}
