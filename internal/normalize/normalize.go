// file: internal/normalize/normalize.go
// version: 1.2.0
// guid: 2c4d6e8f-0a1b-4c3d-9e5f-7a9b1c3d5e7f

package normalize

import (
	"strconv"
	"strings"

	"github.com/Shapuzzz/bookstrack-backend/internal/models"
)

// Pure mapping helpers shared by every provider client. Equal inputs always
// produce equal outputs; nothing here touches the network or clock.

// TitleOrUnknown applies the canonical title default.
func TitleOrUnknown(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.UnknownTitle
	}
	return title
}

// Year extracts a publication year from YYYY, YYYY-MM, or YYYY-MM-DD.
// Anything else yields nil.
func Year(date string) *int {
	date = strings.TrimSpace(date)
	switch len(date) {
	case 4:
	case 7, 10:
		if date[4] != '-' {
			return nil
		}
	default:
		return nil
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil || y <= 0 {
		return nil
	}
	return &y
}

var formatSubstrings = []struct {
	needle string
	format models.Format
}{
	{"hardcover", models.FormatHardcover},
	{"hardback", models.FormatHardcover},
	{"library binding", models.FormatHardcover},
	{"paperback", models.FormatPaperback},
	{"mass market", models.FormatPaperback},
	{"trade paper", models.FormatPaperback},
	{"ebook", models.FormatEbook},
	{"kindle", models.FormatEbook},
	{"digital", models.FormatEbook},
	{"audiobook", models.FormatAudiobook},
	{"audio cd", models.FormatAudiobook},
}

// BindingFormat maps a provider binding string to the canonical format.
// Unknown bindings default to Paperback.
func BindingFormat(binding string) models.Format {
	lower := strings.ToLower(binding)
	for _, m := range formatSubstrings {
		if strings.Contains(lower, m.needle) {
			return m.format
		}
	}
	return models.FormatPaperback
}

// CleanISBNs deduplicates and drops falsy entries, preferring a 13-digit
// primary over a 10-digit one. The returned primary is always a member of
// the returned set when the set is non-empty.
func CleanISBNs(candidates ...string) (primary string, isbns []string) {
	seen := make(map[string]bool, len(candidates))
	for _, raw := range candidates {
		isbn := strings.ReplaceAll(strings.TrimSpace(raw), "-", "")
		if isbn == "" || seen[isbn] {
			continue
		}
		seen[isbn] = true
		isbns = append(isbns, isbn)
	}
	for _, isbn := range isbns {
		if len(isbn) == 13 {
			primary = isbn
			break
		}
	}
	if primary == "" && len(isbns) > 0 {
		primary = isbns[0]
	}
	return primary, isbns
}

// AuthorKey is the dedupe key for authors: case-folded name.
func AuthorKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Authors builds Author DTOs from names, dropping blanks and duplicates and
// defaulting gender to Unknown.
func Authors(names []string) []models.Author {
	seen := make(map[string]bool, len(names))
	out := make([]models.Author, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		key := AuthorKey(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.Author{Name: name, Gender: models.GenderUnknown})
	}
	return out
}

// Score computes the completeness heuristic for a work: base 50, +20 for a
// cover URL, +10 for a synopsis of 50+ chars, +5 each for page count,
// publisher, subjects, and authors. Clamped to [0,100].
func Score(w *models.Work) int {
	score := 50
	ed := w.PrimaryEdition()
	if ed != nil && ed.CoverImageURL != "" {
		score += 20
	}
	if len(w.Description) >= 50 {
		score += 10
	}
	if ed != nil && ed.PageCount > 0 {
		score += 5
	}
	if ed != nil && ed.Publisher != "" {
		score += 5
	}
	if len(w.SubjectTags) > 0 {
		score += 5
	}
	if len(w.Authors) > 0 {
		score += 5
	}
	return Clamp(score)
}

// Clamp bounds a quality score to [0,100].
func Clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
