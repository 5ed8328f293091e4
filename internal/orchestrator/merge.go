// file: internal/orchestrator/merge.go
// version: 1.1.0
// guid: 9b0c1d2e-3f4a-4b6c-8d7e-9f0a1b2c3d4e

package orchestrator

import (
	"sort"
	"strings"

	"github.com/Shapuzzz/bookstrack-backend/internal/models"
	"github.com/Shapuzzz/bookstrack-backend/internal/normalize"
)

// Merge deduplicates and merges works from multiple providers. The dedupe
// key is the primary ISBN when present, otherwise case-folded
// title+primary-author. Within a group the highest-quality provider wins
// per field and the rest supplement what it is missing.
func Merge(works []models.Work) []models.Work {
	if len(works) <= 1 {
		return works
	}

	groups := make(map[string][]models.Work)
	var order []string
	for _, w := range works {
		key := dedupeKey(&w)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], w)
	}

	merged := make([]models.Work, 0, len(order))
	for _, key := range order {
		merged = append(merged, mergeGroup(groups[key]))
	}

	// Rank by completeness; stable so provider ordering breaks ties.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].QualityScore > merged[j].QualityScore
	})
	return merged
}

func dedupeKey(w *models.Work) string {
	if ed := w.PrimaryEdition(); ed != nil && ed.ISBN != "" {
		return "isbn:" + ed.ISBN
	}
	return "ta:" + strings.ToLower(w.Title) + "|" + normalize.AuthorKey(w.PrimaryAuthor())
}

func mergeGroup(group []models.Work) models.Work {
	sort.SliceStable(group, func(i, j int) bool {
		return group[i].QualityScore > group[j].QualityScore
	})

	best := group[0]
	for _, other := range group[1:] {
		supplementWork(&best, &other)
	}
	best.QualityScore = normalize.Score(&best)
	return best
}

// supplementWork copies fields the best record is missing from a lower
// ranked one, and unions the set-valued fields.
func supplementWork(dst *models.Work, src *models.Work) {
	if dst.Title == models.UnknownTitle && src.Title != models.UnknownTitle {
		dst.Title = src.Title
	}
	if dst.Description == "" {
		dst.Description = src.Description
	}
	if dst.OriginalLanguage == "" {
		dst.OriginalLanguage = src.OriginalLanguage
	}
	if dst.FirstPublicationYear == nil {
		dst.FirstPublicationYear = src.FirstPublicationYear
	}
	if len(dst.SubjectTags) == 0 {
		dst.SubjectTags = src.SubjectTags
	}

	for _, c := range src.Contributors {
		dst.Contributors = appendUnique(dst.Contributors, c)
	}
	if dst.ProviderIDs == nil {
		dst.ProviderIDs = make(map[models.Provider]string)
	}
	for prov, id := range src.ProviderIDs {
		if _, ok := dst.ProviderIDs[prov]; !ok {
			dst.ProviderIDs[prov] = id
		}
	}

	dst.Authors = mergeAuthors(dst.Authors, src.Authors)

	dstEd, srcEd := dst.PrimaryEdition(), src.PrimaryEdition()
	if srcEd == nil {
		return
	}
	if dstEd == nil {
		dst.Editions = append(dst.Editions, *srcEd)
		return
	}
	supplementEdition(dstEd, srcEd)
}

func supplementEdition(dst *models.Edition, src *models.Edition) {
	primary, isbns := normalize.CleanISBNs(append(append([]string{dst.ISBN}, dst.ISBNs...), append([]string{src.ISBN}, src.ISBNs...)...)...)
	dst.ISBN, dst.ISBNs = primary, isbns

	if dst.Publisher == "" {
		dst.Publisher = src.Publisher
	}
	if dst.PublicationDate == "" {
		dst.PublicationDate = src.PublicationDate
	}
	if dst.PageCount == 0 {
		dst.PageCount = src.PageCount
	}
	if dst.Language == "" {
		dst.Language = src.Language
	}
	if dst.CoverImageURL == "" {
		dst.CoverImageURL = src.CoverImageURL
	}
	if dst.EditionDescription == "" {
		dst.EditionDescription = src.EditionDescription
	}
	if dst.EditionTitle == "" {
		dst.EditionTitle = src.EditionTitle
	}
}

func mergeAuthors(dst, src []models.Author) []models.Author {
	seen := make(map[string]bool, len(dst))
	for _, a := range dst {
		seen[normalize.AuthorKey(a.Name)] = true
	}
	for _, a := range src {
		key := normalize.AuthorKey(a.Name)
		if a.Name == "" || seen[key] {
			continue
		}
		seen[key] = true
		dst = append(dst, a)
	}
	return dst
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
