// file: internal/models/book.go
// version: 1.1.0
// guid: 3f8a1b2c-9d4e-4f6a-8b0c-2d5e7f9a1b3c

package models

// UnknownTitle is the sentinel used when no provider supplies a title.
const UnknownTitle = "Unknown"

// Provider identifies an upstream metadata source.
type Provider string

const (
	ProviderGoogleBooks  Provider = "googlebooks"
	ProviderOpenLibrary  Provider = "openlibrary"
	ProviderCovers       Provider = "covers"
	ProviderAI           Provider = "ai"
	ProviderOrchestrated Provider = "orchestrated"
)

// ReviewStatus tracks whether a record has been human-verified.
type ReviewStatus string

const (
	ReviewUnverified ReviewStatus = "unverified"
	ReviewVerified   ReviewStatus = "verified"
)

// Format is the physical/digital binding of an edition.
type Format string

const (
	FormatHardcover Format = "Hardcover"
	FormatPaperback Format = "Paperback"
	FormatEbook     Format = "E-book"
	FormatAudiobook Format = "Audiobook"
)

// Gender for author records; providers rarely supply this.
type Gender string

const (
	GenderUnknown Gender = "Unknown"
	GenderFemale  Gender = "Female"
	GenderMale    Gender = "Male"
	GenderOther   Gender = "Other"
)

// Work is the canonical book record assembled from one or more providers.
type Work struct {
	Title                string              `json:"title"`
	OriginalLanguage     string              `json:"original_language,omitempty"`
	FirstPublicationYear *int                `json:"first_publication_year,omitempty"`
	Description          string              `json:"description,omitempty"`
	SubjectTags          []string            `json:"subject_tags,omitempty"`
	Contributors         []string            `json:"contributors,omitempty"`
	PrimaryProvider      Provider            `json:"primary_provider"`
	ProviderIDs          map[Provider]string `json:"provider_ids,omitempty"`
	QualityScore         int                 `json:"quality_score"`
	ReviewStatus         ReviewStatus        `json:"review_status"`
	Editions             []Edition           `json:"editions,omitempty"`
	Authors              []Author            `json:"authors,omitempty"`
}

// Edition holds the provider-specific publication details for a Work.
type Edition struct {
	ISBN               string   `json:"isbn,omitempty"`
	ISBNs              []string `json:"isbns,omitempty"`
	Title              string   `json:"title"`
	EditionTitle       string   `json:"edition_title,omitempty"`
	Publisher          string   `json:"publisher,omitempty"`
	PublicationDate    string   `json:"publication_date,omitempty"`
	PageCount          int      `json:"page_count,omitempty"`
	Format             Format   `json:"format,omitempty"`
	Language           string   `json:"language,omitempty"`
	CoverImageURL      string   `json:"cover_image_url,omitempty"`
	EditionDescription string   `json:"edition_description,omitempty"`
}

// Author is a contributor to a Work.
type Author struct {
	Name   string `json:"name"`
	Gender Gender `json:"gender"`
}

// PrimaryAuthor returns the first author name, or empty string.
func (w *Work) PrimaryAuthor() string {
	if len(w.Authors) == 0 {
		return ""
	}
	return w.Authors[0].Name
}

// PrimaryEdition returns a pointer to the first edition, or nil.
func (w *Work) PrimaryEdition() *Edition {
	if len(w.Editions) == 0 {
		return nil
	}
	return &w.Editions[0]
}
