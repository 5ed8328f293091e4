// file: internal/server/import_service.go
// version: 2.0.1
// guid: 4a5b6c7d-8e9f-4a0b-1c2d-3e4f5a6b7c8d

package server

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Shapuzzz/bookstrack-backend/internal/cache"
	"github.com/Shapuzzz/bookstrack-backend/internal/fingerprint"
	"github.com/Shapuzzz/bookstrack-backend/internal/jobs"
	"github.com/Shapuzzz/bookstrack-backend/internal/providers"
	"github.com/Shapuzzz/bookstrack-backend/internal/server/middleware"
)

// importCSV handles POST /v1/books/import/csv. Rows become items of a
// batch enrichment job; the response is the job launch result.
func (s *Server) importCSV(c *gin.Context) {
	reader, err := csvBody(c)
	if err != nil {
		s.RespondWithValidationError(c, err.Error())
		return
	}

	items, err := parseImportCSV(reader)
	if err != nil {
		s.RespondWithValidationError(c, err.Error())
		return
	}

	result, err := s.registry.Launch(middleware.Principal(c), items)
	if err != nil {
		s.RespondWithValidationError(c, err.Error())
		return
	}
	s.RespondWithData(c, http.StatusCreated, result, newMeta(c, "import"))
}

// csvBody accepts either a multipart upload in the "file" field or a raw
// CSV request body.
func csvBody(c *gin.Context) (io.Reader, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, _, err := c.Request.FormFile("file")
		if err != nil {
			return nil, errors.New("multipart field 'file' is required")
		}
		return file, nil
	}
	return c.Request.Body, nil
}

// parseImportCSV reads a CSV with a header naming some of title, author,
// isbn (any order, any case).
func parseImportCSV(r io.Reader) ([]jobs.ItemInput, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.New("empty or malformed CSV")
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["isbn"]; !ok {
		if _, ok := cols["title"]; !ok {
			return nil, errors.New("CSV header must include an isbn or title column")
		}
	}

	field := func(record []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var items []jobs.ItemInput
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.New("malformed CSV: " + err.Error())
		}
		item := jobs.ItemInput{
			ISBN:   field(record, "isbn"),
			Title:  field(record, "title"),
			Author: field(record, "author"),
		}
		if item.Empty() {
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, errors.New("CSV contains no importable rows")
	}
	return items, nil
}

var imageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// scanBookshelf handles POST /v1/bookshelf/scan: a shelf photo goes to the
// vision provider and comes back as candidate books. Results are cached by
// image digest.
func (s *Server) scanBookshelf(c *gin.Context) {
	if s.vision == nil || !s.vision.IsEnabled() {
		s.RespondWithError(c, http.StatusInternalServerError, "ProviderUnauthorized", "AI provider is not configured")
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		s.RespondWithValidationError(c, "multipart field 'image' is required")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		s.RespondWithValidationError(c, "failed to read image: "+err.Error())
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}
	if !imageMimeTypes[mimeType] {
		s.RespondWithError(c, http.StatusUnsupportedMediaType, "UnsupportedMediaType", "image must be JPEG, PNG, or WebP")
		return
	}

	digest := sha256.Sum256(image)
	params := map[string]string{"sha256": hex.EncodeToString(digest[:])}

	res, err := s.cache.Get(c.Request.Context(), fingerprint.KindAI, "shelf", params, func(ctx context.Context) (*cache.Payload, error) {
		candidates, fail := s.vision.ScanShelf(ctx, image, mimeType)
		if fail != nil {
			return nil, fail
		}
		value, err := json.Marshal(candidates)
		if err != nil {
			return nil, err
		}
		return &cache.Payload{Value: value, Source: "ai", Quality: 100}, nil
	})
	if err != nil {
		var failure *providers.Failure
		if errors.As(err, &failure) {
			s.RespondWithFailure(c, failure)
			return
		}
		s.RespondWithError(c, http.StatusInternalServerError, "ProviderTransient", err.Error())
		return
	}

	var candidates []providers.CandidateBook
	if err := json.Unmarshal(res.Value, &candidates); err != nil {
		s.RespondWithError(c, http.StatusInternalServerError, "ProviderMalformed", "cached payload is not a candidate list")
		return
	}
	if candidates == nil {
		candidates = []providers.CandidateBook{}
	}
	s.RespondWithCacheResult(c, gin.H{"books": candidates}, "ai", providers.ImageQuality(""), res)
}
