// file: internal/providers/vision.go
// version: 1.1.0
// guid: 9a0b1c2d-3e4f-4a6b-9c8d-9e0f1a2b3c4d

package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

// CandidateBook is one book the vision model believes it saw.
type CandidateBook struct {
	Title      string `json:"title"`
	Author     string `json:"author,omitempty"`
	ISBN       string `json:"isbn,omitempty"`
	Confidence string `json:"confidence"` // high, medium, low
}

// VisionParser extracts candidate books from bookshelf photos using an
// OpenAI vision model. Prompt construction stays inside this package; the
// rest of the service only ever sees CandidateBook values.
type VisionParser struct {
	client  *openai.Client
	model   string
	enabled bool
}

// NewVisionParser creates a vision parser. A missing API key disables it.
func NewVisionParser(apiKey string) *VisionParser {
	apiKey = ResolveSecret(apiKey)
	if apiKey == "" {
		return &VisionParser{enabled: false}
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &VisionParser{
		client:  &client,
		model:   "gpt-4o-mini", // vision-capable and cost-effective
		enabled: true,
	}
}

// IsEnabled returns whether the parser is usable.
func (p *VisionParser) IsEnabled() bool {
	return p.enabled
}

const shelfSystemPrompt = `You are an expert at reading book spines and covers in photos of bookshelves.
Identify every distinct book you can see.

Return ONLY a valid JSON object of the form:
{
  "books": [
    {"title": "book title", "author": "author name", "isbn": "isbn if printed", "confidence": "high|medium|low"}
  ]
}

Omit fields you cannot read. Set confidence per book based on legibility.`

// ScanShelf sends one photo to the vision model and returns candidate books.
func (p *VisionParser) ScanShelf(ctx context.Context, image []byte, mimeType string) ([]CandidateBook, *Failure) {
	if !p.enabled {
		return nil, NewFailure("ai", FailUnauthenticated, "vision parser is not enabled")
	}
	if len(image) == 0 {
		return nil, NewFailure("ai", FailBadRequest, "empty image payload")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))
	jsonObjectFormat := shared.NewResponseFormatJSONObjectParam()

	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(shelfSystemPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart("Identify the books in this shelf photo."),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
		Model:       shared.ChatModel(p.model),
		Temperature: param.NewOpt(0.1),
		MaxTokens:   param.NewOpt[int64](2000),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &jsonObjectFormat,
		},
	})
	if err != nil {
		return nil, classifyOpenAIErr(err)
	}
	if len(completion.Choices) == 0 {
		return nil, NewFailure("ai", FailMalformed, "no choices in response")
	}

	var parsed struct {
		Books []CandidateBook `json:"books"`
	}
	content := completion.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, NewFailure("ai", FailMalformed, "parse model output: %v", err)
	}
	return parsed.Books, nil
}

func classifyOpenAIErr(err error) *Failure {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429"):
		return NewFailure("ai", FailRateLimited, "%s", msg)
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"):
		return NewFailure("ai", FailUnauthenticated, "%s", msg)
	case strings.Contains(msg, "deadline"), strings.Contains(msg, "timeout"):
		return NewFailure("ai", FailTimeout, "%s", msg)
	default:
		return NewFailure("ai", FailTransient, "%s", msg)
	}
}
