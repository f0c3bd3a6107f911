package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// SummaryVariant names which summarization model serves a page.
type SummaryVariant string

const (
	VariantStandard SummaryVariant = "standard"
	VariantLongPage SummaryVariant = "long_page"
)

// longPageThreshold is the content length above which a page goes to the
// long-context summarization model.
const longPageThreshold = 100_000

// VariantForLength is the summarizer selection policy: a pure function
// of content length, nothing else.
func VariantForLength(contentLength int) SummaryVariant {
	if contentLength > longPageThreshold {
		return VariantLongPage
	}
	return VariantStandard
}

// Summarizer condenses fetched page content relative to the query that
// found it, routing long pages to a long-context model.
type Summarizer struct {
	standard llms.Model
	longPage llms.Model
}

// NewSummarizer builds a summarizer. longPage may equal standard when no
// separate long-context model is configured.
func NewSummarizer(standard, longPage llms.Model) *Summarizer {
	if longPage == nil {
		longPage = standard
	}
	return &Summarizer{standard: standard, longPage: longPage}
}

func (s *Summarizer) model(variant SummaryVariant) llms.Model {
	if variant == VariantLongPage {
		return s.longPage
	}
	return s.standard
}

func (s *Summarizer) Summarize(ctx context.Context, query, rawContent string) (string, error) {
	human := fmt.Sprintf("Research Query: %s\n\nRaw Content:\n%s", query, rawContent)
	summary, err := generateText(ctx, s.model(VariantForLength(len(rawContent))), summarizerSystemPrompt, human)
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	return summary, nil
}
