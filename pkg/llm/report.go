package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/deep-research/pkg/research"
)

// Reporter synthesizes the final Markdown report from the accumulated
// evidence.
type Reporter struct {
	model llms.Model
}

func NewReporter(model llms.Model) *Reporter {
	return &Reporter{model: model}
}

func (r *Reporter) GenerateReport(ctx context.Context, topic string, evidence []research.SearchRecord) (string, error) {
	var sources strings.Builder
	for _, rec := range evidence {
		fmt.Fprintf(&sources, "Source: %s (%s)\nSummary: %s\n\n", rec.Title, rec.URL, rec.SummaryOrPlaceholder())
	}

	human := fmt.Sprintf("Research Topic: %s\n\nSources:\n%s", topic, sources.String())
	report, err := generateText(ctx, r.model, reportSystemPrompt, human)
	if err != nil {
		return "", fmt.Errorf("report generation failed: %w", err)
	}
	return report, nil
}

// ImagePrompt produces the prompt handed to the image generation model
// for the report cover.
func (r *Reporter) ImagePrompt(ctx context.Context, topic string) (string, error) {
	prompt, err := generateText(ctx, r.model, imagePromptSystemPrompt, "Research Topic: "+topic)
	if err != nil {
		return "", fmt.Errorf("image prompt generation failed: %w", err)
	}
	return strings.TrimSpace(prompt), nil
}
