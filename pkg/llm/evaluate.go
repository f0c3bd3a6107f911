package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/deep-research/pkg/research"
)

// Judge asks the evaluation model whether the gathered evidence answers
// the topic. Its output is free-form reasoning; the extractor turns that
// into queries.
type Judge struct {
	model llms.Model
}

func NewJudge(model llms.Model) *Judge {
	return &Judge{model: model}
}

func (j *Judge) Judge(ctx context.Context, topic string, queries []string, evidence []research.SearchRecord) (string, error) {
	var results strings.Builder
	for _, rec := range evidence {
		excerpt := rec.SummaryOrPlaceholder()
		if rec.Summary == nil && rec.RawContent != "" {
			excerpt = rec.RawContent
		}
		fmt.Fprintf(&results, "- %s\n%s\n\n", rec.Title, excerpt)
	}

	var used strings.Builder
	for _, q := range queries {
		fmt.Fprintf(&used, "- %s\n", q)
	}

	human := fmt.Sprintf("%s\n\nResearch Topic: %s\n\nSearch Queries Used:\n%s\nCurrent Search Results:\n%s",
		dateContext(), topic, used.String(), results.String())

	reasoning, err := generateText(ctx, j.model, evaluationSystemPrompt, human)
	if err != nil {
		return "", fmt.Errorf("evaluation failed: %w", err)
	}
	return reasoning, nil
}

// QueryExtractor parses the judge's reasoning into a query list with a
// JSON-mode call. The parse is retried on malformed output; a final
// failure is the caller's fail-closed signal.
type QueryExtractor struct {
	model  llms.Model
	logger *slog.Logger
}

func NewQueryExtractor(model llms.Model, logger *slog.Logger) *QueryExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryExtractor{model: model, logger: logger}
}

func (x *QueryExtractor) ExtractQueries(ctx context.Context, reasoning string) ([]string, error) {
	type queryResponse struct {
		Queries []string `json:"queries"`
	}
	var parsed queryResponse

	_, err := generateWithRetry(ctx, x.model, x.logger, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, evaluationParsingSystemPrompt+"\n\n# Response Format:\n\n"+queriesSchema),
		llms.TextParts(llms.ChatMessageTypeHuman, reasoning),
	}, func(content string) error {
		parsed = queryResponse{}
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			return fmt.Errorf("json parse error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query extraction failed: %w", err)
	}

	var queries []string
	for _, q := range parsed.Queries {
		if strings.TrimSpace(q) != "" {
			queries = append(queries, q)
		}
	}
	return queries, nil
}
