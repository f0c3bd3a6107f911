package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// Planner produces the seed query batch for a topic: one reasoning call
// for the plan, one JSON-mode call to extract the queries from it.
type Planner struct {
	planModel  llms.Model
	parseModel llms.Model
	maxQueries int
	logger     *slog.Logger
}

func NewPlanner(planModel, parseModel llms.Model, maxQueries int, logger *slog.Logger) *Planner {
	if parseModel == nil {
		parseModel = planModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{planModel: planModel, parseModel: parseModel, maxQueries: maxQueries, logger: logger}
}

// Plan returns the plan reasoning and the extracted seed queries, capped
// at the configured maximum.
func (p *Planner) Plan(ctx context.Context, topic string) (string, []string, error) {
	human := fmt.Sprintf("%s\n\nResearch Topic: %s", dateContext(), topic)
	plan, err := generateText(ctx, p.planModel, planningSystemPrompt, human)
	if err != nil {
		return "", nil, fmt.Errorf("planning failed: %w", err)
	}

	type queryResponse struct {
		Queries []string `json:"queries"`
	}
	var parsed queryResponse

	_, err = generateWithRetry(ctx, p.parseModel, p.logger, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, planParsingSystemPrompt+"\n\n# Response Format:\n\n"+queriesSchema),
		llms.TextParts(llms.ChatMessageTypeHuman, plan),
	}, func(content string) error {
		parsed = queryResponse{}
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			return fmt.Errorf("json parse error: %w", err)
		}
		if len(parsed.Queries) == 0 {
			return fmt.Errorf("empty queries list")
		}
		return nil
	})
	if err != nil {
		return plan, nil, fmt.Errorf("plan parsing failed: %w", err)
	}

	var queries []string
	for _, q := range parsed.Queries {
		if strings.TrimSpace(q) == "" {
			continue
		}
		queries = append(queries, q)
		if len(queries) == p.maxQueries {
			break
		}
	}
	return plan, queries, nil
}
