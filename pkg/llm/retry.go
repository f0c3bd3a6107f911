package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
)

const maxGenerateRetries = 3

// generateWithRetry generates content and validates it with the provided
// function, retrying with linear backoff when the model fails or the
// validator rejects the output. Used for the structured (JSON) calls,
// where a malformed response is recoverable by asking again.
func generateWithRetry(ctx context.Context, model llms.Model, logger *slog.Logger, prompts []llms.MessageContent, validator func(string) error) (string, error) {
	var lastErr error

	for i := 0; i < maxGenerateRetries; i++ {
		if i > 0 {
			logger.Warn("retrying LLM generation", "attempt", i+1, "last_error", lastErr)
			select {
			case <-time.After(time.Second * time.Duration(i)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		resp, err := model.GenerateContent(ctx, prompts, llms.WithJSONMode())
		if err != nil {
			lastErr = fmt.Errorf("llm generation failed: %w", err)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("llm returned no choices")
			continue
		}

		content := resp.Choices[0].Content
		if err := validator(content); err != nil {
			lastErr = fmt.Errorf("validation failed: %w", err)
			continue
		}
		return content, nil
	}

	return "", fmt.Errorf("operation failed after %d retries: %w", maxGenerateRetries, lastErr)
}

// generateText is the single-shot free-form call used where retrying
// would not change anything the caller does with a failure.
func generateText(ctx context.Context, model llms.Model, system, human string) (string, error) {
	resp, err := model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, human),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}
	return resp.Choices[0].Content, nil
}
