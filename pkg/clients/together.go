package clients

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/openai"
)

// togetherBaseURL is Together AI's OpenAI-compatible endpoint.
const togetherBaseURL = "https://api.together.xyz/v1"

// TogetherAI returns a chat model served by Together AI. Model names are
// passed through verbatim (e.g. "meta-llama/Llama-3.3-70B-Instruct-Turbo").
func TogetherAI(model, apiKey string) (*openai.LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("TOGETHER_API_KEY is not set")
	}
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(model),
		openai.WithBaseURL(togetherBaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to init Together AI model %s: %w", model, err)
	}
	return llm, nil
}
