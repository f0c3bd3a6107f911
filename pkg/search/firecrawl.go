package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mikeboe/deep-research/pkg/events"
)

// maxContentLength caps scraped page content before it enters evidence.
const maxContentLength = 80_000

// FirecrawlClient retrieves page content as markdown through the
// Firecrawl scrape API. It implements research.Fetcher.
type FirecrawlClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type firecrawlRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type firecrawlResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string `json:"markdown"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// FirecrawlOption customizes a FirecrawlClient.
type FirecrawlOption func(*FirecrawlClient)

// WithFirecrawlBaseURL overrides the API endpoint, for tests.
func WithFirecrawlBaseURL(base string) FirecrawlOption {
	return func(c *FirecrawlClient) { c.baseURL = base }
}

func NewFirecrawlClient(apiKey string, opts ...FirecrawlOption) (*FirecrawlClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("FIRECRAWL_API_KEY is not set")
	}
	c := &FirecrawlClient{
		apiKey:  apiKey,
		baseURL: "https://api.firecrawl.dev/v1/scrape",
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *FirecrawlClient) Fetch(ctx context.Context, pageURL string) (string, error) {
	reqBody, err := json.Marshal(firecrawlRequest{
		URL:             pageURL,
		Formats:         []string{"markdown"},
		OnlyMainContent: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create scrape request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("scrape request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read scrape response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("scrape API returned status %s: %s", resp.Status, string(body))
	}

	var parsed firecrawlResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal scrape response: %w", err)
	}
	if !parsed.Success {
		return "", fmt.Errorf("scrape failed for %s: %s", pageURL, parsed.Error)
	}

	return events.Truncate(parsed.Data.Markdown, maxContentLength), nil
}
