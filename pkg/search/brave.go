package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mikeboe/deep-research/pkg/research"
)

const defaultResultCount = 5

// BraveClient searches the web through the Brave Search API. It
// implements research.Searcher.
type BraveClient struct {
	apiKey  string
	baseURL string
	count   int
	client  *http.Client
}

type braveWebResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type braveResponse struct {
	Web struct {
		Results []braveWebResult `json:"results"`
	} `json:"web"`
}

// BraveOption customizes a BraveClient.
type BraveOption func(*BraveClient)

// WithBraveBaseURL overrides the API endpoint. Tests point this at a
// local server.
func WithBraveBaseURL(base string) BraveOption {
	return func(c *BraveClient) { c.baseURL = base }
}

// WithBraveResultCount sets how many results to request per query.
func WithBraveResultCount(n int) BraveOption {
	return func(c *BraveClient) { c.count = n }
}

func NewBraveClient(apiKey string, opts ...BraveOption) (*BraveClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("BRAVE_API_KEY is not set")
	}
	c := &BraveClient{
		apiKey:  apiKey,
		baseURL: "https://api.search.brave.com/res/v1/web/search",
		count:   defaultResultCount,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *BraveClient) Search(ctx context.Context, query string) ([]research.Candidate, error) {
	endpoint := fmt.Sprintf("%s?q=%s&count=%d&result_filter=web", c.baseURL, url.QueryEscape(query), c.count)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	// Accept-Encoding stays unset so the transport negotiates gzip and
	// decompresses the body itself.
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %s: %s", resp.Status, string(body))
	}

	var parsed braveResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal search response: %w", err)
	}

	candidates := make([]research.Candidate, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		if r.URL == "" {
			continue
		}
		candidates = append(candidates, research.Candidate{Title: r.Title, URL: r.URL})
	}
	return candidates, nil
}
