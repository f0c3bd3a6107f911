// Package cover turns a report topic into a cover illustration: an
// image-generation call against Together AI, then an upload of the image
// bytes to a Cloud Storage bucket.
package cover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
)

// Generator produces and stores cover images. The zero value is not
// usable; use NewGenerator.
type Generator struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client

	bucket *storage.BucketHandle
	name   string
}

type imageRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Steps  int    `json:"steps"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Option customizes a Generator.
type Option func(*Generator)

// WithBaseURL overrides the image API endpoint, for tests.
func WithBaseURL(base string) Option {
	return func(g *Generator) { g.baseURL = base }
}

func NewGenerator(apiKey, model string, storageClient *storage.Client, bucketName string, opts ...Option) (*Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("TOGETHER_API_KEY is not set")
	}
	if storageClient == nil || bucketName == "" {
		return nil, fmt.Errorf("cover storage bucket is not configured")
	}
	g := &Generator{
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://api.together.xyz/v1/images/generations",
		client:  &http.Client{Timeout: 120 * time.Second},
		bucket:  storageClient.Bucket(bucketName),
		name:    bucketName,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate creates a cover for the session and returns its public URL.
func (g *Generator) Generate(ctx context.Context, sessionID, prompt string) (string, error) {
	imageURL, err := g.generateImage(ctx, prompt)
	if err != nil {
		return "", err
	}

	data, err := g.download(ctx, imageURL)
	if err != nil {
		return "", err
	}

	objectKey := fmt.Sprintf("covers/%s.jpg", sessionID)
	if err := g.upload(ctx, objectKey, data); err != nil {
		return "", err
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.name, objectKey), nil
}

func (g *Generator) generateImage(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(imageRequest{
		Prompt: prompt,
		Model:  g.model,
		Width:  1024,
		Height: 768,
		Steps:  30,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal image request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("image generation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read image response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image API returned status %s: %s", resp.Status, string(body))
	}

	var parsed imageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal image response: %w", err)
	}
	if len(parsed.Data) == 0 || parsed.Data[0].URL == "" {
		return "", fmt.Errorf("image API returned no image")
	}
	return parsed.Data[0].URL, nil
}

func (g *Generator) download(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download generated image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return data, nil
}

func (g *Generator) upload(ctx context.Context, objectKey string, data []byte) error {
	w := g.bucket.Object(objectKey).NewWriter(ctx)
	w.ContentType = "image/jpeg"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write cover object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize cover upload: %w", err)
	}
	return nil
}
