// Package embedding turns text into fixed-length vectors via an
// OpenAI-compatible embeddings endpoint.
package embedding

import (
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client wraps the OpenAI-compatible API client. OpenRouter exposes the
// same JSON surface, so the official client works against it with a
// custom base URL.
type Client struct {
	client *openai.Client
}

// NewClient creates an API client for the given base URL and key.
func NewClient(baseURL, apiKey string) *Client {
	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)
	return &Client{client: &client}
}

// Client returns the underlying API client for use in other packages
// (e.g. chat completions).
func (c *Client) Client() *openai.Client {
	return c.client
}
