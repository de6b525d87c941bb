// Package llm calls the chat-completion endpoint to answer questions.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"

	"github.com/godagent/ragbot/internal/embedding"
	"github.com/godagent/ragbot/internal/prompt"
)

// Client produces chat completions with a fixed model.
type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewClient creates an LLM client sharing the embedding API client.
// A zero timeout disables the per-request deadline.
func NewClient(api *embedding.Client, model string, timeout time.Duration) *Client {
	return &Client{
		client:  api.Client(),
		model:   model,
		timeout: timeout,
	}
}

// Complete sends the messages and returns the assistant's reply text.
func (c *Client) Complete(ctx context.Context, messages []prompt.Message) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case prompt.RoleSystem:
			params = append(params, openai.SystemMessage(m.Content))
		case prompt.RoleAssistant:
			params = append(params, openai.AssistantMessage(m.Content))
		default:
			params = append(params, openai.UserMessage(m.Content))
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: params,
		Model:    c.model,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
