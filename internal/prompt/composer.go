// Package prompt assembles language-model requests from system prompt,
// retrieved context and chat history.
package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/godagent/ragbot/internal/retriever"
	"github.com/godagent/ragbot/internal/store"
)

// Message is one role/content pair of a chat-completion request.
type Message struct {
	Role    string
	Content string
}

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// HistorySource reads the memory window of a chat.
type HistorySource interface {
	RecentMessages(ctx context.Context, chatID int64, limit int) ([]store.ChatMessage, error)
}

// Composer builds message sequences for the language model. Output is
// deterministic for identical history and retrieval results.
type Composer struct {
	history      HistorySource
	historyLimit int
}

// NewComposer creates a Composer reading at most historyLimit messages
// per chat.
func NewComposer(history HistorySource, historyLimit int) *Composer {
	return &Composer{
		history:      history,
		historyLimit: historyLimit,
	}
}

// Build returns the ordered message sequence: a system message (with
// retrieved context folded in when present) followed by the chat's
// history window in chronological order. The caller appends the current
// user turn.
func (c *Composer) Build(ctx context.Context, systemPrompt string, chatID int64, retrieved []retriever.Result) ([]Message, error) {
	system := systemPrompt
	if len(retrieved) > 0 {
		system = systemPrompt + "\n\n" + ContextBlock(retrieved)
	}

	messages := []Message{{Role: RoleSystem, Content: system}}

	history, err := c.history.RecentMessages(ctx, chatID, c.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	for _, m := range history {
		messages = append(messages, Message{Role: m.Role, Content: m.Content})
	}

	return messages, nil
}

// ContextBlock renders retrieved chunks as a reference section for the
// system prompt. Chunks appear in ranking order with their source names.
func ContextBlock(retrieved []retriever.Result) string {
	var b strings.Builder
	b.WriteString("Use the following reference excerpts when they are relevant to the question:\n")
	for i, r := range retrieved {
		fmt.Fprintf(&b, "\n[%d] %s (chunk %d, similarity %.2f)\n%s\n",
			i+1, r.Chunk.DocName, r.Chunk.Index, r.Similarity, r.Chunk.Text)
	}
	return b.String()
}
