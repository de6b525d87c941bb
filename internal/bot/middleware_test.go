package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"

	"github.com/godagent/ragbot/internal/embedding"
	"github.com/godagent/ragbot/internal/store"
)

func testMessage() *tgbotapi.Message {
	return &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 1},
		Text: "/rag question",
	}
}

func failing(err error) HandlerFunc {
	return func(ctx context.Context, msg *tgbotapi.Message) (string, error) {
		return "", err
	}
}

func TestWithErrorTranslation_PassesReplyThrough(t *testing.T) {
	handler := withErrorTranslation(slog.Default(), func(ctx context.Context, msg *tgbotapi.Message) (string, error) {
		return "the answer", nil
	})

	assert.Equal(t, "the answer", handler(context.Background(), testMessage()))
}

func TestWithErrorTranslation_Sentinels(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "document exists",
			err:  fmt.Errorf("put: %w", store.ErrDocumentExists),
			want: "already exists",
		},
		{
			name: "document not found",
			err:  store.ErrDocumentNotFound,
			want: "don't have a document",
		},
		{
			name: "dimension mismatch",
			err:  fmt.Errorf("put: %w", store.ErrDimensionMismatch),
			want: "embedding model changed",
		},
		{
			name: "embedding service",
			err:  fmt.Errorf("embed: %w", embedding.ErrEmbeddingService),
			want: "embedding service is unavailable",
		},
		{
			name: "timeout",
			err:  context.DeadlineExceeded,
			want: "took too long",
		},
		{
			name: "unknown error stays generic",
			err:  errors.New("sql: database is locked"),
			want: "Something went wrong",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := withErrorTranslation(slog.Default(), failing(tt.err))
			reply := handler(context.Background(), testMessage())
			assert.Contains(t, reply, tt.want)
			// Internal detail must never leak to the chat.
			assert.NotContains(t, reply, "sql:")
		})
	}
}
