package bot

import (
	"context"
	"errors"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/godagent/ragbot/internal/embedding"
	"github.com/godagent/ragbot/internal/store"
)

// HandlerFunc handles one message and returns the reply text.
type HandlerFunc func(ctx context.Context, msg *tgbotapi.Message) (string, error)

// withErrorTranslation wraps a handler so failures reach the user as a
// short safe sentence while the full error goes to the log. Sentinel
// errors map to specific messages, everything else to a generic one.
func withErrorTranslation(logger *slog.Logger, next HandlerFunc) func(ctx context.Context, msg *tgbotapi.Message) string {
	return func(ctx context.Context, msg *tgbotapi.Message) string {
		reply, err := next(ctx, msg)
		if err == nil {
			return reply
		}

		logger.Error("Command failed",
			"chat", msg.Chat.ID,
			"command", msg.Command(),
			"error", err,
		)

		switch {
		case errors.Is(err, store.ErrDocumentExists):
			return "A document with that name already exists. Delete it first or pick another name."
		case errors.Is(err, store.ErrDocumentNotFound):
			return "I don't have a document with that name."
		case errors.Is(err, store.ErrDimensionMismatch):
			return "The embedding model changed. Clear the index with /clear_embeddings and re-embed."
		case errors.Is(err, embedding.ErrEmbeddingService):
			return "The embedding service is unavailable right now. Please try again in a minute."
		case errors.Is(err, context.DeadlineExceeded):
			return "That took too long and was canceled. Please try again."
		default:
			return "Something went wrong. Please try again."
		}
	}
}
