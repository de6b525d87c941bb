package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/godagent/ragbot/internal/ingest"
	"github.com/godagent/ragbot/internal/prompt"
	"github.com/godagent/ragbot/internal/retriever"
)

const helpText = `I answer questions using the documents you give me.

/embed_create <name> <text> - embed text as a named document
/embed_docs [dir] - embed every .md and .txt file in a local folder
/rag <question> - answer using the most relevant chunks
/rag_all <question> - answer using top chunks without the similarity floor
/ask <question> - answer without document context
/status - index statistics
/clear_embeddings - delete every document
/clear_history - forget this chat's conversation
You can also send me a text file as an attachment, or just type a question.`

func (b *Bot) handleHelp(ctx context.Context, msg *tgbotapi.Message) (string, error) {
	return helpText, nil
}

func (b *Bot) handleUnknown(ctx context.Context, msg *tgbotapi.Message) (string, error) {
	return "Unknown command. Send /help for the list.", nil
}

// handleEmbedCreate ingests inline text: /embed_create <name> <text>.
// Replying to a message with /embed_create <name> embeds the replied
// text instead.
func (b *Bot) handleEmbedCreate(ctx context.Context, msg *tgbotapi.Message) (string, error) {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return "Usage: /embed_create <name> <text>, or reply to a message with /embed_create <name>.", nil
	}

	name, text, _ := strings.Cut(args, " ")
	text = strings.TrimSpace(text)
	if text == "" && msg.ReplyToMessage != nil {
		text = msg.ReplyToMessage.Text
	}
	if text == "" {
		return "Nothing to embed. Provide text after the name or reply to a message.", nil
	}

	res, err := b.cfg.Pipeline.IngestText(ctx, name, text, false)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Embedded %q: %d chunks from %d characters.", res.Name, res.Chunks, res.TextLength), nil
}

// handleEmbedDocs ingests a local directory of markdown and text files.
func (b *Bot) handleEmbedDocs(ctx context.Context, msg *tgbotapi.Message) (string, error) {
	dir := strings.TrimSpace(msg.CommandArguments())
	if dir == "" {
		dir = b.cfg.DocsDir
	}
	if dir == "" {
		dir = "docs"
	}

	res, err := b.cfg.Pipeline.IngestDir(ctx, dir, true)
	if err != nil {
		return "", err
	}
	reply := fmt.Sprintf("Embedded %d of %d files (%d chunks) in %s.",
		res.SuccessfulDocs, res.TotalDocs, res.TotalChunks, res.Duration.Round(100*time.Millisecond))
	if len(res.FailedDocs) > 0 {
		var sb strings.Builder
		sb.WriteString(reply + "\nFailed:")
		for _, f := range res.FailedDocs {
			fmt.Fprintf(&sb, "\n- %s: %s", f.Path, f.Reason)
		}
		reply = sb.String()
	}
	return reply, nil
}

// handleAttachment downloads a document attachment and ingests it under
// its file name. Replaces an existing document of the same name.
func (b *Bot) handleAttachment(ctx context.Context, msg *tgbotapi.Message) (string, error) {
	doc := msg.Document
	if doc.FileSize > ingest.MaxDocumentBytes {
		return fmt.Sprintf("File too large: %d bytes, maximum is %d.", doc.FileSize, ingest.MaxDocumentBytes), nil
	}

	url, err := b.api.GetFileDirectURL(doc.FileID)
	if err != nil {
		return "", fmt.Errorf("resolving file: %w", err)
	}
	content, err := download(ctx, url)
	if err != nil {
		return "", fmt.Errorf("downloading file: %w", err)
	}

	name := doc.FileName
	var res *ingest.Result
	if strings.HasSuffix(strings.ToLower(name), ".md") {
		res, err = b.cfg.Pipeline.IngestMarkdown(ctx, name, content, true)
	} else {
		res, err = b.cfg.Pipeline.IngestText(ctx, name, content, true)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Embedded %q: %d chunks.", res.Name, res.Chunks), nil
}

func download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, ingest.MaxDocumentBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > ingest.MaxDocumentBytes {
		return "", fmt.Errorf("file exceeds %d bytes", ingest.MaxDocumentBytes)
	}
	return string(data), nil
}

func (b *Bot) handleRAG(ctx context.Context, msg *tgbotapi.Message) (string, error) {
	return b.answer(ctx, msg, true, true)
}

// handleRAGAll skips the similarity floor so the top chunks are used
// even when nothing scores above the threshold.
func (b *Bot) handleRAGAll(ctx context.Context, msg *tgbotapi.Message) (string, error) {
	return b.answer(ctx, msg, true, false)
}

// handleAsk answers from chat history alone, no retrieval.
func (b *Bot) handleAsk(ctx context.Context, msg *tgbotapi.Message) (string, error) {
	return b.answer(ctx, msg, false, false)
}

// answer runs the full flow: retrieve (optionally), compose, complete,
// persist both turns. History is written only after a successful
// completion so a failed call leaves the window unchanged.
func (b *Bot) answer(ctx context.Context, msg *tgbotapi.Message, withRetrieval, applyThreshold bool) (string, error) {
	question := strings.TrimSpace(msg.CommandArguments())
	if question == "" {
		question = strings.TrimSpace(msg.Text)
	}
	if question == "" || strings.HasPrefix(question, "/") {
		return "Ask me something, e.g. /rag how do I configure retries?", nil
	}

	var retrieved []retriever.Result
	if withRetrieval {
		var err error
		retrieved, err = b.cfg.Retriever.Search(ctx, question, b.cfg.TopK, b.cfg.SimThreshold, applyThreshold)
		if err != nil {
			return "", err
		}
	}

	messages, err := b.cfg.Composer.Build(ctx, b.cfg.SystemPrompt, msg.Chat.ID, retrieved)
	if err != nil {
		return "", err
	}
	messages = append(messages, prompt.Message{Role: prompt.RoleUser, Content: question})

	reply, err := b.cfg.LLM.Complete(ctx, messages)
	if err != nil {
		return "", err
	}

	if err := b.cfg.Store.AppendMessage(ctx, msg.Chat.ID, prompt.RoleUser, question); err != nil {
		b.logger.Warn("Failed to record user turn", "chat", msg.Chat.ID, "error", err)
	}
	if err := b.cfg.Store.AppendMessage(ctx, msg.Chat.ID, prompt.RoleAssistant, reply); err != nil {
		b.logger.Warn("Failed to record assistant turn", "chat", msg.Chat.ID, "error", err)
	}

	return reply, nil
}

func (b *Bot) handleClearEmbeddings(ctx context.Context, msg *tgbotapi.Message) (string, error) {
	deleted, err := b.cfg.Store.ClearAll(ctx)
	if err != nil {
		return "", err
	}
	if deleted == 0 {
		return "The index is already empty.", nil
	}
	return fmt.Sprintf("Deleted %d chunks. The index is now empty.", deleted), nil
}

func (b *Bot) handleClearHistory(ctx context.Context, msg *tgbotapi.Message) (string, error) {
	deleted, err := b.cfg.Store.ClearMessages(ctx, msg.Chat.ID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Forgot %d messages.", deleted), nil
}

func (b *Bot) handleStatus(ctx context.Context, msg *tgbotapi.Message) (string, error) {
	status, err := b.cfg.Store.IndexStatus(ctx)
	if err != nil {
		return "", err
	}
	if status.Documents == 0 {
		return "The index is empty. Use /embed_create or send me a file.", nil
	}
	return fmt.Sprintf("Documents: %d\nChunks: %d\nDimension: %d\nModel: %s",
		status.Documents, status.Chunks, status.Dimension, status.Model), nil
}
