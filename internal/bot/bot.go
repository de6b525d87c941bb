// Package bot runs the Telegram command surface over the RAG core.
package bot

import (
	"context"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/godagent/ragbot/internal/ingest"
	"github.com/godagent/ragbot/internal/llm"
	"github.com/godagent/ragbot/internal/prompt"
	"github.com/godagent/ragbot/internal/retriever"
	"github.com/godagent/ragbot/internal/store"
)

const updateTimeoutSeconds = 30

// perChatQueue bounds how many updates can wait per chat before the
// dispatcher drops new ones.
const perChatQueue = 16

// Config holds bot dependencies and tuning.
type Config struct {
	Token        string
	Store        *store.Store
	Pipeline     *ingest.Pipeline
	Retriever    *retriever.Retriever
	Composer     *prompt.Composer
	LLM          *llm.Client
	TopK         int
	SimThreshold float64
	SystemPrompt string
	DocsDir      string
	Logger       *slog.Logger
}

// Bot dispatches Telegram updates to command handlers. Updates for the
// same chat are handled one at a time in arrival order; distinct chats
// run concurrently.
type Bot struct {
	api    *tgbotapi.BotAPI
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	workers map[int64]chan *tgbotapi.Message
	wg      sync.WaitGroup
}

// New creates a bot connected to the Telegram API.
func New(cfg Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:     api,
		cfg:     cfg,
		logger:  logger,
		workers: make(map[int64]chan *tgbotapi.Message),
	}, nil
}

// Run polls for updates until ctx is canceled, then waits for in-flight
// handlers to finish.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Bot started", "username", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = updateTimeoutSeconds
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.closeWorkers()
			b.wg.Wait()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				b.closeWorkers()
				b.wg.Wait()
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.dispatch(ctx, update.Message)
		}
	}
}

// dispatch routes a message to its chat's worker, starting one on first
// contact. A full queue drops the update with a warning rather than
// blocking the poll loop.
func (b *Bot) dispatch(ctx context.Context, msg *tgbotapi.Message) {
	b.mu.Lock()
	queue, ok := b.workers[msg.Chat.ID]
	if !ok {
		queue = make(chan *tgbotapi.Message, perChatQueue)
		b.workers[msg.Chat.ID] = queue
		b.wg.Add(1)
		go b.chatWorker(ctx, queue)
	}
	b.mu.Unlock()

	select {
	case queue <- msg:
	default:
		b.logger.Warn("Dropping update, chat queue full", "chat", msg.Chat.ID)
	}
}

func (b *Bot) chatWorker(ctx context.Context, queue <-chan *tgbotapi.Message) {
	defer b.wg.Done()
	for msg := range queue {
		if ctx.Err() != nil {
			return
		}
		b.handleMessage(ctx, msg)
	}
}

func (b *Bot) closeWorkers() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, queue := range b.workers {
		close(queue)
		delete(b.workers, id)
	}
}

// handleMessage selects a handler for the message and sends its reply.
// Every handler runs behind the error-translation wrapper.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	var handler HandlerFunc

	switch {
	case msg.Document != nil:
		handler = b.handleAttachment
	case msg.IsCommand():
		switch msg.Command() {
		case "start", "help":
			handler = b.handleHelp
		case "embed_create":
			handler = b.handleEmbedCreate
		case "embed_docs":
			handler = b.handleEmbedDocs
		case "rag":
			handler = b.handleRAG
		case "rag_all":
			handler = b.handleRAGAll
		case "ask":
			handler = b.handleAsk
		case "clear_embeddings":
			handler = b.handleClearEmbeddings
		case "clear_history":
			handler = b.handleClearHistory
		case "status":
			handler = b.handleStatus
		default:
			handler = b.handleUnknown
		}
	case msg.Text != "":
		handler = b.handleRAG
	default:
		return
	}

	reply := withErrorTranslation(b.logger, handler)(ctx, msg)
	if reply == "" {
		return
	}
	out := tgbotapi.NewMessage(msg.Chat.ID, reply)
	if _, err := b.api.Send(out); err != nil {
		b.logger.Error("Failed to send reply", "chat", msg.Chat.ID, "error", err)
	}
}
