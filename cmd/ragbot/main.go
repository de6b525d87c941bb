// Package main provides the Telegram bot entry point.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/godagent/ragbot/internal/bot"
	"github.com/godagent/ragbot/internal/config"
	"github.com/godagent/ragbot/internal/embedding"
	"github.com/godagent/ragbot/internal/ingest"
	"github.com/godagent/ragbot/internal/llm"
	mcpserver "github.com/godagent/ragbot/internal/mcp"
	"github.com/godagent/ragbot/internal/prompt"
	"github.com/godagent/ragbot/internal/retriever"
	"github.com/godagent/ragbot/internal/store"
)

const defaultSystemPrompt = "You are a helpful assistant. Answer concisely. " +
	"When reference excerpts are provided, prefer them over prior knowledge " +
	"and say so when they do not cover the question."

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Cancel on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(true)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	client := embedding.NewClient(cfg.BaseURL, cfg.APIKey)
	embedder := embedding.NewEmbedder(client, cfg.EmbeddingModel, 0, cfg.RequestTimeout)
	pipeline := ingest.NewPipeline(embedder, st, cfg.ChunkSize, cfg.ChunkOverlap, logger)
	ret := retriever.New(embedder, st, logger)
	composer := prompt.NewComposer(st, cfg.HistoryLimit)
	chat := llm.NewClient(client, cfg.ChatModel, cfg.RequestTimeout)

	systemPrompt := os.Getenv("SYSTEM_PROMPT")
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	b, err := bot.New(bot.Config{
		Token:        cfg.TelegramToken,
		Store:        st,
		Pipeline:     pipeline,
		Retriever:    ret,
		Composer:     composer,
		LLM:          chat,
		TopK:         cfg.TopK,
		SimThreshold: cfg.SimThreshold,
		SystemPrompt: systemPrompt,
		DocsDir:      os.Getenv("DOCS_DIR"),
		Logger:       logger,
	})
	if err != nil {
		log.Fatalf("failed to create bot: %v", err)
	}

	// Health and MCP endpoints in the background so the index can be
	// inspected and queried while the bot runs.
	if port := os.Getenv("PORT"); port != "" {
		server := mcpserver.NewServer(&mcpserver.Config{
			Searcher: ret,
			Ingester: pipeline,
			Catalog:  st,
		})
		mux := http.NewServeMux()
		mux.HandleFunc("/health", mcpserver.NewHealthHandler(st))
		mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, nil))

		go func() {
			addr := "0.0.0.0:" + port
			logger.Info("Starting HTTP server", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("HTTP server error", "error", err)
			}
		}()
	}

	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot error: %v", err)
	}
	logger.Info("Shutdown complete")
}
