// Package config loads bot configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ErrMissingConfig indicates a required environment variable is not set.
var ErrMissingConfig = errors.New("missing required configuration")

// Defaults for optional settings.
const (
	DefaultChatModel      = "openai/gpt-4o-mini"
	DefaultEmbeddingModel = "google/gemini-embedding-001"
	DefaultBaseURL        = "https://openrouter.ai/api/v1"
	DefaultChunkSize      = 1000
	DefaultChunkOverlap   = 150
	DefaultTopK           = 3
	DefaultSimThreshold   = 0.5
	DefaultHistoryLimit   = 30
	DefaultRequestTimeout = 120 * time.Second
	DefaultDBPath         = "ragbot.sqlite3"
)

// Config holds all runtime settings. Components receive the values they
// need at construction; nothing reads the environment after Load.
type Config struct {
	TelegramToken string // TELEGRAM_BOT_TOKEN, required for the bot
	APIKey        string // OPENROUTER_API_KEY, required
	BaseURL       string // OPENROUTER_BASE_URL

	ChatModel      string // OPENROUTER_MODEL
	EmbeddingModel string // EMBEDDING_MODEL

	ChunkSize    int     // CHUNK_SIZE, max chunk length in runes
	ChunkOverlap int     // CHUNK_OVERLAP, overlap between adjacent chunks
	TopK         int     // RAG_TOP_K, default result count
	SimThreshold float64 // RAG_SIM_THRESHOLD, default similarity floor
	HistoryLimit int     // HISTORY_LIMIT, chat memory window in messages

	DBPath         string        // DB_PATH, sqlite database file
	RequestTimeout time.Duration // REQUEST_TIMEOUT, outbound call timeout
}

// Load reads configuration from the environment.
// The API key is always required; the Telegram token only when
// requireBot is true (the CLI runs without it).
func Load(requireBot bool) (*Config, error) {
	cfg := &Config{
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		APIKey:         os.Getenv("OPENROUTER_API_KEY"),
		BaseURL:        getEnv("OPENROUTER_BASE_URL", DefaultBaseURL),
		ChatModel:      getEnv("OPENROUTER_MODEL", DefaultChatModel),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", DefaultEmbeddingModel),
		ChunkSize:      getEnvInt("CHUNK_SIZE", DefaultChunkSize),
		ChunkOverlap:   getEnvInt("CHUNK_OVERLAP", DefaultChunkOverlap),
		TopK:           getEnvInt("RAG_TOP_K", DefaultTopK),
		SimThreshold:   getEnvFloat("RAG_SIM_THRESHOLD", DefaultSimThreshold),
		HistoryLimit:   getEnvInt("HISTORY_LIMIT", DefaultHistoryLimit),
		DBPath:         getEnv("DB_PATH", DefaultDBPath),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", DefaultRequestTimeout),
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENROUTER_API_KEY", ErrMissingConfig)
	}
	if requireBot && cfg.TelegramToken == "" {
		return nil, fmt.Errorf("%w: TELEGRAM_BOT_TOKEN", ErrMissingConfig)
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 2
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
