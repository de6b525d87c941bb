package store

import "time"

// Document groups the chunks ingested under one name. A name is unique;
// re-ingesting with replace deletes the previous chunks wholesale.
type Document struct {
	Name       string    // Unique document name, e.g. "README.md"
	Model      string    // Embedding model the chunks were encoded with
	ChunkCount int       // Number of chunks currently stored
	CreatedAt  time.Time // First ingestion time
	UpdatedAt  time.Time // Last ingestion time
}

// Chunk is one bounded segment of a document with its embedding vector.
// The index is 0-based and stable within a document.
type Chunk struct {
	DocName   string
	Index     int
	Text      string
	Embedding []float32
}

// ChatMessage is one turn of conversation history for a chat.
// History is append-only; messages are never edited in place.
type ChatMessage struct {
	ChatID    int64
	Role      string // "user", "assistant" or "system"
	Content   string
	CreatedAt time.Time
}

// Status summarizes the index contents.
type Status struct {
	Documents int
	Chunks    int
	Dimension int // 0 when the store is empty
	Model     string
}
