// Package mcp exposes the embedding index over the Model Context
// Protocol.
package mcp

import "time"

// SearchChunksInput defines the input parameters for the search_chunks tool.
type SearchChunksInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"required,description=The semantic search query for finding relevant chunks"`
	// MaxResults is the maximum number of chunks to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=20,default=3,description=Maximum number of chunks to return"`
	// MinScore is the minimum cosine similarity threshold (0-1).
	MinScore float64 `json:"min_score,omitempty" jsonschema:"minimum=0,maximum=1,default=0.5,description=Minimum cosine similarity threshold (0-1)"`
}

// SearchChunksOutput contains the search results.
type SearchChunksOutput struct {
	// Results is the list of matching chunks in descending similarity order.
	Results []ChunkResult `json:"results"`
	// Message provides informational context (e.g., "No matching chunks found").
	Message string `json:"message,omitempty"`
}

// ChunkResult represents a single chunk match from semantic search.
type ChunkResult struct {
	// Document is the name of the source document.
	Document string `json:"document"`
	// ChunkIndex is the chunk's position within the document.
	ChunkIndex int `json:"chunk_index"`
	// Score is the cosine similarity (0-1).
	Score float64 `json:"score"`
	// Text is the chunk content.
	Text string `json:"text"`
}

// IngestDocumentInput defines the input parameters for the ingest_document tool.
type IngestDocumentInput struct {
	// Name identifies the document in the index.
	Name string `json:"name" jsonschema:"required,description=Unique name for the document"`
	// Text is the raw document content to chunk and embed.
	Text string `json:"text" jsonschema:"required,description=Raw document text to chunk and embed"`
	// Replace overwrites an existing document of the same name.
	Replace bool `json:"replace,omitempty" jsonschema:"default=false,description=Replace an existing document of the same name"`
}

// IngestDocumentOutput reports the outcome of an ingestion.
type IngestDocumentOutput struct {
	// Name is the ingested document's name.
	Name string `json:"name"`
	// Chunks is the number of chunks stored.
	Chunks int `json:"chunks"`
}

// ListDocumentsInput defines the input parameters for the list_documents tool.
// This tool takes no parameters.
type ListDocumentsInput struct{}

// ListDocumentsOutput contains the catalog of indexed documents.
type ListDocumentsOutput struct {
	// Documents describes every indexed document.
	Documents []DocumentInfo `json:"documents"`
	// Count is the total number of documents.
	Count int `json:"count"`
}

// DocumentInfo summarizes one indexed document.
type DocumentInfo struct {
	// Name is the document's unique name.
	Name string `json:"name"`
	// Chunks is the document's chunk count.
	Chunks int `json:"chunks"`
	// Model is the embedding model the document was indexed with.
	Model string `json:"model"`
	// UpdatedAt is when the document was last (re)ingested.
	UpdatedAt time.Time `json:"updated_at"`
}

// DeleteDocumentInput defines the input parameters for the delete_document tool.
type DeleteDocumentInput struct {
	// Name is the document to remove from the index.
	Name string `json:"name" jsonschema:"required,description=Name of the document to delete"`
}

// DeleteDocumentOutput reports whether the document existed.
type DeleteDocumentOutput struct {
	// Deleted indicates the document was found and removed.
	Deleted bool `json:"deleted"`
	// Name echoes the requested document name.
	Name string `json:"name"`
}

// StatusInput defines the input parameters for the get_index_status tool.
// This tool takes no parameters.
type StatusInput struct{}

// StatusOutput contains index-wide statistics.
type StatusOutput struct {
	// TotalDocs is the number of indexed documents.
	TotalDocs int `json:"total_docs"`
	// TotalChunks is the number of stored chunks.
	TotalChunks int `json:"total_chunks"`
	// Dimension is the embedding vector dimension, 0 when the index is empty.
	Dimension int `json:"dimension"`
	// Model is the embedding model of the stored vectors.
	Model string `json:"model,omitempty"`
}
