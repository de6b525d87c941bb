package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/godagent/ragbot/internal/ingest"
	"github.com/godagent/ragbot/internal/retriever"
	"github.com/godagent/ragbot/internal/store"
)

// Searcher runs semantic search over the index.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, minSimilarity float64, applyThreshold bool) ([]retriever.Result, error)
}

// Ingester chunks, embeds and stores raw text.
type Ingester interface {
	IngestText(ctx context.Context, name, text string, replace bool) (*ingest.Result, error)
}

// Catalog reads and mutates the document index.
type Catalog interface {
	ListDocuments(ctx context.Context) ([]store.Document, error)
	DeleteDocument(ctx context.Context, name string) (bool, error)
	IndexStatus(ctx context.Context) (*store.Status, error)
}

// makeSearchHandler creates the search_chunks tool handler.
// Search flow:
// 1. Generate embedding for query text
// 2. Rank all stored chunks by cosine similarity
// 3. Filter by minimum score threshold
// 4. Return up to MaxResults chunks with text and provenance
func makeSearchHandler(searcher Searcher) func(
	context.Context, *mcp.CallToolRequest, SearchChunksInput,
) (*mcp.CallToolResult, SearchChunksOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchChunksInput) (
		*mcp.CallToolResult, SearchChunksOutput, error,
	) {
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = 3
		}
		minScore := input.MinScore
		if minScore <= 0 {
			minScore = 0.5
		}

		found, err := searcher.Search(ctx, input.Query, maxResults, minScore, true)
		if err != nil {
			return nil, SearchChunksOutput{}, fmt.Errorf("search failed: %w", err)
		}

		results := make([]ChunkResult, 0, len(found))
		for _, r := range found {
			results = append(results, ChunkResult{
				Document:   r.Chunk.DocName,
				ChunkIndex: r.Chunk.Index,
				Score:      r.Similarity,
				Text:       r.Chunk.Text,
			})
		}

		if len(results) == 0 {
			return nil, SearchChunksOutput{
				Results: []ChunkResult{},
				Message: "No matching chunks found. Try broader search terms.",
			}, nil
		}

		return nil, SearchChunksOutput{Results: results}, nil
	}
}

// makeIngestHandler creates the ingest_document tool handler.
func makeIngestHandler(ingester Ingester) func(
	context.Context, *mcp.CallToolRequest, IngestDocumentInput,
) (*mcp.CallToolResult, IngestDocumentOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IngestDocumentInput) (
		*mcp.CallToolResult, IngestDocumentOutput, error,
	) {
		res, err := ingester.IngestText(ctx, input.Name, input.Text, input.Replace)
		if err != nil {
			if errors.Is(err, store.ErrDocumentExists) {
				return nil, IngestDocumentOutput{}, fmt.Errorf(
					"document %q already exists, set replace to overwrite", input.Name)
			}
			return nil, IngestDocumentOutput{}, fmt.Errorf("ingestion failed: %w", err)
		}

		return nil, IngestDocumentOutput{
			Name:   res.Name,
			Chunks: res.Chunks,
		}, nil
	}
}

// makeListHandler creates the list_documents tool handler.
func makeListHandler(catalog Catalog) func(
	context.Context, *mcp.CallToolRequest, ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListDocumentsInput) (
		*mcp.CallToolResult, ListDocumentsOutput, error,
	) {
		docs, err := catalog.ListDocuments(ctx)
		if err != nil {
			return nil, ListDocumentsOutput{}, fmt.Errorf("failed to list documents: %w", err)
		}

		infos := make([]DocumentInfo, 0, len(docs))
		for _, d := range docs {
			infos = append(infos, DocumentInfo{
				Name:      d.Name,
				Chunks:    d.ChunkCount,
				Model:     d.Model,
				UpdatedAt: d.UpdatedAt,
			})
		}

		return nil, ListDocumentsOutput{
			Documents: infos,
			Count:     len(infos),
		}, nil
	}
}

// makeDeleteHandler creates the delete_document tool handler.
// Deleting an unknown name is not an error, Deleted is false.
func makeDeleteHandler(catalog Catalog) func(
	context.Context, *mcp.CallToolRequest, DeleteDocumentInput,
) (*mcp.CallToolResult, DeleteDocumentOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input DeleteDocumentInput) (
		*mcp.CallToolResult, DeleteDocumentOutput, error,
	) {
		deleted, err := catalog.DeleteDocument(ctx, input.Name)
		if err != nil {
			return nil, DeleteDocumentOutput{}, fmt.Errorf("failed to delete document: %w", err)
		}

		return nil, DeleteDocumentOutput{
			Deleted: deleted,
			Name:    input.Name,
		}, nil
	}
}

// makeStatusHandler creates the get_index_status tool handler.
func makeStatusHandler(catalog Catalog) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		status, err := catalog.IndexStatus(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("failed to read index status: %w", err)
		}

		return nil, StatusOutput{
			TotalDocs:   status.Documents,
			TotalChunks: status.Chunks,
			Dimension:   status.Dimension,
			Model:       status.Model,
		}, nil
	}
}
