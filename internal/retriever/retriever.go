// Package retriever ranks stored chunks against a query by cosine
// similarity.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/godagent/ragbot/internal/store"
)

// Embedder converts query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkSource supplies the chunks to score. Reads must be fresh per
// call so deleted documents never surface in results.
type ChunkSource interface {
	AllChunks(ctx context.Context) ([]store.Chunk, error)
}

// Result pairs a chunk with its similarity to the query vector.
type Result struct {
	Chunk      store.Chunk
	Similarity float64
}

// Retriever embeds a query and scores it against every stored chunk.
type Retriever struct {
	embedder Embedder
	source   ChunkSource
	logger   *slog.Logger
}

// New creates a Retriever. A nil logger falls back to slog.Default.
func New(embedder Embedder, source ChunkSource, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		source:   source,
		logger:   logger,
	}
}

// Search embeds queryText and returns up to topK chunks ordered by
// descending similarity, ties broken by ascending (doc name, index).
// With applyThreshold set, results scoring below minSimilarity are
// dropped. An empty store yields an empty result and no error.
func (r *Retriever) Search(ctx context.Context, queryText string, topK int, minSimilarity float64, applyThreshold bool) ([]Result, error) {
	query, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	chunks, err := r.source.AllChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}
	if len(chunks) == 0 {
		return []Result{}, nil
	}

	results := make([]Result, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) != len(query) {
			// A stale chunk from a different model; skip rather than fail the search.
			r.logger.Warn("skipping chunk with mismatched dimension",
				"doc", c.DocName, "index", c.Index,
				"dim", len(c.Embedding), "query_dim", len(query))
			continue
		}
		sim, ok := Cosine(query, c.Embedding)
		if !ok {
			continue // zero-norm vector, similarity undefined
		}
		if applyThreshold && sim < minSimilarity {
			continue
		}
		results = append(results, Result{Chunk: c, Similarity: sim})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		if results[i].Chunk.DocName != results[j].Chunk.DocName {
			return results[i].Chunk.DocName < results[j].Chunk.DocName
		}
		return results[i].Chunk.Index < results[j].Chunk.Index
	})

	if topK >= 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Cosine computes the cosine similarity of two equal-length vectors.
// The second return is false when either vector has zero norm.
func Cosine(a, b []float32) (float64, bool) {
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}
