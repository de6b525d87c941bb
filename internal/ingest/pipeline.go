// Package ingest runs the document ingestion pipeline:
// normalize, chunk, embed, store.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/godagent/ragbot/internal/chunker"
	"github.com/godagent/ragbot/internal/github"
	"github.com/godagent/ragbot/internal/store"
)

// MaxDocumentBytes caps the size of a single ingested document.
const MaxDocumentBytes = 10 << 20

// Embedder converts chunk texts into vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Writer persists a chunked document.
type Writer interface {
	PutDocument(ctx context.Context, name, model string, chunks []store.Chunk, replace bool) (int, error)
}

// DocSource lists and fetches markdown documents, e.g. a GitHub
// repository directory.
type DocSource interface {
	ListDocs(ctx context.Context) ([]string, error)
	FetchDoc(ctx context.Context, relativePath string) (*github.FetchedDoc, error)
}

// Result describes one ingested document.
type Result struct {
	Name       string
	TextLength int
	Chunks     int
}

// FailedDoc records a document that could not be ingested.
type FailedDoc struct {
	Path   string
	Reason string
}

// BatchResult summarizes a multi-document ingestion run.
type BatchResult struct {
	RunID          string
	TotalDocs      int
	SuccessfulDocs int
	TotalChunks    int
	FailedDocs     []FailedDoc
	Duration       time.Duration
}

// Pipeline orchestrates ingestion end to end. Embedding happens before
// any write, so a document is stored completely or not at all.
type Pipeline struct {
	embedder Embedder
	writer   Writer
	markdown *chunker.MarkdownSplitter
	logger   *slog.Logger

	chunkSize    int
	chunkOverlap int
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(embedder Embedder, writer Writer, chunkSize, chunkOverlap int, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		embedder:     embedder,
		writer:       writer,
		markdown:     chunker.NewMarkdownSplitter(),
		logger:       logger,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// IngestText ingests raw text under the given document name.
// With replace unset, ingesting an existing name fails with
// store.ErrDocumentExists.
func (p *Pipeline) IngestText(ctx context.Context, name, text string, replace bool) (*Result, error) {
	if len(text) > MaxDocumentBytes {
		return nil, fmt.Errorf("document %q too large: %d bytes, maximum %d", name, len(text), MaxDocumentBytes)
	}

	normalized := chunker.Normalize(text)
	pieces, err := chunker.SplitOverlap(normalized, p.chunkSize, p.chunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("chunking %q: %w", name, err)
	}
	if len(pieces) == 0 {
		return nil, fmt.Errorf("document %q is empty after normalization", name)
	}

	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Text
	}
	return p.embedAndStore(ctx, name, normalized, texts, replace)
}

// IngestMarkdown ingests markdown source, splitting at heading
// boundaries first so each chunk keeps its section context, then
// bounding oversized sections by size.
func (p *Pipeline) IngestMarkdown(ctx context.Context, name, source string, replace bool) (*Result, error) {
	if len(source) > MaxDocumentBytes {
		return nil, fmt.Errorf("document %q too large: %d bytes, maximum %d", name, len(source), MaxDocumentBytes)
	}

	sections, err := p.markdown.Sections([]byte(source))
	if err != nil {
		return nil, fmt.Errorf("splitting %q: %w", name, err)
	}

	var texts []string
	for _, section := range sections {
		pieces, err := chunker.SplitOverlap(chunker.Normalize(section.Content), p.chunkSize, p.chunkOverlap)
		if err != nil {
			return nil, fmt.Errorf("chunking %q: %w", name, err)
		}
		for _, piece := range pieces {
			text := piece.Text
			if section.HeaderPath != "" && !strings.HasPrefix(text, section.HeaderPath) {
				text = section.HeaderPath + "\n\n" + text
			}
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("document %q is empty after normalization", name)
	}
	return p.embedAndStore(ctx, name, source, texts, replace)
}

// embedAndStore embeds all chunk texts, then writes the document in a
// single transaction.
func (p *Pipeline) embedAndStore(ctx context.Context, name, original string, texts []string, replace bool) (*Result, error) {
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %q: %w", name, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding %q: got %d vectors for %d chunks", name, len(vectors), len(texts))
	}

	chunks := make([]store.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = store.Chunk{
			DocName:   name,
			Index:     i,
			Text:      text,
			Embedding: vectors[i],
		}
	}

	count, err := p.writer.PutDocument(ctx, name, p.embedder.Model(), chunks, replace)
	if err != nil {
		return nil, err
	}

	p.logger.Info("Ingested document", "name", name, "chunks", count)
	return &Result{
		Name:       name,
		TextLength: len(original),
		Chunks:     count,
	}, nil
}

// IngestDir ingests every .md and .txt file under dir. Per-file
// failures are collected, not fatal.
func (p *Pipeline) IngestDir(ctx context.Context, dir string, replace bool) (*BatchResult, error) {
	start := time.Now()
	result := &BatchResult{RunID: uuid.New().String()}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}

		result.TotalDocs++
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = d.Name()
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			result.FailedDocs = append(result.FailedDocs, FailedDoc{Path: rel, Reason: readErr.Error()})
			return nil
		}

		var res *Result
		var ingestErr error
		if ext == ".md" {
			res, ingestErr = p.IngestMarkdown(ctx, rel, string(data), replace)
		} else {
			res, ingestErr = p.IngestText(ctx, rel, string(data), replace)
		}
		if ingestErr != nil {
			p.logger.Warn("Failed to ingest file", "path", rel, "error", ingestErr)
			result.FailedDocs = append(result.FailedDocs, FailedDoc{Path: rel, Reason: ingestErr.Error()})
			return nil
		}

		result.SuccessfulDocs++
		result.TotalChunks += res.Chunks
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}

	result.Duration = time.Since(start)
	p.logger.Info("Directory ingestion complete", "run", result.RunID,
		"successful", result.SuccessfulDocs, "failed", len(result.FailedDocs),
		"chunks", result.TotalChunks, "duration", result.Duration)
	return result, nil
}

// IngestRepo ingests every markdown document a source lists. Per-doc
// failures are collected in the result, not fatal.
func (p *Pipeline) IngestRepo(ctx context.Context, source DocSource, prefix string, replace bool) (*BatchResult, error) {
	start := time.Now()
	result := &BatchResult{RunID: uuid.New().String()}

	paths, err := source.ListDocs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing docs: %w", err)
	}
	result.TotalDocs = len(paths)
	p.logger.Info("Found documents", "run", result.RunID, "count", len(paths))

	for _, path := range paths {
		fetched, err := source.FetchDoc(ctx, path)
		if err != nil {
			p.logger.Warn("Failed to fetch document", "path", path, "error", err)
			result.FailedDocs = append(result.FailedDocs, FailedDoc{Path: path, Reason: err.Error()})
			continue
		}

		name := path
		if prefix != "" {
			name = prefix + "/" + path
		}
		res, err := p.IngestMarkdown(ctx, name, fetched.Content, replace)
		if err != nil {
			p.logger.Warn("Failed to ingest document", "path", path, "error", err)
			result.FailedDocs = append(result.FailedDocs, FailedDoc{Path: path, Reason: err.Error()})
			continue
		}
		result.SuccessfulDocs++
		result.TotalChunks += res.Chunks
	}

	result.Duration = time.Since(start)
	p.logger.Info("Repository ingestion complete", "run", result.RunID,
		"successful", result.SuccessfulDocs, "failed", len(result.FailedDocs),
		"chunks", result.TotalChunks, "duration", result.Duration)
	return result, nil
}
