package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godagent/ragbot/internal/github"
	"github.com/godagent/ragbot/internal/store"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(texts[i])), 1}
	}
	return vectors, nil
}

func (f *fakeEmbedder) Model() string { return "fake-model" }

type fakeWriter struct {
	err    error
	puts   int
	last   []store.Chunk
	lastN  string
	lastR  bool
	models []string
}

func (f *fakeWriter) PutDocument(ctx context.Context, name, model string, chunks []store.Chunk, replace bool) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.puts++
	f.last = chunks
	f.lastN = name
	f.lastR = replace
	f.models = append(f.models, model)
	return len(chunks), nil
}

func TestIngestText_ChunksEmbedsAndStores(t *testing.T) {
	embedder := &fakeEmbedder{}
	writer := &fakeWriter{}
	p := NewPipeline(embedder, writer, 50, 10, nil)

	text := strings.Repeat("some words to split across chunks ", 10)
	res, err := p.IngestText(context.Background(), "notes", text, false)
	require.NoError(t, err)

	assert.Equal(t, "notes", res.Name)
	assert.Greater(t, res.Chunks, 1)
	assert.Equal(t, 1, writer.puts)
	assert.Equal(t, "notes", writer.lastN)
	assert.Equal(t, []string{"fake-model"}, writer.models)

	// Chunks carry sequential indexes and embeddings.
	for i, c := range writer.last {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, "notes", c.DocName)
		assert.NotEmpty(t, c.Embedding)
		assert.NotEmpty(t, c.Text)
	}
}

func TestIngestText_EmbedFailureWritesNothing(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("service down")}
	writer := &fakeWriter{}
	p := NewPipeline(embedder, writer, 50, 10, nil)

	_, err := p.IngestText(context.Background(), "notes", "some text", false)
	require.Error(t, err)
	assert.Equal(t, 0, writer.puts)
}

func TestIngestText_EmptyAfterNormalization(t *testing.T) {
	p := NewPipeline(&fakeEmbedder{}, &fakeWriter{}, 50, 10, nil)

	_, err := p.IngestText(context.Background(), "blank", "   \n\n  ", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestIngestText_SizeCap(t *testing.T) {
	embedder := &fakeEmbedder{}
	p := NewPipeline(embedder, &fakeWriter{}, 50, 10, nil)

	huge := strings.Repeat("x", MaxDocumentBytes+1)
	_, err := p.IngestText(context.Background(), "huge", huge, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
	assert.Equal(t, 0, embedder.calls)
}

func TestIngestMarkdown_SectionContext(t *testing.T) {
	writer := &fakeWriter{}
	p := NewPipeline(&fakeEmbedder{}, writer, 200, 20, nil)

	source := `# Guide

Intro paragraph.

## Usage

How to use it.
`
	res, err := p.IngestMarkdown(context.Background(), "guide.md", source, false)
	require.NoError(t, err)
	require.Greater(t, res.Chunks, 1)

	// Chunks keep their heading context and get flat sequential indexes.
	assert.Contains(t, writer.last[0].Text, "# Guide")
	assert.Contains(t, writer.last[1].Text, "## Usage")
	for i, c := range writer.last {
		assert.Equal(t, i, c.Index)
	}
}

func TestIngestDir_CollectsFailures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.md"), []byte("# Doc\n\nContent here.\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.txt"), []byte("   "), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.bin"), []byte{0, 1}, 0o600))

	writer := &fakeWriter{}
	p := NewPipeline(&fakeEmbedder{}, writer, 100, 10, nil)

	result, err := p.IngestDir(context.Background(), dir, true)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalDocs)
	assert.Equal(t, 1, result.SuccessfulDocs)
	require.Len(t, result.FailedDocs, 1)
	assert.Equal(t, "empty.txt", result.FailedDocs[0].Path)
	assert.NotEmpty(t, result.RunID)
}

type fakeSource struct {
	docs    map[string]string
	listErr error
}

func (f *fakeSource) ListDocs(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	paths := make([]string, 0, len(f.docs))
	for p := range f.docs {
		paths = append(paths, p)
	}
	return paths, nil
}

func (f *fakeSource) FetchDoc(ctx context.Context, relativePath string) (*github.FetchedDoc, error) {
	content, ok := f.docs[relativePath]
	if !ok {
		return nil, errors.New("not found")
	}
	return &github.FetchedDoc{Path: relativePath, Content: content}, nil
}

func TestIngestRepo(t *testing.T) {
	source := &fakeSource{docs: map[string]string{
		"readme.md": "# Readme\n\nWelcome.\n",
	}}
	writer := &fakeWriter{}
	p := NewPipeline(&fakeEmbedder{}, writer, 100, 10, nil)

	result, err := p.IngestRepo(context.Background(), source, "owner/repo", true)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalDocs)
	assert.Equal(t, 1, result.SuccessfulDocs)
	assert.Empty(t, result.FailedDocs)
	// Documents are namespaced under the repository prefix.
	assert.Equal(t, "owner/repo/readme.md", writer.lastN)
}

func TestIngestRepo_ListError(t *testing.T) {
	source := &fakeSource{listErr: errors.New("api down")}
	p := NewPipeline(&fakeEmbedder{}, &fakeWriter{}, 100, 10, nil)

	_, err := p.IngestRepo(context.Background(), source, "", true)
	require.Error(t, err)
}
