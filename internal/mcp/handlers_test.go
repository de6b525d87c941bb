package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godagent/ragbot/internal/ingest"
	"github.com/godagent/ragbot/internal/retriever"
	"github.com/godagent/ragbot/internal/store"
)

type fakeSearcher struct {
	results []retriever.Result
	err     error
	topK    int
	minSim  float64
}

func (f *fakeSearcher) Search(ctx context.Context, query string, topK int, minSimilarity float64, applyThreshold bool) ([]retriever.Result, error) {
	f.topK = topK
	f.minSim = minSimilarity
	return f.results, f.err
}

type fakeIngester struct {
	res *ingest.Result
	err error
}

func (f *fakeIngester) IngestText(ctx context.Context, name, text string, replace bool) (*ingest.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type fakeCatalog struct {
	docs    []store.Document
	deleted bool
	status  *store.Status
	err     error
}

func (f *fakeCatalog) ListDocuments(ctx context.Context) ([]store.Document, error) {
	return f.docs, f.err
}

func (f *fakeCatalog) DeleteDocument(ctx context.Context, name string) (bool, error) {
	return f.deleted, f.err
}

func (f *fakeCatalog) IndexStatus(ctx context.Context) (*store.Status, error) {
	return f.status, f.err
}

func TestSearchHandler_Defaults(t *testing.T) {
	searcher := &fakeSearcher{results: []retriever.Result{
		{Chunk: store.Chunk{DocName: "guide", Index: 1, Text: "excerpt"}, Similarity: 0.9},
	}}
	handler := makeSearchHandler(searcher)

	_, out, err := handler(context.Background(), nil, SearchChunksInput{Query: "how"})
	require.NoError(t, err)

	// Unset parameters fall back to defaults.
	assert.Equal(t, 3, searcher.topK)
	assert.InDelta(t, 0.5, searcher.minSim, 1e-9)

	require.Len(t, out.Results, 1)
	assert.Equal(t, "guide", out.Results[0].Document)
	assert.Equal(t, 1, out.Results[0].ChunkIndex)
	assert.Equal(t, "excerpt", out.Results[0].Text)
}

func TestSearchHandler_NoMatches(t *testing.T) {
	handler := makeSearchHandler(&fakeSearcher{})

	_, out, err := handler(context.Background(), nil, SearchChunksInput{Query: "nothing"})
	require.NoError(t, err)
	assert.NotNil(t, out.Results)
	assert.Empty(t, out.Results)
	assert.NotEmpty(t, out.Message)
}

func TestIngestHandler(t *testing.T) {
	handler := makeIngestHandler(&fakeIngester{res: &ingest.Result{Name: "doc", Chunks: 4}})

	_, out, err := handler(context.Background(), nil, IngestDocumentInput{Name: "doc", Text: "content"})
	require.NoError(t, err)
	assert.Equal(t, "doc", out.Name)
	assert.Equal(t, 4, out.Chunks)
}

func TestIngestHandler_Conflict(t *testing.T) {
	handler := makeIngestHandler(&fakeIngester{err: store.ErrDocumentExists})

	_, _, err := handler(context.Background(), nil, IngestDocumentInput{Name: "doc", Text: "content"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestListHandler(t *testing.T) {
	now := time.Now()
	catalog := &fakeCatalog{docs: []store.Document{
		{Name: "a", ChunkCount: 2, Model: "m", UpdatedAt: now},
		{Name: "b", ChunkCount: 5, Model: "m", UpdatedAt: now},
	}}
	handler := makeListHandler(catalog)

	_, out, err := handler(context.Background(), nil, ListDocumentsInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count)
	require.Len(t, out.Documents, 2)
	assert.Equal(t, "a", out.Documents[0].Name)
	assert.Equal(t, 5, out.Documents[1].Chunks)
}

func TestDeleteHandler(t *testing.T) {
	handler := makeDeleteHandler(&fakeCatalog{deleted: true})

	_, out, err := handler(context.Background(), nil, DeleteDocumentInput{Name: "doc"})
	require.NoError(t, err)
	assert.True(t, out.Deleted)
	assert.Equal(t, "doc", out.Name)

	handler = makeDeleteHandler(&fakeCatalog{deleted: false})
	_, out, err = handler(context.Background(), nil, DeleteDocumentInput{Name: "missing"})
	require.NoError(t, err)
	assert.False(t, out.Deleted)
}

func TestStatusHandler(t *testing.T) {
	catalog := &fakeCatalog{status: &store.Status{
		Documents: 3, Chunks: 40, Dimension: 768, Model: "test-model",
	}}
	handler := makeStatusHandler(catalog)

	_, out, err := handler(context.Background(), nil, StatusInput{})
	require.NoError(t, err)
	assert.Equal(t, 3, out.TotalDocs)
	assert.Equal(t, 40, out.TotalChunks)
	assert.Equal(t, 768, out.Dimension)
	assert.Equal(t, "test-model", out.Model)
}

func TestStatusHandler_Error(t *testing.T) {
	handler := makeStatusHandler(&fakeCatalog{err: errors.New("db gone")})

	_, _, err := handler(context.Background(), nil, StatusInput{})
	require.Error(t, err)
}
