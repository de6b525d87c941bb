package retriever

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godagent/ragbot/internal/store"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vector, f.err
}

type fakeSource struct {
	chunks []store.Chunk
	err    error
}

func (f *fakeSource) AllChunks(ctx context.Context) ([]store.Chunk, error) {
	return f.chunks, f.err
}

func chunk(doc string, index int, vec ...float32) store.Chunk {
	return store.Chunk{DocName: doc, Index: index, Text: doc, Embedding: vec}
}

func TestSearch_RanksAndFilters(t *testing.T) {
	// Query along the x axis; similarities are the cosines of the angles.
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	source := &fakeSource{chunks: []store.Chunk{
		chunk("a", 0, 0.9, 0.436),  // ~0.90
		chunk("b", 0, 0.95, 0.312), // ~0.95
		chunk("c", 0, 0.4, 0.917),  // ~0.40
	}}

	r := New(embedder, source, nil)
	results, err := r.Search(context.Background(), "q", 3, 0.5, true)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].Chunk.DocName)
	assert.Equal(t, "a", results[1].Chunk.DocName)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestSearch_NoThresholdKeepsLowScores(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	source := &fakeSource{chunks: []store.Chunk{
		chunk("low", 0, 0.1, 0.995),
		chunk("high", 0, 1, 0),
	}}

	r := New(embedder, source, nil)
	results, err := r.Search(context.Background(), "q", 5, 0.5, false)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "high", results[0].Chunk.DocName)
	assert.Equal(t, "low", results[1].Chunk.DocName)
}

func TestSearch_TopKCap(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	var chunks []store.Chunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, chunk("doc", i, 1, 0))
	}
	source := &fakeSource{chunks: chunks}

	r := New(embedder, source, nil)
	results, err := r.Search(context.Background(), "q", 3, 0, true)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSearch_EmptyStore(t *testing.T) {
	r := New(&fakeEmbedder{vector: []float32{1, 0}}, &fakeSource{}, nil)

	results, err := r.Search(context.Background(), "q", 3, 0.5, true)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearch_TieBreakByNameThenIndex(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	source := &fakeSource{chunks: []store.Chunk{
		chunk("zeta", 0, 2, 0), // identical direction, identical similarity
		chunk("alpha", 1, 1, 0),
		chunk("alpha", 0, 3, 0),
	}}

	r := New(embedder, source, nil)
	results, err := r.Search(context.Background(), "q", 3, 0, true)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "alpha", results[0].Chunk.DocName)
	assert.Equal(t, 0, results[0].Chunk.Index)
	assert.Equal(t, "alpha", results[1].Chunk.DocName)
	assert.Equal(t, 1, results[1].Chunk.Index)
	assert.Equal(t, "zeta", results[2].Chunk.DocName)
}

func TestSearch_SkipsZeroNormAndMismatchedDims(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	source := &fakeSource{chunks: []store.Chunk{
		chunk("zero", 0, 0, 0),     // zero norm, undefined similarity
		chunk("odd", 0, 1, 0, 0),   // wrong dimension
		chunk("good", 0, 0.8, 0.6), // valid
	}}

	r := New(embedder, source, nil)
	results, err := r.Search(context.Background(), "q", 5, 0, true)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "good", results[0].Chunk.DocName)
}

func TestSearch_EmbedError(t *testing.T) {
	wantErr := errors.New("boom")
	r := New(&fakeEmbedder{err: wantErr}, &fakeSource{}, nil)

	_, err := r.Search(context.Background(), "q", 3, 0.5, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
}

func TestCosine(t *testing.T) {
	sim, ok := Cosine([]float32{1, 2, 3}, []float32{1, 2, 3})
	require.True(t, ok)
	assert.InDelta(t, 1.0, sim, 1e-9)

	sim, ok = Cosine([]float32{1, 0}, []float32{0, 1})
	require.True(t, ok)
	assert.InDelta(t, 0.0, sim, 1e-9)

	sim, ok = Cosine([]float32{1, 0}, []float32{-1, 0})
	require.True(t, ok)
	assert.InDelta(t, -1.0, sim, 1e-9)

	_, ok = Cosine([]float32{0, 0}, []float32{1, 2})
	assert.False(t, ok)
}

func TestCosine_Normalization(t *testing.T) {
	// Magnitude must not affect the similarity.
	a := []float32{3, 4}
	b := []float32{30, 40}
	sim, ok := Cosine(a, b)
	require.True(t, ok)
	assert.InDelta(t, 1.0, sim, 1e-9)

	angle := math.Acos(sim)
	assert.InDelta(t, 0.0, angle, 1e-4)
}
