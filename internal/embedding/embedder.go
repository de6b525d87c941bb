package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

// ErrEmbeddingService indicates the embeddings endpoint failed after
// retries (network error, timeout or non-2xx response).
var ErrEmbeddingService = errors.New("embedding service failed")

// DefaultBatchSize bounds how many texts go into one request during
// ingestion, keeping request bodies small.
const DefaultBatchSize = 50

// Embedder generates embeddings for text with a fixed model. Requests
// carry an explicit timeout and retry transient failures with bounded
// exponential backoff.
type Embedder struct {
	client    *Client
	model     string
	batchSize int
	timeout   time.Duration
}

// NewEmbedder creates an Embedder. A batchSize of 0 selects
// DefaultBatchSize; a zero timeout disables the per-request deadline.
func NewEmbedder(client *Client, model string, batchSize int, timeout time.Duration) *Embedder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Embedder{
		client:    client,
		model:     model,
		batchSize: batchSize,
		timeout:   timeout,
	}
}

// Model returns the embedding model identifier in use.
func (e *Embedder) Model() string {
	return e.model
}

// Embed generates the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for the given texts, one request per
// batch, preserving input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var all [][]float32

	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		batch, err := e.embedWithRetry(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		all = append(all, batch...)
	}

	return all, nil
}

// embedWithRetry performs one embeddings request, retrying rate-limit
// and server errors with exponential backoff. The retry budget is
// bounded; other errors fail immediately.
func (e *Embedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		reqCtx := ctx
		if e.timeout > 0 {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, e.timeout)
			defer cancel()
		}

		resp, err := e.client.client.Embeddings.New(reqCtx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: e.model,
		})
		if err != nil {
			if isRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		if len(resp.Data) != len(texts) {
			return backoff.Permanent(fmt.Errorf("got %d vectors for %d texts", len(resp.Data), len(texts)))
		}

		vectors = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			vectors[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingService, err)
	}
	return vectors, nil
}

// isRetryable reports whether the error is worth retrying: rate limits
// and server-side failures.
func isRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

// toFloat32 converts []float64 to []float32. The API returns float64;
// the store keeps float32 for compactness.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
