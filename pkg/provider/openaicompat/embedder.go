package openaicompat

import (
	"context"
	"fmt"
	"sync"

	"github.com/rhuss/lokal/pkg/api"
	"github.com/rhuss/lokal/pkg/provider"
)

// Embedder implements provider.Embedder against /v1/embeddings.
type Embedder struct {
	c *client

	mu   sync.RWMutex
	dims int
}

var _ provider.Embedder = (*Embedder)(nil)

// NewEmbedder creates an Embedder. dims may be 0, in which case the
// dimensionality is learned from the first response.
func NewEmbedder(cfg Config, dims int) (*Embedder, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Embedder{c: c, dims: dims}, nil
}

// Name returns "openai".
func (e *Embedder) Name() string { return "openai" }

// Dimensions returns the vector length, or 0 before the first call when it
// was not configured.
func (e *Embedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// Embed converts text into a vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch converts several texts in one request. Results are ordered by
// the index the backend reports.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp EmbeddingResponse
	req := EmbeddingRequest{Input: texts, Model: e.c.resolveModel("")}
	if err := e.c.post(ctx, "/v1/embeddings", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, api.NewProviderExecutionError(
			fmt.Sprintf("embedding response has %d vectors for %d inputs", len(resp.Data), len(texts)))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, api.NewProviderExecutionError(
				fmt.Sprintf("embedding response index %d out of range [0, %d)", d.Index, len(texts)))
		}
		vectors[d.Index] = d.Embedding
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i, v := range vectors {
		if e.dims == 0 {
			e.dims = len(v)
		}
		if len(v) != e.dims {
			return nil, api.NewProviderExecutionError(
				fmt.Sprintf("embedding %d has %d dimensions, want %d", i, len(v), e.dims))
		}
	}
	return vectors, nil
}

// Close releases idle connections.
func (e *Embedder) Close() error {
	e.c.close()
	return nil
}
