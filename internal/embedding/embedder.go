package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"multirag/internal/domain"
)

// Guard wraps an Embedder and enforces a single vector dimension per session.
// Every error it returns is an EmbeddingFailed failure.
type Guard struct {
	inner domain.Embedder

	mu        sync.Mutex
	dimension int
}

// NewGuard wraps inner.
func NewGuard(inner domain.Embedder) *Guard {
	return &Guard{inner: inner}
}

// Name returns the wrapped embedder's name.
func (g *Guard) Name() string { return g.inner.Name() }

// Prepare prepares the wrapped embedder and resets the expected dimension.
func (g *Guard) Prepare(ctx context.Context, corpus []string) error {
	if err := g.inner.Prepare(ctx, corpus); err != nil {
		return domain.EmbeddingFailed(fmt.Errorf("%s prepare: %w", g.inner.Name(), err))
	}
	g.mu.Lock()
	g.dimension = g.inner.Dimension()
	g.mu.Unlock()
	return nil
}

// Dimension returns the fixed dimension, or 0 before the first vector of a remote model.
func (g *Guard) Dimension() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dimension
}

// Embed embeds text and rejects empty, non-finite or mismatched vectors.
func (g *Guard) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.EmbeddingFailed(err)
	}
	vec, err := g.inner.Embed(ctx, text)
	if err != nil {
		return nil, domain.EmbeddingFailed(fmt.Errorf("%s: %w", g.inner.Name(), err))
	}
	if len(vec) == 0 {
		return nil, domain.EmbeddingFailed(errors.New("empty embedding"))
	}
	for _, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, domain.EmbeddingFailed(errors.New("embedding contains non-finite values"))
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.dimension == 0 {
		g.dimension = len(vec)
	}
	if len(vec) != g.dimension {
		return nil, domain.EmbeddingFailed(fmt.Errorf("vector dimension mismatch: got %d, want %d", len(vec), g.dimension))
	}
	return vec, nil
}
