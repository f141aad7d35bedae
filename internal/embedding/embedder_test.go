package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multirag/internal/domain"
)

type fakeEmbedder struct {
	dim     int
	vectors map[string][]float64
	err     error
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) Prepare(ctx context.Context, corpus []string) error { return f.err }

func (f *fakeEmbedder) Dimension() int { return f.dim }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[text], nil
}

func TestGuard_FixesDimensionOnFirstVector(t *testing.T) {
	g := NewGuard(&fakeEmbedder{vectors: map[string][]float64{
		"a": {1, 0},
		"b": {0, 1},
		"c": {1, 1, 1},
	}})
	ctx := context.Background()
	require.NoError(t, g.Prepare(ctx, []string{"a"}))
	assert.Equal(t, 0, g.Dimension())

	_, err := g.Embed(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, g.Dimension())

	_, err = g.Embed(ctx, "b")
	require.NoError(t, err)

	_, err = g.Embed(ctx, "c")
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)
}

func TestGuard_RejectsInvalidVectors(t *testing.T) {
	g := NewGuard(&fakeEmbedder{vectors: map[string][]float64{
		"nan": {math.NaN()},
		"inf": {math.Inf(1)},
	}})
	for _, text := range []string{"nan", "inf", "empty"} {
		_, err := g.Embed(context.Background(), text)
		assert.ErrorIs(t, err, domain.ErrEmbeddingFailed, text)
	}
}

func TestGuard_WrapsInnerErrors(t *testing.T) {
	boom := errors.New("boom")
	g := NewGuard(&fakeEmbedder{err: boom})

	err := g.Prepare(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)
	assert.ErrorIs(t, err, boom)

	_, err = g.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)
	assert.ErrorIs(t, err, boom)
}

func TestGuard_PrepareTakesInnerDimension(t *testing.T) {
	g := NewGuard(&fakeEmbedder{dim: 3, vectors: map[string][]float64{"a": {1, 0}}})
	require.NoError(t, g.Prepare(context.Background(), nil))
	assert.Equal(t, 3, g.Dimension())

	_, err := g.Embed(context.Background(), "a")
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)
}

func TestGuard_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGuard(&fakeEmbedder{}).Embed(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)
	assert.ErrorIs(t, err, context.Canceled)
}
