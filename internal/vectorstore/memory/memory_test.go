package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multirag/internal/domain"
	"multirag/internal/vectorstore"
)

func embedded(id string, vec ...float64) domain.EmbeddedChunk {
	return domain.EmbeddedChunk{Chunk: domain.Chunk{ChunkID: id, Text: id}, Vector: vec}
}

func ids(results []domain.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Chunk.ChunkID
	}
	return out
}

func TestSearch_SelfMatchFirst(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Build(ctx, []domain.EmbeddedChunk{
		embedded("a", 1, 0, 0),
		embedded("b", 0, 1, 0),
		embedded("c", 0, 0, 1),
	}))

	res, err := s.Search(ctx, []float64{0, 2, 0}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "b", res[0].Chunk.ChunkID)
	assert.InDelta(t, 1.0, res[0].Score, 1e-9)
}

func TestSearch_KBounds(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	chunks := make([]domain.EmbeddedChunk, 6)
	for i := range chunks {
		chunks[i] = embedded(fmt.Sprint(i), 1, float64(i))
	}
	require.NoError(t, s.Build(ctx, chunks))

	res, err := s.Search(ctx, []float64{1, 0}, 0)
	require.NoError(t, err)
	assert.Len(t, res, 4)

	res, err = s.Search(ctx, []float64{1, 0}, 100)
	require.NoError(t, err)
	assert.Len(t, res, 6)
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Build(ctx, []domain.EmbeddedChunk{
		embedded("first", 1, 0),
		embedded("other", 0, 1),
		embedded("second", 2, 0),
		embedded("third", 3, 0),
	}))

	res, err := s.Search(ctx, []float64{1, 0}, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third", "other"}, ids(res))
}

func TestBuild_Overwrites(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Build(ctx, []domain.EmbeddedChunk{embedded("old", 1, 0)}))
	require.NoError(t, s.Build(ctx, []domain.EmbeddedChunk{embedded("new1", 1, 0), embedded("new2", 0, 1)}))
	assert.Equal(t, 2, s.Len())

	res, err := s.Search(ctx, []float64{1, 0}, 10)
	require.NoError(t, err)
	assert.NotContains(t, ids(res), "old")
}

func TestBuild_DimensionMismatch(t *testing.T) {
	err := NewStorage().Build(context.Background(), []domain.EmbeddedChunk{
		embedded("a", 1, 0),
		embedded("b", 1, 0, 0),
	})
	assert.Error(t, err)
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Build(ctx, []domain.EmbeddedChunk{embedded("a", 1, 0)}))

	_, err := s.Search(ctx, []float64{1, 0, 0}, 1)
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
	_, err = s.Search(ctx, []float64{1}, 1)
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
}

func TestDrop(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Build(ctx, []domain.EmbeddedChunk{embedded("a", 1)}))
	require.NoError(t, s.Drop(ctx))
	assert.Zero(t, s.Len())
}
