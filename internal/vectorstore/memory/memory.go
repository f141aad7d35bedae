package memory

import (
	"context"
	"sync"

	"multirag/internal/domain"
	"multirag/internal/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu     sync.RWMutex
	chunks []domain.EmbeddedChunk
}

func NewStorage() *Storage { return &Storage{} }

// Build replaces the stored chunks.
func (s *Storage) Build(ctx context.Context, chunks []domain.EmbeddedChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := vectorstore.CheckDimensions(chunks); !ok {
		return vectorstore.ErrDimensionMismatch
	}
	copied := make([]domain.EmbeddedChunk, len(chunks))
	copy(copied, chunks)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = copied
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return vectorstore.Rank(vector, s.chunks, topK)
}

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func (s *Storage) Drop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	return nil
}
