package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"multirag/internal/domain"
	"multirag/internal/vectorstore"
)

// Storage is a minimal REST client to Qdrant.
// It assumes cosine distance and owns one collection per session.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu    sync.RWMutex
	count int
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Build drops the collection, recreates it for the chunks' dimension and upserts every point.
func (s *Storage) Build(ctx context.Context, chunks []domain.EmbeddedChunk) error {
	dimension, ok := vectorstore.CheckDimensions(chunks)
	if !ok {
		return errors.New("vector dimension mismatch")
	}
	if err := s.Drop(ctx); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil); err != nil {
		return err
	}
	points := make([]map[string]any, len(chunks))
	for i, ec := range chunks {
		payload := map[string]any{
			"document_id": ec.Chunk.DocumentID,
			"chunk_id":    ec.Chunk.ChunkID,
			"index":       ec.Chunk.Index,
			"text":        ec.Chunk.Text,
		}
		if sp := ec.Chunk.Span; sp != nil {
			payload["start_page"] = sp.StartPage
			payload["end_page"] = sp.EndPage
			payload["offset"] = sp.Offset
		}
		// Point ids must be unsigned integers or UUIDs; the position doubles as the tie-break key.
		points[i] = map[string]any{"id": i, "vector": ec.Vector, "payload": payload}
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil); err != nil {
		return err
	}
	s.mu.Lock()
	s.count = len(chunks)
	s.mu.Unlock()
	return nil
}

type point struct {
	ID      uint64         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	if s.Len() == 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []point `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	// Qdrant does not promise an order among equal scores.
	sortStable(resp.Result)
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.SearchResult{Chunk: chunkFromPayload(r.Payload), Score: r.Score})
	}
	return results, nil
}

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Drop deletes the collection. A missing collection is not an error.
func (s *Storage) Drop(ctx context.Context) error {
	err := s.do(ctx, http.MethodDelete, s.collectionURL(""), nil, nil)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		err = nil
	}
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.count = 0
	s.mu.Unlock()
	return nil
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

type statusError struct {
	method, url string
	code        int
	status      string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %s", e.method, e.url, e.status)
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &statusError{method: method, url: url, code: resp.StatusCode, status: resp.Status}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func sortStable(points []point) {
	// insertion sort: result sets are at most topK long
	for i := 1; i < len(points); i++ {
		for j := i; j > 0 && less(points[j], points[j-1]); j-- {
			points[j], points[j-1] = points[j-1], points[j]
		}
	}
}

func less(a, b point) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}

func chunkFromPayload(p map[string]any) domain.Chunk {
	chunk := domain.Chunk{}
	if v, ok := p["document_id"].(string); ok {
		chunk.DocumentID = v
	}
	if v, ok := p["chunk_id"].(string); ok {
		chunk.ChunkID = v
	}
	if v, ok := p["index"].(float64); ok {
		chunk.Index = int(v)
	}
	if v, ok := p["text"].(string); ok {
		chunk.Text = v
	}
	if start, ok := p["start_page"].(float64); ok {
		sp := &domain.Span{StartPage: int(start)}
		if v, ok := p["end_page"].(float64); ok {
			sp.EndPage = int(v)
		}
		if v, ok := p["offset"].(float64); ok {
			sp.Offset = int(v)
		}
		chunk.Span = sp
	}
	return chunk
}
