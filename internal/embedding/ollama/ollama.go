package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
)

// Embedder embeds text with a local Ollama model.
type Embedder struct {
	client *api.Client
	model  string

	mu        sync.Mutex
	dimension int
}

// NewEmbedder connects to the Ollama server at baseURL.
// An empty baseURL means http://localhost:11434.
func NewEmbedder(baseURL, model string, timeout time.Duration) (*Embedder, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	return &Embedder{
		client: api.NewClient(u, &http.Client{Timeout: timeout}),
		model:  model,
	}, nil
}

func (e *Embedder) Name() string { return "ollama" }

func (e *Embedder) Prepare(ctx context.Context, corpus []string) error { return nil }

func (e *Embedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimension
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, errors.New("no embeddings returned")
	}
	v := toFloat64(resp.Embeddings[0])
	e.mu.Lock()
	if e.dimension == 0 {
		e.dimension = len(v)
	}
	e.mu.Unlock()
	return v, nil
}

func toFloat64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
