package cohere

import (
	"context"
	"errors"
	"sync"

	"multirag/internal/cohere"
)

// Embedder calls Cohere's /embed endpoint. The default model is multilingual,
// so chunks and questions embed into a shared space regardless of language.
type Embedder struct {
	client *cohere.Client
	model  string

	mu        sync.Mutex
	dimension int
}

func NewEmbedder(client *cohere.Client, model string) *Embedder {
	if model == "" {
		model = "multilingual-22-12"
	}
	return &Embedder{client: client, model: model}
}

func (e *Embedder) Name() string { return "cohere" }

func (e *Embedder) Prepare(ctx context.Context, corpus []string) error { return nil }

func (e *Embedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimension
}

type embedRequest struct {
	Texts    []string `json:"texts"`
	Model    string   `json:"model"`
	Truncate string   `json:"truncate"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	var out embedResponse
	req := embedRequest{Texts: []string{text}, Model: e.model, Truncate: "END"}
	if err := e.client.Post(ctx, "/embed", req, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, errors.New("no embedding returned")
	}
	v := out.Embeddings[0]
	e.mu.Lock()
	if e.dimension == 0 {
		e.dimension = len(v)
	}
	e.mu.Unlock()
	return v, nil
}
