// Package ollama generates answers with a local Ollama model.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

type Generator struct {
	client *api.Client
	model  string
}

// NewGenerator connects to baseURL, defaulting to http://localhost:11434.
func NewGenerator(baseURL, model string, timeout time.Duration) (*Generator, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.1"
	}
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	return &Generator{client: api.NewClient(u, &http.Client{Timeout: timeout}), model: model}, nil
}

func (g *Generator) Name() string { return "ollama:" + g.model }

// Generate runs prompt without streaming at temperature 0.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	var b strings.Builder
	err := g.client.Generate(ctx, &api.GenerateRequest{
		Model:   g.model,
		Prompt:  prompt,
		Stream:  &stream,
		Options: map[string]any{"temperature": 0},
	}, func(resp api.GenerateResponse) error {
		b.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return b.String(), nil
}
