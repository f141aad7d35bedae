// Package cohere generates answers with Cohere's /generate endpoint.
package cohere

import (
	"context"
	"errors"

	"multirag/internal/cohere"
)

type Generator struct {
	client *cohere.Client
	model  string
}

func NewGenerator(client *cohere.Client, model string) *Generator {
	if model == "" {
		model = "command"
	}
	return &Generator{client: client, model: model}
}

func (g *Generator) Name() string { return "cohere:" + g.model }

type generateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Generations []struct {
		Text string `json:"text"`
	} `json:"generations"`
}

// Generate runs prompt at temperature 0.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	var out generateResponse
	if err := g.client.Post(ctx, "/generate", generateRequest{Model: g.model, Prompt: prompt}, &out); err != nil {
		return "", err
	}
	if len(out.Generations) == 0 {
		return "", errors.New("cohere returned no generations")
	}
	return out.Generations[0].Text, nil
}
