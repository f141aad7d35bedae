// Package synthesizer turns a question and retrieved chunks into an answer.
package synthesizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"multirag/internal/domain"
)

// ErrEmptyContext is the cause reported when no chunks are supplied.
var ErrEmptyContext = errors.New("no context chunks")

// LLM stuffs every retrieved chunk into one prompt and asks the generator.
type LLM struct {
	gen domain.Generator
}

func NewLLM(gen domain.Generator) *LLM { return &LLM{gen: gen} }

// Prompt builds the context block followed by the literal question. The
// prompt carries nothing besides the retrieved context to answer from.
func Prompt(question string, chunks []domain.Chunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, "\n\n") + "\n\nQuestion: " + question
}

func (s *LLM) Synthesize(ctx context.Context, question string, chunks []domain.Chunk) (string, error) {
	if len(chunks) == 0 {
		return "", domain.RetrievalFailed(ErrEmptyContext)
	}
	raw, err := s.gen.Generate(ctx, Prompt(question, chunks))
	if err != nil {
		return "", domain.RetrievalFailed(fmt.Errorf("%s: %w", s.gen.Name(), err))
	}
	return Clean(raw), nil
}

// Clean drops newlines and the "Answer:" label from raw model output.
func Clean(raw string) string {
	out := strings.ReplaceAll(raw, "\r", "")
	out = strings.ReplaceAll(out, "\n", "")
	out = strings.ReplaceAll(out, "Answer:", "")
	return strings.TrimSpace(out)
}
