package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailure_Is(t *testing.T) {
	tests := []struct {
		name string
		err  *Failure
		kind error
	}{
		{"ingest", IngestFailed(errors.New("empty")), ErrIngestFailed},
		{"embedding", EmbeddingFailed(errors.New("dim")), ErrEmbeddingFailed},
		{"retrieval", RetrievalFailed(errors.New("none")), ErrRetrievalFailed},
		{"translation", TranslationFailed(LanguagePair{From: "en", To: "fr"}, errors.New("x")), ErrTranslationFailed},
		{"configuration", ConfigurationError("unknown language %q", "Klingon"), ErrConfigurationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.err, tt.kind))
			assert.Equal(t, tt.kind, KindOf(tt.err))
			for _, other := range []error{ErrIngestFailed, ErrEmbeddingFailed, ErrRetrievalFailed, ErrTranslationFailed, ErrConfigurationError} {
				if other != tt.kind {
					assert.False(t, errors.Is(tt.err, other))
				}
			}
		})
	}
}

func TestFailure_ErrorIncludesPairAndCause(t *testing.T) {
	f := TranslationFailed(LanguagePair{From: "en", To: "fr"}, errors.New("package not found"))
	assert.Equal(t, "translation failed (en->fr): package not found", f.Error())
}

func TestFailure_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	wrapped := fmt.Errorf("stage: %w", RetrievalFailed(cause))

	f, ok := AsFailure(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrRetrievalFailed, f.Kind)
	assert.True(t, errors.Is(wrapped, cause))
}

func TestFailure_UserMessageHidesCause(t *testing.T) {
	f := IngestFailed(errors.New("open /tmp/secret.pdf: permission denied"))
	assert.NotContains(t, f.UserMessage(), "secret")
	assert.NotEmpty(t, f.UserMessage())
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Nil(t, KindOf(errors.New("plain")))
}
