package cohere

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multirag/internal/cohere"
)

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"bonjour"}, req.Texts)
		assert.Equal(t, "multilingual-22-12", req.Model)
		assert.Equal(t, "END", req.Truncate)
		_, _ = w.Write([]byte(`{"embeddings":[[0.5,0.5]]}`))
	}))
	defer srv.Close()

	t.Setenv("TEST_COHERE_KEY", "k")
	client, err := cohere.NewClient(cohere.Config{BaseURL: srv.URL, APIKeyEnv: "TEST_COHERE_KEY", RequestsPerSecond: 100})
	require.NoError(t, err)

	e := NewEmbedder(client, "")
	vec, err := e.Embed(context.Background(), "bonjour")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5}, vec)
	assert.Equal(t, 2, e.Dimension())
}

func TestEmbed_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[]}`))
	}))
	defer srv.Close()

	t.Setenv("TEST_COHERE_KEY", "k")
	client, err := cohere.NewClient(cohere.Config{BaseURL: srv.URL, APIKeyEnv: "TEST_COHERE_KEY", RequestsPerSecond: 100})
	require.NoError(t, err)

	_, err = NewEmbedder(client, "").Embed(context.Background(), "x")
	assert.Error(t, err)
}
