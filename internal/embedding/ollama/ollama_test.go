package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req["model"])
		assert.Equal(t, "hello", req["input"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"nomic-embed-text","embeddings":[[0.25,0.5,1]]}`))
	}))
	defer srv.Close()

	e, err := NewEmbedder(srv.URL, "", 0)
	require.NoError(t, err)
	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.5, 1}, vec)
	assert.Equal(t, 3, e.Dimension())
}

func TestEmbed_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer srv.Close()

	e, err := NewEmbedder(srv.URL, "missing", 0)
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), "hello")
	assert.Error(t, err)
}

func TestToFloat64(t *testing.T) {
	assert.Equal(t, []float64{1, 2}, toFloat64([]float32{1, 2}))
}
