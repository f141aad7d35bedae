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

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3.1", body["model"])
		assert.Equal(t, false, body["stream"])
		opts, _ := body["options"].(map[string]any)
		assert.Equal(t, float64(0), opts["temperature"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.1","response":"Paris.","done":true}`))
	}))
	defer srv.Close()

	g, err := NewGenerator(srv.URL, "", 0)
	require.NoError(t, err)
	out, err := g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", out)
}

func TestGenerate_ModelMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'x' not found"}`))
	}))
	defer srv.Close()

	g, err := NewGenerator(srv.URL, "x", 0)
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), "prompt")
	assert.Error(t, err)
}
