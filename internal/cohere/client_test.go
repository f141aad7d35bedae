package cohere

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	t.Setenv("TEST_COHERE_KEY", "k")
	c, err := NewClient(Config{BaseURL: url, APIKeyEnv: "TEST_COHERE_KEY", RequestsPerSecond: 1000, MaxRetries: 2})
	require.NoError(t, err)
	return c
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("TEST_COHERE_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "TEST_COHERE_KEY"})
	assert.Error(t, err)
}

func TestPost_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, newTestClient(t, srv.URL).Post(context.Background(), "/x", map[string]string{}, &out))
	assert.True(t, out.OK)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPost_ClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"bad model"}`))
	}))
	defer srv.Close()

	var out map[string]any
	err := newTestClient(t, srv.URL).Post(context.Background(), "/x", nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad model")
}

func TestPost_Canceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out map[string]any
	err := newTestClient(t, srv.URL).Post(ctx, "/x", nil, &out)
	assert.ErrorIs(t, err, context.Canceled)
}
