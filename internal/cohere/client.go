// Package cohere is a minimal REST client for the Cohere v1 API, shared by
// the embedding and generation adapters.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Config configures the Cohere client.
type Config struct {
	BaseURL           string
	APIKeyEnv         string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxRetries        int
}

// Client posts JSON to Cohere endpoints under a shared token bucket.
type Client struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

// NewClient reads the API key from cfg.APIKeyEnv and applies defaults.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "COHERE_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cohere.ai/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1.5
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     key,
		client:     &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		maxRetries: cfg.MaxRetries,
	}, nil
}

// Post sends body to path and decodes the JSON response into out.
// 429 and 5xx responses are retried after the Retry-After delay or a backoff.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	url := c.baseURL + path
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if err := sleep(ctx, backoff(attempt)); err != nil {
				return err
			}
			continue
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("cohere %s: %s", path, resp.Status)
			delay := backoff(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					delay = time.Duration(secs) * time.Second
				}
			}
			if err := sleep(ctx, delay); err != nil {
				return err
			}
			continue
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("cohere %s: %s: %s", path, resp.Status, bytes.TrimSpace(payload))
		}
		if readErr != nil {
			return readErr
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("cohere %s: decode response: %w", path, err)
		}
		return nil
	}
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoff(attempt int) time.Duration {
	d := 500 * time.Millisecond << attempt
	if d > 8*time.Second {
		d = 8 * time.Second
	}
	return d
}
