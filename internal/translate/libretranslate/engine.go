// Package libretranslate calls a LibreTranslate server, which runs the
// installed Argos packages.
package libretranslate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
)

type Config struct {
	URL       string
	APIKeyEnv string
	Timeout   time.Duration
}

type Engine struct {
	url    string
	apiKey string
	client *http.Client
}

// NewEngine builds an engine for cfg.URL. The API key is optional.
func NewEngine(cfg Config) *Engine {
	if cfg.URL == "" {
		cfg.URL = "http://localhost:5000"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	var key string
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	return &Engine{url: cfg.URL, apiKey: key, client: &http.Client{Timeout: cfg.Timeout}}
}

type request struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type response struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error"`
}

func (e *Engine) Translate(ctx context.Context, text, from, to string) (string, error) {
	data, err := json.Marshal(request{Q: text, Source: from, Target: to, Format: "text", APIKey: e.apiKey})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url+"/translate", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out response
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode >= 300 {
		if out.Error != "" {
			return "", fmt.Errorf("libretranslate: %s: %s", resp.Status, out.Error)
		}
		return "", fmt.Errorf("libretranslate: %s", resp.Status)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("libretranslate: decode response: %w", decodeErr)
	}
	if out.TranslatedText == "" && text != "" {
		return "", errors.New("libretranslate: empty translation")
	}
	return out.TranslatedText, nil
}
