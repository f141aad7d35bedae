// Package argos resolves and installs Argos Translate packages from the
// argospm package index.
package argos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"multirag/internal/domain"
	"multirag/internal/translate"
)

const DefaultIndexURL = "https://raw.githubusercontent.com/argosopentech/argospm-index/main/index.json"

type entry struct {
	FromCode       string   `json:"from_code"`
	ToCode         string   `json:"to_code"`
	PackageVersion string   `json:"package_version"`
	Links          []string `json:"links"`
}

// Index fetches the package index once per process and serves lookups from memory.
type Index struct {
	url    string
	client *http.Client

	mu      sync.Mutex
	entries []entry
	loaded  bool
}

func NewIndex(url string, timeout time.Duration) *Index {
	if url == "" {
		url = DefaultIndexURL
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Index{url: url, client: &http.Client{Timeout: timeout}}
}

// Lookup returns the package for pair, fetching the index on first use.
func (x *Index) Lookup(ctx context.Context, pair domain.LanguagePair) (translate.Package, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.loaded {
		entries, err := x.fetch(ctx)
		if err != nil {
			return translate.Package{}, err
		}
		x.entries = entries
		x.loaded = true
	}
	for _, e := range x.entries {
		if e.FromCode == pair.From && e.ToCode == pair.To {
			return translate.Package{From: e.FromCode, To: e.ToCode, Version: e.PackageVersion, Links: e.Links}, nil
		}
	}
	return translate.Package{}, fmt.Errorf("%w: %s", translate.ErrPackageNotFound, pair)
}

// Refresh forgets the cached index so the next lookup re-fetches it.
func (x *Index) Refresh() {
	x.mu.Lock()
	x.loaded = false
	x.entries = nil
	x.mu.Unlock()
}

func (x *Index) fetch(ctx context.Context) ([]entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, x.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := x.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch package index: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch package index: %s", resp.Status)
	}
	var entries []entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode package index: %w", err)
	}
	return entries, nil
}
