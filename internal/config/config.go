package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"multirag/internal/domain"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// OllamaConfig points at an Ollama server.
type OllamaConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// CohereConfig configures Cohere REST access.
type CohereConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type        string                `yaml:"type"`
	Concurrency int                   `yaml:"concurrency"`
	OpenAI      *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Ollama      *OllamaConfig         `yaml:"ollama,omitempty"`
	Cohere      *CohereConfig         `yaml:"cohere,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type         string `yaml:"type"`
	MaxChars     int    `yaml:"max_chars"`
	OverlapChars int    `yaml:"overlap_chars"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Bolt   *BoltConfig   `yaml:"bolt,omitempty"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// BoltConfig places the local vector database.
type BoltConfig struct {
	Path  string `yaml:"path"`
	Table string `yaml:"table"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// TranslatorConfig configures package resolution, installation and the translation engine.
type TranslatorConfig struct {
	IndexURL    string `yaml:"index_url"`
	PackagesDir string `yaml:"packages_dir"`
	EngineURL   string `yaml:"engine_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	// InstallSecs bounds one package download and unpack, independent of the
	// request that triggered it.
	InstallSecs int `yaml:"install_secs"`
}

// GeneratorConfig selects the answer generation model.
type GeneratorConfig struct {
	Type   string        `yaml:"type"`
	Cohere *CohereConfig `yaml:"cohere,omitempty"`
	Ollama *OllamaConfig `yaml:"ollama,omitempty"`
}

// SynthesizerConfig selects how answers are produced from retrieved chunks.
type SynthesizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// RetrievalConfig configures nearest neighbour search.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// TimeoutsConfig bounds every external stage, in seconds. Zero selects the
// default; a negative value disables the bound.
type TimeoutsConfig struct {
	IngestSecs     int `yaml:"ingest_secs"`
	TranslateSecs  int `yaml:"translate_secs"`
	RetrieveSecs   int `yaml:"retrieve_secs"`
	SynthesizeSecs int `yaml:"synthesize_secs"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Translator  TranslatorConfig  `yaml:"translator"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Synthesizer SynthesizerConfig `yaml:"synthesizer"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Timeouts    TimeoutsConfig    `yaml:"timeouts"`
	Log         LogConfig         `yaml:"log"`
	Languages   map[string]string `yaml:"languages"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/multirag/config.yaml.
// If neither exists, it writes defaults to ~/.config/multirag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the built-in configuration.
func Default() *AppConfig { return defaultConfig() }

// Timeout converts a seconds setting into a duration. Values <= 0 yield zero,
// which consumers read as "no bound" for stages and "use the default" for clients.
func Timeout(secs int) time.Duration {
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// Total is the worst-case duration of one question, with translation counted
// for both legs. It is zero when any stage is unbounded.
func (t TimeoutsConfig) Total() time.Duration {
	for _, secs := range []int{t.IngestSecs, t.TranslateSecs, t.RetrieveSecs, t.SynthesizeSecs} {
		if secs <= 0 {
			return 0
		}
	}
	return Timeout(t.IngestSecs + 2*t.TranslateSecs + t.RetrieveSecs + t.SynthesizeSecs)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "multirag", "config.yaml"), nil
}

// argosPackagesDir mirrors argos-translate's package data dir so that a
// LibreTranslate engine on the same host loads what the installer unpacks.
func argosPackagesDir() string {
	if dir := os.Getenv("ARGOS_PACKAGES_DIR"); dir != "" {
		return dir
	}
	data := os.Getenv("XDG_DATA_HOME")
	if data == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "argos-translate", "packages")
		}
		data = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(data, "argos-translate", "packages")
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "tfidf"},
		Chunker:     ChunkerConfig{Type: "recursive"},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Generator:   GeneratorConfig{Type: "none"},
		Synthesizer: SynthesizerConfig{Type: "extractive"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Embedder.Concurrency <= 0 {
		cfg.Embedder.Concurrency = 4
	}
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "recursive"
	}
	if cfg.Chunker.MaxChars == 0 {
		cfg.Chunker.MaxChars = 300
	}
	if cfg.Chunker.OverlapChars == 0 {
		cfg.Chunker.OverlapChars = 50
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.Synthesizer.Type == "" {
		cfg.Synthesizer.Type = "extractive"
	}
	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "none"
	}
	if cfg.Synthesizer.MaxSentences == 0 {
		cfg.Synthesizer.MaxSentences = 2
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.Timeouts.IngestSecs == 0 {
		cfg.Timeouts.IngestSecs = 120
	}
	if cfg.Timeouts.TranslateSecs == 0 {
		cfg.Timeouts.TranslateSecs = 300
	}
	if cfg.Timeouts.RetrieveSecs == 0 {
		cfg.Timeouts.RetrieveSecs = 30
	}
	if cfg.Timeouts.SynthesizeSecs == 0 {
		cfg.Timeouts.SynthesizeSecs = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = DefaultLanguages()
	}

	t := &cfg.Translator
	if t.IndexURL == "" {
		t.IndexURL = "https://raw.githubusercontent.com/argosopentech/argospm-index/main/index.json"
	}
	if t.PackagesDir == "" {
		t.PackagesDir = argosPackagesDir()
	}
	if t.EngineURL == "" {
		t.EngineURL = "http://localhost:5000"
	}
	if t.TimeoutSecs == 0 {
		t.TimeoutSecs = 60
	}
	if t.InstallSecs == 0 {
		t.InstallSecs = 600
	}

	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
	if cfg.Embedder.Type == "cohere" {
		cfg.Embedder.Cohere = cohereDefaults(cfg.Embedder.Cohere, "multilingual-22-12")
	}
	if cfg.Generator.Type == "cohere" {
		cfg.Generator.Cohere = cohereDefaults(cfg.Generator.Cohere, "command")
	}
	if cfg.Embedder.Type == "ollama" {
		cfg.Embedder.Ollama = ollamaDefaults(cfg.Embedder.Ollama, "nomic-embed-text")
	}
	if cfg.Generator.Type == "ollama" {
		cfg.Generator.Ollama = ollamaDefaults(cfg.Generator.Ollama, "llama3.1")
	}
	if cfg.VectorStore.Type == "bolt" {
		if cfg.VectorStore.Bolt == nil {
			cfg.VectorStore.Bolt = &BoltConfig{}
		}
		if cfg.VectorStore.Bolt.Path == "" {
			cfg.VectorStore.Bolt.Path = filepath.Join(os.TempDir(), "multirag", "vectors.db")
		}
		if cfg.VectorStore.Bolt.Table == "" {
			cfg.VectorStore.Bolt.Table = "multiling-rag"
		}
	}
}

func cohereDefaults(c *CohereConfig, model string) *CohereConfig {
	if c == nil {
		c = &CohereConfig{}
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://api.cohere.ai/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "COHERE_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 60
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 1.5
	}
	return c
}

func ollamaDefaults(c *OllamaConfig, model string) *OllamaConfig {
	if c == nil {
		c = &OllamaConfig{}
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 120
	}
	return c
}

// Validate checks selections and required settings. It never performs I/O.
func (c *AppConfig) Validate() error {
	if err := oneOf("embedder", c.Embedder.Type, "tfidf", "openai", "ollama", "cohere"); err != nil {
		return err
	}
	if c.Embedder.Type == "openai" && c.Embedder.OpenAI == nil {
		return domain.ConfigurationError("openai embedder config missing")
	}
	if err := oneOf("chunker", c.Chunker.Type, "recursive"); err != nil {
		return err
	}
	if c.Chunker.MaxChars < 0 || c.Chunker.OverlapChars < 0 {
		return domain.ConfigurationError("chunker sizes must not be negative")
	}
	if c.Chunker.OverlapChars >= c.Chunker.MaxChars {
		return domain.ConfigurationError("chunker overlap_chars (%d) must be smaller than max_chars (%d)", c.Chunker.OverlapChars, c.Chunker.MaxChars)
	}
	if err := oneOf("vector store", c.VectorStore.Type, "memory", "bolt", "qdrant"); err != nil {
		return err
	}
	if c.VectorStore.Type == "qdrant" && (c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "") {
		return domain.ConfigurationError("qdrant config missing")
	}
	if err := oneOf("synthesizer", c.Synthesizer.Type, "llm", "extractive"); err != nil {
		return err
	}
	if err := oneOf("generator", c.Generator.Type, "none", "cohere", "ollama"); err != nil {
		return err
	}
	if c.Synthesizer.Type == "llm" && c.Generator.Type == "none" {
		return domain.ConfigurationError("llm synthesizer requires a generator")
	}
	if c.Retrieval.TopK < 0 {
		return domain.ConfigurationError("retrieval top_k must not be negative")
	}
	return ValidateLanguages(c.Languages)
}

func oneOf(what, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return domain.ConfigurationError("unknown %s: %s", what, value)
}
