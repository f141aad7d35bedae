package main

import (
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"multirag/internal/chunker"
	"multirag/internal/cohere"
	"multirag/internal/config"
	"multirag/internal/domain"
	cohereemb "multirag/internal/embedding/cohere"
	ollamaemb "multirag/internal/embedding/ollama"
	"multirag/internal/embedding/openai"
	"multirag/internal/embedding/tfidf"
	coherellm "multirag/internal/llm/cohere"
	ollamallm "multirag/internal/llm/ollama"
	"multirag/internal/loader"
	"multirag/internal/service"
	"multirag/internal/synthesizer"
	"multirag/internal/translate"
	"multirag/internal/translate/argos"
	"multirag/internal/translate/libretranslate"
	"multirag/internal/vectorstore"
	"multirag/internal/vectorstore/bolt"
	"multirag/internal/vectorstore/memory"
	"multirag/internal/vectorstore/qdrant"
)

type app struct {
	service *service.QAService
	db      *bbolt.DB
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

// assemble builds the pipeline from cfg. Configuration problems surface here,
// before any document is read.
func assemble(cfg *config.AppConfig, log *zap.Logger) (*app, error) {
	a := &app{}

	embedders, err := newEmbedderFactory(cfg)
	if err != nil {
		return nil, err
	}

	var ch domain.Chunker
	switch cfg.Chunker.Type {
	case "recursive":
		ch = chunker.NewRecursiveChunker(cfg.Chunker.MaxChars, cfg.Chunker.OverlapChars)
	default:
		return nil, domain.ConfigurationError("unknown chunker: %s", cfg.Chunker.Type)
	}

	var stores service.StoreFactory
	switch cfg.VectorStore.Type {
	case "memory":
		stores = func(string) (domain.VectorStore, error) { return memory.NewStorage(), nil }
	case "bolt":
		db, err := bolt.Open(cfg.VectorStore.Bolt.Path)
		if err != nil {
			return nil, domain.ConfigurationError("open vector database %s: %v", cfg.VectorStore.Bolt.Path, err)
		}
		a.db = db
		table := cfg.VectorStore.Bolt.Table
		stores = func(session string) (domain.VectorStore, error) {
			return bolt.NewStorage(db, table+"-"+session), nil
		}
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		collection := q.Collection
		if collection == "" {
			collection = "multiling-rag"
		}
		stores = func(session string) (domain.VectorStore, error) {
			return qdrant.NewStorage(qdrant.Config{
				URL:        q.URL,
				APIKey:     q.APIKey,
				Collection: collection + "-" + session,
				Timeout:    config.Timeout(q.TimeoutSecs),
			}), nil
		}
	default:
		return nil, domain.ConfigurationError("unknown vector store: %s", cfg.VectorStore.Type)
	}

	codes := make([]string, 0, len(cfg.Languages))
	for _, code := range cfg.Languages {
		codes = append(codes, code)
	}
	tcfg := cfg.Translator
	tr := translate.New(
		argos.NewIndex(tcfg.IndexURL, config.Timeout(tcfg.TimeoutSecs)),
		argos.NewInstaller(tcfg.PackagesDir, config.Timeout(tcfg.InstallSecs)),
		libretranslate.NewEngine(libretranslate.Config{
			URL:       tcfg.EngineURL,
			APIKeyEnv: tcfg.APIKeyEnv,
			Timeout:   config.Timeout(tcfg.TimeoutSecs),
		}),
		codes,
		log.Named("translate"),
		translate.WithInstallTimeout(config.Timeout(tcfg.InstallSecs)),
	)

	synth, err := newSynthesizer(cfg)
	if err != nil {
		return nil, err
	}

	a.service = service.NewQAService(service.Components{
		Loader:      loader.NewFileLoader(),
		Chunker:     ch,
		Embedders:   embedders,
		Stores:      stores,
		Translator:  tr,
		Synthesizer: synth,
		Arena:       vectorstore.NewArena(log.Named("arena")),
	}, service.Options{
		TopK:        cfg.Retrieval.TopK,
		Concurrency: cfg.Embedder.Concurrency,
		Languages:   cfg.Languages,
		Timeouts: service.Timeouts{
			Ingest:     config.Timeout(cfg.Timeouts.IngestSecs),
			Translate:  config.Timeout(cfg.Timeouts.TranslateSecs),
			Retrieve:   config.Timeout(cfg.Timeouts.RetrieveSecs),
			Synthesize: config.Timeout(cfg.Timeouts.SynthesizeSecs),
		},
	}, log.Named("qa"))
	log.Debug("pipeline assembled",
		zap.String("embedder", cfg.Embedder.Type),
		zap.String("store", cfg.VectorStore.Type),
		zap.String("synthesizer", cfg.Synthesizer.Type),
		zap.String("generator", cfg.Generator.Type))
	return a, nil
}

// newEmbedderFactory shares remote clients across sessions; tfidf learns a
// vocabulary per document and is created fresh each time.
func newEmbedderFactory(cfg *config.AppConfig) (service.EmbedderFactory, error) {
	switch cfg.Embedder.Type {
	case "tfidf":
		return func() (domain.Embedder, error) { return tfidf.NewEmbedder(), nil }, nil
	case "openai":
		o := cfg.Embedder.OpenAI
		client, err := openai.NewClient(openai.Config{
			BaseURL:   o.BaseURL,
			APIKeyEnv: o.APIKeyEnv,
			Model:     o.Model,
			Timeout:   config.Timeout(o.TimeoutSecs),
		})
		if err != nil {
			return nil, domain.ConfigurationError("openai embedder init failed: %v", err)
		}
		return shared(client), nil
	case "ollama":
		o := cfg.Embedder.Ollama
		emb, err := ollamaemb.NewEmbedder(o.BaseURL, o.Model, config.Timeout(o.TimeoutSecs))
		if err != nil {
			return nil, domain.ConfigurationError("ollama embedder init failed: %v", err)
		}
		return shared(emb), nil
	case "cohere":
		client, err := newCohereClient(cfg.Embedder.Cohere)
		if err != nil {
			return nil, err
		}
		return shared(cohereemb.NewEmbedder(client, cfg.Embedder.Cohere.Model)), nil
	default:
		return nil, domain.ConfigurationError("unknown embedder: %s", cfg.Embedder.Type)
	}
}

func shared(e domain.Embedder) service.EmbedderFactory {
	return func() (domain.Embedder, error) { return e, nil }
}

func newSynthesizer(cfg *config.AppConfig) (domain.Synthesizer, error) {
	switch cfg.Synthesizer.Type {
	case "extractive":
		return synthesizer.NewExtractive(cfg.Synthesizer.MaxSentences), nil
	case "llm":
		var gen domain.Generator
		switch cfg.Generator.Type {
		case "cohere":
			client, err := newCohereClient(cfg.Generator.Cohere)
			if err != nil {
				return nil, err
			}
			gen = coherellm.NewGenerator(client, cfg.Generator.Cohere.Model)
		case "ollama":
			o := cfg.Generator.Ollama
			g, err := ollamallm.NewGenerator(o.BaseURL, o.Model, config.Timeout(o.TimeoutSecs))
			if err != nil {
				return nil, domain.ConfigurationError("ollama generator init failed: %v", err)
			}
			gen = g
		default:
			return nil, domain.ConfigurationError("synthesizer llm needs a generator, got %q", cfg.Generator.Type)
		}
		return synthesizer.NewLLM(gen), nil
	default:
		return nil, domain.ConfigurationError("unknown synthesizer: %s", cfg.Synthesizer.Type)
	}
}

func newCohereClient(c *config.CohereConfig) (*cohere.Client, error) {
	client, err := cohere.NewClient(cohere.Config{
		BaseURL:           c.BaseURL,
		APIKeyEnv:         c.APIKeyEnv,
		Timeout:           config.Timeout(c.TimeoutSecs),
		RequestsPerSecond: c.RequestsPerSecond,
	})
	if err != nil {
		return nil, domain.ConfigurationError("cohere client: %v", err)
	}
	return client, nil
}
