package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"multirag/internal/config"
	"multirag/internal/domain"
	"multirag/internal/embedding"
	"multirag/internal/vectorstore"
)

// EmbedderFactory returns the embedder for one session. Stateful embedders
// such as tfidf must return a fresh instance per call.
type EmbedderFactory func() (domain.Embedder, error)

// StoreFactory returns an empty vector store for session.
type StoreFactory func(session string) (domain.VectorStore, error)

// Timeouts bound each external stage. Zero means no stage deadline.
type Timeouts struct {
	Ingest     time.Duration
	Translate  time.Duration
	Retrieve   time.Duration
	Synthesize time.Duration
}

type Options struct {
	TopK        int
	Concurrency int
	Languages   map[string]string
	Timeouts    Timeouts
}

// Components are the pipeline's collaborators.
type Components struct {
	Loader      domain.Loader
	Chunker     domain.Chunker
	Embedders   EmbedderFactory
	Stores      StoreFactory
	Translator  domain.Translator
	Synthesizer domain.Synthesizer
	Arena       *vectorstore.Arena
}

// QAService answers questions about one document per request, pivoting
// through English.
type QAService struct {
	c    Components
	opts Options
	log  *zap.Logger
}

func NewQAService(c Components, opts Options, log *zap.Logger) *QAService {
	if log == nil {
		log = zap.NewNop()
	}
	if c.Arena == nil {
		c.Arena = vectorstore.NewArena(log)
	}
	if opts.TopK <= 0 {
		opts.TopK = vectorstore.DefaultTopK
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Languages == nil {
		opts.Languages = config.DefaultLanguages()
	}
	return &QAService{c: c, opts: opts, log: log}
}

type session struct {
	id       string
	chunks   []domain.Chunk
	embedder domain.Embedder
}

type run struct {
	log   *zap.Logger
	res   *domain.QAResult
	start time.Time
}

func (r *run) done(stage domain.StageName) {
	d := time.Since(r.start)
	r.res.Stages = append(r.res.Stages, domain.Stage{Name: stage, Duration: d})
	r.log.Info("stage complete", zap.String("stage", string(stage)), zap.Duration("took", d))
	r.start = time.Now()
}

func (r *run) fail(stage domain.StageName, err error, wrap func(error) *domain.Failure) error {
	f, ok := domain.AsFailure(err)
	if !ok {
		f = wrap(err)
	}
	if f.Stage == "" {
		f.Stage = stage
	}
	r.log.Warn("pipeline failed",
		zap.String("stage", string(stage)),
		zap.String("kind", f.Kind.Error()),
		zap.Error(f.Cause))
	return f
}

// Ask runs ingest, index, translate-in, retrieve+synthesize and translate-out.
// On failure the returned result holds whatever was produced before the
// failing stage, and the error is a *domain.Failure.
func (s *QAService) Ask(ctx context.Context, req domain.QARequest) (domain.QAResult, error) {
	res := domain.QAResult{SessionID: uuid.NewString()}
	r := &run{log: s.log.With(zap.String("session", res.SessionID)), res: &res, start: time.Now()}

	inCode, err := config.LanguageCode(s.opts.Languages, req.InputLanguage)
	if err != nil {
		return res, err
	}
	outCode, err := config.LanguageCode(s.opts.Languages, req.OutputLanguage)
	if err != nil {
		return res, err
	}
	if strings.TrimSpace(req.Question) == "" {
		return res, domain.ConfigurationError("question is empty")
	}
	r.log.Info("question received",
		zap.String("path", req.Path),
		zap.String("from", inCode),
		zap.String("to", outCode))

	sess, err := s.index(ctx, r, req.Path, res.SessionID)
	if err != nil {
		return res, err
	}
	defer s.c.Arena.Close(context.WithoutCancel(ctx), sess.id)

	inPair := domain.LanguagePair{From: inCode, To: domain.PivotCode}
	question, err := s.translate(ctx, req.Question, inPair)
	if err != nil {
		return res, r.fail(domain.StageTranslatedIn, err, translationFailure(inPair))
	}
	res.EnglishQuestion = question
	r.done(domain.StageTranslatedIn)

	sources, err := s.retrieve(ctx, sess, question)
	if err != nil {
		return res, r.fail(domain.StageAnswered, err, domain.RetrievalFailed)
	}
	res.Sources = sources

	answer, err := s.synthesize(ctx, question, sources)
	if err != nil {
		return res, r.fail(domain.StageAnswered, err, domain.RetrievalFailed)
	}
	res.EnglishAnswer = answer
	r.done(domain.StageAnswered)

	outPair := domain.LanguagePair{From: domain.PivotCode, To: outCode}
	final, err := s.translate(ctx, answer, outPair)
	if err != nil {
		return res, r.fail(domain.StageTranslatedOut, err, translationFailure(outPair))
	}
	res.Answer = final
	r.done(domain.StageTranslatedOut)
	r.done(domain.StageDone)
	return res, nil
}

func translationFailure(pair domain.LanguagePair) func(error) *domain.Failure {
	return func(err error) *domain.Failure { return domain.TranslationFailed(pair, err) }
}

func (s *QAService) index(ctx context.Context, r *run, path, id string) (*session, error) {
	if err := ctx.Err(); err != nil {
		return nil, r.fail(domain.StageIngested, err, domain.IngestFailed)
	}
	ictx, cancel := withTimeout(ctx, s.opts.Timeouts.Ingest)
	defer cancel()

	doc, err := s.c.Loader.Load(ictx, path)
	if err != nil {
		return nil, r.fail(domain.StageIngested, err, domain.IngestFailed)
	}
	chunks, err := s.c.Chunker.Chunk(doc)
	if err != nil {
		return nil, r.fail(domain.StageIngested, err, domain.IngestFailed)
	}
	if len(chunks) == 0 {
		return nil, r.fail(domain.StageIngested, errors.New("document contains no text"), domain.IngestFailed)
	}
	r.log.Debug("document chunked", zap.String("document", doc.ID), zap.Int("chunks", len(chunks)))
	r.done(domain.StageIngested)

	inner, err := s.c.Embedders()
	if err != nil {
		return nil, r.fail(domain.StageIndexed, err, domain.EmbeddingFailed)
	}
	emb := embedding.NewGuard(inner)
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	if err := emb.Prepare(ictx, texts); err != nil {
		return nil, r.fail(domain.StageIndexed, err, domain.EmbeddingFailed)
	}

	embedded := make([]domain.EmbeddedChunk, len(chunks))
	g, gctx := errgroup.WithContext(ictx)
	g.SetLimit(s.opts.Concurrency)
	for i, ch := range chunks {
		g.Go(func() error {
			vec, err := emb.Embed(gctx, ch.Text)
			if err != nil {
				return err
			}
			embedded[i] = domain.EmbeddedChunk{Chunk: ch, Vector: vec}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, r.fail(domain.StageIndexed, err, domain.EmbeddingFailed)
	}

	store, err := s.c.Stores(id)
	if err != nil {
		return nil, r.fail(domain.StageIndexed, err, domain.IngestFailed)
	}
	if err := store.Build(ictx, embedded); err != nil {
		_ = store.Drop(context.WithoutCancel(ctx))
		return nil, r.fail(domain.StageIndexed, err, domain.IngestFailed)
	}
	s.c.Arena.Swap(ctx, id, store)
	r.log.Debug("index built", zap.String("embedder", emb.Name()), zap.Int("dimension", emb.Dimension()), zap.Int("vectors", store.Len()))
	r.done(domain.StageIndexed)
	return &session{id: id, chunks: chunks, embedder: emb}, nil
}

// translate passes identity pairs through untouched.
func (s *QAService) translate(ctx context.Context, text string, pair domain.LanguagePair) (string, error) {
	if pair.From == pair.To {
		return text, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tctx, cancel := withTimeout(ctx, s.opts.Timeouts.Translate)
	defer cancel()
	return s.c.Translator.Translate(tctx, text, pair.From, pair.To)
}

func (s *QAService) retrieve(ctx context.Context, sess *session, question string) ([]domain.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lease, err := s.c.Arena.Acquire(sess.id)
	if err != nil {
		return nil, err
	}
	defer lease.Release(context.WithoutCancel(ctx))

	rctx, cancel := withTimeout(ctx, s.opts.Timeouts.Retrieve)
	defer cancel()
	vec, err := sess.embedder.Embed(rctx, question)
	if err != nil {
		return nil, err
	}
	var results []domain.SearchResult
	if isZero(vec) {
		results = lexicalSearch(question, sess.chunks, s.opts.TopK)
	} else {
		results, err = lease.Store().Search(rctx, vec, s.opts.TopK)
		if err != nil {
			return nil, err
		}
		if allZero(results) {
			results = lexicalSearch(question, sess.chunks, s.opts.TopK)
		}
	}
	if len(results) == 0 {
		return nil, errors.New("no chunks retrieved")
	}
	return results, nil
}

func (s *QAService) synthesize(ctx context.Context, question string, sources []domain.SearchResult) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sctx, cancel := withTimeout(ctx, s.opts.Timeouts.Synthesize)
	defer cancel()
	chunks := make([]domain.Chunk, len(sources))
	for i, src := range sources {
		chunks[i] = src.Chunk
	}
	return s.c.Synthesizer.Synthesize(sctx, question, chunks)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
