package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmosk/agro-evidence-qa/internal/config"
	"github.com/dmosk/agro-evidence-qa/internal/core/ports"
	"github.com/dmosk/agro-evidence-qa/internal/core/usecase"
	"github.com/dmosk/agro-evidence-qa/internal/infrastructure/extractor"
	"github.com/dmosk/agro-evidence-qa/internal/infrastructure/extractor/markdown"
	"github.com/dmosk/agro-evidence-qa/internal/infrastructure/extractor/pdftext"
	"github.com/dmosk/agro-evidence-qa/internal/infrastructure/lexical/bm25"
	"github.com/dmosk/agro-evidence-qa/internal/infrastructure/llm/ollama"
	"github.com/dmosk/agro-evidence-qa/internal/infrastructure/queue/nats"
	"github.com/dmosk/agro-evidence-qa/internal/infrastructure/repository/postgres"
	"github.com/dmosk/agro-evidence-qa/internal/infrastructure/resilience"
	"github.com/dmosk/agro-evidence-qa/internal/infrastructure/segment"
	"github.com/dmosk/agro-evidence-qa/internal/infrastructure/storage/localfs"
	"github.com/dmosk/agro-evidence-qa/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config
	Log    *slog.Logger

	Queue     ports.MessageQueue
	Repo      ports.DocumentRepository
	Sentences ports.SentenceStore
	Extractor ports.TextExtractor

	IngestUC  ports.CorpusIngestor
	ProcessUC ports.CorpusProcessor
	AnswerUC  ports.QuestionAnswerer

	closeFn func()
}

// New wires the full dependency graph. The BM25 index is built from the
// sentence store at startup; the corpus is static per run, so documents
// ingested after startup become searchable on the next restart.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	sentences := postgres.NewSentenceRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg))
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	lexicon, err := config.LoadLexicon()
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("load lexicon: %w", err)
	}

	embedder := ollama.NewEmbedder(ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, executor))

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	semantic := qdrant.NewSearcher(embedder, vectorDB)

	textExtractor := extractor.NewRouter(markdown.NewExtractor(storage), pdftext.NewExtractor(storage))
	splitter := segment.NewSplitter()
	tagger := segment.NewKeywordTagger(lexicon.CropRules(), lexicon.PracticeRules())

	corpus, err := sentences.ListAll(ctx)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("load sentence corpus: %w", err)
	}
	lexical := bm25.NewIndex(corpus)
	log.InfoContext(ctx, "bm25 index built", slog.Int("sentences", lexical.Size()))

	fuser := usecase.NewFuser(usecase.FusionConfig{
		AlphaLexical:     cfg.AlphaLexical,
		TagBoostCrop:     cfg.TagBoostCrop,
		TagBoostPractice: cfg.TagBoostPractice,
		QueryCrops:       lexicon.QueryCropRules(),
		QueryPractices:   lexicon.QueryPracticeRules(),
	}, sentences)
	selector := usecase.NewDiversitySelector(embedder, usecase.SelectorConfig{
		MMRLambda:       cfg.MMRLambda,
		MaxSimThreshold: cfg.MaxSimThreshold,
		MaxSupport:      cfg.MaxSupport,
	})
	gate := usecase.NewGate(usecase.GateConfig{
		ScoreThreshold:      cfg.AbstainScoreThreshold,
		MinSupport:          cfg.MinSupport,
		UngroundablePhrases: lexicon.UngroundablePhrases,
	})

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, textExtractor, splitter, tagger, sentences, embedder, vectorDB)
	answerUC := usecase.NewAnswerUseCase(lexical, semantic, fuser, selector, gate, usecase.AnswerConfig{
		LexicalTopK: cfg.LexicalTopK,
		DenseTopK:   cfg.DenseTopK,
		RerankTopK:  cfg.RerankTopK,
	}, log)

	return &App{
		Config: cfg,
		Log:    log,

		Queue:     queue,
		Repo:      repo,
		Sentences: sentences,
		Extractor: textExtractor,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		AnswerUC:  answerUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// QAApp is the wiring subset used by the offline CLI: the answer
// pipeline plus read access to documents for offset validation. It does
// not touch the message queue.
type QAApp struct {
	Config config.Config
	Log    *slog.Logger

	Repo      ports.DocumentRepository
	Extractor ports.TextExtractor
	AnswerUC  ports.QuestionAnswerer

	closeFn func()
}

func NewQA(ctx context.Context, cfg config.Config, log *slog.Logger) (*QAApp, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	sentences := postgres.NewSentenceRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	lexicon, err := config.LoadLexicon()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load lexicon: %w", err)
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg))
	embedder := ollama.NewEmbedder(ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, executor))
	semantic := qdrant.NewSearcher(embedder, qdrant.New(cfg.QdrantURL, cfg.QdrantCollection))

	textExtractor := extractor.NewRouter(markdown.NewExtractor(storage), pdftext.NewExtractor(storage))

	corpus, err := sentences.ListAll(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load sentence corpus: %w", err)
	}
	lexical := bm25.NewIndex(corpus)
	log.InfoContext(ctx, "bm25 index built", slog.Int("sentences", lexical.Size()))

	fuser := usecase.NewFuser(usecase.FusionConfig{
		AlphaLexical:     cfg.AlphaLexical,
		TagBoostCrop:     cfg.TagBoostCrop,
		TagBoostPractice: cfg.TagBoostPractice,
		QueryCrops:       lexicon.QueryCropRules(),
		QueryPractices:   lexicon.QueryPracticeRules(),
	}, sentences)
	selector := usecase.NewDiversitySelector(embedder, usecase.SelectorConfig{
		MMRLambda:       cfg.MMRLambda,
		MaxSimThreshold: cfg.MaxSimThreshold,
		MaxSupport:      cfg.MaxSupport,
	})
	gate := usecase.NewGate(usecase.GateConfig{
		ScoreThreshold:      cfg.AbstainScoreThreshold,
		MinSupport:          cfg.MinSupport,
		UngroundablePhrases: lexicon.UngroundablePhrases,
	})
	answerUC := usecase.NewAnswerUseCase(lexical, semantic, fuser, selector, gate, usecase.AnswerConfig{
		LexicalTopK: cfg.LexicalTopK,
		DenseTopK:   cfg.DenseTopK,
		RerankTopK:  cfg.RerankTopK,
	}, log)

	return &QAApp{
		Config:    cfg,
		Log:       log,
		Repo:      repo,
		Extractor: textExtractor,
		AnswerUC:  answerUC,

		closeFn: func() {
			_ = db.Close()
		},
	}, nil
}

func (a *QAApp) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// resilienceConfig maps the RESILIENCE_* env knobs onto the executor
// shared by the ollama and nats clients.
func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: cfg.RetryInitialBackoff,
		RetryMaxBackoff:     cfg.RetryMaxBackoff,
		RetryMultiplier:     cfg.RetryMultiplier,
		BreakerEnabled:      cfg.BreakerEnabled,
		BreakerMinRequests:  uint32(cfg.BreakerMinRequests),
		BreakerFailureRatio: cfg.BreakerFailureRatio,
		BreakerOpenTimeout:  cfg.BreakerOpenTimeout,
	}
}
