package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/ragcrawl/internal/config"
	"github.com/markdave123-py/ragcrawl/internal/core"
	"github.com/markdave123-py/ragcrawl/internal/core/crawler"
	db "github.com/markdave123-py/ragcrawl/internal/core/database"
	"github.com/markdave123-py/ragcrawl/internal/core/ingestion_engine"
	"github.com/markdave123-py/ragcrawl/internal/core/llm"
	objectclient "github.com/markdave123-py/ragcrawl/internal/core/object-client"
	"github.com/markdave123-py/ragcrawl/internal/core/progress"
	"github.com/markdave123-py/ragcrawl/internal/core/quality"
	"github.com/markdave123-py/ragcrawl/internal/core/renderer"
	"github.com/markdave123-py/ragcrawl/internal/models"
	"github.com/markdave123-py/ragcrawl/internal/services"
)

// Options selects how the process runs its ingestion work.
//
// InlineIngestion: dispatch runs the job in the caller instead of the worker pool.
type Options struct {
	InlineIngestion bool
}

type App struct {
	Config    *config.Config
	DBClient  *db.DatabaseClient
	Blobs     core.BlobStore
	Ingestor  ingestion_engine.Ingestor
	Jobs      core.JobQueue
	Documents *services.DocumentService
	Crawls    *services.CrawlService
	Server    *Server

	embedder core.EmbeddingProvider
	log      *zap.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger, opts Options) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dim, err := llm.Dimension(cfg.EmbedModel)
	if err != nil {
		return nil, err
	}

	dbClient, err := db.NewDatabaseClient(appCtx, cfg, log.Named("db"))
	if err != nil {
		return nil, err
	}
	log.Info("database initialized and ready")

	a := &App{Config: cfg, DBClient: dbClient, log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	objClient, err := objectclient.NewS3Client(appCtx, cfg, log.Named("s3"))
	if err != nil {
		return nil, err
	}
	a.Blobs = objClient

	embedder, err := llm.NewEmbedder(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder: %w", err)
	}
	a.embedder = embedder

	vectors, err := db.NewPgVectorStore(dbClient.DB(), dim, log.Named("vectors"))
	if err != nil {
		return nil, err
	}

	extractor, err := ingestion_engine.NewDocumentExtractor(objClient, log.Named("extract"))
	if err != nil {
		return nil, err
	}

	batcher := ingestion_engine.NewEmbeddingBatcher(embedder, cfg.EmbedBatchSize, cfg.EmbedConcurrent, cfg.EmbedMaxRetries, log.Named("embed"))
	ingCfg := ingestion_engine.IngestConfig{
		Chunking:     models.ChunkingConfig{MaxChars: cfg.ChunkMaxChars, OverlapChars: cfg.ChunkOverlapChars},
		BatchSize:    cfg.EmbedBatchSize,
		Concurrency:  cfg.EmbedConcurrent,
		MaxRetries:   cfg.EmbedMaxRetries,
		EmbedTimeout: cfg.EmbedTimeout,
		QueueSize:    cfg.IngestQueueSize,
	}
	indexer := ingestion_engine.NewVectorIndexer(vectors, log.Named("index"))
	ingestor := ingestion_engine.NewDocumentIngestor(dbClient, dbClient, dbClient, extractor, batcher,
		indexer, ingCfg, log.Named("ingest"))
	a.Ingestor = ingestor
	a.Jobs = ingestor
	if opts.InlineIngestion {
		a.Jobs = ingestion_engine.Inline{Ingestor: ingestor}
	}

	var rend crawler.Renderer
	if cfg.RenderEnabled {
		rend = renderer.New(cfg.RenderBinary, cfg.RenderTimeout, log.Named("render"), renderer.WithUserAgent(cfg.UserAgent))
	}
	analyzer := quality.NewAnalyzer(cfg.QualityLowThreshold, cfg.QualityHighThreshold, log.Named("quality"))
	crawl := crawler.New(dbClient, dbClient, objClient, a.Jobs, dbClient, analyzer, rend, crawler.Options{
		UserAgent:     cfg.UserAgent,
		FetchTimeout:  cfg.FetchTimeout,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		Concurrency:   cfg.CrawlConcurrency,
		RenderEnabled: cfg.RenderEnabled,
		RenderTimeout: cfg.RenderTimeout,
	}, log.Named("crawler"))

	tracker := progress.NewTracker(dbClient, log.Named("progress"))
	a.Documents = services.NewDocumentService(dbClient, objClient, a.Jobs, indexer, log.Named("documents"))
	a.Crawls = services.NewCrawlService(crawl, tracker, dbClient, log.Named("crawls"))
	a.Server = NewServer(cfg, a.Documents, a.Crawls, dbClient.DB(), log.Named("http"))

	ok = true
	return a, nil
}

// StartWorkers launches the ingestion worker pool until ctx ends and requeues
// documents a previous process left unfinished.
func (a *App) StartWorkers(ctx context.Context) {
	a.Ingestor.Start(ctx, a.Config.IngestWorkers)
	a.log.Info("ingestion workers started", zap.Int("workers", a.Config.IngestWorkers))
	go func() {
		if _, err := a.Ingestor.Requeue(ctx); err != nil && ctx.Err() == nil {
			a.log.Error("requeue unfinished documents", zap.Error(err))
		}
	}()
}

func (a *App) Close() error {
	var errs []error
	if c, ok := a.embedder.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if a.DBClient != nil {
		errs = append(errs, a.DBClient.Close())
	}
	return errors.Join(errs...)
}
