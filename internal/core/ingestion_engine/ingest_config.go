package ingestion_engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/ragcrawl/internal/core"
	"github.com/markdave123-py/ragcrawl/internal/models"
)

// IngestConfig tunes the worker pipeline.
//
// Chunking:      process-wide chunk bounds, used when a tenant has none stored.
// BatchSize:     how many chunks go to the embedding backend in one call.
// Concurrency:   how many embedding batches may be in flight for one document.
// MaxRetries:    total attempts per batch when the backend rate-limits.
// EmbedTimeout:  upper bound for embedding a single document.
// QueueSize:     capacity of the in-memory job channel.
type IngestConfig struct {
	Chunking     models.ChunkingConfig
	BatchSize    int
	Concurrency  int
	MaxRetries   int
	EmbedTimeout time.Duration
	QueueSize    int
}

func (c IngestConfig) withDefaults() IngestConfig {
	c.Chunking = withChunkDefaults(c.Chunking)
	if c.BatchSize <= 0 {
		c.BatchSize = 16
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = 5 * time.Minute
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	return c
}

// Chunk is the internal representation passed through the pipeline.
//
// Position:  stable, zero-based position of the chunk inside the document.
// Overlap:   leading runes copied from the previous chunk of the same pass.
// TokenCnt:  approximate token count.
type Chunk struct {
	Position  int
	Text      string
	Type      models.ChunkType
	CharCount int
	TokenCnt  int
	Overlap   int
}

// DocumentIngestor orchestrates the background ingestion pipeline:
//
// docs:      persistence for documents and chunks.
// configs:   tenant chunking policy.
// progress:  crawl counters, nil when running without crawl sessions.
// extractor: stored file to text.
// batcher:   chunk texts to vectors.
// indexer:   vectors into the tenant partition.
// jobs:      in-memory queue of ingest jobs.
type DocumentIngestor struct {
	docs      core.DocumentStore
	configs   core.ConfigStore
	progress  core.ProgressCounter
	extractor core.DocumentExtractor
	batcher   *EmbeddingBatcher
	indexer   *VectorIndexer
	cfg       IngestConfig
	jobs      chan models.IngestJob
	log       *zap.Logger
}
