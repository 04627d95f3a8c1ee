package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markdave123-py/ragcrawl/internal/core"
	"github.com/markdave123-py/ragcrawl/internal/models"
)

// NewDocumentIngestor constructs the ingestor with a bounded job queue.
// progress may be nil.
func NewDocumentIngestor(
	docs core.DocumentStore,
	configs core.ConfigStore,
	progress core.ProgressCounter,
	extractor core.DocumentExtractor,
	batcher *EmbeddingBatcher,
	indexer *VectorIndexer,
	cfg IngestConfig,
	log *zap.Logger,
) *DocumentIngestor {
	cfg = cfg.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &DocumentIngestor{
		docs:      docs,
		configs:   configs,
		progress:  progress,
		extractor: extractor,
		batcher:   batcher,
		indexer:   indexer,
		cfg:       cfg,
		jobs:      make(chan models.IngestJob, cfg.QueueSize),
		log:       log,
	}
}

// Start runs numWorkers goroutines reading from the job channel until ctx is done.
func (i *DocumentIngestor) Start(ctx context.Context, numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					i.log.Debug("ingest worker shutting down", zap.Int("worker", w))
					return
				case job := <-i.jobs:
					if err := i.ProcessOne(ctx, job); err != nil {
						i.log.Error("ingest failed",
							zap.Int("worker", w), zap.String("document_id", job.DocumentID), zap.Error(err))
					}
				}
			}
		}(w)
	}
}

// Dispatch enqueues a job. It blocks while the queue is full, up to ctx.
func (i *DocumentIngestor) Dispatch(ctx context.Context, job models.IngestJob) error {
	select {
	case i.jobs <- job:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch %s: %w", job.DocumentID, ctx.Err())
	}
}

// Requeue dispatches every document left pending or processing, typically by a
// restart that dropped the in-memory queue. It returns how many were queued.
func (i *DocumentIngestor) Requeue(ctx context.Context) (int, error) {
	docs, err := i.docs.ListDocumentsByStatus(ctx, models.IngestionPending, models.IngestionProcessing)
	if err != nil {
		return 0, fmt.Errorf("list unfinished documents: %w", err)
	}
	for n, d := range docs {
		if err := i.Dispatch(ctx, models.IngestJob{DocumentID: d.ID, TenantID: d.TenantID}); err != nil {
			return n, err
		}
	}
	if len(docs) > 0 {
		i.log.Info("requeued unfinished documents", zap.Int("count", len(docs)))
	}
	return len(docs), nil
}

// ProcessOne extracts, chunks, embeds and indexes a single document. Re-running
// it for the same document replaces chunks and upserts vectors, so it is safe to retry.
func (i *DocumentIngestor) ProcessOne(ctx context.Context, job models.IngestJob) error {
	log := i.log.With(zap.String("document_id", job.DocumentID), zap.String("tenant_id", job.TenantID))

	doc, err := i.docs.GetDocumentByID(ctx, job.DocumentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("document %s: %w", job.DocumentID, core.ErrNotFound)
	}

	if err := i.docs.UpdateDocumentStatus(ctx, doc.ID, models.IngestionProcessing, ""); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	i.bump(ctx, job, models.ProgressDelta{IngestionProcessing: 1})

	n, err := i.ingest(ctx, doc)
	if err != nil {
		log.Warn("document ingestion failed", zap.Error(err))
		if uerr := i.docs.UpdateDocumentStatus(ctx, doc.ID, models.IngestionFailed, err.Error()); uerr != nil {
			err = errors.Join(err, fmt.Errorf("mark failed: %w", uerr))
		}
		i.bump(ctx, job, models.ProgressDelta{IngestionFailed: 1})
		return err
	}

	if err := i.docs.UpdateDocumentStatus(ctx, doc.ID, models.IngestionCompleted, ""); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	i.bump(ctx, job, models.ProgressDelta{IngestionCompleted: 1})
	log.Info("document ingested", zap.Int("chunks", n))
	return nil
}

func (i *DocumentIngestor) ingest(ctx context.Context, doc *models.Document) (int, error) {
	text, err := i.extractor.ExtractText(ctx, doc.StoragePath)
	if err != nil {
		return 0, err
	}

	chunks := PrepareChunks(text, doc.Source, i.chunkingFor(ctx, doc.TenantID))
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no chunks produced: %w", core.ErrEmptyText)
	}

	embedCtx, cancel := context.WithTimeout(ctx, i.cfg.EmbedTimeout)
	defer cancel()
	vectors, embedErr := i.batcher.EmbedAll(embedCtx, chunks)

	now := time.Now().UTC()
	rows := make([]models.DocumentChunk, len(chunks))
	for k, c := range chunks {
		rows[k] = models.DocumentChunk{
			ID:              uuid.NewString(),
			DocumentID:      doc.ID,
			KnowledgeBaseID: doc.KnowledgeBaseID,
			TenantID:        doc.TenantID,
			Text:            c.Text,
			Embedding:       vectors[k],
			Position:        c.Position,
			TokenCount:      c.TokenCnt,
			CharCount:       c.CharCount,
			ChunkType:       c.Type,
			CreatedAt:       now,
		}
	}

	if err := i.docs.ReplaceDocumentChunks(ctx, doc.ID, rows); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	// Whatever embedded successfully is still indexed when some batches failed.
	if err := i.indexer.Upsert(ctx, doc.ID, doc.TenantID, rows); err != nil {
		return 0, errors.Join(embedErr, err)
	}
	if embedErr != nil {
		return 0, embedErr
	}
	return len(rows), nil
}

func (i *DocumentIngestor) chunkingFor(ctx context.Context, tenantID string) models.ChunkingConfig {
	if i.configs == nil {
		return i.cfg.Chunking
	}
	c, err := i.configs.GetChunkingConfig(ctx, tenantID)
	if err != nil {
		i.log.Warn("chunking config lookup failed, using defaults", zap.String("tenant_id", tenantID), zap.Error(err))
		return i.cfg.Chunking
	}
	if c == nil {
		return i.cfg.Chunking
	}
	return withChunkDefaults(*c)
}

func (i *DocumentIngestor) bump(ctx context.Context, job models.IngestJob, d models.ProgressDelta) {
	if i.progress == nil || job.ProgressID == "" {
		return
	}
	if err := i.progress.IncrementProgress(ctx, job.ProgressID, d); err != nil {
		i.log.Warn("progress update failed", zap.String("progress_id", job.ProgressID), zap.Error(err))
	}
}
