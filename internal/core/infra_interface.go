package core

import (
	"context"
	"time"

	"github.com/markdave123-py/ragcrawl/internal/models"
)

// DocumentStore persists documents and their chunks.
// Getters return (nil, nil) when the row does not exist.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	GetDocumentBySourceURL(ctx context.Context, tenantID, sourceURL string) (*models.Document, error)
	ListDocumentsByTenant(ctx context.Context, tenantID string) ([]models.Document, error)
	ListDocumentsByStatus(ctx context.Context, statuses ...models.IngestionStatus) ([]models.Document, error)

	// TouchDocument records a crawl that found unchanged content.
	TouchDocument(ctx context.Context, id string) error
	// UpdateDocumentVersion points the document at a new stored version and resets it to pending.
	UpdateDocumentVersion(ctx context.Context, id, storagePath, contentHash string, version int) error
	UpdateDocumentStatus(ctx context.Context, id string, status models.IngestionStatus, lastErr string) error
	// DeleteDocument removes a document and, by cascade, its chunks.
	DeleteDocument(ctx context.Context, id string) error
	DeleteDocumentsByTenant(ctx context.Context, tenantID string) (int64, error)

	// ReplaceDocumentChunks swaps every chunk of a document in one transaction.
	ReplaceDocumentChunks(ctx context.Context, documentID string, chunks []models.DocumentChunk) error
	GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error)
}

// ConfigStore serves tenant crawl and chunking policy. The core only reads it;
// SaveScraperConfig exists for the admin CLI.
type ConfigStore interface {
	GetScraperConfig(ctx context.Context, tenantID, configID string) (*models.ScraperConfig, error)
	SaveScraperConfig(ctx context.Context, cfg *models.ScraperConfig) error
	GetChunkingConfig(ctx context.Context, tenantID string) (*models.ChunkingConfig, error)
}

// ProgressCounter applies atomic counter increments to a crawl progress row.
type ProgressCounter interface {
	IncrementProgress(ctx context.Context, progressID string, delta models.ProgressDelta) error
}

// ProgressTx is a crawl progress row held under a row lock for the life of a transaction.
type ProgressTx interface {
	Current() models.CrawlProgress
	SetStatus(ctx context.Context, status models.CrawlStatus, completedAt *time.Time, lastErr string) error
}

// ProgressStore persists crawl sessions.
type ProgressStore interface {
	ProgressCounter
	CreateCrawlProgress(ctx context.Context, p *models.CrawlProgress) error
	GetCrawlProgress(ctx context.Context, tenantID, id string) (*models.CrawlProgress, error)
	// WithLockedProgress runs fn in a transaction holding a row lock on the record.
	// It returns ErrNotFound when the record does not exist. A nil error from fn commits.
	WithLockedProgress(ctx context.Context, tenantID, id string, fn func(tx ProgressTx) error) error
}

// DbClient is everything the services need from Postgres.
type DbClient interface {
	DocumentStore
	ConfigStore
	ProgressStore
	Close() error
}

// BlobStore abstracts S3 or any object storage. Paths are bucket-relative keys.
type BlobStore interface {
	Store(ctx context.Context, path string, data []byte, contentType string) error
	Get(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
}

// JobQueue hands ingestion work to the workers. Dispatch is fire-and-forget.
type JobQueue interface {
	Dispatch(ctx context.Context, job models.IngestJob) error
}

// VectorStore is the tenant-partitioned vector index.
type VectorStore interface {
	UpsertVectors(ctx context.Context, tenantID, documentID string, entries []models.VectorEntry) error
	DeleteByDocument(ctx context.Context, tenantID, documentID string) error
	DeleteByTenant(ctx context.Context, tenantID string) error
}
