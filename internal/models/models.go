package models

import (
	"time"
)

// SourceType records where a document came from.
type SourceType string

const (
	SourceUpload     SourceType = "upload"
	SourceWebScraper SourceType = "web_scraper"
)

// IngestionStatus is the lifecycle of a document inside the ingestion workers.
type IngestionStatus string

const (
	IngestionPending    IngestionStatus = "pending"
	IngestionProcessing IngestionStatus = "processing"
	IngestionCompleted  IngestionStatus = "completed"
	IngestionFailed     IngestionStatus = "failed"
)

// ChunkType tags the strategy that produced a chunk.
type ChunkType string

const (
	ChunkStandard       ChunkType = "standard"
	ChunkSentence       ChunkType = "sentence"
	ChunkHard           ChunkType = "hard"
	ChunkTable          ChunkType = "table"
	ChunkTableRow       ChunkType = "table_row"
	ChunkDirectoryEntry ChunkType = "directory_entry"
)

// Document represents a user-uploaded or crawled document.
type Document struct {
	ID              string          `db:"id" json:"id"`
	TenantID        string          `db:"tenant_id" json:"tenant_id"`
	KnowledgeBaseID string          `db:"knowledge_base_id" json:"knowledge_base_id"`
	Source          SourceType      `db:"source" json:"source"`
	SourceURL       string          `db:"source_url" json:"source_url,omitempty"` // crawled documents only
	FileName        string          `db:"file_name" json:"file_name"`
	ContentType     string          `db:"content_type" json:"content_type"`
	StoragePath     string          `db:"storage_path" json:"storage_path"`
	ContentHash     string          `db:"content_hash" json:"content_hash,omitempty"` // sha256 of extracted text
	ScrapeVersion   int             `db:"scrape_version" json:"scrape_version"`
	IngestionStatus IngestionStatus `db:"ingestion_status" json:"ingestion_status"`
	LastError       string          `db:"last_error" json:"last_error,omitempty"`
	LastScrapedAt   *time.Time      `db:"last_scraped_at" json:"last_scraped_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// DocumentChunk represents one text chunk from a document.
type DocumentChunk struct {
	ID              string    `db:"id" json:"id"`
	DocumentID      string    `db:"document_id" json:"document_id"`
	KnowledgeBaseID string    `db:"knowledge_base_id" json:"knowledge_base_id"`
	TenantID        string    `db:"tenant_id" json:"tenant_id"`
	Text            string    `db:"text" json:"text"`
	Embedding       []float32 `db:"embedding" json:"embedding,omitempty"` // pgvector column, nil when embedding failed
	Position        int       `db:"position" json:"position"`
	TokenCount      int       `db:"token_count" json:"token_count"`
	CharCount       int       `db:"char_count" json:"char_count"`
	ChunkType       ChunkType `db:"chunk_type" json:"chunk_type"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// ScraperConfig is the per-tenant crawl policy.
type ScraperConfig struct {
	ID               string            `db:"id" json:"id" yaml:"id"`
	TenantID         string            `db:"tenant_id" json:"tenant_id" yaml:"tenant_id"`
	KnowledgeBaseID  string            `db:"knowledge_base_id" json:"knowledge_base_id" yaml:"knowledge_base_id"`
	Name             string            `db:"name" json:"name" yaml:"name"`
	SeedURLs         []string          `db:"seed_urls" json:"seed_urls" yaml:"seed_urls"`
	SitemapURLs      []string          `db:"sitemap_urls" json:"sitemap_urls" yaml:"sitemap_urls"`
	AllowedDomains   []string          `db:"allowed_domains" json:"allowed_domains" yaml:"allowed_domains"`
	IncludePatterns  []string          `db:"include_patterns" json:"include_patterns" yaml:"include_patterns"`
	ExcludePatterns  []string          `db:"exclude_patterns" json:"exclude_patterns" yaml:"exclude_patterns"`
	LinkOnlyPatterns []string          `db:"link_only_patterns" json:"link_only_patterns" yaml:"link_only_patterns"`
	MaxDepth         int               `db:"max_depth" json:"max_depth" yaml:"max_depth"`
	RateLimitRPS     float64           `db:"rate_limit_rps" json:"rate_limit_rps" yaml:"rate_limit_rps"`
	AuthHeaders      map[string]string `db:"auth_headers" json:"auth_headers,omitempty" yaml:"auth_headers"`
	RespectRobots    bool              `db:"respect_robots" json:"respect_robots" yaml:"respect_robots"`
	RenderJS         bool              `db:"render_js" json:"render_js" yaml:"render_js"`
	UserAgent        string            `db:"user_agent" json:"user_agent,omitempty" yaml:"user_agent"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at" yaml:"-"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at" yaml:"-"`
}

// ChunkingConfig holds the tenant-scoped chunk bounds, in characters.
type ChunkingConfig struct {
	MaxChars     int `db:"max_chars" json:"max_chars"`
	OverlapChars int `db:"overlap_chars" json:"overlap_chars"`
}

// CrawlStatus is the state of a crawl session.
type CrawlStatus string

const (
	CrawlRunning   CrawlStatus = "running"
	CrawlCompleted CrawlStatus = "completed"
	CrawlFailed    CrawlStatus = "failed"
	CrawlCancelled CrawlStatus = "cancelled"
)

// CrawlProgress is one record per crawl invocation. Counters only grow.
type CrawlProgress struct {
	ID                  string      `db:"id" json:"id"`
	TenantID            string      `db:"tenant_id" json:"tenant_id"`
	ConfigID            string      `db:"config_id" json:"config_id"`
	Status              CrawlStatus `db:"status" json:"status"`
	PagesFound          int         `db:"pages_found" json:"pages_found"`
	PagesScraped        int         `db:"pages_scraped" json:"pages_scraped"`
	PagesSkipped        int         `db:"pages_skipped" json:"pages_skipped"`
	PagesFailed         int         `db:"pages_failed" json:"pages_failed"`
	DocumentsCreated    int         `db:"documents_created" json:"documents_created"`
	DocumentsUpdated    int         `db:"documents_updated" json:"documents_updated"`
	DocumentsUnchanged  int         `db:"documents_unchanged" json:"documents_unchanged"`
	IngestionPending    int         `db:"ingestion_pending" json:"ingestion_pending"`
	IngestionProcessing int         `db:"ingestion_processing" json:"ingestion_processing"`
	IngestionCompleted  int         `db:"ingestion_completed" json:"ingestion_completed"`
	IngestionFailed     int         `db:"ingestion_failed" json:"ingestion_failed"`
	LastError           string      `db:"last_error" json:"last_error,omitempty"`
	StartedAt           time.Time   `db:"started_at" json:"started_at"`
	CompletedAt         *time.Time  `db:"completed_at" json:"completed_at,omitempty"`
}

// ProgressDelta is an atomic increment applied to a CrawlProgress row.
type ProgressDelta struct {
	PagesFound          int
	PagesScraped        int
	PagesSkipped        int
	PagesFailed         int
	DocumentsCreated    int
	DocumentsUpdated    int
	DocumentsUnchanged  int
	IngestionPending    int
	IngestionProcessing int
	IngestionCompleted  int
	IngestionFailed     int
}

// IsZero reports whether applying d would change nothing.
func (d ProgressDelta) IsZero() bool {
	return d == ProgressDelta{}
}

// IngestJob asks a worker to run extract, chunk, embed and index for one document.
// ProgressID is empty for uploads.
type IngestJob struct {
	DocumentID string `json:"document_id"`
	TenantID   string `json:"tenant_id"`
	ProgressID string `json:"progress_id,omitempty"`
}

// VectorEntry is one row of a tenant vector partition.
type VectorEntry struct {
	Ordinal int
	Text    string
	Vector  []float32
}
