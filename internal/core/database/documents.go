package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/ragcrawl/internal/core"
	"github.com/markdave123-py/ragcrawl/internal/models"
)

const documentColumns = `id, tenant_id, knowledge_base_id, source, source_url, file_name, content_type,
	storage_path, content_hash, scrape_version, ingestion_status, last_error, last_scraped_at,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(r rowScanner) (*models.Document, error) {
	var (
		d         models.Document
		scrapedAt sql.NullTime
	)
	err := r.Scan(
		&d.ID, &d.TenantID, &d.KnowledgeBaseID, &d.Source, &d.SourceURL, &d.FileName, &d.ContentType,
		&d.StoragePath, &d.ContentHash, &d.ScrapeVersion, &d.IngestionStatus, &d.LastError, &scrapedAt,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if scrapedAt.Valid {
		t := scrapedAt.Time
		d.LastScrapedAt = &t
	}
	return &d, nil
}

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(id, tenant_id, knowledge_base_id, source, source_url, file_name, content_type,
			 storage_path, content_hash, scrape_version, ingestion_status, last_error, last_scraped_at,
			 created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}
	if doc.IngestionStatus == "" {
		doc.IngestionStatus = models.IngestionPending
	}
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.TenantID, doc.KnowledgeBaseID, string(doc.Source), doc.SourceURL, doc.FileName, doc.ContentType,
		doc.StoragePath, doc.ContentHash, doc.ScrapeVersion, string(doc.IngestionStatus), doc.LastError, doc.LastScrapedAt,
		doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	d, err := scanDocument(c.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

func (c *DatabaseClient) GetDocumentBySourceURL(ctx context.Context, tenantID, sourceURL string) (*models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE tenant_id = $1 AND source_url = $2`
	d, err := scanDocument(c.db.QueryRowContext(ctx, q, tenantID, sourceURL))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

func (c *DatabaseClient) ListDocumentsByTenant(ctx context.Context, tenantID string) ([]models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE tenant_id = $1 ORDER BY created_at DESC`
	return c.queryDocuments(ctx, q, tenantID)
}

// ListDocumentsByStatus returns documents in any of the given states, oldest first.
func (c *DatabaseClient) ListDocumentsByStatus(ctx context.Context, statuses ...models.IngestionStatus) ([]models.Document, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	q := `SELECT ` + documentColumns + ` FROM documents WHERE ingestion_status = ANY($1) ORDER BY created_at ASC`
	return c.queryDocuments(ctx, q, names)
}

func (c *DatabaseClient) queryDocuments(ctx context.Context, q string, args ...any) ([]models.Document, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// DeleteDocument removes the row; its chunks go with it through ON DELETE CASCADE.
func (c *DatabaseClient) DeleteDocument(ctx context.Context, id string) error {
	return c.execOne(ctx, `DELETE FROM documents WHERE id = $1`, id)
}

func (c *DatabaseClient) DeleteDocumentsByTenant(ctx context.Context, tenantID string) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (c *DatabaseClient) TouchDocument(ctx context.Context, id string) error {
	const q = `UPDATE documents SET last_scraped_at = now(), updated_at = now() WHERE id = $1`
	return c.execOne(ctx, q, id)
}

func (c *DatabaseClient) UpdateDocumentVersion(ctx context.Context, id, storagePath, contentHash string, version int) error {
	const q = `
		UPDATE documents
		SET storage_path = $2, content_hash = $3, scrape_version = $4,
		    ingestion_status = 'pending', last_error = '', last_scraped_at = now(), updated_at = now()
		WHERE id = $1
	`
	return c.execOne(ctx, q, id, storagePath, contentHash, version)
}

func (c *DatabaseClient) UpdateDocumentStatus(ctx context.Context, id string, status models.IngestionStatus, lastErr string) error {
	const q = `
		UPDATE documents
		SET ingestion_status = $2, last_error = $3, updated_at = now()
		WHERE id = $1
	`
	return c.execOne(ctx, q, id, string(status), lastErr)
}

func (c *DatabaseClient) execOne(ctx context.Context, q string, args ...any) error {
	res, err := c.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %v: %w", args[0], core.ErrNotFound)
	}
	return nil
}

// ReplaceDocumentChunks deletes and re-inserts every chunk of a document in a
// single transaction, so a re-run never leaves duplicates.
func (c *DatabaseClient) ReplaceDocumentChunks(ctx context.Context, documentID string, chunks []models.DocumentChunk) error {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	const q = `
		INSERT INTO document_chunks
			(id, document_id, knowledge_base_id, tenant_id, position, text, embedding,
			 token_count, char_count, chunk_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	now := time.Now().UTC()
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		var vec any
		if len(ch.Embedding) > 0 {
			vec = pgvector.NewVector(ch.Embedding)
		}
		if ch.CreatedAt.IsZero() {
			ch.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			ch.ID, documentID, ch.KnowledgeBaseID, ch.TenantID, ch.Position, ch.Text, vec,
			ch.TokenCount, ch.CharCount, string(ch.ChunkType), ch.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert chunk %d: %w", ch.Position, err)
		}
	}
	return tx.Commit()
}

func (c *DatabaseClient) GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error) {
	const q = `
		SELECT id, document_id, knowledge_base_id, tenant_id, position, text, embedding,
		       token_count, char_count, chunk_type, created_at
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY position ASC
	`
	rows, err := c.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentChunk
	for rows.Next() {
		var (
			ch  models.DocumentChunk
			emb *pgvector.Vector
		)
		if err := rows.Scan(
			&ch.ID, &ch.DocumentID, &ch.KnowledgeBaseID, &ch.TenantID, &ch.Position, &ch.Text, &emb,
			&ch.TokenCount, &ch.CharCount, &ch.ChunkType, &ch.CreatedAt,
		); err != nil {
			return nil, err
		}
		if emb != nil {
			ch.Embedding = emb.Slice()
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}
