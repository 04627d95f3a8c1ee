package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/markdave123-py/ragcrawl/internal/core"
	"github.com/markdave123-py/ragcrawl/internal/models"
)

const progressColumns = `id, tenant_id, config_id, status, pages_found, pages_scraped, pages_skipped,
	pages_failed, documents_created, documents_updated, documents_unchanged, ingestion_pending,
	ingestion_processing, ingestion_completed, ingestion_failed, last_error, started_at, completed_at`

func scanProgress(r rowScanner) (*models.CrawlProgress, error) {
	var (
		p         models.CrawlProgress
		completed sql.NullTime
	)
	err := r.Scan(
		&p.ID, &p.TenantID, &p.ConfigID, &p.Status, &p.PagesFound, &p.PagesScraped, &p.PagesSkipped,
		&p.PagesFailed, &p.DocumentsCreated, &p.DocumentsUpdated, &p.DocumentsUnchanged, &p.IngestionPending,
		&p.IngestionProcessing, &p.IngestionCompleted, &p.IngestionFailed, &p.LastError, &p.StartedAt, &completed,
	)
	if err != nil {
		return nil, err
	}
	if completed.Valid {
		t := completed.Time
		p.CompletedAt = &t
	}
	return &p, nil
}

func (c *DatabaseClient) CreateCrawlProgress(ctx context.Context, p *models.CrawlProgress) error {
	if p == nil {
		return errors.New("nil crawl progress")
	}
	if p.StartedAt.IsZero() {
		p.StartedAt = time.Now().UTC()
	}
	if p.Status == "" {
		p.Status = models.CrawlRunning
	}
	const q = `
		INSERT INTO crawl_progress (id, tenant_id, config_id, status, last_error, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := c.db.ExecContext(ctx, q, p.ID, p.TenantID, p.ConfigID, string(p.Status), p.LastError, p.StartedAt)
	if err != nil {
		return fmt.Errorf("insert crawl progress: %w", err)
	}
	return nil
}

func (c *DatabaseClient) GetCrawlProgress(ctx context.Context, tenantID, id string) (*models.CrawlProgress, error) {
	q := `SELECT ` + progressColumns + ` FROM crawl_progress WHERE tenant_id = $1 AND id = $2`
	p, err := scanProgress(c.db.QueryRowContext(ctx, q, tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// IncrementProgress adds delta to the counters in one statement so concurrent
// workers never lose an update.
func (c *DatabaseClient) IncrementProgress(ctx context.Context, progressID string, d models.ProgressDelta) error {
	if d.IsZero() {
		return nil
	}
	const q = `
		UPDATE crawl_progress SET
			pages_found          = pages_found + $2,
			pages_scraped        = pages_scraped + $3,
			pages_skipped        = pages_skipped + $4,
			pages_failed         = pages_failed + $5,
			documents_created    = documents_created + $6,
			documents_updated    = documents_updated + $7,
			documents_unchanged  = documents_unchanged + $8,
			ingestion_pending    = ingestion_pending + $9,
			ingestion_processing = ingestion_processing + $10,
			ingestion_completed  = ingestion_completed + $11,
			ingestion_failed     = ingestion_failed + $12
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, progressID,
		d.PagesFound, d.PagesScraped, d.PagesSkipped, d.PagesFailed,
		d.DocumentsCreated, d.DocumentsUpdated, d.DocumentsUnchanged,
		d.IngestionPending, d.IngestionProcessing, d.IngestionCompleted, d.IngestionFailed,
	)
	if err != nil {
		return fmt.Errorf("increment progress %s: %w", progressID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("progress %s: %w", progressID, core.ErrNotFound)
	}
	return nil
}

type progressTx struct {
	tx  *sql.Tx
	cur models.CrawlProgress
}

func (p *progressTx) Current() models.CrawlProgress { return p.cur }

func (p *progressTx) SetStatus(ctx context.Context, status models.CrawlStatus, completedAt *time.Time, lastErr string) error {
	const q = `UPDATE crawl_progress SET status = $2, completed_at = $3, last_error = $4 WHERE id = $1`
	if _, err := p.tx.ExecContext(ctx, q, p.cur.ID, string(status), completedAt, lastErr); err != nil {
		return err
	}
	p.cur.Status = status
	p.cur.CompletedAt = completedAt
	p.cur.LastError = lastErr
	return nil
}

// WithLockedProgress loads the row with SELECT ... FOR UPDATE and keeps the
// lock until fn returns. A nil error from fn commits.
func (c *DatabaseClient) WithLockedProgress(ctx context.Context, tenantID, id string, fn func(tx core.ProgressTx) error) error {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	q := `SELECT ` + progressColumns + ` FROM crawl_progress WHERE tenant_id = $1 AND id = $2 FOR UPDATE`
	cur, err := scanProgress(tx.QueryRowContext(ctx, q, tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("progress %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return err
	}

	if err := fn(&progressTx{tx: tx, cur: *cur}); err != nil {
		return err
	}
	return tx.Commit()
}
