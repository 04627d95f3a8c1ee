package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/markdave123-py/ragcrawl/internal/core"
	"github.com/markdave123-py/ragcrawl/internal/core/crawler"
	"github.com/markdave123-py/ragcrawl/internal/models"
)

type memDocs struct {
	mu        sync.Mutex
	docs      map[string]models.Document
	createErr error
}

func newMemDocs() *memDocs { return &memDocs{docs: map[string]models.Document{}} }

func (m *memDocs) CreateDocument(_ context.Context, d *models.Document) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[d.ID] = *d
	return nil
}

func (m *memDocs) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *memDocs) GetDocumentBySourceURL(context.Context, string, string) (*models.Document, error) {
	return nil, nil
}

func (m *memDocs) ListDocumentsByTenant(_ context.Context, tenantID string) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Document
	for _, d := range m.docs {
		if d.TenantID == tenantID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDocs) ListDocumentsByStatus(_ context.Context, statuses ...models.IngestionStatus) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Document
	for _, d := range m.docs {
		for _, st := range statuses {
			if d.IngestionStatus == st {
				out = append(out, d)
				break
			}
		}
	}
	return out, nil
}

func (m *memDocs) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *memDocs) DeleteDocumentsByTenant(_ context.Context, tenantID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, d := range m.docs {
		if d.TenantID == tenantID {
			delete(m.docs, id)
			n++
		}
	}
	return n, nil
}

func (m *memDocs) TouchDocument(context.Context, string) error { return nil }

func (m *memDocs) UpdateDocumentVersion(context.Context, string, string, string, int) error {
	return nil
}

func (m *memDocs) UpdateDocumentStatus(_ context.Context, id string, s models.IngestionStatus, lastErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.docs[id]
	d.IngestionStatus = s
	d.LastError = lastErr
	m.docs[id] = d
	return nil
}

func (m *memDocs) ReplaceDocumentChunks(context.Context, string, []models.DocumentChunk) error {
	return nil
}

func (m *memDocs) GetChunksByDocument(context.Context, string) ([]models.DocumentChunk, error) {
	return nil, nil
}

type memBlobs struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemBlobs() *memBlobs { return &memBlobs{files: map[string][]byte{}} }

func (m *memBlobs) Store(_ context.Context, p string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[p] = append([]byte(nil), data...)
	return nil
}

func (m *memBlobs) Get(_ context.Context, p string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[p]
	if !ok {
		return nil, core.ErrNotFound
	}
	return b, nil
}

func (m *memBlobs) Exists(_ context.Context, p string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[p]
	return ok, nil
}

func (m *memBlobs) Delete(_ context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, p)
	return nil
}

// memVectors tracks which documents are indexed per tenant.
type memVectors struct {
	mu      sync.Mutex
	tenants map[string]map[string]bool
	err     error
}

func newMemVectors() *memVectors { return &memVectors{tenants: map[string]map[string]bool{}} }

func (m *memVectors) index(tenantID, documentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tenants[tenantID] == nil {
		m.tenants[tenantID] = map[string]bool{}
	}
	m.tenants[tenantID][documentID] = true
}

func (m *memVectors) has(tenantID, documentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tenants[tenantID][documentID]
}

func (m *memVectors) hasTenant(tenantID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tenants[tenantID]
	return ok
}

func (m *memVectors) Delete(_ context.Context, documentID, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.tenants[tenantID], documentID)
	return nil
}

func (m *memVectors) DeleteByTenant(_ context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.tenants, tenantID)
	return nil
}

type memQueue struct {
	mu   sync.Mutex
	jobs []models.IngestJob
	err  error
}

func (q *memQueue) Dispatch(_ context.Context, j models.IngestJob) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, j)
	return nil
}

type memConfigs struct {
	cfgs map[string]*models.ScraperConfig
}

func (m *memConfigs) GetScraperConfig(_ context.Context, tenantID, id string) (*models.ScraperConfig, error) {
	c, ok := m.cfgs[tenantID+"/"+id]
	if !ok {
		return nil, nil
	}
	return c, nil
}

func (m *memConfigs) SaveScraperConfig(_ context.Context, c *models.ScraperConfig) error {
	m.cfgs[c.TenantID+"/"+c.ID] = c
	return nil
}

func (m *memConfigs) GetChunkingConfig(context.Context, string) (*models.ChunkingConfig, error) {
	return nil, nil
}

type memProgress struct {
	mu   sync.Mutex
	rows map[string]models.CrawlProgress
}

func newMemProgress() *memProgress { return &memProgress{rows: map[string]models.CrawlProgress{}} }

func (m *memProgress) CreateCrawlProgress(_ context.Context, p *models.CrawlProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[p.ID] = *p
	return nil
}

func (m *memProgress) GetCrawlProgress(_ context.Context, tenantID, id string) (*models.CrawlProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok || p.TenantID != tenantID {
		return nil, nil
	}
	return &p, nil
}

func (m *memProgress) IncrementProgress(_ context.Context, id string, d models.ProgressDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.rows[id]
	p.PagesFound += d.PagesFound
	p.PagesScraped += d.PagesScraped
	m.rows[id] = p
	return nil
}

type memTx struct {
	cur models.CrawlProgress
}

func (tx *memTx) Current() models.CrawlProgress { return tx.cur }

func (tx *memTx) SetStatus(_ context.Context, s models.CrawlStatus, completedAt *time.Time, lastErr string) error {
	tx.cur.Status = s
	tx.cur.CompletedAt = completedAt
	tx.cur.LastError = lastErr
	return nil
}

func (m *memProgress) WithLockedProgress(_ context.Context, tenantID, id string, fn func(core.ProgressTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok || p.TenantID != tenantID {
		return core.ErrNotFound
	}
	tx := &memTx{cur: p}
	if err := fn(tx); err != nil {
		return err
	}
	m.rows[id] = tx.cur
	return nil
}

func (m *memProgress) status(id string) models.CrawlStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id].Status
}

// scriptedCrawler returns err, or blocks until its context ends when block is set.
type scriptedCrawler struct {
	err     error
	block   bool
	started chan struct{}
}

func (c *scriptedCrawler) Crawl(ctx context.Context, tenantID, configID, progressID string) (*crawler.CrawlResult, error) {
	if c.started != nil {
		close(c.started)
	}
	if c.block {
		<-ctx.Done()
		return &crawler.CrawlResult{TenantID: tenantID, ConfigID: configID}, ctx.Err()
	}
	if c.err != nil {
		return nil, c.err
	}
	return &crawler.CrawlResult{TenantID: tenantID, ConfigID: configID, Visited: 3, New: 2}, nil
}

var errBoom = errors.New("boom")
