package crawler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/markdave123-py/ragcrawl/internal/core"
	"github.com/markdave123-py/ragcrawl/internal/models"
)

type memStore struct {
	mu       sync.Mutex
	configs  map[string]*models.ScraperConfig
	docs     map[string]*models.Document
	chunks   map[string][]models.DocumentChunk
	progress models.ProgressDelta
	touched  int

	versionErr error
}

func newMemStore(cfgs ...*models.ScraperConfig) *memStore {
	m := &memStore{
		configs: map[string]*models.ScraperConfig{},
		docs:    map[string]*models.Document{},
		chunks:  map[string][]models.DocumentChunk{},
	}
	for _, c := range cfgs {
		m.configs[c.TenantID+"/"+c.ID] = c
	}
	return m
}

func (m *memStore) GetScraperConfig(_ context.Context, tenantID, id string) (*models.ScraperConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[tenantID+"/"+id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) SaveScraperConfig(_ context.Context, c *models.ScraperConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[c.TenantID+"/"+c.ID] = c
	return nil
}

func (m *memStore) GetChunkingConfig(context.Context, string) (*models.ChunkingConfig, error) {
	return nil, nil
}

func (m *memStore) CreateDocument(_ context.Context, d *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.docs[d.ID] = &cp
	return nil
}

func (m *memStore) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *memStore) GetDocumentBySourceURL(_ context.Context, tenantID, u string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.TenantID == tenantID && d.SourceURL == u {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListDocumentsByTenant(_ context.Context, tenantID string) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Document
	for _, d := range m.docs {
		if d.TenantID == tenantID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceURL < out[j].SourceURL })
	return out, nil
}

func (m *memStore) TouchDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.docs[id].LastScrapedAt = &now
	m.touched++
	return nil
}

func (m *memStore) UpdateDocumentVersion(_ context.Context, id, path, hash string, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.versionErr != nil {
		return m.versionErr
	}
	d := m.docs[id]
	d.StoragePath, d.ContentHash, d.ScrapeVersion = path, hash, version
	d.IngestionStatus = models.IngestionPending
	return nil
}

func (m *memStore) UpdateDocumentStatus(_ context.Context, id string, status models.IngestionStatus, lastErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return core.ErrNotFound
	}
	d.IngestionStatus, d.LastError = status, lastErr
	return nil
}

func (m *memStore) ListDocumentsByStatus(_ context.Context, statuses ...models.IngestionStatus) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Document
	for _, d := range m.docs {
		for _, st := range statuses {
			if d.IngestionStatus == st {
				out = append(out, *d)
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.docs, id)
	delete(m.chunks, id)
	return nil
}

func (m *memStore) DeleteDocumentsByTenant(_ context.Context, tenantID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, d := range m.docs {
		if d.TenantID == tenantID {
			delete(m.docs, id)
			delete(m.chunks, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) ReplaceDocumentChunks(_ context.Context, id string, chunks []models.DocumentChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[id] = append([]models.DocumentChunk(nil), chunks...)
	return nil
}

func (m *memStore) GetChunksByDocument(_ context.Context, id string) ([]models.DocumentChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.DocumentChunk(nil), m.chunks[id]...), nil
}

func (m *memStore) IncrementProgress(_ context.Context, _ string, d models.ProgressDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &m.progress
	p.PagesFound += d.PagesFound
	p.PagesScraped += d.PagesScraped
	p.PagesSkipped += d.PagesSkipped
	p.PagesFailed += d.PagesFailed
	p.DocumentsCreated += d.DocumentsCreated
	p.DocumentsUpdated += d.DocumentsUpdated
	p.DocumentsUnchanged += d.DocumentsUnchanged
	p.IngestionPending += d.IngestionPending
	p.IngestionProcessing += d.IngestionProcessing
	p.IngestionCompleted += d.IngestionCompleted
	p.IngestionFailed += d.IngestionFailed
	return nil
}

func (m *memStore) byURL(u string) *models.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.SourceURL == u {
			cp := *d
			return &cp
		}
	}
	return nil
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
		return nil, fmt.Errorf("%s: %w", p, core.ErrNotFound)
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

type recordingQueue struct {
	mu   sync.Mutex
	jobs []models.IngestJob
}

func (q *recordingQueue) Dispatch(_ context.Context, j models.IngestJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, j)
	return nil
}

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

type fixedEmbedder struct{ dim int }

func (f fixedEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, f.dim)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}

type memVectors struct {
	mu      sync.Mutex
	entries map[string]int // tenant/document -> entry count
}

func (m *memVectors) UpsertVectors(_ context.Context, tenantID, documentID string, e []models.VectorEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[tenantID+"/"+documentID] = len(e)
	return nil
}

func (m *memVectors) DeleteByDocument(_ context.Context, tenantID, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, tenantID+"/"+documentID)
	return nil
}

func (m *memVectors) DeleteByTenant(context.Context, string) error { return nil }

type stubRenderer struct {
	html  string
	ok    bool
	calls int
}

func (r *stubRenderer) Render(context.Context, string, time.Duration) (string, bool) {
	r.calls++
	return r.html, r.ok
}
