package ingestion_engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/markdave123-py/ragcrawl/internal/core"
	"github.com/markdave123-py/ragcrawl/internal/models"
)

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

// scriptedEmbedder fails with the queued errors first, then returns dim-sized vectors.
type scriptedEmbedder struct {
	mu    sync.Mutex
	dim   int
	errs  []error
	calls int
}

func (s *scriptedEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, s.dim)
		v[0] = float32(len(texts[i]))
		out[i] = v
	}
	return out, nil
}

type memVectors struct {
	mu      sync.Mutex
	entries map[string]map[string][]models.VectorEntry // tenant -> document -> entries
	err     error
}

func newMemVectors() *memVectors {
	return &memVectors{entries: map[string]map[string][]models.VectorEntry{}}
}

func (m *memVectors) UpsertVectors(_ context.Context, tenantID, documentID string, entries []models.VectorEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.entries[tenantID] == nil {
		m.entries[tenantID] = map[string][]models.VectorEntry{}
	}
	m.entries[tenantID][documentID] = append([]models.VectorEntry(nil), entries...)
	return nil
}

func (m *memVectors) DeleteByDocument(_ context.Context, tenantID, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.entries[tenantID], documentID)
	return nil
}

func (m *memVectors) DeleteByTenant(_ context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.entries, tenantID)
	return nil
}

type memDocs struct {
	mu       sync.Mutex
	docs     map[string]*models.Document
	chunks   map[string][]models.DocumentChunk
	progress map[string]models.ProgressDelta
	chunking *models.ChunkingConfig
}

func newMemDocs(docs ...*models.Document) *memDocs {
	m := &memDocs{
		docs:     map[string]*models.Document{},
		chunks:   map[string][]models.DocumentChunk{},
		progress: map[string]models.ProgressDelta{},
	}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return m
}

func (m *memDocs) CreateDocument(_ context.Context, d *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[d.ID] = d
	return nil
}

func (m *memDocs) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *memDocs) GetDocumentBySourceURL(_ context.Context, tenantID, u string) (*models.Document, error) {
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

func (m *memDocs) ListDocumentsByTenant(_ context.Context, tenantID string) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Document
	for _, d := range m.docs {
		if d.TenantID == tenantID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memDocs) ListDocumentsByStatus(_ context.Context, statuses ...models.IngestionStatus) ([]models.Document, error) {
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
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memDocs) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.docs, id)
	delete(m.chunks, id)
	return nil
}

func (m *memDocs) DeleteDocumentsByTenant(_ context.Context, tenantID string) (int64, error) {
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

func (m *memDocs) TouchDocument(context.Context, string) error { return nil }

func (m *memDocs) UpdateDocumentVersion(_ context.Context, id, storagePath, hash string, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.docs[id]
	d.StoragePath, d.ContentHash, d.ScrapeVersion = storagePath, hash, version
	d.IngestionStatus = models.IngestionPending
	return nil
}

func (m *memDocs) UpdateDocumentStatus(_ context.Context, id string, status models.IngestionStatus, lastErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return core.ErrNotFound
	}
	d.IngestionStatus, d.LastError = status, lastErr
	return nil
}

func (m *memDocs) ReplaceDocumentChunks(_ context.Context, documentID string, chunks []models.DocumentChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[documentID] = chunks
	return nil
}

func (m *memDocs) GetChunksByDocument(_ context.Context, documentID string) ([]models.DocumentChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chunks[documentID], nil
}

func (m *memDocs) GetScraperConfig(context.Context, string, string) (*models.ScraperConfig, error) {
	return nil, nil
}

func (m *memDocs) SaveScraperConfig(context.Context, *models.ScraperConfig) error { return nil }

func (m *memDocs) GetChunkingConfig(context.Context, string) (*models.ChunkingConfig, error) {
	return m.chunking, nil
}

func (m *memDocs) IncrementProgress(_ context.Context, id string, d models.ProgressDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.progress[id]
	p.IngestionProcessing += d.IngestionProcessing
	p.IngestionCompleted += d.IngestionCompleted
	p.IngestionFailed += d.IngestionFailed
	m.progress[id] = p
	return nil
}
