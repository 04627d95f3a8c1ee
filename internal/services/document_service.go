package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markdave123-py/ragcrawl/internal/core"
	"github.com/markdave123-py/ragcrawl/internal/core/ingestion_engine"
	"github.com/markdave123-py/ragcrawl/internal/models"
)

// ErrInvalidInput marks caller mistakes the HTTP layer maps to 400.
var ErrInvalidInput = errors.New("invalid input")

// UploadInput is one uploaded file.
type UploadInput struct {
	TenantID        string
	KnowledgeBaseID string
	FileName        string
	ContentType     string
	Data            []byte
}

// VectorIndex removes indexed vectors; *ingestion_engine.VectorIndexer satisfies it.
type VectorIndex interface {
	Delete(ctx context.Context, documentID, tenantID string) error
	DeleteByTenant(ctx context.Context, tenantID string) error
}

type DocumentService struct {
	docs    core.DocumentStore
	blobs   core.BlobStore
	jobs    core.JobQueue
	vectors VectorIndex
	now     func() time.Time
	log     *zap.Logger
}

func NewDocumentService(docs core.DocumentStore, blobs core.BlobStore, jobs core.JobQueue, vectors VectorIndex, log *zap.Logger) *DocumentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &DocumentService{docs: docs, blobs: blobs, jobs: jobs, vectors: vectors, now: time.Now, log: log}
}

// Upload stores the file, records a pending document and queues it for ingestion.
// Formats the extractor does not know are refused before anything is written.
func (s *DocumentService) Upload(ctx context.Context, in UploadInput) (*models.Document, error) {
	if in.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	}
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}
	name := cleanFileName(in.FileName)
	if ingestion_engine.FormatFromPath(name) == ingestion_engine.FormatUnknown {
		return nil, fmt.Errorf("%w: %w %q", ErrInvalidInput, core.ErrUnsupportedFormat, path.Ext(name))
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	docID := uuid.NewString()
	stem := strings.TrimSuffix(name, path.Ext(name))
	key := core.StoragePath(string(models.SourceUpload), in.TenantID, docID+"-"+stem, 1, path.Ext(name))

	if err := s.blobs.Store(ctx, key, in.Data, contentType); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	now := s.now().UTC()
	doc := &models.Document{
		ID:              docID,
		TenantID:        in.TenantID,
		KnowledgeBaseID: in.KnowledgeBaseID,
		Source:          models.SourceUpload,
		FileName:        name,
		ContentType:     contentType,
		StoragePath:     key,
		ScrapeVersion:   1,
		IngestionStatus: models.IngestionPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.docs.CreateDocument(ctx, doc); err != nil {
		if derr := s.blobs.Delete(ctx, key); derr != nil {
			s.log.Warn("orphaned upload left in storage", zap.String("key", key), zap.Error(derr))
		}
		return nil, fmt.Errorf("create document: %w", err)
	}

	job := models.IngestJob{DocumentID: doc.ID, TenantID: doc.TenantID}
	if err := s.jobs.Dispatch(ctx, job); err != nil {
		if uerr := s.docs.UpdateDocumentStatus(ctx, doc.ID, models.IngestionFailed, err.Error()); uerr != nil {
			s.log.Error("mark undispatched upload failed", zap.String("document_id", doc.ID), zap.Error(uerr))
		}
		return nil, fmt.Errorf("dispatch ingest: %w", err)
	}

	s.log.Info("document uploaded",
		zap.String("tenant_id", doc.TenantID), zap.String("document_id", doc.ID),
		zap.String("file", name), zap.Int("bytes", len(in.Data)))
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, tenantID string) ([]models.Document, error) {
	return s.docs.ListDocumentsByTenant(ctx, tenantID)
}

// Get hides documents that belong to another tenant.
func (s *DocumentService) Get(ctx context.Context, tenantID, id string) (*models.Document, error) {
	doc, err := s.docs.GetDocumentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.TenantID != tenantID {
		return nil, fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	return doc, nil
}

// Delete removes a document's vectors, its stored file and then the row, whose
// chunks cascade. A failed vector delete stops before anything else is touched.
func (s *DocumentService) Delete(ctx context.Context, tenantID, id string) error {
	doc, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.vectors.Delete(ctx, doc.ID, doc.TenantID); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if doc.StoragePath != "" {
		if err := s.blobs.Delete(ctx, doc.StoragePath); err != nil {
			s.log.Warn("stored file not deleted", zap.String("key", doc.StoragePath), zap.Error(err))
		}
	}
	if err := s.docs.DeleteDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	s.log.Info("document deleted", zap.String("tenant_id", tenantID), zap.String("document_id", doc.ID))
	return nil
}

// PurgeTenant drops the tenant's vector partition, stored files and documents.
// It returns how many documents were removed.
func (s *DocumentService) PurgeTenant(ctx context.Context, tenantID string) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	}
	docs, err := s.docs.ListDocumentsByTenant(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}
	if err := s.vectors.DeleteByTenant(ctx, tenantID); err != nil {
		return 0, fmt.Errorf("delete vectors: %w", err)
	}
	for _, d := range docs {
		if d.StoragePath == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, d.StoragePath); err != nil {
			s.log.Warn("stored file not deleted", zap.String("key", d.StoragePath), zap.Error(err))
		}
	}
	n, err := s.docs.DeleteDocumentsByTenant(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	s.log.Warn("tenant purged", zap.String("tenant_id", tenantID), zap.Int64("documents", n))
	return n, nil
}

// cleanFileName drops any path components and replaces spaces.
func cleanFileName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	return strings.ReplaceAll(name, " ", "_")
}
