package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	middleware "github.com/markdave123-py/ragcrawl/internal/api/middlewares"
	"github.com/markdave123-py/ragcrawl/internal/models"
	"github.com/markdave123-py/ragcrawl/internal/services"
)

const defaultMaxUpload = 50 << 20

type DocumentService interface {
	Upload(ctx context.Context, in services.UploadInput) (*models.Document, error)
	List(ctx context.Context, tenantID string) ([]models.Document, error)
	Get(ctx context.Context, tenantID, id string) (*models.Document, error)
	Delete(ctx context.Context, tenantID, id string) error
}

type DocumentHandler struct {
	docs      DocumentService
	maxUpload int64
	log       *zap.Logger
}

func NewDocumentHandler(docs DocumentService, maxUpload int64, log *zap.Logger) *DocumentHandler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DocumentHandler{docs: docs, maxUpload: maxUpload, log: log}
}

// UploadDocument accepts a multipart "file" field and queues it for ingestion.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "tenant_id not found in context", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeError(w, h.log, fmt.Errorf("%w: %v", services.ErrInvalidInput, err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, h.log, fmt.Errorf("%w: missing file field", services.ErrInvalidInput))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, h.log, fmt.Errorf("%w: read file: %v", services.ErrInvalidInput, err))
		return
	}

	doc, err := h.docs.Upload(r.Context(), services.UploadInput{
		TenantID:        tenantID,
		KnowledgeBaseID: r.FormValue("knowledge_base_id"),
		FileName:        header.Filename,
		ContentType:     header.Header.Get("Content-Type"),
		Data:            data,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "tenant_id not found in context", http.StatusUnauthorized)
		return
	}

	documents, err := h.docs.List(r.Context(), tenantID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if documents == nil {
		documents = []models.Document{}
	}
	writeJSON(w, http.StatusOK, documents)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "tenant_id not found in context", http.StatusUnauthorized)
		return
	}

	doc, err := h.docs.Get(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument removes the document with its vectors and stored file.
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "tenant_id not found in context", http.StatusUnauthorized)
		return
	}

	if err := h.docs.Delete(r.Context(), tenantID, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
