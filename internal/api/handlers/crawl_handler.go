package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	middleware "github.com/markdave123-py/ragcrawl/internal/api/middlewares"
	"github.com/markdave123-py/ragcrawl/internal/models"
	"github.com/markdave123-py/ragcrawl/internal/services"
)

type CrawlService interface {
	Start(ctx context.Context, tenantID, configID string) (*models.CrawlProgress, error)
	Get(ctx context.Context, tenantID, progressID string) (*models.CrawlProgress, error)
	Cancel(ctx context.Context, tenantID, progressID string) (bool, error)
}

type CrawlHandler struct {
	crawls CrawlService
	log    *zap.Logger
}

func NewCrawlHandler(crawls CrawlService, log *zap.Logger) *CrawlHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CrawlHandler{crawls: crawls, log: log}
}

type startCrawlRequest struct {
	ConfigID string `json:"config_id"`
}

// StartCrawl launches a crawl for one of the tenant's scraper configs and
// returns the running progress record.
func (h *CrawlHandler) StartCrawl(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "tenant_id not found in context", http.StatusUnauthorized)
		return
	}

	var req startCrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, fmt.Errorf("%w: invalid body", services.ErrInvalidInput))
		return
	}

	p, err := h.crawls.Start(r.Context(), tenantID, req.ConfigID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, p)
}

func (h *CrawlHandler) GetCrawl(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "tenant_id not found in context", http.StatusUnauthorized)
		return
	}

	p, err := h.crawls.Get(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CancelCrawl answers 409 when the crawl already reached another terminal state.
func (h *CrawlHandler) CancelCrawl(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "tenant_id not found in context", http.StatusUnauthorized)
		return
	}

	id := chi.URLParam(r, "id")
	cancelled, err := h.crawls.Cancel(r.Context(), tenantID, id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	status := http.StatusOK
	if !cancelled {
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]any{"id": id, "cancelled": cancelled})
}
