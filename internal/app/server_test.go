package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appMiddleware "github.com/markdave123-py/ragcrawl/internal/api/middlewares"
	"github.com/markdave123-py/ragcrawl/internal/config"
	"github.com/markdave123-py/ragcrawl/internal/models"
	"github.com/markdave123-py/ragcrawl/internal/services"
)

type nopDocs struct{}

func (nopDocs) Upload(context.Context, services.UploadInput) (*models.Document, error) {
	return &models.Document{}, nil
}

func (nopDocs) List(_ context.Context, tenantID string) ([]models.Document, error) {
	return []models.Document{{ID: "d1", TenantID: tenantID}}, nil
}

func (nopDocs) Get(context.Context, string, string) (*models.Document, error) {
	return &models.Document{}, nil
}

func (nopDocs) Delete(context.Context, string, string) error { return nil }

type nopCrawls struct{}

func (nopCrawls) Start(context.Context, string, string) (*models.CrawlProgress, error) {
	return &models.CrawlProgress{}, nil
}

func (nopCrawls) Get(context.Context, string, string) (*models.CrawlProgress, error) {
	return &models.CrawlProgress{}, nil
}

func (nopCrawls) Cancel(context.Context, string, string) (bool, error) { return true, nil }

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

func TestRouterProtectsAPI(t *testing.T) {
	cfg := &config.Config{JWTSecret: "s3cret", Port: "0"}
	h := NewRouter(cfg, nopDocs{}, nopCrawls{}, okPinger{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := appMiddleware.IssueToken([]byte(cfg.JWTSecret), "acme", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tenant_id":"acme"`)

	req = httptest.NewRequest(http.MethodDelete, "/api/documents/d1", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
