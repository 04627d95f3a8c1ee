package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ragcrawl/internal/core"
	"github.com/markdave123-py/ragcrawl/internal/core/progress"
	"github.com/markdave123-py/ragcrawl/internal/models"
)

func TestUploadStoresRecordsAndDispatches(t *testing.T) {
	docs, blobs, q := newMemDocs(), newMemBlobs(), &memQueue{}
	svc := NewDocumentService(docs, blobs, q, newMemVectors(), nil)

	doc, err := svc.Upload(t.Context(), UploadInput{
		TenantID:    "acme",
		FileName:    "../../etc/Price List.txt",
		ContentType: "text/plain",
		Data:        []byte("hello"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Price_List.txt", doc.FileName)
	assert.Equal(t, models.SourceUpload, doc.Source)
	assert.Equal(t, models.IngestionPending, doc.IngestionStatus)
	assert.True(t, strings.HasPrefix(doc.StoragePath, "upload/acme/"+doc.ID+"-Price_List-v1"), doc.StoragePath)
	assert.True(t, strings.HasSuffix(doc.StoragePath, ".txt"))

	ok, _ := blobs.Exists(t.Context(), doc.StoragePath)
	assert.True(t, ok)
	require.Len(t, q.jobs, 1)
	assert.Equal(t, models.IngestJob{DocumentID: doc.ID, TenantID: "acme"}, q.jobs[0])
}

func TestUploadRejectsUnknownFormatBeforeStoring(t *testing.T) {
	docs, blobs, q := newMemDocs(), newMemBlobs(), &memQueue{}
	svc := NewDocumentService(docs, blobs, q, newMemVectors(), nil)

	_, err := svc.Upload(t.Context(), UploadInput{TenantID: "acme", FileName: "logo.png", Data: []byte{1}})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.ErrorIs(t, err, core.ErrUnsupportedFormat)
	assert.Empty(t, blobs.files)
	assert.Empty(t, q.jobs)
}

func TestUploadRemovesBlobWhenRecordFails(t *testing.T) {
	docs, blobs, q := newMemDocs(), newMemBlobs(), &memQueue{}
	docs.createErr = errBoom
	svc := NewDocumentService(docs, blobs, q, newMemVectors(), nil)

	_, err := svc.Upload(t.Context(), UploadInput{TenantID: "acme", FileName: "a.md", Data: []byte("x")})
	require.ErrorIs(t, err, errBoom)
	assert.Empty(t, blobs.files)
}

func TestUploadMarksFailedWhenDispatchFails(t *testing.T) {
	docs, blobs, q := newMemDocs(), newMemBlobs(), &memQueue{err: context.DeadlineExceeded}
	svc := NewDocumentService(docs, blobs, q, newMemVectors(), nil)

	_, err := svc.Upload(t.Context(), UploadInput{TenantID: "acme", FileName: "a.md", Data: []byte("x")})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	list, _ := docs.ListDocumentsByTenant(t.Context(), "acme")
	require.Len(t, list, 1)
	assert.Equal(t, models.IngestionFailed, list[0].IngestionStatus)
}

func TestGetHidesOtherTenants(t *testing.T) {
	docs := newMemDocs()
	require.NoError(t, docs.CreateDocument(t.Context(), &models.Document{ID: "d1", TenantID: "acme"}))
	svc := NewDocumentService(docs, newMemBlobs(), &memQueue{}, newMemVectors(), nil)

	_, err := svc.Get(t.Context(), "globex", "d1")
	require.ErrorIs(t, err, core.ErrNotFound)

	d, err := svc.Get(t.Context(), "acme", "d1")
	require.NoError(t, err)
	assert.Equal(t, "d1", d.ID)
}

func TestDeleteRemovesVectorsFileAndRow(t *testing.T) {
	docs, blobs, vectors := newMemDocs(), newMemBlobs(), newMemVectors()
	svc := NewDocumentService(docs, blobs, &memQueue{}, vectors, nil)
	doc, err := svc.Upload(t.Context(), UploadInput{TenantID: "acme", FileName: "a.md", Data: []byte("x")})
	require.NoError(t, err)
	vectors.index("acme", doc.ID)

	require.ErrorIs(t, svc.Delete(t.Context(), "globex", doc.ID), core.ErrNotFound)
	assert.True(t, vectors.has("acme", doc.ID))

	require.NoError(t, svc.Delete(t.Context(), "acme", doc.ID))
	assert.False(t, vectors.has("acme", doc.ID))
	assert.Empty(t, blobs.files)
	got, _ := docs.GetDocumentByID(t.Context(), doc.ID)
	assert.Nil(t, got)

	require.ErrorIs(t, svc.Delete(t.Context(), "acme", doc.ID), core.ErrNotFound)
}

func TestDeleteKeepsDocumentWhenVectorDeleteFails(t *testing.T) {
	docs, blobs, vectors := newMemDocs(), newMemBlobs(), newMemVectors()
	svc := NewDocumentService(docs, blobs, &memQueue{}, vectors, nil)
	doc, err := svc.Upload(t.Context(), UploadInput{TenantID: "acme", FileName: "a.md", Data: []byte("x")})
	require.NoError(t, err)
	vectors.err = errBoom

	require.ErrorIs(t, svc.Delete(t.Context(), "acme", doc.ID), errBoom)
	got, _ := docs.GetDocumentByID(t.Context(), doc.ID)
	assert.NotNil(t, got)
	assert.Len(t, blobs.files, 1)
}

func TestPurgeTenantLeavesOtherTenants(t *testing.T) {
	docs, blobs, vectors := newMemDocs(), newMemBlobs(), newMemVectors()
	svc := NewDocumentService(docs, blobs, &memQueue{}, vectors, nil)
	for _, tenant := range []string{"acme", "acme", "globex"} {
		doc, err := svc.Upload(t.Context(), UploadInput{TenantID: tenant, FileName: "a.md", Data: []byte("x")})
		require.NoError(t, err)
		vectors.index(tenant, doc.ID)
	}

	n, err := svc.PurgeTenant(t.Context(), "acme")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, _ := docs.ListDocumentsByTenant(t.Context(), "acme")
	assert.Empty(t, left)
	other, _ := docs.ListDocumentsByTenant(t.Context(), "globex")
	require.Len(t, other, 1)
	assert.True(t, vectors.has("globex", other[0].ID))
	assert.Len(t, blobs.files, 1)
	assert.False(t, vectors.hasTenant("acme"))

	_, err = svc.PurgeTenant(t.Context(), "")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func newCrawlFixture(c Crawler) (*CrawlService, *memProgress) {
	store := newMemProgress()
	cfgs := &memConfigs{cfgs: map[string]*models.ScraperConfig{
		"acme/site": {ID: "site", TenantID: "acme", SeedURLs: []string{"https://example.com"}},
	}}
	return NewCrawlService(c, progress.NewTracker(store, nil), cfgs, nil), store
}

func TestRunCompletesSession(t *testing.T) {
	svc, _ := newCrawlFixture(&scriptedCrawler{})

	res, p, err := svc.Run(t.Context(), "acme", "site")
	require.NoError(t, err)
	assert.Equal(t, 2, res.New)
	assert.Equal(t, models.CrawlCompleted, p.Status)
	require.NotNil(t, p.CompletedAt)
}

func TestRunRecordsFailure(t *testing.T) {
	svc, _ := newCrawlFixture(&scriptedCrawler{err: errBoom})

	_, p, err := svc.Run(t.Context(), "acme", "site")
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, models.CrawlFailed, p.Status)
	assert.Equal(t, "boom", p.LastError)
}

func TestStartRejectsUnknownConfig(t *testing.T) {
	svc, store := newCrawlFixture(&scriptedCrawler{})

	_, err := svc.Start(t.Context(), "acme", "missing")
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.Empty(t, store.rows)
}

func TestStartThenCancel(t *testing.T) {
	c := &scriptedCrawler{block: true, started: make(chan struct{})}
	svc, store := newCrawlFixture(c)

	p, err := svc.Start(t.Context(), "acme", "site")
	require.NoError(t, err)
	assert.Equal(t, models.CrawlRunning, p.Status)
	<-c.started

	ok, err := svc.Cancel(t.Context(), "acme", p.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))
	assert.Equal(t, models.CrawlCancelled, store.status(p.ID))
}

func TestCancelAfterCompletionIsRefused(t *testing.T) {
	svc, _ := newCrawlFixture(&scriptedCrawler{})

	_, p, err := svc.Run(t.Context(), "acme", "site")
	require.NoError(t, err)

	ok, err := svc.Cancel(t.Context(), "acme", p.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCancelUnknownSession(t *testing.T) {
	svc, _ := newCrawlFixture(&scriptedCrawler{})
	_, err := svc.Cancel(t.Context(), "acme", "nope")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestShutdownCancelsRunningCrawls(t *testing.T) {
	c := &scriptedCrawler{block: true, started: make(chan struct{})}
	svc, store := newCrawlFixture(c)

	p, err := svc.Start(t.Context(), "acme", "site")
	require.NoError(t, err)
	<-c.started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))
	assert.Equal(t, models.CrawlCancelled, store.status(p.ID))
}
