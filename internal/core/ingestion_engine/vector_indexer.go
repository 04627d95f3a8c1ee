package ingestion_engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/markdave123-py/ragcrawl/internal/core"
	"github.com/markdave123-py/ragcrawl/internal/models"
)

// VectorIndexer writes document chunks into the tenant's vector partition.
type VectorIndexer struct {
	store core.VectorStore
	log   *zap.Logger
}

func NewVectorIndexer(store core.VectorStore, log *zap.Logger) *VectorIndexer {
	if log == nil {
		log = zap.NewNop()
	}
	return &VectorIndexer{store: store, log: log}
}

// Upsert indexes chunks keyed by (tenant, document, position). Chunks without a
// vector are skipped and reported.
func (x *VectorIndexer) Upsert(ctx context.Context, documentID, tenantID string, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	entries := make([]models.VectorEntry, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			x.log.Warn("chunk has no embedding, not indexed",
				zap.String("tenant_id", tenantID), zap.String("document_id", documentID), zap.Int("position", c.Position))
			continue
		}
		entries = append(entries, models.VectorEntry{Ordinal: c.Position, Text: c.Text, Vector: c.Embedding})
	}
	if len(entries) == 0 {
		return nil
	}
	if err := x.store.UpsertVectors(ctx, tenantID, documentID, entries); err != nil {
		return &core.IndexingError{Op: "upsert", TenantID: tenantID, DocumentID: documentID, Err: err}
	}
	x.log.Debug("indexed chunks", zap.String("document_id", documentID), zap.Int("count", len(entries)))
	return nil
}

func (x *VectorIndexer) Delete(ctx context.Context, documentID, tenantID string) error {
	if err := x.store.DeleteByDocument(ctx, tenantID, documentID); err != nil {
		return &core.IndexingError{Op: "delete", TenantID: tenantID, DocumentID: documentID, Err: err}
	}
	return nil
}

// DeleteByTenant drops the tenant's whole partition.
func (x *VectorIndexer) DeleteByTenant(ctx context.Context, tenantID string) error {
	x.log.Warn("deleting every vector for tenant", zap.String("tenant_id", tenantID))
	if err := x.store.DeleteByTenant(ctx, tenantID); err != nil {
		return &core.IndexingError{Op: "delete_tenant", TenantID: tenantID, Err: err}
	}
	return nil
}
