package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/markdave123-py/ragcrawl/internal/core"
	"github.com/markdave123-py/ragcrawl/internal/models"
)

var tenantIdentRe = regexp.MustCompile(`[^a-z0-9_]+`)

// maxTenantSlug keeps "tenant_<slug>_<hash>_vectors" under the 63 byte identifier limit.
const maxTenantSlug = 24

// PgVectorStore keeps one vector table per tenant, sized to the embedding model.
type PgVectorStore struct {
	db  *sql.DB
	dim int
	log *zap.Logger

	mu    sync.Mutex
	ready map[string]bool
}

var _ core.VectorStore = (*PgVectorStore)(nil)

func NewPgVectorStore(db *sql.DB, dim int, log *zap.Logger) (*PgVectorStore, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", dim)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PgVectorStore{db: db, dim: dim, log: log, ready: map[string]bool{}}, nil
}

// vectorTable maps a tenant id to its table name. The readable slug is lossy,
// so the name carries the first 16 hex digits of sha256(tenantID) as well.
func vectorTable(tenantID string) string {
	slug := strings.Trim(tenantIdentRe.ReplaceAllString(strings.ToLower(tenantID), "_"), "_")
	if len(slug) > maxTenantSlug {
		slug = strings.TrimRight(slug[:maxTenantSlug], "_")
	}
	sum := sha256.Sum256([]byte(tenantID))
	suffix := hex.EncodeToString(sum[:8])
	if slug == "" {
		return "tenant_" + suffix + "_vectors"
	}
	return "tenant_" + slug + "_" + suffix + "_vectors"
}

func quotedTable(tenantID string) string {
	return pgx.Identifier{vectorTable(tenantID)}.Sanitize()
}

func (s *PgVectorStore) ensureTable(ctx context.Context, tenantID string) error {
	name := vectorTable(tenantID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready[name] {
		return nil
	}

	table := quotedTable(tenantID)
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			document_id UUID NOT NULL,
			ordinal     INT NOT NULL,
			text        TEXT NOT NULL,
			embedding   vector(%d) NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (document_id, ordinal)
		)`, table, s.dim)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	s.ready[name] = true
	s.log.Info("vector table ready", zap.String("tenant_id", tenantID), zap.String("table", name), zap.Int("dim", s.dim))
	return nil
}

// UpsertVectors writes entries keyed by (document, ordinal) and removes
// ordinals of the document that are no longer present.
func (s *PgVectorStore) UpsertVectors(ctx context.Context, tenantID, documentID string, entries []models.VectorEntry) error {
	for _, e := range entries {
		if len(e.Vector) != s.dim {
			return fmt.Errorf("ordinal %d has %d dimensions, table expects %d", e.Ordinal, len(e.Vector), s.dim)
		}
	}
	if err := s.ensureTable(ctx, tenantID); err != nil {
		return err
	}

	table := quotedTable(tenantID)
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	upsert := fmt.Sprintf(`
		INSERT INTO %s (document_id, ordinal, text, embedding, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (document_id, ordinal) DO UPDATE SET
			text = EXCLUDED.text,
			embedding = EXCLUDED.embedding,
			updated_at = now()`, table)

	ordinals := make([]int64, 0, len(entries))
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, upsert, documentID, e.Ordinal, e.Text, pgvector.NewVector(e.Vector)); err != nil {
			return fmt.Errorf("upsert ordinal %d: %w", e.Ordinal, err)
		}
		ordinals = append(ordinals, int64(e.Ordinal))
	}

	prune := fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1 AND NOT (ordinal = ANY($2))`, table)
	if _, err := tx.ExecContext(ctx, prune, documentID, ordinals); err != nil {
		return fmt.Errorf("prune stale ordinals: %w", err)
	}
	return tx.Commit()
}

func (s *PgVectorStore) DeleteByDocument(ctx context.Context, tenantID, documentID string) error {
	if err := s.ensureTable(ctx, tenantID); err != nil {
		return err
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1`, quotedTable(tenantID))
	_, err := s.db.ExecContext(ctx, q, documentID)
	return err
}

// DeleteByTenant drops the tenant's table; the next upsert recreates it.
func (s *PgVectorStore) DeleteByTenant(ctx context.Context, tenantID string) error {
	name := vectorTable(tenantID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+quotedTable(tenantID)); err != nil {
		return fmt.Errorf("drop %s: %w", name, err)
	}
	delete(s.ready, name)
	return nil
}
