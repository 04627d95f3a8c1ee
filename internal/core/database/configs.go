package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/markdave123-py/ragcrawl/internal/models"
)

func (c *DatabaseClient) GetScraperConfig(ctx context.Context, tenantID, configID string) (*models.ScraperConfig, error) {
	const q = `
		SELECT id, tenant_id, knowledge_base_id, name, seed_urls, sitemap_urls, allowed_domains,
		       include_patterns, exclude_patterns, link_only_patterns, max_depth, rate_limit_rps,
		       auth_headers, respect_robots, render_js, user_agent, created_at, updated_at
		FROM scraper_configs
		WHERE tenant_id = $1 AND id = $2
	`
	var (
		cfg                                   models.ScraperConfig
		seeds, sitemaps, domains              []byte
		includes, excludes, linkOnly, headers []byte
	)
	err := c.db.QueryRowContext(ctx, q, tenantID, configID).Scan(
		&cfg.ID, &cfg.TenantID, &cfg.KnowledgeBaseID, &cfg.Name, &seeds, &sitemaps, &domains,
		&includes, &excludes, &linkOnly, &cfg.MaxDepth, &cfg.RateLimitRPS,
		&headers, &cfg.RespectRobots, &cfg.RenderJS, &cfg.UserAgent, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	fields := []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"seed_urls", seeds, &cfg.SeedURLs},
		{"sitemap_urls", sitemaps, &cfg.SitemapURLs},
		{"allowed_domains", domains, &cfg.AllowedDomains},
		{"include_patterns", includes, &cfg.IncludePatterns},
		{"exclude_patterns", excludes, &cfg.ExcludePatterns},
		{"link_only_patterns", linkOnly, &cfg.LinkOnlyPatterns},
		{"auth_headers", headers, &cfg.AuthHeaders},
	}
	for _, f := range fields {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.name, err)
		}
	}
	return &cfg, nil
}

// SaveScraperConfig inserts or replaces the config keyed by (tenant_id, id).
func (c *DatabaseClient) SaveScraperConfig(ctx context.Context, cfg *models.ScraperConfig) error {
	if cfg == nil {
		return errors.New("nil scraper config")
	}
	lists := []any{cfg.SeedURLs, cfg.SitemapURLs, cfg.AllowedDomains, cfg.IncludePatterns, cfg.ExcludePatterns, cfg.LinkOnlyPatterns}
	encoded := make([]string, 0, len(lists)+1)
	for _, l := range lists {
		b, err := jsonList(l)
		if err != nil {
			return err
		}
		encoded = append(encoded, b)
	}
	headers := "{}"
	if len(cfg.AuthHeaders) > 0 {
		b, err := json.Marshal(cfg.AuthHeaders)
		if err != nil {
			return fmt.Errorf("encode auth_headers: %w", err)
		}
		headers = string(b)
	}

	now := time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	const q = `
		INSERT INTO scraper_configs
			(id, tenant_id, knowledge_base_id, name, seed_urls, sitemap_urls, allowed_domains,
			 include_patterns, exclude_patterns, link_only_patterns, max_depth, rate_limit_rps,
			 auth_headers, respect_robots, render_js, user_agent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7::jsonb, $8::jsonb, $9::jsonb, $10::jsonb,
		        $11, $12, $13::jsonb, $14, $15, $16, $17, $18)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			knowledge_base_id  = EXCLUDED.knowledge_base_id,
			name               = EXCLUDED.name,
			seed_urls          = EXCLUDED.seed_urls,
			sitemap_urls       = EXCLUDED.sitemap_urls,
			allowed_domains    = EXCLUDED.allowed_domains,
			include_patterns   = EXCLUDED.include_patterns,
			exclude_patterns   = EXCLUDED.exclude_patterns,
			link_only_patterns = EXCLUDED.link_only_patterns,
			max_depth          = EXCLUDED.max_depth,
			rate_limit_rps     = EXCLUDED.rate_limit_rps,
			auth_headers       = EXCLUDED.auth_headers,
			respect_robots     = EXCLUDED.respect_robots,
			render_js          = EXCLUDED.render_js,
			user_agent         = EXCLUDED.user_agent,
			updated_at         = EXCLUDED.updated_at
	`
	_, err := c.db.ExecContext(ctx, q,
		cfg.ID, cfg.TenantID, cfg.KnowledgeBaseID, cfg.Name,
		encoded[0], encoded[1], encoded[2], encoded[3], encoded[4], encoded[5],
		cfg.MaxDepth, cfg.RateLimitRPS, headers, cfg.RespectRobots, cfg.RenderJS, cfg.UserAgent,
		cfg.CreatedAt, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save scraper config %s/%s: %w", cfg.TenantID, cfg.ID, err)
	}
	return nil
}

// jsonList encodes a string list, writing [] for nil.
func jsonList(v any) (string, error) {
	if l, ok := v.([]string); ok && l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetChunkingConfig returns (nil, nil) when the tenant has no stored bounds.
func (c *DatabaseClient) GetChunkingConfig(ctx context.Context, tenantID string) (*models.ChunkingConfig, error) {
	const q = `SELECT max_chars, overlap_chars FROM chunking_configs WHERE tenant_id = $1`
	var cc models.ChunkingConfig
	err := c.db.QueryRowContext(ctx, q, tenantID).Scan(&cc.MaxChars, &cc.OverlapChars)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cc, nil
}

// SaveChunkingConfig upserts a tenant's chunk bounds.
func (c *DatabaseClient) SaveChunkingConfig(ctx context.Context, tenantID string, cc models.ChunkingConfig) error {
	const q = `
		INSERT INTO chunking_configs (tenant_id, max_chars, overlap_chars, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (tenant_id) DO UPDATE SET
			max_chars = EXCLUDED.max_chars,
			overlap_chars = EXCLUDED.overlap_chars,
			updated_at = now()
	`
	_, err := c.db.ExecContext(ctx, q, tenantID, cc.MaxChars, cc.OverlapChars)
	return err
}
