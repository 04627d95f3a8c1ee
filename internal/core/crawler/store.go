package crawler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markdave123-py/ragcrawl/internal/core"
	"github.com/markdave123-py/ragcrawl/internal/models"
)

type outcome int

const (
	outcomeNew outcome = iota + 1
	outcomeUnchanged
	outcomeUpdated
)

func (o outcome) String() string {
	switch o {
	case outcomeNew:
		return "new"
	case outcomeUnchanged:
		return "unchanged"
	case outcomeUpdated:
		return "updated"
	}
	return "unknown"
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

const maxSlugLen = 80

// slugFor builds a readable, collision-resistant file stem from a URL.
func slugFor(u *url.URL) string {
	raw := strings.ToLower(u.Hostname() + u.EscapedPath())
	var b strings.Builder
	dash := false
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	return slug + "-" + contentHash(canonical(u))[:8]
}

// pageFile is the stored form of a crawled page: a short header the chunker
// strips, then the extracted text.
func pageFile(title, pageURL, text string, at time.Time) []byte {
	var b strings.Builder
	if title != "" {
		b.WriteString("Title: " + title + "\n")
	}
	b.WriteString("URL: " + pageURL + "\n")
	b.WriteString("Scraped on: " + at.Format(time.RFC3339) + "\n\n")
	b.WriteString(text)
	b.WriteString("\n")
	return []byte(b.String())
}

// storePage diffs the extracted text against the stored document for the URL
// and creates, touches or versions it. New and updated documents get one ingest job.
func (c *Crawler) storePage(ctx context.Context, s *session, u *url.URL, title, text string) (outcome, error) {
	pageURL := canonical(u)
	hash := contentHash(text)
	now := c.now().UTC()

	existing, err := c.docs.GetDocumentBySourceURL(ctx, s.cfg.TenantID, pageURL)
	if err != nil {
		return 0, fmt.Errorf("lookup document: %w", err)
	}

	if existing != nil && existing.ContentHash == hash {
		if err := c.docs.TouchDocument(ctx, existing.ID); err != nil {
			return 0, fmt.Errorf("touch document: %w", err)
		}
		return outcomeUnchanged, nil
	}

	version := 1
	if existing != nil {
		version = existing.ScrapeVersion + 1
	}
	path := core.StoragePath(string(models.SourceWebScraper), s.cfg.TenantID, slugFor(u), version, "txt")
	if err := c.blobs.Store(ctx, path, pageFile(title, pageURL, text, now), "text/plain; charset=utf-8"); err != nil {
		return 0, fmt.Errorf("store page: %w", err)
	}

	var (
		docID  string
		result outcome
	)
	if existing == nil {
		doc := &models.Document{
			ID:              uuid.NewString(),
			TenantID:        s.cfg.TenantID,
			KnowledgeBaseID: s.cfg.KnowledgeBaseID,
			Source:          models.SourceWebScraper,
			SourceURL:       pageURL,
			FileName:        path[strings.LastIndexByte(path, '/')+1:],
			ContentType:     "text/plain",
			StoragePath:     path,
			ContentHash:     hash,
			ScrapeVersion:   1,
			IngestionStatus: models.IngestionPending,
			LastScrapedAt:   &now,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := c.docs.CreateDocument(ctx, doc); err != nil {
			if derr := c.blobs.Delete(ctx, path); derr != nil {
				c.log.Warn("orphaned page file", zap.String("path", path), zap.Error(derr))
			}
			return 0, fmt.Errorf("create document: %w", err)
		}
		docID, result = doc.ID, outcomeNew
	} else {
		if err := c.docs.UpdateDocumentVersion(ctx, existing.ID, path, hash, version); err != nil {
			if path != existing.StoragePath {
				if derr := c.blobs.Delete(ctx, path); derr != nil {
					c.log.Warn("orphaned page file", zap.String("path", path), zap.Error(derr))
				}
			}
			return 0, fmt.Errorf("update document version: %w", err)
		}
		if existing.StoragePath != "" && existing.StoragePath != path {
			if err := c.blobs.Delete(ctx, existing.StoragePath); err != nil {
				c.log.Warn("old page version not deleted", zap.String("path", existing.StoragePath), zap.Error(err))
			}
		}
		docID, result = existing.ID, outcomeUpdated
	}

	job := models.IngestJob{DocumentID: docID, TenantID: s.cfg.TenantID, ProgressID: s.progressID}
	if err := c.jobs.Dispatch(ctx, job); err != nil {
		if uerr := c.docs.UpdateDocumentStatus(ctx, docID, models.IngestionFailed, "dispatch: "+err.Error()); uerr != nil {
			c.log.Warn("mark dispatch failure", zap.String("document_id", docID), zap.Error(uerr))
		}
		return 0, fmt.Errorf("dispatch ingest: %w", err)
	}
	s.addDocument(docID)
	return result, nil
}
