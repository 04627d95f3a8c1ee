package crawler

import (
	"context"
	"encoding/xml"
	"strings"

	"go.uber.org/zap"
)

const (
	maxSitemapFetches = 100
	maxSitemapURLs    = 5000
)

type sitemapIndex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

type urlSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// parseSitemap returns nested sitemap links for an index, or page links for a urlset.
func parseSitemap(data []byte) (sitemaps, pages []string, err error) {
	var idx sitemapIndex
	if err := xml.Unmarshal(data, &idx); err == nil && len(idx.Sitemaps) > 0 {
		for _, sm := range idx.Sitemaps {
			if loc := strings.TrimSpace(sm.Loc); loc != "" {
				sitemaps = append(sitemaps, loc)
			}
		}
		return sitemaps, nil, nil
	}

	var set urlSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, nil, err
	}
	for _, u := range set.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			pages = append(pages, loc)
		}
	}
	return nil, pages, nil
}

// expandSitemaps walks sitemap indexes breadth first and returns page URLs.
// Unreadable sitemaps are logged and skipped.
func (c *Crawler) expandSitemaps(ctx context.Context, s *session, roots []string) []string {
	queue := append([]string(nil), roots...)
	seen := map[string]bool{}
	var pages []string

	for len(queue) > 0 && len(seen) < maxSitemapFetches && len(pages) < maxSitemapURLs {
		if ctx.Err() != nil {
			break
		}
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true

		page, err := c.fetch(ctx, s, cur)
		if err != nil {
			c.log.Warn("sitemap fetch failed", zap.String("sitemap", cur), zap.Error(err))
			continue
		}
		nested, found, err := parseSitemap(page.body)
		if err != nil {
			c.log.Warn("sitemap parse failed", zap.String("sitemap", cur), zap.Error(err))
			continue
		}
		queue = append(queue, nested...)
		pages = append(pages, found...)
	}

	if len(pages) > maxSitemapURLs {
		c.log.Warn("sitemap url count capped", zap.Int("found", len(pages)), zap.Int("cap", maxSitemapURLs))
		pages = pages[:maxSitemapURLs]
	}
	return pages
}
