package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/markdave123-py/ragcrawl/internal/core"
	"github.com/markdave123-py/ragcrawl/internal/core/quality"
	"github.com/markdave123-py/ragcrawl/internal/models"
)

const (
	DefaultUserAgent    = "ragcrawl/1.0"
	DefaultFetchTimeout = 20 * time.Second
	DefaultMaxBodyBytes = 10 << 20

	bloomCapacity = 100_000
	bloomFPRate   = 0.001
)

// Renderer renders JavaScript-dependent pages. ok=false means "use the static HTML".
type Renderer interface {
	Render(ctx context.Context, pageURL string, timeout time.Duration) (string, bool)
}

// Options tunes fetching. Zero values fall back to defaults.
type Options struct {
	UserAgent     string
	FetchTimeout  time.Duration
	MaxBodyBytes  int64
	Concurrency   int // pages in flight across the whole session; 1 keeps the walk sequential
	RenderEnabled bool
	RenderTimeout time.Duration
	HTTPClient    *http.Client
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	return o
}

// CrawlResult summarises one crawl. Skipped counts unchanged, low quality,
// robots-denied and non-HTML pages.
type CrawlResult struct {
	TenantID    string
	ConfigID    string
	Visited     int
	New         int
	Updated     int
	Skipped     int
	Failed      int
	LinkOnly    int
	DocumentIDs []string
	StartedAt   time.Time
	FinishedAt  time.Time
}

type Crawler struct {
	configs  core.ConfigStore
	docs     core.DocumentStore
	blobs    core.BlobStore
	jobs     core.JobQueue
	progress core.ProgressCounter
	analyzer *quality.Analyzer
	renderer Renderer
	client   *http.Client
	opts     Options
	now      func() time.Time
	log      *zap.Logger
}

// New wires a crawler. progress and renderer may be nil.
func New(
	configs core.ConfigStore,
	docs core.DocumentStore,
	blobs core.BlobStore,
	jobs core.JobQueue,
	progress core.ProgressCounter,
	analyzer *quality.Analyzer,
	renderer Renderer,
	opts Options,
	log *zap.Logger,
) *Crawler {
	opts = opts.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	if analyzer == nil {
		analyzer = quality.NewAnalyzer(quality.DefaultLowThreshold, quality.DefaultHighThreshold, log)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.FetchTimeout}
	}
	return &Crawler{
		configs:  configs,
		docs:     docs,
		blobs:    blobs,
		jobs:     jobs,
		progress: progress,
		analyzer: analyzer,
		renderer: renderer,
		client:   client,
		opts:     opts,
		now:      time.Now,
		log:      log,
	}
}

// session is the state of one Crawl call. Nothing here outlives it.
type session struct {
	cfg        *models.ScraperConfig
	progressID string
	policy     *policy
	limiter    *rate.Limiter
	userAgent  string
	workers    *semaphore.Weighted // Concurrency-1 slots beyond the calling goroutine

	mu      sync.Mutex
	bloom   *bloom.BloomFilter
	visited map[string]struct{}
	robots  map[string]*robotsRules
	result  CrawlResult
}

// markVisited records key and reports whether it was new. The bloom filter
// answers most repeat checks; the map settles its false positives.
func (s *session) markVisited(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bloom.TestString(key) {
		if _, ok := s.visited[key]; ok {
			return false
		}
	}
	s.bloom.AddString(key)
	s.visited[key] = struct{}{}
	s.result.Visited++
	return true
}

func (s *session) count(f func(r *CrawlResult)) {
	s.mu.Lock()
	f(&s.result)
	s.mu.Unlock()
}

func (s *session) addDocument(id string) {
	s.count(func(r *CrawlResult) { r.DocumentIDs = append(r.DocumentIDs, id) })
}

// Crawl runs a depth-first crawl for one scraper config. Per-URL failures are
// logged and counted; only config problems and cancellation end it early.
func (c *Crawler) Crawl(ctx context.Context, tenantID, configID, progressID string) (*CrawlResult, error) {
	cfg, err := c.configs.GetScraperConfig(ctx, tenantID, configID)
	if err != nil {
		return nil, fmt.Errorf("load scraper config: %w", err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("scraper config %s: %w", configID, core.ErrNotFound)
	}
	pol, err := newPolicy(cfg)
	if err != nil {
		return nil, fmt.Errorf("scraper config %s: %w", configID, err)
	}

	limit := rate.Inf
	if cfg.RateLimitRPS > 0 {
		limit = rate.Limit(cfg.RateLimitRPS)
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = c.opts.UserAgent
	}
	s := &session{
		cfg:        cfg,
		progressID: progressID,
		policy:     pol,
		limiter:    rate.NewLimiter(limit, 1),
		workers:    semaphore.NewWeighted(int64(max(c.opts.Concurrency-1, 0))),
		userAgent:  ua,
		bloom:      bloom.NewWithEstimates(bloomCapacity, bloomFPRate),
		visited:    map[string]struct{}{},
		robots:     map[string]*robotsRules{},
		result:     CrawlResult{TenantID: tenantID, ConfigID: configID, StartedAt: c.now().UTC()},
	}
	log := c.log.With(zap.String("tenant_id", tenantID), zap.String("config_id", configID))
	log.Info("crawl started", zap.Int("seeds", len(cfg.SeedURLs)), zap.Int("sitemaps", len(cfg.SitemapURLs)), zap.Int("max_depth", cfg.MaxDepth))

	roots := append([]string(nil), cfg.SeedURLs...)
	if len(cfg.SitemapURLs) > 0 {
		roots = append(roots, c.expandSitemaps(ctx, s, cfg.SitemapURLs)...)
	}
	for _, raw := range roots {
		if ctx.Err() != nil {
			break
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			log.Warn("invalid root url skipped", zap.String("url", raw), zap.Error(err))
			continue
		}
		c.visit(ctx, s, u, 0)
	}

	s.mu.Lock()
	s.result.FinishedAt = c.now().UTC()
	res := s.result
	s.mu.Unlock()

	log.Info("crawl finished",
		zap.Int("visited", res.Visited),
		zap.Int("new", res.New),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Int("link_only", res.LinkOnly),
		zap.Duration("took", res.FinishedAt.Sub(res.StartedAt)),
	)
	if err := ctx.Err(); err != nil {
		return &res, err
	}
	return &res, nil
}

// visit processes one URL and recurses into its links. It never returns an
// error; failures stay with the URL that caused them.
func (c *Crawler) visit(ctx context.Context, s *session, u *url.URL, depth int) {
	if ctx.Err() != nil || depth > s.cfg.MaxDepth {
		return
	}
	if !s.policy.Allows(u) {
		return
	}
	key := canonical(u)
	if !s.markVisited(key) {
		return
	}
	log := c.log.With(zap.String("url", key), zap.Int("depth", depth))
	c.bump(ctx, s, models.ProgressDelta{PagesFound: 1})

	if s.cfg.RespectRobots && !c.robotsFor(ctx, s, u).allowed(u.EscapedPath()) {
		log.Debug("disallowed by robots.txt")
		s.count(func(r *CrawlResult) { r.Skipped++ })
		c.bump(ctx, s, models.ProgressDelta{PagesSkipped: 1})
		return
	}

	links, err := c.processPage(ctx, s, u, log)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn("page failed", zap.Error(err))
		s.count(func(r *CrawlResult) { r.Failed++ })
		c.bump(ctx, s, models.ProgressDelta{PagesFailed: 1})
		return
	}
	if depth >= s.cfg.MaxDepth {
		return
	}

	if c.opts.Concurrency <= 1 {
		for _, l := range links {
			c.visit(ctx, s, l, depth+1)
		}
		return
	}
	// Extra goroutines come from the session-wide pool. When it is drained the
	// link is visited inline, so a parent never waits on a slot its children need.
	var g errgroup.Group
	for _, l := range links {
		if !s.workers.TryAcquire(1) {
			c.visit(ctx, s, l, depth+1)
			continue
		}
		g.Go(func() error {
			defer s.workers.Release(1)
			c.visit(ctx, s, l, depth+1)
			return nil
		})
	}
	_ = g.Wait()
}

// processPage fetches u, stores its content unless it is link-only or low
// quality, and returns the links to follow.
func (c *Crawler) processPage(ctx context.Context, s *session, u *url.URL, log *zap.Logger) ([]*url.URL, error) {
	page, err := c.fetch(ctx, s, u.String())
	if err != nil {
		return nil, err
	}
	if !page.isHTML() {
		log.Debug("non-html response skipped", zap.String("content_type", page.contentType))
		s.count(func(r *CrawlResult) { r.Skipped++ })
		c.bump(ctx, s, models.ProgressDelta{PagesSkipped: 1})
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	links := extractLinks(doc, page.url)

	if s.policy.LinkOnly(u) {
		log.Debug("link-only page traversed", zap.Int("links", len(links)))
		s.count(func(r *CrawlResult) { r.LinkOnly++ })
		return links, nil
	}

	html := string(page.body)
	analysis := c.analyzer.Analyze(html, u.String())

	if analysis.LooksJSGated && s.cfg.RenderJS && c.opts.RenderEnabled && c.renderer != nil {
		if rendered, ok := c.renderer.Render(ctx, u.String(), c.opts.RenderTimeout); ok {
			if rdoc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(rendered))); err == nil {
				doc = rdoc
				links = mergeLinks(links, extractLinks(rdoc, page.url))
				analysis = c.analyzer.Analyze(rendered, u.String())
			}
		} else {
			log.Warn("render fallback to static html")
		}
	}

	if analysis.Skip() {
		log.Debug("low quality page skipped", zap.Float64("score", analysis.QualityScore))
		s.count(func(r *CrawlResult) { r.Skipped++ })
		c.bump(ctx, s, models.ProgressDelta{PagesSkipped: 1})
		return links, nil
	}

	title, text := extractMain(doc)
	if text == "" {
		s.count(func(r *CrawlResult) { r.Skipped++ })
		c.bump(ctx, s, models.ProgressDelta{PagesSkipped: 1})
		return links, nil
	}

	out, err := c.storePage(ctx, s, u, title, text)
	if err != nil {
		return nil, err
	}
	log.Debug("page stored", zap.Stringer("outcome", out), zap.String("type", string(analysis.ContentType)))

	switch out {
	case outcomeNew:
		s.count(func(r *CrawlResult) { r.New++ })
		c.bump(ctx, s, models.ProgressDelta{PagesScraped: 1, DocumentsCreated: 1, IngestionPending: 1})
	case outcomeUpdated:
		s.count(func(r *CrawlResult) { r.Updated++ })
		c.bump(ctx, s, models.ProgressDelta{PagesScraped: 1, DocumentsUpdated: 1, IngestionPending: 1})
	case outcomeUnchanged:
		s.count(func(r *CrawlResult) { r.Skipped++ })
		c.bump(ctx, s, models.ProgressDelta{PagesSkipped: 1, DocumentsUnchanged: 1})
	}
	return links, nil
}

func mergeLinks(a, b []*url.URL) []*url.URL {
	seen := make(map[string]bool, len(a))
	for _, u := range a {
		seen[canonical(u)] = true
	}
	for _, u := range b {
		if k := canonical(u); !seen[k] {
			seen[k] = true
			a = append(a, u)
		}
	}
	return a
}

func (c *Crawler) bump(ctx context.Context, s *session, d models.ProgressDelta) {
	if c.progress == nil || s.progressID == "" {
		return
	}
	if err := c.progress.IncrementProgress(ctx, s.progressID, d); err != nil && !errors.Is(err, context.Canceled) {
		c.log.Warn("progress update failed", zap.String("progress_id", s.progressID), zap.Error(err))
	}
}
