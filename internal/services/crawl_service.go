package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markdave123-py/ragcrawl/internal/core"
	"github.com/markdave123-py/ragcrawl/internal/core/crawler"
	"github.com/markdave123-py/ragcrawl/internal/models"
)

// Crawler is the part of *crawler.Crawler the service drives.
type Crawler interface {
	Crawl(ctx context.Context, tenantID, configID, progressID string) (*crawler.CrawlResult, error)
}

// ProgressTracker is the part of *progress.Tracker the service drives.
type ProgressTracker interface {
	Start(ctx context.Context, p *models.CrawlProgress) error
	Get(ctx context.Context, tenantID, progressID string) (*models.CrawlProgress, error)
	Complete(ctx context.Context, tenantID, progressID string) (bool, error)
	Fail(ctx context.Context, tenantID, progressID string, cause error) (bool, error)
	Cancel(ctx context.Context, tenantID, progressID string) (bool, error)
}

// CrawlService runs crawl sessions in the background and owns their lifecycle.
type CrawlService struct {
	crawler Crawler
	tracker ProgressTracker
	configs core.ConfigStore
	log     *zap.Logger

	// base outlives individual requests; Shutdown cancels it.
	base     context.Context
	stop     context.CancelFunc
	mu       sync.Mutex
	running  map[string]context.CancelFunc
	inflight sync.WaitGroup
}

func NewCrawlService(c Crawler, tracker ProgressTracker, configs core.ConfigStore, log *zap.Logger) *CrawlService {
	if log == nil {
		log = zap.NewNop()
	}
	base, stop := context.WithCancel(context.Background())
	return &CrawlService{
		crawler: c,
		tracker: tracker,
		configs: configs,
		log:     log,
		base:    base,
		stop:    stop,
		running: map[string]context.CancelFunc{},
	}
}

// Start records a running session and crawls asynchronously. The returned
// record is the initial state; poll Get for counters.
func (s *CrawlService) Start(ctx context.Context, tenantID, configID string) (*models.CrawlProgress, error) {
	p, err := s.begin(ctx, tenantID, configID)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(s.base)
	s.mu.Lock()
	s.running[p.ID] = cancel
	s.mu.Unlock()

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, p.ID)
			s.mu.Unlock()
			cancel()
		}()
		_, _ = s.finish(runCtx, p)
	}()
	return p, nil
}

// Run crawls in the caller's goroutine and returns the final record.
func (s *CrawlService) Run(ctx context.Context, tenantID, configID string) (*crawler.CrawlResult, *models.CrawlProgress, error) {
	p, err := s.begin(ctx, tenantID, configID)
	if err != nil {
		return nil, nil, err
	}
	res, crawlErr := s.finish(ctx, p)

	final, err := s.tracker.Get(context.WithoutCancel(ctx), tenantID, p.ID)
	if err != nil {
		return res, p, err
	}
	if final == nil {
		final = p
	}
	return res, final, crawlErr
}

func (s *CrawlService) begin(ctx context.Context, tenantID, configID string) (*models.CrawlProgress, error) {
	if tenantID == "" || configID == "" {
		return nil, fmt.Errorf("%w: tenant id and config id are required", ErrInvalidInput)
	}
	cfg, err := s.configs.GetScraperConfig(ctx, tenantID, configID)
	if err != nil {
		return nil, fmt.Errorf("load scraper config: %w", err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("scraper config %s: %w", configID, core.ErrNotFound)
	}

	p := &models.CrawlProgress{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		ConfigID:  configID,
		Status:    models.CrawlRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := s.tracker.Start(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// finish runs the crawl and moves the session to its terminal state. Terminal
// writes use a context detached from cancellation so a cancelled crawl still
// gets recorded.
func (s *CrawlService) finish(ctx context.Context, p *models.CrawlProgress) (*crawler.CrawlResult, error) {
	log := s.log.With(zap.String("tenant_id", p.TenantID), zap.String("progress_id", p.ID))
	res, crawlErr := s.crawler.Crawl(ctx, p.TenantID, p.ConfigID, p.ID)

	done := context.WithoutCancel(ctx)
	var err error
	switch {
	case crawlErr == nil:
		_, err = s.tracker.Complete(done, p.TenantID, p.ID)
	case errors.Is(crawlErr, context.Canceled):
		_, err = s.tracker.Cancel(done, p.TenantID, p.ID)
	default:
		_, err = s.tracker.Fail(done, p.TenantID, p.ID, crawlErr)
	}
	if err != nil {
		log.Error("recording crawl outcome failed", zap.Error(err))
		return res, errors.Join(crawlErr, err)
	}
	if crawlErr != nil && !errors.Is(crawlErr, context.Canceled) {
		log.Warn("crawl failed", zap.Error(crawlErr))
	}
	return res, crawlErr
}

func (s *CrawlService) Get(ctx context.Context, tenantID, progressID string) (*models.CrawlProgress, error) {
	p, err := s.tracker.Get(ctx, tenantID, progressID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("crawl %s: %w", progressID, core.ErrNotFound)
	}
	return p, nil
}

// Cancel moves a running session to cancelled and stops its crawler. It
// reports false when the session already finished in another state.
func (s *CrawlService) Cancel(ctx context.Context, tenantID, progressID string) (bool, error) {
	if _, err := s.Get(ctx, tenantID, progressID); err != nil {
		return false, err
	}
	ok, err := s.tracker.Cancel(ctx, tenantID, progressID)
	if err != nil || !ok {
		return ok, err
	}

	s.mu.Lock()
	cancel := s.running[progressID]
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return true, nil
}

// Shutdown cancels every running crawl and waits for them to record their
// outcome, up to ctx.
func (s *CrawlService) Shutdown(ctx context.Context) error {
	s.stop()
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
