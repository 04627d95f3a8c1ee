package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/ragcrawl/internal/core"
	"github.com/markdave123-py/ragcrawl/internal/models"
)

// allowed is the crawl FSM. Terminal states only admit themselves.
var allowed = map[models.CrawlStatus][]models.CrawlStatus{
	models.CrawlRunning:   {models.CrawlRunning, models.CrawlCompleted, models.CrawlFailed, models.CrawlCancelled},
	models.CrawlCompleted: {models.CrawlCompleted},
	models.CrawlFailed:    {models.CrawlFailed},
	models.CrawlCancelled: {models.CrawlCancelled},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to models.CrawlStatus) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s admits no transition other than to itself.
func IsTerminal(s models.CrawlStatus) bool {
	next, ok := allowed[s]
	return ok && len(next) == 1 && next[0] == s
}

type Tracker struct {
	store core.ProgressStore
	now   func() time.Time
	log   *zap.Logger
}

func NewTracker(store core.ProgressStore, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{store: store, now: time.Now, log: log}
}

// Start creates a running progress record.
func (t *Tracker) Start(ctx context.Context, p *models.CrawlProgress) error {
	p.Status = models.CrawlRunning
	if p.StartedAt.IsZero() {
		p.StartedAt = t.now().UTC()
	}
	if err := t.store.CreateCrawlProgress(ctx, p); err != nil {
		return fmt.Errorf("create crawl progress: %w", err)
	}
	return nil
}

func (t *Tracker) Get(ctx context.Context, tenantID, progressID string) (*models.CrawlProgress, error) {
	return t.store.GetCrawlProgress(ctx, tenantID, progressID)
}

// Increment applies counter deltas outside the row lock.
func (t *Tracker) Increment(ctx context.Context, progressID string, delta models.ProgressDelta) error {
	if delta.IsZero() {
		return nil
	}
	return t.store.IncrementProgress(ctx, progressID, delta)
}

// Transition moves a crawl to target under a row lock. It returns false, with a
// warning, when the record is absent or the move is not allowed. Persistence
// failures wrap core.ErrStorageInvariant.
func (t *Tracker) Transition(ctx context.Context, tenantID, progressID string, target models.CrawlStatus, lastErr string) (bool, error) {
	log := t.log.With(zap.String("tenant_id", tenantID), zap.String("progress_id", progressID), zap.String("target", string(target)))

	applied := false
	err := t.store.WithLockedProgress(ctx, tenantID, progressID, func(tx core.ProgressTx) error {
		cur := tx.Current()
		if !CanTransition(cur.Status, target) {
			log.Warn("invalid crawl transition refused", zap.String("from", string(cur.Status)))
			return nil
		}
		if cur.Status == target {
			applied = true
			return nil
		}

		var completedAt *time.Time
		if IsTerminal(target) {
			ts := t.now().UTC()
			completedAt = &ts
		}
		if err := tx.SetStatus(ctx, target, completedAt, lastErr); err != nil {
			return err
		}
		applied = true
		return nil
	})
	switch {
	case errors.Is(err, core.ErrNotFound):
		log.Warn("crawl progress not found")
		return false, nil
	case err != nil:
		return false, fmt.Errorf("transition crawl %s to %s: %w: %w", progressID, target, core.ErrStorageInvariant, err)
	}
	if applied {
		log.Debug("crawl transitioned")
	}
	return applied, nil
}

func (t *Tracker) Complete(ctx context.Context, tenantID, progressID string) (bool, error) {
	return t.Transition(ctx, tenantID, progressID, models.CrawlCompleted, "")
}

func (t *Tracker) Fail(ctx context.Context, tenantID, progressID string, cause error) (bool, error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return t.Transition(ctx, tenantID, progressID, models.CrawlFailed, msg)
}

func (t *Tracker) Cancel(ctx context.Context, tenantID, progressID string) (bool, error) {
	return t.Transition(ctx, tenantID, progressID, models.CrawlCancelled, "")
}
