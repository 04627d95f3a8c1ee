package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/ragcrawl/internal/core"
)

// DefaultMaxRetries is the total number of attempts per batch.
const DefaultMaxRetries = 3

const baseBackoff = time.Second

// EmbeddingBatcher turns chunk texts into vectors in batches and retries
// rate-limited calls with exponential backoff (1s, 2s, 4s, ...).
type EmbeddingBatcher struct {
	provider    core.EmbeddingProvider
	batchSize   int
	concurrency int
	maxRetries  int
	sleep       func(ctx context.Context, d time.Duration) error
	log         *zap.Logger
}

func NewEmbeddingBatcher(provider core.EmbeddingProvider, batchSize, concurrency, maxRetries int, log *zap.Logger) *EmbeddingBatcher {
	if batchSize <= 0 {
		batchSize = 16
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &EmbeddingBatcher{
		provider:    provider,
		batchSize:   batchSize,
		concurrency: concurrency,
		maxRetries:  maxRetries,
		sleep:       sleepCtx,
		log:         log,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EmbedBatch embeds one batch with a single backend call and maps vectors back by index.
func (b *EmbeddingBatcher) EmbedBatch(ctx context.Context, chunks []Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		if c.Text == "" {
			return nil, fmt.Errorf("chunk %d: %w", c.Position, core.ErrEmptyText)
		}
		texts[i] = c.Text
	}

	var vectors [][]float32
	err := b.WithRateLimitHandling(ctx, func(ctx context.Context) error {
		out, err := b.provider.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		if len(out) != len(texts) {
			return fmt.Errorf("backend returned %d vectors for %d texts", len(out), len(texts))
		}
		vectors = out
		return nil
	}, b.maxRetries)
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// WithRateLimitHandling runs op up to maxRetries times. Only errors carrying
// core.ErrRateLimited are retried; anything else aborts at once. The returned
// error is a *core.EmbeddingError wrapping the last failure.
func (b *EmbeddingBatcher) WithRateLimitHandling(ctx context.Context, op func(context.Context) error, maxRetries int) error {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	delay := baseBackoff
	var last error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		last = err
		if !core.IsRateLimited(err) {
			return &core.EmbeddingError{Attempts: attempt, Err: err}
		}
		if attempt == maxRetries {
			break
		}
		b.log.Warn("embedding rate limited, backing off",
			zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		if err := b.sleep(ctx, delay); err != nil {
			return &core.EmbeddingError{Attempts: attempt, Err: err}
		}
		delay *= 2
	}
	return &core.EmbeddingError{Attempts: maxRetries, Err: last}
}

// EmbedAll splits chunks into batches and embeds them with bounded concurrency.
// A failed batch leaves nil vectors at its positions and does not stop the others;
// the failures are joined into the returned error.
func (b *EmbeddingBatcher) EmbedAll(ctx context.Context, chunks []Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(b.concurrency)

	for start := 0; start < len(chunks); start += b.batchSize {
		end := start + b.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		g.Go(func() error {
			out, err := b.EmbedBatch(ctx, chunks[start:end])
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("batch [%d,%d): %w", start, end, err))
				mu.Unlock()
				return nil
			}
			copy(vectors[start:end], out)
			return nil
		})
	}
	_ = g.Wait()
	return vectors, errors.Join(errs...)
}
