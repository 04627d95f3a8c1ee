package ingestion_engine

import (
	"context"

	"github.com/markdave123-py/ragcrawl/internal/core"
	"github.com/markdave123-py/ragcrawl/internal/models"
)

type Ingestor interface {
	core.JobQueue
	Start(ctx context.Context, numWorkers int)
	Requeue(ctx context.Context) (int, error)
	ProcessOne(ctx context.Context, job models.IngestJob) error
}

var _ Ingestor = (*DocumentIngestor)(nil)

// Inline runs each dispatched job in the caller's goroutine, so a command
// returns only once its documents are indexed. Processing failures are already
// recorded on the document and are not reported to the dispatcher.
type Inline struct {
	Ingestor Ingestor
}

var _ core.JobQueue = Inline{}

func (q Inline) Dispatch(ctx context.Context, job models.IngestJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_ = q.Ingestor.ProcessOne(ctx, job)
	return nil
}
