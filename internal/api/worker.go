package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/maltedev/amazon-rank-tracker/internal/queue"
	"github.com/maltedev/amazon-rank-tracker/internal/tracker"
)

// Worker drains the scan queue one job at a time. Jobs run serially so
// a single browser install is never shared between overlapping runs;
// concurrency within a run is the tracker's business.
type Worker struct {
	queue   queue.Queue
	service *tracker.Service
	logger  *slog.Logger
}

func NewWorker(q queue.Queue, service *tracker.Service, logger *slog.Logger) *Worker {
	return &Worker{
		queue:   q,
		service: service,
		logger:  logger.With("component", "worker"),
	}
}

// Start blocks, processing jobs until the context is cancelled or the
// queue is closed.
func (w *Worker) Start(ctx context.Context) error {
	for {
		job, err := w.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		logger := w.logger.With("run_id", job.ID.String())
		logger.Info("job started", "keywords", len(job.Targets))

		summary, err := w.service.RunWithID(ctx, job.ID, job.Targets)
		if err != nil {
			logger.Error("job failed", "error", err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		logger.Info("job completed",
			"records", summary.Records,
			"found", summary.Found,
			"not_found", summary.NotFound,
		)
	}
}
