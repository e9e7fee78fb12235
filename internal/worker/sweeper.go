package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/444radio/radio-be/internal/domain"
)

// runStaleSweeper releases processing jobs whose worker stopped heartbeating and republishes
// them, once at startup and then every sweepInterval until ctx is done.
func (w *Worker) runStaleSweeper(ctx context.Context) {
	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		w.sweepStaleJobs(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) sweepStaleJobs(ctx context.Context) {
	ids, err := w.store.ReleaseStaleJobs(ctx, w.staleAfter())
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Warn("Failed to sweep stale jobs", slog.String("error", err.Error()))
		}
		return
	}

	for _, id := range ids {
		if err := w.queue.PublishJSON(ctx, domain.JobMessage{JobID: id}); err != nil {
			// the row goes stale again and a later sweep retries
			w.logger.Error("Failed to republish stale job",
				slog.String("job_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		w.metrics.JobRequeued("stale")
		w.logger.Info("Stale job republished", slog.String("job_id", id))
	}
}

// requeueLater holds a delivery for requeueDelay, then returns it to the queue. Stop releases
// held deliveries early.
func (w *Worker) requeueLater(task jobTask) {
	w.deferred.Add(1)
	go func() {
		defer w.deferred.Done()

		timer := time.NewTimer(w.requeueDelay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-w.jobsCtx.Done():
		}
		w.metrics.JobRequeued("busy")
		w.nack(task, true)
	}()
}
