package worker

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/444radio/radio-be/internal/worker/storage"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool() {
	for i := range w.concurrency {
		w.wg.Add(1)
		go w.workerLoop(i)
	}

	w.logger.Info("Worker pool spawned",
		slog.Int("worker_count", w.concurrency),
		slog.String("worker_id", w.workerID),
	)
}

// workerLoop processes tasks until the dispatcher closes jobsChan
func (w *Worker) workerLoop(workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)

	for task := range w.jobsChan {
		w.logger.Info("Worker received job",
			slog.String("worker_name", workerName),
			slog.String("job_id", task.JobID),
			slog.Uint64("delivery_tag", task.DeliveryTag),
			slog.Bool("redelivered", task.Redelivered),
		)

		err := w.processJob(w.jobsCtx, task)
		if errors.Is(err, errJobBusy) {
			w.logger.Warn("Redelivered job still owned by another worker, holding message",
				slog.String("job_id", task.JobID),
				slog.Duration("requeue_after", w.requeueDelay),
			)
			w.requeueLater(task)
			continue
		}
		if err == nil || errors.Is(err, storage.ErrJobAlreadyClaimed) {
			if err != nil {
				w.logger.Info("Job already handled elsewhere, dropping message",
					slog.String("job_id", task.JobID),
				)
			}
			w.ack(task)
			continue
		}

		requeue := shouldRequeueJob(err)
		w.logger.Error("Job processing failed",
			slog.String("worker_name", workerName),
			slog.String("job_id", task.JobID),
			slog.Bool("requeue", requeue),
			slog.String("error", err.Error()),
		)
		w.nack(task, requeue)
	}

	w.logger.Info("Worker goroutine stopping - jobsChan closed",
		slog.String("worker_name", workerName),
	)
}

func (w *Worker) ack(task jobTask) {
	if err := w.queue.Ack(task.DeliveryTag); err != nil {
		w.logger.Error("Failed to ACK message",
			slog.String("job_id", task.JobID),
			slog.String("error", err.Error()),
		)
	}
}

func (w *Worker) nack(task jobTask, requeue bool) {
	if err := w.queue.Nack(task.DeliveryTag, requeue); err != nil {
		w.logger.Error("Failed to NACK message",
			slog.String("job_id", task.JobID),
			slog.Bool("requeue", requeue),
			slog.String("error", err.Error()),
		)
	}
}

// shouldRequeueJob requeues transient failures only; everything else goes to the DLQ
func shouldRequeueJob(err error) bool {
	if errors.Is(err, ErrInvalidPayload) {
		return false
	}

	var retryableErr *RetryableError
	return errors.As(err, &retryableErr)
}
