package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/444radio/radio-be/internal/api/model"
	"github.com/444radio/radio-be/internal/domain"
	"github.com/444radio/radio-be/internal/metrics"
	"github.com/444radio/radio-be/internal/provider"
	"github.com/444radio/radio-be/internal/realtime"
	amqp "github.com/rabbitmq/amqp091-go"
)

// JobStore is the worker's view of the database
type JobStore interface {
	ClaimJob(ctx context.Context, jobID, workerID string, staleAfter time.Duration) (*model.Job, error)
	GetJobStatus(ctx context.Context, jobID string) (domain.JobStatus, error)
	SetPrediction(ctx context.Context, jobID, predictionID string) error
	UpdateJobHeartbeat(ctx context.Context, jobID string) error
	CompleteJob(ctx context.Context, jobID string, output map[string]any) (bool, error)
	FailJob(ctx context.Context, jobID, message string) (bool, error)
	ResetJob(ctx context.Context, jobID string) error
	ReleaseStaleJobs(ctx context.Context, staleAfter time.Duration) ([]string, error)
	IsJobCharged(ctx context.Context, jobID string) (bool, error)
	InsertMedia(ctx context.Context, m model.NewMedia) (string, error)
	DeductCredits(ctx context.Context, userID string, amount int) (*model.Deduction, error)
	LogCreditTransaction(ctx context.Context, entry model.LedgerEntry) error
}

// Predictor runs generations on the model provider
type Predictor interface {
	CreatePrediction(ctx context.Context, req provider.Request) (*provider.Prediction, error)
	GetPrediction(ctx context.Context, id string) (*provider.Prediction, error)
	CancelPrediction(ctx context.Context, id string) error
}

// Artifacts persists provider outputs
type Artifacts interface {
	CopyFromURL(ctx context.Context, src, key, contentType string) (string, error)
}

// Notifier pushes job events to the owner's private channel
type Notifier interface {
	JobCompleted(userID string, ev realtime.JobEvent) error
	JobProgress(userID string, ev realtime.JobEvent) error
	JobFailed(userID string, ev realtime.JobEvent) error
}

// Queue is the job queue. Publishing is only used to republish jobs released by the stale sweep.
type Queue interface {
	Consume(consumerTag string, prefetch int) (<-chan amqp.Delivery, error)
	PublishJSON(ctx context.Context, v any) error
	Ack(tag uint64) error
	Nack(tag uint64, requeue bool) error
	NotifyClose() <-chan *amqp.Error
}

// Config holds worker configuration
type Config struct {
	Logger    *slog.Logger
	Store     JobStore
	Queue     Queue
	Provider  Predictor
	Artifacts Artifacts
	Notifier  Notifier
	Metrics   *metrics.Metrics

	WorkerID          string
	Concurrency       int
	Prefetch          int
	JobTimeout        time.Duration
	HeartbeatInterval time.Duration
	PollInterval      time.Duration
	MaxPollAttempts   int
	ShutdownTimeout   time.Duration
	// RequeueDelay is how long a redelivered message for a job still owned by another worker is
	// held before it goes back to the queue. Defaults to the stale threshold.
	RequeueDelay time.Duration
	// SweepInterval is how often stale processing jobs are released. Defaults to HeartbeatInterval.
	SweepInterval time.Duration
}

// jobTask is one delivery handed from the dispatcher to the pool
type jobTask struct {
	JobID       string
	DeliveryTag uint64
	Redelivered bool
}

// Worker represents the background job worker
type Worker struct {
	logger    *slog.Logger
	store     JobStore
	queue     Queue
	provider  Predictor
	artifacts Artifacts
	notifier  Notifier
	metrics   *metrics.Metrics

	workerID          string
	concurrency       int
	prefetch          int
	jobTimeout        time.Duration
	heartbeatInterval time.Duration
	pollInterval      time.Duration
	maxPollAttempts   int
	shutdownTimeout   time.Duration
	requeueDelay      time.Duration
	sweepInterval     time.Duration

	jobsChan   chan jobTask
	wg         sync.WaitGroup
	deferred   sync.WaitGroup
	jobsCtx    context.Context
	cancelJobs context.CancelFunc
	now        func() time.Time
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	jobsCtx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		logger:            cfg.Logger,
		store:             cfg.Store,
		queue:             cfg.Queue,
		provider:          cfg.Provider,
		artifacts:         cfg.Artifacts,
		notifier:          cfg.Notifier,
		metrics:           cfg.Metrics,
		workerID:          cfg.WorkerID,
		concurrency:       max(cfg.Concurrency, 1),
		prefetch:          cfg.Prefetch,
		jobTimeout:        cfg.JobTimeout,
		heartbeatInterval: cfg.HeartbeatInterval,
		pollInterval:      cfg.PollInterval,
		maxPollAttempts:   cfg.MaxPollAttempts,
		shutdownTimeout:   cfg.ShutdownTimeout,
		requeueDelay:      cfg.RequeueDelay,
		sweepInterval:     cfg.SweepInterval,
		jobsChan:          make(chan jobTask),
		jobsCtx:           jobsCtx,
		cancelJobs:        cancel,
		now:               time.Now,
	}
	if w.prefetch <= 0 {
		w.prefetch = w.concurrency
	}
	if w.jobTimeout <= 0 {
		w.jobTimeout = 10 * time.Minute
	}
	if w.heartbeatInterval <= 0 {
		w.heartbeatInterval = 30 * time.Second
	}
	if w.pollInterval <= 0 {
		w.pollInterval = 2 * time.Second
	}
	if w.maxPollAttempts <= 0 {
		w.maxPollAttempts = 150
	}
	if w.shutdownTimeout <= 0 {
		w.shutdownTimeout = 30 * time.Second
	}
	if w.requeueDelay <= 0 {
		w.requeueDelay = w.staleAfter()
	}
	if w.sweepInterval <= 0 {
		w.sweepInterval = w.heartbeatInterval
	}
	return w
}

// staleAfter is how long a processing job may go without a heartbeat before another worker
// takes it over
func (w *Worker) staleAfter() time.Duration {
	return 3 * w.heartbeatInterval
}

// Start consumes jobs until ctx is cancelled or the queue channel closes.
// In-flight jobs keep running after Start returns; call Stop to wait for them.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	w.spawnWorkerPool()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		w.runStaleSweeper(sweepCtx)
	}()

	err = w.startMessageDispatcher(ctx, deliveries)
	close(w.jobsChan)
	stopSweep()
	<-sweepDone
	return err
}

// Stop waits for in-flight jobs. After the shutdown timeout their contexts are cancelled.
func (w *Worker) Stop() error {
	w.logger.Info("Stopping worker...")

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.cancelJobs()
		// held deliveries are released back to the queue once jobsCtx is cancelled
		w.deferred.Wait()
		w.logger.Info("Worker stopped")
		return nil
	case <-time.After(w.shutdownTimeout):
	}

	w.logger.Warn("Shutdown timeout reached, cancelling in-flight jobs",
		slog.Duration("timeout", w.shutdownTimeout),
	)
	w.cancelJobs()

	select {
	case <-done:
		w.deferred.Wait()
		return fmt.Errorf("worker stopped after cancelling in-flight jobs")
	case <-time.After(5 * time.Second):
		return fmt.Errorf("worker did not stop within %s", w.shutdownTimeout)
	}
}
