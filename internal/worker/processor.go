package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/444radio/radio-be/internal/api/model"
	"github.com/444radio/radio-be/internal/domain"
	"github.com/444radio/radio-be/internal/objectstore"
	"github.com/444radio/radio-be/internal/provider"
	"github.com/444radio/radio-be/internal/realtime"
	"github.com/444radio/radio-be/internal/worker/storage"
)

var (
	// errJobCancelled stops a job whose row was cancelled through the API
	errJobCancelled = errors.New("job cancelled")
	// errJobBusy marks a redelivered job that is still processing under a live heartbeat
	errJobBusy = errors.New("job is processing on another worker")
	// errCompletionNotRecorded means the charge went through but the job row was not updated
	errCompletionNotRecorded = errors.New("completion not recorded")
)

// jobInfo is a claimed job with its params decoded
type jobInfo struct {
	ID           string
	UserID       string
	Type         domain.GenerationType
	Params       domain.Params
	Cost         int
	PredictionID string
	CoverURL     string
}

// storedFile is one output copied into the object store
type storedFile struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	MediaID string `json:"mediaId,omitempty"`
}

func newJobInfo(job *model.Job) (jobInfo, error) {
	info := jobInfo{
		ID:     job.ID,
		UserID: job.ClerkUserID,
		Type:   domain.GenerationType(job.Type),
		Cost:   job.CreditsCost,
	}
	if job.ReplicatePredictionID != nil {
		info.PredictionID = *job.ReplicatePredictionID
	}
	if len(job.Params) > 0 {
		if err := json.Unmarshal(job.Params, &info.Params); err != nil {
			return info, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}
	if info.Params == nil {
		info.Params = domain.Params{}
	}
	return info, nil
}

// processJob claims a job, runs it on the provider and records the outcome.
// A nil return means the delivery can be acked.
func (w *Worker) processJob(ctx context.Context, task jobTask) error {
	job, err := w.store.ClaimJob(ctx, task.JobID, w.workerID, w.staleAfter())
	if err != nil {
		if errors.Is(err, storage.ErrJobAlreadyClaimed) {
			return w.claimedElsewhere(ctx, task, err)
		}
		return NewRetryableError(fmt.Errorf("failed to claim job: %w", err))
	}

	info, err := newJobInfo(job)
	if err != nil {
		w.failJob(ctx, info, err, time.Now())
		return err
	}

	logger := w.logger.With(
		slog.String("job_id", info.ID),
		slog.String("job_type", string(info.Type)),
		slog.String("user_id", info.UserID),
	)
	logger.Info("Processing job", slog.Bool("resumed", info.PredictionID != ""))

	start := w.now()
	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	heartbeatDone := make(chan struct{})
	go w.sendJobHeartbeat(jobCtx, info.ID, heartbeatDone)
	defer close(heartbeatDone)

	files, format, err := w.executeJob(jobCtx, &info)
	switch {
	case errors.Is(err, errJobCancelled):
		logger.Info("Job cancelled while running")
		w.metrics.JobFinished(string(info.Type), string(domain.JobStatusCancelled), w.now().Sub(start))
		return nil

	case errors.Is(err, provider.ErrRateLimited) && !task.Redelivered:
		logger.Warn("Provider rate limited, requeueing job once",
			slog.String("prediction_id", info.PredictionID),
		)
		if resetErr := w.store.ResetJob(ctx, info.ID); resetErr != nil {
			logger.Error("Failed to reset job to pending", slog.String("error", resetErr.Error()))
		}
		w.metrics.JobRequeued("rate_limited")
		return NewRetryableError(err)

	case err != nil:
		if errors.Is(err, provider.ErrRateLimited) && info.PredictionID != "" {
			w.cancelPrediction(info.PredictionID)
		}
		w.failJob(ctx, info, err, start)
		return fmt.Errorf("job execution failed: %w", err)
	}

	if err := w.completeJob(jobCtx, info, files, format, start); err != nil {
		if errors.Is(err, errCompletionNotRecorded) {
			logger.Error("Job charged but not marked completed, requeueing", slog.String("error", err.Error()))
			return NewRetryableError(err)
		}
		w.failJob(ctx, info, err, start)
		return fmt.Errorf("failed to finalize job: %w", err)
	}
	return nil
}

// claimedElsewhere decides what an unclaimable delivery means. A first delivery is a duplicate
// and can be dropped. A redelivery of a job still processing means its consumer died while
// the heartbeat is fresh; the message is held until the job can be reclaimed.
func (w *Worker) claimedElsewhere(ctx context.Context, task jobTask, claimErr error) error {
	if !task.Redelivered {
		return claimErr
	}

	status, err := w.store.GetJobStatus(ctx, task.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return claimErr
		}
		return NewRetryableError(fmt.Errorf("failed to read job status: %w", err))
	}
	if status == domain.JobStatusProcessing {
		return fmt.Errorf("%w: %w", errJobBusy, claimErr)
	}
	return claimErr
}

// executeJob runs the prediction to completion and returns its outputs. A newly created
// prediction id and the cover art URL are recorded on info.
func (w *Worker) executeJob(ctx context.Context, info *jobInfo) ([]provider.OutputFile, string, error) {
	req, err := provider.BuildRequest(info.Type, info.Params)
	if err != nil {
		return nil, "", err
	}

	predictionID := info.PredictionID
	if predictionID == "" {
		pred, err := w.provider.CreatePrediction(ctx, req)
		if err != nil {
			return nil, "", err
		}
		predictionID = pred.ID
		info.PredictionID = predictionID
		if err := w.store.SetPrediction(ctx, info.ID, predictionID); err != nil {
			w.logger.Warn("Failed to store prediction id",
				slog.String("job_id", info.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	pred, err := w.pollPrediction(ctx, *info, predictionID)
	if err != nil {
		return nil, "", err
	}

	if pred.Status != provider.StatusSucceeded {
		msg := pred.ErrorMessage()
		if msg == "" {
			msg = "prediction " + pred.Status
		}
		return nil, "", errors.New(msg)
	}

	files := pred.OutputFiles()
	if len(files) == 0 {
		return nil, "", errors.New("prediction returned no output")
	}

	if wantsCoverArt(info) {
		cover, err := w.generateCoverArt(ctx, info)
		if err != nil {
			return nil, "", err
		}
		info.CoverURL = cover
	}
	return files, req.Format, nil
}

// pollPrediction waits for a terminal prediction. Between polls the job row is re-read so an
// API cancel also cancels the prediction.
func (w *Worker) pollPrediction(ctx context.Context, info jobInfo, predictionID string) (*provider.Prediction, error) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= w.maxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			w.cancelPrediction(predictionID)
			return nil, fmt.Errorf("job timed out: %w", ctx.Err())
		case <-ticker.C:
		}

		status, err := w.store.GetJobStatus(ctx, info.ID)
		if err == nil && status == domain.JobStatusCancelled {
			w.cancelPrediction(predictionID)
			return nil, errJobCancelled
		}

		pred, err := w.provider.GetPrediction(ctx, predictionID)
		if err != nil {
			if errors.Is(err, provider.ErrRateLimited) {
				return nil, err
			}
			w.logger.Warn("Failed to poll prediction",
				slog.String("job_id", info.ID),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			continue
		}
		if pred.Done() {
			return pred, nil
		}

		w.notify(w.notifier.JobProgress, info, realtime.JobEvent{
			Status:  string(domain.JobStatusProcessing),
			Attempt: attempt,
		})
	}

	w.cancelPrediction(predictionID)
	return nil, fmt.Errorf("prediction %s did not finish after %d polls", predictionID, w.maxPollAttempts)
}

func (w *Worker) cancelPrediction(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.provider.CancelPrediction(ctx, id); err != nil {
		w.logger.Warn("Failed to cancel prediction",
			slog.String("prediction_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// completeJob stores the outputs, charges the owner and marks the job completed.
// Errors returned before the charge fail the job. A job charged by an earlier attempt is
// completed without a second charge.
func (w *Worker) completeJob(ctx context.Context, info jobInfo, files []provider.OutputFile, format string, start time.Time) error {
	folder := folderFor(info.Type)
	stored := make([]storedFile, 0, len(files))
	for i, f := range files {
		name := fileName(info.Type, f, format, i)
		key := objectstore.BuildKey(info.UserID, folder, name, w.now())
		url, err := w.artifacts.CopyFromURL(ctx, f.URL, key, objectstore.ContentTypeFor(name))
		if err != nil {
			return fmt.Errorf("failed to store output %q: %w", f.Name, err)
		}
		stored = append(stored, storedFile{Name: f.Name, URL: url})
	}

	if status, err := w.store.GetJobStatus(ctx, info.ID); err == nil && status == domain.JobStatusCancelled {
		w.logger.Info("Job cancelled before completion, skipping charge", slog.String("job_id", info.ID))
		return nil
	}

	charged, err := w.store.IsJobCharged(ctx, info.ID)
	if err != nil {
		return err
	}
	if charged {
		w.logger.Info("Job already charged by an earlier attempt, recording completion only",
			slog.String("job_id", info.ID),
		)
	} else if err := w.chargeJob(ctx, info, files, stored); err != nil {
		return err
	}

	output := map[string]any{
		"files": stored,
		"url":   stored[0].URL,
	}
	if info.CoverURL != "" {
		output["imageUrl"] = info.CoverURL
	}
	applied, err := w.store.CompleteJob(context.WithoutCancel(ctx), info.ID, output)
	if err != nil {
		return fmt.Errorf("%w: %w", errCompletionNotRecorded, err)
	}
	if !applied {
		w.logger.Warn("Job left processing before completion was recorded", slog.String("job_id", info.ID))
		return nil
	}

	w.metrics.JobFinished(string(info.Type), string(domain.JobStatusCompleted), w.now().Sub(start))
	w.notify(w.notifier.JobCompleted, info, realtime.JobEvent{
		Status: string(domain.JobStatusCompleted),
		Output: output,
	})

	w.logger.Info("Job completed successfully",
		slog.String("job_id", info.ID),
		slog.Int("files", len(stored)),
		slog.Int("credits_charged", info.Cost),
	)
	return nil
}

// chargeJob deducts the job cost, lists the outputs in the owner's library and writes the
// ledger row. Only the deduction can fail the job.
func (w *Worker) chargeJob(ctx context.Context, info jobInfo, files []provider.OutputFile, stored []storedFile) error {
	deduction, err := w.store.DeductCredits(ctx, info.UserID, info.Cost)
	if err != nil {
		return err
	}
	if !deduction.Success {
		msg := "Insufficient credits"
		if deduction.ErrorMessage != nil && *deduction.ErrorMessage != "" {
			msg = *deduction.ErrorMessage
		}
		return domain.Invalid(msg)
	}
	w.metrics.CreditsDeducted(string(info.Type), info.Cost)

	for i := range stored {
		id, err := w.store.InsertMedia(ctx, mediaFor(info, files[i], stored[i].URL, i))
		if err != nil {
			w.logger.Warn("Failed to save media record",
				slog.String("job_id", info.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		stored[i].MediaID = id
	}

	balance := deduction.NewCredits
	entry := model.LedgerEntry{
		UserID:       info.UserID,
		Amount:       -info.Cost,
		BalanceAfter: &balance,
		Type:         info.Type.TransactionType(),
		Status:       domain.TxStatusSuccess,
		Description:  fmt.Sprintf("Plugin %s generation", info.Type),
		Metadata:     map[string]any{"job_id": info.ID, "files": len(stored)},
	}
	if err := w.store.LogCreditTransaction(ctx, entry); err != nil {
		w.logger.Warn("Failed to log credit transaction",
			slog.String("job_id", info.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// failJob records a failure. Users only ever see the sanitized message.
func (w *Worker) failJob(ctx context.Context, info jobInfo, cause error, start time.Time) {
	msg := provider.SanitizeError(cause)
	w.logger.Error("Job execution failed",
		slog.String("job_id", info.ID),
		slog.String("job_type", string(info.Type)),
		slog.String("error", cause.Error()),
	)

	ctx = context.WithoutCancel(ctx)
	applied, err := w.store.FailJob(ctx, info.ID, msg)
	if err != nil {
		w.logger.Error("Failed to update job status to failed",
			slog.String("job_id", info.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !applied {
		return
	}

	entry := model.LedgerEntry{
		UserID:      info.UserID,
		Amount:      0,
		Type:        info.Type.TransactionType(),
		Status:      domain.TxStatusFailed,
		Description: fmt.Sprintf("Plugin %s generation failed", info.Type),
		Metadata:    map[string]any{"job_id": info.ID, "error": msg},
	}
	if err := w.store.LogCreditTransaction(ctx, entry); err != nil {
		w.logger.Warn("Failed to log failed transaction",
			slog.String("job_id", info.ID),
			slog.String("error", err.Error()),
		)
	}

	w.metrics.JobFinished(string(info.Type), string(domain.JobStatusFailed), w.now().Sub(start))
	w.notify(w.notifier.JobFailed, info, realtime.JobEvent{
		Status: string(domain.JobStatusFailed),
		Error:  msg,
	})
}

func (w *Worker) notify(send func(string, realtime.JobEvent) error, info jobInfo, ev realtime.JobEvent) {
	ev.JobID = info.ID
	ev.Type = string(info.Type)
	if err := send(info.UserID, ev); err != nil {
		w.logger.Warn("Failed to broadcast job event",
			slog.String("job_id", info.ID),
			slog.String("status", ev.Status),
			slog.String("error", err.Error()),
		)
	}
}

// sendJobHeartbeat periodically updates the job's heartbeat timestamp
func (w *Worker) sendJobHeartbeat(ctx context.Context, jobID string, done <-chan struct{}) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.store.UpdateJobHeartbeat(ctx, jobID); err != nil {
				w.logger.Warn("Failed to update job heartbeat",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
