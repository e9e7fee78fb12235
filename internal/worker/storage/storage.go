package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/444radio/radio-be/internal/api/model"
	apistorage "github.com/444radio/radio-be/internal/api/storage"
	"github.com/444radio/radio-be/internal/domain"
	"github.com/jmoiron/sqlx"
)

// ErrJobAlreadyClaimed is returned when a job is not pending (or stale) any more
var ErrJobAlreadyClaimed = errors.New("job already claimed or not in pending status")

const jobColumns = `
	id, clerk_user_id, type, status, credits_cost, params, replicate_prediction_id,
	output, error, worker_id, heartbeat_at, created_at, updated_at, completed_at`

// Storage handles all database operations for the worker. Credit and ledger writes go
// through the same procedures the API uses.
type Storage struct {
	*apistorage.Storage
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		Storage: apistorage.NewStorage(db),
		db:      db,
		logger:  logger,
	}
}

// ClaimJob moves a pending job to processing using optimistic locking. A processing job whose
// heartbeat is older than staleAfter, or that the stale sweep released, is claimed too; its
// previous worker is gone.
func (s *Storage) ClaimJob(ctx context.Context, jobID, workerID string, staleAfter time.Duration) (*model.Job, error) {
	query := `
		UPDATE plugin_jobs
		SET status = $1,
		    worker_id = $2,
		    heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE id = $3
		  AND (status = $4 OR (status = $1 AND (
		        worker_id IS NULL OR heartbeat_at < NOW() - make_interval(secs => $5))))
		RETURNING` + jobColumns

	var job model.Job
	err := s.db.GetContext(ctx, &job, query,
		domain.JobStatusProcessing, workerID, jobID, domain.JobStatusPending, staleAfter.Seconds())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Failed to claim job - already claimed or not found",
				slog.String("job_id", jobID),
				slog.String("worker_id", workerID),
			)
			return nil, ErrJobAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	s.logger.Info("Job claimed successfully",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
		slog.String("job_type", job.Type),
	)

	return &job, nil
}

// GetJobStatus re-reads the status; the API may have cancelled the job meanwhile
func (s *Storage) GetJobStatus(ctx context.Context, jobID string) (domain.JobStatus, error) {
	var status string
	if err := s.db.GetContext(ctx, &status, `SELECT status FROM plugin_jobs WHERE id = $1`, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("failed to get job status: %w", err)
	}
	return domain.JobStatus(status), nil
}

// SetPrediction stores the provider prediction id so a cancel can reach it
func (s *Storage) SetPrediction(ctx context.Context, jobID, predictionID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE plugin_jobs
		SET replicate_prediction_id = $2, updated_at = NOW()
		WHERE id = $1
	`, jobID, predictionID)
	if err != nil {
		return fmt.Errorf("failed to store prediction id: %w", err)
	}
	return nil
}

// UpdateJobHeartbeat updates heartbeat_at for a processing job
func (s *Storage) UpdateJobHeartbeat(ctx context.Context, jobID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE plugin_jobs
		SET heartbeat_at = NOW()
		WHERE id = $1 AND status = $2
	`, jobID, domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to update job heartbeat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Job heartbeat update - no rows affected (job may not be processing)",
			slog.String("job_id", jobID),
		)
	}

	return nil
}

// CompleteJob stores the output and marks the job completed. It reports false when the job
// left processing meanwhile (cancelled), in which case nothing is written.
func (s *Storage) CompleteJob(ctx context.Context, jobID string, output map[string]any) (bool, error) {
	outputJSON, err := json.Marshal(output)
	if err != nil {
		return false, fmt.Errorf("failed to marshal output: %w", err)
	}
	return s.finish(ctx, jobID, domain.JobStatusCompleted, outputJSON, nil)
}

// FailJob marks a processing job failed with the user-facing message
func (s *Storage) FailJob(ctx context.Context, jobID, message string) (bool, error) {
	return s.finish(ctx, jobID, domain.JobStatusFailed, nil, &message)
}

func (s *Storage) finish(ctx context.Context, jobID string, status domain.JobStatus, output []byte, errMsg *string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE plugin_jobs
		SET status = $2,
		    output = COALESCE($3::jsonb, output),
		    error = $4,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status = $5
	`, jobID, status, output, errMsg, domain.JobStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to update job status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", string(status)),
		slog.Bool("applied", n > 0),
	)
	return n > 0, nil
}

// ResetJob hands a processing job back to the queue as pending. The prediction id is kept so
// the next claim resumes polling the same prediction.
func (s *Storage) ResetJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE plugin_jobs
		SET status = $2, worker_id = NULL, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, jobID, domain.JobStatusPending, domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to reset job: %w", err)
	}
	return nil
}

// ReleaseStaleJobs detaches processing jobs whose heartbeat is older than staleAfter from their
// dead worker and returns their ids for republishing. heartbeat_at is bumped so concurrent
// sweeps skip them; if the republish is lost the job goes stale again and the next sweep retries.
func (s *Storage) ReleaseStaleJobs(ctx context.Context, staleAfter time.Duration) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		UPDATE plugin_jobs
		SET worker_id = NULL, heartbeat_at = NOW(), updated_at = NOW()
		WHERE status = $1 AND heartbeat_at < NOW() - make_interval(secs => $2)
		RETURNING id
	`, domain.JobStatusProcessing, staleAfter.Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to release stale jobs: %w", err)
	}

	if len(ids) > 0 {
		s.logger.Warn("Released stale jobs",
			slog.Int("count", len(ids)),
			slog.Any("job_ids", ids),
		)
	}
	return ids, nil
}

// IsJobCharged reports whether a successful charge for the job is already in the ledger
func (s *Storage) IsJobCharged(ctx context.Context, jobID string) (bool, error) {
	filter, err := json.Marshal(map[string]string{"job_id": jobID})
	if err != nil {
		return false, fmt.Errorf("failed to marshal charge filter: %w", err)
	}

	var charged bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM credit_transactions
			WHERE metadata @> $1::jsonb AND status = $2 AND amount < 0
		)
	`
	if err := s.db.GetContext(ctx, &charged, query, string(filter), domain.TxStatusSuccess); err != nil {
		return false, fmt.Errorf("failed to check job charge: %w", err)
	}
	return charged, nil
}

// InsertMedia lists a generated artifact in the owner's library
func (s *Storage) InsertMedia(ctx context.Context, m model.NewMedia) (string, error) {
	meta := m.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal media metadata: %w", err)
	}

	query := `
		INSERT INTO combined_media (
			user_id, type, title, audio_url, image_url, video_url, prompt, genre,
			metadata, is_public, plays, likes, created_at
		) VALUES (
			$1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''),
			$9, false, 0, 0, NOW()
		)
		RETURNING id
	`

	var id string
	err = s.db.GetContext(ctx, &id, query,
		m.UserID, m.Type, m.Title, m.AudioURL, m.ImageURL, m.VideoURL, m.Prompt, m.Genre, metaJSON)
	if err != nil {
		return "", fmt.Errorf("failed to insert media: %w", err)
	}
	return id, nil
}
