package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/444radio/radio-be/internal/api/model"
	"github.com/444radio/radio-be/internal/domain"
)

const jobColumns = `
	id, clerk_user_id, type, status, credits_cost, params, replicate_prediction_id,
	output, error, worker_id, heartbeat_at, created_at, updated_at, completed_at`

// CreateJob inserts a pending job; ID and timestamps come back from the database
func (s *Storage) CreateJob(ctx context.Context, job *model.Job) error {
	query := `
		INSERT INTO plugin_jobs (
			clerk_user_id, type, status, credits_cost, params, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, NOW(), NOW()
		)
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowxContext(
		ctx,
		query,
		job.ClerkUserID,
		job.Type,
		job.Status,
		job.CreditsCost,
		job.Params,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetJob returns the job only when userID owns it
func (s *Storage) GetJob(ctx context.Context, userID, jobID string) (*model.Job, error) {
	var job model.Job
	query := `SELECT` + jobColumns + ` FROM plugin_jobs WHERE id = $1 AND clerk_user_id = $2`

	if err := s.db.GetContext(ctx, &job, query, jobID, userID); err != nil {
		return nil, notFound(err, "job")
	}
	return &job, nil
}

// JobFilter narrows a user's job list
type JobFilter struct {
	UserID string
	Type   string
	Status string
	Page   Page
}

func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT` + jobColumns + ` FROM plugin_jobs WHERE clerk_user_id = $1`
	args := []any{filter.UserID}
	argIdx := 2

	if filter.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, filter.Type)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
	}

	query, args = filter.Page.keyset(query, args, "created_at", "id")

	var jobs []model.Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// CancelJob moves a non-terminal job to cancelled. The bool reports whether this call
// changed it; a terminal job is returned as stored.
func (s *Storage) CancelJob(ctx context.Context, userID, jobID string) (*model.Job, bool, error) {
	var job model.Job
	query := `
		UPDATE plugin_jobs
		SET status = $3, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND clerk_user_id = $2 AND status IN ($4, $5)
		RETURNING` + jobColumns

	err := s.db.GetContext(ctx, &job, query, jobID, userID,
		domain.JobStatusCancelled, domain.JobStatusPending, domain.JobStatusProcessing)
	if err == nil {
		return &job, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to cancel job: %w", err)
	}

	current, err := s.GetJob(ctx, userID, jobID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

// FailJob marks a job failed before any worker touched it, e.g. when it could not be queued
func (s *Storage) FailJob(ctx context.Context, jobID, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE plugin_jobs
		SET status = $2, error = $3, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, jobID, domain.JobStatusFailed, reason, domain.JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	return nil
}
