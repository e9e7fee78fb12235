package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/444radio/radio-be/internal/api/dto"
	"github.com/444radio/radio-be/internal/api/model"
	"github.com/444radio/radio-be/internal/api/storage"
	"github.com/444radio/radio-be/internal/domain"
	"github.com/444radio/radio-be/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const providerCancelTimeout = 5 * time.Second

// JobHandler handles generation requests and job polling
type JobHandler struct {
	logger   *slog.Logger
	store    JobStore
	queue    Publisher
	provider PredictionCanceller
	metrics  *metrics.Metrics
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:   deps.Logger,
		store:    deps.Store,
		queue:    deps.Queue,
		provider: deps.Provider,
		metrics:  deps.Metrics,
	}
}

// Generate handles POST /api/v1/generate/:type
func (h *JobHandler) Generate(c *gin.Context) {
	var params domain.Params
	if err := c.ShouldBindJSON(&params); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	h.generate(c, c.Param("type"), params)
}

// PluginGenerate handles POST /api/plugin/generate, where the type is part of the body
func (h *JobHandler) PluginGenerate(c *gin.Context) {
	var params domain.Params
	if err := c.ShouldBindJSON(&params); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	h.generate(c, params.String("type"), params)
}

func (h *JobHandler) generate(c *gin.Context, rawType string, params domain.Params) {
	userID := CallerID(c)
	h.logger.Info("Generate called",
		slog.String("user_id", userID),
		slog.String("type", rawType),
	)

	genType, err := domain.ParseGenerationType(rawType)
	if err != nil {
		respondError(c, h.logger, "parse generation type", err)
		return
	}
	delete(params, "type")

	if err := domain.ValidateParams(genType, params); err != nil {
		respondError(c, h.logger, "validate generation params", err)
		return
	}
	cost := domain.CreditCost(genType, params)

	ctx := c.Request.Context()
	user, err := h.store.GetUser(ctx, userID)
	if err != nil {
		respondError(c, h.logger, "read credits", err)
		return
	}
	if user.Credits < cost {
		h.logger.Info("Insufficient credits",
			slog.String("user_id", userID),
			slog.Int("needed", cost),
			slog.Int("available", user.Credits),
		)
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":            "Insufficient credits",
			"creditsNeeded":    cost,
			"creditsAvailable": user.Credits,
		})
		return
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		respondError(c, h.logger, "encode params", err)
		return
	}

	job := model.Job{
		ClerkUserID: userID,
		Type:        string(genType),
		Status:      string(domain.JobStatusPending),
		CreditsCost: cost,
		Params:      paramsJSON,
	}
	if err := h.store.CreateJob(ctx, &job); err != nil {
		respondError(c, h.logger, "create job", err)
		return
	}

	if err := h.queue.PublishJSON(ctx, domain.JobMessage{JobID: job.ID}); err != nil {
		h.logger.Error("Failed to publish job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		if failErr := h.store.FailJob(context.WithoutCancel(ctx), job.ID, "Failed to queue job"); failErr != nil {
			h.logger.Error("Failed to mark unqueued job failed",
				slog.String("job_id", job.ID),
				slog.String("error", failErr.Error()),
			)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue job"})
		return
	}

	h.metrics.JobSubmitted(job.Type)
	h.logger.Info("Job queued successfully",
		slog.String("job_id", job.ID),
		slog.String("type", job.Type),
		slog.Int("credits_cost", cost),
	)

	c.JSON(http.StatusAccepted, dto.GenerateResponse{
		JobID:       job.ID,
		Type:        job.Type,
		Status:      job.Status,
		CreditsCost: cost,
	})
}

// GetJob handles GET /api/v1/jobs/:job_id and GET /api/plugin/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	h.logger.Debug("GetJob called",
		slog.String("job_id", jobID),
		slog.String("user_id", CallerID(c)),
	)

	if _, err := uuid.Parse(jobID); err != nil {
		badRequest(c, "job_id must be a valid UUID")
		return
	}

	job, err := h.store.GetJob(c.Request.Context(), CallerID(c), jobID)
	if err != nil {
		respondError(c, h.logger, "get job", err)
		return
	}

	c.JSON(http.StatusOK, toJobDTO(*job))
}

// ListJobs handles GET /api/v1/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	h.logger.Info("ListJobs called",
		slog.String("user_id", CallerID(c)),
		slog.String("query", c.Request.URL.RawQuery),
	)

	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "Invalid query parameters")
		return
	}

	if req.Status != "" && !domain.JobStatus(req.Status).Valid() {
		badRequest(c, "Invalid status")
		return
	}

	page, err := pageFrom(req.PageSize, req.Cursor)
	if err != nil {
		badRequest(c, "Invalid cursor")
		return
	}

	jobs, err := h.store.ListJobs(c.Request.Context(), storage.JobFilter{
		UserID: CallerID(c),
		Type:   req.Type,
		Status: req.Status,
		Page:   page,
	})
	if err != nil {
		respondError(c, h.logger, "list jobs", err)
		return
	}

	jobs, next := trimPage(jobs, page.Size, func(j model.Job) (time.Time, string) { return j.CreatedAt, j.ID })

	out := make([]dto.JobDTO, len(jobs))
	for i, job := range jobs {
		out[i] = toJobDTO(job)
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       out,
		NextCursor: next,
	})
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	h.cancel(c, c.Param("job_id"))
}

// PluginCancel handles POST /api/plugin/cancel with {"jobId": ...}
func (h *JobHandler) PluginCancel(c *gin.Context) {
	var req dto.PluginCancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "jobId is required")
		return
	}
	h.cancel(c, req.JobID)
}

// cancel is best-effort: terminal jobs come back unchanged and provider errors are only logged
func (h *JobHandler) cancel(c *gin.Context, jobID string) {
	userID := CallerID(c)
	h.logger.Info("CancelJob called",
		slog.String("job_id", jobID),
		slog.String("user_id", userID),
	)

	if _, err := uuid.Parse(jobID); err != nil {
		badRequest(c, "job_id must be a valid UUID")
		return
	}

	ctx := c.Request.Context()
	job, changed, err := h.store.CancelJob(ctx, userID, jobID)
	if err != nil {
		respondError(c, h.logger, "cancel job", err)
		return
	}

	if changed && job.ReplicatePredictionID != nil && h.provider != nil {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), providerCancelTimeout)
		defer cancel()
		if err := h.provider.CancelPrediction(cctx, *job.ReplicatePredictionID); err != nil && !errors.Is(err, context.Canceled) {
			h.logger.Warn("Failed to cancel provider prediction",
				slog.String("job_id", jobID),
				slog.String("prediction_id", *job.ReplicatePredictionID),
				slog.String("error", err.Error()),
			)
		}
	}

	if changed {
		h.metrics.JobFinished(job.Type, job.Status, 0)
	}

	c.JSON(http.StatusOK, dto.CancelJobResponse{
		JobID:     job.ID,
		Status:    job.Status,
		Cancelled: changed,
	})
}
