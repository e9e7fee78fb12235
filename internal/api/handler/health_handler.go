package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports liveness and database reachability
type HealthHandler struct {
	logger  *slog.Logger
	service string
	check   func(ctx context.Context) error
}

func NewHealthHandler(deps *Dependencies, service string) *HealthHandler {
	return &HealthHandler{logger: deps.Logger, service: service, check: deps.HealthCheck}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	body := gin.H{
		"status":    "ok",
		"service":   h.service,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if h.check != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := h.check(ctx); err != nil {
			h.logger.Error("Health check failed", slog.Any("error", err))
			body["status"] = "degraded"
			body["database"] = "unreachable"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["database"] = "ok"
	}

	c.JSON(http.StatusOK, body)
}
