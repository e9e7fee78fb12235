package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/444radio/radio-be/internal/realtime"
	"github.com/gin-gonic/gin"
)

// RealtimeHandler authorizes private and presence channel subscriptions
type RealtimeHandler struct {
	logger   *slog.Logger
	store    StationStore
	realtime Broadcaster
}

func NewRealtimeHandler(deps *Dependencies) *RealtimeHandler {
	return &RealtimeHandler{logger: deps.Logger, store: deps.Store, realtime: deps.Realtime}
}

// Authorize handles POST /api/v1/realtime/auth with the client's form-encoded body
func (h *RealtimeHandler) Authorize(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	userID := CallerID(c)
	username, err := h.store.GetUsername(c.Request.Context(), userID)
	if err != nil || username == "" {
		username = anonymousUsername
	}

	resp, err := h.realtime.Authorize(realtime.Member{UserID: userID, Username: username}, body)
	if err != nil {
		respondError(c, h.logger, "authorize channel", err)
		return
	}
	c.Data(http.StatusOK, "application/json", resp)
}
