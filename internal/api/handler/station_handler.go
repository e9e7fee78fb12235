package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/444radio/radio-be/internal/api/dto"
	"github.com/444radio/radio-be/internal/api/model"
	"github.com/444radio/radio-be/internal/domain"
	"github.com/444radio/radio-be/internal/realtime"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const anonymousUsername = "Anonymous"

// StationHandler serves live station state and relays station events
type StationHandler struct {
	logger   *slog.Logger
	store    StationStore
	realtime Broadcaster
}

func NewStationHandler(deps *Dependencies) *StationHandler {
	return &StationHandler{
		logger:   deps.Logger,
		store:    deps.Store,
		realtime: deps.Realtime,
	}
}

// Get handles GET /api/v1/stations with one of ?id=, ?username=, ?userId= or none
func (h *StationHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	switch {
	case c.Query("id") != "":
		st, err := h.store.GetStation(ctx, c.Query("id"))
		if err != nil {
			respondError(c, h.logger, "get station", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"station": toStationDTO(*st)})

	case c.Query("username") != "":
		username := c.Query("username")
		st, err := h.store.GetLiveStationByUsername(ctx, username)
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusOK, dto.StationStatus{IsLive: false, Username: username})
			return
		}
		if err != nil {
			respondError(c, h.logger, "get station by username", err)
			return
		}
		title := str(st.Title)
		if title == "" {
			title = fmt.Sprintf("%s's Station", username)
		}
		c.JSON(http.StatusOK, dto.StationStatus{
			IsLive:        st.IsLive,
			Title:         title,
			Username:      username,
			ListenerCount: st.ListenerCount,
			StationID:     st.ID,
		})

	case c.Query("userId") != "":
		st, err := h.store.GetStationByUserID(ctx, c.Query("userId"))
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"station": nil})
			return
		}
		if err != nil {
			respondError(c, h.logger, "get station by user", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"station": toStationDTO(*st)})

	default:
		stations, err := h.store.ListLiveStations(ctx)
		if err != nil {
			respondError(c, h.logger, "list live stations", err)
			return
		}
		out := make([]dto.StationDTO, len(stations))
		for i, st := range stations {
			out[i] = toStationDTO(st)
		}
		c.JSON(http.StatusOK, gin.H{"stations": out})
	}
}

// Upsert handles POST /api/v1/stations: the host going live, changing track or going offline
func (h *StationHandler) Upsert(c *gin.Context) {
	userID := CallerID(c)

	var req dto.UpsertStationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	in := model.StationUpsert{
		UserID:   userID,
		Username: h.username(c, userID),
		Title:    req.Title,
		IsLive:   req.IsLive,
	}
	if t := req.CurrentTrack; t != nil && t.ID != "" {
		in.CurrentTrackID = &t.ID
		in.CurrentTrackTitle = &t.Title
		in.CurrentTrackImage = &t.Image
	}

	st, err := h.store.UpsertStation(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.logger, "update station", err)
		return
	}

	out := toStationDTO(*st)
	if err := h.realtime.StationUpdate(st.ID, out); err != nil {
		h.logger.Warn("Station update broadcast failed",
			slog.String("station_id", st.ID),
			slog.Any("error", err),
		)
	}

	h.logger.Info("Station updated",
		slog.String("station_id", st.ID),
		slog.String("user_id", userID),
		slog.Bool("is_live", st.IsLive),
	)
	c.JSON(http.StatusOK, gin.H{"station": out})
}

// Signal handles POST /api/v1/stations/:station_id/signal
func (h *StationHandler) Signal(c *gin.Context) {
	stationID := c.Param("station_id")

	var sig realtime.Signal
	if err := c.ShouldBindJSON(&sig); err != nil {
		badRequest(c, "signal and type are required")
		return
	}
	sig.From = CallerID(c)

	if _, err := h.store.GetStation(c.Request.Context(), stationID); err != nil {
		respondError(c, h.logger, "relay signal", err)
		return
	}

	if err := h.realtime.RelaySignal(stationID, sig); err != nil {
		respondError(c, h.logger, "relay signal", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Message handles POST /api/v1/stations/:station_id/message
func (h *StationHandler) Message(c *gin.Context) {
	stationID, userID := c.Param("station_id"), CallerID(c)

	var req dto.StationMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "message is required (max 500 characters)")
		return
	}

	msg := realtime.ChatMessage{
		ID:        uuid.NewString(),
		UserID:    userID,
		Username:  h.username(c, userID),
		Message:   req.Message,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := h.realtime.SendChat(stationID, msg); err != nil {
		respondError(c, h.logger, "send station message", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

// Reaction handles POST /api/v1/stations/:station_id/reaction
func (h *StationHandler) Reaction(c *gin.Context) {
	stationID, userID := c.Param("station_id"), CallerID(c)

	var req dto.StationReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "emoji is required")
		return
	}

	r := realtime.Reaction{
		UserID:    userID,
		Username:  h.username(c, userID),
		Emoji:     req.Emoji,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := h.realtime.SendReaction(stationID, r); err != nil {
		respondError(c, h.logger, "send reaction", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *StationHandler) username(c *gin.Context, userID string) string {
	name, err := h.store.GetUsername(c.Request.Context(), userID)
	if err != nil || name == "" {
		return anonymousUsername
	}
	return name
}
