package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/444radio/radio-be/internal/api/dto"
	"github.com/444radio/radio-be/internal/api/model"
	"github.com/444radio/radio-be/internal/api/storage"
	"github.com/444radio/radio-be/internal/domain"
	"github.com/444radio/radio-be/internal/signing"
	"github.com/gin-gonic/gin"
)

// MediaHandler serves the caller's library, plays, likes and signed stream URLs
type MediaHandler struct {
	logger  *slog.Logger
	store   MediaStore
	objects ObjectStore
	signer  *signing.Signer
}

func NewMediaHandler(deps *Dependencies) *MediaHandler {
	return &MediaHandler{
		logger:  deps.Logger,
		store:   deps.Store,
		objects: deps.Objects,
		signer:  deps.Signer,
	}
}

// ListMedia handles GET /api/v1/media
func (h *MediaHandler) ListMedia(c *gin.Context) {
	var req dto.ListMediaRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "Invalid query parameters")
		return
	}

	page, err := pageFrom(req.PageSize, req.Cursor)
	if err != nil {
		badRequest(c, "Invalid cursor")
		return
	}

	media, err := h.store.ListMedia(c.Request.Context(), storage.MediaFilter{
		UserID: CallerID(c),
		Type:   req.Type,
		Page:   page,
	})
	if err != nil {
		respondError(c, h.logger, "list media", err)
		return
	}

	media, next := trimPage(media, page.Size, func(m model.Media) (time.Time, string) { return m.CreatedAt, m.ID })

	out := make([]dto.MediaDTO, len(media))
	for i, m := range media {
		out[i] = toMediaDTO(m)
	}
	c.JSON(http.StatusOK, dto.ListMediaResponse{Media: out, NextCursor: next})
}

// DeleteMedia handles DELETE /api/v1/media/:media_id
func (h *MediaHandler) DeleteMedia(c *gin.Context) {
	userID, mediaID := CallerID(c), c.Param("media_id")
	h.logger.Info("DeleteMedia called",
		slog.String("user_id", userID),
		slog.String("media_id", mediaID),
	)

	if err := h.store.DeleteMedia(c.Request.Context(), userID, mediaID); err != nil {
		respondError(c, h.logger, "delete media", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// TrackPlay handles POST /api/v1/media/:media_id/play. The owner's own plays are not counted.
func (h *MediaHandler) TrackPlay(c *gin.Context) {
	userID, mediaID := CallerID(c), c.Param("media_id")
	ctx := c.Request.Context()

	owner, err := h.store.GetMediaOwner(ctx, mediaID)
	if err != nil {
		respondError(c, h.logger, "get media", err)
		return
	}

	if owner.UserID == userID {
		c.JSON(http.StatusOK, dto.TrackPlayResponse{
			Success: true,
			Plays:   owner.Plays,
			Message: "Artist plays don't count",
		})
		return
	}

	plays, err := h.store.IncrementPlayCount(ctx, mediaID)
	if err != nil {
		respondError(c, h.logger, "track play", err)
		return
	}

	c.JSON(http.StatusOK, dto.TrackPlayResponse{Success: true, Plays: plays, Counted: true})
}

// ToggleLike handles POST /api/v1/media/:media_id/like
func (h *MediaHandler) ToggleLike(c *gin.Context) {
	liked, count, err := h.store.ToggleLike(c.Request.Context(), CallerID(c), c.Param("media_id"))
	if err != nil {
		respondError(c, h.logger, "toggle like", err)
		return
	}
	c.JSON(http.StatusOK, dto.LikeResponse{Liked: liked, LikesCount: count})
}

// StreamURL handles GET /api/v1/media/:media_id/stream-url. Private media is only signed for
// its owner.
func (h *MediaHandler) StreamURL(c *gin.Context) {
	userID := CallerID(c)

	m, err := h.store.GetMedia(c.Request.Context(), c.Param("media_id"))
	if err != nil {
		respondError(c, h.logger, "get media", err)
		return
	}
	if !m.IsPublic && m.UserID != userID {
		respondError(c, h.logger, "sign stream url", domain.ErrForbidden)
		return
	}
	if m.AudioURL == nil || *m.AudioURL == "" {
		respondError(c, h.logger, "sign stream url", domain.ErrNotFound)
		return
	}

	key, ok := h.objects.KeyFromURL(*m.AudioURL)
	if !ok {
		// hosted elsewhere, nothing to sign
		c.JSON(http.StatusOK, dto.StreamURLResponse{URL: *m.AudioURL})
		return
	}

	url, exp := h.signer.SignedURL(key, 0)
	c.JSON(http.StatusOK, dto.StreamURLResponse{URL: url, ExpiresAt: exp.Unix()})
}
