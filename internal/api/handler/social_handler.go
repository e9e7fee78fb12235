package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SocialHandler serves public profiles and follow edges
type SocialHandler struct {
	logger *slog.Logger
	store  SocialStore
}

func NewSocialHandler(deps *Dependencies) *SocialHandler {
	return &SocialHandler{logger: deps.Logger, store: deps.Store}
}

// Profile handles GET /api/v1/profiles/:user_id
func (h *SocialHandler) Profile(c *gin.Context) {
	p, err := h.store.GetProfile(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, h.logger, "get profile", err)
		return
	}
	c.JSON(http.StatusOK, toProfileDTO(*p))
}

// Follow handles POST /api/v1/profiles/:user_id/follow
func (h *SocialHandler) Follow(c *gin.Context) {
	if err := h.store.Follow(c.Request.Context(), CallerID(c), c.Param("user_id")); err != nil {
		respondError(c, h.logger, "follow", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": true})
}

// Unfollow handles DELETE /api/v1/profiles/:user_id/follow
func (h *SocialHandler) Unfollow(c *gin.Context) {
	if err := h.store.Unfollow(c.Request.Context(), CallerID(c), c.Param("user_id")); err != nil {
		respondError(c, h.logger, "unfollow", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": false})
}
