package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/444radio/radio-be/internal/api/dto"
	"github.com/444radio/radio-be/internal/auth"
	"github.com/gin-gonic/gin"
)

const defaultTokenName = "Plugin Token"

// TokenHandler manages the caller's plugin tokens
type TokenHandler struct {
	logger   *slog.Logger
	store    TokenStore
	generate func() (string, error)
}

func NewTokenHandler(deps *Dependencies) *TokenHandler {
	return &TokenHandler{
		logger:   deps.Logger,
		store:    deps.Store,
		generate: auth.GeneratePluginToken,
	}
}

// List handles GET /api/v1/plugin/tokens
func (h *TokenHandler) List(c *gin.Context) {
	tokens, err := h.store.ListPluginTokens(c.Request.Context(), CallerID(c))
	if err != nil {
		respondError(c, h.logger, "list plugin tokens", err)
		return
	}

	out := make([]dto.PluginTokenDTO, len(tokens))
	for i, t := range tokens {
		out[i] = toTokenDTO(t)
	}
	c.JSON(http.StatusOK, gin.H{"tokens": out})
}

// Create handles POST /api/v1/plugin/tokens. The raw token is only ever returned here.
func (h *TokenHandler) Create(c *gin.Context) {
	userID := CallerID(c)

	var req dto.CreateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Invalid request body")
		return
	}
	name := req.Name
	if name == "" {
		name = defaultTokenName
	}

	raw, err := h.generate()
	if err != nil {
		respondError(c, h.logger, "generate plugin token", err)
		return
	}

	created, err := h.store.CreatePluginToken(c.Request.Context(), userID, name, raw, nil)
	if err != nil {
		respondError(c, h.logger, "create plugin token", err)
		return
	}

	h.logger.Info("Plugin token created successfully",
		slog.String("user_id", userID),
		slog.String("token_id", created.ID),
	)

	c.JSON(http.StatusCreated, dto.CreateTokenResponse{
		Token:   raw,
		Details: toTokenDTO(*created),
	})
}

// Revoke handles DELETE /api/v1/plugin/tokens/:token_id
func (h *TokenHandler) Revoke(c *gin.Context) {
	userID, tokenID := CallerID(c), c.Param("token_id")

	if err := h.store.RevokePluginToken(c.Request.Context(), userID, tokenID); err != nil {
		respondError(c, h.logger, "revoke plugin token", err)
		return
	}

	h.logger.Info("Plugin token revoked",
		slog.String("user_id", userID),
		slog.String("token_id", tokenID),
	)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
