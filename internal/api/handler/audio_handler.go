package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/444radio/radio-be/internal/signing"
	"github.com/gin-gonic/gin"
)

// AudioHandler is the signed-URL gateway in front of the bucket
type AudioHandler struct {
	logger  *slog.Logger
	objects ObjectStore
	signer  *signing.Signer
}

func NewAudioHandler(deps *Dependencies) *AudioHandler {
	return &AudioHandler{
		logger:  deps.Logger,
		objects: deps.Objects,
		signer:  deps.Signer,
	}
}

// Serve handles GET /audio/*key?exp=&sig=
func (h *AudioHandler) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		badRequest(c, "key is required")
		return
	}

	if err := h.signer.Verify(key, c.Query("exp"), c.Query("sig")); err != nil {
		respondError(c, h.logger, "verify audio signature", err)
		return
	}

	obj, err := h.objects.Get(c.Request.Context(), key)
	if err != nil {
		respondError(c, h.logger, "fetch audio", err)
		return
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.DataFromReader(http.StatusOK, obj.ContentLength, contentType, obj.Body, map[string]string{
		"Cache-Control": "private, max-age=3600",
		"Accept-Ranges": "none",
	})
}
