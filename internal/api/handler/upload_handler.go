package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/444radio/radio-be/internal/api/dto"
	"github.com/444radio/radio-be/internal/objectstore"
	"github.com/gin-gonic/gin"
)

var uploadFolders = []string{"uploads", "audio", "images", "videos", "stems"}

// UploadHandler stores user files in the bucket
type UploadHandler struct {
	logger   *slog.Logger
	objects  ObjectStore
	maxBytes int64
	now      func() time.Time
}

func NewUploadHandler(deps *Dependencies) *UploadHandler {
	return &UploadHandler{
		logger:   deps.Logger,
		objects:  deps.Objects,
		maxBytes: deps.MaxUploadBytes,
		now:      time.Now,
	}
}

// Upload handles POST /api/v1/uploads (multipart "file", optional "folder")
func (h *UploadHandler) Upload(c *gin.Context) {
	userID := CallerID(c)

	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		badRequest(c, "file is required")
		return
	}

	folder := c.DefaultPostForm("folder", "uploads")
	if !slices.Contains(uploadFolders, folder) {
		badRequest(c, "Invalid folder")
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, h.logger, "open upload", err)
		return
	}
	defer f.Close()

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = objectstore.ContentTypeFor(fh.Filename)
	}

	key := objectstore.BuildKey(userID, folder, fh.Filename, h.now())
	url, err := h.objects.Put(c.Request.Context(), key, f, contentType)
	if err != nil {
		respondError(c, h.logger, "store upload", err)
		return
	}

	h.logger.Info("File uploaded successfully",
		slog.String("user_id", userID),
		slog.String("key", key),
		slog.Int64("size", fh.Size),
	)

	c.JSON(http.StatusCreated, dto.UploadResponse{
		URL:         url,
		Key:         key,
		ContentType: contentType,
		Size:        fh.Size,
	})
}
