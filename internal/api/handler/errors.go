package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/444radio/radio-be/internal/auth"
	"github.com/444radio/radio-be/internal/domain"
	"github.com/444radio/radio-be/internal/signing"
	"github.com/444radio/radio-be/internal/webhook"
	"github.com/gin-gonic/gin"
)

const tokenLimitMessage = "Maximum 5 active tokens allowed. Revoke an existing token first."

// StatusFor maps an error to the HTTP status and the message shown to the caller.
// Anything unrecognised is a 500 with a generic message.
func StatusFor(err error) (int, string) {
	var denied *auth.DeniedError
	if errors.As(err, &denied) {
		status, _ := StatusFor(denied.Kind)
		return status, denied.Msg
	}

	var invalid *domain.ValidationError
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest, invalid.Msg
	case errors.Is(err, domain.ErrTokenLimit):
		return http.StatusBadRequest, tokenLimitMessage
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, webhook.ErrMissingSignature):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, signing.ErrExpired):
		return http.StatusUnauthorized, "Link expired"
	case errors.Is(err, signing.ErrInvalidSignature), errors.Is(err, webhook.ErrInvalidSignature):
		return http.StatusUnauthorized, "Invalid signature"
	case errors.Is(err, domain.ErrInsufficientCredits):
		return http.StatusPaymentRequired, "Insufficient credits"
	case errors.Is(err, domain.ErrSubscriptionRequired):
		return http.StatusForbidden, "Subscription required. Upgrade at /pricing to download tracks."
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, domain.ErrAlreadyRedeemed):
		return http.StatusConflict, "Code already redeemed"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many requests"
	}
	return http.StatusInternalServerError, "Internal server error"
}

// respondError logs err and writes {"error": msg}. Server faults log at error level, caller
// mistakes at warn.
func respondError(c *gin.Context, logger *slog.Logger, action string, err error) {
	status, msg := StatusFor(err)

	attrs := []any{
		slog.String("error", err.Error()),
		slog.Int("status", status),
		slog.String("path", c.Request.URL.Path),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("Failed to "+action, attrs...)
	} else {
		logger.Warn("Failed to "+action, attrs...)
	}

	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
