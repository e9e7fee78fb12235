package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/444radio/radio-be/internal/metrics"
	"github.com/444radio/radio-be/internal/webhook"
	"github.com/gin-gonic/gin"
)

const (
	providerRazorpay = "razorpay"
	providerClerk    = "clerk"
)

// WebhookHandler receives payment and identity-provider webhooks. Handlers read the raw
// body because signatures cover the exact bytes sent.
type WebhookHandler struct {
	logger         *slog.Logger
	processor      EventProcessor
	clerk          ClerkVerifier
	deduper        webhook.Deduper
	metrics        *metrics.Metrics
	razorpaySecret string
}

func NewWebhookHandler(deps *Dependencies) *WebhookHandler {
	d := deps.Deduper
	if d == nil {
		d = webhook.NopDeduper{}
	}
	return &WebhookHandler{
		logger:         deps.Logger,
		processor:      deps.Webhooks,
		clerk:          deps.Clerk,
		deduper:        d,
		metrics:        deps.Metrics,
		razorpaySecret: deps.RazorpaySecret,
	}
}

// Razorpay handles POST /webhooks/razorpay
func (h *WebhookHandler) Razorpay(c *gin.Context) {
	if h.razorpaySecret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Webhook not configured"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	sig := c.GetHeader(webhook.RazorpaySignatureHeader)
	if err := webhook.VerifyRazorpay(h.razorpaySecret, body, sig); err != nil {
		h.metrics.WebhookEvent(providerRazorpay, "", "rejected")
		respondError(c, h.logger, "verify razorpay webhook", err)
		return
	}

	var ev webhook.RazorpayEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		h.metrics.WebhookEvent(providerRazorpay, "", "rejected")
		badRequest(c, "Invalid JSON payload")
		return
	}

	deliveryID := c.GetHeader(webhook.RazorpayEventIDHeader)
	h.dispatch(c, providerRazorpay, ev.Event, deliveryID, func(ctx context.Context) error {
		return h.processor.HandleRazorpay(ctx, ev)
	})
}

// Clerk handles POST /webhooks/clerk
func (h *WebhookHandler) Clerk(c *gin.Context) {
	if h.clerk == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Webhook not configured"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	if err := h.clerk.Verify(body, c.Request.Header); err != nil {
		h.metrics.WebhookEvent(providerClerk, "", "rejected")
		respondError(c, h.logger, "verify clerk webhook", err)
		return
	}

	var ev webhook.ClerkEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		h.metrics.WebhookEvent(providerClerk, "", "rejected")
		badRequest(c, "Invalid JSON payload")
		return
	}

	h.dispatch(c, providerClerk, ev.Type, c.GetHeader("svix-id"), func(ctx context.Context) error {
		return h.processor.HandleClerk(ctx, ev)
	})
}

// dispatch runs apply once per delivery id. A failed apply forgets the id so the
// provider's retry is processed again.
func (h *WebhookHandler) dispatch(c *gin.Context, provider, event, deliveryID string, apply func(context.Context) error) {
	ctx := c.Request.Context()
	log := h.logger.With(
		slog.String("provider", provider),
		slog.String("event", event),
		slog.String("delivery_id", deliveryID),
	)

	first, err := h.deduper.FirstSeen(ctx, deliveryID)
	if err != nil {
		log.Warn("Webhook dedupe unavailable, processing anyway", slog.Any("error", err))
		first = true
	}
	if !first {
		log.Info("Duplicate webhook delivery ignored")
		h.metrics.WebhookEvent(provider, event, "duplicate")
		c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
		return
	}

	if err := apply(ctx); err != nil {
		if ferr := h.deduper.Forget(context.WithoutCancel(ctx), deliveryID); ferr != nil {
			log.Warn("Failed to forget webhook delivery", slog.Any("error", ferr))
		}
		h.metrics.WebhookEvent(provider, event, "error")
		respondError(c, log, "process webhook", err)
		return
	}

	log.Info("Webhook processed successfully")
	h.metrics.WebhookEvent(provider, event, "ok")
	c.JSON(http.StatusOK, gin.H{"received": true})
}
