package router

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/444radio/radio-be/internal/api/handler"
	"github.com/444radio/radio-be/internal/auth"
	"github.com/444radio/radio-be/internal/metrics"
	"github.com/444radio/radio-be/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// LoggerMiddleware logs HTTP requests with slog
func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// Process request
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		// signed audio links carry their signature in the query
		if strings.HasPrefix(path, "/audio/") {
			query = ""
		}

		logger.LogAttrs(c.Request.Context(), level, "HTTP Request",
			slog.Int("status", status),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.String("ip", c.ClientIP()),
			slog.String("user_agent", c.Request.UserAgent()),
			slog.String("user_id", handler.CallerID(c)),
			slog.Duration("latency", latency),
			slog.Int("body_size", c.Writer.Size()),
		)

		for _, e := range c.Errors {
			logger.Error("Request error",
				slog.String("error", e.Error()),
				slog.Uint64("type", uint64(e.Type)),
			)
		}
	}
}

const corsAllowHeaders = "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, " +
	"Cache-Control, X-Requested-With, X-Idempotency-Key, svix-id, svix-timestamp, svix-signature"

// CORSMiddleware handles Cross-Origin Resource Sharing. Only listed origins are reflected; an
// empty list disables cross-origin access.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && allowed[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Retry-After, X-RateLimit-Limit, X-RateLimit-Remaining")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// MetricsMiddleware records request counts and latency per matched route
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		done := m.RequestStarted()
		start := time.Now()

		c.Next()

		done()
		m.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// SessionVerifier resolves a request's session token to a user id
type SessionVerifier interface {
	TokenFromRequest(r *http.Request) string
	Verify(raw string) (string, error)
}

// SessionAuth requires a valid identity-provider session
func SessionAuth(verifier SessionVerifier, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := verifier.Verify(verifier.TokenFromRequest(c.Request))
		if err != nil {
			logger.Debug("Session rejected",
				slog.String("path", c.Request.URL.Path),
				slog.String("error", err.Error()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		handler.SetCaller(c, userID, handler.AuthSession)
		c.Next()
	}
}

// PluginTokenValidator checks a plugin bearer token
type PluginTokenValidator interface {
	ValidatePluginToken(ctx context.Context, token string) (*auth.PluginValidation, error)
}

// PluginAuth requires an active plugin token. The validation procedure also enforces the
// per-token hourly quota and purchase tier.
func PluginAuth(store PluginTokenValidator, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.Request)
		if !auth.LooksLikePluginToken(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid plugin token"})
			return
		}

		v, err := store.ValidatePluginToken(c.Request.Context(), token)
		if err != nil {
			logger.Error("Failed to validate plugin token", slog.String("error", err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		if err := v.Err(); err != nil {
			status, msg := handler.StatusFor(err)
			logger.Info("Plugin token rejected",
				slog.Int("status", status),
				slog.String("reason", err.Error()),
			)
			c.AbortWithStatusJSON(status, gin.H{"error": msg})
			return
		}

		handler.SetCaller(c, *v.UserID, handler.AuthPlugin)
		c.Next()
	}
}

// RateLimitMiddleware takes one token per request from the caller's bucket. Limiter failures
// let the request through.
func RateLimitMiddleware(limiter ratelimit.Limiter, m *metrics.Metrics, scope string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := handler.CallerID(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}

		d, err := limiter.Allow(c.Request.Context(), scope+":"+key)
		if err != nil {
			logger.Warn("Rate limiter unavailable", slog.String("error", err.Error()))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(d.Remaining, 0), 10))

		if !d.Allowed {
			retry := d.RetryAfterSeconds()
			m.RateLimited(scope)
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "Too many requests",
				"retryAfter": retry,
			})
			return
		}

		c.Next()
	}
}
