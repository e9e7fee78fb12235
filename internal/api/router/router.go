package router

import (
	"github.com/444radio/radio-be/internal/api/handler"
	"github.com/444radio/radio-be/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// Options carries what the router needs beyond the handler dependencies
type Options struct {
	Service        string
	AllowedOrigins []string
	Sessions       SessionVerifier
	// Limiter is optional; nil disables rate limiting
	Limiter ratelimit.Limiter
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, opts Options) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware(opts.AllowedOrigins))
	r.Use(MetricsMiddleware(deps.Metrics))

	healthHandler := handler.NewHealthHandler(deps, opts.Service)
	audioHandler := handler.NewAudioHandler(deps)
	jobHandler := handler.NewJobHandler(deps)
	creditHandler := handler.NewCreditHandler(deps)
	mediaHandler := handler.NewMediaHandler(deps)
	uploadHandler := handler.NewUploadHandler(deps)
	chatHandler := handler.NewChatHandler(deps)
	tokenHandler := handler.NewTokenHandler(deps)
	stationHandler := handler.NewStationHandler(deps)
	socialHandler := handler.NewSocialHandler(deps)
	earnHandler := handler.NewEarnHandler(deps)
	realtimeHandler := handler.NewRealtimeHandler(deps)
	webhookHandler := handler.NewWebhookHandler(deps)

	r.GET("/health", healthHandler.Health)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// GET /audio/*key?exp=&sig= - signed audio gateway
	r.GET("/audio/*key", audioHandler.Serve)

	hooks := r.Group("/webhooks")
	{
		hooks.POST("/razorpay", webhookHandler.Razorpay)
		hooks.POST("/clerk", webhookHandler.Clerk)
	}

	rateLimit := func(scope string) gin.HandlerFunc {
		if opts.Limiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return RateLimitMiddleware(opts.Limiter, deps.Metrics, scope, deps.Logger)
	}

	// Public API v1 routes
	public := r.Group("/api/v1")
	{
		public.GET("/stations", stationHandler.Get)
		public.GET("/profiles/:user_id", socialHandler.Profile)
		public.GET("/earn/tracks", earnHandler.ListTracks)
	}

	// Session-authenticated API v1 routes
	v1 := r.Group("/api/v1")
	v1.Use(SessionAuth(opts.Sessions, deps.Logger), rateLimit("session"))
	{
		credits := v1.Group("/credits")
		{
			credits.GET("", creditHandler.GetCredits)
			credits.GET("/transactions", creditHandler.ListTransactions)
			credits.POST("/convert", creditHandler.ConvertWallet)
			credits.POST("/award", creditHandler.AwardCode)
		}

		// POST /api/v1/generate/:type - Queue a generation job
		v1.POST("/generate/:type", jobHandler.Generate)

		jobs := v1.Group("/jobs")
		{
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/:job_id", jobHandler.GetJob)
			jobs.POST("/:job_id/cancel", jobHandler.CancelJob)
		}

		media := v1.Group("/media")
		{
			media.GET("", mediaHandler.ListMedia)
			media.DELETE("/:media_id", mediaHandler.DeleteMedia)
			media.POST("/:media_id/play", mediaHandler.TrackPlay)
			media.POST("/:media_id/like", mediaHandler.ToggleLike)
			media.GET("/:media_id/stream-url", mediaHandler.StreamURL)
		}

		v1.POST("/uploads", uploadHandler.Upload)

		chat := v1.Group("/chat/messages")
		{
			chat.GET("", chatHandler.List)
			chat.POST("", chatHandler.Append)
			chat.PUT("", chatHandler.Replace)
			chat.DELETE("", chatHandler.Clear)
		}

		v1.POST("/profiles/:user_id/follow", socialHandler.Follow)
		v1.DELETE("/profiles/:user_id/follow", socialHandler.Unfollow)

		tokens := v1.Group("/plugin/tokens")
		{
			tokens.GET("", tokenHandler.List)
			tokens.POST("", tokenHandler.Create)
			tokens.DELETE("/:token_id", tokenHandler.Revoke)
		}

		stations := v1.Group("/stations")
		{
			stations.POST("", stationHandler.Upsert)
			stations.POST("/:station_id/signal", stationHandler.Signal)
			stations.POST("/:station_id/message", stationHandler.Message)
			stations.POST("/:station_id/reaction", stationHandler.Reaction)
		}

		earn := v1.Group("/earn")
		{
			earn.POST("/purchase", earnHandler.Purchase)
			earn.GET("/transactions", earnHandler.ListTransactions)
		}

		v1.POST("/realtime/auth", realtimeHandler.Authorize)
	}

	// Plugin-token-authenticated routes
	plugin := r.Group("/api/plugin")
	plugin.Use(PluginAuth(deps.Store, deps.Logger), rateLimit("plugin"))
	{
		plugin.POST("/generate", jobHandler.PluginGenerate)
		plugin.GET("/jobs/:job_id", jobHandler.GetJob)
		plugin.POST("/cancel", jobHandler.PluginCancel)
		plugin.GET("/credits", creditHandler.GetCredits)
	}

	return r
}
