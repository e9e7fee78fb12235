package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/444radio/radio-be/internal/api/handler"
	"github.com/444radio/radio-be/internal/api/router"
	"github.com/444radio/radio-be/internal/api/storage"
	"github.com/444radio/radio-be/internal/auth"
	"github.com/444radio/radio-be/internal/config"
	"github.com/444radio/radio-be/internal/metrics"
	"github.com/444radio/radio-be/internal/objectstore"
	"github.com/444radio/radio-be/internal/provider"
	"github.com/444radio/radio-be/internal/ratelimit"
	"github.com/444radio/radio-be/internal/realtime"
	"github.com/444radio/radio-be/internal/signing"
	"github.com/444radio/radio-be/internal/webhook"
	"github.com/444radio/radio-be/shared/logger"
	"github.com/444radio/radio-be/shared/postgresql"
	"github.com/444radio/radio-be/shared/rabbitmq"
	sharedredis "github.com/444radio/radio-be/shared/redis"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging, cfg.App.Name)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, cfg.App.Name, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	// Redis is optional; without it rate limits are per-instance and webhook dedupe is off
	var rdb *goredis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = sharedredis.NewClient(&sharedredis.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			TLS:          cfg.Redis.TLS,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		}, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		defer rdb.Close()
	}

	sessions, err := auth.NewSessionVerifier(auth.VerifierConfig{
		PublicKeyPEM:      cfg.Auth.PublicKey,
		Issuer:            cfg.Auth.Issuer,
		AuthorizedParties: cfg.Auth.AuthorizedParties,
		CookieName:        cfg.Auth.CookieName,
		Leeway:            cfg.Auth.Leeway,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize session verifier: %w", err)
	}

	objects, err := objectstore.New(objectstore.Config{
		Endpoint:        cfg.Storage.Endpoint,
		Region:          cfg.Storage.Region,
		Bucket:          cfg.Storage.Bucket,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		PublicBaseURL:   cfg.Storage.PublicBaseURL,
	}, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}

	store := storage.NewStorage(dbClient.GetDB())
	deps := &handler.Dependencies{
		Logger:   appLogger.Logger,
		Store:    store,
		Queue:    rabbitClient,
		Provider: initProvider(&cfg.Replicate, appLogger.Logger),
		Objects:  objects,
		Signer:   signing.NewSigner(cfg.Signing.Secret, cfg.Signing.BaseURL, cfg.Signing.TTL),
		Realtime: realtime.New(realtime.Config{
			AppID:   cfg.Pusher.AppID,
			Key:     cfg.Pusher.Key,
			Secret:  cfg.Pusher.Secret,
			Cluster: cfg.Pusher.Cluster,
		}, appLogger.Logger),
		Metrics:        metrics.New(),
		Webhooks:       webhook.NewProcessor(store, appLogger.Logger),
		Deduper:        webhook.NopDeduper{},
		HealthCheck:    dbClient.HealthCheck,
		RazorpaySecret: cfg.Webhooks.RazorpaySecret,
		RedeemCodes:    cfg.Credits.RedeemCodes,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}
	if rdb != nil {
		deps.Deduper = webhook.NewRedisDeduper(rdb, "webhook:", cfg.Webhooks.DedupeTTL)
	}
	if cfg.Webhooks.ClerkSecret != "" {
		clerk, err := webhook.NewClerkVerifier(cfg.Webhooks.ClerkSecret)
		if err != nil {
			return err
		}
		deps.Clerk = clerk
	}

	r := initRouter(cfg, deps, sessions, initLimiter(&cfg.RateLimit, rdb, appLogger.Logger))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info("Starting HTTP server", slog.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	appLogger.Info("Shutting down server...")

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.Any("error", err))
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig, service string) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
		NoColor:      cfg.NoColor,
		Service:      service,
	})
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, appName string, logger *slog.Logger) (*postgresql.Client, error) {
	return postgresql.NewClient(&postgresql.Config{
		DSN:             cfg.DSN,
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		ApplicationName: appName,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		URL:                cfg.URL,
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		DeadLetterExchange: cfg.DeadLetterExchange,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}, logger)
}

func initProvider(cfg *config.ReplicateConfig, logger *slog.Logger) *provider.Client {
	return provider.NewClient(provider.Config{
		APIToken:       cfg.APIToken,
		BaseURL:        cfg.BaseURL,
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
	}, logger)
}

// initLimiter prefers shared Redis buckets and degrades to in-process ones
func initLimiter(cfg *config.RateLimitConfig, rdb *goredis.Client, logger *slog.Logger) ratelimit.Limiter {
	if !cfg.Enabled {
		return nil
	}
	rlCfg := ratelimit.Config{
		Enabled:        cfg.Enabled,
		Prefix:         "ratelimit",
		Capacity:       cfg.Capacity,
		RefillTokens:   cfg.RefillTokens,
		RefillInterval: cfg.RefillInterval,
		TTL:            cfg.TTL,
	}
	var primary ratelimit.Limiter
	if rdb != nil {
		primary = ratelimit.NewRedisLimiter(rdb, rlCfg)
	}
	return ratelimit.NewFallback(primary, ratelimit.NewLocalLimiter(rlCfg), logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, deps *handler.Dependencies, sessions *auth.SessionVerifier, limiter ratelimit.Limiter) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(deps, router.Options{
		Service:        cfg.App.Name,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Sessions:       sessions,
		Limiter:        limiter,
	})
}
