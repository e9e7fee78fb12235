package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DB_PASSWORD", "s3cret")
			t.Setenv("TEST_AUTH_PUBLIC_KEY", "pem-here")
			t.Setenv("TEST_RAZORPAY_SECRET", "rzp_whsec")

			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "localhost", cfg.Database.Host)
			assert.Equal(t, "s3cret", cfg.Database.Password)
			assert.Equal(t, "radio_db", cfg.Database.Database)
			assert.Equal(t, "generation_exchange", cfg.RabbitMQ.Exchange.Name)
			assert.Equal(t, "generation_jobs", cfg.RabbitMQ.Queue.Name)
			assert.Equal(t, "generation_dlx", cfg.RabbitMQ.DeadLetterExchange)
			assert.Equal(t, "radio-api-service", cfg.App.Name)
			assert.Equal(t, "pem-here", cfg.Auth.PublicKey)
			assert.Equal(t, 100, cfg.Credits.RedeemCodes["PORSCHE"])
			assert.Equal(t, "rzp_whsec", cfg.Webhooks.RazorpaySecret)
			require.NoError(t, cfg.ValidateAPIConfig())

			// defaults
			assert.Equal(t, "__session", cfg.Auth.CookieName)
			assert.Equal(t, time.Hour, cfg.Signing.TTL)
			assert.Equal(t, 2*time.Second, cfg.Worker.PollInterval)
			assert.Equal(t, 150, cfg.Worker.MaxPollAttempts)
			assert.Equal(t, "https://api.replicate.com/v1", cfg.Replicate.BaseURL)
		})
	}
}

func TestLoad_UnsetWebhookSecretFailsValidation(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "s3cret")
	t.Setenv("TEST_AUTH_PUBLIC_KEY", "pem-here")
	t.Setenv("TEST_RAZORPAY_SECRET", "")

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)
	assert.Empty(t, cfg.Webhooks.RazorpaySecret)

	err = cfg.ValidateAPIConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "razorpay_secret")
}

func validAPIConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "radio_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			Exchange: ExchangeConfig{Name: "generation_exchange"},
			Queue:    QueueConfig{Name: "generation_jobs"},
		},
		Auth:     AuthConfig{PublicKey: "pem"},
		Signing:  SigningConfig{Secret: "s", BaseURL: "https://audio.example"},
		Webhooks: WebhooksConfig{RazorpaySecret: "rzp_whsec"},
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:      "server port too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			errString: "invalid server port",
		},
		{
			name:      "server port too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			errString: "invalid server port",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			errString: "database host is required",
		},
		{
			name: "dsn replaces discrete database fields",
			mutate: func(c *Config) {
				c.Database = DatabaseConfig{DSN: "postgres://u:p@db/postgres"}
			},
		},
		{
			name:      "invalid database port",
			mutate:    func(c *Config) { c.Database.Port = -1 },
			errString: "invalid database port",
		},
		{
			name:      "missing database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			errString: "database name is required",
		},
		{
			name:      "missing rabbitmq host",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			errString: "rabbitmq host is required",
		},
		{
			name: "rabbitmq url replaces host",
			mutate: func(c *Config) {
				c.RabbitMQ.Host = ""
				c.RabbitMQ.URL = "amqps://mq.example"
			},
		},
		{
			name:      "missing exchange",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "missing queue",
			mutate:    func(c *Config) { c.RabbitMQ.Queue.Name = "" },
			errString: "rabbitmq queue name is required",
		},
		{
			name:      "missing auth key",
			mutate:    func(c *Config) { c.Auth.PublicKey = "" },
			errString: "auth public_key is required",
		},
		{
			name:      "missing signing secret",
			mutate:    func(c *Config) { c.Signing.Secret = "" },
			errString: "signing secret is required",
		},
		{
			name:      "missing signing base url",
			mutate:    func(c *Config) { c.Signing.BaseURL = "" },
			errString: "signing base_url is required",
		},
		{
			name:      "missing razorpay webhook secret",
			mutate:    func(c *Config) { c.Webhooks.RazorpaySecret = "" },
			errString: "webhooks razorpay_secret is required",
		},
		{
			name: "rate limit enabled without capacity",
			mutate: func(c *Config) {
				c.RateLimit = RateLimitConfig{Enabled: true, RefillInterval: time.Second}
			},
			errString: "rate_limit capacity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validAPIConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()
			if tt.errString == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	valid := func() *Config {
		c := validAPIConfig()
		c.Worker = WorkerConfig{
			Concurrency:       4,
			JobTimeout:        10 * time.Minute,
			HeartbeatInterval: 30 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		}
		c.Replicate.APIToken = "r8_token"
		c.Storage = StorageConfig{Endpoint: "https://acct.r2.cloudflarestorage.com", Bucket: "audio-files"}
		return c
	}

	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:      "zero concurrency",
			mutate:    func(c *Config) { c.Worker.Concurrency = 0 },
			errString: "worker concurrency must be greater than 0",
		},
		{
			name:      "zero job timeout",
			mutate:    func(c *Config) { c.Worker.JobTimeout = 0 },
			errString: "worker job_timeout",
		},
		{
			name:      "zero heartbeat",
			mutate:    func(c *Config) { c.Worker.HeartbeatInterval = 0 },
			errString: "worker heartbeat_interval",
		},
		{
			name:      "zero shutdown timeout",
			mutate:    func(c *Config) { c.Worker.ShutdownTimeout = 0 },
			errString: "worker shutdown_timeout",
		},
		{
			name:      "missing provider token",
			mutate:    func(c *Config) { c.Replicate.APIToken = "" },
			errString: "replicate api_token is required",
		},
		{
			name:      "missing bucket",
			mutate:    func(c *Config) { c.Storage.Bucket = "" },
			errString: "storage endpoint and bucket are required",
		},
		{
			name: "server port not needed",
			mutate: func(c *Config) {
				c.Server.Port = 0
				c.Auth.PublicKey = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()
			if tt.errString == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}
