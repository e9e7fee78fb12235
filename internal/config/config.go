package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration.
// Both services read the same shape; each validates only what it uses.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
	App       AppConfig       `yaml:"app"`
	Worker    WorkerConfig    `yaml:"worker"`
	Auth      AuthConfig      `yaml:"auth"`
	Signing   SigningConfig   `yaml:"signing"`
	Replicate ReplicateConfig `yaml:"replicate"`
	Storage   StorageConfig   `yaml:"storage"`
	Pusher    PusherConfig    `yaml:"pusher"`
	Webhooks  WebhooksConfig  `yaml:"webhooks"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Credits   CreditsConfig   `yaml:"credits"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	URL                string           `yaml:"url"`
	Host               string           `yaml:"host"`
	Port               int              `yaml:"port"`
	User               string           `yaml:"user"`
	Password           string           `yaml:"password"`
	VHost              string           `yaml:"vhost"`
	Exchange           ExchangeConfig   `yaml:"exchange"`
	Queue              QueueConfig      `yaml:"queue"`
	DeadLetterExchange string           `yaml:"dead_letter_exchange"`
	RoutingKey         string           `yaml:"routing_key"`
	Connection         ConnectionConfig `yaml:"connection"`
	Publish            PublishConfig    `yaml:"publish"`
	Consumer           ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// RedisConfig holds Redis settings. An empty Addr disables Redis.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	TLS          bool          `yaml:"tls"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
	NoColor      bool   `yaml:"no_color"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency       int           `yaml:"concurrency"`
	JobTimeout        time.Duration `yaml:"job_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	MaxPollAttempts   int           `yaml:"max_poll_attempts"`
	MetricsPort       int           `yaml:"metrics_port"`
	RequeueDelay      time.Duration `yaml:"requeue_delay"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
}

// AuthConfig configures session token verification.
// PublicKey is the PEM-encoded RSA key the auth provider signs session tokens with.
type AuthConfig struct {
	PublicKey         string        `yaml:"public_key"`
	Issuer            string        `yaml:"issuer"`
	AuthorizedParties []string      `yaml:"authorized_parties"`
	CookieName        string        `yaml:"cookie_name"`
	Leeway            time.Duration `yaml:"leeway"`
}

// SigningConfig configures signed audio URLs
type SigningConfig struct {
	Secret  string        `yaml:"secret"`
	BaseURL string        `yaml:"base_url"`
	TTL     time.Duration `yaml:"ttl"`
}

// ReplicateConfig configures the generation provider client
type ReplicateConfig struct {
	APIToken       string        `yaml:"api_token"`
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// StorageConfig configures the S3-compatible bucket (Cloudflare R2)
type StorageConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PublicBaseURL   string `yaml:"public_base_url"`
}

// PusherConfig configures the real-time relay
type PusherConfig struct {
	AppID   string `yaml:"app_id"`
	Key     string `yaml:"key"`
	Secret  string `yaml:"secret"`
	Cluster string `yaml:"cluster"`
}

// WebhooksConfig holds webhook signing secrets
type WebhooksConfig struct {
	RazorpaySecret string        `yaml:"razorpay_secret"`
	ClerkSecret    string        `yaml:"clerk_secret"`
	DedupeTTL      time.Duration `yaml:"dedupe_ttl"`
}

// RateLimitConfig configures the per-caller token bucket
type RateLimitConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Capacity       int           `yaml:"capacity"`
	RefillTokens   int           `yaml:"refill_tokens"`
	RefillInterval time.Duration `yaml:"refill_interval"`
	TTL            time.Duration `yaml:"ttl"`
}

// CreditsConfig holds promotional codes and their credit value
type CreditsConfig struct {
	RedeemCodes map[string]int `yaml:"redeem_codes"`
}

// Load reads the configuration file, expands ${ENV} references and parses it
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.setDefaults()
	return &config, nil
}

func (c *Config) setDefaults() {
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "__session"
	}
	if c.Signing.TTL <= 0 {
		c.Signing.TTL = time.Hour
	}
	if c.Replicate.BaseURL == "" {
		c.Replicate.BaseURL = "https://api.replicate.com/v1"
	}
	if c.Storage.Region == "" {
		c.Storage.Region = "auto"
	}
	if c.Worker.PollInterval <= 0 {
		c.Worker.PollInterval = 2 * time.Second
	}
	if c.Worker.MaxPollAttempts <= 0 {
		c.Worker.MaxPollAttempts = 150
	}
	if c.Webhooks.DedupeTTL <= 0 {
		c.Webhooks.DedupeTTL = 24 * time.Hour
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = 100 << 20
	}
}

func validatePort(name string, port int) error {
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("invalid %s port: %d (must be between %d and %d)", name, port, MinPort, MaxPort)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.DSN != "" {
		return nil
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if err := validatePort("database", c.Database.Port); err != nil {
		return err
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.URL == "" {
		if c.RabbitMQ.Host == "" {
			return fmt.Errorf("rabbitmq host is required")
		}
		if err := validatePort("rabbitmq", c.RabbitMQ.Port); err != nil {
			return err
		}
	}
	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}
	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}
	return nil
}

// ValidateAPIConfig checks the settings the api-service needs
func (c *Config) ValidateAPIConfig() error {
	if err := validatePort("server", c.Server.Port); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateRabbitMQ(); err != nil {
		return err
	}
	if c.Auth.PublicKey == "" {
		return fmt.Errorf("auth public_key is required")
	}
	if c.Signing.Secret == "" {
		return fmt.Errorf("signing secret is required")
	}
	if c.Signing.BaseURL == "" {
		return fmt.Errorf("signing base_url is required")
	}
	if c.Webhooks.RazorpaySecret == "" {
		return fmt.Errorf("webhooks razorpay_secret is required")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Capacity <= 0 || c.RateLimit.RefillInterval <= 0) {
		return fmt.Errorf("rate_limit capacity and refill_interval must be greater than 0")
	}
	return nil
}

// ValidateWorkerConfig checks the settings the worker-service needs
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateRabbitMQ(); err != nil {
		return err
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}
	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}
	if c.Worker.HeartbeatInterval <= 0 {
		return fmt.Errorf("worker heartbeat_interval must be greater than 0")
	}
	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}
	if c.Replicate.APIToken == "" {
		return fmt.Errorf("replicate api_token is required")
	}
	if c.Storage.Bucket == "" || c.Storage.Endpoint == "" {
		return fmt.Errorf("storage endpoint and bucket are required")
	}
	return nil
}
