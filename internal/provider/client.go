// Package provider is a small HTTP client for the Replicate predictions API.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrRateLimited matches any APIError caused by provider throttling
var ErrRateLimited = errors.New("provider rate limited")

// Prediction statuses
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// Config holds client configuration
type Config struct {
	APIToken       string
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client talks to the predictions API
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new provider client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.replicate.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}

	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Request selects a model (or a pinned version) and its input
type Request struct {
	Model   string         `json:"-"`
	Version string         `json:"version,omitempty"`
	Input   map[string]any `json:"input"`

	// Format is the file extension expected for audio outputs
	Format string `json:"-"`
}

// Prediction mirrors the API prediction object
type Prediction struct {
	ID     string          `json:"id"`
	Model  string          `json:"model"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
	Logs   string          `json:"logs"`
}

// Done reports whether the prediction reached a terminal status
func (p *Prediction) Done() bool {
	switch p.Status {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// ErrorMessage returns the provider error as a string; structured errors keep their JSON
func (p *Prediction) ErrorMessage() string {
	e := gjson.ParseBytes(p.Error)
	switch e.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return e.Str
	default:
		return e.Raw
	}
}

// APIError is a non-2xx answer from the API
type APIError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider request failed with status %d: %s", e.StatusCode, e.Body)
}

// Is makes errors.Is(err, ErrRateLimited) work for throttling responses
func (e *APIError) Is(target error) bool {
	return target == ErrRateLimited && e.rateLimited()
}

func (e *APIError) rateLimited() bool {
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	body := strings.ToLower(e.Body)
	return strings.Contains(body, "throttled") || strings.Contains(body, "rate limit")
}

// CreatePrediction starts a prediction for req
func (c *Client) CreatePrediction(ctx context.Context, req Request) (*Prediction, error) {
	path := "/predictions"
	if req.Version == "" {
		if req.Model == "" {
			return nil, errors.New("model or version is required")
		}
		path = "/models/" + req.Model + "/predictions"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prediction request: %w", err)
	}

	var pred Prediction
	if err := c.withRetry(ctx, "create", func() error {
		return c.do(ctx, http.MethodPost, path, body, &pred)
	}); err != nil {
		return nil, fmt.Errorf("failed to create prediction: %w", err)
	}

	c.logger.Info("Prediction created",
		slog.String("prediction_id", pred.ID),
		slog.String("model", req.Model),
		slog.String("status", pred.Status),
	)
	return &pred, nil
}

// GetPrediction fetches the current state of a prediction
func (c *Client) GetPrediction(ctx context.Context, id string) (*Prediction, error) {
	var pred Prediction
	if err := c.withRetry(ctx, "get", func() error {
		return c.do(ctx, http.MethodGet, "/predictions/"+id, nil, &pred)
	}); err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return &pred, nil
}

// CancelPrediction asks the provider to stop a prediction. Finished predictions are not an error.
func (c *Client) CancelPrediction(ctx context.Context, id string) error {
	var pred Prediction
	err := c.do(ctx, http.MethodPost, "/predictions/"+id+"/cancel", nil, &pred)
	if err != nil {
		return fmt.Errorf("failed to cancel prediction: %w", err)
	}
	c.logger.Info("Prediction cancelled",
		slog.String("prediction_id", id),
		slog.String("status", pred.Status),
	)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			RetryAfter: retryAfter(resp.Header, respBody),
		}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// withRetry retries fn only while the provider throttles us
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, ErrRateLimited) || attempt >= c.config.MaxRetries {
			return err
		}

		delay := c.backoff(attempt, err)
		c.logger.Warn("Provider rate limited, retrying",
			slog.String("operation", op),
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", c.config.MaxRetries),
			slog.Duration("retry_after", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (c *Client) backoff(attempt int, err error) time.Duration {
	delay := c.config.InitialBackoff << attempt

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		delay = apiErr.RetryAfter + time.Second
	}
	if delay > c.config.MaxBackoff || delay <= 0 {
		delay = c.config.MaxBackoff
	}
	return delay
}

func retryAfter(h http.Header, body []byte) time.Duration {
	if r := gjson.GetBytes(body, "retry_after"); r.Type == gjson.Number && r.Float() > 0 {
		return time.Duration(r.Float() * float64(time.Second))
	}
	for _, name := range []string{"Retry-After", "Ratelimit-Reset"} {
		if n, err := strconv.Atoi(h.Get(name)); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return 0
}
