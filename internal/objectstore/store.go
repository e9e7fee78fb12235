// Package objectstore stores generated artifacts in an S3-compatible bucket (Cloudflare R2).
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/444radio/radio-be/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// maxDownloadBytes bounds artifacts copied from provider URLs
const maxDownloadBytes = 512 << 20

// Config holds bucket configuration
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store wraps an S3 client bound to one bucket
type Store struct {
	api        s3API
	bucket     string
	publicBase string
	httpClient *http.Client
	logger     *slog.Logger
}

// Object is a stored artifact opened for reading
type Object struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// New builds an S3 client for the configured endpoint
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("storage endpoint and bucket are required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	client := s3.NewFromConfig(aws.Config{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	logger.Info("Object store initialized",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("bucket", cfg.Bucket),
	)

	return newStore(client, cfg, logger), nil
}

func newStore(api s3API, cfg Config, logger *slog.Logger) *Store {
	return &Store{
		api:        api,
		bucket:     cfg.Bucket,
		publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		logger:     logger,
	}
}

// Put uploads body under key and returns its public URL
func (s *Store) Put(ctx context.Context, key string, body io.ReadSeeker, contentType string) (string, error) {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}

	s.logger.Debug("Object stored", slog.String("key", key), slog.String("content_type", contentType))
	return s.PublicURL(key), nil
}

// Get opens key for reading. The caller closes Body.
func (s *Store) Get(ctx context.Context, key string) (*Object, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}

	obj := &Object{
		Body:        out.Body,
		ContentType: aws.ToString(out.ContentType),
	}
	if out.ContentLength != nil {
		obj.ContentLength = *out.ContentLength
	}
	if obj.ContentType == "" {
		obj.ContentType = ContentTypeFor(key)
	}
	return obj, nil
}

// Delete removes key; missing keys are not an error
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// CopyFromURL downloads src and stores it under key. An empty contentType is taken from the
// response or guessed from the key.
func (s *Store) CopyFromURL(ctx context.Context, src, key, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", fmt.Errorf("create download request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download artifact: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read artifact: %w", err)
	}
	if len(data) > maxDownloadBytes {
		return "", fmt.Errorf("artifact exceeds %d bytes", maxDownloadBytes)
	}

	if contentType == "" {
		contentType = resp.Header.Get("Content-Type")
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = ContentTypeFor(key)
	}

	return s.Put(ctx, key, bytes.NewReader(data), contentType)
}

// PublicURL is the CDN URL of key
func (s *Store) PublicURL(key string) string {
	return s.publicBase + "/" + key
}

// KeyFromURL recovers the key from one of our public URLs
func (s *Store) KeyFromURL(raw string) (string, bool) {
	prefix := s.publicBase + "/"
	if s.publicBase == "" || !strings.HasPrefix(raw, prefix) {
		return "", false
	}
	key, _, _ := strings.Cut(strings.TrimPrefix(raw, prefix), "?")
	return key, key != ""
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// BuildKey lays out users/{userID}/{folder}/{unixMillis}-{name}
func BuildKey(userID, folder, fileName string, now time.Time) string {
	name := unsafeName.ReplaceAllString(fileName, "_")
	if name == "" {
		name = "file"
	}
	return fmt.Sprintf("users/%s/%s/%d-%s", userID, folder, now.UnixMilli(), name)
}

var contentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".webm": "video/webm",
}

// ContentTypeFor guesses a content type from the file extension
func ContentTypeFor(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}
