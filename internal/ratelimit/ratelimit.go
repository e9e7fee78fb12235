// Package ratelimit implements per-key token buckets.
// The Redis bucket is shared across api-service replicas; the local bucket is used when Redis
// is not configured or a call to it fails.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Config describes a bucket: Capacity tokens, refilled by RefillTokens every RefillInterval
type Config struct {
	Enabled        bool
	Prefix         string
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
}

// Decision is the outcome of one Allow call
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int64
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds up for the Retry-After header
func (d Decision) RetryAfterSeconds() int {
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 0 {
		return 0
	}
	return secs
}

// Limiter takes one token for key
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

var bucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
	tokens = capacity
	last_refill = now_ms
end

if interval_ms > 0 and refill_tokens > 0 then
	local elapsed = math.max(0, now_ms - last_refill)
	local intervals = math.floor(elapsed / interval_ms)
	if intervals > 0 then
		tokens = math.min(capacity, tokens + (intervals * refill_tokens))
		last_refill = last_refill + (intervals * interval_ms)
	end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`)

// RedisLimiter runs the bucket inside Redis so every replica shares it
type RedisLimiter struct {
	rdb redis.Scripter
	cfg Config
	now func() time.Time
}

// NewRedisLimiter creates a Redis-backed limiter
func NewRedisLimiter(rdb redis.Scripter, cfg Config) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, cfg: cfg, now: time.Now}
}

// Allow implements Limiter
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	ttl := l.cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	vals, err := bucketScript.Run(ctx, l.rdb, []string{l.cfg.Prefix + ":" + key},
		l.now().UnixMilli(),
		l.cfg.Capacity,
		l.cfg.RefillTokens,
		l.cfg.RefillInterval.Milliseconds(),
		int64(ttl/time.Second),
	).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to run rate limit script: %w", err)
	}

	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 3 {
		return Decision{}, fmt.Errorf("unexpected rate limit script result: %#v", vals)
	}

	return Decision{
		Allowed:    asInt64(arr[0]) == 1,
		Limit:      l.cfg.Capacity,
		Remaining:  asInt64(arr[1]),
		RetryAfter: time.Duration(asInt64(arr[2])) * time.Millisecond,
	}, nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	}
	return 0
}

// LocalLimiter keeps one x/time/rate limiter per key in process memory
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	maxKeys  int
}

// NewLocalLimiter derives an equivalent rate from the bucket config
func NewLocalLimiter(cfg Config) *LocalLimiter {
	limit := rate.Inf
	if cfg.RefillInterval > 0 && cfg.RefillTokens > 0 {
		limit = rate.Limit(float64(cfg.RefillTokens) / cfg.RefillInterval.Seconds())
	}
	return &LocalLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    cfg.Capacity,
		maxKeys:  10000,
	}
}

func (l *LocalLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		// crude bound on memory; buckets refill anyway
		if len(l.limiters) >= l.maxKeys {
			l.limiters = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// Allow implements Limiter
func (l *LocalLimiter) Allow(_ context.Context, key string) (Decision, error) {
	lim := l.get(key)
	now := time.Now()

	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return Decision{Allowed: false, Limit: l.burst}, nil
	}

	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Decision{Allowed: false, Limit: l.burst, RetryAfter: delay}, nil
	}

	return Decision{
		Allowed:   true,
		Limit:     l.burst,
		Remaining: int64(math.Max(0, math.Floor(lim.TokensAt(now)))),
	}, nil
}

// Fallback prefers primary and degrades to secondary when primary errors
type Fallback struct {
	primary   Limiter
	secondary Limiter
	logger    *slog.Logger
}

// NewFallback builds the limiter chain; primary may be nil
func NewFallback(primary, secondary Limiter, logger *slog.Logger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

// Allow implements Limiter
func (f *Fallback) Allow(ctx context.Context, key string) (Decision, error) {
	if f.primary != nil {
		d, err := f.primary.Allow(ctx, key)
		if err == nil {
			return d, nil
		}
		f.logger.Warn("Rate limiter degraded to local buckets", slog.Any("error", err))
	}
	return f.secondary.Allow(ctx, key)
}
