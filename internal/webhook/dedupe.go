package webhook

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers delivery ids so retried deliveries are acknowledged without reprocessing
type Deduper interface {
	// FirstSeen records id and reports whether it was new
	FirstSeen(ctx context.Context, id string) (bool, error)
	// Forget drops id so a failed delivery can be retried
	Forget(ctx context.Context, id string) error
}

// RedisDeduper stores delivery ids with SET NX and a TTL
type RedisDeduper struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisDeduper(rdb redis.Cmdable, prefix string, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (d *RedisDeduper) FirstSeen(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return true, nil
	}
	return d.rdb.SetNX(ctx, d.prefix+id, 1, d.ttl).Result()
}

func (d *RedisDeduper) Forget(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return d.rdb.Del(ctx, d.prefix+id).Err()
}

// NopDeduper treats every delivery as new; storage-level idempotency still applies
type NopDeduper struct{}

func (NopDeduper) FirstSeen(context.Context, string) (bool, error) { return true, nil }

func (NopDeduper) Forget(context.Context, string) error { return nil }
