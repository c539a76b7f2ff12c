package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisReferenceLocker serialises verification and effect application per
// payment reference with SetNX. The durable replay guard is the ledger's
// consumed_at column; this lock only keeps concurrent callers from racing it.
type RedisReferenceLocker struct {
	client *redis.Client
}

func NewRedisReferenceLocker(client *redis.Client) *RedisReferenceLocker {
	return &RedisReferenceLocker{client: client}
}

func (l *RedisReferenceLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, "1", ttl).Result()
}

func (l *RedisReferenceLocker) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, key).Err()
}
