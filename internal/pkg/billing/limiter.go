package billing

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisSyncLimiter struct {
	client *redis.Client
}

// NewRedisSyncLimiter builds a SyncLimiter on a shared Redis instance so the
// window also holds across multiple app processes.
func NewRedisSyncLimiter(client *redis.Client) SyncLimiter {
	return &redisSyncLimiter{client: client}
}

func (l *redisSyncLimiter) TryAcquire(key string, ttl time.Duration) bool {
	ok, err := l.client.SetNX(context.Background(), key, 1, ttl).Result()
	if err != nil {
		// The window is log hygiene only; when Redis is unreachable the
		// event log's idempotency still guarantees correctness.
		return true
	}
	return ok
}
