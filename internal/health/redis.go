package health

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisChecker sends PING to the rate-limit Redis.
type RedisChecker struct {
	client redis.Cmdable
}

func NewRedisChecker(client redis.Cmdable) *RedisChecker {
	return &RedisChecker{client: client}
}

func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
