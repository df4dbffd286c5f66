package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
)

const (
	defaultRedisKeyPrefix = "mealpilot:ratelimit:"
	defaultRedisTimeout   = 200 * time.Millisecond

	// redisBreakerTrip is the number of consecutive Redis failures that
	// opens the breaker.
	redisBreakerTrip = 5
)

type redisHit struct {
	count int64
	ttl   time.Duration
}

// RedisRateLimitStore keeps fixed-window counters in Redis so every replica
// shares the same budget. Each hit is INCR plus PTTL in one MULTI, and the
// expiry is set when the key is new. Redis problems never block traffic: the
// store fails open, counts the error, and a circuit breaker stops calling
// Redis after repeated failures.
type RedisRateLimitStore struct {
	client  redis.Cmdable
	breaker *gobreaker.CircuitBreaker[redisHit]
	metrics *Metrics
	prefix  string
	timeout time.Duration
}

type RedisStoreOption func(*RedisRateLimitStore, *gobreaker.Settings)

func WithRedisMetrics(m *Metrics) RedisStoreOption {
	return func(s *RedisRateLimitStore, _ *gobreaker.Settings) { s.metrics = m }
}

func WithRedisKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisRateLimitStore, _ *gobreaker.Settings) { s.prefix = prefix }
}

// WithRedisTimeout bounds each Redis round trip.
func WithRedisTimeout(d time.Duration) RedisStoreOption {
	return func(s *RedisRateLimitStore, _ *gobreaker.Settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithBreakerTimeout sets how long the breaker stays open before probing.
func WithBreakerTimeout(d time.Duration) RedisStoreOption {
	return func(_ *RedisRateLimitStore, st *gobreaker.Settings) { st.Timeout = d }
}

func NewRedisRateLimitStore(client redis.Cmdable, opts ...RedisStoreOption) *RedisRateLimitStore {
	s := &RedisRateLimitStore{
		client:  client,
		prefix:  defaultRedisKeyPrefix,
		timeout: defaultRedisTimeout,
	}
	settings := gobreaker.Settings{
		Name:        "ratelimit-redis",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= redisBreakerTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	for _, opt := range opts {
		opt(s, &settings)
	}
	s.breaker = gobreaker.NewCircuitBreaker[redisHit](settings)
	return s
}

// BreakerState reports the circuit breaker state.
func (s *RedisRateLimitStore) BreakerState() gobreaker.State {
	return s.breaker.State()
}

func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, cfg RateLimitConfig) (bool, int) {
	hit, err := s.breaker.Execute(func() (redisHit, error) {
		return s.hit(ctx, s.prefix+key, cfg.WindowDuration)
	})
	if err != nil {
		s.metrics.IncRateLimitRedisErrors()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			slog.DebugContext(ctx, "rate limit breaker open, allowing request", "key", key)
		} else {
			slog.WarnContext(ctx, "rate limit store unavailable, allowing request", "key", key, "error", err)
		}
		return true, 0
	}

	if hit.count <= int64(cfg.RequestsPerWindow) {
		return true, 0
	}
	return false, retryAfterSeconds(hit.ttl)
}

func (s *RedisRateLimitStore) hit(ctx context.Context, key string, window time.Duration) (redisHit, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var incr *redis.IntCmd
	var pttl *redis.DurationCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return redisHit{}, fmt.Errorf("failed to count rate limit hit: %w", err)
	}

	hit := redisHit{count: incr.Val(), ttl: pttl.Val()}
	// A negative TTL means the key has no expiry yet.
	if hit.count == 1 || hit.ttl < 0 {
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return redisHit{}, fmt.Errorf("failed to set rate limit window: %w", err)
		}
		hit.ttl = window
	}
	return hit, nil
}
