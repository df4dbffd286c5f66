package middleware

import (
	"context"
	"fmt"
	"hash/maphash"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// RateLimitConfig is one fixed-window budget.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

func (c RateLimitConfig) Validate() error {
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("RequestsPerWindow must be > 0 (got %d)", c.RequestsPerWindow)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("WindowDuration must be > 0 (got %s)", c.WindowDuration)
	}
	return nil
}

// PerMinute builds a one-minute window, clamping n to at least 1.
func PerMinute(n int) RateLimitConfig {
	return RateLimitConfig{RequestsPerWindow: max(1, n), WindowDuration: time.Minute}
}

// Rate limit buckets. The bucket is also the key prefix.
const (
	BucketAPI  = "api"
	BucketAuth = "auth"
)

// RateLimitPolicy picks a bucket per request.
type RateLimitPolicy struct {
	General RateLimitConfig
	Auth    RateLimitConfig
}

func DefaultRateLimitPolicy() RateLimitPolicy {
	return RateLimitPolicy{General: PerMinute(240), Auth: PerMinute(30)}
}

// Classify returns the bucket and budget for r. ok is false for requests that
// are never limited: preflights, the root page, health, readiness and metrics.
func (p RateLimitPolicy) Classify(r *http.Request) (bucket string, cfg RateLimitConfig, ok bool) {
	path := r.URL.Path
	if r.Method == http.MethodOptions ||
		path == "/" ||
		path == "/health" ||
		path == "/ready" ||
		path == "/metrics" ||
		strings.HasPrefix(path, "/api/health") {
		return "", RateLimitConfig{}, false
	}
	if strings.HasPrefix(path, "/api/auth/") {
		return BucketAuth, p.Auth, true
	}
	return BucketAPI, p.General, true
}

// RateLimitStore counts hits per key. retryAfter is in whole seconds and
// only meaningful when allowed is false.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, cfg RateLimitConfig) (allowed bool, retryAfter int)
}

const rateLimitShards = 64

// window is a fixed-window counter. start is unix nanoseconds.
type window struct {
	start atomic.Int64
	count atomic.Int64
}

type rateLimitShard struct {
	mu      sync.RWMutex
	windows map[string]*window
}

// InMemoryRateLimitStore is a sharded map of atomic counters whose windows
// reset lazily on access. Counters are per process, so limits are per
// instance; use RedisRateLimitStore when running more than one replica.
type InMemoryRateLimitStore struct {
	seed   maphash.Seed
	shards [rateLimitShards]rateLimitShard
	now    func() time.Time
}

func NewInMemoryRateLimitStore() *InMemoryRateLimitStore {
	s := &InMemoryRateLimitStore{seed: maphash.MakeSeed(), now: time.Now}
	for i := range s.shards {
		s.shards[i].windows = make(map[string]*window)
	}
	return s
}

func (s *InMemoryRateLimitStore) shard(key string) *rateLimitShard {
	return &s.shards[maphash.String(s.seed, key)%rateLimitShards]
}

func (s *InMemoryRateLimitStore) window(key string, now int64) *window {
	sh := s.shard(key)
	sh.mu.RLock()
	w, ok := sh.windows[key]
	sh.mu.RUnlock()
	if ok {
		return w
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if w, ok = sh.windows[key]; !ok {
		w = &window{}
		w.start.Store(now)
		sh.windows[key] = w
	}
	return w
}

func (s *InMemoryRateLimitStore) Allow(_ context.Context, key string, cfg RateLimitConfig) (bool, int) {
	now := s.now().UnixNano()
	length := int64(cfg.WindowDuration)
	w := s.window(key, now)

	var count, start int64
	for {
		start = w.start.Load()
		if now-start < length {
			count = w.count.Add(1)
			break
		}
		// Only the goroutine that wins the swap resets the counter.
		if w.start.CompareAndSwap(start, now) {
			w.count.Store(1)
			count, start = 1, now
			break
		}
	}

	if count <= int64(cfg.RequestsPerWindow) {
		return true, 0
	}
	return false, retryAfterSeconds(time.Duration(start + length - now))
}

// Cleanup drops windows that ended before now.
func (s *InMemoryRateLimitStore) Cleanup(maxWindow time.Duration) int {
	now := s.now().UnixNano()
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for key, w := range sh.windows {
			if now-w.start.Load() >= int64(maxWindow) {
				delete(sh.windows, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// KeyFunc extracts the client identity from a request.
type KeyFunc func(r *http.Request) string

// IPKeyFunc uses the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's remote address.
func IPKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			if r.RemoteAddr == "" {
				return "unknown"
			}
			return r.RemoteAddr
		}
		return host
	}
}

// RateLimiter admits or rejects each request before it reaches the API.
// Rejections are 429 with Retry-After (seconds) and X-RateLimit-Reset (unix
// seconds). metrics may be nil.
func RateLimiter(store RateLimitStore, policy RateLimitPolicy, keyFunc KeyFunc, metrics *Metrics, respond ErrorResponder) func(http.Handler) http.Handler {
	respond = responderOrPlain(respond)
	if keyFunc == nil {
		keyFunc = IPKeyFunc()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bucket, cfg, limited := policy.Classify(r)
			if !limited {
				next.ServeHTTP(w, r)
				return
			}

			metrics.IncRateLimitRequests(bucket)
			allowed, retryAfter := store.Allow(r.Context(), bucket+":"+keyFunc(r), cfg)
			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			metrics.IncRateLimitBlocked(bucket)
			reset := time.Now().Add(time.Duration(retryAfter) * time.Second).Unix()
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
			respond(w, r, http.StatusTooManyRequests, ErrorCodeRateLimited, "Too many requests")
		})
	}
}
