package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore() (*InMemoryRateLimitStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := NewInMemoryRateLimitStore()
	s.now = clock.Now
	return s, clock
}

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		cfg     RateLimitConfig
		wantErr bool
	}{
		{RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Second}, false},
		{RateLimitConfig{RequestsPerWindow: 0, WindowDuration: time.Second}, true},
		{RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 0}, true},
	}
	for _, tt := range tests {
		if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("Validate(%+v) error = %v, wantErr %v", tt.cfg, err, tt.wantErr)
		}
	}
	if got := PerMinute(0); got.RequestsPerWindow != 1 || got.WindowDuration != time.Minute {
		t.Errorf("PerMinute(0) = %+v", got)
	}
}

func TestInMemoryRateLimitStore_FixedWindow(t *testing.T) {
	s, clock := newTestStore()
	cfg := RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if ok, _ := s.Allow(ctx, "api:1.2.3.4", cfg); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	clock.Advance(15 * time.Second)
	ok, retry := s.Allow(ctx, "api:1.2.3.4", cfg)
	if ok {
		t.Fatal("4th request should be blocked")
	}
	if retry != 45 {
		t.Errorf("retryAfter = %d, want 45", retry)
	}

	if ok, _ := s.Allow(ctx, "api:5.6.7.8", cfg); !ok {
		t.Error("other keys have their own window")
	}

	clock.Advance(45 * time.Second)
	if ok, _ := s.Allow(ctx, "api:1.2.3.4", cfg); !ok {
		t.Error("window should reset lazily on access")
	}
}

func TestInMemoryRateLimitStore_RetryAfterAtLeastOne(t *testing.T) {
	s, clock := newTestStore()
	cfg := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Second}
	s.Allow(context.Background(), "k", cfg)
	clock.Advance(999 * time.Millisecond)
	if _, retry := s.Allow(context.Background(), "k", cfg); retry != 1 {
		t.Errorf("retryAfter = %d, want 1", retry)
	}
}

func TestInMemoryRateLimitStore_Concurrent(t *testing.T) {
	s, _ := newTestStore()
	cfg := RateLimitConfig{RequestsPerWindow: 100, WindowDuration: time.Minute}

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 20; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if ok, _ := s.Allow(context.Background(), "api:shared", cfg); ok {
					allowed.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != 100 {
		t.Errorf("allowed = %d, want exactly 100", got)
	}
}

func TestInMemoryRateLimitStore_Cleanup(t *testing.T) {
	s, clock := newTestStore()
	cfg := PerMinute(10)
	s.Allow(context.Background(), "a", cfg)
	clock.Advance(30 * time.Second)
	s.Allow(context.Background(), "b", cfg)
	clock.Advance(40 * time.Second)

	if removed := s.Cleanup(time.Minute); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if removed := s.Cleanup(time.Minute); removed != 0 {
		t.Errorf("second cleanup removed %d", removed)
	}
}

func TestRateLimitPolicy_Classify(t *testing.T) {
	p := DefaultRateLimitPolicy()
	tests := []struct {
		method     string
		path       string
		wantBucket string
		wantLimit  int
		wantOK     bool
	}{
		{http.MethodGet, "/api/decisions", BucketAPI, 240, true},
		{http.MethodPost, "/api/decide", BucketAPI, 240, true},
		{http.MethodPost, "/api/auth/login", BucketAuth, 30, true},
		{http.MethodOptions, "/api/decide", "", 0, false},
		{http.MethodGet, "/", "", 0, false},
		{http.MethodGet, "/health", "", 0, false},
		{http.MethodGet, "/ready", "", 0, false},
		{http.MethodGet, "/metrics", "", 0, false},
		{http.MethodGet, "/api/health", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			bucket, cfg, ok := p.Classify(httptest.NewRequest(tt.method, tt.path, nil))
			if ok != tt.wantOK || bucket != tt.wantBucket || cfg.RequestsPerWindow != tt.wantLimit {
				t.Errorf("Classify() = (%q, %d, %v), want (%q, %d, %v)",
					bucket, cfg.RequestsPerWindow, ok, tt.wantBucket, tt.wantLimit, tt.wantOK)
			}
		})
	}
}

func TestIPKeyFunc(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": " 203.0.113.7 , 10.0.0.1"}, "10.0.0.2:80", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.2:80", "198.51.100.4"},
		{"remote with port", nil, "192.0.2.1:5555", "192.0.2.1"},
		{"ipv6 remote", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"remote without port", nil, "192.0.2.9", "192.0.2.9"},
	}
	key := IPKeyFunc()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := key(req); got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	store, _ := newTestStore()
	metrics := NewMetrics()
	policy := RateLimitPolicy{General: PerMinute(2), Auth: PerMinute(1)}
	h := RateLimiter(store, policy, IPKeyFunc(), metrics, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do(http.MethodGet, "/api/decisions"); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: status %d", i+1, rec.Code)
		}
	}

	rec := do(http.MethodGet, "/api/decisions")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	reset, err := strconv.ParseInt(rec.Header().Get("X-RateLimit-Reset"), 10, 64)
	if err != nil || reset <= time.Now().Unix() {
		t.Errorf("X-RateLimit-Reset = %q", rec.Header().Get("X-RateLimit-Reset"))
	}

	// Separate bucket for auth, and exempt routes never count.
	if rec := do(http.MethodPost, "/api/auth/login"); rec.Code != http.StatusNoContent {
		t.Errorf("auth bucket should be independent, got %d", rec.Code)
	}
	for i := 0; i < 5; i++ {
		if rec := do(http.MethodGet, "/health"); rec.Code != http.StatusNoContent {
			t.Errorf("health should be exempt, got %d", rec.Code)
		}
	}

	if got := testutil.ToFloat64(metrics.rateLimitRequests.WithLabelValues(BucketAPI)); got != 3 {
		t.Errorf("api checks = %v, want 3", got)
	}
	if got := testutil.ToFloat64(metrics.rateLimitBlocked.WithLabelValues(BucketAPI)); got != 1 {
		t.Errorf("api blocked = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.rateLimitRequests.WithLabelValues(BucketAuth)); got != 1 {
		t.Errorf("auth checks = %v, want 1", got)
	}
}
