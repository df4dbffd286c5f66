package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

var staticRoutes = map[string]bool{
	"/":                        true,
	"/health":                  true,
	"/ready":                   true,
	"/metrics":                 true,
	"/api/health":              true,
	"/api/decide":              true,
	"/api/decisions":           true,
	"/api/events":              true,
	"/api/items":               true,
	"/api/preferences":         true,
	"/api/preferences/profile": true,
}

// decisionSubresources are the known /api/decisions/{id}/<sub> routes.
var decisionSubresources = map[string]bool{
	"feedback": true,
	"events":   true,
}

// normalizePath maps concrete paths to route patterns so ids never become
// label values. Unknown paths collapse to "other".
func normalizePath(path string) string {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		path = "/"
	}
	if staticRoutes[path] {
		return path
	}

	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "api" || parts[2] == "" {
		return "other"
	}
	switch parts[1] {
	case "decisions":
		if len(parts) == 3 {
			return "/api/decisions/{id}"
		}
		if len(parts) == 4 && decisionSubresources[parts[3]] {
			return "/api/decisions/{id}/" + parts[3]
		}
	case "items":
		if len(parts) == 3 {
			return "/api/items/{id}"
		}
	}
	return "other"
}

// HTTPMetrics records duration, sizes and counts per normalized route.
// Health probes and the metrics scrape itself are not recorded.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/health", "/ready", "/metrics", "/api/health":
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			requestSize := r.ContentLength
			if requestSize < 0 {
				requestSize = 0
			}
			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(rw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				rw.size,
			)
		})
	}
}
