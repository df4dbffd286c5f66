package api

import (
	"context"
	"net/http"
	"time"

	"github.com/onnwee/mealpilot/internal/health"
)

// ReadinessChecker runs the registered dependency checks.
type ReadinessChecker interface {
	Run(ctx context.Context) health.Report
}

// HealthHandlers provides the root document plus health and readiness
// endpoints.
type HealthHandlers struct {
	service string
	version string
	ready   ReadinessChecker
	now     func() time.Time
}

// HealthHandlersConfig configures the health check handlers.
type HealthHandlersConfig struct {
	Service string
	Version string
	// Ready is optional; without it /ready only reports the runtime.
	Ready ReadinessChecker
}

// NewHealthHandlers creates a new health check handler.
func NewHealthHandlers(cfg HealthHandlersConfig) *HealthHandlers {
	return &HealthHandlers{
		service: cfg.Service,
		version: cfg.Version,
		ready:   cfg.Ready,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// HealthResponse is the liveness body.
type HealthResponse struct {
	Status  string    `json:"status"`
	Service string    `json:"service"`
	Time    time.Time `json:"time"`
}

// ReadyResponse is the readiness body.
type ReadyResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Service string            `json:"service"`
	Time    time.Time         `json:"time"`
}

// RootResponse describes the service at GET /.
type RootResponse struct {
	Service string            `json:"service"`
	Version string            `json:"version"`
	Status  string            `json:"status"`
	Time    time.Time         `json:"time"`
	Health  string            `json:"health"`
	Routes  map[string]string `json:"routes"`
	Note    string            `json:"note"`
}

// Root handles GET /. Any other unmatched path is a 404.
func (h *HealthHandlers) Root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		WriteError(w, r, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, r, http.StatusOK, RootResponse{
		Service: h.service,
		Version: h.version,
		Status:  health.StatusOK,
		Time:    h.now(),
		Health:  "/api/health",
		Routes: map[string]string{
			"items":       "/api/items",
			"decide":      "/api/decide",
			"decisions":   "/api/decisions",
			"events":      "/api/events",
			"preferences": "/api/preferences",
		},
		Note: "Most /api endpoints require Authorization: Bearer <jwt>",
	})
}

// Health handles GET /health and GET /api/health (liveness).
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:  health.StatusOK,
		Service: h.service,
		Time:    h.now(),
	})
}

// Ready handles GET /ready. It returns 503 when any dependency check fails.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	report := health.Report{Status: health.StatusHealthy, Checks: map[string]string{}}
	if h.ready != nil {
		report = h.ready.Run(r.Context())
	}
	report.Checks["runtime"] = health.StatusOK

	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, ReadyResponse{
		Status:  report.Status,
		Checks:  report.Checks,
		Service: h.service,
		Time:    h.now(),
	})
}
