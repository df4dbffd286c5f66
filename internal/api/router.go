package api

import (
	"net/http"
)

// RouterConfig wires the handler groups into one mux.
type RouterConfig struct {
	Health      *HealthHandlers
	Items       *ItemHandlers
	Decide      *DecideHandlers
	Decisions   *DecisionHandlers
	Preferences *PreferenceHandlers

	// Protect wraps every route that needs an authenticated caller.
	Protect func(http.Handler) http.Handler

	// Metrics is served at /metrics when set.
	Metrics http.Handler
}

// NewRouter registers every route. Public routes are the root document,
// health, readiness and metrics; everything under /api except health
// requires a bearer token.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	protect := cfg.Protect
	if protect == nil {
		protect = func(h http.Handler) http.Handler { return h }
	}
	private := func(h http.HandlerFunc) http.Handler { return protect(h) }

	mux := http.NewServeMux()

	mux.HandleFunc("/", cfg.Health.Root)
	mux.HandleFunc("/health", cfg.Health.Health)
	mux.HandleFunc("/api/health", cfg.Health.Health)
	mux.HandleFunc("/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}

	mux.Handle("/api/items", private(cfg.Items.Collection))
	mux.Handle(ItemsPrefix, private(cfg.Items.Route))

	mux.Handle("/api/decide", private(cfg.Decide.Decide))

	mux.Handle("/api/decisions", private(cfg.Decisions.ListDecisions))
	mux.Handle(DecisionsPrefix, private(cfg.Decisions.Route))
	mux.Handle("/api/events", private(cfg.Decisions.ListEvents))

	mux.Handle("/api/preferences", private(cfg.Preferences.Get))
	mux.Handle("/api/preferences/profile", private(cfg.Preferences.PutProfile))

	return mux
}
