package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/mealpilot/internal/api"
	"github.com/onnwee/mealpilot/internal/auth"
	"github.com/onnwee/mealpilot/internal/config"
	"github.com/onnwee/mealpilot/internal/db"
	"github.com/onnwee/mealpilot/internal/decision"
	"github.com/onnwee/mealpilot/internal/health"
	"github.com/onnwee/mealpilot/internal/item"
	"github.com/onnwee/mealpilot/internal/jobs"
	"github.com/onnwee/mealpilot/internal/middleware"
	"github.com/onnwee/mealpilot/internal/preference"
	"github.com/onnwee/mealpilot/internal/ranking"
	"github.com/onnwee/mealpilot/migrations"
)

const (
	rateLimitCleanupInterval = time.Minute
	rateLimitMaxWindow       = 2 * time.Minute
)

// app is the wired server: the root handler plus what must be closed.
type app struct {
	handler http.Handler
	auth    *auth.Service
	closers []func() error
}

type stores struct {
	items     item.Repository
	prefs     preference.Repository
	decisions decision.Repository
	events    decision.EventRepository
}

// newAuthService builds the token service from cfg.
func newAuthService(cfg *config.Config) (*auth.Service, error) {
	opts := []auth.Option{
		auth.WithIssuer(cfg.JWTIssuer),
		auth.WithTTL(time.Duration(cfg.JWTTTLSeconds) * time.Second),
	}
	if cfg.JWTPreviousSecret != "" {
		opts = append(opts, auth.WithPreviousSecret(cfg.JWTPreviousSecret))
	}
	return auth.NewService(cfg.JWTSecret, opts...)
}

// newApp wires every component. Background jobs stop when ctx is done.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}
	readiness := health.NewRegistry()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := middleware.NewMetrics()
	decisionMetrics := decision.NewMetrics()
	prefMetrics := preference.NewMetrics()
	jobMetrics := jobs.NewMetrics()
	for name, register := range map[string]func(prometheus.Registerer) error{
		"http":       httpMetrics.Register,
		"decision":   decisionMetrics.Register,
		"preference": prefMetrics.Register,
		"jobs":       jobMetrics.Register,
	} {
		if err := register(registry); err != nil {
			return nil, fmt.Errorf("failed to register %s metrics: %w", name, err)
		}
	}

	st, err := a.openStores(ctx, cfg, logger, readiness)
	if err != nil {
		a.Close()
		return nil, err
	}

	weights, err := ranking.LoadCalibration(cfg.ScoringCalibrationPath)
	if err != nil {
		logger.Warn("scoring calibration not loaded, using defaults", "path", cfg.ScoringCalibrationPath, "error", err)
	}

	prefStore := preference.NewStore(st.prefs,
		preference.WithRetries(cfg.PreferenceUpdateRetries),
		preference.WithMetrics(prefMetrics),
	)
	pipeline := decision.NewPipeline(st.items, prefStore, st.decisions, decision.NewScoringEngine(weights), decisionMetrics)
	feedback := decision.NewFeedbackProcessor(st.decisions, st.events, prefStore, decisionMetrics)
	history := decision.NewHistory(st.decisions, st.events)

	a.auth, err = newAuthService(cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}

	limiter, err := a.rateLimitStore(ctx, cfg, logger, readiness, httpMetrics, jobMetrics)
	if err != nil {
		a.Close()
		return nil, err
	}

	mux := api.NewRouter(api.RouterConfig{
		Health: api.NewHealthHandlers(api.HealthHandlersConfig{
			Service: serviceName,
			Version: version,
			Ready:   readiness,
		}),
		Items:       api.NewItemHandlers(st.items),
		Decide:      api.NewDecideHandlers(pipeline),
		Decisions:   api.NewDecisionHandlers(history, feedback),
		Preferences: api.NewPreferenceHandlers(prefStore),
		Protect:     middleware.RequireAuth(a.auth, api.WriteError),
		Metrics:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	})

	mws := []func(http.Handler) http.Handler{
		middleware.SecurityHeaders,
		middleware.RequestID,
		middleware.Tracing(serviceName),
		middleware.Logging(logger),
		middleware.HTTPMetrics(httpMetrics),
		middleware.CORS(middleware.DefaultCORSConfig(cfg.Origins()), api.WriteError),
	}
	if cfg.RateLimitEnabled {
		mws = append(mws, middleware.RateLimiter(limiter, cfg.RateLimitPolicy(), middleware.IPKeyFunc(), httpMetrics, api.WriteError))
	} else {
		logger.Warn("rate limiting disabled")
	}
	a.handler = middleware.Chain(mux, mws...)

	return a, nil
}

// openStores selects Postgres when a database URL is configured.
func (a *app) openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger, readiness *health.Registry) (*stores, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("no database configured, using in-memory stores")
		return &stores{
			items:     item.NewInMemoryRepository(),
			prefs:     preference.NewInMemoryRepository(),
			decisions: decision.NewInMemoryRepository(),
			events:    decision.NewInMemoryEventRepository(),
		}, nil
	}

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, conn.Close)

	if cfg.AutoMigrate {
		if err := migrations.Apply(ctx, conn); err != nil {
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		logger.Info("migrations applied")
	}
	readiness.Register("database", health.NewDBChecker(conn))

	return postgresStores(conn), nil
}

func postgresStores(conn *sql.DB) *stores {
	return &stores{
		items:     item.NewPostgresRepository(conn),
		prefs:     preference.NewPostgresRepository(conn),
		decisions: decision.NewPostgresRepository(conn),
		events:    decision.NewPostgresEventRepository(conn),
	}
}

// rateLimitStore selects Redis when a Redis URL is configured. The in-memory
// store is swept by a background job.
func (a *app) rateLimitStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, readiness *health.Registry, httpMetrics *middleware.Metrics, jobMetrics *jobs.Metrics) (middleware.RateLimitStore, error) {
	if cfg.RedisURL == "" {
		store := middleware.NewInMemoryRateLimitStore()
		go jobs.Every(ctx, logger, jobMetrics, jobs.JobTypeRateLimitCleanup, rateLimitCleanupInterval, func(context.Context) (int, error) {
			return store.Cleanup(rateLimitMaxWindow), nil
		})
		return store, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	a.closers = append(a.closers, client.Close)
	readiness.Register("redis", health.NewRedisChecker(client))

	return middleware.NewRedisRateLimitStore(client, middleware.WithRedisMetrics(httpMetrics)), nil
}

// Close releases connections in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
