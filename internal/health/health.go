// Package health runs dependency checks for the readiness probe.
package health

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	StatusOK    = "ok"
	StatusError = "error"

	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// DefaultTimeout bounds a full round of checks.
const DefaultTimeout = 5 * time.Second

// Checker is one dependency probe.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Report is the outcome of a round of checks.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (r Report) Healthy() bool {
	return r.Status == StatusHealthy
}

// Registry holds named checkers. Unconfigured dependencies are simply not
// registered.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	timeout  time.Duration
}

func NewRegistry() *Registry {
	return &Registry{checkers: make(map[string]Checker), timeout: DefaultTimeout}
}

// Register adds or replaces a named checker. nil checkers are ignored.
func (r *Registry) Register(name string, c Checker) {
	if c == nil {
		return
	}
	r.mu.Lock()
	r.checkers[name] = c
	r.mu.Unlock()
}

// Names lists registered checkers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes every checker concurrently under the registry timeout.
func (r *Registry) Run(ctx context.Context) Report {
	r.mu.RLock()
	checkers := make(map[string]Checker, len(r.checkers))
	for name, c := range r.checkers {
		checkers[name] = c
	}
	timeout := r.timeout
	r.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var mu sync.Mutex
	report := Report{Status: StatusHealthy, Checks: make(map[string]string, len(checkers))}
	var g errgroup.Group
	for name, c := range checkers {
		g.Go(func() error {
			status := StatusOK
			if err := c.HealthCheck(ctx); err != nil {
				status = StatusError
				slog.WarnContext(ctx, "health check failed", "check", name, "error", err)
			}
			mu.Lock()
			report.Checks[name] = status
			if status != StatusOK {
				report.Status = StatusUnhealthy
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return report
}
