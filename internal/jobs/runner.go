package jobs

import (
	"context"
	"log/slog"
	"time"
)

// Func is one run of a job. It returns how many entries it touched.
type Func func(ctx context.Context) (int, error)

// Every runs fn on each tick of interval until ctx is done. Failures are
// logged and counted; the next tick runs regardless.
func Every(ctx context.Context, logger *slog.Logger, metrics *Metrics, jobType string, interval time.Duration, fn Func) {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			RunOnce(ctx, logger, metrics, jobType, fn)
		}
	}
}

// RunOnce runs fn a single time and records the outcome.
func RunOnce(ctx context.Context, logger *slog.Logger, metrics *Metrics, jobType string, fn Func) {
	start := time.Now()
	n, err := fn(ctx)
	elapsed := time.Since(start)

	if err != nil {
		metrics.ObserveRun(jobType, StatusFailure, elapsed.Seconds(), n)
		logger.Warn("background job failed", "job_type", jobType, "error", err)
		return
	}
	metrics.ObserveRun(jobType, StatusSuccess, elapsed.Seconds(), n)
	if n > 0 {
		logger.Debug("background job completed", "job_type", jobType, "affected", n, "duration_ms", elapsed.Milliseconds())
	}
}
