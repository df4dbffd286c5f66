//go:build integration

package health

import (
	"context"
	"testing"
	"time"

	"github.com/onnwee/mealpilot/internal/testinfra"
)

func TestCheckers_LiveDependencies(t *testing.T) {
	reg := NewRegistry()
	reg.Register("database", NewDBChecker(testinfra.Postgres(t)))
	reg.Register("redis", NewRedisChecker(testinfra.Redis(t)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	report := reg.Run(ctx)
	if !report.Healthy() {
		t.Fatalf("expected healthy report, got %+v", report)
	}
}
