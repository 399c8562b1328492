package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/camarize/reconciler/internal/services/reconcile"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// healthService is the service name reported alongside the overall ("") status
const healthService = "camarize.reconciler"

type runner interface {
	Run(ctx context.Context) (*reconcile.Summary, error)
}

type healthSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

type failureRecorder interface {
	RecordRunFailure()
}

// daemon runs reconciliations back to back on a fixed interval. Runs never overlap.
type daemon struct {
	runner   runner
	health   healthSetter
	failures failureRecorder
	interval time.Duration
	logger   *slog.Logger
}

// loop runs once immediately and then on every tick until ctx is done
func (d *daemon) loop(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		d.runOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *daemon) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	summary, err := d.runner.Run(ctx)
	if err != nil {
		d.logger.Error("reconciliation run failed", "error", err)
		if d.failures != nil {
			d.failures.RecordRunFailure()
		}
		d.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}

	d.setStatus(healthpb.HealthCheckResponse_SERVING)
	d.logger.Info("reconciliation run completed",
		"run_id", summary.RunID,
		"removed", summary.TotalRemoved(),
		"errored", summary.TotalErrored(),
		"next_run_in", d.interval,
	)
}

func (d *daemon) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	d.health.SetServingStatus("", status)
	d.health.SetServingStatus(healthService, status)
}
