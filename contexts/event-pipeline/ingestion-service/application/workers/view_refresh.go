package workers

import (
	"context"
	"log/slog"
	"time"

	application "pulse/contexts/event-pipeline/ingestion-service/application"
	"pulse/contexts/event-pipeline/ingestion-service/ports"
)

// ViewRefresher periodically refreshes the event_metrics materialized view
// that backs the metrics read path.
type ViewRefresher struct {
	Metrics ports.MetricsViewRefresher
	Logger  *slog.Logger
}

// RunOnce refreshes the view. Failures are logged by the caller and skipped
// for the cycle.
func (r ViewRefresher) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)

	start := time.Now()
	if err := r.Metrics.RefreshEventMetrics(ctx); err != nil {
		logger.Error("materialized view refresh failed",
			"event", "metrics_view_refresh_failed",
			"module", "event-pipeline/ingestion-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	logger.Info("materialized view refreshed",
		"event", "metrics_view_refreshed",
		"module", "event-pipeline/ingestion-service",
		"layer", "worker",
		"elapsed", time.Since(start).String(),
	)
	return nil
}
