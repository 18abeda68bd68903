package workers

import (
	"context"
	"log/slog"
	"time"

	application "pulse/contexts/event-pipeline/ingestion-service/application"
	"pulse/contexts/event-pipeline/ingestion-service/ports"
)

// InboxCleanup prunes inbox rows older than the retention window. Deletion is
// independent of whether the matching event rows still exist and never blocks
// dedup decisions for currently-arriving keys; a very old key reappearing
// after pruning is treated as new.
type InboxCleanup struct {
	Inbox         ports.InboxMaintenance
	Clock         ports.Clock
	RetentionDays int
	Logger        *slog.Logger
}

// RunOnce deletes entries past retention. Failures are reported to the caller
// to log and skip for the cycle; the sweep is never fatal to the process.
func (c InboxCleanup) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)

	retention := c.RetentionDays
	if retention <= 0 {
		retention = 7
	}
	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}
	cutoff := now.Add(-time.Duration(retention) * 24 * time.Hour)

	deleted, err := c.Inbox.DeleteInboxOlderThan(ctx, cutoff)
	if err != nil {
		logger.Error("inbox cleanup failed",
			"event", "inbox_cleanup_failed",
			"module", "event-pipeline/ingestion-service",
			"layer", "worker",
			"retention_days", retention,
			"error", err.Error(),
		)
		return err
	}

	if deleted > 0 {
		logger.Info("inbox cleanup completed",
			"event", "inbox_cleanup_completed",
			"module", "event-pipeline/ingestion-service",
			"layer", "worker",
			"deleted_count", deleted,
			"retention_days", retention,
		)
	} else {
		logger.Debug("inbox cleanup found nothing to delete",
			"event", "inbox_cleanup_noop",
			"module", "event-pipeline/ingestion-service",
			"layer", "worker",
			"retention_days", retention,
		)
	}
	return nil
}
