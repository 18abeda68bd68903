package postgresadapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pulse/contexts/event-pipeline/metrics-service/ports"

	"gorm.io/gorm"
)

// Repository reads the event_metrics materialized view. The view is hourly
// pre-aggregated (date_hour, event_name, channel, total_count,
// unique_user_count); daily grouping rolls hourly buckets up in SQL.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) QueryTotals(ctx context.Context, filter ports.MetricsFilter) (ports.Totals, error) {
	query := `
		SELECT COALESCE(SUM(total_count), 0) AS total_count,
		       COALESCE(SUM(unique_user_count), 0) AS unique_user_count
		FROM event_metrics
		WHERE event_name = ?
		  AND date_hour >= ?
		  AND date_hour < ?`
	args := []any{filter.EventName, filter.From, filter.To}
	if filter.Channel != "" {
		query += " AND channel = ?"
		args = append(args, filter.Channel)
	}

	var row struct {
		TotalCount      int64
		UniqueUserCount int64
	}
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&row).Error; err != nil {
		return ports.Totals{}, fmt.Errorf("query metrics totals: %w", err)
	}
	return ports.Totals{
		TotalCount:      row.TotalCount,
		UniqueUserCount: row.UniqueUserCount,
	}, nil
}

func (r *Repository) QueryBreakdowns(ctx context.Context, filter ports.MetricsFilter) ([]ports.TimeBucket, error) {
	bucketExpr := "date_hour"
	if filter.GroupBy == ports.GroupByDaily {
		bucketExpr = "DATE_TRUNC('day', date_hour)"
	}

	query := fmt.Sprintf(`
		SELECT %s AS bucket,
		       SUM(total_count) AS total_count,
		       SUM(unique_user_count) AS unique_user_count
		FROM event_metrics
		WHERE event_name = ?
		  AND date_hour >= ?
		  AND date_hour < ?`, bucketExpr)
	args := []any{filter.EventName, filter.From, filter.To}
	if filter.Channel != "" {
		query += " AND channel = ?"
		args = append(args, filter.Channel)
	}
	query += fmt.Sprintf(" GROUP BY %s ORDER BY %s", bucketExpr, bucketExpr)

	var rows []struct {
		Bucket          time.Time
		TotalCount      int64
		UniqueUserCount int64
	}
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query metrics breakdowns: %w", err)
	}

	buckets := make([]ports.TimeBucket, 0, len(rows))
	for _, row := range rows {
		buckets = append(buckets, ports.TimeBucket{
			Bucket:          row.Bucket.UTC(),
			TotalCount:      row.TotalCount,
			UniqueUserCount: row.UniqueUserCount,
		})
	}
	return buckets, nil
}
