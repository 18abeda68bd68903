package queries

import (
	"context"
	"log/slog"

	"pulse/contexts/event-pipeline/metrics-service/ports"
)

// GetMetricsQuery is a validated metrics request.
type GetMetricsQuery struct {
	Filter ports.MetricsFilter
}

// GetMetricsResult combines totals with the time-bucketed breakdown.
type GetMetricsResult struct {
	Filter     ports.MetricsFilter
	Totals     ports.Totals
	Breakdowns []ports.TimeBucket
}

// GetMetricsUseCase reads totals plus breakdowns from the materialized view.
type GetMetricsUseCase struct {
	Metrics ports.MetricsRepository
	Logger  *slog.Logger
}

func (u GetMetricsUseCase) Execute(ctx context.Context, query GetMetricsQuery) (GetMetricsResult, error) {
	logger := resolveLogger(u.Logger)
	logger.Debug("metrics query received",
		"event", "metrics_query_received",
		"module", "event-pipeline/metrics-service",
		"layer", "application",
		"event_name", query.Filter.EventName,
		"group_by", string(query.Filter.GroupBy),
	)

	totals, err := u.Metrics.QueryTotals(ctx, query.Filter)
	if err != nil {
		logger.Error("metrics totals query failed",
			"event", "metrics_totals_failed",
			"module", "event-pipeline/metrics-service",
			"layer", "application",
			"error", err.Error(),
		)
		return GetMetricsResult{}, err
	}

	breakdowns, err := u.Metrics.QueryBreakdowns(ctx, query.Filter)
	if err != nil {
		logger.Error("metrics breakdown query failed",
			"event", "metrics_breakdowns_failed",
			"module", "event-pipeline/metrics-service",
			"layer", "application",
			"error", err.Error(),
		)
		return GetMetricsResult{}, err
	}

	return GetMetricsResult{
		Filter:     query.Filter,
		Totals:     totals,
		Breakdowns: breakdowns,
	}, nil
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
