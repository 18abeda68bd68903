package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"pulse/contexts/event-pipeline/metrics-service/application/queries"
	httptransport "pulse/contexts/event-pipeline/metrics-service/transport/http"
	"pulse/contexts/event-pipeline/metrics-service/ports"
)

type Handler struct {
	GetMetrics queries.GetMetricsUseCase
	Logger     *slog.Logger
}

// GetMetricsHandler godoc
// @Summary Query aggregated event metrics
// @Description Returns totals and hourly/daily breakdowns from the precomputed aggregate.
// @Tags metrics
// @Produce json
// @Param event_name query string true "Event name"
// @Param from query int true "Range start, epoch seconds (inclusive)"
// @Param to query int true "Range end, epoch seconds (exclusive)"
// @Param channel query string false "Channel filter"
// @Param group_by query string false "Bucket size: hourly (default) or daily"
// @Success 200 {object} httptransport.MetricsResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /metrics [get]
func (h Handler) GetMetricsHandler(ctx context.Context, filter ports.MetricsFilter) (httptransport.MetricsResponse, error) {
	result, err := h.GetMetrics.Execute(ctx, queries.GetMetricsQuery{Filter: filter})
	if err != nil {
		return httptransport.MetricsResponse{}, err
	}

	breakdowns := make([]httptransport.TimeBucketDTO, 0, len(result.Breakdowns))
	for _, bucket := range result.Breakdowns {
		breakdowns = append(breakdowns, httptransport.TimeBucketDTO{
			Bucket:          bucket.Bucket.Format(time.RFC3339),
			TotalCount:      bucket.TotalCount,
			UniqueUserCount: bucket.UniqueUserCount,
		})
	}

	return httptransport.MetricsResponse{
		EventName:       result.Filter.EventName,
		TotalCount:      result.Totals.TotalCount,
		UniqueUserCount: result.Totals.UniqueUserCount,
		TimeRange: httptransport.TimeRangeDTO{
			From: result.Filter.From.Unix(),
			To:   result.Filter.To.Unix(),
		},
		Channel:    result.Filter.Channel,
		Breakdowns: breakdowns,
	}, nil
}
