package ports

import (
	"context"
	"time"
)

// GroupBy selects the breakdown bucket size.
type GroupBy string

const (
	GroupByHourly GroupBy = "hourly"
	GroupByDaily  GroupBy = "daily"
)

// MetricsFilter scopes an aggregate query over the event_metrics view.
type MetricsFilter struct {
	EventName string
	From      time.Time
	To        time.Time
	Channel   string
	GroupBy   GroupBy
}

// Totals are the summed counters over the filtered range.
type Totals struct {
	TotalCount      int64
	UniqueUserCount int64
}

// TimeBucket is one hourly or daily slice of the breakdown.
type TimeBucket struct {
	Bucket          time.Time
	TotalCount      int64
	UniqueUserCount int64
}

// MetricsRepository reads the precomputed aggregate.
type MetricsRepository interface {
	QueryTotals(ctx context.Context, filter MetricsFilter) (Totals, error)
	QueryBreakdowns(ctx context.Context, filter MetricsFilter) ([]TimeBucket, error)
}
