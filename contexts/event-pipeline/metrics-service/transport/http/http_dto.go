package httptransport

import (
	"fmt"
	"strconv"
	"time"

	"pulse/contexts/event-pipeline/metrics-service/ports"
)

// FieldError is one query-parameter validation failure in a 400 response.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type TimeRangeDTO struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

type TimeBucketDTO struct {
	Bucket          string `json:"bucket"`
	TotalCount      int64  `json:"total_count"`
	UniqueUserCount int64  `json:"unique_user_count"`
}

type MetricsResponse struct {
	EventName       string          `json:"event_name"`
	TotalCount      int64           `json:"total_count"`
	UniqueUserCount int64           `json:"unique_user_count"`
	TimeRange       TimeRangeDTO    `json:"time_range"`
	Channel         string          `json:"channel,omitempty"`
	Breakdowns      []TimeBucketDTO `json:"breakdowns"`
}

type ErrorResponse struct {
	Status  int          `json:"status"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// ParseMetricsFilter validates raw query parameters and builds the filter.
// event_name, from and to are required; from must precede to; group_by is
// hourly (default) or daily.
func ParseMetricsFilter(eventName, fromRaw, toRaw, channel, groupByRaw string) (ports.MetricsFilter, []FieldError) {
	var errs []FieldError

	if eventName == "" {
		errs = append(errs, FieldError{"event_name", "is required"})
	}

	from, err := parseEpoch(fromRaw)
	if err != nil {
		errs = append(errs, FieldError{"from", err.Error()})
	}
	to, err := parseEpoch(toRaw)
	if err != nil {
		errs = append(errs, FieldError{"to", err.Error()})
	}
	if from > 0 && to > 0 && from >= to {
		errs = append(errs, FieldError{"from", "must be earlier than to"})
	}

	groupBy := ports.GroupByHourly
	switch groupByRaw {
	case "", string(ports.GroupByHourly):
	case string(ports.GroupByDaily):
		groupBy = ports.GroupByDaily
	default:
		errs = append(errs, FieldError{"group_by", "must be hourly or daily"})
	}

	if len(errs) > 0 {
		return ports.MetricsFilter{}, errs
	}

	return ports.MetricsFilter{
		EventName: eventName,
		From:      time.Unix(from, 0).UTC(),
		To:        time.Unix(to, 0).UTC(),
		Channel:   channel,
		GroupBy:   groupBy,
	}, nil
}

func parseEpoch(raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("is required")
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("must be an integer epoch value")
	}
	if value <= 0 {
		return 0, fmt.Errorf("must be a positive epoch value")
	}
	return value, nil
}
