package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"pulse/contexts/event-pipeline/metrics-service/ports"
)

// Row is one pre-aggregated hourly bucket, mirroring the materialized view.
type Row struct {
	DateHour        time.Time
	EventName       string
	Channel         string
	TotalCount      int64
	UniqueUserCount int64
}

// Store is an in-memory stand-in for the event_metrics view, for tests and
// local runtime.
type Store struct {
	mu   sync.RWMutex
	rows []Row
}

func NewStore(seed []Row) *Store {
	return &Store{rows: append([]Row(nil), seed...)}
}

func (s *Store) QueryTotals(_ context.Context, filter ports.MetricsFilter) (ports.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var totals ports.Totals
	for _, row := range s.rows {
		if !s.matches(row, filter) {
			continue
		}
		totals.TotalCount += row.TotalCount
		totals.UniqueUserCount += row.UniqueUserCount
	}
	return totals, nil
}

func (s *Store) QueryBreakdowns(_ context.Context, filter ports.MetricsFilter) ([]ports.TimeBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	grouped := make(map[time.Time]*ports.TimeBucket)
	for _, row := range s.rows {
		if !s.matches(row, filter) {
			continue
		}
		bucket := row.DateHour.UTC()
		if filter.GroupBy == ports.GroupByDaily {
			bucket = time.Date(bucket.Year(), bucket.Month(), bucket.Day(), 0, 0, 0, 0, time.UTC)
		}
		entry, ok := grouped[bucket]
		if !ok {
			entry = &ports.TimeBucket{Bucket: bucket}
			grouped[bucket] = entry
		}
		entry.TotalCount += row.TotalCount
		entry.UniqueUserCount += row.UniqueUserCount
	}

	buckets := make([]ports.TimeBucket, 0, len(grouped))
	for _, entry := range grouped {
		buckets = append(buckets, *entry)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Bucket.Before(buckets[j].Bucket)
	})
	return buckets, nil
}

func (s *Store) matches(row Row, filter ports.MetricsFilter) bool {
	if row.EventName != filter.EventName {
		return false
	}
	if row.DateHour.Before(filter.From) || !row.DateHour.Before(filter.To) {
		return false
	}
	if filter.Channel != "" && row.Channel != filter.Channel {
		return false
	}
	return true
}
