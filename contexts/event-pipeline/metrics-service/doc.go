// Package metricsservice serves the aggregated-metrics read path over the
// precomputed event_metrics materialized view. It never touches the events
// or inbox tables; the ingestion side refreshes the view on a timer.
package metricsservice
