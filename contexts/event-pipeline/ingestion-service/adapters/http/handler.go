package httpadapter

import (
	"context"
	"log/slog"

	application "pulse/contexts/event-pipeline/ingestion-service/application"
	httptransport "pulse/contexts/event-pipeline/ingestion-service/transport/http"
	"pulse/contexts/event-pipeline/ingestion-service/ports"
)

// Handler is the intake surface: it hands validated events to the producer
// and answers 202 at the intake boundary. Acceptance here does not imply
// storage; dedup happens on the consumer side.
type Handler struct {
	Producer application.Producer
	Logger   *slog.Logger
}

// IngestEventHandler godoc
// @Summary Ingest a single event
// @Description Accepts and queues a single event for async processing.
// @Tags event-ingestion
// @Accept json
// @Produce json
// @Param request body httptransport.EventRequest true "Event payload"
// @Success 202 {object} httptransport.EventResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 503 {object} httptransport.ErrorResponse
// @Router /events [post]
func (h Handler) IngestEventHandler(ctx context.Context, req httptransport.EventRequest) (httptransport.EventResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Debug("event received",
		"event", "http_event_received",
		"module", "event-pipeline/ingestion-service",
		"layer", "transport",
		"event_name", req.EventName,
		"user_id", req.UserID,
	)

	if err := h.Producer.Send(ctx, req.ToMessage()); err != nil {
		return httptransport.EventResponse{}, err
	}

	return httptransport.EventResponse{
		Status:        "accepted",
		AcceptedCount: 1,
		Message:       "Event queued for processing",
	}, nil
}

// IngestBulkEventsHandler godoc
// @Summary Bulk ingest events
// @Description Accepts up to 1000 events for async processing.
// @Tags event-ingestion
// @Accept json
// @Produce json
// @Param request body httptransport.BulkEventRequest true "Bulk event payload"
// @Success 202 {object} httptransport.EventResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 503 {object} httptransport.ErrorResponse
// @Router /events/bulk [post]
func (h Handler) IngestBulkEventsHandler(ctx context.Context, req httptransport.BulkEventRequest) (httptransport.EventResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Debug("bulk events received",
		"event", "http_bulk_events_received",
		"module", "event-pipeline/ingestion-service",
		"layer", "transport",
		"batch_size", len(req.Events),
	)

	msgs := make([]ports.EventMessage, 0, len(req.Events))
	for _, event := range req.Events {
		msgs = append(msgs, event.ToMessage())
	}

	if err := h.Producer.SendBatch(ctx, msgs); err != nil {
		return httptransport.EventResponse{}, err
	}

	return httptransport.EventResponse{
		Status:        "accepted",
		AcceptedCount: len(req.Events),
		Message:       "Events queued for processing",
	}, nil
}
