package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	ingestion "pulse/contexts/event-pipeline/ingestion-service"
	domainerrors "pulse/contexts/event-pipeline/ingestion-service/domain/errors"
	ingestionhttp "pulse/contexts/event-pipeline/ingestion-service/transport/http"
	metrics "pulse/contexts/event-pipeline/metrics-service"
	metricshttp "pulse/contexts/event-pipeline/metrics-service/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "pulse/internal/platform/httpserver/docs"
)

type Server struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	addr      string
	ingestion ingestion.Module
	metrics   metrics.Module
}

func New(
	ingestionModule ingestion.Module,
	metricsModule metrics.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:       http.NewServeMux(),
		logger:    logger,
		addr:      addr,
		ingestion: ingestionModule,
		metrics:   metricsModule,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the routed mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /events", s.handleIngestEvent)
	s.mux.HandleFunc("POST /events/bulk", s.handleIngestBulkEvents)
	s.mux.HandleFunc("GET /metrics", s.handleGetMetrics)
}

func (s *Server) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	var req ingestionhttp.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeIngestionError(w, http.StatusBadRequest, "request body must be valid JSON", nil)
		return
	}

	if fieldErrs := req.Validate(); len(fieldErrs) > 0 {
		writeIngestionError(w, http.StatusBadRequest, "Validation failed", fieldErrs)
		return
	}

	resp, err := s.ingestion.Handler.IngestEventHandler(r.Context(), req)
	if err != nil {
		s.writeIngestionFailure(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleIngestBulkEvents(w http.ResponseWriter, r *http.Request) {
	var req ingestionhttp.BulkEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeIngestionError(w, http.StatusBadRequest, "request body must be valid JSON", nil)
		return
	}

	if fieldErrs := req.Validate(); len(fieldErrs) > 0 {
		writeIngestionError(w, http.StatusBadRequest, "Validation failed", fieldErrs)
		return
	}

	resp, err := s.ingestion.Handler.IngestBulkEventsHandler(r.Context(), req)
	if err != nil {
		s.writeIngestionFailure(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter, fieldErrs := metricshttp.ParseMetricsFilter(
		query.Get("event_name"),
		query.Get("from"),
		query.Get("to"),
		query.Get("channel"),
		query.Get("group_by"),
	)
	if len(fieldErrs) > 0 {
		writeJSON(w, http.StatusBadRequest, metricshttp.ErrorResponse{
			Status:  http.StatusBadRequest,
			Message: "Validation failed",
			Errors:  fieldErrs,
		})
		return
	}

	resp, err := s.metrics.Handler.GetMetricsHandler(r.Context(), filter)
	if err != nil {
		s.logger.Error("metrics query failed",
			"event", "http_metrics_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"error", err.Error(),
		)
		writeJSON(w, http.StatusInternalServerError, metricshttp.ErrorResponse{
			Status:  http.StatusInternalServerError,
			Message: "internal error",
		})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeIngestionFailure maps producer failures: breaker-open and publish
// exhaustion become 503 with a Retry-After hint, everything else 500.
func (s *Server) writeIngestionFailure(w http.ResponseWriter, err error) {
	if unavailable, ok := domainerrors.AsServiceUnavailable(err); ok {
		s.logger.Error("service unavailable",
			"event", "http_service_unavailable",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"retry_after_seconds", unavailable.RetryAfterSeconds,
			"error", unavailable.Error(),
		)
		w.Header().Set("Retry-After", strconv.Itoa(unavailable.RetryAfterSeconds))
		writeIngestionError(w, http.StatusServiceUnavailable, unavailable.Message, nil)
		return
	}

	s.logger.Error("event ingestion failed",
		"event", "http_ingestion_failed",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"error", err.Error(),
	)
	writeIngestionError(w, http.StatusInternalServerError, "internal error", nil)
}

func writeIngestionError(w http.ResponseWriter, status int, message string, fieldErrs []ingestionhttp.FieldError) {
	writeJSON(w, status, ingestionhttp.ErrorResponse{
		Status:  status,
		Message: message,
		Errors:  fieldErrs,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
