package metricsservice

import (
	"log/slog"

	httpadapter "pulse/contexts/event-pipeline/metrics-service/adapters/http"
	"pulse/contexts/event-pipeline/metrics-service/application/queries"
	"pulse/contexts/event-pipeline/metrics-service/ports"
)

// Module is the composition surface for the metrics read path.
type Module struct {
	Handler httpadapter.Handler
}

type Dependencies struct {
	Metrics ports.MetricsRepository
	Logger  *slog.Logger
}

func NewModule(deps Dependencies) Module {
	getMetrics := queries.GetMetricsUseCase{
		Metrics: deps.Metrics,
		Logger:  deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			GetMetrics: getMetrics,
			Logger:     deps.Logger,
		},
	}
}
