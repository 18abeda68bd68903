package ingestionservice

import (
	"log/slog"
	"time"

	httpadapter "pulse/contexts/event-pipeline/ingestion-service/adapters/http"
	"pulse/contexts/event-pipeline/ingestion-service/application"
	"pulse/contexts/event-pipeline/ingestion-service/application/workers"
	"pulse/contexts/event-pipeline/ingestion-service/ports"
)

// Module is the composition surface for the ingestion core. Runtime wiring
// consumes Handler on the API side and Consumer/Cleanup/Refresher on the
// worker side.
type Module struct {
	Handler   httpadapter.Handler
	Pipeline  application.IngestionPipeline
	Breaker   *application.CircuitBreaker
	Consumer  workers.EventConsumer
	Cleanup   workers.InboxCleanup
	Refresher workers.ViewRefresher
}

type IngestionRepository interface {
	ports.IngestionStore
	ports.InboxMaintenance
	ports.MetricsViewRefresher
}

type Dependencies struct {
	Publisher ports.BrokerPublisher
	Consumer  ports.BrokerConsumer
	Store     IngestionRepository
	Clock     ports.Clock
	IDs       ports.IDGenerator

	Topic         string
	ConsumerGroup string
	BatchSize     int
	RetentionDays int

	BreakerFailureThreshold int
	BreakerCooldown         time.Duration
	BreakerHalfOpenProbes   int
	ProducerRetry           application.RetryPolicy
	ConsumerRetry           application.RetryPolicy

	Logger *slog.Logger
}

// NewModule wires the ingestion use-cases against explicit ports. The circuit
// breaker is constructed once here and shared by reference across every
// intake call site; it is never reset except by its own cooldown transition.
func NewModule(deps Dependencies) Module {
	breaker := application.NewCircuitBreaker(
		deps.BreakerFailureThreshold,
		deps.BreakerCooldown,
		deps.BreakerHalfOpenProbes,
		deps.Clock,
	)

	producer := application.Producer{
		Publisher: deps.Publisher,
		Breaker:   breaker,
		IDs:       deps.IDs,
		Topic:     deps.Topic,
		Retry:     deps.ProducerRetry,
		Logger:    deps.Logger,
	}

	pipeline := application.IngestionPipeline{
		Store:  deps.Store,
		Clock:  deps.Clock,
		Logger: deps.Logger,
	}

	consumer := workers.EventConsumer{
		Broker:      deps.Consumer,
		DeadLetters: deps.Publisher,
		Pipeline:    pipeline,
		Topic:       deps.Topic,
		Group:       deps.ConsumerGroup,
		BatchSize:   deps.BatchSize,
		Retry:       deps.ConsumerRetry,
		Logger:      deps.Logger,
	}

	cleanup := workers.InboxCleanup{
		Inbox:         deps.Store,
		Clock:         deps.Clock,
		RetentionDays: deps.RetentionDays,
		Logger:        deps.Logger,
	}

	refresher := workers.ViewRefresher{
		Metrics: deps.Store,
		Logger:  deps.Logger,
	}

	handler := httpadapter.Handler{
		Producer: producer,
		Logger:   deps.Logger,
	}

	return Module{
		Handler:   handler,
		Pipeline:  pipeline,
		Breaker:   breaker,
		Consumer:  consumer,
		Cleanup:   cleanup,
		Refresher: refresher,
	}
}
