package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	ingestion "pulse/contexts/event-pipeline/ingestion-service"
	ingestionpg "pulse/contexts/event-pipeline/ingestion-service/adapters/postgres"
	"pulse/contexts/event-pipeline/ingestion-service/application"
	metrics "pulse/contexts/event-pipeline/metrics-service"
	metricspg "pulse/contexts/event-pipeline/metrics-service/adapters/postgres"
	"pulse/internal/platform/config"
	"pulse/internal/platform/db"
	"pulse/internal/platform/httpserver"
	"pulse/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server    *httpserver.Server
	postgres  *db.Postgres
	ingestion ingestion.Module
	workers   int
	logger    *slog.Logger
}

type WorkerApp struct {
	postgres        *db.Postgres
	cleanup         func(context.Context) error
	refresh         func(context.Context) error
	cleanupInterval time.Duration
	refreshInterval time.Duration
	refreshDelay    time.Duration
	logger          *slog.Logger
}

// BuildAPI wires the intake server together with the consumer loops: the
// broker adapter is in-process, so producer and consumer share one instance.
func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, cfg.TopicPartitions, logger)
	if err != nil {
		return nil, err
	}

	repo := ingestionpg.NewRepository(pg.DB, logger)
	ingestionModule := ingestion.NewModule(ingestion.Dependencies{
		Publisher: kafka,
		Consumer:  kafka,
		Store:     repo,
		Clock:     ingestionpg.SystemClock{},
		IDs:       ingestionpg.UUIDGenerator{},

		Topic:         cfg.EventsTopic,
		ConsumerGroup: cfg.ConsumerGroup,
		BatchSize:     cfg.ConsumerBatch,
		RetentionDays: cfg.InboxRetention,

		BreakerFailureThreshold: cfg.BreakerFailureThreshold,
		BreakerCooldown:         cfg.BreakerCooldown,
		BreakerHalfOpenProbes:   cfg.BreakerHalfOpenProbes,
		ProducerRetry: application.RetryPolicy{
			MaxAttempts: cfg.ProducerRetryAttempts,
		},
		ConsumerRetry: application.RetryPolicy{
			InitialBackoff: time.Second,
			BackoffFactor:  2.0,
			MaxElapsed:     4 * time.Second,
		},

		Logger: logger,
	})

	metricsModule := metrics.NewModule(metrics.Dependencies{
		Metrics: metricspg.NewRepository(pg.DB, logger),
		Logger:  logger,
	})

	server := httpserver.New(ingestionModule, metricsModule, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:    server,
		postgres:  pg,
		ingestion: ingestionModule,
		workers:   cfg.ConsumerWorkers,
		logger:    logger,
	}, nil
}

// BuildWorker wires the maintenance process: inbox retention sweep and
// materialized view refresh on independent timers.
func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	repo := ingestionpg.NewRepository(pg.DB, logger)
	cleanup := ingestion.NewModule(ingestion.Dependencies{
		Store:         repo,
		Clock:         ingestionpg.SystemClock{},
		RetentionDays: cfg.InboxRetention,
		Logger:        logger,
	})

	return &WorkerApp{
		postgres:        pg,
		cleanup:         cleanup.Cleanup.RunOnce,
		refresh:         cleanup.Refresher.RunOnce,
		cleanupInterval: cfg.CleanupInterval,
		refreshInterval: cfg.RefreshInterval,
		refreshDelay:    cfg.RefreshInitDelay,
		logger:          logger,
	}, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"consumer_workers", a.workers,
	)

	workers := a.workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		go func(id int) {
			if err := a.ingestion.Consumer.Start(ctx); err != nil {
				a.logger.Error("consumer loop stopped",
					"event", "bootstrap_consumer_stopped",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"worker", id,
					"error", err.Error(),
				)
			}
		}(i)
	}

	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"cleanup_interval", w.cleanupInterval.String(),
		"refresh_interval", w.refreshInterval.String(),
	)

	go w.runRefreshLoop(ctx)

	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// Scheduler failures are logged inside RunOnce and skipped for
			// the cycle, never fatal.
			_ = w.cleanup(ctx)
		}
	}
}

func (w *WorkerApp) runRefreshLoop(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(w.refreshDelay):
	}
	_ = w.refresh(ctx)

	ticker := time.NewTicker(w.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = w.refresh(ctx)
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
