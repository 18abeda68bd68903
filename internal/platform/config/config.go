package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string

	EventsTopic      string
	ConsumerGroup    string
	TopicPartitions  int
	ConsumerBatch    int
	ConsumerWorkers  int
	InboxRetention   int
	CleanupInterval  time.Duration
	RefreshInterval  time.Duration
	RefreshInitDelay time.Duration

	BreakerFailureThreshold int
	BreakerCooldown         time.Duration
	BreakerHalfOpenProbes   int
	ProducerRetryAttempts   int
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "pulse"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	topic := os.Getenv("EVENTS_TOPIC")
	if topic == "" {
		topic = "events-ingestion"
	}
	group := os.Getenv("CONSUMER_GROUP")
	if group == "" {
		group = "pulse-ingestion-cg"
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		KafkaBrokers: brokers,

		EventsTopic:      topic,
		ConsumerGroup:    group,
		TopicPartitions:  envInt("TOPIC_PARTITIONS", 4),
		ConsumerBatch:    envInt("CONSUMER_BATCH_SIZE", 500),
		ConsumerWorkers:  envInt("CONSUMER_WORKERS", 2),
		InboxRetention:   envInt("INBOX_RETENTION_DAYS", 7),
		CleanupInterval:  envDuration("INBOX_CLEANUP_INTERVAL", time.Hour),
		RefreshInterval:  envDuration("MV_REFRESH_INTERVAL", time.Minute),
		RefreshInitDelay: envDuration("MV_REFRESH_INITIAL_DELAY", 30*time.Second),

		BreakerFailureThreshold: envInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerCooldown:         envDuration("BREAKER_COOLDOWN", 30*time.Second),
		BreakerHalfOpenProbes:   envInt("BREAKER_HALF_OPEN_PROBES", 2),
		ProducerRetryAttempts:   envInt("PRODUCER_RETRY_ATTEMPTS", 3),
	}, nil
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
