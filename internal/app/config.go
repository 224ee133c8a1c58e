package app

import (
	"os"
	"strings"
	"time"

	"github.com/sweetrise/bakery-pos/internal/messaging/kafka"
)

// Режимы хранилища.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config описывает настройки запуска сервиса.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	Storage     string
	PostgresDSN string

	KafkaBrokers     []string
	OrderEventsTopic string
	DLQTopic         string

	OutboxPollInterval         time.Duration
	IdempotencyCleanupInterval time.Duration
}

// DefaultConfig возвращает настройки для локального запуска без внешних
// зависимостей: in-memory хранилище и отключённый Kafka.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                   ":8080",
		MetricsAddr:                ":9090",
		Storage:                    StorageMemory,
		OrderEventsTopic:           kafka.TopicOrderEvents,
		DLQTopic:                   kafka.TopicDeadLetterQueue,
		OutboxPollInterval:         time.Second,
		IdempotencyCleanupInterval: 10 * time.Minute,
	}
}

// ReadConfig собирает конфигурацию из переменных окружения POS_*.
func ReadConfig() Config {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("POS_HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("POS_METRICS_ADDR")); v != "" {
		cfg.MetricsAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("POS_STORAGE")); v != "" {
		cfg.Storage = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("POS_POSTGRES_DSN")); v != "" {
		cfg.PostgresDSN = v
	}
	if v := strings.TrimSpace(os.Getenv("POS_KAFKA_BROKERS")); v != "" {
		for _, broker := range strings.Split(v, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
			}
		}
	}
	if v := strings.TrimSpace(os.Getenv("POS_ORDER_EVENTS_TOPIC")); v != "" {
		cfg.OrderEventsTopic = v
	}
	if v := strings.TrimSpace(os.Getenv("POS_DLQ_TOPIC")); v != "" {
		cfg.DLQTopic = v
	}
	if v := strings.TrimSpace(os.Getenv("POS_OUTBOX_POLL_INTERVAL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.OutboxPollInterval = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("POS_IDEMPOTENCY_CLEANUP_INTERVAL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.IdempotencyCleanupInterval = d
		}
	}

	return cfg
}
