package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config описывает настройки запуска сервиса.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	// StorageDriver выбирает хранилище: memory или postgres.
	StorageDriver string
	PostgresDSN   string
	// AutoMigrate включает накатку миграций при старте.
	AutoMigrate bool

	// KafkaBrokers — список брокеров через запятую; пустая строка
	// отключает публикацию событий.
	KafkaBrokers string

	// RedisAddr — адрес Redis для idempotency store; пустая строка
	// переключает на in-memory реализацию.
	RedisAddr string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	// OutboxBacklogThreshold — размер backlog, после которого health
	// проверка outbox переходит в degraded.
	OutboxBacklogThreshold int

	// SeedDemoData наполняет memory-хранилище демонстрационными данными.
	SeedDemoData bool
}

// DefaultConfig возвращает конфигурацию для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:               ":8080",
		MetricsAddr:            ":9090",
		StorageDriver:          StorageMemory,
		AutoMigrate:            false,
		OutboxPollInterval:     5 * time.Second,
		OutboxBatchSize:        50,
		OutboxMaxAttempts:      3,
		OutboxBacklogThreshold: 1000,
		SeedDemoData:           true,
	}
}

// ReadConfig строит конфигурацию из переменных окружения с префиксом
// CHECKOUT_, отталкиваясь от значений по умолчанию.
func ReadConfig() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("CHECKOUT_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("CHECKOUT_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("CHECKOUT_STORAGE_DRIVER"); v != "" {
		cfg.StorageDriver = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("CHECKOUT_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("CHECKOUT_AUTO_MIGRATE"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse CHECKOUT_AUTO_MIGRATE: %w", err)
		}
		cfg.AutoMigrate = parsed
	}
	if v := os.Getenv("CHECKOUT_KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = v
	}
	if v := os.Getenv("CHECKOUT_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("CHECKOUT_OUTBOX_POLL_INTERVAL"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse CHECKOUT_OUTBOX_POLL_INTERVAL: %w", err)
		}
		cfg.OutboxPollInterval = parsed
	}
	if v := os.Getenv("CHECKOUT_OUTBOX_BATCH_SIZE"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse CHECKOUT_OUTBOX_BATCH_SIZE: %w", err)
		}
		cfg.OutboxBatchSize = parsed
	}
	if v := os.Getenv("CHECKOUT_OUTBOX_MAX_ATTEMPTS"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse CHECKOUT_OUTBOX_MAX_ATTEMPTS: %w", err)
		}
		cfg.OutboxMaxAttempts = parsed
	}
	if v := os.Getenv("CHECKOUT_OUTBOX_BACKLOG_THRESHOLD"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse CHECKOUT_OUTBOX_BACKLOG_THRESHOLD: %w", err)
		}
		cfg.OutboxBacklogThreshold = parsed
	}
	if v := os.Getenv("CHECKOUT_SEED_DEMO_DATA"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse CHECKOUT_SEED_DEMO_DATA: %w", err)
		}
		cfg.SeedDemoData = parsed
	}

	return cfg, cfg.Validate()
}

// Validate проверяет согласованность конфигурации до старта зависимостей.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageMemory:
	case StoragePostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("postgres storage requires CHECKOUT_POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}

	if c.OutboxPollInterval <= 0 {
		return fmt.Errorf("outbox poll interval must be positive")
	}
	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("outbox batch size must be positive")
	}
	if c.OutboxMaxAttempts <= 0 {
		return fmt.Errorf("outbox max attempts must be positive")
	}

	return nil
}
