package app

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/checkout/internal/storage/memory"
	"github.com/vladislavdragonenkov/checkout/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/checkout/internal/storage/redis"
)

// Dependencies содержит собранные зависимости сервиса.
type Dependencies struct {
	Customers domain.CustomerDirectory
	Catalog   domain.ProductCatalog
	Orders    domain.OrderStore
	Outbox    domain.OutboxRepository
	Idem      domain.IdempotencyStore

	KafkaProducer *kafka.Producer
	PGStore       *postgres.Store
	RedisClient   *goredis.Client

	Logger *log.Entry
}

// NewDependencies инициализирует хранилища и внешние клиенты по конфигурации.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{Logger: logger}

	switch cfg.StorageDriver {
	case StoragePostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("init postgres storage: %w", err)
		}
		if cfg.AutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("auto migrate: %w", err)
			}
			logger.Info("миграции схемы применены")
		}
		deps.PGStore = store
		deps.Customers = postgres.NewCustomerDirectory(store)
		deps.Catalog = postgres.NewProductCatalog(store)
		deps.Orders = postgres.NewOrderStore(store)
		deps.Outbox = postgres.NewOutboxRepository(store)
		logger.Info("используется postgres-хранилище")

	case StorageMemory:
		customers := memory.NewCustomerDirectory()
		catalog := memory.NewProductCatalog()
		deps.Customers = customers
		deps.Catalog = catalog
		deps.Orders = memory.NewOrderStore()
		deps.Outbox = memory.NewOutboxRepository()
		if cfg.SeedDemoData {
			seedDemoData(customers, catalog)
			logger.Info("memory-хранилище наполнено демонстрационными данными")
		}
		logger.Info("используется memory-хранилище")

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			deps.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		deps.RedisClient = rdb
		deps.Idem = redisstore.NewIdempotencyStore(rdb)
		logger.WithField("addr", cfg.RedisAddr).Info("idempotency store работает через redis")
	} else {
		deps.Idem = memory.NewIdempotencyStore()
		logger.Info("idempotency store работает в памяти")
	}

	if cfg.KafkaBrokers != "" {
		brokers := strings.Split(cfg.KafkaBrokers, ",")
		producer, err := kafka.NewProducer(brokers)
		if err != nil {
			logger.WithError(err).Warn("kafka producer недоступен, события останутся в outbox")
		} else {
			deps.KafkaProducer = producer
			logger.WithField("brokers", brokers).Info("kafka producer инициализирован")
		}
	}

	return deps, nil
}

// Close останавливает внешние клиенты в обратном порядке инициализации.
func (d *Dependencies) Close() {
	if d.KafkaProducer != nil {
		if err := d.KafkaProducer.Close(); err != nil {
			d.Logger.WithError(err).Warn("ошибка при закрытии kafka producer")
		}
	}
	if d.RedisClient != nil {
		if err := d.RedisClient.Close(); err != nil {
			d.Logger.WithError(err).Warn("ошибка при закрытии redis client")
		}
	}
	if d.PGStore != nil {
		if err := d.PGStore.Close(); err != nil {
			d.Logger.WithError(err).Warn("ошибка при закрытии postgres store")
		}
	}
}

// seedDemoData наполняет memory-хранилище набором данных для ручной
// проверки сервиса.
func seedDemoData(customers interface{ Seed(domain.Customer) }, catalog interface{ Seed(domain.Product) }) {
	customers.Seed(domain.Customer{
		ID:    "c6f9f3f2-0000-4000-8000-000000000001",
		Name:  "Анна Демидова",
		Email: "anna@example.com",
	})
	customers.Seed(domain.Customer{
		ID:    "c6f9f3f2-0000-4000-8000-000000000002",
		Name:  "Пётр Волков",
		Email: "petr@example.com",
	})

	catalog.Seed(domain.Product{
		ID:           "d1e8d4a0-0000-4000-8000-000000000001",
		Name:         "Механическая клавиатура",
		AvailableQty: 25,
		Version:      1,
	})
	catalog.Seed(domain.Product{
		ID:           "d1e8d4a0-0000-4000-8000-000000000002",
		Name:         "Беспроводная мышь",
		AvailableQty: 40,
		Version:      1,
	})
	catalog.Seed(domain.Product{
		ID:           "d1e8d4a0-0000-4000-8000-000000000003",
		Name:         "Монитор 27\"",
		AvailableQty: 5,
		Version:      1,
	})
}
