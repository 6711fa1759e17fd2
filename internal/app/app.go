package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/health"
	"github.com/vladislavdragonenkov/checkout/internal/messaging/kafka"
	checkouthttp "github.com/vladislavdragonenkov/checkout/internal/service/http"
	"github.com/vladislavdragonenkov/checkout/internal/service/outbox"
	"github.com/vladislavdragonenkov/checkout/internal/service/placement"
	"github.com/vladislavdragonenkov/checkout/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run собирает зависимости и держит сервис до отмены контекста.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	placer := placement.NewPlacer(deps.Customers, deps.Catalog, deps.Orders, deps.Outbox, logger)

	healthHandler := health.NewHandler(version.GetVersion())
	if deps.PGStore != nil {
		healthHandler.Register("postgres", health.PingCheck(deps.PGStore.Ping))
	}
	if deps.RedisClient != nil {
		rdb := deps.RedisClient
		healthHandler.Register("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	healthHandler.Register("outbox", health.BacklogCheck(func() (int, error) {
		stats, err := deps.Outbox.Stats()
		if err != nil {
			return 0, err
		}
		return stats.PendingCount, nil
	}, cfg.OutboxBacklogThreshold))

	// Outbox worker запускается только при настроенном Kafka; без брокера
	// события копятся в outbox и публикуются после его появления.
	workerDone := make(chan struct{})
	if deps.KafkaProducer != nil {
		publisher := kafka.NewOutboxPublisher(deps.KafkaProducer, kafka.TopicOrderEvents)
		dlqPublisher := kafka.NewOutboxPublisher(deps.KafkaProducer, kafka.TopicDeadLetterQueue)
		worker := outbox.NewWorker(deps.Outbox, publisher,
			outbox.WithLogger(logger),
			outbox.WithDLQPublisher(dlqPublisher),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		)
		go func() {
			defer close(workerDone)
			worker.Run(ctx)
		}()
	} else {
		close(workerDone)
		logger.Warn("kafka не настроен, события остаются в outbox")
	}

	orderHandler := checkouthttp.NewOrderHandler(placer, deps.Orders, deps.Idem, logger)
	router := checkouthttp.NewRouter(orderHandler, healthHandler, logger)

	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	metricsSrv := startMetricsServer(cfg.MetricsAddr, logger, healthHandler)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем сервис")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		<-workerDone
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		<-workerDone
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer поднимает отдельный HTTP-сервер для метрик и health.
func startMetricsServer(addr string, logger *log.Entry, healthHandler *health.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", health.Liveness)
	mux.HandleFunc("/readyz", healthHandler.Readiness)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server завершился с ошибкой")
		}
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("остановка HTTP-сервера завершилась с ошибкой")
	}
}
