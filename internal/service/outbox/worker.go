package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const (
	defaultPollInterval   = 1 * time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
)

var (
	deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_outbox_deliveries_total",
		Help: "Outbox delivery outcomes by result (sent, retried, failed, dlq_failed).",
	}, []string{"result"})
	backlogSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checkout_outbox_backlog_size",
		Help: "Number of pending records in the transactional outbox.",
	})
	backlogAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checkout_outbox_backlog_age_seconds",
		Help: "Age of the oldest pending outbox record in seconds.",
	})
)

// WorkerOptions задаёт параметры outbox worker.
type WorkerOptions struct {
	Logger         *log.Entry
	DLQPublisher   domain.OutboxPublisher
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

// Option настраивает Worker.
type Option func(*WorkerOptions)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *WorkerOptions) { opts.Logger = logger }
}

// WithDLQPublisher задаёт publisher для отправки в DLQ после исчерпания retry.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(opts *WorkerOptions) { opts.DLQPublisher = publisher }
}

// WithPollInterval задаёт частоту опроса outbox.
func WithPollInterval(interval time.Duration) Option {
	return func(opts *WorkerOptions) { opts.PollInterval = interval }
}

// WithBatchSize задаёт размер батча из outbox.
func WithBatchSize(batchSize int) Option {
	return func(opts *WorkerOptions) { opts.BatchSize = batchSize }
}

// WithMaxAttempts задаёт число попыток публикации перед failed/DLQ.
func WithMaxAttempts(maxAttempts int) Option {
	return func(opts *WorkerOptions) { opts.MaxAttempts = maxAttempts }
}

// WithRetryBaseDelay задаёт базовый delay для exponential backoff.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(opts *WorkerOptions) { opts.RetryBaseDelay = delay }
}

// Worker перекладывает pending-записи из outbox в брокер. Ошибка публикации
// ретраится с backoff, после исчерпания попыток запись уходит в DLQ и
// помечается failed. Помеченные записи воркер больше не трогает.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	opts      WorkerOptions
	logger    *log.Entry
}

// NewWorker создаёт outbox worker.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	opts := WorkerOptions{
		PollInterval:   defaultPollInterval,
		BatchSize:      defaultBatchSize,
		MaxAttempts:    defaultMaxAttempts,
		RetryBaseDelay: defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "outbox-worker")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryBaseDelay < 0 {
		opts.RetryBaseDelay = 0
	}

	return &Worker{repo: repo, publisher: publisher, opts: opts, logger: logger}
}

// Run опрашивает outbox до отмены контекста. Первый проход выполняется
// сразу, без ожидания тикера.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker disabled: no repository or publisher")
		return
	}

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	w.ProcessOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce выполняет один цикл: снимает метрики backlog, забирает батч и
// доставляет его сообщение за сообщением.
func (w *Worker) ProcessOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	w.observeBacklog()

	batch, err := w.repo.PullPending(w.opts.BatchSize)
	if err != nil {
		w.logger.WithError(err).Warn("pull pending outbox records failed")
		return
	}

	for _, record := range batch {
		if ctx.Err() != nil {
			return
		}
		w.dispatch(ctx, record)
	}

	if len(batch) > 0 {
		w.observeBacklog()
	}
}

// dispatch доставляет одну запись и фиксирует её итоговый статус.
func (w *Worker) dispatch(ctx context.Context, record domain.OutboxMessage) {
	recordLog := w.logger.WithFields(log.Fields{
		"outbox_id":  record.ID,
		"event_type": record.EventType,
	})

	err := w.deliver(ctx, record)
	if err == nil {
		if markErr := w.repo.MarkSent(record.ID); markErr != nil {
			recordLog.WithError(markErr).Warn("mark sent failed, record will be re-delivered")
		}
		return
	}

	recordLog.WithError(err).Error("delivery exhausted all attempts")
	deliveries.WithLabelValues("failed").Inc()

	if dlqErr := w.routeToDLQ(record, err); dlqErr != nil {
		recordLog.WithError(dlqErr).Warn("DLQ handoff failed")
		deliveries.WithLabelValues("dlq_failed").Inc()
	}
	if markErr := w.repo.MarkFailed(record.ID); markErr != nil {
		recordLog.WithError(markErr).Warn("mark failed did not stick")
	}
}

// deliver публикует запись, повторяя попытки с экспоненциальным backoff.
func (w *Worker) deliver(ctx context.Context, record domain.OutboxMessage) error {
	var lastErr error

	for attempt := 1; ; attempt++ {
		if lastErr = w.publisher.Publish(record); lastErr == nil {
			deliveries.WithLabelValues("sent").Inc()
			return nil
		}
		deliveries.WithLabelValues("retried").Inc()

		if attempt >= w.opts.MaxAttempts {
			return fmt.Errorf("publish failed after %d attempts: %w", attempt, lastErr)
		}

		if delay := w.backoffDelay(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
}

// backoffDelay считает задержку перед повтором: base * 2^(attempt-1).
func (w *Worker) backoffDelay(attempt int) time.Duration {
	base := w.opts.RetryBaseDelay
	if base <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	return base << (attempt - 1)
}

// observeBacklog обновляет гейджи размера и возраста backlog.
func (w *Worker) observeBacklog() {
	stats, err := w.repo.Stats()
	if err != nil {
		w.logger.WithError(err).Warn("outbox stats unavailable")
		return
	}

	backlogSize.Set(float64(stats.PendingCount))

	age := 0.0
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		if since := time.Since(stats.OldestPendingAt).Seconds(); since > 0 {
			age = since
		}
	}
	backlogAge.Set(age)
}

// routeToDLQ заворачивает недоставленную запись вместе с причиной отказа
// и отправляет её в dead letter queue.
func (w *Worker) routeToDLQ(record domain.OutboxMessage, cause error) error {
	if w.opts.DLQPublisher == nil {
		return nil
	}

	envelope, err := json.Marshal(struct {
		OutboxID      string          `json:"outbox_id"`
		AggregateType string          `json:"aggregate_type"`
		AggregateID   string          `json:"aggregate_id"`
		EventType     string          `json:"event_type"`
		Payload       json.RawMessage `json:"payload"`
		FailureReason string          `json:"failure_reason"`
		FailedAt      time.Time       `json:"failed_at"`
	}{
		OutboxID:      record.ID,
		AggregateType: record.AggregateType,
		AggregateID:   record.AggregateID,
		EventType:     record.EventType,
		Payload:       record.Payload,
		FailureReason: cause.Error(),
		FailedAt:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal dlq envelope: %w", err)
	}

	record.Payload = envelope
	if err := w.opts.DLQPublisher.Publish(record); err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}
	return nil
}
