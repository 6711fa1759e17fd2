package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PlacementMetrics содержит метрики операции размещения заказа.
type PlacementMetrics struct {
	// Счётчики операций
	placementsStarted   prometheus.Counter
	placementsSucceeded prometheus.Counter
	placementsFailed    *prometheus.CounterVec

	// Гистограмма времени выполнения всей операции
	placementDuration prometheus.Histogram

	// Счётчики commit-фазы
	stockConflictRetries prometheus.Counter
	stockCompensations   prometheus.Counter
	outboxEvents         prometheus.Counter

	// Gauge для активных размещений
	activePlacements prometheus.Gauge
}

// NewPlacementMetrics создаёт новый экземпляр метрик размещения.
func NewPlacementMetrics() *PlacementMetrics {
	return newPlacementMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newPlacementMetricsWithRegisterer(registerer prometheus.Registerer) *PlacementMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &PlacementMetrics{
		placementsStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_placements_started_total",
			Help: "Total number of order placement attempts started",
		}),
		placementsSucceeded: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_placements_succeeded_total",
			Help: "Total number of orders placed successfully",
		}),
		placementsFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "checkout_placements_failed_total",
			Help: "Total number of failed placements grouped by reason",
		}, []string{"reason"}),
		placementDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "checkout_placement_duration_seconds",
			Help:    "Duration of order placement operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stockConflictRetries: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_stock_conflict_retries_total",
			Help: "Total number of placement retries caused by stock version conflicts",
		}),
		stockCompensations: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_stock_compensations_total",
			Help: "Total number of compensating stock restores after order persist failures",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		activePlacements: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "checkout_active_placements",
			Help: "Number of currently running placement operations",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordPlacementStarted увеличивает счётчик начатых размещений.
func (m *PlacementMetrics) RecordPlacementStarted() {
	m.placementsStarted.Inc()
	m.activePlacements.Inc()
}

// RecordPlacementSucceeded увеличивает счётчик успешных размещений.
func (m *PlacementMetrics) RecordPlacementSucceeded() {
	m.placementsSucceeded.Inc()
}

// RecordPlacementFailed увеличивает счётчик неудачных размещений по причине.
func (m *PlacementMetrics) RecordPlacementFailed(reason string) {
	m.placementsFailed.WithLabelValues(reason).Inc()
}

// RecordPlacementFinished уменьшает количество активных размещений.
func (m *PlacementMetrics) RecordPlacementFinished() {
	m.activePlacements.Dec()
}

// RecordPlacementDuration записывает время выполнения размещения.
func (m *PlacementMetrics) RecordPlacementDuration(duration time.Duration) {
	m.placementDuration.Observe(duration.Seconds())
}

// RecordStockConflictRetry увеличивает счётчик retry по конфликту версий.
func (m *PlacementMetrics) RecordStockConflictRetry() {
	m.stockConflictRetries.Inc()
}

// RecordStockCompensation увеличивает счётчик компенсирующих восстановлений остатка.
func (m *PlacementMetrics) RecordStockCompensation() {
	m.stockCompensations.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *PlacementMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
