package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Event store metrics
	StreamsCreated       *prometheus.CounterVec
	EventsAppended       *prometheus.CounterVec
	ConcurrencyConflicts *prometheus.CounterVec

	// Delivery metrics
	Deliveries        *prometheus.CounterVec
	DeliveryDuration  *prometheus.HistogramVec
	PendingDeliveries prometheus.Gauge

	// Command metrics
	Commands *prometheus.CounterVec
}

// New creates all Prometheus metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		StreamsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sagaledger_streams_created_total",
				Help: "Total number of streams created by kind",
			},
			[]string{"kind"},
		),
		EventsAppended: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sagaledger_events_appended_total",
				Help: "Total number of events appended by kind and type",
			},
			[]string{"kind", "event_type"},
		),
		ConcurrencyConflicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sagaledger_concurrency_conflicts_total",
				Help: "Total number of appends rejected for a stale revision",
			},
			[]string{"kind"},
		),

		Deliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sagaledger_deliveries_total",
				Help: "Total event deliveries to subscribers by outcome",
			},
			[]string{"subscriber", "status"},
		),
		DeliveryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sagaledger_delivery_duration_seconds",
				Help:    "Time a subscriber spent handling one event",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"subscriber"},
		),
		PendingDeliveries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sagaledger_pending_deliveries",
			Help: "Notifications scheduled but not yet handled",
		}),

		Commands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sagaledger_commands_total",
				Help: "Total commands handled by outcome",
			},
			[]string{"command", "outcome"},
		),
	}
}

// The methods below are nil-safe so callers can run without metrics.

// StreamCreated records a new stream.
func (m *Metrics) StreamCreated(kind string) {
	if m == nil {
		return
	}
	m.StreamsCreated.WithLabelValues(kind).Inc()
}

// EventAppended records an appended event.
func (m *Metrics) EventAppended(kind, eventType string) {
	if m == nil {
		return
	}
	m.EventsAppended.WithLabelValues(kind, eventType).Inc()
}

// ConcurrencyConflict records a rejected append.
func (m *Metrics) ConcurrencyConflict(kind string) {
	if m == nil {
		return
	}
	m.ConcurrencyConflicts.WithLabelValues(kind).Inc()
}

// DeliveryScheduled records a notification entering a subscriber mailbox.
func (m *Metrics) DeliveryScheduled() {
	if m == nil {
		return
	}
	m.PendingDeliveries.Inc()
}

// DeliveryHandled records the outcome of one subscriber invocation.
func (m *Metrics) DeliveryHandled(subscriber string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.PendingDeliveries.Dec()
	m.Deliveries.WithLabelValues(subscriber, status).Inc()
	m.DeliveryDuration.WithLabelValues(subscriber).Observe(elapsed.Seconds())
}

// DeliveryDropped records notifications discarded when the store closes.
func (m *Metrics) DeliveryDropped(n int) {
	if m == nil {
		return
	}
	m.PendingDeliveries.Sub(float64(n))
}

// RecordCommand records the outcome of a controller command.
func (m *Metrics) RecordCommand(command, outcome string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(command, outcome).Inc()
}
