package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BillingMetrics tracks the invoice state machine and the notification outbox.
type BillingMetrics struct {
	transitions        *prometheus.CounterVec
	conflicts          *prometheus.CounterVec
	outboxDispatch     *prometheus.CounterVec
	outboxDispatchTime *prometheus.HistogramVec
	outboxBacklog      prometheus.Gauge
	handlerDuration    *prometheus.HistogramVec
	handlerErrors      *prometheus.CounterVec
}

var (
	billingMetricsOnce sync.Once
	billingMetrics     *BillingMetrics
)

// Billing returns the singleton billing metrics registry.
func Billing() *BillingMetrics {
	return BillingWithConfig(Config{})
}

// BillingWithConfig returns the singleton billing metrics registry using config labels.
func BillingWithConfig(cfg Config) *BillingMetrics {
	billingMetricsOnce.Do(func() {
		billingMetrics = newBillingMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return billingMetrics
}

// ResetBillingMetricsForTest resets the billing metrics singleton for tests.
func ResetBillingMetricsForTest() {
	billingMetricsOnce = sync.Once{}
	billingMetrics = nil
}

func newBillingMetrics(registerer prometheus.Registerer, cfg Config) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	labels := constLabels(cfg)

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "schoolride_invoice_transition_total",
		Help:        "Tuition invoice status transitions.",
		ConstLabels: labels,
	}, []string{"from", "to"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "schoolride_invoice_conflict_total",
		Help:        "Optimistic version conflicts on invoice writes by outcome.",
		ConstLabels: labels,
	}, []string{"outcome"})
	outboxDispatch := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "schoolride_outbox_dispatch_total",
		Help:        "Outbox notifications dispatched by status.",
		ConstLabels: labels,
	}, []string{"status"})
	outboxDispatchTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "schoolride_outbox_dispatch_duration_seconds",
		Help:        "Dispatcher batch durations.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: labels,
	}, []string{"status"})
	outboxBacklog := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "schoolride_outbox_backlog",
		Help:        "Notifications waiting in the outbox after the last batch.",
		ConstLabels: labels,
	})
	handlerDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "schoolride_notification_handler_duration_seconds",
		Help:        "Notification handler durations by kind.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: labels,
	}, []string{"kind", "status"})
	handlerErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "schoolride_notification_handler_errors_total",
		Help:        "Notification handler errors by kind.",
		ConstLabels: labels,
	}, []string{"kind"})

	registerer.MustRegister(
		transitions,
		conflicts,
		outboxDispatch,
		outboxDispatchTime,
		outboxBacklog,
		handlerDuration,
		handlerErrors,
	)

	return &BillingMetrics{
		transitions:        transitions,
		conflicts:          conflicts,
		outboxDispatch:     outboxDispatch,
		outboxDispatchTime: outboxDispatchTime,
		outboxBacklog:      outboxBacklog,
		handlerDuration:    handlerDuration,
		handlerErrors:      handlerErrors,
	}
}

// IncTransition counts an invoice status change.
func (m *BillingMetrics) IncTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(sanitizeLabel(from), sanitizeLabel(to)).Inc()
}

// IncConflict counts a version conflict; outcome is "retried" or "surfaced".
func (m *BillingMetrics) IncConflict(outcome string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(sanitizeLabel(outcome)).Inc()
}

// RecordOutboxBatch registers dispatch batch metrics.
func (m *BillingMetrics) RecordOutboxBatch(status string, count int, duration time.Duration) {
	if m == nil {
		return
	}
	if count > 0 {
		m.outboxDispatch.WithLabelValues(status).Add(float64(count))
	}
	m.outboxDispatchTime.WithLabelValues(status).Observe(duration.Seconds())
}

// SetOutboxBacklog updates the backlog gauge.
func (m *BillingMetrics) SetOutboxBacklog(value float64) {
	if m == nil {
		return
	}
	m.outboxBacklog.Set(value)
}

// RecordHandler observes notification handler invocations.
func (m *BillingMetrics) RecordHandler(kind, status string, duration time.Duration) {
	if m == nil {
		return
	}
	kindLabel := sanitizeLabel(kind)
	m.handlerDuration.WithLabelValues(kindLabel, status).Observe(duration.Seconds())
	if status != "success" {
		m.handlerErrors.WithLabelValues(kindLabel).Inc()
	}
}

func sanitizeLabel(val string) string {
	if val == "" {
		return "unknown"
	}
	return val
}
