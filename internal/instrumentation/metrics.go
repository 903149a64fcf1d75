package instrumentation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the dedup service.
type Metrics struct {
	MessagesReceived *prometheus.CounterVec
	ItemsAdmitted    *prometheus.CounterVec
	ItemsDuplicate   *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec

	GateLatencyMs prometheus.Histogram
	BulkBatchSize prometheus.Histogram
}

// NewMetrics creates and registers all metrics on reg. Passing nil
// registers on the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dedup_messages_received_total",
			Help: "Total number of inbound messages by kind",
		}, []string{"kind"}),

		ItemsAdmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dedup_items_admitted_total",
			Help: "Total number of observations admitted as new",
		}, []string{"kind"}),

		ItemsDuplicate: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dedup_items_duplicate_total",
			Help: "Total number of observations suppressed as duplicates",
		}, []string{"kind"}),

		// Errors by kind and taxonomy (parse, cache, publish, internal)
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dedup_errors_total",
			Help: "Total number of errors by kind and type",
		}, []string{"kind", "error_type"}),

		GateLatencyMs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dedup_gate_latency_ms",
			Help:    "Time for one admission round trip to the dedup store in milliseconds",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
		}),

		BulkBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dedup_bulk_batch_size",
			Help:    "Number of orders per bulk message",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
	}
}

// RecordReceived increments the inbound message counter.
func (m *Metrics) RecordReceived(kind string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(kind).Inc()
}

// RecordAdmitted increments the admitted counter.
func (m *Metrics) RecordAdmitted(kind string) {
	if m == nil {
		return
	}
	m.ItemsAdmitted.WithLabelValues(kind).Inc()
}

// RecordDuplicate increments the duplicate counter.
func (m *Metrics) RecordDuplicate(kind string) {
	if m == nil {
		return
	}
	m.ItemsDuplicate.WithLabelValues(kind).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(kind, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind, errorType).Inc()
}

// RecordGateLatency records one store round trip.
func (m *Metrics) RecordGateLatency(latencyMs float64) {
	if m == nil {
		return
	}
	m.GateLatencyMs.Observe(latencyMs)
}

// RecordBulkBatch records the size of a published bulk message.
func (m *Metrics) RecordBulkBatch(size int) {
	if m == nil {
		return
	}
	m.BulkBatchSize.Observe(float64(size))
}
