package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors. The corrupt-record
// counter is the operator-facing signal for persistent store corruption,
// since corrupt envelopes are dropped silently from query results.
type Metrics struct {
	CorruptRecords  prometheus.Counter
	SyncPasses      *prometheus.CounterVec
	SubmitsTotal    *prometheus.CounterVec
	QueueDepth      prometheus.Gauge
	PersistFailures prometheus.Counter
}

// New registers the engine collectors on reg and returns them.
// Pass prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CorruptRecords: factory.NewCounter(prometheus.CounterOpts{
			Name: "payment_queue_corrupt_records_total",
			Help: "Number of persisted envelopes dropped due to signature mismatch.",
		}),
		SyncPasses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_queue_sync_passes_total",
			Help: "Number of synchronization passes by outcome.",
		}, []string{"outcome"}),
		SubmitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_queue_submits_total",
			Help: "Number of individual payment submissions by result.",
		}, []string{"result"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "payment_queue_depth",
			Help: "Entries currently pending synchronization.",
		}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "payment_queue_persist_failures_total",
			Help: "Number of failed writes to the durable slot store.",
		}),
	}
}

// NewNop returns metrics backed by a throwaway registry, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
