package search

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricReconciliations   = "iqr_session_reconciliations_total"
	MetricConsistencyFaults = "iqr_consistency_faults_total"
	MetricDegradedPages     = "iqr_degraded_pages_total"
)

// Reconciliation outcomes.
const (
	OutcomeLive      = "live"
	OutcomeRecreated = "recreated"
	OutcomeReplayed  = "replayed"
	OutcomeFailed    = "failed"
)

// Metrics contains Prometheus metrics for the search service.
// All operations are thread-safe.
type Metrics struct {
	reconciliations   *prometheus.CounterVec
	consistencyFaults prometheus.Counter
	degradedPages     *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		reconciliations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricReconciliations,
				Help: "Total number of engine session reconciliations by outcome",
			},
			[]string{"outcome"},
		),
		consistencyFaults: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricConsistencyFaults,
				Help: "Total number of engine/index consistency faults (documents dropped from result pages)",
			},
		),
		degradedPages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricDegradedPages,
				Help: "Total number of empty result pages served because a backend was unavailable",
			},
			[]string{"backend"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.reconciliations,
		m.consistencyFaults,
		m.degradedPages,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
