package chain

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricFetchAttempts = "chain_fetch_attempts_total"
	MetricFetchResults  = "chain_fetch_results_total"
	MetricFetchDuration = "chain_fetch_duration_seconds"
)

// Fetch outcome labels.
const (
	ResultFound   = "found"
	ResultFailed  = "failed_onchain"
	ResultAbsent  = "absent"
	ResultInvalid = "invalid_signature"
	ResultError   = "error"
)

// Metrics contains Prometheus metrics for ledger fetches.
type Metrics struct {
	attempts *prometheus.CounterVec
	results  *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricFetchAttempts,
			Help: "Total number of getTransaction calls by per-attempt outcome",
		}, []string{"outcome"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricFetchResults,
			Help: "Total number of transaction fetches by final result",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricFetchDuration,
			Help:    "Histogram of transaction fetch duration in seconds, including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 3, 6, 9, 12, 15},
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.attempts, m.results, m.duration} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) observeAttempt(outcome string) {
	if m != nil {
		m.attempts.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) observeResult(result string, seconds float64) {
	if m != nil {
		m.results.WithLabelValues(result).Inc()
		m.duration.Observe(seconds)
	}
}
