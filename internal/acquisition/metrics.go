package acquisition

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricAcquisitions     = "acquisitions_total"
	MetricCellsAcquired    = "acquisition_cells_acquired_total"
	MetricCellsUnavailable = "acquisition_cells_unavailable_total"
	MetricDuration         = "acquisition_duration_seconds"
)

// Acquisition outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeInvalid    = "invalid_request"
	OutcomeDuplicate  = "duplicate_signature"
	OutcomeUnverified = "verification_failed"
	OutcomeDependency = "dependency_error"
	OutcomeInternal   = "internal_error"
)

// Metrics contains Prometheus metrics for acquisitions.
type Metrics struct {
	acquisitions     *prometheus.CounterVec
	cellsAcquired    prometheus.Counter
	cellsUnavailable prometheus.Counter
	duration         prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricAcquisitions,
			Help: "Total number of acquisition requests by outcome",
		}, []string{"outcome"}),
		cellsAcquired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCellsAcquired,
			Help: "Total number of cells acquired",
		}),
		cellsUnavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCellsUnavailable,
			Help: "Total number of paid cells that were already owned",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricDuration,
			Help:    "Histogram of acquisition duration in seconds, including payment verification",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.acquisitions,
		m.cellsAcquired,
		m.cellsUnavailable,
		m.duration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) observe(outcome string, seconds float64, report *Report) {
	if m == nil {
		return
	}
	m.acquisitions.WithLabelValues(outcome).Inc()
	m.duration.Observe(seconds)
	if report != nil {
		m.cellsAcquired.Add(float64(len(report.Acquired)))
		m.cellsUnavailable.Add(float64(len(report.Unavailable)))
	}
}
