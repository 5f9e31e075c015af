package live

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricClients        = "live_clients"
	MetricEvents         = "live_events_total"
	MetricDroppedClients = "live_dropped_clients_total"
)

// Metrics contains Prometheus metrics for the live feed.
type Metrics struct {
	clients prometheus.Gauge
	events  *prometheus.CounterVec
	dropped prometheus.Counter
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
func NewMetrics() *Metrics {
	return &Metrics{
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricClients,
			Help: "Number of connected live feed clients",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricEvents,
			Help: "Total number of live events broadcast by type",
		}, []string{"type"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricDroppedClients,
			Help: "Total number of clients dropped for falling behind",
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.clients, m.events, m.dropped} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) setClients(n int) {
	if m != nil {
		m.clients.Set(float64(n))
	}
}

func (m *Metrics) observeEvent(eventType string) {
	if m != nil {
		m.events.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) observeDropped() {
	if m != nil {
		m.dropped.Inc()
	}
}
