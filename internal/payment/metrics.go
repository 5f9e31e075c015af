package payment

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricVerifications is the name of the verification outcome counter.
const MetricVerifications = "payment_verifications_total"

// Verification outcomes.
const (
	OutcomeValid         = "valid"
	OutcomeNotFound      = "not_found"
	OutcomeFailedOnChain = "failed_onchain"
	OutcomeInvalidSig    = "invalid_signature"
	OutcomePayer         = "payer_mismatch"
	OutcomeUnderpaid     = "underpaid"
	OutcomeError         = "dependency_error"
)

// Metrics contains Prometheus metrics for payment verification.
type Metrics struct {
	verifications *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricVerifications,
			Help: "Total number of payment verifications by outcome",
		}, []string{"outcome"}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	return reg.Register(m.verifications)
}

func (m *Metrics) observe(outcome string) {
	if m != nil {
		m.verifications.WithLabelValues(outcome).Inc()
	}
}

func outcomeFor(reason string) string {
	switch {
	case reason == ReasonNotFound:
		return OutcomeNotFound
	case reason == ReasonFailedOnChain:
		return OutcomeFailedOnChain
	case reason == ReasonInvalidSignature:
		return OutcomeInvalidSig
	case reason == ReasonPayerNotFound:
		return OutcomePayer
	default:
		return OutcomeUnderpaid
	}
}
