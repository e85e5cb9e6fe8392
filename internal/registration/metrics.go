package registration

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts registration outcomes and credential cleanup failures.
type Metrics struct {
	Registrations        *prometheus.CounterVec
	RegistrationDuration prometheus.Histogram
	CleanupFailures      *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "receivr_registrations_total",
			Help: "Registration attempts by final state and outcome",
		}, []string{"state", "outcome"}),
		RegistrationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "receivr_registration_duration_seconds",
			Help:    "Duration of registration attempts",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		CleanupFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "receivr_credential_cleanup_failures_total",
			Help: "Credential revocations that failed and were handed to an operator",
		}, []string{"reason"}),
	}
}

func (m *Metrics) observeRegistration(state State, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(state.String(), outcome).Inc()
	m.RegistrationDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) incrementCleanupFailure(reason string) {
	if m == nil {
		return
	}
	m.CleanupFailures.WithLabelValues(reason).Inc()
}
