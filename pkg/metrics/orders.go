package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics tracks order creation, lifecycle transitions and payment
// gateway verification latency.
type OrderMetrics struct {
	created       prometheus.Counter
	transitions   *prometheus.CounterVec
	verifications *prometheus.HistogramVec
}

// NewOrderMetrics registers the order lifecycle metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	created := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders created in PENDING status.",
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order status transitions by source, target and outcome.",
	}, []string{"from", "to", "outcome"})
	verifications := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_verification_duration_seconds",
		Help:    "Latency of payment session verification calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	reg.MustRegister(created, transitions, verifications)
	return &OrderMetrics{
		created:       created,
		transitions:   transitions,
		verifications: verifications,
	}
}

// IncCreated counts a newly persisted order.
func (m *OrderMetrics) IncCreated() {
	if m == nil || m.created == nil {
		return
	}
	m.created.Inc()
}

// ObserveTransition records an attempted transition and whether it was accepted.
func (m *OrderMetrics) ObserveTransition(from, to string, accepted bool) {
	if m == nil || m.transitions == nil {
		return
	}
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to), outcome).Inc()
}

// ObserveVerification records the gateway call duration with its outcome.
func (m *OrderMetrics) ObserveVerification(outcome string, duration time.Duration) {
	if m == nil || m.verifications == nil {
		return
	}
	m.verifications.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}
