package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics counts stock movements and rejected adjustments.
type LedgerMetrics struct {
	movements *prometheus.CounterVec
	units     *prometheus.CounterVec
	rejected  *prometheus.CounterVec
}

// NewLedgerMetrics registers the stock ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_movements_total",
		Help: "Stock movements appended to the ledger.",
	}, []string{"kind"})
	units := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_units_moved_total",
		Help: "Units moved through the ledger.",
	}, []string{"kind"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_adjustments_rejected_total",
		Help: "Stock adjustments rejected before mutation.",
	}, []string{"reason"})
	reg.MustRegister(movements, units, rejected)
	return &LedgerMetrics{
		movements: movements,
		units:     units,
		rejected:  rejected,
	}
}

// ObserveMovement records a committed movement of amount units.
func (m *LedgerMetrics) ObserveMovement(kind string, amount int) {
	if m == nil || m.movements == nil {
		return
	}
	label := normalizeLabel(kind)
	m.movements.WithLabelValues(label).Inc()
	m.units.WithLabelValues(label).Add(float64(amount))
}

// IncRejected counts an adjustment refused for the given reason.
func (m *LedgerMetrics) IncRejected(reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
