package metrics

import "github.com/prometheus/client_golang/prometheus"

// AllocationMetrics counts order placement outcomes.
type AllocationMetrics struct {
	accepted *prometheus.CounterVec
	rejected *prometheus.CounterVec
}

// NewAllocationMetrics registers allocation counters on the provided registerer.
func NewAllocationMetrics(reg prometheus.Registerer) *AllocationMetrics {
	if reg == nil {
		return &AllocationMetrics{}
	}
	accepted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_accepted_total",
		Help: "Orders that reserved capacity and committed.",
	}, []string{"scope"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_rejected_total",
		Help: "Orders rejected before commit, by reason.",
	}, []string{"reason"})
	reg.MustRegister(accepted, rejected)
	return &AllocationMetrics{accepted: accepted, rejected: rejected}
}

// IncAccepted counts a committed order for the given batch scope.
func (m *AllocationMetrics) IncAccepted(scope string) {
	if m == nil || m.accepted == nil {
		return
	}
	m.accepted.WithLabelValues(normalizeLabel(scope)).Inc()
}

// IncRejected counts a rejected order with the given reason label.
func (m *AllocationMetrics) IncRejected(reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}
