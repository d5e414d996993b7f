package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocationMetricsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAllocationMetrics(reg)

	m.IncAccepted("group_buy")
	m.IncAccepted("group_buy")
	m.IncRejected("capacity")

	families, err := reg.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, fam := range families {
		for _, metric := range fam.GetMetric() {
			counts[fam.GetName()+labelValue(metric)] = metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(2), counts["orders_accepted_totalgroup_buy"])
	assert.Equal(t, float64(1), counts["orders_rejected_totalcapacity"])
}

func TestAllocationMetricsNilSafe(t *testing.T) {
	var m *AllocationMetrics
	m.IncAccepted("x")
	m.IncRejected("y")

	m = NewAllocationMetrics(nil)
	m.IncAccepted("x")
}

func labelValue(m *dto.Metric) string {
	for _, label := range m.GetLabel() {
		return label.GetValue()
	}
	return ""
}
