package testutil

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// PromCounterValue returns the value of the counter name with the given label
// values, gathered from g. Label values follow the sorted label names. It
// fails the test if the family is missing.
func PromCounterValue(t testing.TB, g prometheus.Gatherer, name string, label ...string) float64 {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		if m := findMetric(t, family.GetMetric(), label); m != nil {
			return m.GetCounter().GetValue()
		}
		return 0
	}
	require.Failf(t, "metric not found", "no metric family %q", name)
	return 0
}

// PromHistogramCount returns the sample count of the histogram name.
func PromHistogramCount(t testing.TB, g prometheus.Gatherer, name string, label ...string) uint64 {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		if m := findMetric(t, family.GetMetric(), label); m != nil {
			return m.GetHistogram().GetSampleCount()
		}
		return 0
	}
	require.Failf(t, "metric not found", "no metric family %q", name)
	return 0
}

func findMetric(t testing.TB, ms []*dto.Metric, label []string) *dto.Metric {
	t.Helper()
metricsLoop:
	for _, m := range ms {
		require.Equal(t, len(label), len(m.GetLabel()))
		for i, lv := range label {
			if lv != m.GetLabel()[i].GetValue() {
				continue metricsLoop
			}
		}
		return m
	}
	return nil
}
