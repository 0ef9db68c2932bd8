package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/retrofutureitalia25/retrofuture-search/internal/metrics"
)

func TestRegister(t *testing.T) {
	m := metrics.New()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	m.ObserveSearch("primary", 10*time.Millisecond, nil)
	m.IncIngest(metrics.OutcomeInserted)
	m.ObserveLearned("removal", 2)
	m.AddCandidates(1)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		metrics.MetricSearchRequestsTotal,
		metrics.MetricSearchDuration,
		metrics.MetricIngestListingsTotal,
		metrics.MetricLearningTermsAddedTotal,
		metrics.MetricCandidatesQueuedTotal,
	} {
		require.True(t, names[want], "missing %s", want)
	}

	require.Error(t, metrics.New().Register(reg), "duplicate registration")
}

func TestObserveSearchLabelsFailures(t *testing.T) {
	m := metrics.New()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	m.ObserveSearch("fuzzy", time.Millisecond, nil)
	m.ObserveSearch("fuzzy", time.Millisecond, nil)
	m.ObserveSearch("", time.Millisecond, errors.New("store down"))

	count, err := testutil.GatherAndCount(reg, metrics.MetricSearchRequestsTotal)
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Equal(t, float64(2), counterValue(t, reg, metrics.MetricSearchRequestsTotal, "stage", "fuzzy"))
	require.Equal(t, float64(1), counterValue(t, reg, metrics.MetricSearchRequestsTotal, "stage", metrics.StageError))
}

func TestObserveLearnedAndIngest(t *testing.T) {
	m := metrics.New()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	m.ObserveLearned("click", 0)
	m.ObserveLearned("click", 3)
	m.IncIngest(metrics.OutcomeRejected)
	m.IncIngest(metrics.OutcomeRejected)
	m.AddCandidates(0)

	require.Equal(t, float64(3), counterValue(t, reg, metrics.MetricLearningTermsAddedTotal, "trigger", "click"))
	require.Equal(t, float64(2), counterValue(t, reg, metrics.MetricIngestListingsTotal, "outcome", metrics.OutcomeRejected))
	require.Equal(t, float64(0), counterValue(t, reg, metrics.MetricCandidatesQueuedTotal, "", ""))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if label == "" {
				return m.GetCounter().GetValue()
			}
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
