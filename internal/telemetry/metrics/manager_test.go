package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager(t *testing.T) {
	m, reg := NewTestManagerAndRegistry()
	require.NotNil(t, m)

	m.CounterStepsAdded.Add(50)
	m.CounterSensorSamples.WithLabelValues("baseline").Inc()
	m.CounterSensorSamples.WithLabelValues("delta").Inc()
	m.CounterSensorSamples.WithLabelValues("delta").Inc()
	m.GaugeCurrentSteps.Set(4231)
	m.CounterDraftSubmissions.WithLabelValues("failed").Inc()

	assert.Equal(t, float64(50), testutil.ToFloat64(m.CounterStepsAdded))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CounterSensorSamples.WithLabelValues("delta")))
	assert.Equal(t, float64(4231), testutil.ToFloat64(m.GaugeCurrentSteps))

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily)
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	samples, ok := byName["backend_test_server_sensor_samples"]
	require.True(t, ok)
	assert.Equal(t, dto.MetricType_COUNTER, samples.GetType())
	assert.Len(t, samples.GetMetric(), 2)

	steps, ok := byName["backend_test_server_current_steps"]
	require.True(t, ok)
	assert.Equal(t, dto.MetricType_GAUGE, steps.GetType())
	assert.Equal(t, float64(4231), steps.GetMetric()[0].GetGauge().GetValue())
}

func TestSetupPrometheus(t *testing.T) {
	extra := prometheus.NewCounter(prometheus.CounterOpts{Name: "extra_collector_total"})
	reg := SetupPrometheus(extra)
	extra.Inc()

	count, err := testutil.GatherAndCount(reg, "extra_collector_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
