package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCycle(ResultSuccess, time.Second)
	m.ObserveStrategy("creator")
	m.RetryScheduled()
	m.SafetyTimeout()
	m.TerminalNotice()
}

func TestMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveCycle(ResultSuccess, 20*time.Millisecond)
	m.ObserveCycle(ResultFailure, 0)
	m.ObserveCycle(ResultSuccess, 0)
	m.ObserveStrategy("membership")
	m.RetryScheduled()
	m.RetryScheduled()
	m.SafetyTimeout()
	m.TerminalNotice()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Cycles.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cycles.WithLabelValues(ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Strategies.WithLabelValues("membership")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RetriesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SafetyTimeouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TerminalNotices))

	count, err := testutil.GatherAndCount(reg, "nbhd_resolution_cycle_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewMetrics_NilRegistry(t *testing.T) {
	// Two unregistered instances must not collide.
	NewMetrics(nil)
	NewMetrics(nil)
}
