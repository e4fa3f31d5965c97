// Package telemetry holds the engine's Prometheus metrics and the opt-in
// OpenTelemetry tracing setup.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cycle results recorded in Metrics.Cycles.
const (
	ResultSuccess   = "success"
	ResultFailure   = "failure"
	ResultStale     = "stale"
	ResultSignedOut = "signed_out"
)

// Metrics groups the resolution engine's collectors.
//
// A nil *Metrics is valid and records nothing, so engine code calls the
// helper methods unconditionally.
type Metrics struct {
	Cycles          *prometheus.CounterVec // result=success|failure|stale|signed_out
	Strategies      *prometheus.CounterVec // strategy=privileged|creator|membership|none
	RetriesTotal    prometheus.Counter
	SafetyTimeouts  prometheus.Counter
	TerminalNotices prometheus.Counter
	CycleDuration   prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered, which keeps tests independent of the
// global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nbhd_resolution_cycles_total",
				Help: "Fetch cycles by outcome",
			},
			[]string{"result"},
		),
		Strategies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nbhd_resolution_strategy_total",
				Help: "Successful resolutions by winning strategy",
			},
			[]string{"strategy"},
		),
		RetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nbhd_resolution_retries_total",
			Help: "Automatic retries scheduled after a failed cycle",
		}),
		SafetyTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nbhd_resolution_safety_timeouts_total",
			Help: "Cycles failed by the safety timeout",
		}),
		TerminalNotices: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nbhd_resolution_terminal_notices_total",
			Help: "Times the retry budget was exhausted",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nbhd_resolution_cycle_seconds",
			Help:    "Duration of completed and failed fetch cycles",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~10s
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Cycles,
			m.Strategies,
			m.RetriesTotal,
			m.SafetyTimeouts,
			m.TerminalNotices,
			m.CycleDuration,
		)
	}
	return m
}

// ObserveCycle counts one cycle outcome. A positive d is recorded in the
// duration histogram.
func (m *Metrics) ObserveCycle(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(result).Inc()
	if d > 0 {
		m.CycleDuration.Observe(d.Seconds())
	}
}

// ObserveStrategy counts the strategy that produced a committed result.
func (m *Metrics) ObserveStrategy(name string) {
	if m == nil {
		return
	}
	m.Strategies.WithLabelValues(name).Inc()
}

// RetryScheduled counts an armed backoff timer.
func (m *Metrics) RetryScheduled() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// SafetyTimeout counts a fired safety timeout.
func (m *Metrics) SafetyTimeout() {
	if m == nil {
		return
	}
	m.SafetyTimeouts.Inc()
}

// TerminalNotice counts an exhausted retry budget.
func (m *Metrics) TerminalNotice() {
	if m == nil {
		return
	}
	m.TerminalNotices.Inc()
}
