// Package metrics exposes Prometheus metrics for monitoring cycles.
//
// All metrics use the "dqmon" namespace:
//   - cycles_total{outcome}: ok | issues | load_error | failed
//   - findings_total{kind}
//   - alerts_total{channel, result}: sent | failed
//   - check_duration_seconds{check}, cycle_duration_seconds
//   - last_cycle_issues, last_cycle_timestamp_seconds
package metrics

import (
	"net/http"
	"time"

	"dqmon/domain/quality"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dqmon"

// Cycle outcomes
const (
	OutcomeOK        = "ok"
	OutcomeIssues    = "issues"
	OutcomeLoadError = "load_error"
	OutcomeFailed    = "failed"
)

// Metrics holds the collectors of one registry
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal        *prometheus.CounterVec
	FindingsTotal      *prometheus.CounterVec
	AlertsTotal        *prometheus.CounterVec
	CheckFailuresTotal *prometheus.CounterVec
	CheckDuration      *prometheus.HistogramVec
	CycleDuration      prometheus.Histogram
	LastCycleIssues    prometheus.Gauge
	LastCycleTimestamp prometheus.Gauge
}

// New registers the collectors, plus Go and process collectors, on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CyclesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of monitoring cycles by outcome.",
		}, []string{"outcome"}),
		FindingsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_total",
			Help:      "Total number of findings by kind.",
		}, []string{"kind"}),
		AlertsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Total number of alert deliveries by channel and result.",
		}, []string{"channel", "result"}),
		CheckFailuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "check",
			Name:      "failures_total",
			Help:      "Total number of checks that faulted.",
		}, []string{"check"}),
		CheckDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "check",
			Name:      "duration_seconds",
			Help:      "Duration of individual quality checks in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"check"}),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "End-to-end duration of monitoring cycles in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		LastCycleIssues: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_issues",
			Help:      "Number of findings in the most recent cycle.",
		}),
		LastCycleTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the most recent cycle finished.",
		}),
	}
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveCheck records one check run
func (m *Metrics) ObserveCheck(name string, d time.Duration, _ int, failed bool) {
	m.CheckDuration.WithLabelValues(name).Observe(d.Seconds())
	if failed {
		m.CheckFailuresTotal.WithLabelValues(name).Inc()
	}
}

// ObserveCycle records a finished cycle and its findings
func (m *Metrics) ObserveCycle(report *quality.Report, d time.Duration, failed bool) {
	outcome := OutcomeOK
	switch {
	case failed:
		outcome = OutcomeFailed
	case len(report.ByKind(quality.KindLoadError)) > 0:
		outcome = OutcomeLoadError
	case report.HasIssues():
		outcome = OutcomeIssues
	}
	m.CyclesTotal.WithLabelValues(outcome).Inc()
	m.CycleDuration.Observe(d.Seconds())
	m.LastCycleIssues.Set(float64(report.Len()))
	m.LastCycleTimestamp.SetToCurrentTime()
	for kind, n := range report.CountByKind() {
		m.FindingsTotal.WithLabelValues(string(kind)).Add(float64(n))
	}
}

// ObserveAlert records one delivery attempt sequence
func (m *Metrics) ObserveAlert(channel string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.AlertsTotal.WithLabelValues(channel, result).Inc()
}
