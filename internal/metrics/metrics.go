// Package metrics holds the Prometheus collectors for triage outcomes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry         *prometheus.Registry
	outcomesTotal    *prometheus.CounterVec
	publishErrors    *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	activeStations   prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_outcomes_total",
			Help: "Readings triaged, by risk level, gate status and analysis source.",
		}, []string{"risk_level", "gate", "source"}),
		publishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_publish_errors_total",
			Help: "Outcomes a publisher failed to deliver.",
		}, []string{"publisher"}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "triage_analysis_duration_seconds",
			Help:    "Time spent producing an analysis result, fallback included.",
			Buckets: prometheus.DefBuckets,
		}),
		activeStations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "triage_active_stations",
			Help: "Stations in the in-memory registry after the last housekeeping run.",
		}),
	}

	m.registry.MustRegister(
		m.outcomesTotal,
		m.publishErrors,
		m.analysisDuration,
		m.activeStations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveOutcome(riskLevel, gate, source string) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(riskLevel, gate, source).Inc()
}

func (m *Metrics) PublishFailed(publisher string) {
	if m == nil {
		return
	}
	m.publishErrors.WithLabelValues(publisher).Inc()
}

func (m *Metrics) ObserveAnalysis(d time.Duration) {
	if m == nil {
		return
	}
	m.analysisDuration.Observe(d.Seconds())
}

func (m *Metrics) SetActiveStations(n int) {
	if m == nil {
		return
	}
	m.activeStations.Set(float64(n))
}

// Handler serves this registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
