// Package metrics exposes Prometheus instruments for the poll cycle.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the cycle, estimate, opportunity and fill instruments on a
// private registry.
type Metrics struct {
	registry *prometheus.Registry

	Cycles             *prometheus.CounterVec
	CycleDuration      prometheus.Histogram
	Estimates          *prometheus.CounterVec
	EstimateConfidence *prometheus.HistogramVec
	Opportunities      *prometheus.CounterVec
	Fills              *prometheus.CounterVec
	StartPrices        prometheus.Counter
}

// New creates and registers all instruments.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polytrader_cycles_total",
				Help: "Poll cycles run, by result",
			},
			[]string{"result"},
		),
		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "polytrader_cycle_duration_seconds",
				Help:    "Wall time of one poll cycle",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			},
		),
		Estimates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polytrader_estimates_total",
				Help: "Fair-value estimates produced, by model and whether the estimate was degraded",
			},
			[]string{"model", "degraded"},
		),
		EstimateConfidence: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "polytrader_estimate_confidence",
				Help:    "Confidence attached to fair-value estimates",
				Buckets: []float64{0, 0.05, 0.1, 0.2, 0.25, 0.3, 0.45, 0.55, 0.75, 1},
			},
			[]string{"model"},
		),
		Opportunities: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polytrader_opportunities_total",
				Help: "Opportunities found, by side",
			},
			[]string{"side"},
		),
		Fills: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polytrader_fills_total",
				Help: "Orders filled, by venue",
			},
			[]string{"venue"},
		),
		StartPrices: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "polytrader_start_prices_recorded_total",
				Help: "Interval start prices captured from the live stream",
			},
		),
	}

	m.registry.MustRegister(
		m.Cycles,
		m.CycleDuration,
		m.Estimates,
		m.EstimateConfidence,
		m.Opportunities,
		m.Fills,
		m.StartPrices,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordCycle counts a finished cycle and observes its duration.
func (m *Metrics) RecordCycle(ok bool, d time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.Cycles.WithLabelValues(result).Inc()
	m.CycleDuration.Observe(d.Seconds())
}

// RecordEstimate counts one estimate. degraded marks estimates that fell
// back to a neutral or low-confidence value.
func (m *Metrics) RecordEstimate(model string, confidence float64, degraded bool) {
	m.Estimates.WithLabelValues(model, strconv.FormatBool(degraded)).Inc()
	m.EstimateConfidence.WithLabelValues(model).Observe(confidence)
}

func (m *Metrics) RecordOpportunity(side string) {
	m.Opportunities.WithLabelValues(side).Inc()
}

func (m *Metrics) RecordFill(venue string) {
	m.Fills.WithLabelValues(venue).Inc()
}

func (m *Metrics) RecordStartPrices(n int) {
	m.StartPrices.Add(float64(n))
}
