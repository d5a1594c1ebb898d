// Package metrics exposes Prometheus collectors for harness runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metric descriptors for the harness.
type Metrics struct {
	registry *prometheus.Registry

	commandDuration  *prometheus.HistogramVec
	assertionsTotal  *prometheus.CounterVec
	scenariosTotal   *prometheus.CounterVec
	scenarioDuration prometheus.Histogram
	lastRunFailures  prometheus.Gauge
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "edtest_command_duration_seconds",
			Help:    "Round-trip time of commands sent to the game server.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"backend", "outcome"}),
		assertionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edtest_assertions_total",
			Help: "Assertion verdicts by kind and outcome.",
		}, []string{"kind", "outcome"}),
		scenariosTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edtest_scenarios_total",
			Help: "Finished scenarios by status.",
		}, []string{"status"}),
		scenarioDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "edtest_scenario_duration_seconds",
			Help:    "Wall time of each scenario including setup and teardown.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		lastRunFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edtest_last_run_failures",
			Help: "Failed or errored scenarios in the most recent run.",
		}),
	}
	m.registry.MustRegister(
		m.commandDuration,
		m.assertionsTotal,
		m.scenariosTotal,
		m.scenarioDuration,
		m.lastRunFailures,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// ObserveCommand records one transport round trip.
func (m *Metrics) ObserveCommand(backend string, took time.Duration, err error) {
	m.commandDuration.WithLabelValues(backend, outcome(err == nil)).Observe(took.Seconds())
}

// ObserveAssertion records one assertion verdict.
func (m *Metrics) ObserveAssertion(kind string, passed bool) {
	o := "fail"
	if passed {
		o = "pass"
	}
	m.assertionsTotal.WithLabelValues(kind, o).Inc()
}

// ObserveScenario records one finished scenario.
func (m *Metrics) ObserveScenario(status string, took time.Duration) {
	m.scenariosTotal.WithLabelValues(status).Inc()
	m.scenarioDuration.Observe(took.Seconds())
}

// SetLastRunFailures records how many scenarios did not pass.
func (m *Metrics) SetLastRunFailures(n int) {
	m.lastRunFailures.Set(float64(n))
}
