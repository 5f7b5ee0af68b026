// Package metrics exposes client-side Prometheus metrics for fetches,
// mutations and bulk actions. `expensectl watch --metrics-addr` serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"expensectl/internal/bulk"
	"expensectl/internal/mutate"
	"expensectl/internal/scheduler"
)

// Metrics owns its registry so tests and multiple views don't collide on the
// global default one.
type Metrics struct {
	reg *prometheus.Registry

	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	mutations     *prometheus.CounterVec
	bulkBatches   *prometheus.CounterVec
	bulkSkipped   *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expensectl_fetches_total",
				Help: "List fetches by kind and result",
			},
			[]string{"kind", "result"}, // result: ok, error, discarded
		),
		fetchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "expensectl_fetch_duration_seconds",
				Help:    "Duration of list fetches in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"kind"},
		),
		mutations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expensectl_mutations_total",
				Help: "Conditional mutations by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		bulkBatches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expensectl_bulk_batches_total",
				Help: "Bulk actions by action and summary level",
			},
			[]string{"action", "level"},
		),
		bulkSkipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expensectl_bulk_skipped_total",
				Help: "Selected ids skipped because they were not in the row snapshot",
			},
			[]string{"action"},
		),
	}
}

// ObserveFetch matches scheduler.Options.OnFetch.
func (m *Metrics) ObserveFetch(e scheduler.FetchEvent) {
	result := "ok"
	switch {
	case !e.Applied:
		result = "discarded"
	case e.Err != nil:
		result = "error"
	}
	m.fetches.WithLabelValues(e.Kind.String(), result).Inc()
	m.fetchDuration.WithLabelValues(e.Kind.String()).Observe(e.Took.Seconds())
}

// ObserveOutcome matches mutate.WithObserver.
func (m *Metrics) ObserveOutcome(o mutate.Outcome) {
	m.mutations.WithLabelValues(o.Intent.Op.String(), o.Kind.String()).Inc()
}

func (m *Metrics) ObserveBulk(s bulk.Summary) {
	m.bulkBatches.WithLabelValues(string(s.Action), string(s.Level())).Inc()
	if n := len(s.Skipped); n > 0 {
		m.bulkSkipped.WithLabelValues(string(s.Action)).Add(float64(n))
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
