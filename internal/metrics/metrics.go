// Package metrics registers the fare collection metrics:
//
//	#<ns>_collect_runs_total{result}
//	#<ns>_fare_markets_total{outcome}
//	#<ns>_duplicates_total
//	#<ns>_fares_total{stage}
//	#<ns>_collect_duration_seconds
//	#go_* and process_* system metrics
//
// and exposes them through a promhttp handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fareflow/collector"
)

// Metrics holds the collector metrics of one registry.
type Metrics struct {
	registry *prometheus.Registry

	CollectRuns     *prometheus.CounterVec
	FareMarkets     *prometheus.CounterVec
	Duplicates      prometheus.Counter
	Fares           *prometheus.CounterVec
	CollectDuration prometheus.Histogram
}

// New registers the metrics on a fresh registry, so several instances can
// live in one process.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		CollectRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collect_runs_total",
			Help:      "Fare collection runs by result",
		}, []string{"result"}),
		FareMarkets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fare_markets_total",
			Help:      "Fare markets collected by outcome",
		}, []string{"outcome"}),
		Duplicates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_total",
			Help:      "Fare markets filled by copying an equivalent market",
		}),
		Fares: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fares_total",
			Help:      "Fares handled per stage",
		}, []string{"stage"}),
		CollectDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collect_duration_seconds",
			Help:      "Time taken to collect the fares of a transaction",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Observe records a finished collection.
func (m *Metrics) Observe(s *collector.Summary) {
	m.CollectRuns.WithLabelValues("ok").Inc()
	m.FareMarkets.WithLabelValues("priced").Add(float64(s.Priced))
	for code, n := range s.FailCodes {
		m.FareMarkets.WithLabelValues(code).Add(float64(n))
	}
	m.Duplicates.Add(float64(s.Duplicates))
	m.Fares.WithLabelValues("collected").Add(float64(s.Counters.FaresCollected))
	m.Fares.WithLabelValues("released").Add(float64(s.Counters.FaresReleased))
	m.Fares.WithLabelValues("cloned").Add(float64(s.Counters.FaresCloned))
	m.CollectDuration.Observe(s.Duration.Seconds())
}

// ObserveError records a collection ended by an abort or a fault.
func (m *Metrics) ObserveError(err error) {
	result := "fault"
	if collector.IsAborted(err) {
		result = "aborted"
	}
	m.CollectRuns.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests and pushers.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.registry }
