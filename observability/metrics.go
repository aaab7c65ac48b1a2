package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shelvick/quoracle/action"
)

// Metrics holds the Prometheus collectors fed by a Dispatcher's OnComplete
// hook, one counter/histogram family per action kind rather than per
// individual action instance.
type Metrics struct {
	registry *prometheus.Registry

	dispatched *prometheus.CounterVec
	errors     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics builds a Metrics instance registered against a fresh
// registry, namespaced per namespace (typically config.MetricsConfig.Namespace).
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "actions_total",
			Help:      "Total actions dispatched, by kind.",
		}, []string{"kind"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "action_errors_total",
			Help:      "Total actions that returned an error, by kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "action_duration_seconds",
			Help:      "Per-action dispatch duration in seconds, by kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}

	registry.MustRegister(m.dispatched, m.errors, m.duration)
	return m
}

// OnComplete returns a Dispatcher.OnComplete-compatible closure that records
// one observation per dispatched action.
func (m *Metrics) OnComplete() func(kind action.Kind, dur time.Duration, err error) {
	return func(kind action.Kind, dur time.Duration, err error) {
		m.dispatched.WithLabelValues(string(kind)).Inc()
		m.duration.WithLabelValues(string(kind)).Observe(dur.Seconds())
		if err != nil {
			m.errors.WithLabelValues(string(kind)).Inc()
		}
	}
}

// Handler returns the HTTP handler to serve on the configured metrics
// listen address.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
