// Package metrics holds the Prometheus collectors for the accounts service.
// Collectors are registered on an injected registry so tests and multiple
// instances never collide on the global one.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "accounts"

// Operation results.
const (
	ResultSuccess = "success"
	ResultWarning = "warning"
	ResultFailure = "failure"
)

type Metrics struct {
	registry *prometheus.Registry

	OperationsTotal     *prometheus.CounterVec
	DispatchTotal       *prometheus.CounterVec
	RateLimitedTotal    *prometheus.CounterVec
	HashDuration        prometheus.Histogram
	ExpiredSecretsTotal prometheus.Counter
}

// New creates the collectors on a fresh registry that also exposes the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Account lifecycle operations by name and result.",
		}, []string{"operation", "result"}),
		DispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_dispatch_total",
			Help:      "Outbound emails by kind and result.",
		}, []string{"kind", "result"}),
		RateLimitedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate limiter, by route.",
		}, []string{"route"}),
		HashDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "password_hash_duration_seconds",
			Help:      "Time spent hashing or comparing passwords.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1},
		}),
		ExpiredSecretsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_secrets_cleared_total",
			Help:      "Accounts whose expired verification or reset secrets were cleared.",
		}),
	}

	reg.MustRegister(
		m.OperationsTotal,
		m.DispatchTotal,
		m.RateLimitedTotal,
		m.HashDuration,
		m.ExpiredSecretsTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Operation records the outcome of a lifecycle operation. A nil receiver is
// a no-op so services can run without metrics.
func (m *Metrics) Operation(name, result string) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(name, result).Inc()
}

func (m *Metrics) Dispatch(kind string, err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	m.DispatchTotal.WithLabelValues(kind, result).Inc()
}

// ObserveHash records time elapsed since start.
func (m *Metrics) ObserveHash(start time.Time) {
	if m == nil {
		return
	}
	m.HashDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ExpiredSecretsCleared(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.ExpiredSecretsTotal.Add(float64(n))
}

// RateLimitHook returns a reject hook labelled with route.
func (m *Metrics) RateLimitHook(route string) func(*http.Request) {
	return func(*http.Request) {
		if m == nil {
			return
		}
		m.RateLimitedTotal.WithLabelValues(route).Inc()
	}
}
