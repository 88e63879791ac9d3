// Package metrics owns the Prometheus registry of the API server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the custom collectors recorded by middleware and handlers.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	LoginRateLimited prometheus.Counter
	CascadeDeletes   *prometheus.CounterVec
}

// New creates a private registry with Go and process collectors plus the
// runly_* metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runly_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		LoginRateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runly_login_rate_limited_total",
			Help: "Login attempts rejected by the rate limiter",
		}),
		CascadeDeletes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runly_cascade_deletes_total",
				Help: "Committed cascading deletes by kind",
			},
			[]string{"kind"},
		),
	}
	reg.MustRegister(m.RequestsTotal, m.LoginRateLimited, m.CascadeDeletes)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the registry for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
