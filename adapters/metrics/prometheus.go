package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/layer-3/nostrauth/core"
)

// PrometheusRecorder counts authentication outcomes by terminal state
type PrometheusRecorder struct {
	registry *prometheus.Registry
	outcomes *prometheus.CounterVec
}

// NewPrometheusRecorder creates a recorder backed by its own registry, which
// also carries the Go runtime and process collectors
func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nostrauth",
		Name:      "auth_outcomes_total",
		Help:      "Authentication attempts by terminal state.",
	}, []string{"state", "status"})

	reg.MustRegister(
		outcomes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &PrometheusRecorder{registry: reg, outcomes: outcomes}
}

// RecordOutcome increments the counter for state
func (r *PrometheusRecorder) RecordOutcome(state core.State) {
	r.outcomes.WithLabelValues(state.String(), statusClass(state.HTTPStatus())).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}
