package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry    *prometheus.Registry
	renders     *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	dropped     prometheus.Counter
	rateLimited prometheus.Counter
}

// newMetrics builds a private registry so several servers (tests) can
// coexist in one process.
func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	m := &metrics{
		registry: reg,
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bodygraph",
			Name:      "renders_total",
			Help:      "Render requests by output format and cache outcome.",
		}, []string{"format", "cache"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bodygraph",
			Name:      "render_duration_seconds",
			Help:      "Time spent resolving, composing and encoding a chart.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"format"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bodygraph",
			Name:      "dropped_activations_total",
			Help:      "Activation entries dropped as malformed.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bodygraph",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-IP rate limiter.",
		}),
	}
	reg.MustRegister(
		m.renders, m.duration, m.dropped, m.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
