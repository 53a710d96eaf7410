package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "splatview"

// Metrics holds the server collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	relayResults    *prometheus.CounterVec
	relayDuration   prometheus.Histogram
	usageRejected   prometheus.Counter
	quotaRemaining  prometheus.Gauge
	uploadThrottled prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		relayResults: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "relay_requests_total",
				Help:      "Reconstruction requests by outcome",
			},
			[]string{"outcome"},
		),
		relayDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "relay_duration_seconds",
				Help:      "Duration of successful reconstruction requests",
				Buckets:   []float64{1, 5, 10, 20, 30, 45, 60, 90, 120},
			},
		),
		usageRejected: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "usage_rejected_total",
				Help:      "Requests rejected because the usage limit was reached",
			},
		),
		quotaRemaining: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "usage_remaining",
				Help:      "Remaining reconstruction quota as of the last counted request",
			},
		),
		uploadThrottled: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "upload_throttled_total",
				Help:      "Uploads refused by the per client rate limiter",
			},
		),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) observeRequest(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) observeRelay(outcome string, d time.Duration) {
	m.relayResults.WithLabelValues(outcome).Inc()
	if outcome == outcomeOK {
		m.relayDuration.Observe(d.Seconds())
	}
}
