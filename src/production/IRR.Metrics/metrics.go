// Package metrics holds the Prometheus collectors shared by the services.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	ReadingsCreated    prometheus.Counter
	ReadingsRejected   prometheus.Counter
	ReadingsDeleted    prometheus.Counter
	TimestampDefaulted prometheus.Counter
	MessagesForwarded  *prometheus.CounterVec
	DashboardRefreshes *prometheus.CounterVec
	DashboardReadings  prometheus.Gauge
}

// New registers every collector on a fresh registry under the given service label.
func New(service string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	constLabels := prometheus.Labels{"service": service}
	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "irr", Name: "http_requests_total", ConstLabels: constLabels,
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "irr", Name: "http_request_duration_seconds", ConstLabels: constLabels,
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ReadingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "irr", Name: "readings_created_total", ConstLabels: constLabels,
			Help: "Readings persisted.",
		}),
		ReadingsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "irr", Name: "readings_rejected_total", ConstLabels: constLabels,
			Help: "Reading payloads that failed validation.",
		}),
		ReadingsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "irr", Name: "readings_deleted_total", ConstLabels: constLabels,
			Help: "Readings deleted.",
		}),
		TimestampDefaulted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "irr", Name: "readings_timestamp_defaulted_total", ConstLabels: constLabels,
			Help: "Readings stored with the receive time because no timestamp converted.",
		}),
		MessagesForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "irr", Name: "mqtt_messages_total", ConstLabels: constLabels,
			Help: "MQTT messages by forwarding outcome.",
		}, []string{"outcome"}),
		DashboardRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "irr", Name: "dashboard_refreshes_total", ConstLabels: constLabels,
			Help: "Dashboard snapshot refreshes by outcome.",
		}, []string{"outcome"}),
		DashboardReadings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "irr", Name: "dashboard_snapshot_readings", ConstLabels: constLabels,
			Help: "Readings in the committed dashboard snapshot.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequests, m.HTTPDuration,
		m.ReadingsCreated, m.ReadingsRejected, m.ReadingsDeleted, m.TimestampDefaulted,
		m.MessagesForwarded, m.DashboardRefreshes, m.DashboardReadings,
	)
	return m
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
