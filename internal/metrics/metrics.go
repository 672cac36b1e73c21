// Package metrics holds the Prometheus collectors of the server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "restaurant"

// Metrics is a registry with the HTTP and ordering collectors registered on it.
// A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight   prometheus.Gauge
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	ordersPlaced   prometheus.Counter
	orderValue     prometheus.Histogram
	checkoutFails  *prometheus.CounterVec
	statusChanges  *prometheus.CounterVec
	imagesHandled  *prometheus.CounterVec
	activeClients  prometheus.Gauge
	clientsEvicted prometheus.Counter
}

// New creates the collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "path"}),
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Total number of orders written.",
		}),
		orderValue: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "value",
			Help:      "Order totals.",
			Buckets:   prometheus.ExponentialBuckets(5, 2, 8),
		}),
		checkoutFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "checkout_failures_total",
			Help:      "Checkouts that failed, by step.",
		}, []string{"step"}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "status_changes_total",
			Help:      "Order status changes, by new status.",
		}, []string{"status"}),
		imagesHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "images",
			Name:      "processed_total",
			Help:      "Uploaded images, by result.",
		}, []string{"result"}),
		activeClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "clients",
			Name:      "active",
			Help:      "Browser clients with a live app instance.",
		}),
		clientsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clients",
			Name:      "evicted_total",
			Help:      "App instances closed after being idle.",
		}),
	}

	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.ordersPlaced,
		m.orderValue,
		m.checkoutFails,
		m.statusChanges,
		m.imagesHandled,
		m.activeClients,
		m.clientsEvicted,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request counts and latency by route pattern
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// OrderPlaced records a written order
func (m *Metrics) OrderPlaced(total float64) {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
	m.orderValue.Observe(total)
}

// CheckoutFailed records a checkout that stopped at step
func (m *Metrics) CheckoutFailed(step string) {
	if m == nil {
		return
	}
	m.checkoutFails.WithLabelValues(step).Inc()
}

// StatusChanged records an order moving to status
func (m *Metrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

// ImageProcessed records an upload outcome ("ok", "rejected", "error")
func (m *Metrics) ImageProcessed(result string) {
	if m == nil {
		return
	}
	m.imagesHandled.WithLabelValues(result).Inc()
}

// SetActiveClients records the number of live app instances
func (m *Metrics) SetActiveClients(n int) {
	if m == nil {
		return
	}
	m.activeClients.Set(float64(n))
}

// ClientEvicted records an idle app instance being closed
func (m *Metrics) ClientEvicted() {
	if m == nil {
		return
	}
	m.clientsEvicted.Inc()
}
