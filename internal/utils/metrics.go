// Package utils provides utility functions including metrics collection.
package utils

import (
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics
var (
	eventsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teamdesk_events_published_total",
		Help: "Total number of domain events committed to the outbox",
	})

	eventsDispatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teamdesk_events_dispatched_total",
		Help: "Total number of outbox events delivered to subscribers",
	})

	outboxBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "teamdesk_outbox_backlog",
		Help: "Current number of unpublished events in the outbox",
	})

	delegationsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "teamdesk_delegations_active",
		Help: "Current number of active identity delegations",
	})

	dispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "teamdesk_dispatch_duration_seconds",
		Help:    "Duration of outbox dispatch batches in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// activeGoroutines is used by Prometheus for monitoring active goroutines
	//nolint:unused // Used by Prometheus metrics collection
	activeGoroutines = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "teamdesk_goroutines_active",
		Help: "Number of active goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamdesk_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status_code"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "teamdesk_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})
)

// MetricsCollector collects basic application metrics.
type MetricsCollector struct {
	startTime        time.Time
	eventsPublished  int64
	eventsDispatched int64
	outboxBacklog    int64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		startTime: time.Now(),
	}
}

// AddEventsPublished increments the published events counter.
func (m *MetricsCollector) AddEventsPublished(n int) {
	atomic.AddInt64(&m.eventsPublished, int64(n))
	eventsPublishedTotal.Add(float64(n))
}

// AddEventsDispatched increments the dispatched events counter.
func (m *MetricsCollector) AddEventsDispatched(n int) {
	atomic.AddInt64(&m.eventsDispatched, int64(n))
	eventsDispatchedTotal.Add(float64(n))
}

// SetOutboxBacklog sets the current outbox backlog gauge.
func (m *MetricsCollector) SetOutboxBacklog(depth int) {
	atomic.StoreInt64(&m.outboxBacklog, int64(depth))
	outboxBacklog.Set(float64(depth))
}

// SetActiveDelegations sets the active delegations gauge.
func (m *MetricsCollector) SetActiveDelegations(count int) {
	delegationsActive.Set(float64(count))
}

// ObserveDispatchDuration records the duration of a dispatch batch.
func (m *MetricsCollector) ObserveDispatchDuration(d time.Duration) {
	dispatchDuration.Observe(d.Seconds())
}

// RecordHTTPRequest records an HTTP request metric.
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// GetMetrics returns the current metrics as a JSON-serializable struct.
func (m *MetricsCollector) GetMetrics() *Metrics {
	return &Metrics{
		Uptime:           time.Since(m.startTime).String(),
		UptimeSeconds:    int64(time.Since(m.startTime).Seconds()),
		Goroutines:       runtime.NumGoroutine(),
		OutboxBacklog:    atomic.LoadInt64(&m.outboxBacklog),
		EventsPublished:  atomic.LoadInt64(&m.eventsPublished),
		EventsDispatched: atomic.LoadInt64(&m.eventsDispatched),
	}
}

// Metrics represents the application metrics.
type Metrics struct {
	Uptime           string `json:"uptime"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	Goroutines       int    `json:"goroutines"`
	OutboxBacklog    int64  `json:"outbox_backlog"`
	EventsPublished  int64  `json:"events_published"`
	EventsDispatched int64  `json:"events_dispatched"`
}
