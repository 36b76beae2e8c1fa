// Package monitoring provides Prometheus metrics for the web frontend
// service.
package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	logger *zap.Logger

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Backend client metrics
	backendRequestsTotal   *prometheus.CounterVec
	backendRequestDuration *prometheus.HistogramVec
	tokenRefreshTotal      *prometheus.CounterVec

	// Browse pipeline metrics
	recipeFetchTotal *prometheus.CounterVec
	likeToggleTotal  *prometheus.CounterVec
}

// NewMetricsCollector creates a new metrics collector registered on its own
// registry so tests can construct collectors freely.
func NewMetricsCollector(logger *zap.Logger) *MetricsCollector {
	m := &MetricsCollector{
		logger: logger,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests served",
			},
			[]string{"method", "path", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		backendRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_requests_total",
				Help: "Total number of requests sent to the recipe API",
			},
			[]string{"endpoint", "status_code"},
		),
		backendRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_request_duration_seconds",
				Help:    "Recipe API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		tokenRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_refresh_total",
				Help: "Access token refresh attempts by outcome",
			},
			[]string{"outcome"},
		),
		recipeFetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipe_fetch_total",
				Help: "Recipe list fetches by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),
		likeToggleTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "like_toggle_total",
				Help: "Like toggles by outcome",
			},
			[]string{"outcome"},
		),
	}
	return m
}

// Register registers all collectors on the given registerer.
func (m *MetricsCollector) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.backendRequestsTotal,
		m.backendRequestDuration,
		m.tokenRefreshTotal,
		m.recipeFetchTotal,
		m.likeToggleTotal,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordHTTPRequest records a served HTTP request.
func (m *MetricsCollector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordBackendRequest records an outbound request to the recipe API.
func (m *MetricsCollector) RecordBackendRequest(endpoint string, status int, duration time.Duration) {
	m.backendRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.backendRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordTokenRefresh records a refresh attempt outcome ("success" or
// "failure").
func (m *MetricsCollector) RecordTokenRefresh(outcome string) {
	m.tokenRefreshTotal.WithLabelValues(outcome).Inc()
}

// RecordRecipeFetch records a listing fetch. Trigger is "initial", "filter"
// or "search"; outcome is "success" or "failure".
func (m *MetricsCollector) RecordRecipeFetch(trigger, outcome string) {
	m.recipeFetchTotal.WithLabelValues(trigger, outcome).Inc()
}

// RecordLikeToggle records a like toggle outcome.
func (m *MetricsCollector) RecordLikeToggle(outcome string) {
	m.likeToggleTotal.WithLabelValues(outcome).Inc()
}
