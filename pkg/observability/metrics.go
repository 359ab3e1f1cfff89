package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gateway
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Federation metrics
	LoginsTotal              *prometheus.CounterVec
	StateFailuresTotal       *prometheus.CounterVec
	ProvisionedUsersTotal    *prometheus.CounterVec
	SessionsIssuedTotal      prometheus.Counter
	SessionsPurgedTotal      prometheus.Counter
	ProviderExchangeDuration *prometheus.HistogramVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fedgate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fedgate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fedgate_logins_total",
				Help: "Total number of federated login attempts",
			},
			[]string{"provider", "outcome"},
		),
		StateFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fedgate_state_failures_total",
				Help: "Total number of rejected login callbacks by failure kind",
			},
			[]string{"kind"},
		),
		ProvisionedUsersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fedgate_provisioned_users_total",
				Help: "Total number of auto-provisioned federated users",
			},
			[]string{"provider"},
		),
		SessionsIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fedgate_sessions_issued_total",
				Help: "Total number of sessions issued",
			},
		),
		SessionsPurgedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fedgate_sessions_purged_total",
				Help: "Total number of expired sessions purged",
			},
		),
		ProviderExchangeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fedgate_provider_exchange_duration_seconds",
				Help:    "Duration of upstream provider exchanges",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"provider"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fedgate_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fedgate_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginsTotal,
		m.StateFailuresTotal,
		m.ProvisionedUsersTotal,
		m.SessionsIssuedTotal,
		m.SessionsPurgedTotal,
		m.ProviderExchangeDuration,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// RecordLogin increments the login counter for a provider and outcome
func (m *Metrics) RecordLogin(provider, outcome string) {
	m.LoginsTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordStateFailure increments the rejected-callback counter for a kind
func (m *Metrics) RecordStateFailure(kind string) {
	m.StateFailuresTotal.WithLabelValues(kind).Inc()
}

// RecordProvisionedUser increments the auto-provision counter
func (m *Metrics) RecordProvisionedUser(provider string) {
	m.ProvisionedUsersTotal.WithLabelValues(provider).Inc()
}

// RecordSessionIssued increments the issued-session counter
func (m *Metrics) RecordSessionIssued() {
	m.SessionsIssuedTotal.Inc()
}

// RecordSessionsPurged adds purged sessions to the purge counter
func (m *Metrics) RecordSessionsPurged(count int64) {
	m.SessionsPurgedTotal.Add(float64(count))
}

// ObserveProviderExchange records the duration of an upstream exchange
func (m *Metrics) ObserveProviderExchange(provider string, duration time.Duration) {
	m.ProviderExchangeDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape handler for the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}
