package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "backoffice_login_total",
			Help: "Total number of login attempts",
		},
	)

	SignupCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "backoffice_agency_signup_total",
			Help: "Total number of agency signups",
		},
	)

	// AuthErrorCounter tracks authentication and authorization failures
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // "invalid_token", "missing_token", "role_denied", etc.
	)

	// ScopeDenialCounter counts requests that resolved to an empty branch scope
	ScopeDenialCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "backoffice_scope_denials_total",
			Help: "Total number of requests denied by tenant scoping",
		},
	)

	// SubscriptionTransitionCounter tracks subscription state machine transitions
	SubscriptionTransitionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_subscription_transitions_total",
			Help: "Total number of subscription status transitions",
		},
		[]string{"transition"}, // "activate", "expire", "payment_declared", "free_mode_coerce"
	)

	// SubscriptionBlockCounter counts requests blocked by the billing gate
	SubscriptionBlockCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_subscription_blocks_total",
			Help: "Total number of requests blocked by the subscription gate",
		},
		[]string{"outcome"}, // "redirect_billing", "forced_logout"
	)

	// EmailCounter tracks outgoing notification emails by result
	EmailCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_emails_total",
			Help: "Total number of notification emails by result",
		},
		[]string{"status"}, // "sent", "failed"
	)

	// HTTPRequestCounter counts HTTP requests by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)
)

// Histogram metrics
var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backoffice_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backoffice_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "query", "insert", "update", "delete"
	)
)

// InitMetrics registers all metrics with the default registry
func InitMetrics() {
	prometheus.MustRegister(
		LoginCounter,
		SignupCounter,
		AuthErrorCounter,
		ScopeDenialCounter,
		SubscriptionTransitionCounter,
		SubscriptionBlockCounter,
		EmailCounter,
		HTTPRequestCounter,
		RequestDuration,
	)
	prometheus.MustRegister(DBOperationDuration)
}

// RecordAuthError increments the auth error counter for the given type
func RecordAuthError(errorType string) {
	AuthErrorCounter.WithLabelValues(errorType).Inc()
}

// RecordTransition increments the subscription transition counter
func RecordTransition(transition string) {
	SubscriptionTransitionCounter.WithLabelValues(transition).Inc()
}

// RecordEmail increments the email counter for the given result
func RecordEmail(status string) {
	EmailCounter.WithLabelValues(status).Inc()
}

// TrackDBOperation returns a function that records the duration of a database
// operation when called. Use with defer:
//
//	defer prometheus.TrackDBOperation("query")(time.Now())
func TrackDBOperation(operation string) func(time.Time) {
	return func(start time.Time) {
		DBOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// MetricsMiddleware creates an Echo middleware that records HTTP request metrics
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			method := c.Request().Method
			path := c.Path()
			statusStr := strconv.Itoa(status)

			HTTPRequestCounter.WithLabelValues(path, method, statusStr).Inc()
			RequestDuration.WithLabelValues(path, method, statusStr).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// GetPrometheusHandler returns an HTTP handler for exposing Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}
