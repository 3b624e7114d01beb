package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Evaluation metrics
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration *prometheus.HistogramVec

	// Snapshot metrics
	SnapshotLoadDuration *prometheus.HistogramVec
	SnapshotErrorsTotal  *prometheus.CounterVec

	// Conversion rate cache metrics
	RateCacheLookups *prometheus.CounterVec

	// External API metrics
	ExternalAPIRequestsTotal *prometheus.CounterVec
	ExternalAPIErrorsTotal   *prometheus.CounterVec
	ExternalAPIDuration      *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryTotal    *prometheus.CounterVec
	DBErrorsTotal   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// defaultBuckets are the default histogram buckets for duration metrics (in seconds)
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// globalMetrics is the global metrics instance
var globalMetrics *Metrics

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	m := &Metrics{
		// Evaluation metrics
		EvaluationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "buying_power",
				Name:      "evaluations_total",
				Help:      "Total number of buying power evaluations by operation and result",
			},
			[]string{"operation", "result"},
		),
		EvaluationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "buying_power",
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of buying power evaluations in seconds, snapshot load included",
				Buckets:   defaultBuckets,
			},
			[]string{"operation"},
		),

		// Snapshot metrics
		SnapshotLoadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "buying_power",
				Subsystem: "snapshot",
				Name:      "load_duration_seconds",
				Help:      "Duration of portfolio snapshot loads in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"source"},
		),
		SnapshotErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "buying_power",
				Subsystem: "snapshot",
				Name:      "errors_total",
				Help:      "Total number of failed portfolio snapshot loads",
			},
			[]string{"source"},
		),

		// Conversion rate cache metrics
		RateCacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "buying_power",
				Subsystem: "rate_cache",
				Name:      "lookups_total",
				Help:      "Total number of conversion rate cache lookups by result",
			},
			[]string{"result"},
		),

		// External API metrics
		ExternalAPIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "buying_power",
				Subsystem: "external_api",
				Name:      "requests_total",
				Help:      "Total number of external API requests",
			},
			[]string{"service", "operation"},
		),
		ExternalAPIErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "buying_power",
				Subsystem: "external_api",
				Name:      "errors_total",
				Help:      "Total number of external API errors",
			},
			[]string{"service", "operation", "error_type"},
		),
		ExternalAPIDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "buying_power",
				Subsystem: "external_api",
				Name:      "duration_seconds",
				Help:      "Duration of external API calls in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"service", "operation"},
		),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "buying_power",
				Subsystem: "database",
				Name:      "query_duration_seconds",
				Help:      "Duration of database queries in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"operation", "table"},
		),
		DBQueryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "buying_power",
				Subsystem: "database",
				Name:      "queries_total",
				Help:      "Total number of database queries",
			},
			[]string{"operation", "table"},
		),
		DBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "buying_power",
				Subsystem: "database",
				Name:      "errors_total",
				Help:      "Total number of database errors",
			},
			[]string{"operation", "table"},
		),

		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "buying_power",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "buying_power",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "buying_power",
				Subsystem: "http",
				Name:      "response_size_bytes",
				Help:      "Size of HTTP responses in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path"},
		),

		// Circuit breaker metrics
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "buying_power",
				Subsystem: "circuit_breaker",
				Name:      "state",
				Help:      "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service"},
		),
		CircuitBreakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "buying_power",
				Subsystem: "circuit_breaker",
				Name:      "trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"service"},
		),
	}

	return m
}

// InitMetrics initializes the global metrics instance
func InitMetrics() *Metrics {
	globalMetrics = NewMetrics(nil)
	return globalMetrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	if globalMetrics == nil {
		return InitMetrics()
	}
	return globalMetrics
}

// RecordEvaluation records a completed evaluation and its duration
func (m *Metrics) RecordEvaluation(operation, result string, duration time.Duration) {
	m.EvaluationsTotal.WithLabelValues(operation, result).Inc()
	m.EvaluationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSnapshotLoad records a snapshot load from source
func (m *Metrics) RecordSnapshotLoad(source string, duration time.Duration) {
	m.SnapshotLoadDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordSnapshotError records a failed snapshot load
func (m *Metrics) RecordSnapshotError(source string) {
	m.SnapshotErrorsTotal.WithLabelValues(source).Inc()
}

// RecordRateCacheLookup records a conversion rate cache hit or miss
func (m *Metrics) RecordRateCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.RateCacheLookups.WithLabelValues(result).Inc()
}

// RecordExternalAPIRequest records an external API request
func (m *Metrics) RecordExternalAPIRequest(service, operation string) {
	m.ExternalAPIRequestsTotal.WithLabelValues(service, operation).Inc()
}

// RecordExternalAPIError records an external API error
func (m *Metrics) RecordExternalAPIError(service, operation, errorType string) {
	m.ExternalAPIErrorsTotal.WithLabelValues(service, operation, errorType).Inc()
}

// RecordExternalAPIDuration records the duration of an external API call
func (m *Metrics) RecordExternalAPIDuration(service, operation string, duration time.Duration) {
	m.ExternalAPIDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordDBQuery records a database query
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration) {
	m.DBQueryTotal.WithLabelValues(operation, table).Inc()
	m.DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordDBError records a database error
func (m *Metrics) RecordDBError(operation, table string) {
	m.DBErrorsTotal.WithLabelValues(operation, table).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, duration time.Duration, responseSize int) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// SetCircuitBreakerState sets the current state of a circuit breaker
func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(service string) {
	m.CircuitBreakerTrips.WithLabelValues(service).Inc()
}

// Timer is a helper for timing operations
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// NewTimer creates a new timer
func (m *Metrics) NewTimer() *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: m,
	}
}

// ObserveEvaluation records the evaluation duration and result
func (t *Timer) ObserveEvaluation(operation, result string) {
	t.metrics.RecordEvaluation(operation, result, time.Since(t.start))
}

// ObserveSnapshot records the snapshot load duration
func (t *Timer) ObserveSnapshot(source string) {
	t.metrics.RecordSnapshotLoad(source, time.Since(t.start))
}

// ObserveExternalAPI records the external API duration
func (t *Timer) ObserveExternalAPI(service, operation string) {
	t.metrics.RecordExternalAPIDuration(service, operation, time.Since(t.start))
}

// ObserveDB records the database query duration
func (t *Timer) ObserveDB(operation, table string) {
	t.metrics.RecordDBQuery(operation, table, time.Since(t.start))
}

// Duration returns the elapsed time
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
