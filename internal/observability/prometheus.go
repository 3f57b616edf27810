package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route, method, and status label.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration records request durations by route and method.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	// DriverRequestsTotal counts provider driver calls by provider, operation, and step (submit|poll).
	DriverRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driver_requests_total",
			Help: "Total number of provider driver calls",
		},
		[]string{"provider", "operation", "step", "outcome"},
	)
	// DriverRequestDuration records provider driver call durations.
	DriverRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "driver_request_duration_seconds",
			Help:    "Provider driver call duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider", "operation", "step"},
	)

	// JobsEnqueuedTotal counts jobs enqueued by (provider, operation, queue).
	JobsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of generation jobs enqueued",
		},
		[]string{"provider", "operation", "queue"},
	)
	// JobsProcessing gauges in-flight jobs by queue.
	JobsProcessing = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobs_processing",
			Help: "Number of jobs currently being processed",
		},
		[]string{"queue"},
	)
	// JobsCompletedTotal counts jobs that reached status=complete.
	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Total number of jobs completed",
		},
		[]string{"provider", "operation"},
	)
	// JobsFailedTotal counts jobs that reached status=failed, by canonical error reason.
	JobsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_failed_total",
			Help: "Total number of jobs failed",
		},
		[]string{"provider", "operation", "reason"},
	)
	// JobDuration records the end-to-end submit-to-finalize duration.
	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "End-to-end job duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 900},
		},
		[]string{"provider", "operation"},
	)
	// RateLimiterThrottledTotal counts Submit calls delayed by the per-queue token bucket.
	RateLimiterThrottledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_throttled_total",
			Help: "Total number of driver submissions throttled by the token bucket",
		},
		[]string{"bucket"},
	)
	// CircuitBreakerStatus gauges breaker state (0=closed,1=open,2=half-open) per provider.
	CircuitBreakerStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_status",
			Help: "Circuit breaker status per provider (0=closed,1=open,2=half-open)",
		},
		[]string{"provider"},
	)
)

// InitMetrics registers all collectors with the default Prometheus registry.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(DriverRequestsTotal)
	prometheus.MustRegister(DriverRequestDuration)
	prometheus.MustRegister(JobsEnqueuedTotal)
	prometheus.MustRegister(JobsProcessing)
	prometheus.MustRegister(JobsCompletedTotal)
	prometheus.MustRegister(JobsFailedTotal)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(RateLimiterThrottledTotal)
	prometheus.MustRegister(CircuitBreakerStatus)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// EnqueueJob increments the enqueued jobs counter.
func EnqueueJob(provider, operation, queue string) {
	JobsEnqueuedTotal.WithLabelValues(provider, operation, queue).Inc()
}

// StartProcessingJob increments the processing gauge for a queue.
func StartProcessingJob(queue string) {
	JobsProcessing.WithLabelValues(queue).Inc()
}

// CompleteJob marks a job complete: decrements the processing gauge and
// records the end-to-end duration.
func CompleteJob(queue, provider, operation string, duration time.Duration) {
	JobsProcessing.WithLabelValues(queue).Dec()
	JobsCompletedTotal.WithLabelValues(provider, operation).Inc()
	JobDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// FailJob marks a job failed: decrements the processing gauge and records the reason.
func FailJob(queue, provider, operation, reason string) {
	JobsProcessing.WithLabelValues(queue).Dec()
	JobsFailedTotal.WithLabelValues(provider, operation, reason).Inc()
}

// RecordDriverCall records one driver submit/poll invocation.
func RecordDriverCall(provider, operation, step, outcome string, duration time.Duration) {
	DriverRequestsTotal.WithLabelValues(provider, operation, step, outcome).Inc()
	DriverRequestDuration.WithLabelValues(provider, operation, step).Observe(duration.Seconds())
}

// RecordThrottle records a submission delayed by the per-queue rate limiter.
func RecordThrottle(bucket string) {
	RateLimiterThrottledTotal.WithLabelValues(bucket).Inc()
}

// RecordCircuitBreakerStatus records breaker state transitions.
func RecordCircuitBreakerStatus(provider string, status int) {
	CircuitBreakerStatus.WithLabelValues(provider).Set(float64(status))
}
