package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce       sync.Once
	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec
	evaluationsTotal   *prometheus.CounterVec
	evaluationSeconds  *prometheus.HistogramVec
	approvalsTotal     *prometheus.CounterVec
	resultCacheTotal   *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sage_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sage_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sage_http_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sage_evaluations_total",
			Help: "Evaluations completed, labelled by status and evaluator type.",
		}, []string{"status", "evaluator"})

		evaluationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sage_evaluation_duration_seconds",
			Help:    "End-to-end duration of single answer evaluations.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"evaluator"})

		approvalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sage_approvals_total",
			Help: "Approval decisions, labelled by outcome.",
		}, []string{"outcome"})

		resultCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sage_result_cache_requests_total",
			Help: "Result cache lookups, labelled hit or miss.",
		}, []string{"outcome"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			evaluationsTotal,
			evaluationSeconds,
			approvalsTotal,
			resultCacheTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// EvaluationsTotal exposes the counter for completed evaluations.
func EvaluationsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationsTotal
}

// EvaluationDuration exposes the histogram for evaluation durations.
func EvaluationDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return evaluationSeconds
}

// ApprovalsTotal exposes the counter for approval decisions.
func ApprovalsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return approvalsTotal
}

// ResultCacheHits exposes the counter for result cache lookups.
func ResultCacheHits() *prometheus.CounterVec {
	RegisterMetrics()
	return resultCacheTotal
}
