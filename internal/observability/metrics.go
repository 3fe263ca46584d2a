package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	apiRequestsTotal         *prometheus.CounterVec
	apiLatencySeconds        *prometheus.HistogramVec
	apiErrorsTotal           *prometheus.CounterVec
	evaluationSubmissions    *prometheus.CounterVec
	evaluationDisqualified   prometheus.Counter
	evaluationCorruptRecords *prometheus.CounterVec
	evaluationStoreLatency   *prometheus.HistogramVec
	evaluationStatusLookups  prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used by the evaluation API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluation_api_requests_total",
			Help: "Total number of evaluation API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evaluation_api_latency_seconds",
			Help:    "Latency distribution for evaluation API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluation_api_errors_total",
			Help: "Total number of error responses returned by evaluation endpoints.",
		}, []string{"method", "route", "status"})

		evaluationSubmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluation_submissions_total",
			Help: "Evaluation submissions by outcome (created, updated, rejected, failed).",
		}, []string{"outcome"})

		evaluationDisqualified = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evaluation_disqualified_total",
			Help: "Stored evaluations marked disqualified by a compliance gate.",
		})

		evaluationCorruptRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluation_corrupt_records_total",
			Help: "Stored evaluation records skipped because they could not be decoded.",
		}, []string{"backend"})

		evaluationStoreLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evaluation_store_duration_seconds",
			Help:    "Latency of record store operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend", "operation"})

		evaluationStatusLookups = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evaluation_status_lookups_total",
			Help: "Individual ratee lookups performed by batch status checks.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			evaluationSubmissions,
			evaluationDisqualified,
			evaluationCorruptRecords,
			evaluationStoreLatency,
			evaluationStatusLookups,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// EvaluationSubmissions exposes the submission outcome counter.
func EvaluationSubmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationSubmissions
}

// EvaluationDisqualified exposes the disqualification counter.
func EvaluationDisqualified() prometheus.Counter {
	RegisterMetrics()
	return evaluationDisqualified
}

// EvaluationCorruptRecords exposes the counter of skipped corrupt records.
func EvaluationCorruptRecords() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationCorruptRecords
}

// EvaluationStoreLatency exposes the record store latency histogram.
func EvaluationStoreLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return evaluationStoreLatency
}

// EvaluationStatusLookups exposes the status lookup counter.
func EvaluationStatusLookups() prometheus.Counter {
	RegisterMetrics()
	return evaluationStatusLookups
}
