package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	gradingRequestsTotal  *prometheus.CounterVec
	gradingLatencySeconds *prometheus.HistogramVec
	gradingErrorsTotal    *prometheus.CounterVec
	keywordExtractions    *prometheus.CounterVec
	evaluationsTotal      *prometheus.CounterVec
	batchDurationSeconds  prometheus.Histogram
	progressClients       prometheus.Gauge
	uploadRejected        *prometheus.CounterVec
	submissionsStored     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the grading API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		gradingRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_requests_total",
			Help: "Total number of grading API requests served.",
		}, []string{"method", "route", "status"})

		gradingLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grading_latency_seconds",
			Help:    "Latency distribution for grading API requests.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "route"})

		gradingErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_errors_total",
			Help: "Total number of error responses returned by grading endpoints.",
		}, []string{"method", "route", "status"})

		keywordExtractions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_keyword_extractions_total",
			Help: "Keyword extraction attempts by outcome.",
		}, []string{"outcome"})

		evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_evaluations_total",
			Help: "Submission evaluations by status.",
		}, []string{"status"})

		batchDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grading_batch_duration_seconds",
			Help:    "Wall time of batch evaluation runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		})

		progressClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grading_progress_clients_active",
			Help: "Websocket clients currently following batch progress.",
		})

		uploadRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_upload_rejected_total",
			Help: "Submission uploads rejected by reason.",
		}, []string{"reason"})

		submissionsStored = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_submissions_stored_total",
			Help: "Submissions stored by document format.",
		}, []string{"format"})

		prometheus.MustRegister(
			gradingRequestsTotal,
			gradingLatencySeconds,
			gradingErrorsTotal,
			keywordExtractions,
			evaluationsTotal,
			batchDurationSeconds,
			progressClients,
			uploadRejected,
			submissionsStored,
		)
	})
}

// GradingRequests exposes the counter for grading requests.
func GradingRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingRequestsTotal
}

// GradingLatency exposes the latency histogram for grading requests.
func GradingLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return gradingLatencySeconds
}

// GradingErrors exposes the counter for grading error responses.
func GradingErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingErrorsTotal
}

// KeywordExtractions counts extraction attempts by outcome.
func KeywordExtractions() *prometheus.CounterVec {
	RegisterMetrics()
	return keywordExtractions
}

// Evaluations counts stored evaluation outcomes.
func Evaluations() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationsTotal
}

// BatchDuration observes batch run wall time.
func BatchDuration() prometheus.Histogram {
	RegisterMetrics()
	return batchDurationSeconds
}

// ProgressClientsActive tracks open progress streams.
func ProgressClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return progressClients
}

// UploadRejected counts rejected uploads.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejected
}

// SubmissionsStored counts accepted uploads.
func SubmissionsStored() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsStored
}
