package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	AzureRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "azure_request_duration_seconds",
			Help:    "Duration of Azure service calls in seconds, polling included",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"service", "operation"},
	)

	AzureRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "azure_request_errors_total",
			Help: "Total number of failed Azure service calls",
		},
		[]string{"service", "operation"},
	)

	ExtractionCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_cache_hits_total",
			Help: "Document extraction cache lookups by outcome",
		},
		[]string{"outcome"},
	)
)
