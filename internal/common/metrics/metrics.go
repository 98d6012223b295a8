// internal/common/metrics/metrics.go
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

	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_classifications_total",
			Help: "Queries classified, by intent, complexity and method",
		},
		[]string{"intent", "complexity", "method"},
	)

	SpecialistCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_specialist_calls_total",
			Help: "Specialist invocations by outcome (primary, fallback, timeout, error)",
		},
		[]string{"specialist", "outcome"},
	)

	SpecialistDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supervisor_specialist_duration_seconds",
			Help:    "Wall-clock time of one specialist invocation",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 45, 90},
		},
		[]string{"specialist"},
	)

	SynthesisTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_synthesis_total",
			Help: "Synthesis outcomes (empty, passthrough, llm, concatenated)",
		},
		[]string{"mode"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "supervisor_run_duration_seconds",
			Help:    "End-to-end supervisor latency",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 45, 90, 120},
		},
	)
)
