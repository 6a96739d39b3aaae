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
			Help: "Number of jobs currently being processed",
		},
		[]string{"task_type"},
	)

	BatchUnitsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_batch_units_total",
			Help: "Fan-out units processed per batch mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_notifications_sent_total",
			Help: "Match notifications emitted on first threshold crossing",
		},
		[]string{"channel"},
	)

	NotificationsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_notifications_suppressed_total",
			Help: "Notifications suppressed because the key already crossed the threshold",
		},
	)

	AIFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_ai_fallbacks_total",
			Help: "Rankings that fell back to the rule score because the AI provider was unavailable",
		},
	)
)
