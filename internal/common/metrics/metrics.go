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

	NotificationsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_processed_total",
			Help: "Notifications that reached a terminal status",
		},
		[]string{"status", "type"},
	)

	NotificationProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_processing_duration_seconds",
			Help:    "End-to-end duration from claim to record update",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"status"},
	)

	DeliveryOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_delivery_outcomes_total",
			Help: "Per-token delivery outcomes by normalized reason",
		},
		[]string{"result", "reason"},
	)

	BatchCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_batch_calls_total",
			Help: "Multicast calls by result",
		},
		[]string{"result"},
	)

	TokensRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_tokens_removed_total",
			Help: "Stored push tokens cleared after an unregistered or invalid report",
		},
		[]string{"source"},
	)

	RecordsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_records_deleted_total",
			Help: "Notification records removed by the retention sweep",
		},
	)

	InFlightNotifications = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifications_in_flight",
			Help: "Notifications currently being delivered",
		},
	)
)
