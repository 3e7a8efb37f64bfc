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

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Notification rows persisted, one per recipient",
		},
		[]string{"category"},
	)

	NotificationDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_deliveries_total",
			Help: "Channel dispatch outcomes",
		},
		[]string{"channel", "status"},
	)

	NotificationSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_send_duration_seconds",
			Help:    "Duration of a fan-out call across all its recipients",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"operation"},
	)

	NotificationSendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_send_failures_total",
			Help: "Send calls that returned an error to the caller",
		},
		[]string{"operation", "error_code"},
	)

	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_realtime_connections",
			Help: "Open websocket connections on this instance",
		},
	)
)
