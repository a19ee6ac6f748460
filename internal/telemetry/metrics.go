package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики планировщика и воркеров.
// Экспортируются каждым сервисом на /metrics.
var (
	// SweepTicks — количество выполненных тиков планировщика.
	SweepTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sellerdesk_sweep_ticks_total",
		Help: "Number of scheduler sweep ticks executed.",
	})

	// SchedulesDispatched — поставленные в очередь расписания по типу.
	SchedulesDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sellerdesk_schedules_dispatched_total",
		Help: "Number of schedules dispatched to the job queue.",
	}, []string{"job_type"})

	// SchedulesSkipped — пропуски по причинам (no_handler, lock_held, ...).
	SchedulesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sellerdesk_schedules_skipped_total",
		Help: "Number of schedule dispatches skipped, by reason.",
	}, []string{"reason"})

	// JobRuns — завершённые запуски по типу и статусу.
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sellerdesk_job_runs_total",
		Help: "Number of finished job runs, by type and status.",
	}, []string{"job_type", "status"})

	// JobDuration — длительность выполнения задач.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sellerdesk_job_duration_seconds",
		Help:    "Job execution duration.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"job_type"})

	// RetryRequeued — перевзведённые Retry Sweep'ом элементы.
	RetryRequeued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sellerdesk_retry_requeued_total",
		Help: "Number of work items re-enqueued by the retry sweep.",
	}, []string{"job_type"})

	// NotificationsDelivered — доставленные уведомления по каналам.
	NotificationsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sellerdesk_notifications_delivered_total",
		Help: "Number of notifications delivered, by channel.",
	}, []string{"channel"})

	// NotificationsDuplicate — отсечённые леджером дубликаты.
	NotificationsDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sellerdesk_notifications_duplicate_total",
		Help: "Number of duplicate notification deliveries suppressed by the ledger.",
	}, []string{"channel"})
)
