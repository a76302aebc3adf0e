package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScanRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progression_scan_runs_total",
			Help: "Total number of progression scan runs by result",
		},
		[]string{"result"}, // success, error, skipped
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "progression_scan_duration_seconds",
			Help: "Duration of a full progression scan in seconds",
		},
	)

	LessonsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progression_lessons_processed_total",
			Help: "Lessons handled by the scan by outcome",
		},
		[]string{"outcome"}, // sent, failed, conflict
	)

	NotificationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "progression_notifications_created_total",
			Help: "Total notification rows created by the scheduler",
		},
	)

	// PendingLessons is the eligible-but-unsent backlog observed at the start
	// of each scan. A value that stays above zero across many scans means
	// lessons are stuck (usually a template an admin has to fix).
	PendingLessons = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "progression_pending_lessons",
			Help: "Eligible lessons awaiting progression notifications",
		},
	)

	TicksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "progression_ticks_skipped_total",
			Help: "Trigger ticks skipped because a scan was still in flight",
		},
	)

	DeliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progression_delivery_attempts_total",
			Help: "Best-effort email/SMS fan-out attempts by channel and result",
		},
		[]string{"channel", "result"},
	)
)
