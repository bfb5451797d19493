package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsCreated counts persisted notifications by type and priority.
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifyd_notifications_created_total",
			Help: "Total number of notifications persisted",
		},
		[]string{"type", "priority"},
	)

	// EligibilityDecisions counts eligibility evaluations by channel and reason.
	EligibilityDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifyd_eligibility_decisions_total",
			Help: "Eligibility decisions by channel and reason",
		},
		[]string{"channel", "reason"},
	)

	// ChannelDispatches records delivery attempts per channel (success|failure|skipped).
	ChannelDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifyd_channel_dispatches_total",
			Help: "Channel dispatch attempts by result",
		},
		[]string{"channel", "result"},
	)

	// BulkRecipients counts bulk-send recipients by outcome (success|failure).
	BulkRecipients = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifyd_bulk_recipients_total",
			Help: "Recipients processed by bulk sends",
		},
		[]string{"result"},
	)

	// RealtimeSubscribers tracks live real-time subscriptions.
	RealtimeSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifyd_realtime_subscribers",
			Help: "Number of live real-time subscriptions",
		},
	)

	// MaintenanceRemoved counts rows removed by maintenance jobs.
	MaintenanceRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifyd_maintenance_removed_total",
			Help: "Rows removed by maintenance jobs",
		},
		[]string{"job"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notifyd_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
