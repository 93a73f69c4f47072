package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsCreated tracks persisted notifications
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_notification_created_total",
			Help: "Total number of notifications created",
		},
		[]string{"type", "priority"},
	)

	// NotificationsSuppressed tracks notifications deferred by an active focus block
	NotificationsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smart_notification_suppressed_total",
			Help: "Total number of notifications deferred until a focus block ends",
		},
	)

	// Deliveries tracks real-time push attempts
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_notification_deliveries_total",
			Help: "Total number of delivery attempts",
		},
		[]string{"channel", "status"},
	)

	// DeliveryDuration tracks push latency
	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smart_notification_delivery_duration_seconds",
			Help:    "Delivery attempt duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	// DeliveryQueueSize tracks jobs waiting in the dispatcher queue
	DeliveryQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smart_notification_delivery_queue_size",
			Help: "Current number of notifications waiting for dispatch",
		},
	)

	// DeliveryQueueWait tracks how long jobs wait before a worker picks them up
	DeliveryQueueWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smart_notification_delivery_queue_wait_seconds",
			Help:    "Time notifications spend in the dispatcher queue",
			Buckets: prometheus.DefBuckets,
		},
	)

	// DigestsFired tracks scheduled digest firings
	DigestsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_notification_digests_fired_total",
			Help: "Total number of digests fired by the scheduler",
		},
		[]string{"digest_type"},
	)

	// SchedulerCycleDuration tracks the wall time of one scheduling cycle
	SchedulerCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smart_notification_scheduler_cycle_seconds",
			Help:    "Scheduling cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SchedulingUnitFailures tracks organizations or users whose processing failed in a cycle
	SchedulingUnitFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_notification_scheduling_unit_failures_total",
			Help: "Total number of scheduling unit failures",
		},
		[]string{"unit"}, // organization, user
	)

	// RateLimitExceeded tracks rate limit violations
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_notification_rate_limit_exceeded_total",
			Help: "Total number of rate limit exceeded events",
		},
		[]string{"tenant_id"},
	)

	// EventsConsumed tracks platform events handled by the consumer
	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_notification_events_consumed_total",
			Help: "Total number of platform events consumed",
		},
		[]string{"status"}, // processed, rejected, failed
	)

	// RealtimeConnections tracks open websocket connections
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smart_notification_realtime_connections",
			Help: "Number of open in-app websocket connections",
		},
	)
)
