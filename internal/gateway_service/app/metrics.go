package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sendAttemptsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notification_gateway",
			Name:      "send_attempts_total",
			Help:      "Total outbound send attempts by outcome.",
		},
		[]string{"outcome"}, // "success", "session_desync", "rate_limited", "transient", "invalid_recipient", "not_connected"
	)

	sendDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "notification_gateway",
			Name:      "send_duration_seconds",
			Help:      "Duration of pipeline sends including retries.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	dispatchCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notification_gateway",
			Name:      "dispatches_total",
			Help:      "Total notification dispatches by kind and result.",
		},
		[]string{"kind", "result"}, // result: "sent", "failed", "deduplicated", "skipped_no_phone"
	)

	reconnectCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notification_gateway",
			Name:      "reconnects_total",
			Help:      "Session disconnect events by classified reason.",
		},
		[]string{"reason"},
	)

	reminderScanCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notification_gateway",
			Name:      "reminder_scans_total",
			Help:      "Reminder scan cycles by result.",
		},
		[]string{"result"}, // "dispatched", "skipped_window", "empty", "error"
	)

	outboundCacheGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "notification_gateway",
			Name:      "outbound_cache_entries",
			Help:      "Entries currently held by the in-process outbound message cache.",
		},
	)
)
