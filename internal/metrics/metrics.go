// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

// Package metrics provides Prometheus instrumentation for the interaction
// pipeline: event capture, queue delivery, daily aggregation, and the
// watermark worker. Metrics are registered via promauto and served through
// the /metrics endpoint on the API surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event capture metrics
	InteractionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interactions_recorded_total",
			Help: "Total number of interaction events appended to the event store",
		},
		[]string{"kind"},
	)

	InteractionsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interactions_dropped_total",
			Help: "Interaction events dropped without surfacing an error to the caller",
		},
		[]string{"reason"}, // "unknown_subject", "store_error", "invalid_kind"
	)

	SessionTokensMinted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_tokens_minted_total",
			Help: "Anonymous session tokens minted at record time",
		},
	)

	// Queue metrics
	QueuePublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_publishes_total",
			Help: "Total messages published to the job queue",
		},
		[]string{"topic"},
	)

	QueuePublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_publish_errors_total",
			Help: "Failed publishes to the job queue",
		},
		[]string{"topic"},
	)

	QueuePoisonedMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_poisoned_messages_total",
			Help: "Messages routed to the poison queue after retry exhaustion",
		},
		[]string{"handler"},
	)

	// Aggregation metrics
	AggregationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregation_runs_total",
			Help: "Daily aggregation runs by outcome",
		},
		[]string{"outcome"}, // "success", "error"
	)

	AggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aggregation_run_duration_seconds",
			Help:    "Duration of a single-day aggregation run",
			Buckets: prometheus.DefBuckets,
		},
	)

	AggregationStatsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregation_stats_upserted_total",
			Help: "Daily stat rows written by the aggregation engine",
		},
		[]string{"result"}, // "created", "updated"
	)

	// Watermark worker metrics
	WatermarkAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watermark_attempts_total",
			Help: "Watermark processing attempts, including redeliveries",
		},
	)

	WatermarkSkips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watermark_skips_total",
			Help: "Watermark jobs short-circuited without processing",
		},
		[]string{"reason"}, // "missing_record", "already_watermarked", "remote_storage", "missing_asset"
	)

	WatermarkProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watermark_processed_total",
			Help: "Images successfully watermarked and persisted",
		},
	)

	WatermarkTerminalFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watermark_terminal_failures_total",
			Help: "Watermark jobs that exhausted their retry budget",
		},
	)

	WatermarkDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "watermark_duration_seconds",
			Help:    "Duration of watermark compositing and persistence",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	// Store metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// Notification outbox metrics
	NotificationsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_written_total",
			Help: "Notification rows written by the outbox consumer",
		},
		[]string{"event_type"},
	)

	NotificationsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_deduplicated_total",
			Help: "Domain events skipped because a notification already existed",
		},
	)
)

// ObserveDBQuery records the duration of a store operation and its error
// outcome in one call.
func ObserveDBQuery(operation, table string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}
