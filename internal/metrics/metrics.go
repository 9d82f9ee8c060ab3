// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

// Package metrics provides Prometheus instrumentation for the frame pipeline:
// frame throughput, analysis job lifecycle, moment detection, fan-out health,
// and storage latency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Frame pipeline metrics
	FramesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framesight_frames_processed_total",
			Help: "Total number of frames handled by the pipeline",
		},
		[]string{"source_id"},
	)

	FramePanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "framesight_frame_panics_total",
			Help: "Total number of panics recovered in the per-frame entry point",
		},
	)

	PolicyRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framesight_policy_runs_total",
			Help: "Total number of analysis policy executions",
		},
		[]string{"policy"},
	)

	// Inference engine job metrics
	JobsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framesight_engine_jobs_dispatched_total",
			Help: "Total number of jobs sent to the inference engine",
		},
		[]string{"worker_type"},
	)

	JobsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "framesight_engine_jobs_pending",
			Help: "Current number of jobs awaiting an engine reply",
		},
	)

	JobsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "framesight_engine_jobs_expired_total",
			Help: "Total number of pending jobs expired by the registry sweep",
		},
	)

	RepliesUnmatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "framesight_engine_replies_unmatched_total",
			Help: "Total number of engine replies with no pending job (late or duplicate)",
		},
	)

	StaleSourceReplies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "framesight_stale_source_replies_total",
			Help: "Total number of motion replies dropped because the source stream had ended",
		},
	)

	// Moment detection metrics
	MomentsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framesight_moments_detected_total",
			Help: "Total number of qualified moments by type",
		},
		[]string{"type"},
	)

	MomentPersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "framesight_moment_persist_failures_total",
			Help: "Total number of qualified moments dropped because the insert failed",
		},
	)

	SummariesFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "framesight_moment_summaries_failed_total",
			Help: "Total number of moments left without title/description after retry exhaustion",
		},
	)

	// Fan-out metrics
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "framesight_websocket_clients",
			Help: "Current number of connected WebSocket clients",
		},
	)

	BroadcastsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framesight_broadcasts_dropped_total",
			Help: "Total number of messages dropped because the broadcast channel was full",
		},
		[]string{"message_type"},
	)

	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framesight_webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts by outcome",
		},
		[]string{"event_type", "outcome"},
	)

	// Storage metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "framesight_duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framesight_duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)
)
