// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

// Package config loads and validates Framesight configuration using Koanf v2
// with layered sources: built-in defaults, an optional YAML file, and
// environment variables (highest priority).
package config

import (
	"time"
)

// Config is the root configuration for the Framesight server.
type Config struct {
	NATS     NATSConfig     `koanf:"nats"`
	Engine   EngineConfig   `koanf:"engine"`
	Ingest   IngestConfig   `koanf:"ingest"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Webhook  WebhookConfig  `koanf:"webhook"`
	Database DatabaseConfig `koanf:"database"`
	Media    MediaConfig    `koanf:"media"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// NATSConfig configures the NATS connection shared by the ingestion-worker
// transport and the inference-engine client.
type NATSConfig struct {
	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	StoreDir       string        `koanf:"store_dir"`
	MaxMemory      int64         `koanf:"max_memory"`
	MaxStore       int64         `koanf:"max_store"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
}

// EngineConfig configures the inference-engine request/reply channel.
type EngineConfig struct {
	// RequestSubject receives batched {resources, jobs} messages.
	RequestSubject string `koanf:"request_subject"`

	// ReplySubject carries {job_id, output} replies back.
	ReplySubject string `koanf:"reply_subject"`

	// JobTTL bounds how long a pending job may wait for its reply before
	// the registry expires it.
	JobTTL time.Duration `koanf:"job_ttl"`

	// SweepInterval is how often expired pending jobs are collected.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// IngestConfig configures the JetStream subscription for ingestion-worker
// messages and the command publisher back to the worker.
type IngestConfig struct {
	StreamName     string        `koanf:"stream_name"`
	SubjectPrefix  string        `koanf:"subject_prefix"`
	CommandSubject string        `koanf:"command_subject"`
	DurableName    string        `koanf:"durable_name"`
	QueueGroup     string        `koanf:"queue_group"`
	AckWaitTimeout time.Duration `koanf:"ack_wait_timeout"`
	MaxAckPending  int           `koanf:"max_ack_pending"`
	CloseTimeout   time.Duration `koanf:"close_timeout"`
}

// PipelineConfig configures the per-frame scheduler.
type PipelineConfig struct {
	// CustomAgents lists additional captioning agents; the indexing policy
	// requests one caption per agent on top of the general caption.
	CustomAgents []string `koanf:"custom_agents"`

	// StatsBacklog caps the in-memory frame-stats log replayed to newly
	// connecting clients.
	StatsBacklog int `koanf:"stats_backlog"`
}

// WebhookConfig configures the outbound webhook sink.
type WebhookConfig struct {
	Enabled     bool              `koanf:"enabled"`
	URL         string            `koanf:"url"`
	Headers     map[string]string `koanf:"headers"`
	RatePerSec  float64           `koanf:"rate_per_sec"`
	Timeout     time.Duration     `koanf:"timeout"`
	BreakerName string            `koanf:"breaker_name"`
}

// DatabaseConfig configures the DuckDB store.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// MediaConfig configures on-disk media artifact storage.
type MediaConfig struct {
	// Dir is the root directory for persisted frames and moment thumbnails.
	Dir string `koanf:"dir"`
}

// ServerConfig configures the HTTP surface (WebSocket upgrade, health, metrics).
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
