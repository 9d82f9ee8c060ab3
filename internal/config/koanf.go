// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/framesight/config.yaml",
	"/etc/framesight/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		NATS: NATSConfig{
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: false,
			StoreDir:       "/data/nats/jetstream",
			MaxMemory:      1 << 30,  // 1GB
			MaxStore:       10 << 30, // 10GB
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
		},
		Engine: EngineConfig{
			RequestSubject: "engine.requests",
			ReplySubject:   "engine.replies",
			JobTTL:         120 * time.Second,
			SweepInterval:  15 * time.Second,
		},
		Ingest: IngestConfig{
			StreamName:     "FRAMES",
			SubjectPrefix:  "ingest",
			CommandSubject: "worker.commands",
			DurableName:    "frame-pipeline",
			QueueGroup:     "pipelines",
			AckWaitTimeout: 30 * time.Second,
			MaxAckPending:  256,
			CloseTimeout:   30 * time.Second,
		},
		Pipeline: PipelineConfig{
			CustomAgents: nil,
			StatsBacklog: 1000,
		},
		Webhook: WebhookConfig{
			Enabled:     false,
			URL:         "",
			Headers:     nil,
			RatePerSec:  2.0,
			Timeout:     10 * time.Second,
			BreakerName: "webhook",
		},
		Database: DatabaseConfig{
			Path:      "/data/framesight.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Media: MediaConfig{
			Dir: "/data/media",
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    3858,
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds configuration from layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if it exists)
//  3. Environment variables: override any setting (FRAMESIGHT_ prefix)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// FRAMESIGHT_NATS_URL -> nats.url, FRAMESIGHT_SERVER_PORT -> server.port
	envProvider := env.Provider("FRAMESIGHT_", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file, env override first.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices when
// set via environment variables.
var sliceConfigPaths = []string{
	"pipeline.custom_agents",
}

// processSliceFields converts comma-separated strings to slices for known
// slice fields. Env vars arrive as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
//
//	FRAMESIGHT_NATS_URL            -> nats.url
//	FRAMESIGHT_ENGINE_JOB_TTL      -> engine.job_ttl
//	FRAMESIGHT_WEBHOOK_RATE_PER_SEC -> webhook.rate_per_sec
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "FRAMESIGHT_"))

	// First underscore separates the section; the rest is the field name.
	parts := strings.SplitN(key, "_", 2)
	if len(parts) != 2 {
		return key
	}
	return parts[0] + "." + parts[1]
}
