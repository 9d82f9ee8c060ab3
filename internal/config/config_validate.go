// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package config

import (
	"fmt"
	"strings"
)

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	if err := c.validateNATS(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateWebhook(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateNATS() error {
	if c.NATS.URL == "" && !c.NATS.EmbeddedServer {
		return fmt.Errorf("nats.url is required when nats.embedded_server=false")
	}
	if c.NATS.EmbeddedServer && c.NATS.StoreDir == "" {
		return fmt.Errorf("nats.store_dir is required when nats.embedded_server=true")
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.RequestSubject == "" {
		return fmt.Errorf("engine.request_subject is required")
	}
	if c.Engine.ReplySubject == "" {
		return fmt.Errorf("engine.reply_subject is required")
	}
	if c.Engine.JobTTL <= 0 {
		return fmt.Errorf("engine.job_ttl must be positive")
	}
	if c.Engine.SweepInterval <= 0 {
		return fmt.Errorf("engine.sweep_interval must be positive")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.StreamName == "" {
		return fmt.Errorf("ingest.stream_name is required")
	}
	if c.Ingest.SubjectPrefix == "" {
		return fmt.Errorf("ingest.subject_prefix is required")
	}
	if strings.ContainsAny(c.Ingest.SubjectPrefix, " >*") {
		return fmt.Errorf("ingest.subject_prefix must be a literal subject token")
	}
	if c.Ingest.CommandSubject == "" {
		return fmt.Errorf("ingest.command_subject is required")
	}
	return nil
}

func (c *Config) validateWebhook() error {
	if !c.Webhook.Enabled {
		return nil
	}
	if c.Webhook.URL == "" {
		return fmt.Errorf("webhook.url is required when webhook.enabled=true")
	}
	if !strings.HasPrefix(c.Webhook.URL, "http://") && !strings.HasPrefix(c.Webhook.URL, "https://") {
		return fmt.Errorf("webhook.url must start with http:// or https://")
	}
	if c.Webhook.RatePerSec <= 0 {
		return fmt.Errorf("webhook.rate_per_sec must be positive")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format %q must be json or console", c.Logging.Format)
	}
	return nil
}
