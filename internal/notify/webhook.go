// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

// Package notify delivers pipeline events to an external webhook endpoint,
// rate-limited and guarded by a circuit breaker so a dead endpoint cannot
// stall frame processing.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/framesight/internal/config"
	"github.com/tomtom215/framesight/internal/logging"
	"github.com/tomtom215/framesight/internal/metrics"
)

// Event types carried in webhook payloads.
const (
	EventDescription     = "description"
	EventObjectDetection = "object_detection"
	EventAgentResponse   = "agent_response"
	EventSegmentation    = "segmentation"
)

// Payload is the envelope around every webhook delivery.
type Payload struct {
	EventType string      `json:"event_type"`
	Timestamp string      `json:"timestamp"`
	Source    string      `json:"source"`
	Data      interface{} `json:"data"`
}

// Sink posts events to the configured webhook endpoint.
type Sink struct {
	cfg     config.WebhookConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewSink creates a webhook sink from config. A disabled or URL-less config
// yields a sink whose Send is a no-op.
func NewSink(cfg config.WebhookConfig) *Sink {
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 2
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        cfg.BreakerName,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Webhook circuit breaker state changed")
		},
	}

	return &Sink{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(perSec), 1),
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// Enabled reports whether deliveries will actually be attempted.
func (s *Sink) Enabled() bool {
	return s.cfg.Enabled && s.cfg.URL != ""
}

// Send delivers one event. It blocks on the rate limiter (honoring ctx) and
// returns the transport, status, or breaker error. Callers log and move on;
// a failed delivery never blocks the pipeline beyond the limiter wait.
func (s *Sink) Send(ctx context.Context, eventType string, data interface{}) error {
	if !s.Enabled() {
		return nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	payload := Payload{
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Source:    "framesight",
		Data:      data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	_, err = s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.post(ctx, body)
	})
	if err != nil {
		metrics.WebhookDeliveries.WithLabelValues(eventType, "error").Inc()
		return err
	}

	metrics.WebhookDeliveries.WithLabelValues(eventType, "ok").Inc()
	return nil
}

func (s *Sink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
