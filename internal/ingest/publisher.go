// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/framesight/internal/config"
	"github.com/tomtom215/framesight/internal/logging"
	"github.com/tomtom215/framesight/internal/validation"
)

// CommandPublisher sends control commands to the ingestion worker.
type CommandPublisher struct {
	publisher message.Publisher
	subject   string
	mu        sync.RWMutex
	closed    bool
}

// NewCommandPublisher creates a publisher on the command subject.
func NewCommandPublisher(natsCfg config.NATSConfig, cfg config.IngestConfig, logger watermill.LoggerAdapter) (*CommandPublisher, error) {
	if logger == nil {
		logger = NewWatermillLogger()
	}

	natsOpts := []natsgo.Option{
		natsgo.Name("framesight-commands"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(natsCfg.MaxReconnects),
		natsgo.ReconnectWait(natsCfg.ReconnectWait),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         natsCfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			// Commands are fire-and-forget control messages; they go over
			// core NATS, not the frames stream.
			Disabled: true,
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create command publisher: %w", err)
	}

	return &CommandPublisher{publisher: pub, subject: cfg.CommandSubject}, nil
}

// Publish validates and sends one command.
func (p *CommandPublisher) Publish(_ context.Context, cmd Command) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("command publisher is closed")
	}
	p.mu.RUnlock()

	if err := validation.ValidateStruct(cmd); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}

	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), body)
	if err := p.publisher.Publish(p.subject, msg); err != nil {
		return fmt.Errorf("publish %s command: %w", cmd.Type, err)
	}

	logging.Debug().
		Str("type", cmd.Type).
		Str("source_id", cmd.SourceID).
		Msg("Command published")
	return nil
}

// StartStream instructs the worker to begin ingesting a source.
func (p *CommandPublisher) StartStream(ctx context.Context, sourceID string) error {
	return p.Publish(ctx, Command{Type: CommandStartStream, SourceID: sourceID})
}

// StopStream instructs the worker to halt a source.
func (p *CommandPublisher) StopStream(ctx context.Context, sourceID string) error {
	return p.Publish(ctx, Command{Type: CommandStopStream, SourceID: sourceID})
}

// SetMomentState instructs the worker to begin, stop, or discard clip
// recording for a source. momentID is nil when recording should stop.
func (p *CommandPublisher) SetMomentState(ctx context.Context, sourceID string, shouldWrite bool, momentID *string, discardPrevious bool) error {
	return p.Publish(ctx, Command{
		Type:                       CommandSetMomentState,
		SourceID:                   sourceID,
		ShouldWriteMoment:          shouldWrite,
		CurrentMomentID:            momentID,
		DiscardPreviousMaybeMoment: discardPrevious,
	})
}

// Close shuts the publisher down; further publishes fail fast.
func (p *CommandPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	return p.publisher.Close()
}
