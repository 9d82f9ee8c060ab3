// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package ingest

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"

	"github.com/tomtom215/framesight/internal/config"
	"github.com/tomtom215/framesight/internal/logging"
	"github.com/tomtom215/framesight/internal/validation"
)

// Handler receives decoded ingestion messages. Calls arrive from a single
// goroutine in stream order, so per-source ordering is the handler's to
// keep, not to create.
type Handler interface {
	HandleFrame(ctx context.Context, msg FrameMessage)
	HandleCodec(ctx context.Context, msg CodecMessage)
	HandleEnded(ctx context.Context, msg EndedMessage)
	HandleClipSaved(ctx context.Context, msg ClipSavedMessage)
}

// Consumer pumps the frames stream into a Handler.
type Consumer struct {
	subscriber *Subscriber
	handler    Handler
	topic      string
}

// NewConsumer creates a consumer over the configured subject space.
func NewConsumer(sub *Subscriber, cfg config.IngestConfig, handler Handler) *Consumer {
	return &Consumer{
		subscriber: sub,
		handler:    handler,
		topic:      cfg.SubjectPrefix + ".>",
	}
}

// Serve consumes messages until ctx is done. Each message is processed to
// completion before the next is read; that single-threaded discipline is
// what serializes access to per-source pipeline state.
func (c *Consumer) Serve(ctx context.Context) error {
	messages, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.topic, err)
	}

	logging.Info().Str("topic", c.topic).Msg("Ingest consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("ingest subscription closed")
			}
			c.dispatch(ctx, msg)
		}
	}
}

// dispatch decodes and routes one message. Malformed messages are acked and
// dropped: redelivery cannot fix a bad payload.
func (c *Consumer) dispatch(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var env Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Undecodable ingest message dropped")
		return
	}
	if err := validation.ValidateStruct(env); err != nil {
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Invalid ingest envelope dropped")
		return
	}

	switch env.Kind {
	case KindFrame:
		var m FrameMessage
		if !decodePayload(env, &m, msg.UUID) {
			return
		}
		c.handler.HandleFrame(ctx, m)
	case KindCodec:
		var m CodecMessage
		if !decodePayload(env, &m, msg.UUID) {
			return
		}
		c.handler.HandleCodec(ctx, m)
	case KindEnded:
		var m EndedMessage
		if !decodePayload(env, &m, msg.UUID) {
			return
		}
		c.handler.HandleEnded(ctx, m)
	case KindClipSaved:
		var m ClipSavedMessage
		if !decodePayload(env, &m, msg.UUID) {
			return
		}
		c.handler.HandleClipSaved(ctx, m)
	}
}

func decodePayload(env Envelope, out any, uuid string) bool {
	if err := json.Unmarshal(env.Payload, out); err != nil {
		logging.Warn().Err(err).Str("kind", env.Kind).Str("message_uuid", uuid).Msg("Undecodable payload dropped")
		return false
	}
	if err := validation.ValidateStruct(out); err != nil {
		logging.Warn().Err(err).Str("kind", env.Kind).Str("message_uuid", uuid).Msg("Invalid payload dropped")
		return false
	}
	return true
}
