// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

// Package pipeline is the per-frame scheduler: it receives ingested frames,
// decides which analysis policies fire for each one, batches the resulting
// inference jobs, and applies job results asynchronously - persisting
// artifacts, feeding the moment state machine, and fanning events out to
// WebSocket clients and the webhook sink.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/framesight/internal/config"
	"github.com/tomtom215/framesight/internal/engine"
	"github.com/tomtom215/framesight/internal/ingest"
	"github.com/tomtom215/framesight/internal/logging"
	"github.com/tomtom215/framesight/internal/metrics"
	"github.com/tomtom215/framesight/internal/models"
	"github.com/tomtom215/framesight/internal/moments"
	"github.com/tomtom215/framesight/internal/stats"
	"github.com/tomtom215/framesight/internal/websocket"
)

// Store is the subset of the database layer the pipeline writes through.
type Store interface {
	InsertMediaUnit(ctx context.Context, u *models.MediaUnit) error
	UpdateMediaUnitDescription(ctx context.Context, id uuid.UUID, description string) error
	UpdateMediaUnitEmbedding(ctx context.Context, id uuid.UUID, embedding []byte) error
	InsertAgentResponse(ctx context.Context, r *models.AgentResponse) error
	UpdateMomentClipPath(ctx context.Context, id uuid.UUID, clipPath string) error
}

// Dispatcher creates job batches bound to the inference engine.
type Dispatcher interface {
	NewBatch() *engine.Batch
}

// Broadcaster fans events out to connected WebSocket clients.
type Broadcaster interface {
	BroadcastJSON(messageType string, data interface{})
	BroadcastEphemeral(messageType string, data interface{})
	BroadcastFrameStats(data websocket.FrameStatsData)
}

// Commander sends control instructions back to the ingestion worker.
type Commander interface {
	SetMomentState(ctx context.Context, sourceID string, shouldWrite bool, momentID *string, discardPrevious bool) error
}

// Notifier delivers events to the outbound webhook sink.
type Notifier interface {
	Enabled() bool
	Send(ctx context.Context, eventType string, data interface{}) error
}

// Lifecycle handles qualified moments after the state machine closes them.
type Lifecycle interface {
	HandleMoment(ctx context.Context, sourceID string, momentID uuid.UUID, ev stats.MomentEvent, buf *moments.FrameBuffer)
}

// sourceState is everything the pipeline tracks per stream. All fields are
// guarded by mu; job continuations for a source re-acquire it before
// touching the state machine.
type sourceState struct {
	mu       sync.Mutex
	lastRun  map[string]time.Time
	stats    *stats.StreamStats
	buffer   *moments.FrameBuffer
	inMoment bool
	momentID uuid.UUID
}

func newSourceState() *sourceState {
	return &sourceState{
		lastRun: make(map[string]time.Time),
		stats:   stats.New(),
		buffer:  moments.NewFrameBuffer(),
	}
}

// Pipeline routes each ingested frame through the policy table and owns the
// per-source state those policies read and mutate.
type Pipeline struct {
	cfg      config.PipelineConfig
	mediaDir string

	store      Store
	dispatcher Dispatcher
	hub        Broadcaster
	commands   Commander
	sink       Notifier
	lifecycle  Lifecycle

	policies []policy

	mu      sync.Mutex
	sources map[string]*sourceState
}

// New assembles a pipeline over its collaborators. mediaDir is the root for
// persisted frame files.
func New(cfg config.PipelineConfig, mediaDir string, store Store, dispatcher Dispatcher, hub Broadcaster, commands Commander, sink Notifier, lifecycle Lifecycle) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		mediaDir:   mediaDir,
		store:      store,
		dispatcher: dispatcher,
		hub:        hub,
		commands:   commands,
		sink:       sink,
		lifecycle:  lifecycle,
		sources:    make(map[string]*sourceState),
	}
	p.policies = defaultPolicies()
	return p
}

func (p *Pipeline) source(sourceID string) *sourceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.sources[sourceID]
	if !ok {
		st = newSourceState()
		p.sources[sourceID] = st
	}
	return st
}

// peekSource looks up per-source state without creating it. Continuations
// use this so a reply landing after the stream ended cannot resurrect the
// entry.
func (p *Pipeline) peekSource(sourceID string) (*sourceState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.sources[sourceID]
	return st, ok
}

func (p *Pipeline) dropSource(sourceID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sources, sourceID)
}

// HandleFrame runs the policy table over one ingested frame. A panic in any
// policy is contained here so a malformed frame cannot take down the
// consumer loop.
func (p *Pipeline) HandleFrame(ctx context.Context, msg ingest.FrameMessage) {
	defer func() {
		if r := recover(); r != nil {
			metrics.FramePanics.Inc()
			logging.Error().
				Str("source_id", msg.SourceID).
				Str("frame_id", msg.FrameID).
				Interface("panic", r).
				Msg("Frame handling panicked")
		}
	}()

	if msg.FrameID == "" {
		msg.FrameID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	metrics.FramesProcessed.WithLabelValues(msg.SourceID).Inc()
	p.hub.BroadcastEphemeral(websocket.MessageTypeFrame, msg)

	if msg.IsEphemeral {
		return
	}

	st := p.source(msg.SourceID)
	st.mu.Lock()
	fc := &frameContext{
		p:     p,
		msg:   msg,
		batch: p.dispatcher.NewBatch(),
	}
	fc.inMoment = st.inMoment

	for i := range p.policies {
		pol := &p.policies[i]
		sinceLast := foreverAgo
		if last, ran := st.lastRun[pol.name]; ran {
			sinceLast = msg.Timestamp.Sub(last)
		}
		if sinceLast < pol.interval {
			continue
		}
		if !pol.shouldRun(fc, sinceLast) {
			continue
		}
		st.lastRun[pol.name] = msg.Timestamp
		metrics.PolicyRuns.WithLabelValues(pol.name).Inc()
		pol.run(ctx, fc)
	}

	if st.inMoment {
		st.buffer.Offer(msg.FrameID, msg.Timestamp, msg.Data)
	}
	st.mu.Unlock()

	if err := fc.batch.Send(ctx); err != nil {
		logging.Err(err).
			Str("source_id", msg.SourceID).
			Str("frame_id", msg.FrameID).
			Msg("Failed to dispatch job batch")
	}
}

// HandleCodec forwards encoding parameters to clients. Codec messages are
// never persisted.
func (p *Pipeline) HandleCodec(_ context.Context, msg ingest.CodecMessage) {
	p.hub.BroadcastEphemeral(websocket.MessageTypeCodec, msg)
}

// HandleEnded tears down per-source state so a reconnecting source starts
// with fresh statistics.
func (p *Pipeline) HandleEnded(_ context.Context, msg ingest.EndedMessage) {
	p.dropSource(msg.SourceID)
	p.hub.BroadcastEphemeral(websocket.MessageTypeEnded, msg)
	logging.Info().Str("source_id", msg.SourceID).Msg("Stream ended")
}

// HandleClipSaved back-fills the clip path on an already-persisted moment.
func (p *Pipeline) HandleClipSaved(ctx context.Context, msg ingest.ClipSavedMessage) {
	id, err := uuid.Parse(msg.MomentID)
	if err != nil {
		logging.Err(err).Str("moment_id", msg.MomentID).Msg("Invalid moment ID in clip notification")
		return
	}
	if err := p.store.UpdateMomentClipPath(ctx, id, msg.ClipPath); err != nil {
		logging.Err(err).
			Str("moment_id", msg.MomentID).
			Str("clip_path", msg.ClipPath).
			Msg("Failed to record clip path")
	}
}
