// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package pipeline

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/framesight/internal/engine"
	"github.com/tomtom215/framesight/internal/logging"
	"github.com/tomtom215/framesight/internal/metrics"
	"github.com/tomtom215/framesight/internal/models"
	"github.com/tomtom215/framesight/internal/moments"
	"github.com/tomtom215/framesight/internal/notify"
	"github.com/tomtom215/framesight/internal/stats"
	"github.com/tomtom215/framesight/internal/websocket"
)

// Job continuations. Each runs on its own goroutine, blocks on one future,
// and applies the reply. Replies may land in any order relative to later
// frames; continuations therefore only append or back-fill, never assume
// they run before the next frame's policies.

// firedMoment captures a qualified interval and its detached frame buffer
// for handling outside the source lock.
type firedMoment struct {
	id  uuid.UUID
	ev  stats.MomentEvent
	buf *moments.FrameBuffer
}

func (p *Pipeline) onCaption(ctx context.Context, fut *engine.Future, sourceID string, unitID uuid.UUID, agent string) {
	reply := <-fut.Done()
	out, err := engine.Decode[engine.CaptionOutput](reply)
	if err != nil {
		logging.Err(err).
			Str("source_id", sourceID).
			Str("media_unit_id", unitID.String()).
			Str("agent", agent).
			Msg("Caption job failed")
		return
	}
	text := CleanCaption(out.Text)
	if text == "" {
		return
	}
	ts := websocket.Timestamp(time.Now().UTC())

	if agent == "" {
		if err := p.store.UpdateMediaUnitDescription(ctx, unitID, text); err != nil {
			logging.Err(err).Str("media_unit_id", unitID.String()).Msg("Failed to store description")
			return
		}
		data := websocket.DescriptionData{
			SourceID:    sourceID,
			MediaUnitID: unitID.String(),
			Description: text,
			Timestamp:   ts,
		}
		p.hub.BroadcastJSON(websocket.MessageTypeDescription, data)
		p.notify(ctx, notify.EventDescription, data)
		return
	}

	resp := &models.AgentResponse{
		ID:          uuid.New(),
		MediaUnitID: unitID,
		Agent:       agent,
		Response:    text,
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.store.InsertAgentResponse(ctx, resp); err != nil {
		logging.Err(err).
			Str("media_unit_id", unitID.String()).
			Str("agent", agent).
			Msg("Failed to store agent response")
		return
	}
	data := websocket.AgentCardData{
		SourceID:    sourceID,
		MediaUnitID: unitID.String(),
		Agent:       agent,
		Response:    text,
		Timestamp:   ts,
	}
	p.hub.BroadcastJSON(websocket.MessageTypeAgentCard, data)
	p.notify(ctx, notify.EventAgentResponse, data)
}

func (p *Pipeline) onEmbedding(ctx context.Context, fut *engine.Future, unitID uuid.UUID) {
	reply := <-fut.Done()
	out, err := engine.Decode[engine.EmbeddingOutput](reply)
	if err != nil {
		logging.Err(err).Str("media_unit_id", unitID.String()).Msg("Embedding job failed")
		return
	}
	if len(out.Vector) == 0 {
		logging.Warn().Str("media_unit_id", unitID.String()).Msg("Empty embedding vector")
		return
	}
	if err := p.store.UpdateMediaUnitEmbedding(ctx, unitID, embeddingBytes(out.Vector)); err != nil {
		logging.Err(err).Str("media_unit_id", unitID.String()).Msg("Failed to store embedding")
	}
}

func (p *Pipeline) onSegmentation(ctx context.Context, fut *engine.Future, sourceID, frameID string) {
	reply := <-fut.Done()
	out, err := engine.Decode[engine.SegmentationOutput](reply)
	if err != nil {
		// Segmentation output is forwarded best-effort; a failed frame is
		// simply dropped.
		logging.Debug().
			Err(err).
			Str("source_id", sourceID).
			Str("frame_id", frameID).
			Msg("Segmentation job failed")
		return
	}

	data := websocket.SegmentationData{
		SourceID: sourceID,
		FrameID:  frameID,
		Segments: out.Segments,
	}
	p.hub.BroadcastJSON(websocket.MessageTypeSegmentation, data)
	p.notify(ctx, notify.EventSegmentation, data)

	if len(out.Segments) > 0 {
		labels := make([]string, 0, len(out.Segments))
		for _, seg := range out.Segments {
			labels = append(labels, seg.Label)
		}
		p.notify(ctx, notify.EventObjectDetection, map[string]interface{}{
			"source_id": sourceID,
			"frame_id":  frameID,
			"labels":    labels,
		})
	}
}

// onMotion feeds the reply into the moment state machine. Transitions are
// observed under the source lock but their effects - worker commands and
// moment handling - run after release so slow collaborators never block
// frame processing.
func (p *Pipeline) onMotion(ctx context.Context, fut *engine.Future, sourceID, frameID string, at time.Time) {
	reply := <-fut.Done()
	out, err := engine.Decode[engine.MotionEnergyOutput](reply)
	if err != nil {
		logging.Err(err).
			Str("source_id", sourceID).
			Str("frame_id", frameID).
			Msg("Motion energy job failed")
		return
	}
	if out.Value == nil {
		logging.Warn().
			Str("source_id", sourceID).
			Str("frame_id", frameID).
			Msg("Motion energy reply carried no value")
		return
	}

	st, ok := p.peekSource(sourceID)
	if !ok {
		metrics.StaleSourceReplies.Inc()
		logging.Debug().
			Str("source_id", sourceID).
			Str("frame_id", frameID).
			Msg("Motion reply for ended source dropped")
		return
	}

	var (
		commands []func()
		fired    *firedMoment
	)

	st.mu.Lock()
	sample := st.stats.Update(stats.SignalMotionEnergy, *out.Value, at)
	st.stats.CheckMoment(frameID, at, stats.Callbacks{
		OnMomentStart: func() {
			id := uuid.New()
			st.inMoment = true
			st.momentID = id
			idStr := id.String()
			commands = append(commands, func() {
				if err := p.commands.SetMomentState(ctx, sourceID, true, &idStr, false); err != nil {
					logging.Err(err).Str("source_id", sourceID).Msg("Failed to signal moment start")
				}
			})
		},
		OnMoment: func(ev stats.MomentEvent) {
			// Detach the buffer so moment handling works on a snapshot
			// while new frames accumulate into a fresh one.
			fired = &firedMoment{id: st.momentID, ev: ev, buf: st.buffer}
			st.buffer = moments.NewFrameBuffer()
		},
		OnMomentEnd: func(wasMoment bool) {
			st.inMoment = false
			st.momentID = uuid.Nil
			if !wasMoment {
				st.buffer.Clear()
			}
			commands = append(commands, func() {
				if err := p.commands.SetMomentState(ctx, sourceID, false, nil, !wasMoment); err != nil {
					logging.Err(err).Str("source_id", sourceID).Msg("Failed to signal moment end")
				}
			})
		},
	})
	inMoment := st.inMoment
	st.mu.Unlock()

	for _, cmd := range commands {
		cmd()
	}

	p.hub.BroadcastFrameStats(websocket.FrameStatsData{
		SourceID:  sourceID,
		FrameID:   frameID,
		Value:     sample.Value,
		SMA10:     sample.SMA10,
		SMA100:    sample.SMA100,
		InMoment:  inMoment,
		Timestamp: websocket.Timestamp(at),
	})

	if fired != nil {
		p.lifecycle.HandleMoment(ctx, sourceID, fired.id, fired.ev, fired.buf)
	}
}

func (p *Pipeline) notify(ctx context.Context, eventType string, data interface{}) {
	if p.sink == nil || !p.sink.Enabled() {
		return
	}
	if err := p.sink.Send(ctx, eventType, data); err != nil {
		logging.Warn().Err(err).Str("event_type", eventType).Msg("Webhook delivery failed")
	}
}

// embeddingBytes packs the vector as little-endian float32 for storage.
func embeddingBytes(vector []float64) []byte {
	out := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(v)))
	}
	return out
}
