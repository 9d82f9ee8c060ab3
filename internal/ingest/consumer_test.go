// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package ingest

import (
	"context"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

type recordingHandler struct {
	frames []FrameMessage
	codecs []CodecMessage
	ended  []EndedMessage
	clips  []ClipSavedMessage
}

func (h *recordingHandler) HandleFrame(_ context.Context, m FrameMessage)        { h.frames = append(h.frames, m) }
func (h *recordingHandler) HandleCodec(_ context.Context, m CodecMessage)        { h.codecs = append(h.codecs, m) }
func (h *recordingHandler) HandleEnded(_ context.Context, m EndedMessage)        { h.ended = append(h.ended, m) }
func (h *recordingHandler) HandleClipSaved(_ context.Context, m ClipSavedMessage) { h.clips = append(h.clips, m) }

func envelope(t *testing.T, kind string, payload any) *message.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	body, err := json.Marshal(Envelope{Kind: kind, Payload: raw})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return message.NewMessage(watermill.NewUUID(), body)
}

func TestDispatchRoutesByKind(t *testing.T) {
	h := &recordingHandler{}
	c := &Consumer{handler: h, topic: "frames.>"}
	ctx := context.Background()

	c.dispatch(ctx, envelope(t, KindFrame, FrameMessage{
		SourceID: "cam1",
		FrameID:  "f1",
		Data:     []byte{1, 2, 3},
	}))
	c.dispatch(ctx, envelope(t, KindCodec, CodecMessage{
		SourceID: "cam1",
		Codec:    "h264",
		Width:    1920,
		Height:   1080,
	}))
	c.dispatch(ctx, envelope(t, KindEnded, EndedMessage{SourceID: "cam1"}))
	clipID := uuid.NewString()
	c.dispatch(ctx, envelope(t, KindClipSaved, ClipSavedMessage{
		MomentID: clipID,
		ClipPath: "/media/clips/x.mp4",
	}))

	if len(h.frames) != 1 || h.frames[0].FrameID != "f1" {
		t.Fatalf("frames = %+v", h.frames)
	}
	if len(h.codecs) != 1 || h.codecs[0].Codec != "h264" {
		t.Fatalf("codecs = %+v", h.codecs)
	}
	if len(h.ended) != 1 {
		t.Fatalf("ended = %+v", h.ended)
	}
	if len(h.clips) != 1 || h.clips[0].MomentID != clipID {
		t.Fatalf("clips = %+v", h.clips)
	}
}

func TestDispatchDropsInvalidMessages(t *testing.T) {
	h := &recordingHandler{}
	c := &Consumer{handler: h, topic: "frames.>"}
	ctx := context.Background()

	// Not JSON at all.
	c.dispatch(ctx, message.NewMessage(watermill.NewUUID(), []byte("junk")))

	// Unknown kind fails envelope validation.
	c.dispatch(ctx, envelope(t, "telemetry", map[string]string{"source_id": "cam1"}))

	// Frame without data fails payload validation.
	c.dispatch(ctx, envelope(t, KindFrame, FrameMessage{SourceID: "cam1"}))

	// Clip-saved with a non-UUID moment id fails payload validation.
	c.dispatch(ctx, envelope(t, KindClipSaved, ClipSavedMessage{
		MomentID: "not-a-uuid",
		ClipPath: "/x.mp4",
	}))

	if len(h.frames)+len(h.codecs)+len(h.ended)+len(h.clips) != 0 {
		t.Fatalf("handler received invalid messages: %+v", h)
	}
}
