// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

// Package ingest consumes the ingestion worker's stream of frame, codec,
// clip, and end-of-stream messages over JetStream, and publishes stream
// control commands back to the worker.
package ingest

import (
	"time"

	json "github.com/goccy/go-json"
)

// Envelope kinds on the ingestion stream.
const (
	KindFrame     = "frame"
	KindCodec     = "codec"
	KindEnded     = "ended"
	KindClipSaved = "moment_clip_saved"
)

// Envelope wraps every inbound message with its kind so one stream carries
// all four message types in source order.
type Envelope struct {
	Kind    string          `json:"kind" validate:"required,oneof=frame codec ended moment_clip_saved"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// FrameMessage is one decoded camera frame.
type FrameMessage struct {
	SourceID    string    `json:"source_id" validate:"required"`
	FrameID     string    `json:"frame_id,omitempty"`
	Data        []byte    `json:"data" validate:"required"`
	IsEphemeral bool      `json:"is_ephemeral"`
	Timestamp   time.Time `json:"timestamp"`
}

// CodecMessage announces a source's encoding parameters, forwarded to
// clients so they can set up decoders.
type CodecMessage struct {
	SourceID string `json:"source_id" validate:"required"`
	Codec    string `json:"codec" validate:"required"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Extra    []byte `json:"extra,omitempty"`
}

// EndedMessage marks the end of a source's stream.
type EndedMessage struct {
	SourceID string `json:"source_id" validate:"required"`
}

// ClipSavedMessage reports that the recording subsystem finished writing a
// moment's clip file.
type ClipSavedMessage struct {
	MomentID string `json:"moment_id" validate:"required,uuid4"`
	ClipPath string `json:"clip_path" validate:"required"`
}

// Command types sent to the ingestion worker.
const (
	CommandStartStream    = "start_stream"
	CommandStopStream     = "stop_stream"
	CommandSetMomentState = "set_moment_state"
)

// Command is one control instruction for the ingestion worker.
type Command struct {
	Type     string `json:"type" validate:"required,oneof=start_stream stop_stream set_moment_state"`
	SourceID string `json:"source_id" validate:"required"`

	// set_moment_state fields.
	ShouldWriteMoment          bool    `json:"should_write_moment,omitempty"`
	CurrentMomentID            *string `json:"current_moment_id,omitempty"`
	DiscardPreviousMaybeMoment bool    `json:"discard_previous_maybe_moment,omitempty"`
}
