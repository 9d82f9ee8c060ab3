// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

// Package moments maintains the temporal frame sketch of an in-progress
// moment and drives the moment lifecycle: persistence, thumbnail capture,
// and retrying summarization.
package moments

import (
	"time"
)

// acceptInterval throttles buffered frames to roughly one per second so a
// long event is sketched by spaced-out frames rather than a burst.
const acceptInterval = 1000 * time.Millisecond

// bufferCap is the fixed sketch size: [first, middle, last].
const bufferCap = 3

// Frame is one buffered frame of an in-progress moment.
type Frame struct {
	FrameID string
	At      time.Time
	Data    []byte
}

// FrameBuffer approximates a [first, middle, last] sketch of an event of
// unknown length using at most three frames. The first frame is immutable
// until Clear; the middle slot greedily converges on the event's midpoint
// as new frames extend the end.
//
// Not safe for concurrent use; the pipeline serializes access per source.
type FrameBuffer struct {
	frames []Frame
}

// NewFrameBuffer returns an empty buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{frames: make([]Frame, 0, bufferCap)}
}

// Offer considers a frame for the sketch. Frames arriving less than
// acceptInterval after the last buffered frame are dropped. Reports whether
// the frame was buffered.
func (b *FrameBuffer) Offer(frameID string, at time.Time, data []byte) bool {
	if n := len(b.frames); n > 0 {
		if at.Sub(b.frames[n-1].At) < acceptInterval {
			return false
		}
	}

	f := Frame{FrameID: frameID, At: at, Data: data}

	if len(b.frames) < bufferCap {
		b.frames = append(b.frames, f)
		return true
	}

	// Buffer is [first, mid, last]. The incoming frame becomes the new
	// last; the old last replaces mid when it sits closer to the midpoint
	// of the extended interval.
	first, mid, last := b.frames[0], b.frames[1], b.frames[2]
	midpoint := first.At.Add(at.Sub(first.At) / 2)
	if absDuration(last.At.Sub(midpoint)) < absDuration(mid.At.Sub(midpoint)) {
		b.frames[1] = last
	}
	b.frames[2] = f
	return true
}

// Frames returns the buffered frames in temporal order. The returned slice
// shares storage with the buffer and is invalidated by Offer or Clear.
func (b *FrameBuffer) Frames() []Frame {
	return b.frames
}

// Middle returns the sketch's midpoint frame: the middle entry when three
// frames are held, otherwise the last buffered frame.
func (b *FrameBuffer) Middle() (Frame, bool) {
	switch len(b.frames) {
	case 0:
		return Frame{}, false
	case bufferCap:
		return b.frames[1], true
	default:
		return b.frames[len(b.frames)-1], true
	}
}

// Len reports how many frames are buffered.
func (b *FrameBuffer) Len() int {
	return len(b.frames)
}

// Clear empties the buffer for the next moment.
func (b *FrameBuffer) Clear() {
	b.frames = b.frames[:0]
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
