// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package moments

import (
	"fmt"
	"testing"
	"time"
)

func offerAt(b *FrameBuffer, ms int64) bool {
	at := time.Unix(0, 0).Add(time.Duration(ms) * time.Millisecond)
	return b.Offer(fmt.Sprintf("f%d", ms), at, []byte{byte(ms % 256)})
}

func frameTimesMS(b *FrameBuffer) []int64 {
	var out []int64
	for _, f := range b.Frames() {
		out = append(out, f.At.Sub(time.Unix(0, 0)).Milliseconds())
	}
	return out
}

func equalInt64(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestOfferThrottlesAndConvergesOnMidpoint(t *testing.T) {
	b := NewFrameBuffer()

	// Bursty arrivals: only frames >= 1s after the last buffered one stick.
	accepted := []int64{}
	for _, ms := range []int64{0, 200, 1000, 1050, 2200} {
		if offerAt(b, ms) {
			accepted = append(accepted, ms)
		}
	}
	if !equalInt64(accepted, []int64{0, 1000, 2200}) {
		t.Fatalf("accepted = %v, want [0 1000 2200]", accepted)
	}
	if !equalInt64(frameTimesMS(b), []int64{0, 1000, 2200}) {
		t.Fatalf("buffer = %v, want [0 1000 2200]", frameTimesMS(b))
	}

	// Buffer is full. The frame at 3300 extends the interval to [0, 3300]
	// with midpoint 1650; the old last (2200) is closer to it than the old
	// mid (1000), so it takes the middle slot.
	if !offerAt(b, 3300) {
		t.Fatal("frame at 3300 rejected")
	}
	if !equalInt64(frameTimesMS(b), []int64{0, 2200, 3300}) {
		t.Fatalf("buffer = %v, want [0 2200 3300]", frameTimesMS(b))
	}
}

func TestFirstFrameNeverReplaced(t *testing.T) {
	b := NewFrameBuffer()
	for ms := int64(0); ms <= 60000; ms += 1000 {
		offerAt(b, ms)
		if b.Len() > 0 && b.Frames()[0].FrameID != "f0" {
			t.Fatalf("first frame replaced at t=%dms", ms)
		}
	}
	if b.Len() != 3 {
		t.Fatalf("len = %d, want 3", b.Len())
	}
}

func TestMiddleSelection(t *testing.T) {
	b := NewFrameBuffer()

	if _, ok := b.Middle(); ok {
		t.Fatal("empty buffer returned a middle frame")
	}

	offerAt(b, 0)
	if mid, ok := b.Middle(); !ok || mid.FrameID != "f0" {
		t.Fatalf("middle of one frame = %v, %v", mid.FrameID, ok)
	}

	offerAt(b, 1000)
	if mid, ok := b.Middle(); !ok || mid.FrameID != "f1000" {
		t.Fatalf("middle of two frames = %v, %v", mid.FrameID, ok)
	}

	offerAt(b, 2000)
	if mid, ok := b.Middle(); !ok || mid.FrameID != "f1000" {
		t.Fatalf("middle of three frames = %v, %v", mid.FrameID, ok)
	}
}

func TestClearResetsThrottle(t *testing.T) {
	b := NewFrameBuffer()
	offerAt(b, 0)
	b.Clear()

	if b.Len() != 0 {
		t.Fatalf("len after clear = %d", b.Len())
	}
	// A frame inside the old throttle window is accepted after Clear.
	if !offerAt(b, 100) {
		t.Fatal("frame after clear rejected by stale throttle state")
	}
}
