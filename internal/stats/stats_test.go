// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package stats

import (
	"fmt"
	"math"
	"testing"
	"time"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// setRatio forces the motion-energy track to a specific deviation ratio by
// pinning the long average at 1.0 and the short average at 1.0+ratio.
func setRatio(s *StreamStats, ratio float64) {
	tr := s.track(SignalMotionEnergy)
	tr.long.values = []float64{1.0}
	tr.short.values = []float64{1.0 + ratio}
}

func TestUpdateMeansMatchWindowContents(t *testing.T) {
	s := New()
	base := time.Unix(0, 0)

	var values []float64
	for n := 1; n <= 120; n++ {
		v := float64(n) * 0.5
		values = append(values, v)

		sample := s.Update("motion_energy", v, base.Add(time.Duration(n)*time.Second))

		short := values
		if len(short) > 10 {
			short = short[len(short)-10:]
		}
		long := values
		if len(long) > 100 {
			long = long[len(long)-100:]
		}

		if !almostEqual(sample.SMA10, mean(short)) {
			t.Fatalf("n=%d: sma10 = %v, want %v", n, sample.SMA10, mean(short))
		}
		if !almostEqual(sample.SMA100, mean(long)) {
			t.Fatalf("n=%d: sma100 = %v, want %v", n, sample.SMA100, mean(long))
		}
		if sample.Value != v {
			t.Fatalf("n=%d: value = %v, want %v", n, sample.Value, v)
		}
	}
}

func mean(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func TestSingleDeviatingSampleDoesNotStartMoment(t *testing.T) {
	s := New()
	started := false
	cbs := Callbacks{OnMomentStart: func() { started = true }}

	setRatio(s, 2.0)
	s.CheckMoment("f1", time.Unix(0, 0), cbs)
	setRatio(s, 0.0)
	s.CheckMoment("f2", time.Unix(1, 0), cbs)
	setRatio(s, 2.0)
	s.CheckMoment("f3", time.Unix(2, 0), cbs)

	if started {
		t.Fatal("moment started from non-consecutive deviating samples")
	}
}

func TestConsecutiveCountersNeverBothNonzero(t *testing.T) {
	s := New()
	ratios := []float64{0, 2, 0, 2, 2, 0, 0, 2, 0, 2, 2, 2, 0, 0}

	for i, r := range ratios {
		setRatio(s, r)
		s.CheckMoment(fmt.Sprintf("f%d", i), time.Unix(int64(i), 0), Callbacks{})

		dev := s.signals[SignalMotionEnergy].dev
		if dev.aboveCount > 0 && dev.belowCount > 0 {
			t.Fatalf("step %d: aboveCount=%d and belowCount=%d both nonzero",
				i, dev.aboveCount, dev.belowCount)
		}
	}
}

// TestStandardMomentFromSustainedDeviation streams a sustained elevation
// through the real rolling buffers: 100 baseline samples at 1.0, 12 spike
// samples at 2.0, then baseline again, one sample per second.
func TestStandardMomentFromSustainedDeviation(t *testing.T) {
	s := New()
	base := time.Unix(0, 0)

	var starts int
	var events []MomentEvent
	var ends []bool
	cbs := Callbacks{
		OnMomentStart: func() { starts++ },
		OnMoment:      func(ev MomentEvent) { events = append(events, ev) },
		OnMomentEnd:   func(was bool) { ends = append(ends, was) },
	}

	feed := func(i int, v float64) {
		at := base.Add(time.Duration(i) * time.Second)
		s.Update(SignalMotionEnergy, v, at)
		s.CheckMoment(fmt.Sprintf("f%d", i), at, cbs)
	}

	i := 0
	for ; i < 100; i++ {
		feed(i, 1.0)
	}
	for ; i < 112; i++ {
		feed(i, 2.0)
	}
	for ; i < 140; i++ {
		feed(i, 1.0)
	}

	if starts != 1 {
		t.Fatalf("starts = %d, want 1", starts)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.Type != MomentStandard {
		t.Fatalf("type = %q, want standard", ev.Type)
	}
	if ev.Duration() < MinDuration {
		t.Fatalf("duration = %v, want >= %v", ev.Duration(), MinDuration)
	}
	if ev.Duration() > 20*time.Second {
		t.Fatalf("duration = %v, want well under the feed length", ev.Duration())
	}
	if len(ends) != 1 || !ends[0] {
		t.Fatalf("ends = %v, want one qualified end", ends)
	}
	if ev.StartFrameID == "" || len(ev.FrameIDs) == 0 {
		t.Fatalf("event missing frame ids: %+v", ev)
	}
	if ev.FrameIDs[0] != ev.StartFrameID {
		t.Fatalf("first accumulated frame %q != start frame %q", ev.FrameIDs[0], ev.StartFrameID)
	}
}

// TestInstantMoment drives the hysteresis machine directly: a sharp spike
// with peak deviation 6.0 lasting about 1.5s qualifies as instant.
func TestInstantMoment(t *testing.T) {
	s := New()
	base := time.Unix(100, 0)

	var events []MomentEvent
	var ends []bool
	cbs := Callbacks{
		OnMoment:    func(ev MomentEvent) { events = append(events, ev) },
		OnMomentEnd: func(was bool) { ends = append(ends, was) },
	}

	step := func(ms int64, ratio float64, frame string) {
		setRatio(s, ratio)
		s.CheckMoment(frame, base.Add(time.Duration(ms)*time.Millisecond), cbs)
	}

	step(0, 6.0, "f0")
	step(500, 6.0, "f1")  // second consecutive: moment starts here
	step(1000, 6.0, "f2")
	step(1500, 6.0, "f3")
	step(2000, 0.0, "f4")
	step(2500, 0.0, "f5") // second consecutive below: moment ends here

	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.Type != MomentInstant {
		t.Fatalf("type = %q, want instant", ev.Type)
	}
	if ev.Duration() != 2000*time.Millisecond {
		t.Fatalf("duration = %v, want 2s", ev.Duration())
	}
	if !almostEqual(ev.PeakDeviation, 6.0) {
		t.Fatalf("peak = %v, want 6.0", ev.PeakDeviation)
	}
	if len(ends) != 1 || !ends[0] {
		t.Fatalf("ends = %v, want one qualified end", ends)
	}
}

// TestShortSpikeEmitsNoMoment: a sub-second interval never qualifies, however
// large its peak, but the end callback still reports the disarm.
func TestShortSpikeEmitsNoMoment(t *testing.T) {
	s := New()
	base := time.Unix(200, 0)

	var events []MomentEvent
	var ends []bool
	cbs := Callbacks{
		OnMoment:    func(ev MomentEvent) { events = append(events, ev) },
		OnMomentEnd: func(was bool) { ends = append(ends, was) },
	}

	step := func(ms int64, ratio float64, frame string) {
		setRatio(s, ratio)
		s.CheckMoment(frame, base.Add(time.Duration(ms)*time.Millisecond), cbs)
	}

	step(0, 8.0, "f0")
	step(200, 8.0, "f1") // start at 200ms
	step(400, 8.0, "f2")
	step(600, 0.0, "f3")
	step(800, 0.0, "f4") // end at 800ms, duration 600ms

	if len(events) != 0 {
		t.Fatalf("events = %d, want 0", len(events))
	}
	if len(ends) != 1 || ends[0] {
		t.Fatalf("ends = %v, want one unqualified end", ends)
	}

	dev := s.Deviation(SignalMotionEnergy)
	if dev.Active {
		t.Fatal("deviation state still active after disarm")
	}
}

func TestPeakDeviationTracksMaximum(t *testing.T) {
	s := New()
	base := time.Unix(300, 0)

	var events []MomentEvent
	cbs := Callbacks{OnMoment: func(ev MomentEvent) { events = append(events, ev) }}

	step := func(sec int64, ratio float64, frame string) {
		setRatio(s, ratio)
		s.CheckMoment(frame, base.Add(time.Duration(sec)*time.Second), cbs)
	}

	step(0, 1.0, "f0")
	step(1, 2.0, "f1")
	step(2, 7.5, "f2")
	step(3, 3.0, "f3")
	step(4, 0.0, "f4")
	step(5, 0.0, "f5")

	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if !almostEqual(events[0].PeakDeviation, 7.5) {
		t.Fatalf("peak = %v, want 7.5", events[0].PeakDeviation)
	}
	if events[0].Type != MomentInstant {
		t.Fatalf("type = %q, want instant", events[0].Type)
	}
}
