// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

// Package stats derives per-source rolling statistics from analysis signals
// and detects "moments" (bounded intervals of anomalous activity) with a
// hysteresis state machine over the motion-energy signal.
package stats

import (
	"math"
	"time"
)

// SignalMotionEnergy is the signal evaluated by the moment state machine.
const SignalMotionEnergy = "motion_energy"

// Detection constants. These are deliberately not runtime-tunable: the
// thresholds were calibrated together and changing one in isolation shifts
// the qualification boundary for every stream.
const (
	// MinDeviationRatio is the relative short/long average divergence at
	// which a sample counts as deviating.
	MinDeviationRatio = 0.3

	// MinDuration is the minimum interval length for a standard moment.
	MinDuration = 10000 * time.Millisecond

	// InstantEventDeviation is the peak ratio an interval shorter than
	// MinDuration must reach to qualify as an instant moment.
	InstantEventDeviation = 5.0

	// InstantMinDuration is the minimum interval length for an instant moment.
	InstantMinDuration = 1000 * time.Millisecond

	// StabilityBuffer is how many consecutive samples must agree before the
	// machine arms or disarms.
	StabilityBuffer = 2

	// MinSMA100Threshold floors the deviation-ratio denominator so an idle
	// signal cannot divide by zero.
	MinSMA100Threshold = 0.01
)

const (
	shortWindow = 10
	longWindow  = 100
)

// MomentType classifies a qualified interval.
type MomentType string

const (
	// MomentStandard is a sustained interval of at least MinDuration.
	MomentStandard MomentType = "standard"

	// MomentInstant is a short, sharp interval: at least InstantMinDuration
	// with peak deviation of at least InstantEventDeviation.
	MomentInstant MomentType = "instant"
)

// Sample is the result of one signal update.
type Sample struct {
	Value  float64
	SMA10  float64
	SMA100 float64
}

// MomentEvent describes a qualified interval at its close.
type MomentEvent struct {
	Type          MomentType
	StartFrameID  string
	FrameIDs      []string
	StartedAt     time.Time
	EndedAt       time.Time
	PeakDeviation float64
}

// Duration returns the interval length.
func (e MomentEvent) Duration() time.Duration {
	return e.EndedAt.Sub(e.StartedAt)
}

// Callbacks receives state-machine transitions from CheckMoment.
// Any callback may be nil.
type Callbacks struct {
	// OnMomentStart fires at the inactive→active transition.
	OnMomentStart func()

	// OnMoment fires at the active→inactive transition when the interval
	// qualifies, before OnMomentEnd.
	OnMoment func(MomentEvent)

	// OnMomentEnd fires at every active→inactive transition; wasMoment
	// reports whether the interval qualified.
	OnMomentEnd func(wasMoment bool)
}

// DeviationState tracks one signal's position in the hysteresis machine.
// Invariant: aboveCount and belowCount are never both nonzero.
type DeviationState struct {
	Active        bool
	StartedAt     time.Time
	StartFrameID  string
	FrameIDs      []string
	PeakDeviation float64

	aboveCount int
	belowCount int
}

// window is a bounded ordered sample buffer.
type window struct {
	values []float64
	size   int
}

func (w *window) push(v float64) {
	w.values = append(w.values, v)
	if len(w.values) > w.size {
		w.values = w.values[1:]
	}
}

// mean returns the arithmetic mean of however many samples exist.
func (w *window) mean() float64 {
	if len(w.values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range w.values {
		sum += v
	}
	return sum / float64(len(w.values))
}

// track holds the rolling buffers and deviation state for one signal.
type track struct {
	short window
	long  window
	dev   DeviationState
	last  time.Time
}

// deviationRatio is the relative divergence of the short average from the
// long average, with the denominator floored at MinSMA100Threshold.
func (t *track) deviationRatio() float64 {
	sma10 := t.short.mean()
	sma100 := t.long.mean()
	return math.Abs(sma10-sma100) / math.Max(sma100, MinSMA100Threshold)
}

// StreamStats holds rolling statistics for all signals of one source.
// Not safe for concurrent use; the pipeline serializes access per source.
type StreamStats struct {
	signals map[string]*track
}

// New creates an empty StreamStats.
func New() *StreamStats {
	return &StreamStats{signals: make(map[string]*track)}
}

func (s *StreamStats) track(signal string) *track {
	t, ok := s.signals[signal]
	if !ok {
		t = &track{
			short: window{size: shortWindow},
			long:  window{size: longWindow},
		}
		s.signals[signal] = t
	}
	return t
}

// Update appends a sample to the named signal's rolling buffers and returns
// the current averages. Early on, the averages use however many samples exist.
func (s *StreamStats) Update(signal string, value float64, at time.Time) Sample {
	t := s.track(signal)
	t.short.push(value)
	t.long.push(value)
	t.last = at

	return Sample{
		Value:  value,
		SMA10:  t.short.mean(),
		SMA100: t.long.mean(),
	}
}

// CheckMoment advances the motion-energy hysteresis machine by one sample
// and invokes the matching callbacks. It must be called after Update for the
// same frame so the averages reflect the current sample.
func (s *StreamStats) CheckMoment(frameID string, at time.Time, cbs Callbacks) {
	t, ok := s.signals[SignalMotionEnergy]
	if !ok || len(t.long.values) == 0 {
		return
	}

	ratio := t.deviationRatio()
	deviating := ratio >= MinDeviationRatio

	dev := &t.dev
	if deviating {
		dev.aboveCount++
		dev.belowCount = 0
	} else {
		dev.belowCount++
		dev.aboveCount = 0
	}

	switch {
	case !dev.Active && deviating && dev.aboveCount >= StabilityBuffer:
		dev.Active = true
		dev.StartedAt = at
		dev.StartFrameID = frameID
		dev.FrameIDs = []string{frameID}
		dev.PeakDeviation = ratio
		if cbs.OnMomentStart != nil {
			cbs.OnMomentStart()
		}

	case dev.Active && deviating:
		dev.FrameIDs = append(dev.FrameIDs, frameID)
		if ratio > dev.PeakDeviation {
			dev.PeakDeviation = ratio
		}

	case dev.Active && !deviating && dev.belowCount >= StabilityBuffer:
		ev, qualified := classify(dev, at)
		above, below := dev.aboveCount, dev.belowCount
		*dev = DeviationState{aboveCount: above, belowCount: below}
		if qualified && cbs.OnMoment != nil {
			cbs.OnMoment(ev)
		}
		if cbs.OnMomentEnd != nil {
			cbs.OnMomentEnd(qualified)
		}
	}
}

// classify decides whether a closing interval qualifies as a moment.
func classify(dev *DeviationState, endedAt time.Time) (MomentEvent, bool) {
	duration := endedAt.Sub(dev.StartedAt)

	var typ MomentType
	switch {
	case duration >= MinDuration:
		typ = MomentStandard
	case duration >= InstantMinDuration && dev.PeakDeviation >= InstantEventDeviation:
		typ = MomentInstant
	default:
		return MomentEvent{}, false
	}

	frameIDs := make([]string, len(dev.FrameIDs))
	copy(frameIDs, dev.FrameIDs)

	return MomentEvent{
		Type:          typ,
		StartFrameID:  dev.StartFrameID,
		FrameIDs:      frameIDs,
		StartedAt:     dev.StartedAt,
		EndedAt:       endedAt,
		PeakDeviation: dev.PeakDeviation,
	}, true
}

// Deviation returns a copy of the named signal's deviation state. Intended
// for observability; mutating the copy has no effect.
func (s *StreamStats) Deviation(signal string) DeviationState {
	t, ok := s.signals[signal]
	if !ok {
		return DeviationState{}
	}
	return t.dev
}
