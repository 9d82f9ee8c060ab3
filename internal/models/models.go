// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

// Package models defines the persisted entities of the Framesight pipeline:
// detected moments, captured media units, and custom-agent responses.
package models

import (
	"time"

	"github.com/google/uuid"
)

// MomentType classifies a detected moment.
type MomentType string

const (
	// MomentStandard is a sustained activity interval (>= 10s).
	MomentStandard MomentType = "standard"

	// MomentInstant is a short, sharp interval (1-10s with a high peak).
	MomentInstant MomentType = "instant"
)

// Moment represents one classified activity event on a stream.
//
// A row is created exactly once, when the deviation state machine closes a
// qualifying interval. Two collaborators mutate it later, independently of
// each other:
//   - the recording subsystem back-fills ClipPath once a clip file is saved
//   - the summarization job back-fills Title and Description
//
// Either back-fill can fail or never arrive; the row is still valid with
// those fields null. Moments are never deleted by the pipeline.
type Moment struct {
	ID            uuid.UUID  `json:"id"`
	MediaID       string     `json:"media_id"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	PeakDeviation float64    `json:"peak_deviation"`
	Type          MomentType `json:"type"`
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	ClipPath      *string    `json:"clip_path,omitempty"`
	ThumbnailPath *string    `json:"thumbnail_path,omitempty"`
}

// MediaUnitFrame is the media unit type for raw captured frames.
const MediaUnitFrame = "frame"

// MediaUnit is one captured frame or derived artifact.
//
// Created when the indexing policy persists a frame; Description and
// Embedding are back-filled asynchronously by caption and embedding job
// continuations, which may land in any order relative to later frames.
type MediaUnit struct {
	ID          uuid.UUID `json:"id"`
	MediaID     string    `json:"media_id"`
	AtTime      time.Time `json:"at_time"`
	Description *string   `json:"description,omitempty"`
	Embedding   []byte    `json:"-"`
	Path        string    `json:"path"`
	Type        string    `json:"type"`
}

// AgentResponse is one custom agent's answer about a captured frame.
// General captions update the MediaUnit row directly; per-agent captions
// each get their own row so agents never overwrite one another.
type AgentResponse struct {
	ID          uuid.UUID `json:"id"`
	MediaUnitID uuid.UUID `json:"media_unit_id"`
	Agent       string    `json:"agent"`
	Response    string    `json:"response"`
	CreatedAt   time.Time `json:"created_at"`
}
