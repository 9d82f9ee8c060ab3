// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package engine

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// Worker types understood by the inference engine.
const (
	WorkerCaption      = "caption"
	WorkerEmbedding    = "embedding"
	WorkerSegmentation = "segmentation"
	WorkerMotionEnergy = "motion_energy"
	WorkerSummarize    = "summarize"
)

// ResourceTypeImage tags raw frame bytes in a batch.
const ResourceTypeImage = "image"

// CaptionInput asks a vision-language worker to describe a resource. Agent
// selects a configured custom agent; empty means the general captioner.
type CaptionInput struct {
	ResourceID string `json:"resource_id"`
	Prompt     string `json:"prompt,omitempty"`
	Agent      string `json:"agent,omitempty"`
}

// CaptionOutput is the worker's free-text description.
type CaptionOutput struct {
	Text string `json:"text"`
}

// EmbeddingInput asks for a vector embedding of a resource.
type EmbeddingInput struct {
	ResourceID string `json:"resource_id"`
}

// EmbeddingOutput carries the embedding vector.
type EmbeddingOutput struct {
	Vector []float64 `json:"vector"`
}

// SegmentationInput asks for segmentation over a fixed prompt set.
type SegmentationInput struct {
	ResourceID string   `json:"resource_id"`
	Prompts    []string `json:"prompts"`
}

// Segment is one detected region.
type Segment struct {
	Label string     `json:"label"`
	Score float64    `json:"score"`
	Box   [4]float64 `json:"box"`
	Mask  []byte     `json:"mask,omitempty"`
}

// SegmentationOutput carries the detected regions; the pipeline forwards
// them and extracts labels for the object-detection webhook event.
type SegmentationOutput struct {
	Segments []Segment `json:"segments"`
}

// MotionEnergyInput asks for a scalar motion-energy value for a frame.
type MotionEnergyInput struct {
	ResourceID string `json:"resource_id"`
}

// MotionEnergyOutput carries the scalar. Value is a pointer so a reply that
// omits it is distinguishable from a literal zero.
type MotionEnergyOutput struct {
	Value *float64 `json:"value"`
}

// SummarizeInput asks a vision-language worker for a strict-JSON summary of
// an event sketched by the referenced frames.
type SummarizeInput struct {
	ResourceIDs []string `json:"resource_ids"`
	Prompt      string   `json:"prompt"`
}

// SummarizeOutput is the raw model reply; parsing is lenient downstream.
type SummarizeOutput struct {
	Text string `json:"text"`
}

// SummarizePrompt is sent with every summarization job. Replies are still
// parsed leniently because models wrap the JSON in prose anyway.
const SummarizePrompt = `These images sketch the start, middle, and end of one event on a camera stream. ` +
	`Respond with strict JSON only: {"title": "<short title>", "description": "<one or two sentences>"}`

// DefaultSegmentationPrompts is the fixed prompt set for segmentation jobs.
var DefaultSegmentationPrompts = []string{"person", "vehicle", "animal", "package"}

// Decode unmarshals a reply's output into T. A reply carrying a tagged
// error decodes to an error instead.
func Decode[T any](r Reply) (T, error) {
	var out T
	if r.Failed() {
		return out, errors.New(r.Error)
	}
	if len(r.Output) == 0 {
		return out, fmt.Errorf("job %s: empty output", r.JobID)
	}
	if err := json.Unmarshal(r.Output, &out); err != nil {
		return out, fmt.Errorf("job %s: decode output: %w", r.JobID, err)
	}
	return out, nil
}
