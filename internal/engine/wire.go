// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

// Package engine talks to the external inference engine: it batches jobs
// with their binary resources into one request, and correlates asynchronous
// replies back to pending jobs by job id.
package engine

import (
	json "github.com/goccy/go-json"
)

// Resource is a binary payload (typically image bytes) referenced by id
// from one or more jobs in the same batch.
type Resource struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data []byte `json:"data"`
}

// Job is one unit of inference work.
type Job struct {
	JobID      string          `json:"job_id"`
	WorkerType string          `json:"worker_type"`
	Input      json.RawMessage `json:"input"`
}

// BatchRequest is the single message sent to the engine per dispatch.
// Resources are shared across jobs so an image referenced by several jobs
// travels once.
type BatchRequest struct {
	Resources []Resource `json:"resources"`
	Jobs      []Job      `json:"jobs"`
}

// Reply is the engine's answer to one job. Exactly one of Output or Error
// is meaningful; a non-empty Error marks the tagged error variant.
type Reply struct {
	JobID  string          `json:"job_id"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Failed reports whether the reply carries the tagged error variant.
func (r Reply) Failed() bool {
	return r.Error != ""
}
