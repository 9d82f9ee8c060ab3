// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package engine

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/framesight/internal/metrics"
)

// Publisher sends one encoded batch request. Implemented by the Client;
// narrowed to an interface so batches are testable without a broker.
type Publisher interface {
	PublishRequest(ctx context.Context, data []byte) error
}

// Batch accumulates resources and jobs for one dispatch. A batch belongs to
// a single frame-handling pass and is not safe for concurrent use.
type Batch struct {
	publisher Publisher
	registry  *Registry
	req       BatchRequest
	futures   map[string]*Future
}

// NewBatch creates an empty batch publishing through p and registering
// pending jobs in r.
func NewBatch(p Publisher, r *Registry) *Batch {
	return &Batch{
		publisher: p,
		registry:  r,
		futures:   make(map[string]*Future),
	}
}

// AddResource attaches a binary payload jobs can reference by id.
func (b *Batch) AddResource(id, typ string, data []byte) {
	b.req.Resources = append(b.req.Resources, Resource{ID: id, Type: typ, Data: data})
}

// AddJob appends a job for workerType, registers its pending entry, and
// returns the future that resolves when the matching reply arrives.
func (b *Batch) AddJob(workerType string, input any) (*Future, error) {
	encoded, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode %s input: %w", workerType, err)
	}

	jobID := uuid.NewString()
	future := b.registry.Register(jobID)
	b.futures[jobID] = future
	b.req.Jobs = append(b.req.Jobs, Job{
		JobID:      jobID,
		WorkerType: workerType,
		Input:      encoded,
	})

	metrics.JobsDispatched.WithLabelValues(workerType).Inc()
	return future, nil
}

// Len reports how many jobs the batch holds.
func (b *Batch) Len() int {
	return len(b.req.Jobs)
}

// Send transmits the accumulated resources and jobs as one request. A batch
// without jobs is a no-op: resources alone are never sent. On publish
// failure every registered future resolves immediately with the error so
// continuations never wait out the TTL for a request that never left.
func (b *Batch) Send(ctx context.Context) error {
	if len(b.req.Jobs) == 0 {
		return nil
	}

	data, err := json.Marshal(b.req)
	if err == nil {
		err = b.publisher.PublishRequest(ctx, data)
	}
	if err != nil {
		for jobID := range b.futures {
			b.registry.Resolve(Reply{JobID: jobID, Error: err.Error()})
		}
		return fmt.Errorf("send batch of %d jobs: %w", len(b.req.Jobs), err)
	}
	return nil
}
