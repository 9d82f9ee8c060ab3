// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/framesight/internal/logging"
	"github.com/tomtom215/framesight/internal/metrics"
)

// ErrExpired resolves futures whose job never received a reply within the
// registry TTL.
var ErrExpired = errors.New("job expired without reply")

// Future is the read side of one pending job. It is resolved exactly once:
// by the first matching reply, by TTL expiry, or by a failed dispatch.
type Future struct {
	ch chan Reply
}

func newFuture() *Future {
	return &Future{ch: make(chan Reply, 1)}
}

// Wait blocks until the future resolves or ctx is done. An expired or
// failed-dispatch job resolves with a Reply whose Error is set.
func (f *Future) Wait(ctx context.Context) (Reply, error) {
	select {
	case r := <-f.ch:
		return r, nil
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

// Done exposes the resolution channel for select-based consumers. The
// channel delivers exactly one Reply and is never closed.
func (f *Future) Done() <-chan Reply {
	return f.ch
}

type pendingJob struct {
	future    *Future
	expiresAt time.Time
}

// Registry is the process-wide correlation table from job id to pending
// future. Entries are removed exactly once: by Resolve on the first matching
// reply, or by the TTL sweep. A reply for an id no longer present is a
// silent no-op (counted, not acted on).
type Registry struct {
	mu      sync.Mutex
	pending map[string]*pendingJob
	ttl     time.Duration
}

// NewRegistry creates a registry expiring unanswered jobs after ttl.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		pending: make(map[string]*pendingJob),
		ttl:     ttl,
	}
}

// Register creates a pending entry for jobID and returns its future.
func (r *Registry) Register(jobID string) *Future {
	f := newFuture()

	r.mu.Lock()
	r.pending[jobID] = &pendingJob{
		future:    f,
		expiresAt: time.Now().Add(r.ttl),
	}
	n := len(r.pending)
	r.mu.Unlock()

	metrics.JobsPending.Set(float64(n))
	return f
}

// Resolve delivers a reply to its pending future and removes the entry.
// Reports whether a pending job matched; duplicate or late replies return
// false and have no other effect.
func (r *Registry) Resolve(reply Reply) bool {
	r.mu.Lock()
	p, ok := r.pending[reply.JobID]
	if ok {
		delete(r.pending, reply.JobID)
	}
	n := len(r.pending)
	r.mu.Unlock()

	metrics.JobsPending.Set(float64(n))
	if !ok {
		metrics.RepliesUnmatched.Inc()
		logging.Debug().
			Str("job_id", reply.JobID).
			Msg("Reply for unknown or already-resolved job dropped")
		return false
	}

	p.future.ch <- reply
	return true
}

// Expire removes entries past their deadline as of now and resolves their
// futures with ErrExpired. Returns the number of jobs expired.
func (r *Registry) Expire(now time.Time) int {
	r.mu.Lock()
	var expired []*pendingJob
	var ids []string
	for id, p := range r.pending {
		if now.After(p.expiresAt) {
			expired = append(expired, p)
			ids = append(ids, id)
			delete(r.pending, id)
		}
	}
	n := len(r.pending)
	r.mu.Unlock()

	metrics.JobsPending.Set(float64(n))
	for i, p := range expired {
		metrics.JobsExpired.Inc()
		logging.Warn().Str("job_id", ids[i]).Msg("Pending job expired without reply")
		p.future.ch <- Reply{JobID: ids[i], Error: ErrExpired.Error()}
	}
	return len(expired)
}

// Sweep expires stale jobs at the given interval until ctx is done.
func (r *Registry) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Expire(now)
		}
	}
}

// Len reports how many jobs are pending.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
