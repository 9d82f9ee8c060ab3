// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package engine

import (
	"context"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func TestResolveDeliversExactlyOnce(t *testing.T) {
	r := NewRegistry(time.Minute)
	f := r.Register("job-1")

	if !r.Resolve(Reply{JobID: "job-1", Output: json.RawMessage(`{"text":"hi"}`)}) {
		t.Fatal("first reply did not match the pending job")
	}

	reply, err := f.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if reply.Failed() {
		t.Fatalf("reply failed: %s", reply.Error)
	}
	if string(reply.Output) != `{"text":"hi"}` {
		t.Fatalf("output = %s", reply.Output)
	}
	if r.Len() != 0 {
		t.Fatalf("registry len = %d after resolve", r.Len())
	}
}

func TestDuplicateReplyIsNoOp(t *testing.T) {
	r := NewRegistry(time.Minute)
	f := r.Register("job-1")

	r.Resolve(Reply{JobID: "job-1", Output: json.RawMessage(`1`)})
	if r.Resolve(Reply{JobID: "job-1", Output: json.RawMessage(`2`)}) {
		t.Fatal("duplicate reply matched a job")
	}

	reply, _ := f.Wait(context.Background())
	if string(reply.Output) != `1` {
		t.Fatalf("future observed the duplicate: %s", reply.Output)
	}

	select {
	case extra := <-f.Done():
		t.Fatalf("future resolved twice: %+v", extra)
	default:
	}
}

func TestReplyForUnknownJobIsNoOp(t *testing.T) {
	r := NewRegistry(time.Minute)
	if r.Resolve(Reply{JobID: "never-registered"}) {
		t.Fatal("unknown job id matched")
	}
}

func TestExpireResolvesWithError(t *testing.T) {
	r := NewRegistry(50 * time.Millisecond)
	f := r.Register("job-1")

	if n := r.Expire(time.Now()); n != 0 {
		t.Fatalf("expired %d jobs before the deadline", n)
	}
	if n := r.Expire(time.Now().Add(time.Second)); n != 1 {
		t.Fatalf("expired %d jobs, want 1", n)
	}

	reply, err := f.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if reply.Error != ErrExpired.Error() {
		t.Fatalf("error = %q, want %q", reply.Error, ErrExpired)
	}

	// The expired entry is gone; a late reply is now a no-op.
	if r.Resolve(Reply{JobID: "job-1"}) {
		t.Fatal("late reply matched an expired job")
	}
}

func TestWaitHonorsContext(t *testing.T) {
	r := NewRegistry(time.Minute)
	f := r.Register("job-1")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := f.Wait(ctx); err != context.DeadlineExceeded {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
