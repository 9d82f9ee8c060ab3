// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

type mockPublisher struct {
	sent [][]byte
	err  error
}

func (m *mockPublisher) PublishRequest(_ context.Context, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, data)
	return nil
}

func TestSendWithoutJobsIsNoOp(t *testing.T) {
	pub := &mockPublisher{}
	b := NewBatch(pub, NewRegistry(time.Minute))

	b.AddResource("frame-1", ResourceTypeImage, []byte{0xFF})
	if err := b.Send(context.Background()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(pub.sent) != 0 {
		t.Fatal("resources alone were transmitted")
	}
}

func TestSendEncodesResourcesAndJobs(t *testing.T) {
	pub := &mockPublisher{}
	reg := NewRegistry(time.Minute)
	b := NewBatch(pub, reg)

	b.AddResource("frame-1", ResourceTypeImage, []byte{1, 2, 3})
	f1, err := b.AddJob(WorkerCaption, CaptionInput{ResourceID: "frame-1"})
	if err != nil {
		t.Fatalf("AddJob caption: %v", err)
	}
	f2, err := b.AddJob(WorkerEmbedding, EmbeddingInput{ResourceID: "frame-1"})
	if err != nil {
		t.Fatalf("AddJob embedding: %v", err)
	}
	if f1 == f2 {
		t.Fatal("jobs share a future")
	}

	if err := b.Send(context.Background()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(pub.sent) != 1 {
		t.Fatalf("sent %d requests, want 1", len(pub.sent))
	}

	var req BatchRequest
	if err := json.Unmarshal(pub.sent[0], &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if len(req.Resources) != 1 || req.Resources[0].ID != "frame-1" {
		t.Fatalf("resources = %+v", req.Resources)
	}
	if len(req.Jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(req.Jobs))
	}
	if req.Jobs[0].WorkerType != WorkerCaption || req.Jobs[1].WorkerType != WorkerEmbedding {
		t.Fatalf("worker types = %s, %s", req.Jobs[0].WorkerType, req.Jobs[1].WorkerType)
	}
	if req.Jobs[0].JobID == req.Jobs[1].JobID {
		t.Fatal("job ids collide")
	}
	if reg.Len() != 2 {
		t.Fatalf("registry len = %d, want 2", reg.Len())
	}

	// Each future resolves with its own reply.
	reg.Resolve(Reply{JobID: req.Jobs[0].JobID, Output: json.RawMessage(`{"text":"a dog"}`)})
	reply, err := f1.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	out, err := Decode[CaptionOutput](reply)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Text != "a dog" {
		t.Fatalf("caption = %q", out.Text)
	}
}

func TestSendFailureResolvesFutures(t *testing.T) {
	pub := &mockPublisher{err: errors.New("broker unreachable")}
	reg := NewRegistry(time.Minute)
	b := NewBatch(pub, reg)

	f, err := b.AddJob(WorkerMotionEnergy, MotionEnergyInput{ResourceID: "frame-1"})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := b.Send(context.Background()); err == nil {
		t.Fatal("Send succeeded against failing publisher")
	}

	reply, err := f.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !reply.Failed() {
		t.Fatal("future not resolved with the publish error")
	}
	if reg.Len() != 0 {
		t.Fatalf("registry len = %d after failed send", reg.Len())
	}
}

func TestDecodeTaggedError(t *testing.T) {
	_, err := Decode[SegmentationOutput](Reply{JobID: "j", Error: "model overloaded"})
	if err == nil || err.Error() != "model overloaded" {
		t.Fatalf("err = %v", err)
	}
}

func TestDecodeMissingMotionValue(t *testing.T) {
	out, err := Decode[MotionEnergyOutput](Reply{JobID: "j", Output: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Value != nil {
		t.Fatalf("value = %v, want nil for omitted field", *out.Value)
	}
}
