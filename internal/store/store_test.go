// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/framesight/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemory()
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestMomentLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	m := &models.Moment{
		ID:            uuid.New(),
		MediaID:       "cam1",
		StartTime:     start,
		EndTime:       start.Add(12 * time.Second),
		PeakDeviation: 0.82,
		Type:          models.MomentStandard,
	}
	if err := s.InsertMoment(ctx, m); err != nil {
		t.Fatalf("InsertMoment: %v", err)
	}

	got, err := s.GetMoment(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMoment: %v", err)
	}
	if got.MediaID != "cam1" || got.Type != models.MomentStandard {
		t.Fatalf("row = %+v", got)
	}
	if got.Title != nil || got.Description != nil || got.ClipPath != nil {
		t.Fatalf("new moment has non-null back-fill fields: %+v", got)
	}
	if !got.StartTime.Equal(start) {
		t.Fatalf("start_time = %v, want %v", got.StartTime, start)
	}

	// The two back-fills are independent and may land in any order.
	if err := s.UpdateMomentClipPath(ctx, m.ID, "/media/clips/a.mp4"); err != nil {
		t.Fatalf("UpdateMomentClipPath: %v", err)
	}
	if err := s.UpdateMomentSummary(ctx, m.ID, "Person at door", "A person approaches."); err != nil {
		t.Fatalf("UpdateMomentSummary: %v", err)
	}

	got, err = s.GetMoment(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMoment after updates: %v", err)
	}
	if got.Title == nil || *got.Title != "Person at door" {
		t.Fatalf("title = %v", got.Title)
	}
	if got.ClipPath == nil || *got.ClipPath != "/media/clips/a.mp4" {
		t.Fatalf("clip_path = %v", got.ClipPath)
	}
}

func TestUpdateMissingMomentReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.UpdateMomentSummary(ctx, uuid.New(), "t", "d")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetMoment(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get err = %v, want ErrNotFound", err)
	}
}

func TestListMomentsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		m := &models.Moment{
			ID:        uuid.New(),
			MediaID:   "cam1",
			StartTime: base.Add(time.Duration(i) * time.Hour),
			EndTime:   base.Add(time.Duration(i)*time.Hour + 15*time.Second),
			Type:      models.MomentStandard,
		}
		if err := s.InsertMoment(ctx, m); err != nil {
			t.Fatalf("InsertMoment %d: %v", i, err)
		}
	}
	other := &models.Moment{ID: uuid.New(), MediaID: "cam2", StartTime: base, EndTime: base, Type: models.MomentInstant}
	if err := s.InsertMoment(ctx, other); err != nil {
		t.Fatalf("InsertMoment other: %v", err)
	}

	got, err := s.ListMoments(ctx, "cam1", 2)
	if err != nil {
		t.Fatalf("ListMoments: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !got[0].StartTime.After(got[1].StartTime) {
		t.Fatalf("not newest first: %v, %v", got[0].StartTime, got[1].StartTime)
	}
	for _, m := range got {
		if m.MediaID != "cam1" {
			t.Fatalf("foreign source in result: %s", m.MediaID)
		}
	}
}

func TestMediaUnitBackfills(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &models.MediaUnit{
		ID:      uuid.New(),
		MediaID: "cam1",
		AtTime:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Path:    "/media/frames/f1.jpg",
		Type:    "frame",
	}
	if err := s.InsertMediaUnit(ctx, u); err != nil {
		t.Fatalf("InsertMediaUnit: %v", err)
	}

	if err := s.UpdateMediaUnitDescription(ctx, u.ID, "a cat on the porch"); err != nil {
		t.Fatalf("UpdateMediaUnitDescription: %v", err)
	}
	embedding := []byte{0, 0, 128, 63, 0, 0, 0, 64}
	if err := s.UpdateMediaUnitEmbedding(ctx, u.ID, embedding); err != nil {
		t.Fatalf("UpdateMediaUnitEmbedding: %v", err)
	}

	got, err := s.GetMediaUnit(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetMediaUnit: %v", err)
	}
	if got.Description == nil || *got.Description != "a cat on the porch" {
		t.Fatalf("description = %v", got.Description)
	}
	if len(got.Embedding) != len(embedding) {
		t.Fatalf("embedding = %v", got.Embedding)
	}
}

func TestInsertAgentResponse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	unitID := uuid.New()
	r := &models.AgentResponse{
		ID:          uuid.New(),
		MediaUnitID: unitID,
		Agent:       "package-watcher",
		Response:    "no packages visible",
		CreatedAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := s.InsertAgentResponse(ctx, r); err != nil {
		t.Fatalf("InsertAgentResponse: %v", err)
	}
}
