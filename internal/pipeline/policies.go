// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/framesight/internal/engine"
	"github.com/tomtom215/framesight/internal/ingest"
	"github.com/tomtom215/framesight/internal/logging"
	"github.com/tomtom215/framesight/internal/models"
)

// Policy cadence. Like the detection thresholds these are fixed: the motion
// cadence sets the moment state machine's sampling rate and the others are
// tuned against inference-engine throughput.
const (
	indexingInterval     = 3000 * time.Millisecond
	segmentationInterval = 3000 * time.Millisecond
	motionInterval       = 1000 * time.Millisecond

	// indexingStaleAfter forces a capture for quiet streams so their index
	// never goes completely dark between moments.
	indexingStaleAfter = 60 * time.Second
)

// foreverAgo stands in for "never ran" when computing time since last run.
const foreverAgo = time.Duration(1<<63 - 1)

// frameContext carries one frame through the policy table. Policies share a
// single batch so the engine receives at most one request per frame, and
// share the frame resource so its bytes are encoded at most once.
type frameContext struct {
	p        *Pipeline
	msg      ingest.FrameMessage
	inMoment bool

	batch         *engine.Batch
	resourceAdded bool
}

// resourceID registers the frame bytes as a batch resource on first use and
// returns the shared resource ID.
func (fc *frameContext) resourceID() string {
	if !fc.resourceAdded {
		fc.batch.AddResource(fc.msg.FrameID, engine.ResourceTypeImage, fc.msg.Data)
		fc.resourceAdded = true
	}
	return fc.msg.FrameID
}

// policy is one row of the scheduling table. shouldRun is evaluated under
// the source lock, after the interval gate has already passed.
type policy struct {
	name      string
	interval  time.Duration
	shouldRun func(fc *frameContext, sinceLast time.Duration) bool
	run       func(ctx context.Context, fc *frameContext)
}

func defaultPolicies() []policy {
	return []policy{
		{
			name:     "indexing",
			interval: indexingInterval,
			shouldRun: func(fc *frameContext, sinceLast time.Duration) bool {
				return fc.inMoment || sinceLast > indexingStaleAfter
			},
			run: runIndexing,
		},
		{
			name:     "segmentation",
			interval: segmentationInterval,
			shouldRun: func(*frameContext, time.Duration) bool { return true },
			run:       runSegmentation,
		},
		{
			name:     "motion_energy",
			interval: motionInterval,
			shouldRun: func(*frameContext, time.Duration) bool { return true },
			run:       runMotion,
		},
	}
}

// runIndexing persists the frame to disk and the database, then requests a
// general caption, one caption per configured agent, and an embedding. The
// continuations back-fill the media unit row as replies arrive.
func runIndexing(ctx context.Context, fc *frameContext) {
	p := fc.p
	unitID := uuid.New()

	path, err := p.writeFrame(unitID, fc.msg.Data)
	if err != nil {
		logging.Err(err).
			Str("source_id", fc.msg.SourceID).
			Str("frame_id", fc.msg.FrameID).
			Msg("Failed to persist frame file")
		return
	}

	unit := &models.MediaUnit{
		ID:      unitID,
		MediaID: fc.msg.SourceID,
		AtTime:  fc.msg.Timestamp,
		Path:    path,
		Type:    models.MediaUnitFrame,
	}
	if err := p.store.InsertMediaUnit(ctx, unit); err != nil {
		logging.Err(err).
			Str("source_id", fc.msg.SourceID).
			Str("media_unit_id", unitID.String()).
			Msg("Failed to insert media unit")
		return
	}

	rid := fc.resourceID()
	bg := context.WithoutCancel(ctx)

	if fut, err := fc.batch.AddJob(engine.WorkerCaption, engine.CaptionInput{ResourceID: rid}); err == nil {
		go p.onCaption(bg, fut, fc.msg.SourceID, unitID, "")
	} else {
		logging.Err(err).Str("worker", engine.WorkerCaption).Msg("Failed to enqueue job")
	}

	for _, agent := range p.cfg.CustomAgents {
		fut, err := fc.batch.AddJob(engine.WorkerCaption, engine.CaptionInput{ResourceID: rid, Agent: agent})
		if err != nil {
			logging.Err(err).Str("agent", agent).Msg("Failed to enqueue agent caption")
			continue
		}
		go p.onCaption(bg, fut, fc.msg.SourceID, unitID, agent)
	}

	if fut, err := fc.batch.AddJob(engine.WorkerEmbedding, engine.EmbeddingInput{ResourceID: rid}); err == nil {
		go p.onEmbedding(bg, fut, unitID)
	} else {
		logging.Err(err).Str("worker", engine.WorkerEmbedding).Msg("Failed to enqueue job")
	}
}

// runSegmentation requests segmentation over the default prompt set. Output
// is forwarded, never persisted.
func runSegmentation(ctx context.Context, fc *frameContext) {
	fut, err := fc.batch.AddJob(engine.WorkerSegmentation, engine.SegmentationInput{
		ResourceID: fc.resourceID(),
		Prompts:    engine.DefaultSegmentationPrompts,
	})
	if err != nil {
		logging.Err(err).Str("worker", engine.WorkerSegmentation).Msg("Failed to enqueue job")
		return
	}
	go fc.p.onSegmentation(context.WithoutCancel(ctx), fut, fc.msg.SourceID, fc.msg.FrameID)
}

// runMotion requests the motion-energy measurement that feeds the moment
// state machine.
func runMotion(ctx context.Context, fc *frameContext) {
	fut, err := fc.batch.AddJob(engine.WorkerMotionEnergy, engine.MotionEnergyInput{ResourceID: fc.resourceID()})
	if err != nil {
		logging.Err(err).Str("worker", engine.WorkerMotionEnergy).Msg("Failed to enqueue job")
		return
	}
	go fc.p.onMotion(context.WithoutCancel(ctx), fut, fc.msg.SourceID, fc.msg.FrameID, fc.msg.Timestamp)
}

// writeFrame stores raw frame bytes under the media directory.
func (p *Pipeline) writeFrame(unitID uuid.UUID, data []byte) (string, error) {
	dir := filepath.Join(p.mediaDir, "frames")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}
	path := filepath.Join(dir, unitID.String()+".jpg")
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", err
	}
	return path, nil
}
