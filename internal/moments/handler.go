// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package moments

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/tomtom215/framesight/internal/logging"
	"github.com/tomtom215/framesight/internal/metrics"
	"github.com/tomtom215/framesight/internal/models"
	"github.com/tomtom215/framesight/internal/stats"
)

// summarizeAttempts bounds the retry loop for unparsable summarization
// replies. After the last attempt the moment keeps null title/description.
const summarizeAttempts = 3

// Store persists moments. Implemented by the DuckDB store.
type Store interface {
	InsertMoment(ctx context.Context, m *models.Moment) error
	UpdateMomentSummary(ctx context.Context, id uuid.UUID, title, description string) error
}

// Summarizer runs one vision-language summarization request over the
// buffered frames and returns the raw model reply. Implemented by the
// engine client.
type Summarizer interface {
	Summarize(ctx context.Context, frames []Frame) (string, error)
}

// Handler drives the lifecycle of a qualified moment: thumbnail capture,
// row persistence, and the summarization back-fill.
type Handler struct {
	store      Store
	summarizer Summarizer
	mediaDir   string
}

// NewHandler creates a lifecycle handler writing thumbnails under mediaDir.
func NewHandler(store Store, summarizer Summarizer, mediaDir string) *Handler {
	return &Handler{store: store, summarizer: summarizer, mediaDir: mediaDir}
}

// HandleMoment processes one qualified moment event for sourceID.
//
// Ordering matters here: the thumbnail and row are written first so the
// moment exists even if summarization never succeeds, and the frame buffer
// is cleared only after a summarization attempt was dispatched (or there was
// nothing to summarize). If the row insert fails the buffer is left intact
// and the moment is dropped.
func (h *Handler) HandleMoment(ctx context.Context, sourceID string, momentID uuid.UUID, ev stats.MomentEvent, buf *FrameBuffer) {
	m := &models.Moment{
		ID:            momentID,
		MediaID:       sourceID,
		StartTime:     ev.StartedAt,
		EndTime:       ev.EndedAt,
		PeakDeviation: ev.PeakDeviation,
		Type:          models.MomentType(ev.Type),
	}

	if mid, ok := buf.Middle(); ok {
		if path, err := h.writeThumbnail(momentID, mid); err != nil {
			logging.Err(err).
				Str("source_id", sourceID).
				Str("moment_id", momentID.String()).
				Msg("Failed to write moment thumbnail")
		} else {
			m.ThumbnailPath = &path
		}
	}

	if err := h.store.InsertMoment(ctx, m); err != nil {
		metrics.MomentPersistFailures.Inc()
		logging.Err(err).
			Str("source_id", sourceID).
			Str("moment_id", momentID.String()).
			Msg("Failed to persist moment")
		return
	}
	metrics.MomentsDetected.WithLabelValues(string(ev.Type)).Inc()

	logging.Info().
		Str("source_id", sourceID).
		Str("moment_id", momentID.String()).
		Str("type", string(ev.Type)).
		Dur("duration", ev.Duration()).
		Float64("peak_deviation", ev.PeakDeviation).
		Int("buffered_frames", buf.Len()).
		Msg("Moment persisted")

	if buf.Len() > 0 {
		h.summarize(ctx, sourceID, momentID, buf.Frames())
	}
	buf.Clear()
}

// summarize runs the bounded retry loop over the summarization request.
// Both request failures and unparsable replies consume an attempt.
func (h *Handler) summarize(ctx context.Context, sourceID string, momentID uuid.UUID, frames []Frame) {
	for attempt := 1; attempt <= summarizeAttempts; attempt++ {
		raw, err := h.summarizer.Summarize(ctx, frames)
		if err != nil {
			logging.Warn().
				Err(err).
				Str("moment_id", momentID.String()).
				Int("attempt", attempt).
				Msg("Summarization request failed")
			continue
		}

		summary, err := ExtractSummary(raw)
		if err != nil {
			logging.Warn().
				Err(err).
				Str("moment_id", momentID.String()).
				Int("attempt", attempt).
				Msg("Summarization reply unparsable")
			continue
		}

		if err := h.store.UpdateMomentSummary(ctx, momentID, summary.Title, summary.Description); err != nil {
			logging.Err(err).
				Str("moment_id", momentID.String()).
				Msg("Failed to store moment summary")
			return
		}

		logging.Debug().
			Str("source_id", sourceID).
			Str("moment_id", momentID.String()).
			Str("title", summary.Title).
			Msg("Moment summarized")
		return
	}

	metrics.SummariesFailed.Inc()
	logging.Error().
		Str("moment_id", momentID.String()).
		Int("attempts", summarizeAttempts).
		Msg("Summarization exhausted retries, moment left untitled")
}

func (h *Handler) writeThumbnail(momentID uuid.UUID, frame Frame) (string, error) {
	if err := os.MkdirAll(h.mediaDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(h.mediaDir, momentID.String()+".jpg")
	if err := os.WriteFile(path, frame.Data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
