// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"

	"github.com/tomtom215/framesight/internal/logging"
	"github.com/tomtom215/framesight/internal/models"
	"github.com/tomtom215/framesight/internal/store"
	"github.com/tomtom215/framesight/internal/websocket"
)

const defaultMomentsLimit = 50

// MomentStore is the read surface exposed over HTTP.
type MomentStore interface {
	GetMoment(ctx context.Context, id uuid.UUID) (*models.Moment, error)
	ListMoments(ctx context.Context, mediaID string, limit int) ([]*models.Moment, error)
	GetMediaUnit(ctx context.Context, id uuid.UUID) (*models.MediaUnit, error)
}

// StreamCommander controls ingestion-worker streams.
type StreamCommander interface {
	StartStream(ctx context.Context, sourceID string) error
	StopStream(ctx context.Context, sourceID string) error
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	store    MomentStore
	commands StreamCommander
	hub      *websocket.Hub
	upgrader gorilla.Upgrader
}

// NewHandlers creates the handler set.
func NewHandlers(store MomentStore, commands StreamCommander, hub *websocket.Hub) *Handlers {
	return &Handlers{
		store:    store,
		commands: commands,
		hub:      hub,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browsers connect from the dashboard origin, native viewers
			// send no Origin header at all.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, map[string]interface{}{
		"status":  "ok",
		"clients": h.hub.ClientCount(),
	})
}

// WebSocket upgrades the connection and registers the client with the hub.
// ?ephemeral=true additionally subscribes the session to stream passthrough
// messages (frames, codec parameters, stream end).
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	ephemeral := r.URL.Query().Get("ephemeral") == "true"

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Err(err).Str("remote", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.hub, conn, ephemeral)
	h.hub.Register <- client
	client.Start()
}

// StartStream instructs the ingestion worker to begin a source's stream.
func (h *Handlers) StartStream(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")
	if sourceID == "" {
		WriteBadRequest(w, "source ID is required")
		return
	}
	if err := h.commands.StartStream(r.Context(), sourceID); err != nil {
		logging.Err(err).Str("source_id", sourceID).Msg("Failed to publish start command")
		WriteInternalError(w, "failed to start stream")
		return
	}
	WriteSuccess(w, map[string]string{"source_id": sourceID, "state": "starting"})
}

// StopStream instructs the ingestion worker to stop a source's stream.
func (h *Handlers) StopStream(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")
	if sourceID == "" {
		WriteBadRequest(w, "source ID is required")
		return
	}
	if err := h.commands.StopStream(r.Context(), sourceID); err != nil {
		logging.Err(err).Str("source_id", sourceID).Msg("Failed to publish stop command")
		WriteInternalError(w, "failed to stop stream")
		return
	}
	WriteSuccess(w, map[string]string{"source_id": sourceID, "state": "stopping"})
}

// ListMoments returns detected moments, newest first. ?media_id filters by
// source, ?limit caps the result set.
func (h *Handlers) ListMoments(w http.ResponseWriter, r *http.Request) {
	limit := defaultMomentsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	out, err := h.store.ListMoments(r.Context(), r.URL.Query().Get("media_id"), limit)
	if err != nil {
		WriteDatabaseError(w, err)
		return
	}
	WriteSuccess(w, out)
}

// GetMoment returns one moment by ID.
func (h *Handlers) GetMoment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteBadRequest(w, "invalid moment ID")
		return
	}
	m, err := h.store.GetMoment(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "moment not found")
			return
		}
		WriteDatabaseError(w, err)
		return
	}
	WriteSuccess(w, m)
}

// GetMediaUnit returns one indexed frame record by ID.
func (h *Handlers) GetMediaUnit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteBadRequest(w, "invalid media unit ID")
		return
	}
	u, err := h.store.GetMediaUnit(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "media unit not found")
			return
		}
		WriteDatabaseError(w, err)
		return
	}
	WriteSuccess(w, u)
}
