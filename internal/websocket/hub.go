// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

// Package websocket fans pipeline output out to connected UI sessions: raw
// stream passthrough, per-frame statistics, segmentation results, and
// caption/agent cards.
package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/framesight/internal/logging"
	"github.com/tomtom215/framesight/internal/metrics"
)

// Message types for client communication.
const (
	MessageTypeFrame        = "frame"
	MessageTypeCodec        = "codec"
	MessageTypeEnded        = "ended"
	MessageTypeFrameStats   = "frame_stats"
	MessageTypeSegmentation = "segmentation"
	MessageTypeDescription  = "description"
	MessageTypeAgentCard    = "agent_card"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
)

// Message is one client-bound envelope. Ephemeral marks stream-passthrough
// messages (frame/codec/ended) delivered only to sessions that subscribed to
// the live stream; it never crosses the wire itself.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`

	Ephemeral bool `json:"-"`
}

// FrameStatsData is the per-frame statistics payload. A capped backlog of
// these is replayed to newly connecting clients so charts start populated.
type FrameStatsData struct {
	SourceID  string  `json:"source_id"`
	FrameID   string  `json:"frame_id"`
	Value     float64 `json:"value"`
	SMA10     float64 `json:"sma10"`
	SMA100    float64 `json:"sma100"`
	InMoment  bool    `json:"in_moment"`
	Timestamp string  `json:"timestamp"`
}

// DescriptionData carries a general caption for a captured frame.
type DescriptionData struct {
	SourceID    string `json:"source_id"`
	MediaUnitID string `json:"media_unit_id"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

// AgentCardData carries one custom agent's response for a captured frame.
type AgentCardData struct {
	SourceID    string `json:"source_id"`
	MediaUnitID string `json:"media_unit_id"`
	Agent       string `json:"agent"`
	Response    string `json:"response"`
	Timestamp   string `json:"timestamp"`
}

// SegmentationData forwards segmentation output untouched.
type SegmentationData struct {
	SourceID string      `json:"source_id"`
	FrameID  string      `json:"frame_id"`
	Segments interface{} `json:"segments"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	// backlog holds the most recent frame_stats messages, replayed to
	// newly registering clients. Bounded by backlogCap.
	backlog    []Message
	backlogCap int
}

// NewHub creates a hub replaying at most backlogCap frame-stats messages to
// new clients.
func NewHub(backlogCap int) *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		backlogCap: backlogCap,
	}
}

// Run processes lifecycle and broadcast events until ctx is done, then
// closes all clients. Designed for suture supervision.
//
// Selection is priority-ordered so behavior stays deterministic when several
// channels are ready: shutdown first, then client lifecycle, then broadcasts.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	n := len(h.clients)

	// Replay the stats backlog so the session's charts start populated.
	replayed := 0
	for _, msg := range h.backlog {
		select {
		case client.send <- msg:
			replayed++
		default:
		}
	}
	h.mu.Unlock()

	metrics.WebSocketClients.Set(float64(n))
	logging.Info().
		Int("total_clients", n).
		Int("stats_replayed", replayed).
		Bool("ephemeral", client.ephemeral).
		Msg("Client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketClients.Set(float64(n))
	logging.Info().Int("total_clients", n).Msg("Client disconnected")
}

// broadcastToClients delivers a message to all eligible clients in
// deterministic id order. Clients with a full send buffer are dropped; a
// stalled session must not hold back the rest.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if message.Type == MessageTypeFrameStats {
		h.backlog = append(h.backlog, message)
		if len(h.backlog) > h.backlogCap {
			h.backlog = h.backlog[len(h.backlog)-h.backlogCap:]
		}
	}

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if message.Ephemeral && !client.ephemeral {
			continue
		}
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		logging.Warn().Uint64("client_id", client.id).Msg("Client dropped, send buffer full")
	}
	if len(toRemove) > 0 {
		metrics.WebSocketClients.Set(float64(len(h.clients)))
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	metrics.WebSocketClients.Set(0)
	logging.Info().
		Str("component", "websocket-hub").
		AnErr("reason", ctx.Err()).
		Int("clients_closed", len(clients)).
		Msg("Hub stopped")
}

// Broadcast queues a message for delivery, dropping it if the hub is
// saturated.
func (h *Hub) Broadcast(message Message) {
	select {
	case h.broadcast <- message:
	default:
		metrics.BroadcastsDropped.WithLabelValues(message.Type).Inc()
		logging.Warn().Str("message_type", message.Type).Msg("Broadcast channel full, message dropped")
	}
}

// BroadcastJSON wraps data in a non-ephemeral envelope and queues it.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	h.Broadcast(Message{Type: messageType, Data: data})
}

// BroadcastFrameStats queues one per-frame statistics sample.
func (h *Hub) BroadcastFrameStats(data FrameStatsData) {
	h.Broadcast(Message{Type: MessageTypeFrameStats, Data: data})
}

// BroadcastEphemeral queues a stream-passthrough message delivered only to
// live-stream subscribers.
func (h *Hub) BroadcastEphemeral(messageType string, data interface{}) {
	h.Broadcast(Message{Type: messageType, Data: data, Ephemeral: true})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BacklogLen returns the current stats-backlog size.
func (h *Hub) BacklogLen() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.backlog)
}

// Timestamp formats t the way every client payload carries time.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
