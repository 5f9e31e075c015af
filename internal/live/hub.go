// Package live pushes grid changes to connected WebSocket clients so they can
// patch their copy of the grid without refetching it.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/pixelclaim/internal/grid"
)

// EventType names a grid change.
type EventType string

const (
	EventCellsAcquired     EventType = "cells_acquired"
	EventCellsPainted      EventType = "cells_painted"
	EventCellsCleared      EventType = "cells_cleared"
	EventPlacementsChanged EventType = "placements_changed"
)

// Event is one message sent to every client.
type Event struct {
	Type    EventType          `json:"type"`
	Wallet  string             `json:"wallet,omitempty"`
	Version uint64             `json:"version,omitempty"`
	Cells   []grid.Coord       `json:"cells,omitempty"`
	Colors  []grid.ColorChange `json:"colors,omitempty"`
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// VersionSource reports the grid version events are stamped with.
// *grid.State satisfies it.
type VersionSource interface {
	Version() uint64
}

// Client is one subscribed connection. Writes happen only on its own
// goroutine; Hub hands it messages through send.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub tracks subscribed clients and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	version VersionSource
	metrics *Metrics
	logger  *slog.Logger
}

// NewHub creates a hub. version may be nil.
func NewHub(version VersionSource, metrics *Metrics, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		version: version,
		metrics: metrics,
		logger:  logger,
	}
}

// Subscribe registers conn and starts its writer. The caller keeps reading
// from conn and calls Unsubscribe when the read loop ends.
func (h *Hub) Subscribe(conn *websocket.Conn) *Client {
	c := &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.setClients(n)

	go h.writeLoop(c)
	return c
}

// Unsubscribe removes c and stops its writer.
func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.setClients(n)
	c.close()
}

// ClientCount returns the number of subscribed clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends ev to every client. Clients whose buffer is full are
// dropped; they refetch the grid on reconnect.
func (h *Hub) Broadcast(ctx context.Context, ev Event) {
	if ev.Version == 0 && h.version != nil {
		ev.Version = h.version.Version()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to marshal live event", "type", ev.Type, "error", err)
		return
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	h.metrics.observeEvent(string(ev.Type))

	for _, c := range slow {
		h.logger.WarnContext(ctx, "dropping slow websocket client")
		h.metrics.observeDropped()
		h.Unsubscribe(c)
	}
}

// CellsAcquired broadcasts newly owned cells.
func (h *Hub) CellsAcquired(ctx context.Context, wallet string, cells []grid.Coord) {
	if len(cells) == 0 {
		return
	}
	h.Broadcast(ctx, Event{Type: EventCellsAcquired, Wallet: wallet, Cells: cells})
}

// CellsPainted broadcasts applied color changes.
func (h *Hub) CellsPainted(ctx context.Context, wallet string, changes []grid.ColorChange) {
	if len(changes) == 0 {
		return
	}
	h.Broadcast(ctx, Event{Type: EventCellsPainted, Wallet: wallet, Colors: changes})
}

// CellsCleared tells clients every cell of wallet is white again.
func (h *Hub) CellsCleared(ctx context.Context, wallet string) {
	h.Broadcast(ctx, Event{Type: EventCellsCleared, Wallet: wallet})
}

// PlacementsChanged tells clients to refetch media and link buttons.
func (h *Hub) PlacementsChanged(ctx context.Context) {
	h.Broadcast(ctx, Event{Type: EventPlacementsChanged})
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()
	for c := range clients {
		c.close()
	}
	h.metrics.setClients(0)
}

func (h *Hub) writeLoop(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("failed to send message to websocket client", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
