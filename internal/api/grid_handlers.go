package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/onnwee/pixelclaim/internal/grid"
	"github.com/onnwee/pixelclaim/internal/gridcache"
	"github.com/onnwee/pixelclaim/internal/live"
	"github.com/onnwee/pixelclaim/internal/media"
)

// GridReader provides the current grid. *grid.State satisfies it.
type GridReader interface {
	Cells() []grid.Cell
}

// PayloadSource serves the encoded grid. *gridcache.Cache satisfies it.
type PayloadSource interface {
	Payload(ctx context.Context) (gridcache.Payload, error)
}

// PlacementLister lists media and link buttons. *media.Service satisfies it.
type PlacementLister interface {
	List(ctx context.Context) ([]media.Media, error)
	ListLinkButtons(ctx context.Context) ([]media.LinkButton, error)
}

// GridHandlers serves the grid, its encoded snapshot and the live feed.
type GridHandlers struct {
	grid       GridReader
	payload    PayloadSource
	placements PlacementLister
	hub        *live.Hub
	upgrader   websocket.Upgrader
}

// NewGridHandlers creates GridHandlers. allowOrigin decides which browser
// origins may open the live feed; nil allows all.
func NewGridHandlers(g GridReader, payload PayloadSource, placements PlacementLister, hub *live.Hub, allowOrigin func(string) bool) *GridHandlers {
	return &GridHandlers{
		grid:       g,
		payload:    payload,
		placements: placements,
		hub:        hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowOrigin == nil || allowOrigin(origin)
			},
		},
	}
}

// mediaView is a media item as clients render it.
type mediaView struct {
	media.Media
	URL string `json:"url"`
}

func mediaViews(items []media.Media) []mediaView {
	out := make([]mediaView, 0, len(items))
	for _, m := range items {
		out = append(out, mediaView{Media: m, URL: m.FileURL()})
	}
	return out
}

// GridResponse is the full grid with everything placed on it.
type GridResponse struct {
	Pixels      []grid.Cell        `json:"pixels"`
	Media       []mediaView        `json:"media"`
	LinkButtons []media.LinkButton `json:"linkButtons"`
}

// Grid returns every owned cell with its color, plus media and link buttons.
// GET /api/grid
func (h *GridHandlers) Grid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	items, err := h.placements.List(ctx)
	if err != nil {
		writeDomainError(w, r, "list media", err)
		return
	}
	buttons, err := h.placements.ListLinkButtons(ctx)
	if err != nil {
		writeDomainError(w, r, "list link buttons", err)
		return
	}
	cells := h.grid.Cells()
	if cells == nil {
		cells = []grid.Cell{}
	}
	if buttons == nil {
		buttons = []media.LinkButton{}
	}
	writeJSON(w, ctx, http.StatusOK, GridResponse{
		Pixels:      cells,
		Media:       mediaViews(items),
		LinkButtons: buttons,
	})
}

// Snapshot returns the owned cells as a compact binary payload tagged with
// the grid version.
// GET /api/grid/snapshot
func (h *GridHandlers) Snapshot(w http.ResponseWriter, r *http.Request) {
	p, err := h.payload.Payload(r.Context())
	if err != nil {
		writeDomainError(w, r, "encode grid", err)
		return
	}
	w.Header().Set("ETag", p.ETag)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Grid-Version", strconv.FormatUint(p.Version, 10))
	if r.Header.Get("If-None-Match") == p.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(p.Data)))
	_, _ = w.Write(p.Data)
}

// Live upgrades to a WebSocket that receives grid change events.
// GET /api/grid/ws
func (h *GridHandlers) Live(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := h.hub.Subscribe(conn)
	defer h.hub.Unsubscribe(c)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
