package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/onnwee/pixelclaim/internal/grid"
	"github.com/onnwee/pixelclaim/internal/middleware"
)

// Paint limits.
const (
	MaxPixelsPerPaint = 5000
	maxPaintBody      = 1 << 20
)

// ColorStore persists cell colors. ownership.Store satisfies it.
type ColorStore interface {
	SetColors(ctx context.Context, wallet string, changes []grid.ColorChange) (int, error)
	ClearColors(ctx context.Context, wallet string) (int, error)
}

// ColorState is the in-memory grid kept in step with the store. *grid.State
// satisfies it.
type ColorState interface {
	ApplyColors(wallet string, changes []grid.ColorChange) int
	ClearColors(wallet string) int
	Snapshot() *grid.Snapshot
}

// PaintObserver is told about persisted color changes. *live.Hub and
// *gridcache.Cache satisfy it.
type PaintObserver interface {
	CellsPainted(ctx context.Context, wallet string, changes []grid.ColorChange)
	CellsCleared(ctx context.Context, wallet string)
}

// PaintHandlers serves repainting of owned cells.
type PaintHandlers struct {
	store     ColorStore
	state     ColorState
	observers []PaintObserver
}

// NewPaintHandlers creates PaintHandlers.
func NewPaintHandlers(store ColorStore, state ColorState, observers ...PaintObserver) *PaintHandlers {
	return &PaintHandlers{store: store, state: state, observers: observers}
}

// PaintRequest is the body of POST /api/paint.
type PaintRequest struct {
	Pixels []paintPixel `json:"pixels"`
}

type paintPixel struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color"`
}

// parsePaint validates a paint request. Colors are parsed here rather than
// during decoding so the error names the offending value.
func parsePaint(req PaintRequest) ([]grid.ColorChange, error) {
	if len(req.Pixels) == 0 {
		return nil, fmt.Errorf("pixels array is required")
	}
	if len(req.Pixels) > MaxPixelsPerPaint {
		return nil, fmt.Errorf("maximum %d pixels per paint request", MaxPixelsPerPaint)
	}
	changes := make([]grid.ColorChange, 0, len(req.Pixels))
	for _, p := range req.Pixels {
		c := grid.Coord{X: p.X, Y: p.Y}
		if !c.Valid() {
			return nil, fmt.Errorf("invalid coordinates %s", c)
		}
		color, err := grid.ParseColor(p.Color)
		if err != nil {
			return nil, fmt.Errorf("invalid color %q", p.Color)
		}
		changes = append(changes, grid.ColorChange{X: p.X, Y: p.Y, Color: color})
	}
	return changes, nil
}

// Paint recolors cells the caller owns. Cells owned by anyone else are
// skipped silently and not counted.
// POST /api/paint
func (h *PaintHandlers) Paint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req PaintRequest
	if !decodeJSON(w, r, maxPaintBody, &req) {
		return
	}
	changes, err := parsePaint(req)
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	wallet := middleware.GetWallet(ctx)
	updated, err := h.store.SetColors(ctx, wallet, changes)
	if err != nil {
		writeDomainError(w, r, "paint", err)
		return
	}

	if h.state.ApplyColors(wallet, changes) > 0 {
		applied := ownedChanges(h.state.Snapshot(), wallet, changes)
		for _, o := range h.observers {
			o.CellsPainted(ctx, wallet, applied)
		}
	}
	writeJSON(w, ctx, http.StatusOK, map[string]int{"updated": updated})
}

// Clear resets every cell the caller owns to white.
// POST /api/paint/clear
func (h *PaintHandlers) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wallet := middleware.GetWallet(ctx)

	cleared, err := h.store.ClearColors(ctx, wallet)
	if err != nil {
		writeDomainError(w, r, "clear colors", err)
		return
	}
	if h.state.ClearColors(wallet) > 0 || cleared > 0 {
		for _, o := range h.observers {
			o.CellsCleared(ctx, wallet)
		}
	}
	writeJSON(w, ctx, http.StatusOK, map[string]int{"cleared": cleared})
}

func ownedChanges(snap *grid.Snapshot, wallet string, changes []grid.ColorChange) []grid.ColorChange {
	out := make([]grid.ColorChange, 0, len(changes))
	for _, ch := range changes {
		if snap.WalletOf(ch.Coord()) == wallet {
			out = append(out, ch)
		}
	}
	return out
}
