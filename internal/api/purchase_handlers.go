package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/onnwee/pixelclaim/internal/acquisition"
	"github.com/onnwee/pixelclaim/internal/grid"
	"github.com/onnwee/pixelclaim/internal/middleware"
	"github.com/onnwee/pixelclaim/internal/ownership"
)

// maxPurchaseBody fits MaxCellsPerPurchase coordinates with room to spare.
const maxPurchaseBody = 1 << 20

// Acquirer runs acquisitions. *acquisition.Coordinator satisfies it.
type Acquirer interface {
	Acquire(ctx context.Context, req acquisition.Request) (*acquisition.Report, error)
}

// PurchaseLister returns a wallet's recent purchases. ownership.Store
// satisfies it.
type PurchaseLister interface {
	ListPurchases(ctx context.Context, wallet string, limit int) ([]ownership.Purchase, error)
}

// PurchaseHandlers serves cell purchases.
type PurchaseHandlers struct {
	acquirer  Acquirer
	purchases PurchaseLister
}

// NewPurchaseHandlers creates PurchaseHandlers.
func NewPurchaseHandlers(acquirer Acquirer, purchases PurchaseLister) *PurchaseHandlers {
	return &PurchaseHandlers{acquirer: acquirer, purchases: purchases}
}

// PurchaseRequest is the body of POST /api/purchase.
type PurchaseRequest struct {
	TxSignature string       `json:"txSignature"`
	Pixels      []grid.Coord `json:"pixels"`
}

// PurchaseResponse reports which cells the payment bought.
type PurchaseResponse struct {
	Acquired    []grid.Coord `json:"acquired"`
	Unavailable []grid.Coord `json:"unavailable"`
	PurchaseID  string       `json:"purchaseId"`
	PixelCount  int          `json:"pixelCount"`
	TxSignature string       `json:"txSignature"`
	Message     string       `json:"message"`
}

// Purchase verifies the payment transaction and claims the requested cells.
// POST /api/purchase
//
// The acquisition runs detached from the request context: once the purchase
// is recorded, a client disconnect must not leave cells half allocated.
func (h *PurchaseHandlers) Purchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if !decodeJSON(w, r, maxPurchaseBody, &req) {
		return
	}

	report, err := h.acquirer.Acquire(context.WithoutCancel(r.Context()), acquisition.Request{
		Wallet:    middleware.GetWallet(r.Context()),
		Signature: req.TxSignature,
		Coords:    req.Pixels,
	})
	if err != nil {
		writeDomainError(w, r, "purchase", err)
		return
	}

	resp := PurchaseResponse{
		Acquired:    nonNilCoords(report.Acquired),
		Unavailable: nonNilCoords(report.Unavailable),
		PurchaseID:  report.PurchaseID,
		PixelCount:  len(report.Acquired),
		TxSignature: req.TxSignature,
		Message:     fmt.Sprintf("Successfully acquired %d pixels.", len(report.Acquired)),
	}
	if len(report.Acquired) == 0 {
		resp.Message = "All requested pixels are already owned."
	}
	writeJSON(w, r.Context(), http.StatusOK, resp)
}

// ListPurchases returns the caller's most recent purchases.
// GET /api/purchase
func (h *PurchaseHandlers) ListPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.purchases.ListPurchases(r.Context(), middleware.GetWallet(r.Context()), ownership.DefaultPurchaseLimit)
	if err != nil {
		writeDomainError(w, r, "list purchases", err)
		return
	}
	if purchases == nil {
		purchases = []ownership.Purchase{}
	}
	writeJSON(w, r.Context(), http.StatusOK, map[string]any{"purchases": purchases})
}

func nonNilCoords(c []grid.Coord) []grid.Coord {
	if c == nil {
		return []grid.Coord{}
	}
	return c
}
