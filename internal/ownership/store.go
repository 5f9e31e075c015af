// Package ownership persists who owns which cell, the purchases that paid for
// them, and the colors owners paint.
package ownership

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/onnwee/pixelclaim/internal/grid"
)

// ErrSignatureUsed is returned by RecordPurchase when the transaction
// signature has already been recorded.
var ErrSignatureUsed = errors.New("transaction signature already used")

// DefaultPurchaseLimit is how many purchases ListPurchases returns by default.
const DefaultPurchaseLimit = 20

// Purchase is one accepted payment transaction.
type Purchase struct {
	ID         string    `json:"id"`
	Signature  string    `json:"txSignature"`
	Wallet     string    `json:"wallet"`
	PixelCount int       `json:"pixelCount"`
	Amount     *big.Int  `json:"tokenAmount"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Store is the durable ownership table.
//
// TryAcquire must be atomic: among concurrent calls for the same cell exactly
// one returns true. Ownership never changes once set.
type Store interface {
	TryAcquire(ctx context.Context, c grid.Coord, wallet string) (bool, error)
	RecordPurchase(ctx context.Context, p Purchase) (string, error)
	LinkPurchaseCell(ctx context.Context, purchaseID string, c grid.Coord) error

	SetColor(ctx context.Context, c grid.Coord, wallet string, color grid.Color) (bool, error)
	SetColors(ctx context.Context, wallet string, changes []grid.ColorChange) (int, error)
	ClearColors(ctx context.Context, wallet string) (int, error)

	ListOwned(ctx context.Context) ([]grid.Cell, error)
	ListPurchases(ctx context.Context, wallet string, limit int) ([]Purchase, error)
	CountOwnedBy(ctx context.Context, wallet string) (int, error)
}
