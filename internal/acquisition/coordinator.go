// Package acquisition turns a verified payment into cell ownership. It records
// the purchase to consume the signature, verifies the payment, and then
// claims each requested cell independently.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/pixelclaim/internal/chain"
	"github.com/onnwee/pixelclaim/internal/grid"
	"github.com/onnwee/pixelclaim/internal/ownership"
	"github.com/onnwee/pixelclaim/internal/payment"
	"github.com/onnwee/pixelclaim/internal/tracing"
)

// Request limits.
const (
	MaxCellsPerPurchase = 10000
	MaxSignatureLength  = 128
)

// PaymentVerifier checks that a signature pays for a number of cells.
// *payment.Verifier satisfies it.
type PaymentVerifier interface {
	Verify(ctx context.Context, signature, payer string, cells int) (payment.Result, error)
	ExpectedAmount(cells int) *big.Int
}

// Observer is told about cells that changed owner.
type Observer interface {
	CellsAcquired(ctx context.Context, wallet string, cells []grid.Coord)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, wallet string, cells []grid.Coord)

// CellsAcquired calls f.
func (f ObserverFunc) CellsAcquired(ctx context.Context, wallet string, cells []grid.Coord) {
	f(ctx, wallet, cells)
}

// Request asks to acquire cells for wallet, paid by the transaction signature.
type Request struct {
	Wallet    string
	Signature string
	Coords    []grid.Coord
}

// Report is the outcome of a successful acquisition. Cells that were already
// owned are listed as unavailable; that is not an error.
type Report struct {
	Acquired    []grid.Coord `json:"acquired"`
	Unavailable []grid.Coord `json:"unavailable"`
	PurchaseID  string       `json:"purchaseId"`
}

// Coordinator runs acquisitions.
type Coordinator struct {
	store     ownership.Store
	verifier  PaymentVerifier
	observers []Observer
	metrics   *Metrics
	logger    *slog.Logger
}

// NewCoordinator creates a Coordinator. metrics may be nil.
func NewCoordinator(store ownership.Store, verifier PaymentVerifier, metrics *Metrics, logger *slog.Logger, observers ...Observer) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:     store,
		verifier:  verifier,
		observers: observers,
		metrics:   metrics,
		logger:    logger,
	}
}

// Validate checks a request without touching any state.
func Validate(req Request) error {
	if req.Wallet == "" {
		return &ValidationError{Field: "wallet", Message: "wallet is required"}
	}
	if req.Signature == "" {
		return &ValidationError{Field: "txSignature", Message: "txSignature is required"}
	}
	if len(req.Signature) > MaxSignatureLength {
		return &ValidationError{Field: "txSignature", Message: fmt.Sprintf("txSignature must be at most %d characters", MaxSignatureLength)}
	}
	if len(req.Coords) == 0 {
		return &ValidationError{Field: "pixels", Message: "pixels array is required and must not be empty"}
	}
	if len(req.Coords) > MaxCellsPerPurchase {
		return &ValidationError{Field: "pixels", Message: fmt.Sprintf("maximum %d pixels per purchase", MaxCellsPerPurchase)}
	}
	for _, c := range req.Coords {
		if !c.Valid() {
			return &ValidationError{Field: "pixels", Message: fmt.Sprintf("invalid pixel coordinates %s", c)}
		}
	}
	return nil
}

// Acquire verifies the payment behind req and claims its cells.
//
// Errors: *ValidationError for malformed input, ErrSignatureUsed when the
// signature was consumed before, *VerificationError when the payment does not
// check out, and an error wrapping chain.ErrDependency when the ledger could
// not be reached. A report with no acquired cells is still a success.
func (c *Coordinator) Acquire(ctx context.Context, req Request) (report *Report, err error) {
	start := time.Now()
	ctx, endSpan := tracing.StartSpan(ctx, "acquisition.acquire")
	defer func() {
		endSpan(err)
		c.metrics.observe(outcomeOf(err), time.Since(start).Seconds(), report)
	}()

	if err := Validate(req); err != nil {
		return nil, err
	}
	coords := grid.Dedup(req.Coords)
	tracing.SetAttributes(ctx,
		attribute.String("wallet", req.Wallet),
		attribute.Int("acquisition.cells", len(coords)))

	purchaseID, err := c.store.RecordPurchase(ctx, ownership.Purchase{
		Signature:  req.Signature,
		Wallet:     req.Wallet,
		PixelCount: len(coords),
		Amount:     c.verifier.ExpectedAmount(len(coords)),
	})
	if errors.Is(err, ownership.ErrSignatureUsed) {
		return nil, ErrSignatureUsed
	}
	if err != nil {
		return nil, fmt.Errorf("record purchase: %w", err)
	}

	result, err := c.verifier.Verify(ctx, req.Signature, req.Wallet, len(coords))
	if err != nil {
		return nil, fmt.Errorf("verify purchase %s: %w", purchaseID, err)
	}
	if !result.Valid {
		c.logger.WarnContext(ctx, "purchase recorded but payment rejected",
			slog.String("purchase_id", purchaseID),
			slog.String("wallet", req.Wallet),
			slog.String("reason", result.Reason))
		return nil, &VerificationError{Reason: result.Reason}
	}

	tracing.AddEvent(ctx, "payment.verified", attribute.String("purchase_id", purchaseID))

	report = &Report{
		Acquired:    make([]grid.Coord, 0, len(coords)),
		Unavailable: make([]grid.Coord, 0),
		PurchaseID:  purchaseID,
	}
	for _, coord := range coords {
		ok, err := c.store.TryAcquire(ctx, coord, req.Wallet)
		if err != nil {
			c.notify(ctx, req.Wallet, report.Acquired)
			return nil, fmt.Errorf("acquire %s for purchase %s: %w", coord, purchaseID, err)
		}
		if !ok {
			report.Unavailable = append(report.Unavailable, coord)
			continue
		}
		report.Acquired = append(report.Acquired, coord)
		if err := c.store.LinkPurchaseCell(ctx, purchaseID, coord); err != nil {
			c.notify(ctx, req.Wallet, report.Acquired)
			return nil, fmt.Errorf("link %s to purchase %s: %w", coord, purchaseID, err)
		}
	}

	c.notify(ctx, req.Wallet, report.Acquired)
	c.logger.InfoContext(ctx, "purchase completed",
		slog.String("purchase_id", purchaseID),
		slog.String("wallet", req.Wallet),
		slog.Int("acquired", len(report.Acquired)),
		slog.Int("unavailable", len(report.Unavailable)))
	return report, nil
}

func (c *Coordinator) notify(ctx context.Context, wallet string, cells []grid.Coord) {
	if len(cells) == 0 {
		return
	}
	for _, o := range c.observers {
		o.CellsAcquired(ctx, wallet, cells)
	}
}

func outcomeOf(err error) string {
	var (
		ve *ValidationError
		vf *VerificationError
	)
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.As(err, &ve):
		return OutcomeInvalid
	case errors.Is(err, ErrSignatureUsed):
		return OutcomeDuplicate
	case errors.As(err, &vf):
		return OutcomeUnverified
	case errors.Is(err, chain.ErrDependency):
		return OutcomeDependency
	default:
		return OutcomeInternal
	}
}
