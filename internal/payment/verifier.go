// Package payment decides whether an on-chain transaction proves payment for
// a number of grid cells.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/pixelclaim/internal/chain"
	"github.com/onnwee/pixelclaim/internal/tracing"
)

// Rejection reasons. Amount-carrying reasons are formatted with the expected
// amount and the observed amount.
const (
	ReasonNotFound         = "transaction not found after retries"
	ReasonInvalidSignature = "invalid transaction signature"
	ReasonFailedOnChain    = "transaction failed on-chain"
	ReasonPayerNotFound    = "payer not found in token balances"
	reasonPayerDelta       = "payer balance did not decrease enough (expected %s, delta %s)"
	reasonBurn             = "no valid burn found for required amount (expected %s, burned %s)"
	reasonReceiverDelta    = "receiver balance did not increase enough (expected %s, delta %s)"
)

// Result is the outcome of a verification.
type Result struct {
	Valid  bool
	Reason string
}

func invalid(reason string) Result {
	return Result{Reason: reason}
}

// TransactionFetcher retrieves transactions with retries. *chain.Fetcher
// satisfies it.
type TransactionFetcher interface {
	Fetch(ctx context.Context, signature string) (*chain.Transaction, error)
}

// Config describes the token and pricing the verifier enforces.
type Config struct {
	Mint     string
	Price    *big.Int // base units per cell
	Policy   Policy
	Receiver string // required by PolicyTransfer
}

// Verifier checks purchase transactions.
type Verifier struct {
	fetcher TransactionFetcher
	config  Config
	metrics *Metrics
	logger  *slog.Logger
}

// NewVerifier validates config and creates a Verifier. metrics may be nil.
func NewVerifier(fetcher TransactionFetcher, config Config, metrics *Metrics, logger *slog.Logger) (*Verifier, error) {
	if config.Mint == "" {
		return nil, errors.New("payment: token mint is required")
	}
	if config.Price == nil || config.Price.Sign() <= 0 {
		return nil, errors.New("payment: price per cell must be positive")
	}
	if config.Policy == PolicyTransfer && config.Receiver == "" {
		return nil, errors.New("payment: transfer policy requires a receiver wallet")
	}
	if logger == nil {
		logger = slog.Default()
	}
	config.Price = new(big.Int).Set(config.Price)
	return &Verifier{fetcher: fetcher, config: config, metrics: metrics, logger: logger}, nil
}

// ExpectedAmount returns cells × price in base units.
func (v *Verifier) ExpectedAmount(cells int) *big.Int {
	return new(big.Int).Mul(big.NewInt(int64(cells)), v.config.Price)
}

// Policy returns the configured policy.
func (v *Verifier) Policy() Policy {
	return v.config.Policy
}

// Verify reports whether signature proves payer paid for cells. Ledger
// transport failures are returned as errors wrapping chain.ErrDependency;
// every other rejection is an invalid Result with a reason.
func (v *Verifier) Verify(ctx context.Context, signature, payer string, cells int) (res Result, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "payment.verify")
	defer func() { endSpan(err) }()
	tracing.SetAttributes(ctx,
		attribute.String("payment.policy", v.config.Policy.String()),
		attribute.Int("payment.cells", cells))

	res, err = v.verify(ctx, signature, payer, cells)
	switch {
	case err != nil:
		v.metrics.observe(OutcomeError)
	case res.Valid:
		v.metrics.observe(OutcomeValid)
	default:
		v.metrics.observe(outcomeFor(res.Reason))
		v.logger.InfoContext(ctx, "payment rejected",
			slog.String("signature", signature),
			slog.String("wallet", payer),
			slog.String("reason", res.Reason))
	}
	return res, err
}

func (v *Verifier) verify(ctx context.Context, signature, payer string, cells int) (Result, error) {
	expected := v.ExpectedAmount(cells)

	tx, err := v.fetcher.Fetch(ctx, signature)
	switch {
	case errors.Is(err, chain.ErrInvalidSignature):
		return invalid(ReasonInvalidSignature), nil
	case err != nil:
		return Result{}, fmt.Errorf("verify payment: %w", err)
	case tx == nil:
		return invalid(ReasonNotFound), nil
	case tx.Failed():
		return invalid(ReasonFailedOnChain), nil
	}

	pre, inPre := chain.SumBalance(tx.PreTokenBalances, payer, v.config.Mint)
	post, inPost := chain.SumBalance(tx.PostTokenBalances, payer, v.config.Mint)
	if !inPre && !inPost {
		return invalid(ReasonPayerNotFound), nil
	}
	delta := new(big.Int).Sub(pre, post)
	if delta.Cmp(expected) < 0 {
		return invalid(fmt.Sprintf(reasonPayerDelta, expected, delta)), nil
	}

	switch v.config.Policy {
	case PolicyTransfer:
		rpre, _ := chain.SumBalance(tx.PreTokenBalances, v.config.Receiver, v.config.Mint)
		rpost, _ := chain.SumBalance(tx.PostTokenBalances, v.config.Receiver, v.config.Mint)
		received := new(big.Int).Sub(rpost, rpre)
		if received.Cmp(expected) < 0 {
			return invalid(fmt.Sprintf(reasonReceiverDelta, expected, received)), nil
		}
	default:
		burned := burnedBy(tx.Instructions, payer, v.config.Mint)
		if burned.Cmp(expected) < 0 {
			return invalid(fmt.Sprintf(reasonBurn, expected, burned)), nil
		}
	}
	return Result{Valid: true}, nil
}

// burnedBy sums burn and burnChecked amounts signed by authority for mint.
func burnedBy(instructions []chain.Instruction, authority, mint string) *big.Int {
	sum := new(big.Int)
	for _, ix := range instructions {
		if !strings.HasPrefix(strings.ToLower(ix.Type), "burn") {
			continue
		}
		if ix.Authority != authority || ix.Mint != mint || ix.Amount == nil {
			continue
		}
		sum.Add(sum, ix.Amount)
	}
	return sum
}
