package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/pixelclaim/internal/tracing"
)

// Default retry budget: the ledger needs a few seconds before a freshly sent
// transaction becomes visible at confirmed commitment.
const (
	DefaultMaxAttempts = 5
	DefaultRetryDelay  = 3 * time.Second
)

// errNotVisible makes the retry loop try again when the ledger does not know
// the transaction yet.
var errNotVisible = errors.New("transaction not visible yet")

// FetcherConfig bounds the retry policy.
type FetcherConfig struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

// Fetcher retrieves transactions with a bounded retry budget.
type Fetcher struct {
	client  Client
	config  FetcherConfig
	metrics *Metrics
	logger  *slog.Logger
}

// NewFetcher wraps client. Zero config fields take the defaults; metrics may be nil.
func NewFetcher(client Client, config FetcherConfig, metrics *Metrics, logger *slog.Logger) *Fetcher {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultRetryDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, config: config, metrics: metrics, logger: logger}
}

// Fetch returns the transaction for signature.
//
// A transaction that is present but failed on-chain is returned at once. An
// absent transaction is retried and, once the budget is spent, reported as
// (nil, nil). Transport errors are retried too; if they persist the returned
// error wraps ErrDependency.
func (f *Fetcher) Fetch(ctx context.Context, signature string) (tx *Transaction, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "chain.fetch_transaction")
	defer func() { endSpan(err) }()
	tracing.SetAttributes(ctx, attribute.String("solana.signature", signature))

	start := time.Now()
	attempt := 0
	operation := func() (*Transaction, error) {
		attempt++
		tx, err := f.client.GetTransaction(ctx, signature)
		switch {
		case errors.Is(err, ErrInvalidSignature):
			f.metrics.observeAttempt(ResultInvalid)
			return nil, backoff.Permanent(err)
		case err != nil:
			f.metrics.observeAttempt(ResultError)
			f.logger.WarnContext(ctx, "transaction fetch failed",
				slog.String("signature", signature),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return nil, err
		case tx == nil:
			f.metrics.observeAttempt(ResultAbsent)
			return nil, errNotVisible
		default:
			f.metrics.observeAttempt(ResultFound)
			return tx, nil
		}
	}

	tx, err = backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(f.config.RetryDelay)),
		backoff.WithMaxTries(uint(f.config.MaxAttempts)),
	)
	tracing.SetAttributes(ctx, attribute.Int("solana.fetch_attempts", attempt))
	elapsed := time.Since(start).Seconds()

	switch {
	case err == nil && tx.Failed():
		f.metrics.observeResult(ResultFailed, elapsed)
		return tx, nil
	case err == nil:
		f.metrics.observeResult(ResultFound, elapsed)
		return tx, nil
	case errors.Is(err, errNotVisible):
		f.metrics.observeResult(ResultAbsent, elapsed)
		f.logger.InfoContext(ctx, "transaction not found after retries",
			slog.String("signature", signature),
			slog.Int("attempts", attempt))
		return nil, nil
	case errors.Is(err, ErrInvalidSignature):
		f.metrics.observeResult(ResultInvalid, elapsed)
		return nil, err
	default:
		f.metrics.observeResult(ResultError, elapsed)
		return nil, fmt.Errorf("%w: fetch %s after %d attempts: %w", ErrDependency, signature, attempt, err)
	}
}
