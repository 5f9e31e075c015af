package chain

import (
	"context"
	"errors"
)

var (
	// ErrDependency marks a failure to reach the ledger, as opposed to a
	// transaction that legitimately does not exist.
	ErrDependency = errors.New("ledger dependency failure")

	// ErrInvalidSignature is returned for signatures that are not valid base58
	// transaction signatures.
	ErrInvalidSignature = errors.New("invalid transaction signature")
)

// Client retrieves a single transaction by signature.
// Implementations return (nil, nil) when the ledger does not know the
// transaction yet.
type Client interface {
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)
}

// HealthChecker is implemented by clients that can report ledger availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
