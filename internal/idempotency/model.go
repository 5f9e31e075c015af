// Package idempotency stores responses of write requests so a client retrying
// with the same Idempotency-Key receives the original response instead of a
// second execution.
package idempotency

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"lukechampine.com/blake3"
)

var (
	// ErrKeyNotFound is returned when an idempotency key is not found.
	ErrKeyNotFound = errors.New("idempotency key not found")

	// ErrKeyExists is returned when attempting to create a duplicate key.
	ErrKeyExists = errors.New("idempotency key already exists")

	// ErrInvalidKey is returned when the key is empty or contains characters
	// outside printable ASCII.
	ErrInvalidKey = errors.New("invalid idempotency key")

	// ErrKeyTooLong is returned when the key exceeds maximum length.
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length of 64 characters")
)

// MaxKeyLength is the maximum allowed length for an idempotency key.
const MaxKeyLength = 64

// Record is a stored response for one scoped key.
type Record struct {
	Key          string    `json:"key"`
	Wallet       string    `json:"wallet"`
	Route        string    `json:"route"`
	StatusCode   int       `json:"status_code"`
	ContentType  string    `json:"content_type"`
	Body         []byte    `json:"body"`
	ResponseHash string    `json:"response_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Intact reports whether Body still matches ResponseHash.
func (r *Record) Intact() bool {
	return r.ResponseHash == ComputeResponseHash(r.Body)
}

// ValidateKey checks a client-supplied key.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	for i := 0; i < len(key); i++ {
		if key[i] < 0x21 || key[i] > 0x7e {
			return ErrInvalidKey
		}
	}
	return nil
}

// ScopedKey namespaces key by wallet and route so two wallets, or two routes,
// never share a stored response.
func ScopedKey(wallet, route, key string) string {
	return wallet + "|" + route + "|" + key
}

// ComputeResponseHash returns the hex blake3-256 digest of body.
func ComputeResponseHash(body []byte) string {
	sum := blake3.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Repository persists records.
type Repository interface {
	// Get returns ErrKeyNotFound if key has no record.
	Get(ctx context.Context, key string) (*Record, error)

	// Store returns ErrKeyExists if key already has a record.
	Store(ctx context.Context, record *Record) error

	// DeleteOlderThan removes records created before now minus age.
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}
