// Package chain fetches transactions from the Solana ledger and converts them
// into a model that payment verification can inspect without knowing the RPC
// wire format.
package chain

import (
	"math/big"
	"time"
)

// Transaction represents a parsed Solana transaction.
// This is our domain model, independent of the RPC response format.
type Transaction struct {
	Signature string
	Slot      uint64
	BlockTime time.Time
	Err       *string // nil if the transaction succeeded, the raw error otherwise

	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance

	// Instructions holds top-level instructions followed by inner ones.
	Instructions []Instruction
}

// Failed reports whether the transaction errored on-chain.
func (t *Transaction) Failed() bool {
	return t.Err != nil
}

// TokenBalance is one SPL token account balance snapshot.
type TokenBalance struct {
	AccountIndex int
	Owner        string
	Mint         string
	Amount       *big.Int // base units
}

// Instruction is a parsed instruction. Fields the parser did not provide are
// left empty.
type Instruction struct {
	Program     string
	Type        string
	Authority   string
	Mint        string
	Source      string
	Destination string
	Amount      *big.Int
}

// SumBalance adds up the balances of every account owned by owner for mint.
// The second result reports whether any such account was present.
func SumBalance(balances []TokenBalance, owner, mint string) (*big.Int, bool) {
	sum := new(big.Int)
	found := false
	for _, b := range balances {
		if b.Owner != owner || b.Mint != mint {
			continue
		}
		found = true
		if b.Amount != nil {
			sum.Add(sum, b.Amount)
		}
	}
	return sum, found
}
