package payment

import (
	"fmt"
	"strings"
)

// Policy selects how a transaction must move the payment to the protocol.
type Policy int

const (
	// PolicyBurn requires burn instructions by the payer covering the price.
	PolicyBurn Policy = iota
	// PolicyTransfer requires the receiver wallet's balance to grow by the price.
	PolicyTransfer
)

func (p Policy) String() string {
	if p == PolicyTransfer {
		return "transfer"
	}
	return "burn"
}

// ParsePolicy maps "burn" or "transfer" to a Policy. Empty means burn.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "burn":
		return PolicyBurn, nil
	case "transfer":
		return PolicyTransfer, nil
	}
	return 0, fmt.Errorf("unknown payment policy %q (expected burn or transfer)", s)
}
