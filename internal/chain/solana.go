package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/time/rate"
)

// SolanaClient reads transactions from a Solana JSON-RPC endpoint using the
// jsonParsed encoding at confirmed commitment.
type SolanaClient struct {
	rpc     *rpc.Client
	limiter *rate.Limiter
}

// NewSolanaClient creates a client for endpoint. requestsPerSecond bounds
// outbound calls; zero or negative disables pacing.
func NewSolanaClient(endpoint string, requestsPerSecond float64) *SolanaClient {
	limit := rate.Inf
	burst := 1
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
		burst = max(1, int(requestsPerSecond))
	}
	return &SolanaClient{
		rpc:     rpc.New(endpoint),
		limiter: rate.NewLimiter(limit, burst),
	}
}

// GetTransaction implements Client.
func (c *SolanaClient) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	if _, err := solana.SignatureFromBase58(signature); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var out *rpcTransaction
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       solana.EncodingJSONParsed,
			"commitment":                     rpc.CommitmentConfirmed,
			"maxSupportedTransactionVersion": 0,
		},
	}
	if err := c.rpc.RPCCallForInto(ctx, &out, "getTransaction", params); err != nil {
		return nil, fmt.Errorf("getTransaction: %w", err)
	}
	if out == nil {
		return nil, nil
	}
	return out.toDomain(signature)
}

// HealthCheck calls getHealth on the endpoint.
func (c *SolanaClient) HealthCheck(ctx context.Context) error {
	status, err := c.rpc.GetHealth(ctx)
	if err != nil {
		return fmt.Errorf("solana rpc health: %w", err)
	}
	if status != rpc.HealthOk {
		return fmt.Errorf("solana rpc unhealthy: %s", status)
	}
	return nil
}

// rpcTransaction mirrors the jsonParsed getTransaction result.
type rpcTransaction struct {
	Slot      uint64 `json:"slot"`
	BlockTime *int64 `json:"blockTime"`
	Meta      *struct {
		Err               json.RawMessage   `json:"err"`
		PreTokenBalances  []rpcTokenBalance `json:"preTokenBalances"`
		PostTokenBalances []rpcTokenBalance `json:"postTokenBalances"`
		InnerInstructions []struct {
			Index        int              `json:"index"`
			Instructions []rpcInstruction `json:"instructions"`
		} `json:"innerInstructions"`
	} `json:"meta"`
	Transaction struct {
		Signatures []string `json:"signatures"`
		Message    struct {
			Instructions []rpcInstruction `json:"instructions"`
		} `json:"message"`
	} `json:"transaction"`
}

type rpcTokenBalance struct {
	AccountIndex  int    `json:"accountIndex"`
	Mint          string `json:"mint"`
	Owner         string `json:"owner"`
	UITokenAmount struct {
		Amount   string `json:"amount"`
		Decimals int    `json:"decimals"`
	} `json:"uiTokenAmount"`
}

type rpcInstruction struct {
	Program   string          `json:"program"`
	ProgramID string          `json:"programId"`
	Parsed    json.RawMessage `json:"parsed"`
}

// parsedInstruction is the object form of "parsed". Memo instructions use a
// plain string instead and are skipped.
type parsedInstruction struct {
	Type string `json:"type"`
	Info struct {
		Authority         string      `json:"authority"`
		Owner             string      `json:"owner"`
		MultisigAuthority string      `json:"multisigAuthority"`
		Mint              string      `json:"mint"`
		Source            string      `json:"source"`
		Destination       string      `json:"destination"`
		Amount            *flexAmount `json:"amount"`
		TokenAmount       *struct {
			Amount *flexAmount `json:"amount"`
		} `json:"tokenAmount"`
	} `json:"info"`
}

// flexAmount accepts token amounts encoded as JSON strings or numbers.
type flexAmount struct {
	big.Int
}

func (a *flexAmount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if _, ok := a.SetString(s, 10); !ok {
		return fmt.Errorf("invalid token amount %q", s)
	}
	return nil
}

func (t *rpcTransaction) toDomain(signature string) (*Transaction, error) {
	tx := &Transaction{Signature: signature, Slot: t.Slot}
	if len(t.Transaction.Signatures) > 0 {
		tx.Signature = t.Transaction.Signatures[0]
	}
	if t.BlockTime != nil {
		tx.BlockTime = time.Unix(*t.BlockTime, 0).UTC()
	}

	for _, ix := range t.Transaction.Message.Instructions {
		tx.Instructions = append(tx.Instructions, ix.toDomain())
	}

	if t.Meta == nil {
		return tx, nil
	}
	if raw := bytes.TrimSpace(t.Meta.Err); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		msg := string(raw)
		tx.Err = &msg
	}

	var err error
	if tx.PreTokenBalances, err = convertBalances(t.Meta.PreTokenBalances); err != nil {
		return nil, err
	}
	if tx.PostTokenBalances, err = convertBalances(t.Meta.PostTokenBalances); err != nil {
		return nil, err
	}
	for _, inner := range t.Meta.InnerInstructions {
		for _, ix := range inner.Instructions {
			tx.Instructions = append(tx.Instructions, ix.toDomain())
		}
	}
	return tx, nil
}

func convertBalances(in []rpcTokenBalance) ([]TokenBalance, error) {
	out := make([]TokenBalance, 0, len(in))
	for _, b := range in {
		amount := new(big.Int)
		if b.UITokenAmount.Amount != "" {
			if _, ok := amount.SetString(b.UITokenAmount.Amount, 10); !ok {
				return nil, fmt.Errorf("invalid token balance %q", b.UITokenAmount.Amount)
			}
		}
		out = append(out, TokenBalance{
			AccountIndex: b.AccountIndex,
			Owner:        b.Owner,
			Mint:         b.Mint,
			Amount:       amount,
		})
	}
	return out, nil
}

func (ix rpcInstruction) toDomain() Instruction {
	out := Instruction{Program: ix.Program}
	if out.Program == "" {
		out.Program = ix.ProgramID
	}

	raw := bytes.TrimSpace(ix.Parsed)
	if len(raw) == 0 || raw[0] != '{' {
		return out
	}
	var p parsedInstruction
	if err := json.Unmarshal(raw, &p); err != nil {
		return out
	}

	out.Type = p.Type
	out.Mint = p.Info.Mint
	out.Source = p.Info.Source
	out.Destination = p.Info.Destination
	switch {
	case p.Info.Authority != "":
		out.Authority = p.Info.Authority
	case p.Info.Owner != "":
		out.Authority = p.Info.Owner
	default:
		out.Authority = p.Info.MultisigAuthority
	}
	switch {
	case p.Info.Amount != nil:
		out.Amount = new(big.Int).Set(&p.Info.Amount.Int)
	case p.Info.TokenAmount != nil && p.Info.TokenAmount.Amount != nil:
		out.Amount = new(big.Int).Set(&p.Info.TokenAmount.Amount.Int)
	}
	return out
}
