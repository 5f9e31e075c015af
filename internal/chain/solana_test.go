package chain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
)

const parsedBurnTx = `{
  "slot": 301234567,
  "blockTime": 1760000000,
  "meta": {
    "err": null,
    "preTokenBalances": [
      {"accountIndex": 1, "mint": "MintAddr", "owner": "PayerAddr", "uiTokenAmount": {"amount": "90000000000000000", "decimals": 6}}
    ],
    "postTokenBalances": [
      {"accountIndex": 1, "mint": "MintAddr", "owner": "PayerAddr", "uiTokenAmount": {"amount": "89999999998000000", "decimals": 6}}
    ],
    "innerInstructions": [
      {"index": 0, "instructions": [
        {"program": "spl-token", "programId": "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
         "parsed": {"type": "burnChecked", "info": {"authority": "PayerAddr", "mint": "MintAddr", "tokenAmount": {"amount": "1000000"}}}}
      ]}
    ]
  },
  "transaction": {
    "signatures": ["%SIG%"],
    "message": {
      "instructions": [
        {"program": "spl-memo", "programId": "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr", "parsed": "pixelclaim"},
        {"program": "spl-token", "programId": "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
         "parsed": {"type": "burn", "info": {"authority": "PayerAddr", "mint": "MintAddr", "amount": "1000000"}}}
      ]
    }
  }
}`

func rpcServer(t *testing.T, result func(method string) string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad rpc request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + result(req.Method) + `}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testSignature() string {
	var sig solana.Signature
	for i := range sig {
		sig[i] = byte(i + 1)
	}
	return sig.String()
}

func TestSolanaClient_ParsesJSONParsedTransaction(t *testing.T) {
	sig := testSignature()
	srv := rpcServer(t, func(method string) string {
		if method != "getTransaction" {
			t.Errorf("unexpected method %s", method)
		}
		return strings.ReplaceAll(parsedBurnTx, "%SIG%", sig)
	})

	tx, err := NewSolanaClient(srv.URL, 0).GetTransaction(context.Background(), sig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx == nil {
		t.Fatal("expected transaction")
	}
	if tx.Signature != sig || tx.Slot != 301234567 || tx.Failed() {
		t.Errorf("unexpected header fields: %+v", tx)
	}
	if len(tx.Instructions) != 3 {
		t.Fatalf("expected 3 instructions (2 top-level, 1 inner), got %d", len(tx.Instructions))
	}
	burn := tx.Instructions[1]
	if burn.Type != "burn" || burn.Authority != "PayerAddr" || burn.Amount.String() != "1000000" {
		t.Errorf("unexpected burn instruction: %+v", burn)
	}
	inner := tx.Instructions[2]
	if inner.Type != "burnChecked" || inner.Amount == nil || inner.Amount.String() != "1000000" {
		t.Errorf("unexpected inner instruction: %+v", inner)
	}
	pre, _ := SumBalance(tx.PreTokenBalances, "PayerAddr", "MintAddr")
	if pre.String() != "90000000000000000" {
		t.Errorf("expected exact big balance, got %s", pre)
	}
}

func TestSolanaClient_NullResultIsAbsent(t *testing.T) {
	srv := rpcServer(t, func(string) string { return "null" })

	tx, err := NewSolanaClient(srv.URL, 0).GetTransaction(context.Background(), testSignature())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx != nil {
		t.Errorf("expected nil transaction, got %+v", tx)
	}
}

func TestSolanaClient_FailedTransaction(t *testing.T) {
	srv := rpcServer(t, func(string) string {
		return `{"slot": 1, "meta": {"err": {"InstructionError": [0, {"Custom": 1}]}}, "transaction": {"signatures": [], "message": {"instructions": []}}}`
	})

	tx, err := NewSolanaClient(srv.URL, 0).GetTransaction(context.Background(), testSignature())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx == nil || !tx.Failed() {
		t.Fatalf("expected failed transaction, got %+v", tx)
	}
}

func TestSolanaClient_RejectsMalformedSignature(t *testing.T) {
	_, err := NewSolanaClient("http://127.0.0.1:0", 0).GetTransaction(context.Background(), "sigA")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}
