package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/onnwee/pixelclaim/internal/chain"
	"github.com/onnwee/pixelclaim/internal/config"
	"github.com/onnwee/pixelclaim/internal/payment"
)

type fakeVerifier struct {
	result payment.Result
	err    error
}

func (f fakeVerifier) Verify(context.Context, string, string, int) (payment.Result, error) {
	return f.result, f.err
}

func (f fakeVerifier) ExpectedAmount(cells int) *big.Int {
	return big.NewInt(int64(cells) * 1_000_000)
}

func (f fakeVerifier) Policy() payment.Policy { return payment.PolicyBurn }

func TestReport(t *testing.T) {
	tests := []struct {
		name     string
		verifier fakeVerifier
		wantCode int
		wantOut  string
	}{
		{"valid", fakeVerifier{result: payment.Result{Valid: true}}, exitValid, "result:   valid"},
		{"rejected", fakeVerifier{result: payment.Result{Reason: "wrong mint"}}, exitInvalid, "rejected: wrong mint"},
		{"ledger down", fakeVerifier{err: fmt.Errorf("fetch: %w", chain.ErrDependency)}, exitLedger, "ledger unavailable"},
		{"other error", fakeVerifier{err: errors.New("boom")}, exitInternal, "error (boom)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			code := report(context.Background(), &out, tt.verifier, "sig", "payer", 3)
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("output %q missing %q", out.String(), tt.wantOut)
			}
			if !strings.Contains(out.String(), "3000000 base units for 3 cells") {
				t.Errorf("output %q missing expected amount", out.String())
			}
		})
	}
}

func TestRun_RequiresArguments(t *testing.T) {
	var out bytes.Buffer
	if code := run(context.Background(), &out, "", "", "payer", 1); code != exitUsage {
		t.Errorf("code = %d, want %d", code, exitUsage)
	}
	if code := run(context.Background(), &out, "", "sig", "payer", 0); code != exitUsage {
		t.Errorf("code = %d, want %d", code, exitUsage)
	}
}

func TestRelevant_DropsServerOnlyErrors(t *testing.T) {
	errs := []error{config.ErrMissingDatabaseURL, config.ErrMissingTokenMint, config.ErrShortJWTSecret}
	got := relevant(errs)
	if len(got) != 1 || !errors.Is(got[0], config.ErrMissingTokenMint) {
		t.Errorf("relevant() = %v, want only the token mint error", got)
	}
}
