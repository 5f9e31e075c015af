// Package main is an operator tool that checks a purchase transaction against
// the configured payment rules without touching the database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/onnwee/pixelclaim/internal/chain"
	"github.com/onnwee/pixelclaim/internal/config"
	"github.com/onnwee/pixelclaim/internal/middleware"
	"github.com/onnwee/pixelclaim/internal/payment"
)

// Exit codes.
const (
	exitValid    = 0
	exitInvalid  = 1
	exitUsage    = 2
	exitLedger   = 3
	exitInternal = 4
)

// serverOnly lists configuration errors that do not matter for verification.
var serverOnly = []error{
	config.ErrMissingDatabaseURL,
	config.ErrInvalidDatabaseDriver,
	config.ErrMissingJWTSecret,
	config.ErrShortJWTSecret,
}

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to a YAML config file")
	signature := flag.String("signature", "", "transaction signature (base58)")
	payer := flag.String("payer", "", "wallet that should have paid")
	cells := flag.Int("cells", 0, "number of cells the payment should cover")
	flag.Parse()

	if *help {
		fmt.Println("Pixelclaim purchase verifier")
		fmt.Println()
		fmt.Println("Usage: verifytx -signature SIG -payer WALLET -cells N [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(exitValid)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Stdout, *configPath, *signature, *payer, *cells))
}

func run(ctx context.Context, out io.Writer, configPath, signature, payer string, cells int) int {
	if signature == "" || payer == "" || cells <= 0 {
		fmt.Fprintln(out, "signature, payer and a positive cell count are required")
		return exitUsage
	}

	cfg, errs := config.Load(configPath)
	if cfg == nil {
		fmt.Fprintln(out, errs[0])
		return exitUsage
	}
	logger := middleware.NewLogger(cfg.Env)
	if errs = relevant(errs); len(errs) > 0 {
		for _, err := range errs {
			logger.Error("invalid configuration", "error", err)
		}
		return exitUsage
	}

	verifier, err := newVerifier(cfg, logger)
	if err != nil {
		logger.Error("failed to build verifier", "error", err)
		return exitInternal
	}
	return report(ctx, out, verifier, signature, payer, cells)
}

func newVerifier(cfg *config.Config, logger *slog.Logger) (*payment.Verifier, error) {
	price, err := cfg.Price()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	client := chain.NewSolanaClient(cfg.SolanaRPCURL, cfg.RPCRequestsPerSecond)
	fetcher := chain.NewFetcher(client, chain.FetcherConfig{
		MaxAttempts: cfg.VerifyMaxAttempts,
		RetryDelay:  cfg.VerifyRetryDelay(),
	}, nil, logger)
	return payment.NewVerifier(fetcher, payment.Config{
		Mint:     cfg.TokenMint,
		Price:    price,
		Policy:   policy,
		Receiver: cfg.ReceiverWallet,
	}, nil, logger)
}

// PaymentVerifier is the part of *payment.Verifier report needs.
type PaymentVerifier interface {
	Verify(ctx context.Context, signature, payer string, cells int) (payment.Result, error)
	ExpectedAmount(cells int) *big.Int
	Policy() payment.Policy
}

func report(ctx context.Context, out io.Writer, v PaymentVerifier, signature, payer string, cells int) int {
	fmt.Fprintf(out, "policy:   %s\nexpected: %s base units for %d cells\n", v.Policy(), v.ExpectedAmount(cells), cells)
	res, err := v.Verify(ctx, signature, payer, cells)
	switch {
	case errors.Is(err, chain.ErrDependency):
		fmt.Fprintf(out, "result:   ledger unavailable (%v)\n", err)
		return exitLedger
	case err != nil:
		fmt.Fprintf(out, "result:   error (%v)\n", err)
		return exitInternal
	case !res.Valid:
		fmt.Fprintf(out, "result:   rejected: %s\n", res.Reason)
		return exitInvalid
	}
	fmt.Fprintln(out, "result:   valid")
	return exitValid
}

func relevant(errs []error) []error {
	var out []error
	for _, err := range errs {
		skip := false
		for _, s := range serverOnly {
			if errors.Is(err, s) {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, err)
		}
	}
	return out
}
