package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// MaxMessageLength bounds the signed login message.
const MaxMessageLength = 1024

var (
	ErrInvalidWallet = errors.New("invalid wallet address")
	ErrBadSignature  = errors.New("signature verification failed")
)

// LoginRequest is a wallet's signed login message.
type LoginRequest struct {
	Wallet    string `json:"wallet"`
	Message   string `json:"message"`
	Signature string `json:"signature"` // base64 ed25519 signature of Message
}

// Validate checks that the request is complete.
func (r LoginRequest) Validate() error {
	if r.Wallet == "" || r.Message == "" || r.Signature == "" {
		return errors.New("wallet, signature, and message are required")
	}
	if len(r.Message) > MaxMessageLength {
		return fmt.Errorf("message exceeds %d bytes", MaxMessageLength)
	}
	return nil
}

// VerifyWalletSignature checks that signature is wallet's ed25519 signature
// of message. wallet is a base58 public key; signature is base64.
func VerifyWalletSignature(wallet, message, signature string) error {
	pub, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWallet, err)
	}
	raw, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(raw) != ed25519.SignatureSize {
		return ErrBadSignature
	}
	if !ed25519.Verify(pub[:], []byte(message), raw) {
		return ErrBadSignature
	}
	return nil
}

// Authenticator exchanges signed login messages for session tokens.
type Authenticator struct {
	tokens *JWTService
}

// NewAuthenticator creates an Authenticator issuing tokens from tokens.
func NewAuthenticator(tokens *JWTService) *Authenticator {
	return &Authenticator{tokens: tokens}
}

// Login verifies req and returns a session token for its wallet.
func (a *Authenticator) Login(req LoginRequest) (string, error) {
	if err := VerifyWalletSignature(req.Wallet, req.Message, req.Signature); err != nil {
		return "", err
	}
	return a.tokens.GenerateToken(req.Wallet)
}

// Authenticate returns the wallet carried by a session token.
func (a *Authenticator) Authenticate(token string) (string, error) {
	claims, err := a.tokens.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return claims.Wallet, nil
}
