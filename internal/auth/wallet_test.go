package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
)

type testKey struct {
	wallet string
	priv   ed25519.PrivateKey
}

func newTestKey(t *testing.T) testKey {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	var pk solana.PublicKey
	copy(pk[:], pub)
	return testKey{wallet: pk.String(), priv: priv}
}

func (k testKey) sign(message string) string {
	return base64.StdEncoding.EncodeToString(ed25519.Sign(k.priv, []byte(message)))
}

func TestVerifyWalletSignature(t *testing.T) {
	key := newTestKey(t)
	other := newTestKey(t)
	msg := "Sign in to pixelclaim"

	tests := []struct {
		name      string
		wallet    string
		message   string
		signature string
		wantErr   error
	}{
		{"valid", key.wallet, msg, key.sign(msg), nil},
		{"different message", key.wallet, msg + "!", key.sign(msg), ErrBadSignature},
		{"other key", key.wallet, msg, other.sign(msg), ErrBadSignature},
		{"not base64", key.wallet, msg, "%%%", ErrBadSignature},
		{"short signature", key.wallet, msg, base64.StdEncoding.EncodeToString([]byte("short")), ErrBadSignature},
		{"bad wallet", "not-a-wallet", msg, key.sign(msg), ErrInvalidWallet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyWalletSignature(tt.wallet, tt.message, tt.signature)
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoginRequestValidate(t *testing.T) {
	valid := LoginRequest{Wallet: "w", Message: "m", Signature: "s"}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	for _, req := range []LoginRequest{
		{Message: "m", Signature: "s"},
		{Wallet: "w", Signature: "s"},
		{Wallet: "w", Message: "m"},
		{Wallet: "w", Message: strings.Repeat("m", MaxMessageLength+1), Signature: "s"},
	} {
		if err := req.Validate(); err == nil {
			t.Errorf("Validate(%+v) = nil, want error", req)
		}
	}
}

func TestAuthenticator(t *testing.T) {
	key := newTestKey(t)
	a := NewAuthenticator(NewJWTService(testSecret))

	token, err := a.Login(LoginRequest{Wallet: key.wallet, Message: "hello", Signature: key.sign("hello")})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	wallet, err := a.Authenticate(token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if wallet != key.wallet {
		t.Errorf("Authenticate() = %q, want %q", wallet, key.wallet)
	}

	if _, err := a.Login(LoginRequest{Wallet: key.wallet, Message: "hello", Signature: key.sign("bye")}); !errors.Is(err, ErrBadSignature) {
		t.Errorf("Login() with wrong signature error = %v, want ErrBadSignature", err)
	}
	if _, err := a.Authenticate("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Authenticate(garbage) error = %v, want ErrInvalidToken", err)
	}
}
