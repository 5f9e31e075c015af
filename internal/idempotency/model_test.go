package idempotency

import (
	"strings"
	"testing"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"valid uuid", "3f2b9c1e-8d4a-4f7b-9e2a-1c5d6e7f8a9b", nil},
		{"max length", strings.Repeat("a", MaxKeyLength), nil},
		{"empty", "", ErrInvalidKey},
		{"too long", strings.Repeat("a", MaxKeyLength+1), ErrKeyTooLong},
		{"space", "two words", ErrInvalidKey},
		{"control char", "key\n", ErrInvalidKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateKey(tt.key); err != tt.wantErr {
				t.Errorf("ValidateKey(%q) = %v, want %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestComputeResponseHash(t *testing.T) {
	a := ComputeResponseHash([]byte(`{"acquired":[]}`))
	b := ComputeResponseHash([]byte(`{"acquired":[]}`))
	c := ComputeResponseHash([]byte(`{"acquired":[{"x":1,"y":2}]}`))

	if a != b {
		t.Errorf("hash not deterministic: %s != %s", a, b)
	}
	if a == c {
		t.Error("different bodies produced the same hash")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}

func TestRecord_Intact(t *testing.T) {
	body := []byte(`{"ok":true}`)
	r := &Record{Body: body, ResponseHash: ComputeResponseHash(body)}
	if !r.Intact() {
		t.Fatal("fresh record should be intact")
	}
	r.Body = []byte(`{"ok":false}`)
	if r.Intact() {
		t.Error("modified body should not be intact")
	}
}

func TestScopedKey_SeparatesWallets(t *testing.T) {
	if ScopedKey("alice", "/api/purchase", "k") == ScopedKey("bob", "/api/purchase", "k") {
		t.Error("different wallets must not share a scoped key")
	}
	if ScopedKey("alice", "/api/purchase", "k") == ScopedKey("alice", "/api/paint", "k") {
		t.Error("different routes must not share a scoped key")
	}
}
