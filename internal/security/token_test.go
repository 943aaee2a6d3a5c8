package security

import (
	"encoding/base64"
	"testing"
)

func TestNewSessionTokenEntropy(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 64; i++ {
		tok, err := NewSessionToken()
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		raw, err := base64.RawURLEncoding.DecodeString(tok)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(raw) != SessionTokenBytes {
			t.Fatalf("expected %d bytes, got %d", SessionTokenBytes, len(raw))
		}
		if _, dup := seen[tok]; dup {
			t.Fatal("duplicate token generated")
		}
		seen[tok] = struct{}{}
	}
}

func TestHashSessionTokenIsKeyed(t *testing.T) {
	a := HashSessionToken("tok", "secret-a")
	if a != HashSessionToken("tok", "secret-a") {
		t.Fatal("expected deterministic hash")
	}
	if a == HashSessionToken("tok", "secret-b") {
		t.Fatal("expected secret to change hash")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256 length, got %d", len(a))
	}
}
