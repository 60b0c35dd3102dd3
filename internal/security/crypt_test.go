package security

import (
	"encoding/base64"
	"strings"
	"testing"
)

func testKey() string {
	return base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
}

func TestTokenCipherRoundTrip(t *testing.T) {
	c, err := NewTokenCipher(testKey())
	if err != nil {
		t.Fatalf("NewTokenCipher: %v", err)
	}

	enc, err := c.Encrypt("shpat_secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if !strings.HasPrefix(enc, encryptedPrefix) || strings.Contains(enc, "shpat_secret") {
		t.Fatalf("expected opaque prefixed ciphertext, got %q", enc)
	}

	dec, err := c.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if dec != "shpat_secret" {
		t.Fatalf("expected round trip, got %q", dec)
	}
}

func TestTokenCipherWithoutKeyPassesThrough(t *testing.T) {
	c, err := NewTokenCipher("")
	if err != nil {
		t.Fatalf("NewTokenCipher: %v", err)
	}
	enc, _ := c.Encrypt("plain")
	if enc != "plain" {
		t.Fatalf("expected passthrough, got %q", enc)
	}
	if _, err := c.Decrypt(encryptedPrefix + "abc"); err == nil {
		t.Fatal("expected error decrypting without a key")
	}
}

func TestTokenCipherReadsLegacyPlaintext(t *testing.T) {
	c, _ := NewTokenCipher(testKey())
	got, err := c.Decrypt("shpat_legacy")
	if err != nil || got != "shpat_legacy" {
		t.Fatalf("expected legacy plaintext to pass through, got %q, %v", got, err)
	}
}

func TestLoadKeyFromBase64RejectsShortKeys(t *testing.T) {
	if _, err := LoadKeyFromBase64(base64.StdEncoding.EncodeToString([]byte("short"))); err == nil {
		t.Fatal("expected short key to be rejected")
	}
}
