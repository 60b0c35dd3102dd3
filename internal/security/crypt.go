package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// encryptedPrefix marks values written by TokenCipher so plaintext rows written
// before encryption was enabled can still be read.
const encryptedPrefix = "enc:v1:"

// TokenCipher encrypts storefront access tokens at rest.
// A TokenCipher with no key passes values through unchanged.
type TokenCipher struct {
	key []byte
}

// LoadKeyFromBase64 decodes a 32 byte key.
func LoadKeyFromBase64(b64 string) ([]byte, error) {
	k, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, err
	}
	if len(k) != chacha20poly1305.KeySize {
		return nil, errors.New("TOKEN_ENCRYPTION_KEY must decode to 32 bytes")
	}
	return k, nil
}

// NewTokenCipher builds a cipher from a base64 key. An empty key disables encryption.
func NewTokenCipher(b64Key string) (*TokenCipher, error) {
	if strings.TrimSpace(b64Key) == "" {
		return &TokenCipher{}, nil
	}
	key, err := LoadKeyFromBase64(b64Key)
	if err != nil {
		return nil, err
	}
	return &TokenCipher{key: key}, nil
}

// Enabled reports whether values are actually encrypted.
func (c *TokenCipher) Enabled() bool {
	return c != nil && len(c.key) > 0
}

// Encrypt returns "enc:v1:" + base64url(nonce|ciphertext).
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	if !c.Enabled() {
		return plaintext, nil
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ct := aead.Seal(nil, nonce, []byte(plaintext), nil)
	out := append(nonce, ct...)
	return encryptedPrefix + base64.RawURLEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Values without the prefix are returned as-is.
func (c *TokenCipher) Decrypt(value string) (string, error) {
	if !strings.HasPrefix(value, encryptedPrefix) {
		return value, nil
	}
	if !c.Enabled() {
		return "", errors.New("encrypted token found but TOKEN_ENCRYPTION_KEY is not set")
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, encryptedPrefix))
	if err != nil {
		return "", err
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}

	ns := aead.NonceSize()
	if len(raw) < ns {
		return "", errors.New("ciphertext too short")
	}

	pt, err := aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}
