// Package crypto holds the small amount of cryptography the service needs:
// at-rest encryption of OAuth provider tokens and single-use reset tokens.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrMalformedCiphertext is returned when a stored value cannot be an encryptor output.
var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// TokenEncryptor seals short secrets with AES-256-GCM.
type TokenEncryptor struct {
	aead cipher.AEAD
}

// NewTokenEncryptor builds an encryptor from a base64 encoded 32 byte key
// (generate one with `openssl rand -base64 32`).
func NewTokenEncryptor(base64Key string) (*TokenEncryptor, error) {
	if base64Key == "" {
		return nil, errors.New("encryption key is required")
	}

	// Decode base64 key
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}

	// AES-256 needs exactly 32 bytes
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}

	// Create AES cipher block and wrap it in GCM
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &TokenEncryptor{aead: aead}, nil
}

// Encrypt returns base64(nonce || sealed). Empty input stays empty.
func (e *TokenEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	// Generate random nonce
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	// Nonce is prepended to the sealed bytes
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (e *TokenEncryptor) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	// Check minimum length (nonce size)
	n := e.aead.NonceSize()
	if len(raw) < n {
		return "", ErrMalformedCiphertext
	}

	// Split nonce and ciphertext, then open
	plain, err := e.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plain), nil
}
