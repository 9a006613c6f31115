package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// SealedPrefix marks a value produced by Sealer.Seal.
const SealedPrefix = "sealed:v1:"

// sealSalt separates the at-rest key from export keys derived from the
// same passphrase.
var sealSalt = []byte("xreply/settings/api-keys/v1")

// ErrNotSealed is returned by Open for a value without SealedPrefix.
var ErrNotSealed = errors.New("value is not sealed")

// Sealer encrypts short secrets for storage. The Argon2id derivation runs
// once, at construction.
type Sealer struct {
	gcm cipher.AEAD
}

// NewSealer derives the sealing key from passphrase.
func NewSealer(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, errors.New("sealer passphrase is empty")
	}
	gcm, err := newGCM(DeriveKey(passphrase, sealSalt))
	if err != nil {
		return nil, err
	}
	return &Sealer{gcm: gcm}, nil
}

// Seal encrypts plaintext. The empty string stays empty so "unset" survives
// the round trip.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := s.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return SealedPrefix + base64.RawStdEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	if !IsSealed(sealed) {
		return "", ErrNotSealed
	}
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(sealed, SealedPrefix))
	if err != nil || len(raw) < NonceSize {
		return "", ErrDecryptFailed
	}
	plaintext, err := s.gcm.Open(nil, raw[:NonceSize], raw[NonceSize:], nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}

// IsSealed reports whether v carries SealedPrefix.
func IsSealed(v string) bool {
	return strings.HasPrefix(v, SealedPrefix)
}
