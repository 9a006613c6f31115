package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncryptDecrypt(t *testing.T) {
	passphrase := "export-passphrase-123!"
	plaintext := []byte(`{"extractedTweets":[],"generatedComments":[]}`)

	ciphertext, err := Encrypt(plaintext, passphrase)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if len(ciphertext) <= len(plaintext) {
		t.Error("Ciphertext should be larger than plaintext")
	}
	if string(ciphertext[0:4]) != MagicBytes {
		t.Error("Missing magic bytes")
	}

	decrypted, err := Decrypt(ciphertext, passphrase)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Error("Decrypted data doesn't match original")
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	ciphertext, err := Encrypt([]byte("Secret data"), "correct")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if _, err := Decrypt(ciphertext, "wrong"); err != ErrDecryptFailed {
		t.Errorf("Expected ErrDecryptFailed, got: %v", err)
	}
}

func TestIsEncrypted(t *testing.T) {
	ciphertext, _ := Encrypt([]byte("data"), "test")

	if !IsEncrypted(ciphertext) {
		t.Error("IsEncrypted should return true for encrypted data")
	}
	if IsEncrypted([]byte(`{"a":1}`)) {
		t.Error("IsEncrypted should return false for plain data")
	}
	if IsEncrypted([]byte("XRC")) {
		t.Error("IsEncrypted should return false for short data")
	}
}

func TestInvalidData(t *testing.T) {
	if _, err := Decrypt([]byte("short"), "passphrase"); err != ErrInvalidMagic {
		t.Errorf("Expected ErrInvalidMagic for short data, got: %v", err)
	}

	wrongMagic := make([]byte, HeaderSize+8)
	copy(wrongMagic, "NOPE")
	if _, err := Decrypt(wrongMagic, "passphrase"); err != ErrInvalidMagic {
		t.Errorf("Expected ErrInvalidMagic for wrong magic, got: %v", err)
	}
}

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer("at-rest-secret")
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}

	sealed, err := s.Seal("apify_api_abc123")
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if !IsSealed(sealed) {
		t.Errorf("sealed value missing prefix: %q", sealed)
	}
	if strings.Contains(sealed, "abc123") {
		t.Error("sealed value leaks plaintext")
	}

	opened, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if opened != "apify_api_abc123" {
		t.Errorf("Open() = %q", opened)
	}
}

func TestSealer_EmptyStaysEmpty(t *testing.T) {
	s, _ := NewSealer("k")

	sealed, err := s.Seal("")
	if err != nil || sealed != "" {
		t.Errorf("Seal(\"\") = %q, %v", sealed, err)
	}
	opened, err := s.Open("")
	if err != nil || opened != "" {
		t.Errorf("Open(\"\") = %q, %v", opened, err)
	}
}

func TestSealer_Errors(t *testing.T) {
	if _, err := NewSealer(""); err == nil {
		t.Error("NewSealer should reject an empty passphrase")
	}

	a, _ := NewSealer("one")
	b, _ := NewSealer("two")

	sealed, _ := a.Seal("sk-secret")
	if _, err := b.Open(sealed); err != ErrDecryptFailed {
		t.Errorf("Open with other key: expected ErrDecryptFailed, got %v", err)
	}
	if _, err := a.Open("sk-plain"); err != ErrNotSealed {
		t.Errorf("Open of plain value: expected ErrNotSealed, got %v", err)
	}
	if _, err := a.Open(SealedPrefix + "!!!"); err != ErrDecryptFailed {
		t.Errorf("Open of garbage: expected ErrDecryptFailed, got %v", err)
	}
}
