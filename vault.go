// Package authgate provides dual-mode request authentication (signed session
// tokens and revocable API keys) with a warm in-memory key cache for Go services.
//
// This file contains the secret vault: symmetric encryption of sensitive
// strings at rest. Purely CPU-bound, no I/O; safe for concurrent use.
package authgate

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SecretVault encrypts and decrypts sensitive strings (API key secrets, any
// other at-rest secret) with AES-256-CBC under a key derived from the
// configured master-key material. Envelopes are "ivHex:cipherHex"; a fresh
// random IV is generated per Encrypt call so repeated encryptions of similar
// plaintexts never produce related ciphertexts.
type SecretVault struct {
	key      []byte
	ivLength int
}

// NewSecretVault derives a 256-bit key from the master-key material via
// SHA-256. The material itself is immutable process-wide configuration.
func NewSecretVault(masterKey string, ivLength int) (*SecretVault, error) {
	if len(masterKey) < MIN_MASTER_KEY_LENGTH {
		return nil, ErrMasterKeyRequired
	}
	if ivLength <= 0 {
		ivLength = DEFAULT_IV_LENGTH
	}
	if ivLength != aes.BlockSize {
		return nil, NewValidationError("iv_length", "must equal the AES block size (16)")
	}

	digest := sha256.Sum256([]byte(masterKey))
	return &SecretVault{
		key:      digest[:],
		ivLength: ivLength,
	}, nil
}

// Encrypt encrypts plaintext and returns an "ivHex:cipherHex" envelope.
func (v *SecretVault) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, v.ivLength)
	if _, err := rand.Read(iv); err != nil {
		return "", NewInternalError("vault_iv_generation", err)
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", NewInternalError("vault_cipher", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + ENVELOPE_DELIMITER + hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. It fails closed: malformed or truncated envelopes
// return ErrMalformedEnvelope, any cryptographic failure (wrong key, corrupted
// ciphertext, padding mismatch) returns ErrDecryptionFailed. Partial output is
// never returned.
func (v *SecretVault) Decrypt(envelope string) (string, error) {
	parts := strings.Split(envelope, ENVELOPE_DELIMITER)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", ErrMalformedEnvelope
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != v.ivLength {
		return "", ErrMalformedEnvelope
	}

	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", ErrMalformedEnvelope
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", ErrDecryptionFailed
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", NewInternalError("vault_cipher", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(unpadded), nil
}

// pkcs7Pad appends PKCS#7 padding up to the next block boundary.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

// pkcs7Unpad validates and strips PKCS#7 padding. Every padding byte is
// checked so tampered ciphertext is rejected rather than truncated.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrDecryptionFailed
	}

	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, ErrDecryptionFailed
	}

	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, ErrDecryptionFailed
		}
	}

	return data[:len(data)-padding], nil
}
