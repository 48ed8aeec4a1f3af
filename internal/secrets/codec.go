// Package secrets provides at-rest encryption for secret values.
//
// Values are sealed with AES-256-GCM under a process-wide key. Every call to
// Encrypt draws a fresh random nonce, so encrypting the same plaintext twice
// yields different blobs. Blobs are stored as hex(nonce) ":" hex(ciphertext).
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// KeySize is the required key length in bytes.
const KeySize = 32

const blobSeparator = ":"

var (
	// ErrDecryptionFailed is returned when a blob is malformed or was sealed under a different key.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrEncryptionFailed is returned when sealing fails.
	ErrEncryptionFailed = errors.New("encryption failed")
	// ErrInvalidKey is returned when key material has the wrong size or format.
	ErrInvalidKey = errors.New("invalid encryption key")
)

// Codec encrypts and decrypts secret values.
type Codec struct {
	aead cipher.AEAD
	rand io.Reader
}

// NewCodec creates a codec for a 32-byte key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &Codec{aead: aead, rand: rand.Reader}, nil
}

// Encrypt seals plaintext and returns the encoded blob.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return "", fmt.Errorf("%w: reading nonce: %v", ErrEncryptionFailed, err)
	}
	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + blobSeparator + hex.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. It never returns partial plaintext.
func (c *Codec) Decrypt(blob string) (string, error) {
	nonceHex, sealedHex, ok := strings.Cut(blob, blobSeparator)
	if !ok {
		return "", fmt.Errorf("%w: missing separator", ErrDecryptionFailed)
	}
	nonce, err := hex.DecodeString(nonceHex)
	if err != nil || len(nonce) != c.aead.NonceSize() {
		return "", fmt.Errorf("%w: malformed nonce", ErrDecryptionFailed)
	}
	sealed, err := hex.DecodeString(sealedHex)
	if err != nil || len(sealed) < c.aead.Overhead() {
		return "", fmt.Errorf("%w: malformed ciphertext", ErrDecryptionFailed)
	}
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}

// ReEncrypt opens blob with c and seals the plaintext under next.
func (c *Codec) ReEncrypt(blob string, next *Codec) (string, error) {
	plaintext, err := c.Decrypt(blob)
	if err != nil {
		return "", err
	}
	return next.Encrypt(plaintext)
}
