package secrets

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
	"golang.org/x/crypto/hkdf"
)

// MinPassphraseLength is the shortest non-hex key material accepted.
const MinPassphraseLength = 32

// hkdfInfo binds derived keys to this use.
var hkdfInfo = []byte("envkeep secret codec v1")

// ErrNoKeyMaterial is returned when neither a key nor a key file is configured.
var ErrNoKeyMaterial = errors.New("no encryption key configured")

// ParseKey turns configured key material into a 32-byte key. 64 hex characters
// are used verbatim; anything else is treated as a passphrase of at least
// MinPassphraseLength characters and stretched with HKDF-SHA256.
func ParseKey(material string) ([]byte, error) {
	material = strings.TrimSpace(material)
	if material == "" {
		return nil, ErrNoKeyMaterial
	}
	if len(material) == hex.EncodedLen(KeySize) {
		if key, err := hex.DecodeString(material); err == nil {
			return key, nil
		}
	}
	if len(material) < MinPassphraseLength {
		return nil, fmt.Errorf("%w: expected %d hex characters or a passphrase of at least %d characters",
			ErrInvalidKey, hex.EncodedLen(KeySize), MinPassphraseLength)
	}
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(material), nil, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	return key, nil
}

// GenerateKey returns a new random key encoded as hex.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// WrapKey age-encrypts key material to the given recipient (age1...).
func WrapKey(material, recipient string) ([]byte, error) {
	r, err := age.ParseX25519Recipient(recipient)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid age recipient: %v", ErrInvalidKey, err)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	if _, err := io.WriteString(w, material); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return buf.Bytes(), nil
}

// UnwrapKey decrypts age-encrypted key material with the given identity (AGE-SECRET-KEY-1...).
func UnwrapKey(wrapped []byte, identity string) (string, error) {
	id, err := age.ParseX25519Identity(strings.TrimSpace(identity))
	if err != nil {
		return "", fmt.Errorf("%w: invalid age identity: %v", ErrInvalidKey, err)
	}
	r, err := age.Decrypt(bytes.NewReader(wrapped), id)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	material, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return strings.TrimSpace(string(material)), nil
}

// KeySource describes where the codec key comes from.
type KeySource struct {
	// Key is inline key material (hex or passphrase).
	Key string
	// File is a path to an age-encrypted file holding key material.
	File string
	// AgeIdentity decrypts File.
	AgeIdentity string
}

// LoadCodec resolves the key source once and builds a codec. It fails when no
// key material is configured; it never falls back to a generated key.
func LoadCodec(src KeySource) (*Codec, error) {
	material := src.Key
	if material == "" && src.File != "" {
		if src.AgeIdentity == "" {
			return nil, fmt.Errorf("%w: key file %s requires an age identity", ErrInvalidKey, src.File)
		}
		wrapped, err := os.ReadFile(src.File)
		if err != nil {
			return nil, fmt.Errorf("reading key file: %w", err)
		}
		material, err = UnwrapKey(wrapped, src.AgeIdentity)
		if err != nil {
			return nil, fmt.Errorf("unwrapping key file: %w", err)
		}
	}
	key, err := ParseKey(material)
	if err != nil {
		return nil, err
	}
	return NewCodec(key)
}
