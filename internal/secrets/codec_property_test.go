package secrets

import (
	"errors"
	"os"
	"strings"
	"testing"

	"filippo.io/age"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	material, err := GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	key, err := ParseKey(material)
	if err != nil {
		t.Fatalf("failed to parse key: %v", err)
	}
	codec, err := NewCodec(key)
	if err != nil {
		t.Fatalf("failed to create codec: %v", err)
	}
	return codec
}

// For any string, decrypt(encrypt(v)) == v.
func TestCodecRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("encrypt then decrypt returns original plaintext", prop.ForAll(
		func(plaintext string) bool {
			blob, err := codec.Encrypt(plaintext)
			if err != nil {
				t.Logf("encryption failed: %v", err)
				return false
			}
			decrypted, err := codec.Decrypt(blob)
			if err != nil {
				t.Logf("decryption failed: %v", err)
				return false
			}
			return decrypted == plaintext
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// Two encryptions of the same value never produce the same blob.
func TestCodecIsNonDeterministic(t *testing.T) {
	codec := newTestCodec(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("same plaintext yields distinct blobs", prop.ForAll(
		func(plaintext string) bool {
			a, err := codec.Encrypt(plaintext)
			if err != nil {
				return false
			}
			b, err := codec.Encrypt(plaintext)
			if err != nil {
				return false
			}
			nonceA, _, _ := strings.Cut(a, blobSeparator)
			nonceB, _, _ := strings.Cut(b, blobSeparator)
			return a != b && nonceA != nonceB
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestBlobFormat(t *testing.T) {
	codec := newTestCodec(t)
	blob, err := codec.Encrypt("hunter2")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	nonce, sealed, ok := strings.Cut(blob, ":")
	if !ok {
		t.Fatalf("blob %q has no separator", blob)
	}
	if len(nonce) != 24 {
		t.Errorf("nonce should be 12 bytes hex encoded, got %d chars", len(nonce))
	}
	if strings.Contains(blob, "hunter2") || sealed == "" {
		t.Errorf("blob leaks plaintext or is empty: %q", blob)
	}
}

func TestDecryptRejectsMalformedBlobs(t *testing.T) {
	codec := newTestCodec(t)
	good, err := codec.Encrypt("value")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	nonce, sealed, _ := strings.Cut(good, ":")

	flipped := []byte(sealed)
	if flipped[0] == '0' {
		flipped[0] = '1'
	} else {
		flipped[0] = '0'
	}

	cases := map[string]string{
		"empty":             "",
		"no separator":      nonce + sealed,
		"bad nonce hex":     "zz" + nonce[2:] + ":" + sealed,
		"short nonce":       nonce[:10] + ":" + sealed,
		"bad body hex":      nonce + ":xyz",
		"truncated body":    nonce + ":" + sealed[:8],
		"tampered body":     nonce + ":" + string(flipped),
		"legacy cbc layout": strings.Repeat("ab", 16) + ":" + sealed,
	}

	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			plaintext, err := codec.Decrypt(blob)
			if !errors.Is(err, ErrDecryptionFailed) {
				t.Errorf("expected ErrDecryptionFailed, got %v", err)
			}
			if plaintext != "" {
				t.Errorf("expected no plaintext, got %q", plaintext)
			}
		})
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	a := newTestCodec(t)
	b := newTestCodec(t)

	blob, err := a.Encrypt("database-password")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := b.Decrypt(blob); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed with mismatched key, got %v", err)
	}
}

func TestReEncrypt(t *testing.T) {
	oldCodec := newTestCodec(t)
	newCodec := newTestCodec(t)

	blob, err := oldCodec.Encrypt("rotate-me")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	rotated, err := oldCodec.ReEncrypt(blob, newCodec)
	if err != nil {
		t.Fatalf("re-encrypt: %v", err)
	}
	got, err := newCodec.Decrypt(rotated)
	if err != nil || got != "rotate-me" {
		t.Errorf("new codec decrypt = %q, %v", got, err)
	}
	if _, err := oldCodec.Decrypt(rotated); err == nil {
		t.Error("old codec should not open rotated blob")
	}
}

func TestParseKey(t *testing.T) {
	hexKey := strings.Repeat("0f", KeySize)
	key, err := ParseKey(hexKey)
	if err != nil || len(key) != KeySize || key[0] != 0x0f {
		t.Fatalf("ParseKey(hex) = %x, %v", key, err)
	}

	passphrase := "correct horse battery staple and then some"
	k1, err := ParseKey(passphrase)
	if err != nil {
		t.Fatalf("ParseKey(passphrase): %v", err)
	}
	k2, _ := ParseKey(passphrase)
	if string(k1) != string(k2) || len(k1) != KeySize {
		t.Error("passphrase derivation should be deterministic and 32 bytes")
	}

	if _, err := ParseKey(""); !errors.Is(err, ErrNoKeyMaterial) {
		t.Errorf("empty material: expected ErrNoKeyMaterial, got %v", err)
	}
	if _, err := ParseKey("too-short"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("short material: expected ErrInvalidKey, got %v", err)
	}
}

func TestNewCodecRejectsWrongKeySize(t *testing.T) {
	if _, err := NewCodec(make([]byte, 16)); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestLoadCodecRequiresKeyMaterial(t *testing.T) {
	if _, err := LoadCodec(KeySource{}); !errors.Is(err, ErrNoKeyMaterial) {
		t.Errorf("expected ErrNoKeyMaterial, got %v", err)
	}
	if _, err := LoadCodec(KeySource{File: "/does/not/matter"}); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("key file without identity: expected ErrInvalidKey, got %v", err)
	}
}

func TestLoadCodecFromWrappedKeyFile(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	material, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	wrapped, err := WrapKey(material, identity.Recipient().String())
	if err != nil {
		t.Fatalf("wrap key: %v", err)
	}

	path := t.TempDir() + "/encryption.key.age"
	if err := os.WriteFile(path, wrapped, 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	fromFile, err := LoadCodec(KeySource{File: path, AgeIdentity: identity.String()})
	if err != nil {
		t.Fatalf("LoadCodec(file): %v", err)
	}
	inline, err := LoadCodec(KeySource{Key: material})
	if err != nil {
		t.Fatalf("LoadCodec(inline): %v", err)
	}

	blob, err := inline.Encrypt("same key either way")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if got, err := fromFile.Decrypt(blob); err != nil || got != "same key either way" {
		t.Errorf("file codec decrypt = %q, %v", got, err)
	}

	other, _ := age.GenerateX25519Identity()
	if _, err := LoadCodec(KeySource{File: path, AgeIdentity: other.String()}); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("wrong identity: expected ErrDecryptionFailed, got %v", err)
	}
}
