package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	minIterations = 100000
	minSaltBytes  = 32
	minKeyBytes   = 32
)

// HashConfig holds the PBKDF2 parameters for password hashing.
type HashConfig struct {
	Iterations int
	SaltLength int
	KeyLength  int
}

// Hasher derives and verifies password hashes using PBKDF2-HMAC-SHA256.
// The encoded form is "hexsalt:base64key", carrying the salt alongside the
// derived key so verification can re-derive with identical parameters.
type Hasher struct {
	config HashConfig
}

// NewHasher validates cfg and returns a password Hasher. There is no
// degraded mode: if key derivation cannot run, operations fail instead of
// falling back to a weaker hash.
func NewHasher(cfg HashConfig) (*Hasher, error) {
	if cfg.Iterations < minIterations {
		return nil, errors.New("hash iterations must be >= 100000")
	}
	if cfg.SaltLength < minSaltBytes {
		return nil, errors.New("hash salt length must be >= 32 bytes")
	}
	if cfg.KeyLength < minKeyBytes {
		return nil, errors.New("hash key length must be >= 32 bytes")
	}

	return &Hasher{config: cfg}, nil
}

// Hash derives a salted hash of password. Each call generates a fresh
// random salt, so hashing the same password twice never yields the same
// output.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	return h.hashWithSalt(password, salt), nil
}

// Verify reports whether password matches the stored encoded hash. It
// returns false, never an error, for malformed stored hashes; the compare
// is constant-time over the derived key.
func (h *Hasher) Verify(password, encoded string) bool {
	saltHex, storedKey, ok := strings.Cut(encoded, ":")
	if !ok {
		return false
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) == 0 {
		return false
	}

	expected, err := base64.RawURLEncoding.DecodeString(storedKey)
	if err != nil || len(expected) == 0 {
		return false
	}

	derived := pbkdf2.Key([]byte(password), salt, h.config.Iterations, len(expected), sha256.New)

	return subtle.ConstantTimeCompare(derived, expected) == 1
}

func (h *Hasher) hashWithSalt(password string, salt []byte) string {
	key := pbkdf2.Key([]byte(password), salt, h.config.Iterations, h.config.KeyLength, sha256.New)
	return hex.EncodeToString(salt) + ":" + base64.RawURLEncoding.EncodeToString(key)
}
