package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

// SealedPrefix marks provider API keys encrypted at rest.
const SealedPrefix = "sealed:"

const nonceSize = 24

var (
	// ErrNoSealKey is returned when sealing is attempted without a key
	ErrNoSealKey = errors.New("no seal key configured")
	// ErrUnsealFailed is returned when a sealed value cannot be opened
	ErrUnsealFailed = errors.New("failed to unseal api key")
)

// KeySealer encrypts provider API keys before they are stored with a
// conversation or in the global config.
type KeySealer struct {
	key *[32]byte
}

// NewKeySealer derives the secretbox key from the configured secret. An
// empty secret yields a sealer that stores keys in plain text.
func NewKeySealer(secret string) *KeySealer {
	if secret == "" {
		return &KeySealer{}
	}
	sum := sha256.Sum256([]byte(secret))
	return &KeySealer{key: &sum}
}

// Enabled reports whether keys are encrypted.
func (s *KeySealer) Enabled() bool {
	return s != nil && s.key != nil
}

// Seal encrypts apiKey. Empty keys stay empty.
func (s *KeySealer) Seal(apiKey string) (string, error) {
	if apiKey == "" {
		return "", nil
	}
	if !s.Enabled() {
		return apiKey, nil
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	box := secretbox.Seal(nonce[:], []byte(apiKey), &nonce, s.key)
	return SealedPrefix + base64.RawURLEncoding.EncodeToString(box), nil
}

// Open decrypts a value produced by Seal. Values without the sealed
// prefix are returned unchanged so plain keys keep working.
func (s *KeySealer) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, SealedPrefix) {
		return stored, nil
	}
	if !s.Enabled() {
		return "", ErrNoSealKey
	}

	box, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(stored, SealedPrefix))
	if err != nil || len(box) < nonceSize+secretbox.Overhead {
		return "", ErrUnsealFailed
	}

	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])

	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, s.key)
	if !ok {
		return "", ErrUnsealFailed
	}

	return string(plain), nil
}

// MaskPrefix starts every value produced by MaskAPIKey.
const MaskPrefix = "****"

// MaskAPIKey shows only the last four characters of a key.
func MaskAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 4 {
		return MaskPrefix
	}
	return MaskPrefix + apiKey[len(apiKey)-4:]
}

// IsMasked reports whether value is a masked key rather than a real one.
func IsMasked(value string) bool {
	return strings.HasPrefix(value, MaskPrefix)
}
