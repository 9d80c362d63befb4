package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrInvalidIdentifier is returned when a shareable ID cannot be decoded,
// either because it is malformed or was produced under a different key.
var ErrInvalidIdentifier = errors.New("invalid encoded identifier")

const nonceSize = 12

// Codec produces reversible-but-opaque encodings of sensitive external
// identifiers. Encoding is deterministic: the same identifier always maps to
// the same shareable ID under a given key, so links to the same external
// account collide on the encoded form without ever exposing the raw ID.
type Codec struct {
	key []byte
}

// Config holds codec configuration.
type Config struct {
	SecretKey string
	Salt      []byte
}

// New derives the codec key from the configured secret using Argon2id.
func New(config Config) (*Codec, error) {
	if config.SecretKey == "" {
		return nil, errors.New("codec secret key required")
	}
	if len(config.Salt) == 0 {
		return nil, errors.New("codec salt required")
	}

	key := argon2.IDKey([]byte(config.SecretKey), config.Salt, 3, 32*1024, 4, 32)
	return &Codec{key: key}, nil
}

// Encode encrypts an identifier to a URL-safe shareable form. The AES-GCM
// nonce is derived from the plaintext, which makes the output deterministic
// while keeping the raw identifier unrecoverable without the key.
func (c *Codec) Encode(id string) (string, error) {
	if id == "" {
		return "", errors.New("identifier cannot be empty")
	}

	nonce := c.deriveNonce(id)

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(id), nil)

	result := make([]byte, len(nonce)+len(ciphertext))
	copy(result, nonce)
	copy(result[len(nonce):], ciphertext)

	return base64.RawURLEncoding.EncodeToString(result), nil
}

// Decode is the inverse of Encode.
func (c *Codec) Decode(encoded string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidIdentifier
	}

	if len(data) < nonceSize {
		return "", ErrInvalidIdentifier
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrInvalidIdentifier
	}

	return string(plaintext), nil
}

func (c *Codec) deriveNonce(id string) []byte {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(id))
	return mac.Sum(nil)[:nonceSize]
}

// CustomerIDFromURL extracts the trailing identifier segment from a provider
// resource URL, e.g. "https://api.dwolla.com/customers/cust_123" -> "cust_123".
func CustomerIDFromURL(resourceURL string) string {
	trimmed := strings.TrimRight(resourceURL, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+1:]
}
