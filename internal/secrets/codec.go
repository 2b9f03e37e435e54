// Package secrets seals upstream API tokens at rest.
//
// Tokens are encrypted with AES-256-GCM under the process-wide MASTER_KEY and
// stored as "enc:v1:<base64(nonce|ciphertext)>". The prefix doubles as the
// codec signature: values without it are treated as legacy plaintext and
// re-encrypted on first read by the user store.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

const prefix = "enc:v1:"

var (
	// ErrNoKey is returned when the codec is constructed without key material.
	ErrNoKey = errors.New("secrets: master key is empty")

	// ErrMalformed is returned for sealed values that cannot be decoded.
	ErrMalformed = errors.New("secrets: malformed sealed value")
)

// Codec encrypts and decrypts short secrets with a symmetric key.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec derives a 256-bit key from masterKey and builds the AEAD.
// Any non-empty string is accepted; the key is the SHA-256 of its bytes.
func NewCodec(masterKey string) (*Codec, error) {
	if masterKey == "" {
		return nil, ErrNoKey
	}
	key := sha256.Sum256([]byte(masterKey))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Codec{aead: aead}, nil
}

// Seal encrypts plaintext and returns the signed representation.
func (c *Codec) Seal(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (c *Codec) Open(value string) (string, error) {
	if !IsSealed(value) {
		return "", ErrMalformed
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, prefix))
	if err != nil {
		return "", ErrMalformed
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns {
		return "", ErrMalformed
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// IsSealed reports whether value carries the codec signature.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, prefix)
}
