// Package crypto resolves TLS certificates for server names and unseals
// private keys stored encrypted at rest.
//
// Sealed keys use AES-256-GCM with a random nonce per seal. The stored form is
// "enc:" followed by base64(nonce || ciphertext). Values without the prefix
// are plaintext PEM and pass through unchanged, so stores can be migrated one
// key at a time.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"edge-gateway/internal/common/errors"
)

// SealedPrefix marks a sealed value.
const SealedPrefix = "enc:"

// KeyEncryptor seals and unseals private keys.
// It is safe for concurrent use by multiple goroutines.
type KeyEncryptor struct {
	key []byte // 32-byte AES-256 key
}

// NewKeyEncryptor derives an AES-256 key from secret with PBKDF2.
func NewKeyEncryptor(secret string) (*KeyEncryptor, error) {
	if secret == "" {
		return nil, errors.ValidationError("encryption key cannot be empty")
	}

	// Static salt: the same secret must unseal keys written by any instance.
	salt := []byte("edge-gateway-keys")
	derivedKey := pbkdf2.Key([]byte(secret), salt, 10000, 32, sha256.New)

	return &KeyEncryptor{key: derivedKey}, nil
}

// IsSealed reports whether value carries the sealed prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}

// Seal encrypts plaintext. Empty input stays empty.
func (e *KeyEncryptor) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	gcm, err := e.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.InternalError("failed to create nonce", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return SealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open returns the plaintext of a sealed value, or value itself when it is
// not sealed. Tampered data and wrong keys fail authentication.
func (e *KeyEncryptor) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, SealedPrefix))
	if err != nil {
		return "", errors.MalformedError("sealed value is not base64", err)
	}

	gcm, err := e.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize+gcm.Overhead() {
		return "", errors.MalformedError("sealed value too short", nil)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.TLSError("failed to unseal key", err)
	}

	return string(plaintext), nil
}

func (e *KeyEncryptor) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, errors.InternalError("failed to create cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.InternalError("failed to create GCM", err)
	}
	return gcm, nil
}
