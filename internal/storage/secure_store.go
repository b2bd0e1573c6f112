package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrCiphertextTooShort is returned when a stored value is shorter
// than a nonce and cannot possibly decrypt.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// SecureStore wraps a KV and encrypts values at rest with
// ChaCha20-Poly1305. Values that fail to decrypt read as absent, so
// callers treat corruption the same as a missing key.
type SecureStore struct {
	inner KV
	key   [chacha20poly1305.KeySize]byte
}

// NewSecureStore derives a fixed-size key from the secret.
func NewSecureStore(inner KV, secret string) *SecureStore {
	s := &SecureStore{inner: inner}
	s.key = sha256.Sum256([]byte(secret))
	return s
}

// Get decrypts the stored value. Absent, corrupt, or undecryptable
// values all report absence.
func (s *SecureStore) Get(key string) ([]byte, bool, error) {
	sealed, ok, err := s.inner.Get(key)
	if err != nil || !ok {
		return nil, false, err
	}
	plain, err := s.open(sealed)
	if err != nil {
		return nil, false, nil
	}
	return plain, true, nil
}

// Set encrypts and stores the value.
func (s *SecureStore) Set(key string, value []byte) error {
	sealed, err := s.seal(value)
	if err != nil {
		return err
	}
	return s.inner.Set(key, sealed)
}

// Delete removes the key from the underlying store.
func (s *SecureStore) Delete(key string) error {
	return s.inner.Delete(key)
}

func (s *SecureStore) seal(plain []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(s.key[:])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plain, nil), nil
}

func (s *SecureStore) open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(s.key[:])
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}

var _ KV = (*SecureStore)(nil)
