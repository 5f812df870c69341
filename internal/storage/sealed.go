package storage

import (
	"bytes"
	"context"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Argon2id parameters for deriving the sealing key from a passphrase.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	saltSize     = 16
)

// saltKey holds the per-store derivation salt. It is stored in clear.
var saltKey = []byte("__sealed/salt")

var (
	// ErrEmptyPassphrase is returned when sealing is requested without a key.
	ErrEmptyPassphrase = errors.New("sealed kv: empty passphrase")

	// ErrUnsealFailed indicates a value could not be authenticated,
	// usually because the passphrase changed.
	ErrUnsealFailed = errors.New("sealed kv: unseal failed")
)

// SealedKV wraps a KV and encrypts every value with XChaCha20-Poly1305.
//
// The entry key is bound as additional data, so a value copied under a
// different key fails to open.
type SealedKV struct {
	inner KV
	aead  cipher.AEAD
}

// NewSealedKV derives a key from passphrase and wraps inner.
// The salt is created on first use and persisted in inner.
func NewSealedKV(ctx context.Context, inner KV, passphrase string) (*SealedKV, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}

	salt, err := inner.Get(ctx, saltKey)
	if errors.Is(err, ErrKeyNotFound) {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("sealed kv: generate salt: %w", err)
		}
		if err := inner.Set(ctx, saltKey, salt); err != nil {
			return nil, fmt.Errorf("sealed kv: store salt: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("sealed kv: load salt: %w", err)
	}

	key := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("sealed kv: init cipher: %w", err)
	}

	return &SealedKV{inner: inner, aead: aead}, nil
}

// Get retrieves and decrypts a value.
func (s *SealedKV) Get(ctx context.Context, key []byte) ([]byte, error) {
	sealed, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.open(key, sealed)
}

// Set encrypts and stores a value.
func (s *SealedKV) Set(ctx context.Context, key, value []byte) error {
	sealed, err := s.seal(key, value)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, sealed)
}

// Delete removes a key.
func (s *SealedKV) Delete(ctx context.Context, key []byte) error {
	return s.inner.Delete(ctx, key)
}

// Scan iterates over decrypted values. Entries that fail to open are skipped.
func (s *SealedKV) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	return s.inner.Scan(ctx, prefix, func(key, value []byte) bool {
		if bytes.Equal(key, saltKey) {
			return true
		}
		plain, err := s.open(key, value)
		if err != nil {
			return true
		}
		return fn(key, plain)
	})
}

// Close closes the wrapped store.
func (s *SealedKV) Close() error {
	return s.inner.Close()
}

// seal prepends a random nonce to the ciphertext.
func (s *SealedKV) seal(key, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("sealed kv: nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, key), nil
}

func (s *SealedKV) open(key, sealed []byte) ([]byte, error) {
	if len(sealed) < s.aead.NonceSize() {
		return nil, ErrUnsealFailed
	}
	nonce := sealed[:s.aead.NonceSize()]
	plain, err := s.aead.Open(nil, nonce, sealed[s.aead.NonceSize():], key)
	if err != nil {
		return nil, ErrUnsealFailed
	}
	return plain, nil
}
