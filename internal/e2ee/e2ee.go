// Package e2ee provides the application-level sealing applied to frames
// before they cross the transport session: AES-256-GCM with a random
// 12-byte nonce prepended to each ciphertext. Keys come either from a
// pre-shared key or from the TLS session's exported keying material, so the
// gateway can derive the same session without any extra handshake.
package e2ee

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"errors"
	"fmt"
)

const (
	// KeySize is the AES-256 key length.
	KeySize = 32
	// NonceSize is the GCM nonce length prepended to each sealed frame.
	NonceSize = 12

	// ekmLabel is the RFC 5705 exporter label both ends agree on.
	ekmLabel = "tdl-bridge-e2ee-2026"
)

// ErrDecrypt is returned when a sealed frame fails authentication or is too
// short to carry a nonce.
var ErrDecrypt = errors.New("e2ee: decrypt failed")

// Session encrypts and decrypts frame payloads under one symmetric key.
// Sessions are safe for concurrent use.
type Session struct {
	aead cipher.AEAD
}

// NewSession constructs a session from a raw 32-byte key.
func NewSession(key [KeySize]byte) (*Session, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("e2ee: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("e2ee: %w", err)
	}
	return &Session{aead: aead}, nil
}

// SessionFromPSK derives a session key by hashing the pre-shared key. Meant
// for lab setups where certificate material is not available.
func SessionFromPSK(psk []byte) (*Session, error) {
	if len(psk) == 0 {
		return nil, errors.New("e2ee: empty pre-shared key")
	}
	return NewSession(sha256.Sum256(psk))
}

// SessionFromTLS derives a session key from the connection's exported
// keying material, binding the sealing key to the mutually authenticated
// TLS session.
func SessionFromTLS(cs tls.ConnectionState) (*Session, error) {
	raw, err := cs.ExportKeyingMaterial(ekmLabel, nil, KeySize)
	if err != nil {
		return nil, fmt.Errorf("e2ee: export keying material: %w", err)
	}
	var key [KeySize]byte
	copy(key[:], raw)
	return NewSession(key)
}

// Seal encrypts plaintext under aad and returns nonce || ciphertext.
func (s *Session) Seal(aad, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize, NonceSize+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("e2ee: nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, aad), nil
}

// Open decrypts a frame produced by Seal with the same aad.
func (s *Session) Open(aad, sealed []byte) ([]byte, error) {
	if len(sealed) < NonceSize {
		return nil, ErrDecrypt
	}
	nonce, ct := sealed[:NonceSize], sealed[NonceSize:]
	pt, err := s.aead.Open(nil, nonce, ct, aad)
	if err != nil {
		return nil, ErrDecrypt
	}
	return pt, nil
}
