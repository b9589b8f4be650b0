// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package noiseproto

import (
	"crypto/rand"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/flynn/noise"
)

// Protocol constants.
const (
	// KeySize is the size of Curve25519 keys in bytes.
	KeySize = 32

	// MaxMessageSize is the maximum plaintext message size: the Noise
	// message limit minus the AEAD tag.
	MaxMessageSize = 65535 - 16
)

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

// SessionConfig configures one side of a Noise_NK session.
type SessionConfig struct {
	// Initiator is true on the client side.
	Initiator bool

	// LocalStaticKey is the responder's static key. Required for the
	// responder, ignored for the initiator.
	LocalStaticKey *noise.DHKey

	// PeerStaticKey is the responder's 32-byte static public key. Required
	// for the initiator.
	PeerStaticKey []byte

	// Prologue must be identical on both sides for the handshake to succeed.
	Prologue []byte
}

// Session is a Noise_NK session. The handshake takes two messages: the
// initiator writes then reads, the responder reads then writes. Encrypt and
// Decrypt are available once IsHandshakeComplete reports true.
type Session struct {
	mu         sync.Mutex
	initiator  bool
	hs         *noise.HandshakeState
	sendCipher *noise.CipherState
	recvCipher *noise.CipherState
	done       atomic.Bool
}

// NewSession validates cfg and prepares the handshake state.
func NewSession(cfg *SessionConfig) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: session config required", ErrHandshakeFailed)
	}

	nc := noise.Config{
		CipherSuite: cipherSuite,
		Random:      rand.Reader,
		Pattern:     noise.HandshakeNK,
		Initiator:   cfg.Initiator,
		Prologue:    cfg.Prologue,
	}
	if cfg.Initiator {
		if len(cfg.PeerStaticKey) != KeySize {
			return nil, fmt.Errorf("%w: server static key must be %d bytes, got %d",
				ErrInvalidKeySize, KeySize, len(cfg.PeerStaticKey))
		}
		nc.PeerStatic = cfg.PeerStaticKey
	} else {
		if cfg.LocalStaticKey == nil || len(cfg.LocalStaticKey.Private) != KeySize {
			return nil, fmt.Errorf("%w: responder static key required", ErrInvalidKeySize)
		}
		nc.StaticKeypair = *cfg.LocalStaticKey
	}

	hs, err := noise.NewHandshakeState(nc)
	if err != nil {
		return nil, fmt.Errorf("%w: init: %w", ErrHandshakeFailed, err)
	}
	return &Session{initiator: cfg.Initiator, hs: hs}, nil
}

// WriteHandshake produces the next handshake message.
func (s *Session) WriteHandshake() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hs == nil {
		return nil, ErrInvalidMessage
	}
	msg, c1, c2, err := s.hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: write: %w", ErrHandshakeFailed, err)
	}
	s.finish(c1, c2)
	return msg, nil
}

// ReadHandshake consumes the peer's next handshake message.
func (s *Session) ReadHandshake(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hs == nil {
		return ErrInvalidMessage
	}
	_, c1, c2, err := s.hs.ReadMessage(nil, msg)
	if err != nil {
		return fmt.Errorf("%w: read (size=%d): %w", ErrHandshakeFailed, len(msg), err)
	}
	s.finish(c1, c2)
	return nil
}

// finish installs the transport ciphers once the handshake yields them.
// c1 protects initiator-to-responder traffic.
func (s *Session) finish(c1, c2 *noise.CipherState) {
	if c1 == nil || c2 == nil {
		return
	}
	if s.initiator {
		s.sendCipher, s.recvCipher = c1, c2
	} else {
		s.sendCipher, s.recvCipher = c2, c1
	}
	s.hs = nil
	s.done.Store(true)
}

// IsHandshakeComplete reports whether the session can carry messages.
func (s *Session) IsHandshakeComplete() bool {
	return s.done.Load()
}

// Encrypt seals a transport message.
func (s *Session) Encrypt(plaintext []byte) ([]byte, error) {
	if !s.done.Load() {
		return nil, ErrSessionNotReady
	}
	if len(plaintext) > MaxMessageSize {
		return nil, fmt.Errorf("%w: message size %d exceeds maximum %d",
			ErrEncryptionFailed, len(plaintext), MaxMessageSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ciphertext, err := s.sendCipher.Encrypt(nil, nil, plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	return ciphertext, nil
}

// Decrypt opens a transport message.
func (s *Session) Decrypt(ciphertext []byte) ([]byte, error) {
	if !s.done.Load() {
		return nil, ErrSessionNotReady
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	plaintext, err := s.recvCipher.Decrypt(nil, nil, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}
