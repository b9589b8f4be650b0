// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package noiseproto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/flynn/noise"
	"golang.org/x/crypto/curve25519"
)

// GenerateStaticKey generates a Curve25519 static key pair for a pin server.
func GenerateStaticKey() (*noise.DHKey, error) {
	key, err := noise.DH25519.GenerateKeypair(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	return &key, nil
}

// LoadStaticKey derives the public half from a raw private key. The
// private bytes are copied.
func LoadStaticKey(privateKey []byte) (*noise.DHKey, error) {
	if len(privateKey) != KeySize {
		return nil, ErrInvalidKeySize
	}

	priv := make([]byte, KeySize)
	copy(priv, privateKey)

	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeySize, err)
	}
	return &noise.DHKey{Private: priv, Public: pub}, nil
}

// EncodeStaticKey hex-encodes the private half for storage.
func EncodeStaticKey(key *noise.DHKey) string {
	return hex.EncodeToString(key.Private)
}

// DecodeStaticKey reverses EncodeStaticKey.
func DecodeStaticKey(encoded string) (*noise.DHKey, error) {
	privateKey, err := hex.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hex encoding: %w", ErrInvalidKeySize, err)
	}
	defer WipeBytes(privateKey)
	return LoadStaticKey(privateKey)
}

// DecodePublicKey parses a hex-encoded 32-byte public key, as handed to
// pin clients out-of-band.
func DecodePublicKey(encoded string) ([]byte, error) {
	pub, err := hex.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hex encoding: %w", ErrInvalidKeySize, err)
	}
	if len(pub) != KeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidKeySize, KeySize, len(pub))
	}
	return pub, nil
}

// ReadStaticKeyFile loads a static key stored with WriteStaticKeyFile.
func ReadStaticKeyFile(path string) (*noise.DHKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("noise: read key file: %w", err)
	}
	defer WipeBytes(data)
	return DecodeStaticKey(string(data))
}

// WriteStaticKeyFile stores the private half hex-encoded with owner-only
// permissions.
func WriteStaticKeyFile(path string, key *noise.DHKey) error {
	if key == nil || len(key.Private) != KeySize {
		return ErrInvalidKeySize
	}
	if err := os.WriteFile(path, []byte(EncodeStaticKey(key)+"\n"), 0600); err != nil {
		return fmt.Errorf("noise: write key file: %w", err)
	}
	return nil
}
