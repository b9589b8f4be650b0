// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package noiseproto provides the Noise_NK_25519_ChaChaPoly_SHA256 channel
// used to distribute pin sets. The client knows the server's static
// Curve25519 public key in advance, so no certificate and no pin is needed
// to authenticate the pin server itself.
package noiseproto

import "errors"

// Sentinel errors for the noiseproto package.
var (
	// ErrHandshakeFailed indicates the Noise handshake failed.
	ErrHandshakeFailed = errors.New("noise: handshake failed")

	// ErrEncryptionFailed indicates message encryption failed.
	ErrEncryptionFailed = errors.New("noise: encryption failed")

	// ErrDecryptionFailed indicates message decryption failed.
	ErrDecryptionFailed = errors.New("noise: decryption failed")

	// ErrInvalidMessage indicates a handshake step was taken out of order.
	ErrInvalidMessage = errors.New("noise: invalid message")

	// ErrInvalidKeySize indicates a key with an incorrect size was provided.
	ErrInvalidKeySize = errors.New("noise: invalid key size")

	// ErrSessionNotReady indicates an operation was attempted before the
	// handshake completed.
	ErrSessionNotReady = errors.New("noise: session not ready")
)
