// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package spkipin decides whether an observed server public key is pinned
// for a domain. The Validator identifies the key's algorithm, rebuilds its
// SubjectPublicKeyInfo from the fixed algorithm header and the raw key body,
// digests it with SHA-256 and looks the digest up in a pin store. Every
// ambiguous, missing or mismatched condition rejects.
//
// The package also wires the Validator into crypto/tls and provides a probe
// client that reports the pins of a live TLS endpoint.
package spkipin

import "errors"

var (
	// ErrSPKIPinMismatch is returned when the key digest matches none of the
	// domain's configured pins.
	ErrSPKIPinMismatch = errors.New("spkipin: SPKI pin mismatch")

	// ErrNoPinsConfigured is returned when the domain has no pins at all.
	ErrNoPinsConfigured = errors.New("spkipin: no pins configured")

	// ErrUnsupportedAlgorithm is returned when the key type and size are not
	// one of the supported algorithms.
	ErrUnsupportedAlgorithm = errors.New("spkipin: unsupported key algorithm")

	// ErrPinExpired is returned when the key only matches expired pins, or
	// when every pin of the domain has expired.
	ErrPinExpired = errors.New("spkipin: pin expired")

	// ErrMalformedKey is returned when the raw key body cannot belong to the
	// identified algorithm.
	ErrMalformedKey = errors.New("spkipin: malformed key")

	// ErrNoCertificates is returned when no certificates are presented during TLS verification.
	ErrNoCertificates = errors.New("spkipin: no certificates presented")

	// ErrInvalidConfig is returned when a validator, TLS or client
	// configuration is missing required fields.
	ErrInvalidConfig = errors.New("spkipin: invalid configuration")

	// ErrConnectFailed is returned when the probe client cannot complete a
	// TLS handshake with the endpoint.
	ErrConnectFailed = errors.New("spkipin: connect failed")
)
