// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package keyalg identifies the public key algorithms supported for SPKI
// pinning and reconstructs the DER-encoded SubjectPublicKeyInfo of a key
// from its raw body and a fixed per-algorithm ASN.1 header.
//
// Supported variants are RSA-2048, RSA-4096 and ECDSA over P-256, P-384 and
// P-521. Anything else is unsupported and must be rejected by callers.
package keyalg

import "errors"

var (
	// ErrUnsupportedAlgorithm is returned when a key type and size pair does
	// not map to exactly one supported algorithm.
	ErrUnsupportedAlgorithm = errors.New("keyalg: unsupported algorithm")

	// ErrUnsupportedKeyType is returned when a key type name or Go key type
	// is neither RSA nor elliptic curve.
	ErrUnsupportedKeyType = errors.New("keyalg: unsupported key type")

	// ErrEmptyKey is returned when the raw key body is empty.
	ErrEmptyKey = errors.New("keyalg: empty key body")

	// ErrInvalidSPKI is returned when DER SubjectPublicKeyInfo bytes cannot be parsed.
	ErrInvalidSPKI = errors.New("keyalg: invalid subject public key info")
)
