// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package pinstore holds the per-domain sets of accepted SPKI pin digests.
//
// A Store is an immutable mapping published through an atomic pointer:
// readers never lock and always observe a complete snapshot, while Load and
// Replace build a new mapping and swap it in whole. Expired pins are kept in
// the mapping but are never returned as match candidates.
package pinstore

import "errors"

var (
	// ErrInvalidDigest is returned when a pin digest is not a SHA-256 value
	// in one of the accepted encodings.
	ErrInvalidDigest = errors.New("pinstore: invalid pin digest")

	// ErrInvalidDomain is returned when a domain is empty after normalization.
	ErrInvalidDomain = errors.New("pinstore: invalid domain")

	// ErrInvalidConfig is returned when a pin configuration document cannot
	// be parsed.
	ErrInvalidConfig = errors.New("pinstore: invalid configuration")

	// ErrFileOperation is returned when a pin configuration file cannot be read.
	ErrFileOperation = errors.New("pinstore: file operation failed")
)
