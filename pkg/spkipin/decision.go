// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package spkipin

import (
	"fmt"

	"github.com/jeremyhahn/go-keypin/pkg/keyalg"
	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
)

// Reason is the typed outcome of a validation.
type Reason uint8

const (
	// ReasonNone is the reason of an accepted decision.
	ReasonNone Reason = iota

	// ReasonUnsupportedAlgorithm means the key type and size pair is not supported.
	ReasonUnsupportedAlgorithm

	// ReasonMalformedKey means the raw key body does not fit the identified algorithm.
	ReasonMalformedKey

	// ReasonNoPinsConfigured means the domain has no pins.
	ReasonNoPinsConfigured

	// ReasonPinMismatch means the digest is not among the domain's pins.
	ReasonPinMismatch

	// ReasonPinExpired means the digest only matches expired pins, or every
	// pin of the domain has expired.
	ReasonPinExpired
)

var reasonNames = map[Reason]string{
	ReasonNone:                 "none",
	ReasonUnsupportedAlgorithm: "unsupported_algorithm",
	ReasonMalformedKey:         "malformed_key",
	ReasonNoPinsConfigured:     "no_pins_configured",
	ReasonPinMismatch:          "pin_mismatch",
	ReasonPinExpired:           "pin_expired",
}

var reasonErrors = map[Reason]error{
	ReasonUnsupportedAlgorithm: ErrUnsupportedAlgorithm,
	ReasonMalformedKey:         ErrMalformedKey,
	ReasonNoPinsConfigured:     ErrNoPinsConfigured,
	ReasonPinMismatch:          ErrSPKIPinMismatch,
	ReasonPinExpired:           ErrPinExpired,
}

// String returns the snake_case reason name used in logs and metrics.
func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("reason(%d)", uint8(r))
}

// Decision is the result of validating one key for one domain.
type Decision struct {
	// Accepted is true only when the digest matched a usable pin.
	Accepted bool

	// Reason is ReasonNone when accepted, otherwise why the key was rejected.
	Reason Reason

	// Domain is the normalized validation domain.
	Domain string

	// Algorithm is the identified key algorithm, or keyalg.Unknown.
	Algorithm keyalg.Algorithm

	// Digest is the SHA-256 pin of the reconstructed key. It is zero when
	// validation stopped before digesting.
	Digest pinstore.Digest

	// Grace is set when the key was accepted through an expired pin inside
	// the configured grace period. Callers should surface a rotation warning.
	Grace bool
}

// Err returns nil for an accepted decision and a *RejectError otherwise.
func (d Decision) Err() error {
	if d.Accepted {
		return nil
	}
	return &RejectError{Domain: d.Domain, Reason: d.Reason, Algorithm: d.Algorithm}
}

// RejectError reports a rejected validation. It unwraps to the sentinel
// error of its Reason so callers can use errors.Is.
type RejectError struct {
	// Domain is the validation domain.
	Domain string

	// Reason is why validation rejected.
	Reason Reason

	// Algorithm is the identified algorithm, if any.
	Algorithm keyalg.Algorithm
}

// Error returns a message including the domain and reason.
func (e *RejectError) Error() string {
	return fmt.Sprintf("spkipin: %s rejected for %q (%s)", e.Reason, e.Domain, e.Algorithm)
}

// Unwrap returns the sentinel error matching Reason.
func (e *RejectError) Unwrap() error {
	return reasonErrors[e.Reason]
}

// accept builds an accepted decision.
func accept(domain string, alg keyalg.Algorithm, digest pinstore.Digest) Decision {
	return Decision{Accepted: true, Domain: domain, Algorithm: alg, Digest: digest}
}

// reject builds a rejected decision.
func reject(domain string, reason Reason, alg keyalg.Algorithm, digest pinstore.Digest) Decision {
	return Decision{Reason: reason, Domain: domain, Algorithm: alg, Digest: digest}
}
