// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package dane publishes and discovers SPKI pins through RFC 6698 TLSA
// records. Only records that carry a SHA-256 digest of the
// SubjectPublicKeyInfo (selector 1, matching type 1) map onto pins; other
// records are ignored.
package dane

import "errors"

// DNS lookup errors.
var (
	// ErrNoTLSARecords indicates no TLSA records were found for the queried name.
	ErrNoTLSARecords = errors.New("dane: no TLSA records found")

	// ErrNoUsableRecords indicates TLSA records were found but none of them
	// is an SPKI SHA-256 record.
	ErrNoUsableRecords = errors.New("dane: no SPKI SHA-256 TLSA records")

	// ErrDNSLookupFailed indicates the DNS query for TLSA records failed.
	ErrDNSLookupFailed = errors.New("dane: DNS lookup failed")

	// ErrDNSSECRequired indicates DNSSEC validation is required but the
	// Authenticated Data (AD) flag was not set in the DNS response.
	ErrDNSSECRequired = errors.New("dane: DNSSEC validation required but AD flag not set")
)

// Input validation errors.
var (
	// ErrInvalidHostname indicates an empty or malformed hostname.
	ErrInvalidHostname = errors.New("dane: invalid hostname")

	// ErrInvalidPort indicates port number zero.
	ErrInvalidPort = errors.New("dane: invalid port")

	// ErrUnsupportedUsage indicates a certificate usage that cannot carry a pin.
	ErrUnsupportedUsage = errors.New("dane: unsupported TLSA usage")

	// ErrInvalidPin indicates a zero pin digest.
	ErrInvalidPin = errors.New("dane: invalid pin")

	// ErrResolverConfig indicates the resolver configuration is invalid.
	ErrResolverConfig = errors.New("dane: invalid resolver configuration")
)
