// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package dane

import (
	"log/slog"
	"time"
)

// Certificate usage values (RFC 6698 Section 2.1.1).
const (
	// UsageCAConstraint (PKIX-TA) constrains which CA can issue certificates.
	UsageCAConstraint uint8 = 0

	// UsageServiceCert (PKIX-EE) pins an end-entity certificate that must
	// also pass PKIX validation.
	UsageServiceCert uint8 = 1

	// UsageDANETA (DANE-TA) names a trust anchor key. Its pin is usually an
	// intermediate or root key of the chain.
	UsageDANETA uint8 = 2

	// UsageDANEEE (DANE-EE) pins the server's own key.
	UsageDANEEE uint8 = 3
)

// Selector values (RFC 6698 Section 2.1.2).
const (
	// SelectorFullCert selects the full DER certificate.
	SelectorFullCert uint8 = 0

	// SelectorSPKI selects the DER SubjectPublicKeyInfo.
	SelectorSPKI uint8 = 1
)

// Matching type values (RFC 6698 Section 2.1.3).
const (
	// MatchingExact carries the selected data itself.
	MatchingExact uint8 = 0

	// MatchingSHA256 carries a SHA-256 digest of the selected data.
	MatchingSHA256 uint8 = 1

	// MatchingSHA512 carries a SHA-512 digest of the selected data.
	MatchingSHA512 uint8 = 2
)

// TLSARecord is a parsed TLSA resource record.
type TLSARecord struct {
	// Usage is the certificate usage field (0-3).
	Usage uint8

	// Selector is the selector field (0-1).
	Selector uint8

	// MatchingType is the matching type field (0-2).
	MatchingType uint8

	// CertData is the certificate association data.
	CertData []byte
}

// ResolverConfig configures the DNS resolver used for TLSA lookups.
type ResolverConfig struct {
	// Server is the DNS resolver address (e.g., "8.8.8.8:53").
	// When empty, the first nameserver of /etc/resolv.conf is used.
	Server string

	// UseTLS enables DNS-over-TLS (DoT) on port 853.
	UseTLS bool

	// TLSServerName is the SNI value for DNS-over-TLS connections.
	TLSServerName string

	// RequireAD requires the Authenticated Data flag in responses, meaning
	// the resolver validated DNSSEC signatures. Pins learned from unsigned
	// zones can be forged by anyone on path.
	RequireAD bool

	// Timeout is the maximum duration for a DNS query. Default: 5 seconds.
	Timeout time.Duration

	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// TLSARecordString is a TLSA record formatted for a DNS zone file.
type TLSARecordString struct {
	// Name is the owner name (e.g., "_443._tcp.example.com.").
	Name string

	// Usage is the certificate usage field.
	Usage uint8

	// Selector is the selector field.
	Selector uint8

	// MatchingType is the matching type field.
	MatchingType uint8

	// HexData is the hex-encoded association data.
	HexData string

	// ZoneLine is the full zone file line
	// (e.g., "_443._tcp.example.com. IN TLSA 3 1 1 a1b2c3d4...").
	ZoneLine string
}
