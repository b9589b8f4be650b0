// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package dane

import (
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
	"github.com/miekg/dns"
)

// GenerateTLSARecord formats a DANE-EE (3 1 1) record publishing pin for
// hostname:port.
func GenerateTLSARecord(pin pinstore.Digest, hostname string, port uint16) (*TLSARecordString, error) {
	return GenerateTLSARecordUsage(pin, hostname, port, UsageDANEEE)
}

// GenerateTLSARecordUsage formats an SPKI SHA-256 record with the given
// usage. Only DANE-TA and DANE-EE are accepted.
func GenerateTLSARecordUsage(pin pinstore.Digest, hostname string, port uint16, usage uint8) (*TLSARecordString, error) {
	if pin.IsZero() {
		return nil, ErrInvalidPin
	}
	if !pinUsages[usage] {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedUsage, usage)
	}
	name, err := formatTLSAName(hostname, port)
	if err != nil {
		return nil, err
	}

	hexData := pin.Hex()
	return &TLSARecordString{
		Name:         name,
		Usage:        usage,
		Selector:     SelectorSPKI,
		MatchingType: MatchingSHA256,
		HexData:      hexData,
		ZoneLine:     fmt.Sprintf("%s IN TLSA %d %d %d %s", name, usage, SelectorSPKI, MatchingSHA256, hexData),
	}, nil
}

// GenerateTLSARecords formats one record per pin, in the given order.
func GenerateTLSARecords(pins []pinstore.Pin, hostname string, port uint16, usage uint8) ([]*TLSARecordString, error) {
	records := make([]*TLSARecordString, 0, len(pins))
	for _, p := range pins {
		rec, err := GenerateTLSARecordUsage(p.Digest, hostname, port, usage)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// formatTLSAName builds the absolute owner name "_<port>._tcp.<hostname>."
// (RFC 6698 Section 3).
func formatTLSAName(hostname string, port uint16) (string, error) {
	hostname = strings.TrimSpace(hostname)
	if hostname == "" || strings.ContainsRune(hostname, 0) || len(hostname) > 253 {
		return "", ErrInvalidHostname
	}
	if _, ok := dns.IsDomainName(hostname); !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidHostname, hostname)
	}
	if port == 0 {
		return "", ErrInvalidPort
	}
	return fmt.Sprintf("_%d._tcp.%s", port, dns.Fqdn(hostname)), nil
}
