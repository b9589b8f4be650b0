// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package dane

import (
	"crypto/sha256"

	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
)

// pinUsages are the certificate usages whose association data can serve as
// a pin without PKIX validation.
var pinUsages = map[uint8]bool{
	UsageDANETA: true,
	UsageDANEEE: true,
}

// IsPinRecord reports whether a record carries an SPKI SHA-256 digest under
// a DANE usage, i.e. whether it maps onto a pin.
func IsPinRecord(record *TLSARecord) bool {
	return record != nil &&
		pinUsages[record.Usage] &&
		record.Selector == SelectorSPKI &&
		record.MatchingType == MatchingSHA256 &&
		len(record.CertData) == sha256.Size
}

// PinsFromTLSA converts TLSA records to pins. Records that are not pin
// records are skipped. Pins learned from DNS never expire on their own;
// their lifetime is the record's presence in the zone. Returns
// ErrNoUsableRecords when nothing converts.
func PinsFromTLSA(records []*TLSARecord) ([]pinstore.Pin, error) {
	pins := make([]pinstore.Pin, 0, len(records))
	for _, record := range records {
		if !IsPinRecord(record) {
			continue
		}
		var d pinstore.Digest
		copy(d[:], record.CertData)
		pins = append(pins, pinstore.Pin{Digest: d})
	}
	if len(pins) == 0 {
		return nil, ErrNoUsableRecords
	}
	return pins, nil
}
