// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package dane

import (
	"testing"

	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPinRecord(t *testing.T) {
	d := pinstore.Sum(nil)

	tests := []struct {
		name   string
		record *TLSARecord
		want   bool
	}{
		{"dane-ee spki sha256", &TLSARecord{UsageDANEEE, SelectorSPKI, MatchingSHA256, d[:]}, true},
		{"dane-ta spki sha256", &TLSARecord{UsageDANETA, SelectorSPKI, MatchingSHA256, d[:]}, true},
		{"pkix usage", &TLSARecord{UsageServiceCert, SelectorSPKI, MatchingSHA256, d[:]}, false},
		{"full cert selector", &TLSARecord{UsageDANEEE, SelectorFullCert, MatchingSHA256, d[:]}, false},
		{"sha512", &TLSARecord{UsageDANEEE, SelectorSPKI, MatchingSHA512, d[:]}, false},
		{"short data", &TLSARecord{UsageDANEEE, SelectorSPKI, MatchingSHA256, d[:16]}, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPinRecord(tt.record))
		})
	}
}

func TestPinsFromTLSA(t *testing.T) {
	a := pinstore.Sum([]byte("a"))
	b := pinstore.Sum([]byte("b"))

	pins, err := PinsFromTLSA([]*TLSARecord{
		{UsageDANEEE, SelectorSPKI, MatchingSHA256, a[:]},
		{UsageCAConstraint, SelectorSPKI, MatchingSHA256, b[:]},
		nil,
		{UsageDANETA, SelectorSPKI, MatchingSHA256, b[:]},
	})
	require.NoError(t, err)
	assert.Equal(t, []pinstore.Pin{{Digest: a}, {Digest: b}}, pins)

	_, err = PinsFromTLSA(nil)
	assert.ErrorIs(t, err, ErrNoUsableRecords)
}

func TestPinsFromTLSA_DoesNotAlias(t *testing.T) {
	data := pinstore.Sum([]byte("a"))
	raw := data[:]

	pins, err := PinsFromTLSA([]*TLSARecord{{UsageDANEEE, SelectorSPKI, MatchingSHA256, raw}})
	require.NoError(t, err)

	raw[0] ^= 0xff
	assert.Equal(t, pinstore.Sum([]byte("a")), pins[0].Digest)
}
