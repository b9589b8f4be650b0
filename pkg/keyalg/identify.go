// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package keyalg

import (
	"fmt"
	"strings"
)

// KeyType is the key type category reported for an observed key.
type KeyType uint8

const (
	// KeyTypeUnknown is the zero KeyType.
	KeyTypeUnknown KeyType = iota

	// KeyTypeRSA is an RSA key.
	KeyTypeRSA

	// KeyTypeEllipticCurve is an elliptic curve (ECDSA) key.
	KeyTypeEllipticCurve
)

// String returns "rsa", "ec" or "unknown".
func (t KeyType) String() string {
	switch t {
	case KeyTypeRSA:
		return "rsa"
	case KeyTypeEllipticCurve:
		return "ec"
	default:
		return "unknown"
	}
}

// keyTypeNames maps every known spelling of a key type to its category.
// Platforms disagree on the elliptic curve name (older Security framework
// releases report "EC", newer ones "ECSECPrimeRandom", both backed by the
// constant "73"), so all of them collapse into KeyTypeEllipticCurve here and
// nowhere else.
var keyTypeNames = map[string]KeyType{
	"rsa": KeyTypeRSA,
	"42":  KeyTypeRSA,

	"ec":               KeyTypeEllipticCurve,
	"ecdsa":            KeyTypeEllipticCurve,
	"ecsecprimerandom": KeyTypeEllipticCurve,
	"elliptic-curve":   KeyTypeEllipticCurve,
	"ellipticcurve":    KeyTypeEllipticCurve,
	"73":               KeyTypeEllipticCurve,
}

// ParseKeyType normalizes a platform key type name into a KeyType.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseKeyType(name string) (KeyType, error) {
	kt, ok := keyTypeNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return KeyTypeUnknown, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, name)
	}
	return kt, nil
}

// algorithmKey is the exact (type, size) pair used for identification.
type algorithmKey struct {
	keyType KeyType
	bits    int
}

// identifyTable is derived from the catalog so that the two can never
// disagree.
var identifyTable = func() map[algorithmKey]Algorithm {
	m := make(map[algorithmKey]Algorithm, len(catalog))
	for _, a := range All() {
		m[algorithmKey{catalog[a].keyType, catalog[a].bits}] = a
	}
	return m
}()

// Identify maps a key type and size in bits to exactly one supported
// Algorithm. Only exact pairs match: a 3072-bit RSA key or a 224-bit EC
// key is unsupported, never rounded to the nearest known size.
func Identify(kt KeyType, bits int) (Algorithm, error) {
	alg, ok := identifyTable[algorithmKey{kt, bits}]
	if !ok {
		return Unknown, fmt.Errorf("%w: %s/%d", ErrUnsupportedAlgorithm, kt, bits)
	}
	return alg, nil
}
