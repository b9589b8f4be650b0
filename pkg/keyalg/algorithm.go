// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package keyalg

import (
	"fmt"
	"strings"
)

// Algorithm is one of the closed set of public key algorithm and size
// variants supported for pinning. The zero value is Unknown and is never
// part of the catalog.
type Algorithm uint8

const (
	// Unknown is the zero Algorithm. It has no header.
	Unknown Algorithm = iota

	// RSA2048 is a 2048-bit RSA key.
	RSA2048

	// RSA4096 is a 4096-bit RSA key.
	RSA4096

	// ECDSAP256 is an ECDSA key on NIST P-256 (secp256r1).
	ECDSAP256

	// ECDSAP384 is an ECDSA key on NIST P-384 (secp384r1).
	ECDSAP384

	// ECDSAP521 is an ECDSA key on NIST P-521 (secp521r1).
	ECDSAP521
)

// variant is the constant data owned by one catalog entry.
type variant struct {
	name    string
	keyType KeyType
	bits    int
	// rawSize is the expected length of the raw key body. For RSA it
	// assumes the public exponent 65537, which is what the header encodes.
	rawSize int
	header  []byte
}

// catalog is indexed by Algorithm. Order matches declaration order and each
// supported variant appears exactly once.
var catalog = [...]variant{
	Unknown: {name: "unknown"},
	RSA2048: {
		name: "rsa-2048", keyType: KeyTypeRSA, bits: 2048, rawSize: 270,
		header: []byte{
			0x30, 0x82, 0x01, 0x22, 0x30, 0x0d, 0x06, 0x09, 0x2a, 0x86, 0x48, 0x86,
			0xf7, 0x0d, 0x01, 0x01, 0x01, 0x05, 0x00, 0x03, 0x82, 0x01, 0x0f, 0x00,
		},
	},
	RSA4096: {
		name: "rsa-4096", keyType: KeyTypeRSA, bits: 4096, rawSize: 526,
		header: []byte{
			0x30, 0x82, 0x02, 0x22, 0x30, 0x0d, 0x06, 0x09, 0x2a, 0x86, 0x48, 0x86,
			0xf7, 0x0d, 0x01, 0x01, 0x01, 0x05, 0x00, 0x03, 0x82, 0x02, 0x0f, 0x00,
		},
	},
	ECDSAP256: {
		name: "ecdsa-p256", keyType: KeyTypeEllipticCurve, bits: 256, rawSize: 65,
		header: []byte{
			0x30, 0x59, 0x30, 0x13, 0x06, 0x07, 0x2a, 0x86, 0x48, 0xce, 0x3d, 0x02,
			0x01, 0x06, 0x08, 0x2a, 0x86, 0x48, 0xce, 0x3d, 0x03, 0x01, 0x07, 0x03,
			0x42, 0x00,
		},
	},
	ECDSAP384: {
		name: "ecdsa-p384", keyType: KeyTypeEllipticCurve, bits: 384, rawSize: 97,
		header: []byte{
			0x30, 0x76, 0x30, 0x10, 0x06, 0x07, 0x2a, 0x86, 0x48, 0xce, 0x3d, 0x02,
			0x01, 0x06, 0x05, 0x2b, 0x81, 0x04, 0x00, 0x22, 0x03, 0x62, 0x00,
		},
	},
	ECDSAP521: {
		name: "ecdsa-p521", keyType: KeyTypeEllipticCurve, bits: 521, rawSize: 133,
		header: []byte{
			0x30, 0x81, 0x9b, 0x30, 0x10, 0x06, 0x07, 0x2a, 0x86, 0x48, 0xce, 0x3d,
			0x02, 0x01, 0x06, 0x05, 0x2b, 0x81, 0x04, 0x00, 0x23, 0x03, 0x81, 0x86,
			0x00,
		},
	},
}

// All returns every supported algorithm exactly once, in declaration order.
// The returned slice is a fresh copy.
func All() []Algorithm {
	algs := make([]Algorithm, 0, len(catalog)-1)
	for i := range catalog {
		if Algorithm(i) == Unknown {
			continue
		}
		algs = append(algs, Algorithm(i))
	}
	return algs
}

// Supported reports whether a is a member of the catalog.
func (a Algorithm) Supported() bool {
	return a != Unknown && int(a) < len(catalog)
}

// Header returns a copy of the fixed DER prefix that precedes the raw key
// body in the algorithm's SubjectPublicKeyInfo. It returns nil for
// unsupported values.
func (a Algorithm) Header() []byte {
	if !a.Supported() {
		return nil
	}
	h := catalog[a].header
	out := make([]byte, len(h))
	copy(out, h)
	return out
}

// KeyType returns the key type category of the algorithm.
func (a Algorithm) KeyType() KeyType {
	if !a.Supported() {
		return KeyTypeUnknown
	}
	return catalog[a].keyType
}

// KeySize returns the key size in bits.
func (a Algorithm) KeySize() int {
	if !a.Supported() {
		return 0
	}
	return catalog[a].bits
}

// RawKeySize returns the length in bytes of a well-formed raw key body:
// the PKCS#1 RSAPublicKey encoding (exponent 65537) for RSA, or the
// uncompressed point for ECDSA.
func (a Algorithm) RawKeySize() int {
	if !a.Supported() {
		return 0
	}
	return catalog[a].rawSize
}

// String returns the lower-case algorithm name, e.g. "ecdsa-p256".
func (a Algorithm) String() string {
	if int(a) >= len(catalog) {
		return fmt.Sprintf("algorithm(%d)", uint8(a))
	}
	return catalog[a].name
}

// ParseAlgorithm parses a name produced by String. Matching is
// case-insensitive.
func ParseAlgorithm(name string) (Algorithm, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, a := range All() {
		if catalog[a].name == n {
			return a, nil
		}
	}
	return Unknown, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
}
