// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package keyalg

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
)

// KeyAttributes describes an observed public key the way a platform trust
// API reports it: a key type category, a size in bits and the raw
// algorithm-specific key body.
type KeyAttributes struct {
	// Type is the normalized key type category.
	Type KeyType

	// SizeBits is the key size in bits (RSA modulus length or curve size).
	SizeBits int

	// Raw is the key body: the PKCS#1 RSAPublicKey DER for RSA, or the
	// uncompressed curve point for ECDSA.
	Raw []byte
}

// Algorithm identifies the attributes' algorithm.
func (k *KeyAttributes) Algorithm() (Algorithm, error) {
	return Identify(k.Type, k.SizeBits)
}

// AttributesFromPublicKey extracts KeyAttributes from a Go public key.
// RSA and ECDSA keys of any size are accepted here; whether the size is
// supported is decided by Identify. Other key types return
// ErrUnsupportedKeyType.
func AttributesFromPublicKey(pub crypto.PublicKey) (*KeyAttributes, error) {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		if k == nil || k.N == nil {
			return nil, fmt.Errorf("%w: nil RSA key", ErrUnsupportedKeyType)
		}
		return &KeyAttributes{
			Type:     KeyTypeRSA,
			SizeBits: k.N.BitLen(),
			Raw:      x509.MarshalPKCS1PublicKey(k),
		}, nil
	case *ecdsa.PublicKey:
		if k == nil || k.Curve == nil {
			return nil, fmt.Errorf("%w: nil ECDSA key", ErrUnsupportedKeyType)
		}
		raw, err := ecPoint(k)
		if err != nil {
			return nil, err
		}
		return &KeyAttributes{
			Type:     KeyTypeEllipticCurve,
			SizeBits: k.Curve.Params().BitSize,
			Raw:      raw,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, pub)
	}
}

// AttributesFromSPKI parses DER SubjectPublicKeyInfo bytes, such as
// x509.Certificate.RawSubjectPublicKeyInfo, and extracts KeyAttributes.
func AttributesFromSPKI(der []byte) (*KeyAttributes, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSPKI, err)
	}
	return AttributesFromPublicKey(pub)
}

// ecPoint returns the uncompressed encoding of an ECDSA public key.
func ecPoint(k *ecdsa.PublicKey) ([]byte, error) {
	if ek, err := k.ECDH(); err == nil {
		return ek.Bytes(), nil
	}
	// crypto/ecdh has no P-224; such keys are reported so that Identify
	// can reject them by size.
	if k.X == nil || k.Y == nil {
		return nil, fmt.Errorf("%w: invalid curve point", ErrUnsupportedKeyType)
	}
	return elliptic.Marshal(k.Curve, k.X, k.Y), nil //nolint:staticcheck // no crypto/ecdh equivalent for this curve
}
