// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package spkipin

import (
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"

	"github.com/jeremyhahn/go-keypin/pkg/keyalg"
	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
)

// ComputeSPKIPin returns the hex SHA-256 of the certificate's SPKI bytes as
// they appear in the certificate, without rebuilding them.
func ComputeSPKIPin(cert *x509.Certificate) string {
	hash := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	return hex.EncodeToString(hash[:])
}

// ComputePin computes the pin of a public key the same way the Validator
// does: identify the algorithm, rebuild the SPKI from its fixed header and
// the raw key body, and digest the result.
func ComputePin(pub crypto.PublicKey) (pinstore.Digest, keyalg.Algorithm, error) {
	attrs, err := keyalg.AttributesFromPublicKey(pub)
	if err != nil {
		return pinstore.Digest{}, keyalg.Unknown, fmt.Errorf("%w: %w", ErrUnsupportedAlgorithm, err)
	}
	alg, err := attrs.Algorithm()
	if err != nil {
		return pinstore.Digest{}, keyalg.Unknown, fmt.Errorf("%w: %w", ErrUnsupportedAlgorithm, err)
	}
	if len(attrs.Raw) != alg.RawKeySize() {
		return pinstore.Digest{}, alg, fmt.Errorf("%w: %s body is %d bytes, expected %d",
			ErrMalformedKey, alg, len(attrs.Raw), alg.RawKeySize())
	}
	spki, err := keyalg.BuildKeyInfo(alg, attrs.Raw)
	if err != nil {
		return pinstore.Digest{}, alg, fmt.Errorf("%w: %w", ErrMalformedKey, err)
	}
	return pinstore.Sum(spki), alg, nil
}

// ComputeCertificatePin computes the pin of a certificate's public key and
// checks that the rebuilt SPKI is identical to the one in the certificate.
// A difference means the key would never match a pin computed from the
// certificate bytes, and is reported as ErrMalformedKey.
func ComputeCertificatePin(cert *x509.Certificate) (pinstore.Digest, keyalg.Algorithm, error) {
	if cert == nil {
		return pinstore.Digest{}, keyalg.Unknown, ErrNoCertificates
	}
	digest, alg, err := ComputePin(cert.PublicKey)
	if err != nil {
		return digest, alg, err
	}
	if !digest.Equal(pinstore.Sum(cert.RawSubjectPublicKeyInfo)) {
		return digest, alg, fmt.Errorf("%w: rebuilt SPKI differs from certificate encoding", ErrMalformedKey)
	}
	return digest, alg, nil
}
