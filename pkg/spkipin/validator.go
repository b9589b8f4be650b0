// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package spkipin

import (
	"crypto"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-keypin/pkg/keyalg"
	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
)

// PinLookup is the read side of a pin store. *pinstore.Store satisfies it.
type PinLookup interface {
	// Lookup splits a domain's pins into active and expired at now.
	Lookup(domain string, now time.Time) (active, expired []pinstore.Pin)

	// Now returns the store's current time.
	Now() time.Time
}

// ExpiryPolicy controls how keys matching expired pins are treated.
// The zero value rejects them.
type ExpiryPolicy struct {
	// GracePeriod accepts a key whose pin expired less than GracePeriod ago.
	// Such decisions carry Grace=true. Zero disables the grace window.
	GracePeriod time.Duration
}

// ValidatorConfig configures a Validator.
type ValidatorConfig struct {
	// Pins supplies the accepted pins per domain. Required.
	Pins PinLookup

	// Expiry is the expired-pin policy. Default: reject.
	Expiry ExpiryPolicy
}

// Validator evaluates observed public keys against configured pins. It
// holds no mutable state and is safe for concurrent use.
type Validator struct {
	pins   PinLookup
	expiry ExpiryPolicy
}

// NewValidator creates a Validator.
func NewValidator(cfg *ValidatorConfig) (*Validator, error) {
	if cfg == nil || cfg.Pins == nil {
		return nil, fmt.Errorf("%w: pin lookup required", ErrInvalidConfig)
	}
	if cfg.Expiry.GracePeriod < 0 {
		return nil, fmt.Errorf("%w: negative grace period", ErrInvalidConfig)
	}
	return &Validator{pins: cfg.Pins, expiry: cfg.Expiry}, nil
}

// Validate decides whether a key, described by its type, size in bits and
// raw body, is pinned for domain. The steps are: identify the algorithm,
// rebuild the SubjectPublicKeyInfo, digest it, then look the digest up in
// the domain's pins. An unsupported algorithm rejects before the lookup; a
// domain without pins rejects as no_pins_configured before the raw body is
// judged, so malformed_key is only reported for pinned domains. rawKey is
// only read for the duration of the call.
func (v *Validator) Validate(domain string, keyType keyalg.KeyType, keySizeBits int, rawKey []byte) Decision {
	domain = pinstore.NormalizeDomain(domain)

	alg, err := keyalg.Identify(keyType, keySizeBits)
	if err != nil {
		return reject(domain, ReasonUnsupportedAlgorithm, keyalg.Unknown, pinstore.Digest{})
	}
	digest, wellFormed := digestKey(alg, rawKey)

	now := v.pins.Now()
	active, expired := v.pins.Lookup(domain, now)
	if len(active) == 0 && len(expired) == 0 {
		return reject(domain, ReasonNoPinsConfigured, alg, digest)
	}
	if !wellFormed {
		return reject(domain, ReasonMalformedKey, alg, pinstore.Digest{})
	}

	for _, p := range active {
		if p.Digest.Equal(digest) {
			return accept(domain, alg, digest)
		}
	}

	for _, p := range expired {
		if !p.Digest.Equal(digest) {
			continue
		}
		if v.inGrace(p, now) {
			d := accept(domain, alg, digest)
			d.Grace = true
			return d
		}
		return reject(domain, ReasonPinExpired, alg, digest)
	}

	if len(active) == 0 {
		return reject(domain, ReasonPinExpired, alg, digest)
	}
	return reject(domain, ReasonPinMismatch, alg, digest)
}

// digestKey rebuilds and digests the SPKI of a raw key body. It reports
// false when the body length does not fit alg, since the fixed header
// encodes that length.
func digestKey(alg keyalg.Algorithm, rawKey []byte) (pinstore.Digest, bool) {
	if len(rawKey) != alg.RawKeySize() {
		return pinstore.Digest{}, false
	}
	spki, err := keyalg.BuildKeyInfo(alg, rawKey)
	if err != nil {
		return pinstore.Digest{}, false
	}
	return pinstore.Sum(spki), true
}

// ValidateAttributes validates KeyAttributes reported by a key source.
func (v *Validator) ValidateAttributes(domain string, attrs *keyalg.KeyAttributes) Decision {
	if attrs == nil {
		return reject(pinstore.NormalizeDomain(domain), ReasonUnsupportedAlgorithm, keyalg.Unknown, pinstore.Digest{})
	}
	return v.Validate(domain, attrs.Type, attrs.SizeBits, attrs.Raw)
}

// ValidatePublicKey validates a Go public key. Key types other than RSA
// and ECDSA are rejected as unsupported.
func (v *Validator) ValidatePublicKey(domain string, pub crypto.PublicKey) Decision {
	attrs, err := keyalg.AttributesFromPublicKey(pub)
	if err != nil {
		return reject(pinstore.NormalizeDomain(domain), ReasonUnsupportedAlgorithm, keyalg.Unknown, pinstore.Digest{})
	}
	return v.ValidateAttributes(domain, attrs)
}

// ValidateCertificate validates the public key of a certificate.
func (v *Validator) ValidateCertificate(domain string, cert *x509.Certificate) Decision {
	if cert == nil {
		return reject(pinstore.NormalizeDomain(domain), ReasonUnsupportedAlgorithm, keyalg.Unknown, pinstore.Digest{})
	}
	return v.ValidatePublicKey(domain, cert.PublicKey)
}

// ValidateVerifiedChains accepts when a certificate on one of chains
// carries a pinned key, so that intermediate or root keys may be pinned as
// backups. chains must come from CA verification, such as
// tls.ConnectionState.VerifiedChains. A raw peer certificate list proves
// possession of the leaf key only and must go through ValidateCertificate
// with the leaf instead. When nothing matches, the leaf's decision is
// returned.
func (v *Validator) ValidateVerifiedChains(domain string, chains [][]*x509.Certificate) (Decision, error) {
	if len(chains) == 0 || len(chains[0]) == 0 {
		return Decision{}, ErrNoCertificates
	}
	leaf := v.ValidateCertificate(domain, chains[0][0])
	if leaf.Accepted {
		return leaf, nil
	}
	for _, chain := range chains {
		for i := 1; i < len(chain); i++ {
			if d := v.ValidateCertificate(domain, chain[i]); d.Accepted {
				return d, nil
			}
		}
	}
	return leaf, nil
}

// inGrace reports whether an expired pin is still inside the grace window.
func (v *Validator) inGrace(p pinstore.Pin, now time.Time) bool {
	if v.expiry.GracePeriod <= 0 {
		return false
	}
	return now.Before(p.Expires.Add(v.expiry.GracePeriod))
}
