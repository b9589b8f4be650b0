// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinstore

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// DigestPrefix is the prefix of the textual pin form, as used by the
// HTTP Public Key Pinning "pin-sha256" directive.
const DigestPrefix = "sha256/"

// Digest is the SHA-256 digest of a DER SubjectPublicKeyInfo.
type Digest [sha256.Size]byte

// Sum computes the Digest of an encoded SubjectPublicKeyInfo.
func Sum(spki []byte) Digest {
	return Digest(sha256.Sum256(spki))
}

// Equal compares two digests in constant time.
func (d Digest) Equal(other Digest) bool {
	return subtle.ConstantTimeCompare(d[:], other[:]) == 1
}

// IsZero reports whether d is the all-zero digest.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// String returns the "sha256/<base64>" form.
func (d Digest) String() string {
	return DigestPrefix + base64.StdEncoding.EncodeToString(d[:])
}

// Hex returns the lower-case hex form.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// MarshalText implements encoding.TextMarshaler using the String form.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler using ParseDigest.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDigest parses a pin digest in any of the accepted forms:
// "sha256/<base64>", 64 hex characters, or bare standard base64.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	s = strings.TrimSpace(s)
	if s == "" {
		return d, fmt.Errorf("%w: empty", ErrInvalidDigest)
	}

	var raw []byte
	var err error
	switch {
	case strings.HasPrefix(strings.ToLower(s), DigestPrefix):
		raw, err = base64.StdEncoding.DecodeString(s[len(DigestPrefix):])
	case len(s) == hex.EncodedLen(sha256.Size):
		raw, err = hex.DecodeString(s)
	default:
		raw, err = base64.StdEncoding.DecodeString(s)
	}
	if err != nil {
		return d, fmt.Errorf("%w: %q: %w", ErrInvalidDigest, s, err)
	}
	if len(raw) != sha256.Size {
		return d, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidDigest, sha256.Size, len(raw))
	}
	copy(d[:], raw)
	return d, nil
}

// MustParseDigest is like ParseDigest but panics on error. It is intended
// for pins embedded as constants.
func MustParseDigest(s string) Digest {
	d, err := ParseDigest(s)
	if err != nil {
		panic(err)
	}
	return d
}
