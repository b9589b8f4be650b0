// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package keyalg

// BuildKeyInfo returns the DER SubjectPublicKeyInfo for a raw key body:
// the algorithm's fixed header immediately followed by raw, with no
// re-encoding. The result is freshly allocated; raw is not retained.
//
// The body is assumed to match the structure implied by alg. Callers that
// cannot trust their key source should compare len(raw) against
// alg.RawKeySize first.
func BuildKeyInfo(alg Algorithm, raw []byte) ([]byte, error) {
	if !alg.Supported() {
		return nil, ErrUnsupportedAlgorithm
	}
	if len(raw) == 0 {
		return nil, ErrEmptyKey
	}
	header := catalog[alg].header
	out := make([]byte, 0, len(header)+len(raw))
	out = append(out, header...)
	return append(out, raw...), nil
}
