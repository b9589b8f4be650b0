// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package keyalg

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildKeyInfo_Concatenation(t *testing.T) {
	raw := []byte{0x04, 0x01, 0x02, 0x03, 0xfe, 0xff}

	for _, a := range All() {
		t.Run(a.String(), func(t *testing.T) {
			out, err := BuildKeyInfo(a, raw)
			require.NoError(t, err)

			header := a.Header()
			assert.Len(t, out, len(header)+len(raw))
			assert.Equal(t, header, out[:len(header)])
			assert.Equal(t, raw, out[len(header):])
		})
	}
}

func TestBuildKeyInfo_DoesNotAliasInput(t *testing.T) {
	raw := []byte{0x04, 0xaa, 0xbb}
	out, err := BuildKeyInfo(ECDSAP256, raw)
	require.NoError(t, err)

	out[len(out)-1] = 0x00
	assert.Equal(t, []byte{0x04, 0xaa, 0xbb}, raw)

	again, err := BuildKeyInfo(ECDSAP256, raw)
	require.NoError(t, err)
	assert.Equal(t, byte(0x30), again[0])
}

func TestBuildKeyInfo_Errors(t *testing.T) {
	_, err := BuildKeyInfo(Unknown, []byte{0x01})
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	_, err = BuildKeyInfo(Algorithm(200), []byte{0x01})
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	_, err = BuildKeyInfo(RSA2048, nil)
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = BuildKeyInfo(ECDSAP521, []byte{})
	assert.ErrorIs(t, err, ErrEmptyKey)
}

// generateKey returns a fresh public key for the algorithm.
func generateKey(t *testing.T, a Algorithm) crypto.PublicKey {
	t.Helper()
	switch a {
	case RSA2048, RSA4096:
		key, err := rsa.GenerateKey(rand.Reader, a.KeySize())
		require.NoError(t, err)
		return &key.PublicKey
	case ECDSAP256:
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)
		return &key.PublicKey
	case ECDSAP384:
		key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
		require.NoError(t, err)
		return &key.PublicKey
	case ECDSAP521:
		key, err := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
		require.NoError(t, err)
		return &key.PublicKey
	}
	t.Fatalf("no generator for %s", a)
	return nil
}

// TestBuildKeyInfo_MatchesStandardEncoding checks that header ++ body
// reproduces the DER SubjectPublicKeyInfo crypto/x509 produces for the
// same key.
func TestBuildKeyInfo_MatchesStandardEncoding(t *testing.T) {
	for _, a := range All() {
		t.Run(a.String(), func(t *testing.T) {
			pub := generateKey(t, a)

			attrs, err := AttributesFromPublicKey(pub)
			require.NoError(t, err)
			assert.Equal(t, a.RawKeySize(), len(attrs.Raw))

			alg, err := attrs.Algorithm()
			require.NoError(t, err)
			require.Equal(t, a, alg)

			built, err := BuildKeyInfo(alg, attrs.Raw)
			require.NoError(t, err)

			want, err := x509.MarshalPKIXPublicKey(pub)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(want, built), "reconstructed SPKI differs from x509 encoding")
		})
	}
}

func TestAttributesFromPublicKey_UnsupportedSizes(t *testing.T) {
	ecKey, err := ecdsa.GenerateKey(elliptic.P224(), rand.Reader)
	require.NoError(t, err)

	attrs, err := AttributesFromPublicKey(&ecKey.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, KeyTypeEllipticCurve, attrs.Type)
	assert.Equal(t, 224, attrs.SizeBits)
	assert.Len(t, attrs.Raw, 57)

	_, err = attrs.Algorithm()
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	rsaKey, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	attrs, err = AttributesFromPublicKey(&rsaKey.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, KeyTypeRSA, attrs.Type)
	assert.Equal(t, 1024, attrs.SizeBits)

	_, err = attrs.Algorithm()
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestAttributesFromPublicKey_UnsupportedTypes(t *testing.T) {
	edPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	_, err = AttributesFromPublicKey(edPub)
	assert.ErrorIs(t, err, ErrUnsupportedKeyType)

	_, err = AttributesFromPublicKey(nil)
	assert.ErrorIs(t, err, ErrUnsupportedKeyType)

	_, err = AttributesFromPublicKey((*rsa.PublicKey)(nil))
	assert.ErrorIs(t, err, ErrUnsupportedKeyType)

	_, err = AttributesFromPublicKey((*ecdsa.PublicKey)(nil))
	assert.ErrorIs(t, err, ErrUnsupportedKeyType)
}

func TestAttributesFromSPKI(t *testing.T) {
	pub := generateKey(t, ECDSAP384)
	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)

	attrs, err := AttributesFromSPKI(der)
	require.NoError(t, err)
	assert.Equal(t, KeyTypeEllipticCurve, attrs.Type)
	assert.Equal(t, 384, attrs.SizeBits)

	built, err := BuildKeyInfo(ECDSAP384, attrs.Raw)
	require.NoError(t, err)
	assert.Equal(t, der, built)
}

func TestAttributesFromSPKI_Invalid(t *testing.T) {
	_, err := AttributesFromSPKI([]byte{0x30, 0x01, 0x00})
	assert.ErrorIs(t, err, ErrInvalidSPKI)
}
