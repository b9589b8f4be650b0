// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package noiseproto

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/flynn/noise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newPair(t *testing.T, serverKey *noise.DHKey, clientView []byte, prologues ...[]byte) (*Session, *Session) {
	t.Helper()
	var clientPrologue, serverPrologue []byte
	if len(prologues) == 2 {
		clientPrologue, serverPrologue = prologues[0], prologues[1]
	}
	client, err := NewSession(&SessionConfig{Initiator: true, PeerStaticKey: clientView, Prologue: clientPrologue})
	require.NoError(t, err)
	server, err := NewSession(&SessionConfig{LocalStaticKey: serverKey, Prologue: serverPrologue})
	require.NoError(t, err)
	return client, server
}

// handshake runs the two NK messages between client and server.
func handshake(client, server *Session) error {
	msg1, err := client.WriteHandshake()
	if err != nil {
		return err
	}
	if err := server.ReadHandshake(msg1); err != nil {
		return err
	}
	msg2, err := server.WriteHandshake()
	if err != nil {
		return err
	}
	return client.ReadHandshake(msg2)
}

func establishedPair(t *testing.T) (*Session, *Session) {
	t.Helper()
	serverKey, err := GenerateStaticKey()
	require.NoError(t, err)
	client, server := newPair(t, serverKey, serverKey.Public)
	require.NoError(t, handshake(client, server))
	return client, server
}

func TestNewSession_Validation(t *testing.T) {
	_, err := NewSession(nil)
	assert.ErrorIs(t, err, ErrHandshakeFailed)

	_, err = NewSession(&SessionConfig{Initiator: true, PeerStaticKey: make([]byte, 16)})
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = NewSession(&SessionConfig{})
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestSession_NKHandshake(t *testing.T) {
	client, server := establishedPair(t)

	assert.True(t, client.IsHandshakeComplete())
	assert.True(t, server.IsHandshakeComplete())

	ct, err := client.Encrypt([]byte("get_pins"))
	require.NoError(t, err)
	pt, err := server.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("get_pins"), pt)

	ct, err = server.Encrypt([]byte("domains: {}"))
	require.NoError(t, err)
	pt, err = client.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("domains: {}"), pt)
}

func TestSession_HandshakeProgress(t *testing.T) {
	serverKey, err := GenerateStaticKey()
	require.NoError(t, err)
	client, server := newPair(t, serverKey, serverKey.Public)

	msg1, err := client.WriteHandshake()
	require.NoError(t, err)
	assert.False(t, client.IsHandshakeComplete())

	require.NoError(t, server.ReadHandshake(msg1))
	assert.False(t, server.IsHandshakeComplete())

	msg2, err := server.WriteHandshake()
	require.NoError(t, err)
	assert.True(t, server.IsHandshakeComplete())

	require.NoError(t, client.ReadHandshake(msg2))
	assert.True(t, client.IsHandshakeComplete())

	_, err = client.WriteHandshake()
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.ErrorIs(t, server.ReadHandshake(msg1), ErrInvalidMessage)
}

func TestSession_WrongServerKey(t *testing.T) {
	serverKey, err := GenerateStaticKey()
	require.NoError(t, err)
	impostor, err := GenerateStaticKey()
	require.NoError(t, err)

	client, server := newPair(t, serverKey, impostor.Public)
	err = handshake(client, server)
	assert.ErrorIs(t, err, ErrHandshakeFailed)
	assert.False(t, server.IsHandshakeComplete())
}

func TestSession_PrologueMismatch(t *testing.T) {
	serverKey, err := GenerateStaticKey()
	require.NoError(t, err)

	client, server := newPair(t, serverKey, serverKey.Public, []byte("keypin/1"), []byte("keypin/2"))
	assert.ErrorIs(t, handshake(client, server), ErrHandshakeFailed)

	client, server = newPair(t, serverKey, serverKey.Public, []byte("keypin/1"), []byte("keypin/1"))
	assert.NoError(t, handshake(client, server))
}

func TestSession_NotReady(t *testing.T) {
	serverKey, err := GenerateStaticKey()
	require.NoError(t, err)
	client, _ := newPair(t, serverKey, serverKey.Public)

	_, err = client.Encrypt([]byte("x"))
	assert.ErrorIs(t, err, ErrSessionNotReady)
	_, err = client.Decrypt([]byte("x"))
	assert.ErrorIs(t, err, ErrSessionNotReady)
}

func TestSession_MessageSize(t *testing.T) {
	client, server := establishedPair(t)

	for _, size := range []int{0, 1, 1024, MaxMessageSize} {
		ct, err := client.Encrypt(bytes.Repeat([]byte{0xab}, size))
		require.NoError(t, err, "size %d", size)
		pt, err := server.Decrypt(ct)
		require.NoError(t, err)
		assert.Len(t, pt, size)
	}

	_, err := client.Encrypt(make([]byte, MaxMessageSize+1))
	assert.ErrorIs(t, err, ErrEncryptionFailed)
}

func TestSession_DecryptTampered(t *testing.T) {
	client, server := establishedPair(t)

	ct, err := client.Encrypt([]byte("payload"))
	require.NoError(t, err)
	ct[0] ^= 0xff

	_, err = server.Decrypt(ct)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestSession_ConcurrentEncrypt(t *testing.T) {
	client, _ := establishedPair(t)

	var g errgroup.Group
	for i := range 32 {
		g.Go(func() error {
			_, err := client.Encrypt([]byte(fmt.Sprintf("msg-%d", i)))
			return err
		})
	}
	require.NoError(t, g.Wait())
}

func BenchmarkNKHandshake(b *testing.B) {
	serverKey, err := GenerateStaticKey()
	require.NoError(b, err)

	for b.Loop() {
		client, err := NewSession(&SessionConfig{Initiator: true, PeerStaticKey: serverKey.Public})
		require.NoError(b, err)
		server, err := NewSession(&SessionConfig{LocalStaticKey: serverKey})
		require.NoError(b, err)
		require.NoError(b, handshake(client, server))
	}
}
