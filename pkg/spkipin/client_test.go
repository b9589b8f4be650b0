// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package spkipin

import (
	"context"
	"crypto/elliptic"
	"net"
	"testing"
	"time"

	"github.com/jeremyhahn/go-keypin/pkg/keyalg"
	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	client, err := NewClient(nil)
	assert.Nil(t, client)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewClient(&ClientConfig{ConnectTimeout: -time.Second})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	client, err = NewClient(&ClientConfig{})
	require.NoError(t, err)
	assert.Equal(t, DefaultConnectTimeout, client.timeout)
}

func TestClient_Check_ReportOnly(t *testing.T) {
	key := generateKey(t, elliptic.P384())
	server, cert := startTestTLSServer(t, key)

	client, err := NewClient(&ClientConfig{ConnectTimeout: 5 * time.Second})
	require.NoError(t, err)

	report, err := client.Check(context.Background(), server.Listener.Addr().String(), "Example.com")
	require.NoError(t, err)

	assert.Equal(t, "example.com", report.Domain)
	require.Len(t, report.Certificates, 1)
	got := report.Certificates[0]
	assert.NoError(t, got.Err)
	assert.Equal(t, keyalg.ECDSAP384, got.Algorithm)
	assert.Equal(t, pinOf(t, key), got.Pin)
	assert.Equal(t, ComputeSPKIPin(cert), got.SPKIPin)
	assert.Contains(t, got.Subject, "example.com")
	assert.Equal(t, Decision{}, report.Decision)
}

func TestClient_Check_WithValidator(t *testing.T) {
	key := generateKey(t, elliptic.P256())
	server, _ := startTestTLSServer(t, key)

	store := pinstore.New()
	require.NoError(t, store.Load("example.com", []pinstore.Pin{{Digest: pinOf(t, key)}}))
	client, err := NewClient(&ClientConfig{Validator: newTestValidator(t, store, 0)})
	require.NoError(t, err)

	report, err := client.Check(context.Background(), server.Listener.Addr().String(), "example.com")
	require.NoError(t, err)
	assert.True(t, report.Decision.Accepted)

	report, err = client.Check(context.Background(), server.Listener.Addr().String(), "unpinned.com")
	require.NoError(t, err)
	assert.Equal(t, ReasonNoPinsConfigured, report.Decision.Reason)
}

func TestClient_Check_DomainDefaultsToHost(t *testing.T) {
	key := generateKey(t, elliptic.P256())
	server, _ := startTestTLSServer(t, key)

	client, err := NewClient(&ClientConfig{})
	require.NoError(t, err)

	report, err := client.Check(context.Background(), server.Listener.Addr().String(), "")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", report.Domain)
}

func TestClient_Check_ConnectFailed(t *testing.T) {
	client, err := NewClient(&ClientConfig{ConnectTimeout: time.Second})
	require.NoError(t, err)

	_, err = client.Check(context.Background(), "not-an-address", "")
	assert.ErrorIs(t, err, ErrConnectFailed)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = client.Check(context.Background(), addr, "")
	assert.ErrorIs(t, err, ErrConnectFailed)
}

func TestClient_Check_CanceledContext(t *testing.T) {
	key := generateKey(t, elliptic.P256())
	server, _ := startTestTLSServer(t, key)

	client, err := NewClient(&ClientConfig{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Check(ctx, server.Listener.Addr().String(), "")
	assert.ErrorIs(t, err, ErrConnectFailed)
}
