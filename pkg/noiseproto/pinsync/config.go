// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinsync

import (
	"log/slog"
	"time"

	"github.com/flynn/noise"
	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
)

// Default configuration values.
const (
	// DefaultListenAddr is the default TCP address the server binds to.
	DefaultListenAddr = ":8445"

	// DefaultMaxConnections is the default concurrent connection limit.
	DefaultMaxConnections = 100

	// MaxMaxConnections is the upper bound for MaxConnections.
	MaxMaxConnections = 10000

	// DefaultReadTimeout is the default deadline for reading a frame.
	DefaultReadTimeout = 10 * time.Second

	// DefaultWriteTimeout is the default deadline for writing a frame.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultRateLimit is the default per-IP connection rate per second.
	DefaultRateLimit = 10.0

	// DefaultRateBurst is the default per-IP burst.
	DefaultRateBurst = 20

	// MaxFrameSize is the largest frame payload, the Noise message limit.
	MaxFrameSize = 65535

	// FrameHeaderSize is the size of the big-endian length prefix.
	FrameHeaderSize = 2

	// rateLimiterStaleAge evicts per-IP limiters idle this long.
	rateLimiterStaleAge = 10 * time.Minute

	// rateLimiterCleanupInterval is how often stale limiters are evicted.
	rateLimiterCleanupInterval = time.Minute
)

// Prologue binds both sides of the handshake to this protocol version.
var Prologue = []byte("keypin-pinsync/1")

// PinProvider supplies the pin set to serve. *pinstore.Store satisfies it.
type PinProvider interface {
	Snapshot() map[string][]pinstore.Pin
}

// ServerConfig configures the pin server.
type ServerConfig struct {
	// ListenAddr is the TCP address to bind (e.g., ":8445").
	ListenAddr string

	// StaticKey is the server's Curve25519 static key pair. Clients must
	// know its public half.
	StaticKey *noise.DHKey

	// Pins provides the pin set. Requests fail when nil.
	Pins PinProvider

	// MaxConnections limits concurrent clients. Zero uses
	// DefaultMaxConnections.
	MaxConnections int

	// ReadTimeout bounds each frame read. Zero uses DefaultReadTimeout.
	ReadTimeout time.Duration

	// WriteTimeout bounds each frame write. Zero uses DefaultWriteTimeout.
	WriteTimeout time.Duration

	// RateLimit is the per-IP connection rate per second. Zero uses
	// DefaultRateLimit.
	RateLimit float64

	// RateBurst is the per-IP burst. Zero uses DefaultRateBurst.
	RateBurst int

	// Metrics records request and rejection counts. Optional.
	Metrics *Metrics

	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// ClientConfig configures the pin client.
type ClientConfig struct {
	// ServerAddr is the server's TCP address (e.g., "pins.example.com:8445").
	ServerAddr string

	// ServerStaticKey is the server's 32-byte static public key.
	ServerStaticKey []byte

	// ConnectTimeout bounds dial and handshake. Zero uses DefaultWriteTimeout.
	ConnectTimeout time.Duration

	// OperationTimeout bounds one request/response exchange. Zero uses
	// DefaultReadTimeout.
	OperationTimeout time.Duration

	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}
