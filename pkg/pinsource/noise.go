// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinsource

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jeremyhahn/go-keypin/pkg/noiseproto"
	"github.com/jeremyhahn/go-keypin/pkg/noiseproto/pinsync"
	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
)

const (
	// DefaultNoiseConnectTimeout is the default dial and handshake timeout.
	DefaultNoiseConnectTimeout = 10 * time.Second

	// DefaultNoiseOperationTimeout is the default timeout for the request
	// after the handshake.
	DefaultNoiseOperationTimeout = 30 * time.Second
)

// NoiseConfig configures a NoiseSource.
type NoiseConfig struct {
	// ServerAddr is the pinsync server address (e.g., "pins.example.com:8445").
	ServerAddr string

	// ServerStaticKey is the hex-encoded 32-byte Curve25519 public key of
	// the server, distributed out-of-band.
	ServerStaticKey string

	// Domains restricts the fetch to these domains. Empty fetches all.
	Domains []string

	// ConnectTimeout is the dial and handshake timeout.
	ConnectTimeout time.Duration

	// OperationTimeout is the request timeout after the handshake.
	OperationTimeout time.Duration

	// Logger for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// NoiseSource fetches pins from a pinsync server. Each fetch opens a new
// connection.
type NoiseSource struct {
	serverAddr  string
	serverKey   []byte
	domains     []string
	connectTO   time.Duration
	operationTO time.Duration
	logger      *slog.Logger
}

// NewNoiseSource creates a NoiseSource.
func NewNoiseSource(cfg *NoiseConfig) (*NoiseSource, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if cfg.ServerAddr == "" {
		return nil, fmt.Errorf("%w: server address required", ErrInvalidConfig)
	}
	if cfg.ServerStaticKey == "" {
		return nil, fmt.Errorf("%w: server static key required", ErrInvalidConfig)
	}
	serverKey, err := noiseproto.DecodePublicKey(cfg.ServerStaticKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	connectTO := cfg.ConnectTimeout
	if connectTO == 0 {
		connectTO = DefaultNoiseConnectTimeout
	}
	operationTO := cfg.OperationTimeout
	if operationTO == 0 {
		operationTO = DefaultNoiseOperationTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &NoiseSource{
		serverAddr:  cfg.ServerAddr,
		serverKey:   serverKey,
		domains:     cfg.Domains,
		connectTO:   connectTO,
		operationTO: operationTO,
		logger:      logger.With("component", "noise_source"),
	}, nil
}

// FetchPins connects, performs the handshake and requests the pin set.
func (s *NoiseSource) FetchPins(ctx context.Context) (map[string][]pinstore.Pin, error) {
	s.logger.Debug("fetching pins over noise", "server", s.serverAddr)

	pins, err := pinsync.FetchPins(ctx, &pinsync.ClientConfig{
		ServerAddr:       s.serverAddr,
		ServerStaticKey:  s.serverKey,
		ConnectTimeout:   s.connectTO,
		OperationTimeout: s.operationTO,
		Logger:           s.logger,
	}, s.domains...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return pins, nil
}
