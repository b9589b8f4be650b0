// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinsync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/jeremyhahn/go-keypin/pkg/noiseproto"
	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
)

// Client connects to a pin server, performs the Noise_NK handshake as
// initiator and exchanges encrypted requests. A Client is safe for
// concurrent use; exchanges are serialized.
type Client struct {
	mu      sync.Mutex
	config  *ClientConfig
	conn    net.Conn
	session *noiseproto.Session
	logger  *slog.Logger
}

// NewClient validates cfg and creates a Client. It does not connect.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: client config required", ErrHandshakeFailed)
	}
	if len(cfg.ServerStaticKey) != noiseproto.KeySize {
		return nil, fmt.Errorf("%w: server static key must be %d bytes, got %d",
			ErrHandshakeFailed, noiseproto.KeySize, len(cfg.ServerStaticKey))
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultWriteTimeout
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = DefaultReadTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config: cfg,
		logger: logger.With("component", "pinsync_client"),
	}, nil
}

// Connect dials the server and completes the handshake. The context
// bounds both.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	dialer := &net.Dialer{Timeout: c.config.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.config.ServerAddr)
	if err != nil {
		return fmt.Errorf("%w: dial: %w", ErrConnectionFailed, err)
	}

	session, err := c.handshake(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return err
	}

	c.conn = conn
	c.session = session
	c.logger.Debug("handshake complete", "server", c.config.ServerAddr)
	return nil
}

func (c *Client) handshake(ctx context.Context, conn net.Conn) (*noiseproto.Session, error) {
	session, err := noiseproto.NewSession(&noiseproto.SessionConfig{
		Initiator:     true,
		PeerStaticKey: c.config.ServerStaticKey,
		Prologue:      Prologue,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.ConnectTimeout)
	}

	msg1, err := session.WriteHandshake()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	if err := WriteFrame(conn, msg1, deadline); err != nil {
		return nil, fmt.Errorf("%w: send msg1: %w", ErrHandshakeFailed, err)
	}

	msg2, err := ReadFrame(conn, deadline)
	if err != nil {
		return nil, fmt.Errorf("%w: read msg2: %w", ErrHandshakeFailed, err)
	}
	if err := session.ReadHandshake(msg2); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	if !session.IsHandshakeComplete() {
		return nil, fmt.Errorf("%w: handshake did not complete", ErrHandshakeFailed)
	}
	return session, nil
}

// GetPins requests the server's pins, restricted to domains when given.
// The returned map is keyed by normalized domain.
func (c *Client) GetPins(ctx context.Context, domains ...string) (map[string][]pinstore.Pin, error) {
	resp, err := c.roundTrip(ctx, &Request{Method: MethodGetPins, Domains: domains})
	if err != nil {
		return nil, err
	}
	pins, err := pinstore.Parse([]byte(resp.Document))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServerError, err)
	}
	return pins, nil
}

// ListDomains returns the domains the server holds pins for.
func (c *Client) ListDomains(ctx context.Context) ([]string, error) {
	resp, err := c.roundTrip(ctx, &Request{Method: MethodListDomains})
	if err != nil {
		return nil, err
	}
	return resp.Domains, nil
}

func (c *Client) roundTrip(ctx context.Context, req *Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.session == nil {
		return nil, fmt.Errorf("%w: not connected", ErrConnectionFailed)
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %w", ErrInvalidRequest, err)
	}
	ciphertext, err := c.session.Encrypt(data)
	if err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.OperationTimeout)
	}
	if err := WriteFrame(c.conn, ciphertext, deadline); err != nil {
		return nil, fmt.Errorf("pinsync: write request: %w", err)
	}
	respCiphertext, err := ReadFrame(c.conn, deadline)
	if err != nil {
		return nil, fmt.Errorf("pinsync: read response: %w", err)
	}
	plaintext, err := c.session.Decrypt(respCiphertext)
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(plaintext, &resp); err != nil {
		return nil, fmt.Errorf("%w: parse response: %w", ErrInvalidRequest, err)
	}
	if resp.Error != "" {
		return &resp, fmt.Errorf("%w: %s", ErrServerError, resp.Error)
	}
	return &resp, nil
}

// Close closes the connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.session = nil
	return err
}

// FetchPins connects, retrieves the pins for domains and disconnects.
func FetchPins(ctx context.Context, cfg *ClientConfig, domains ...string) (map[string][]pinstore.Pin, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	defer client.Close()
	return client.GetPins(ctx, domains...)
}
