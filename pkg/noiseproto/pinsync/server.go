// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/jeremyhahn/go-keypin/pkg/noiseproto"
)

type serverState uint8

const (
	stateNew serverState = iota
	stateRunning
	stateStopped
)

// Server accepts Noise_NK connections and answers pin requests. Each
// connection performs one handshake and then any number of request and
// response exchanges until the client closes it or a read times out.
type Server struct {
	config      *ServerConfig
	handler     *Handler
	rateLimiter *rateLimiter
	slots       chan struct{}
	logger      *slog.Logger

	mu       sync.Mutex
	state    serverState
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// NewServer validates cfg, fills defaults and creates a Server.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil || cfg.StaticKey == nil {
		return nil, fmt.Errorf("%w: static key required", ErrHandshakeFailed)
	}
	if len(cfg.StaticKey.Private) != noiseproto.KeySize || len(cfg.StaticKey.Public) != noiseproto.KeySize {
		return nil, fmt.Errorf("%w: static key must be %d bytes", ErrHandshakeFailed, noiseproto.KeySize)
	}
	if cfg.MaxConnections > MaxMaxConnections {
		return nil, fmt.Errorf("%w: %d exceeds upper bound %d", ErrMaxConnections, cfg.MaxConnections, MaxMaxConnections)
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = DefaultRateBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("component", "pinsync_server")

	return &Server{
		config:      cfg,
		handler:     NewHandler(cfg.Pins, logger),
		rateLimiter: newRateLimiter(cfg.RateLimit, cfg.RateBurst, rateLimiterStaleAge, rateLimiterCleanupInterval),
		slots:       make(chan struct{}, cfg.MaxConnections),
		logger:      logger,
		conns:       make(map[net.Conn]struct{}),
	}, nil
}

// Start binds the listener and begins accepting connections.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateRunning:
		return ErrServerAlreadyStarted
	case stateStopped:
		return ErrServerClosed
	}

	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("%w: listen %s: %w", ErrConnectionFailed, s.config.ListenAddr, err)
	}
	s.listener = ln
	s.state = stateRunning

	s.wg.Add(1)
	go s.acceptLoop(ln)

	s.logger.Info("pin server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and waits for open connections to finish.
// When ctx ends first, remaining connections are closed forcibly.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != stateRunning {
		s.mu.Unlock()
		return ErrServerNotStarted
	}
	s.state = stateStopped
	err := s.listener.Close()
	s.mu.Unlock()

	s.rateLimiter.Stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("shutdown deadline reached, closing open connections")
		s.closeConns()
		<-done
	}

	s.logger.Info("pin server stopped")
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: close listener: %w", ErrConnectionFailed, err)
	}
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		ip := remoteIP(conn)
		if !s.rateLimiter.Allow(ip) {
			s.logger.Warn("connection rate limited", "remote", ip)
			s.config.Metrics.observeRejected(rejectRateLimited)
			_ = conn.Close()
			continue
		}

		select {
		case s.slots <- struct{}{}:
		default:
			s.logger.Warn("connection rejected", "remote", ip, "error", ErrMaxConnections)
			s.config.Metrics.observeRejected(rejectMaxConnections)
			_ = conn.Close()
			continue
		}

		if !s.track(conn) {
			<-s.slots
			_ = conn.Close()
			return
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// track registers conn unless the server is stopping.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateRunning {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer func() { <-s.slots }()
	defer s.untrack(conn)
	defer conn.Close()

	logger := s.logger.With("remote", conn.RemoteAddr().String())

	session, err := s.handshake(conn)
	if err != nil {
		logger.Debug("handshake failed", "error", err)
		s.config.Metrics.observeRejected(rejectHandshake)
		return
	}

	for {
		ciphertext, err := ReadFrame(conn, time.Now().Add(s.config.ReadTimeout))
		if err != nil {
			return
		}
		plaintext, err := session.Decrypt(ciphertext)
		if err != nil {
			logger.Warn("dropping connection", "error", err)
			return
		}

		resp := s.dispatch(plaintext, logger)
		if err := s.respond(conn, session, resp); err != nil {
			logger.Debug("write response failed", "error", err)
			return
		}
	}
}

func (s *Server) handshake(conn net.Conn) (*noiseproto.Session, error) {
	session, err := noiseproto.NewSession(&noiseproto.SessionConfig{
		LocalStaticKey: s.config.StaticKey,
		Prologue:       Prologue,
	})
	if err != nil {
		return nil, err
	}

	msg1, err := ReadFrame(conn, time.Now().Add(s.config.ReadTimeout))
	if err != nil {
		return nil, err
	}
	if err := session.ReadHandshake(msg1); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	msg2, err := session.WriteHandshake()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	if err := WriteFrame(conn, msg2, time.Now().Add(s.config.WriteTimeout)); err != nil {
		return nil, err
	}
	return session, nil
}

// dispatch decodes and handles one request. Failures become error responses.
func (s *Server) dispatch(plaintext []byte, logger *slog.Logger) *Response {
	var req Request
	if err := json.Unmarshal(plaintext, &req); err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		s.config.Metrics.observeRequest("", err)
		return &Response{Error: err.Error()}
	}
	resp, err := s.handler.Handle(&req)
	s.config.Metrics.observeRequest(req.Method, err)
	if err != nil {
		logger.Warn("request failed", "method", req.Method, "error", err)
		return &Response{Error: err.Error()}
	}
	logger.Debug("request served", "method", req.Method)
	return resp
}

func (s *Server) respond(conn net.Conn, session *noiseproto.Session, resp *Response) error {
	data, err := encodeResponse(resp)
	if errors.Is(err, ErrResponseTooLarge) {
		data, err = encodeResponse(&Response{Error: err.Error()})
	}
	if err != nil {
		return err
	}
	ciphertext, err := session.Encrypt(data)
	if err != nil {
		return err
	}
	return WriteFrame(conn, ciphertext, time.Now().Add(s.config.WriteTimeout))
}

func remoteIP(conn net.Conn) string {
	addr := conn.RemoteAddr().String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
