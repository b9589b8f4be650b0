// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package pinsync distributes pin sets over Noise_NK. Clients hold only
// the server's static public key; the server answers get_pins with the
// current pin set as a YAML document.
package pinsync

import "errors"

// Sentinel errors for the pinsync package.
var (
	// ErrServerNotStarted indicates Stop was called before Start.
	ErrServerNotStarted = errors.New("pinsync: server not started")

	// ErrServerAlreadyStarted indicates Start was called on a running server.
	ErrServerAlreadyStarted = errors.New("pinsync: server already started")

	// ErrServerClosed indicates Start was called on a stopped server.
	ErrServerClosed = errors.New("pinsync: server closed")

	// ErrMaxConnections indicates the connection limit was reached or
	// configured out of range.
	ErrMaxConnections = errors.New("pinsync: max connections reached")

	// ErrInvalidRequest indicates a malformed request or response.
	ErrInvalidRequest = errors.New("pinsync: invalid request")

	// ErrMethodNotFound indicates the requested method is not registered.
	ErrMethodNotFound = errors.New("pinsync: method not found")

	// ErrPinsNotConfigured indicates the server has no pin provider.
	ErrPinsNotConfigured = errors.New("pinsync: pin provider not configured")

	// ErrResponseTooLarge indicates a pin set does not fit in one message.
	ErrResponseTooLarge = errors.New("pinsync: response too large")

	// ErrServerError indicates the server answered with an error.
	ErrServerError = errors.New("pinsync: server error")

	// ErrConnectionFailed indicates a TCP connection failed.
	ErrConnectionFailed = errors.New("pinsync: connection failed")

	// ErrTimeout indicates an I/O deadline could not be set.
	ErrTimeout = errors.New("pinsync: operation timeout")

	// ErrFrameTooLarge indicates a frame exceeds MaxFrameSize.
	ErrFrameTooLarge = errors.New("pinsync: frame too large")

	// ErrHandshakeFailed indicates the Noise_NK handshake did not complete.
	ErrHandshakeFailed = errors.New("pinsync: handshake failed")
)
