// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinsource

import "errors"

var (
	// ErrInvalidConfig indicates a source configuration is invalid or
	// missing required fields.
	ErrInvalidConfig = errors.New("pinsource: invalid configuration")

	// ErrFetchFailed indicates a source could not produce a pin set.
	ErrFetchFailed = errors.New("pinsource: fetch failed")

	// ErrProviderNil indicates a nil provider was given to the embedded source.
	ErrProviderNil = errors.New("pinsource: provider is nil")

	// ErrDNSLookupFailed indicates a TLSA lookup for one of the domains failed.
	ErrDNSLookupFailed = errors.New("pinsource: dane dns lookup failed")

	// ErrEmptyPinSet indicates a source answered with no pins at all.
	ErrEmptyPinSet = errors.New("pinsource: empty pin set")

	// ErrAllSourcesFailed indicates every configured source was tried and
	// none produced pins.
	ErrAllSourcesFailed = errors.New("pinsource: all sources failed")

	// ErrNoSourcesConfigured indicates no configured source appears in the
	// requested order.
	ErrNoSourcesConfigured = errors.New("pinsource: no sources configured")

	// ErrReloadFailed indicates fetched pins could not be published.
	ErrReloadFailed = errors.New("pinsource: reload failed")
)
