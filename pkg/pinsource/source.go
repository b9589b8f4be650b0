// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package pinsource obtains pin sets from where operators publish them and
// loads them into a pin store.
//
// Five sources are provided:
//
//   - FileSource reads a YAML pin document from disk.
//
//   - EmbeddedSource copies the pins of an in-process provider, for
//     library consumers that already hold a store.
//
//   - DANESource resolves DNSSEC-authenticated TLSA records (usage 2 or 3,
//     selector SPKI, SHA-256) for each domain.
//
//   - NoiseSource fetches the pin set from a pinsync server over Noise_NK,
//     trusting only the server's static public key.
//
//   - HTTPSSource downloads a YAML pin document over HTTPS, optionally
//     pinning the distribution server itself.
//
// AutoSource tries the configured sources in priority order and returns
// the first non-empty pin set. Reload and Poll publish fetched sets into a
// pinstore.Store atomically.
package pinsource

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
)

// Source fetches a complete pin set keyed by domain.
type Source interface {
	FetchPins(ctx context.Context) (map[string][]pinstore.Pin, error)
}

// Kind identifies a source type.
type Kind string

const (
	// KindEmbedded reads pins from an in-process provider.
	KindEmbedded Kind = "embedded"

	// KindDANE resolves pins from TLSA records.
	KindDANE Kind = "dane"

	// KindNoise fetches pins from a pinsync server.
	KindNoise Kind = "noise"

	// KindHTTPS downloads a pin document over HTTPS.
	KindHTTPS Kind = "https"

	// KindFile reads a local pin document.
	KindFile Kind = "file"
)

// DefaultOrder is the default priority order for AutoSource: in-process
// first, then DNSSEC, then the encrypted channel, then HTTPS, and the local
// file as the last resort.
var DefaultOrder = []Kind{KindEmbedded, KindDANE, KindNoise, KindHTTPS, KindFile}

// AttemptError records one failed source attempt.
type AttemptError struct {
	// Kind is the source that failed.
	Kind Kind

	// Err is the underlying error.
	Err error
}

// Error returns a message including the source kind.
func (e *AttemptError) Error() string {
	return fmt.Sprintf("pinsource %s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *AttemptError) Unwrap() error {
	return e.Err
}

// AggregateError collects the failures of every attempted source.
type AggregateError struct {
	// Attempts holds the individual failures in attempt order.
	Attempts []AttemptError
}

// Error lists all failed sources.
func (e *AggregateError) Error() string {
	var b strings.Builder
	b.WriteString("pinsource: all sources failed: [")
	for i, a := range e.Attempts {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %v", a.Kind, a.Err)
	}
	b.WriteString("]")
	return b.String()
}

// Unwrap returns ErrAllSourcesFailed for use with errors.Is.
func (e *AggregateError) Unwrap() error {
	return ErrAllSourcesFailed
}
