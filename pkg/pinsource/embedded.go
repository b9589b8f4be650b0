// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinsource

import (
	"context"
	"maps"
	"slices"

	"github.com/jeremyhahn/go-keypin/pkg/noiseproto/pinsync"
	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
)

// EmbeddedSource copies the pins of an in-process provider. No network
// is involved.
type EmbeddedSource struct {
	provider pinsync.PinProvider
}

// NewEmbeddedSource creates an EmbeddedSource. *pinstore.Store satisfies
// pinsync.PinProvider.
func NewEmbeddedSource(provider pinsync.PinProvider) (*EmbeddedSource, error) {
	if provider == nil {
		return nil, ErrProviderNil
	}
	return &EmbeddedSource{provider: provider}, nil
}

// FetchPins returns a deep copy of the provider's snapshot.
func (s *EmbeddedSource) FetchPins(_ context.Context) (map[string][]pinstore.Pin, error) {
	snapshot := s.provider.Snapshot()
	pins := make(map[string][]pinstore.Pin, len(snapshot))
	for domain, set := range maps.All(snapshot) {
		pins[domain] = slices.Clone(set)
	}
	return pins, nil
}
