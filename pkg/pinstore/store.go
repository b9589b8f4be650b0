// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinstore

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Pin is an accepted SPKI digest with an optional expiration.
type Pin struct {
	// Digest is the SHA-256 digest of the pinned key's SubjectPublicKeyInfo.
	Digest Digest

	// Expires is the instant from which the pin is no longer accepted.
	// The zero value means the pin never expires.
	Expires time.Time
}

// Expired reports whether the pin has expired at now.
func (p Pin) Expired(now time.Time) bool {
	return !p.Expires.IsZero() && !now.Before(p.Expires)
}

// snapshot is an immutable domain -> pins mapping. It is never mutated
// after being published.
type snapshot struct {
	domains map[string][]Pin
}

var emptySnapshot = &snapshot{domains: map[string][]Pin{}}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used to evaluate pin expiry. The default
// is time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store maps validation domains to their accepted pins. All methods are
// safe for concurrent use.
type Store struct {
	// mu serializes writers; readers only load current.
	mu      sync.Mutex
	current atomic.Pointer[snapshot]
	now     func() time.Time
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(emptySnapshot)
	return s
}

// NormalizeDomain lower-cases a domain and strips surrounding whitespace
// and a trailing dot, so "Example.COM." and "example.com" share pins.
func NormalizeDomain(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}

// Now returns the store's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// Load replaces the pin set of a single domain. An empty set removes the
// domain. Other domains are carried over unchanged into the new snapshot.
func (s *Store) Load(domain string, pins []Pin) error {
	name := NormalizeDomain(domain)
	if name == "" {
		return ErrInvalidDomain
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.current.Load().domains)
	if next == nil {
		next = make(map[string][]Pin)
	}
	if set := dedupe(pins); len(set) > 0 {
		next[name] = set
	} else {
		delete(next, name)
	}
	s.current.Store(&snapshot{domains: next})
	return nil
}

// Replace swaps the whole mapping in one step. If any domain is invalid
// nothing is published. Domains that normalize to the same name are merged.
func (s *Store) Replace(pinsByDomain map[string][]Pin) error {
	next := make(map[string][]Pin, len(pinsByDomain))
	for domain, pins := range pinsByDomain {
		name := NormalizeDomain(domain)
		if name == "" {
			return fmt.Errorf("%w: %q", ErrInvalidDomain, domain)
		}
		next[name] = append(next[name], pins...)
	}
	for name, pins := range next {
		if set := dedupe(pins); len(set) > 0 {
			next[name] = set
		} else {
			delete(next, name)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Store(&snapshot{domains: next})
	return nil
}

// PinsFor returns the unexpired pins for a domain, or an empty slice if
// the domain has none. The returned slice is a copy.
func (s *Store) PinsFor(domain string) []Pin {
	active, _ := s.Lookup(domain, s.now())
	return active
}

// Lookup splits a domain's pins into those still active at now and those
// already expired. Both slices are copies taken from a single snapshot.
func (s *Store) Lookup(domain string, now time.Time) (active, expired []Pin) {
	pins := s.current.Load().domains[NormalizeDomain(domain)]
	active = make([]Pin, 0, len(pins))
	for _, p := range pins {
		if p.Expired(now) {
			expired = append(expired, p)
			continue
		}
		active = append(active, p)
	}
	return active, expired
}

// Domains returns the configured domains in sorted order.
func (s *Store) Domains() []string {
	return slices.Sorted(maps.Keys(s.current.Load().domains))
}

// Snapshot returns a deep copy of the current mapping, including expired
// pins.
func (s *Store) Snapshot() map[string][]Pin {
	cur := s.current.Load().domains
	out := make(map[string][]Pin, len(cur))
	for domain, pins := range cur {
		out[domain] = slices.Clone(pins)
	}
	return out
}

// dedupe applies set semantics on digest. When a digest repeats, the pin
// with the later expiry wins and a pin without expiry beats any expiry.
func dedupe(pins []Pin) []Pin {
	if len(pins) == 0 {
		return nil
	}
	out := make([]Pin, 0, len(pins))
	index := make(map[Digest]int, len(pins))
	for _, p := range pins {
		i, seen := index[p.Digest]
		if !seen {
			index[p.Digest] = len(out)
			out = append(out, p)
			continue
		}
		prev := out[i]
		switch {
		case prev.Expires.IsZero():
		case p.Expires.IsZero() || p.Expires.After(prev.Expires):
			out[i] = p
		}
	}
	return out
}
