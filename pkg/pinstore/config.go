// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinstore

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// pinYAML is the YAML representation of a single pin.
type pinYAML struct {
	Digest  string     `yaml:"digest"`
	Expires *time.Time `yaml:"expires,omitempty"`
}

// documentYAML is the YAML representation of a pin set:
//
//	domains:
//	  example.com:
//	    - digest: sha256/47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU=
//	      expires: 2027-01-01T00:00:00Z
type documentYAML struct {
	Domains map[string][]pinYAML `yaml:"domains"`
}

// Parse decodes a YAML pin set document into a domain -> pins mapping.
func Parse(data []byte) (map[string][]Pin, error) {
	var doc documentYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	out := make(map[string][]Pin, len(doc.Domains))
	for domain, entries := range doc.Domains {
		name := NormalizeDomain(domain)
		if name == "" {
			return nil, fmt.Errorf("%w: %w: %q", ErrInvalidConfig, ErrInvalidDomain, domain)
		}
		for i, e := range entries {
			d, err := ParseDigest(e.Digest)
			if err != nil {
				return nil, fmt.Errorf("%w: %s pin %d: %w", ErrInvalidConfig, name, i, err)
			}
			p := Pin{Digest: d}
			if e.Expires != nil {
				p.Expires = e.Expires.UTC()
			}
			out[name] = append(out[name], p)
		}
	}
	return out, nil
}

// Marshal encodes a domain -> pins mapping as a YAML pin set document.
func Marshal(pinsByDomain map[string][]Pin) ([]byte, error) {
	doc := documentYAML{Domains: make(map[string][]pinYAML, len(pinsByDomain))}
	for domain, pins := range pinsByDomain {
		entries := make([]pinYAML, 0, len(pins))
		for _, p := range pins {
			e := pinYAML{Digest: p.Digest.String()}
			if !p.Expires.IsZero() {
				exp := p.Expires.UTC()
				e.Expires = &exp
			}
			entries = append(entries, e)
		}
		doc.Domains[domain] = entries
	}
	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return out, nil
}

// LoadFile reads and parses a YAML pin set file.
func LoadFile(path string) (map[string][]Pin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileOperation, err)
	}
	return Parse(data)
}

// LoadFile replaces the store's whole mapping with the pins in a YAML file.
// On error the current mapping is left untouched.
func (s *Store) LoadFile(path string) error {
	pins, err := LoadFile(path)
	if err != nil {
		return err
	}
	return s.Replace(pins)
}
