// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinsource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jeremyhahn/go-keypin/pkg/dane"
	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
)

const (
	// DefaultDANEPort is the TLSA port used when none is configured.
	DefaultDANEPort = 443

	// DefaultDANEConcurrency bounds parallel TLSA lookups.
	DefaultDANEConcurrency = 4
)

// PinResolver resolves the pins published in TLSA records for one
// endpoint. *dane.Resolver satisfies it.
type PinResolver interface {
	LookupPins(ctx context.Context, hostname string, port uint16) ([]pinstore.Pin, error)
}

// DANEConfig configures a DANESource.
type DANEConfig struct {
	// Domains are the hostnames to resolve. Required.
	Domains []string

	// Port is the service port of the TLSA owner name. Default: 443.
	Port uint16

	// DNSServer is the resolver address (e.g., "9.9.9.9:53"). When empty,
	// the first nameserver of /etc/resolv.conf is used.
	DNSServer string

	// DNSOverTLS queries the resolver over DNS-over-TLS.
	DNSOverTLS bool

	// DNSTLSServerName is the SNI name for DNS-over-TLS.
	DNSTLSServerName string

	// Timeout bounds each DNS exchange.
	Timeout time.Duration

	// Concurrency bounds parallel lookups. Default: 4.
	Concurrency int

	// Resolver overrides the DNS resolver built from the fields above.
	Resolver PinResolver

	// Logger for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// DANESource resolves pins from DNSSEC-authenticated TLSA records. Every
// domain must resolve; a partial pin set would silently unpin the domains
// that failed.
type DANESource struct {
	domains     []string
	port        uint16
	concurrency int
	resolver    PinResolver
	logger      *slog.Logger
}

// NewDANESource creates a DANESource. Without an explicit Resolver a
// dane.Resolver is built that requires the DNSSEC AD flag.
func NewDANESource(cfg *DANEConfig) (*DANESource, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if len(cfg.Domains) == 0 {
		return nil, fmt.Errorf("%w: at least one domain required", ErrInvalidConfig)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	resolver := cfg.Resolver
	if resolver == nil {
		r, err := dane.NewResolver(&dane.ResolverConfig{
			Server:        cfg.DNSServer,
			UseTLS:        cfg.DNSOverTLS,
			TLSServerName: cfg.DNSTLSServerName,
			RequireAD:     true,
			Timeout:       cfg.Timeout,
			Logger:        logger,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		resolver = r
	}

	port := cfg.Port
	if port == 0 {
		port = DefaultDANEPort
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultDANEConcurrency
	}

	return &DANESource{
		domains:     cfg.Domains,
		port:        port,
		concurrency: concurrency,
		resolver:    resolver,
		logger:      logger.With("component", "dane_source"),
	}, nil
}

// FetchPins looks up every domain concurrently. The first failure cancels
// the remaining lookups.
func (s *DANESource) FetchPins(ctx context.Context) (map[string][]pinstore.Pin, error) {
	var mu sync.Mutex
	pins := make(map[string][]pinstore.Pin, len(s.domains))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, domain := range s.domains {
		g.Go(func() error {
			found, err := s.resolver.LookupPins(gctx, domain, s.port)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrDNSLookupFailed, domain, err)
			}
			s.logger.Debug("resolved TLSA pins", "domain", domain, "pins", len(found))

			mu.Lock()
			defer mu.Unlock()
			name := pinstore.NormalizeDomain(domain)
			pins[name] = append(pins[name], found...)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pins, nil
}
