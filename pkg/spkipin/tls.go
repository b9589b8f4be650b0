// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package spkipin

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
)

// TLSConfig configures a pinned crypto/tls client configuration.
type TLSConfig struct {
	// Validator decides whether the server key is pinned. Required.
	Validator *Validator

	// Domain is the pin domain. Defaults to the SNI server name of the
	// connection.
	Domain string

	// RequireCAChain additionally requires normal CA chain and hostname
	// verification, and lets a pin match any certificate on a verified
	// chain. When false, pins are the only trust anchor and only the leaf
	// key, whose possession the handshake proves, is checked.
	RequireCAChain bool

	// RootCAs overrides the system roots when RequireCAChain is set.
	RootCAs *x509.CertPool

	// Metrics records decisions. Optional.
	Metrics *Metrics

	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewPinnedTLSConfig creates a TLS client configuration that rejects any
// server that does not present a pinned key for the domain.
//
// Without RequireCAChain the system certificate store is bypassed, which
// suits bootstrap scenarios where the pin is distributed out-of-band and no
// CA is trusted yet.
func NewPinnedTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	if cfg == nil || cfg.Validator == nil {
		return nil, fmt.Errorf("%w: validator required", ErrInvalidConfig)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "spkipin_tls")

	verify := func(cs tls.ConnectionState) error {
		domain := cfg.Domain
		if domain == "" {
			domain = cs.ServerName
		}
		if domain == "" {
			return fmt.Errorf("%w: no domain or server name to validate against", ErrNoPinsConfigured)
		}
		d, err := validateConnection(cfg, domain, cs)
		if err != nil {
			return err
		}
		cfg.Metrics.Observe(d)
		switch {
		case !d.Accepted:
			logger.Warn("server key rejected",
				"domain", d.Domain,
				"reason", d.Reason.String(),
				"algorithm", d.Algorithm.String(),
				"pin", d.Digest.String())
			return d.Err()
		case d.Grace:
			logger.Warn("server key accepted through expired pin, rotate pins",
				"domain", d.Domain,
				"pin", d.Digest.String())
		default:
			logger.Debug("server key pinned", "domain", d.Domain, "algorithm", d.Algorithm.String())
		}
		return nil
	}

	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         cfg.Domain,
		RootCAs:            cfg.RootCAs,
		InsecureSkipVerify: !cfg.RequireCAChain, //nolint:gosec // pins replace CA verification
		VerifyConnection:   verify,
	}, nil
}

// validateConnection picks the certificates a pin may match. Unverified
// peer certificates beyond the leaf are attacker-controlled, so they only
// count once they sit on a verified chain.
func validateConnection(cfg *TLSConfig, domain string, cs tls.ConnectionState) (Decision, error) {
	if cfg.RequireCAChain {
		return cfg.Validator.ValidateVerifiedChains(domain, cs.VerifiedChains)
	}
	if len(cs.PeerCertificates) == 0 {
		return Decision{}, ErrNoCertificates
	}
	return cfg.Validator.ValidateCertificate(domain, cs.PeerCertificates[0]), nil
}
