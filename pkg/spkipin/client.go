// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package spkipin

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jeremyhahn/go-keypin/pkg/keyalg"
	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
)

const (
	// DefaultConnectTimeout is the default timeout for probe handshakes.
	DefaultConnectTimeout = 10 * time.Second
)

// ClientConfig configures the probe client.
type ClientConfig struct {
	// Validator evaluates the leaf key. Optional: without it Check
	// only reports the pins.
	Validator *Validator

	// ConnectTimeout bounds the dial and handshake. Defaults to DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// CertificateReport describes one certificate of a presented chain.
type CertificateReport struct {
	// Subject is the certificate subject.
	Subject string

	// Algorithm is the identified key algorithm, or keyalg.Unknown.
	Algorithm keyalg.Algorithm

	// Pin is the digest of the SPKI rebuilt from the key. Zero when the key
	// is not supported.
	Pin pinstore.Digest

	// SPKIPin is the hex SHA-256 of the SPKI exactly as encoded.
	SPKIPin string

	// Err is set when Pin could not be computed.
	Err error
}

// Report is the result of probing one endpoint.
type Report struct {
	// Address is the dialed host:port.
	Address string

	// Domain is the pin domain the chain was validated against.
	Domain string

	// Certificates is the presented chain, leaf first.
	Certificates []CertificateReport

	// Decision is the validation result. Zero when no Validator is configured.
	Decision Decision
}

// Client connects to TLS endpoints and reports the pins of their keys.
// It never sends application data.
type Client struct {
	validator *Validator
	timeout   time.Duration
	logger    *slog.Logger
}

// NewClient creates a probe client.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: client config required", ErrInvalidConfig)
	}
	if cfg.ConnectTimeout < 0 {
		return nil, fmt.Errorf("%w: negative connect timeout", ErrInvalidConfig)
	}
	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		validator: cfg.Validator,
		timeout:   timeout,
		logger:    logger.With("component", "spkipin_client"),
	}, nil
}

// Check performs a TLS handshake with addr and reports the presented chain.
// domain selects the pins; when empty the host part of addr is used.
func (c *Client) Check(ctx context.Context, addr, domain string) (*Report, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	if domain == "" {
		domain = host
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: c.timeout},
		Config: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			ServerName:         host,
			InsecureSkipVerify: true, //nolint:gosec // probe only reports, it trusts nothing
		},
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug("probing endpoint", "address", addr, "domain", domain)

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected connection type %T", ErrConnectFailed, conn)
	}
	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil, ErrNoCertificates
	}

	report := &Report{
		Address:      addr,
		Domain:       pinstore.NormalizeDomain(domain),
		Certificates: make([]CertificateReport, 0, len(certs)),
	}
	for _, cert := range certs {
		report.Certificates = append(report.Certificates, describeCertificate(cert))
	}

	if c.validator != nil {
		// Check verifies no chain, so only the leaf key counts.
		d := c.validator.ValidateCertificate(domain, certs[0])
		report.Decision = d
		c.logger.Info("endpoint checked",
			"address", addr,
			"domain", d.Domain,
			"accepted", d.Accepted,
			"reason", d.Reason.String())
	}
	return report, nil
}

func describeCertificate(cert *x509.Certificate) CertificateReport {
	r := CertificateReport{
		Subject: cert.Subject.String(),
		SPKIPin: ComputeSPKIPin(cert),
	}
	r.Pin, r.Algorithm, r.Err = ComputeCertificatePin(cert)
	return r
}
