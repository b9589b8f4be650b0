// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package dane

import (
	"context"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
	"github.com/miekg/dns"
)

const (
	// defaultTimeout is the default DNS query timeout.
	defaultTimeout = 5 * time.Second

	// defaultDNSPort is the standard DNS port.
	defaultDNSPort = "53"

	// defaultDoTPort is the standard DNS-over-TLS port.
	defaultDoTPort = "853"

	// resolvConfPath is the system resolver configuration.
	resolvConfPath = "/etc/resolv.conf"
)

// Resolver looks up TLSA records with optional DNSSEC enforcement and
// DNS-over-TLS.
type Resolver struct {
	client    *dns.Client
	server    string
	requireAD bool
	logger    *slog.Logger
}

// NewResolver creates a resolver. Unset fields take defaults.
func NewResolver(cfg *ResolverConfig) (*Resolver, error) {
	if cfg == nil {
		return nil, ErrResolverConfig
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &dns.Client{Net: "udp", Timeout: timeout}
	port := defaultDNSPort
	if cfg.UseTLS {
		client.Net = "tcp-tls"
		client.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: cfg.TLSServerName,
		}
		port = defaultDoTPort
	}

	server, err := resolveServer(cfg.Server, port)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		client:    client,
		server:    server,
		requireAD: cfg.RequireAD,
		logger:    logger.With("component", "dane_resolver"),
	}, nil
}

// resolveServer adds the default port to server, or falls back to the
// system resolver when server is empty.
func resolveServer(server, port string) (string, error) {
	if server != "" {
		if _, _, err := net.SplitHostPort(server); err == nil {
			return server, nil
		}
		return net.JoinHostPort(server, port), nil
	}

	systemCfg, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrResolverConfig, err)
	}
	if len(systemCfg.Servers) == 0 {
		return "", fmt.Errorf("%w: no nameservers in %s", ErrResolverConfig, resolvConfPath)
	}
	if systemCfg.Port != "" {
		port = systemCfg.Port
	}
	return net.JoinHostPort(systemCfg.Servers[0], port), nil
}

// Server returns the resolver address queries are sent to.
func (r *Resolver) Server() string {
	return r.server
}

// LookupTLSA queries the TLSA records of "_<port>._tcp.<hostname>.".
func (r *Resolver) LookupTLSA(ctx context.Context, hostname string, port uint16) ([]*TLSARecord, error) {
	qname, err := formatTLSAName(hostname, port)
	if err != nil {
		return nil, err
	}

	msg := new(dns.Msg)
	msg.SetQuestion(qname, dns.TypeTLSA)
	msg.SetEdns0(4096, true)
	msg.RecursionDesired = true

	r.logger.Debug("querying TLSA records", "name", qname, "server", r.server)

	resp, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDNSLookupFailed, err)
	}
	if resp == nil {
		return nil, ErrDNSLookupFailed
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%w: rcode %s", ErrDNSLookupFailed, dns.RcodeToString[resp.Rcode])
	}
	if r.requireAD && !resp.AuthenticatedData {
		return nil, ErrDNSSECRequired
	}

	records := parseAnswer(resp.Answer)
	if len(records) == 0 {
		return nil, ErrNoTLSARecords
	}
	return records, nil
}

// LookupPins returns the pins published for hostname:port.
func (r *Resolver) LookupPins(ctx context.Context, hostname string, port uint16) ([]pinstore.Pin, error) {
	records, err := r.LookupTLSA(ctx, hostname, port)
	if err != nil {
		return nil, err
	}
	pins, err := PinsFromTLSA(records)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, hostname)
	}
	r.logger.Debug("pins discovered", "hostname", hostname, "records", len(records), "pins", len(pins))
	return pins, nil
}

// parseAnswer extracts TLSA records, skipping other types and records
// whose association data is not valid hex.
func parseAnswer(answer []dns.RR) []*TLSARecord {
	records := make([]*TLSARecord, 0, len(answer))
	for _, rr := range answer {
		tlsa, ok := rr.(*dns.TLSA)
		if !ok {
			continue
		}
		data, err := hex.DecodeString(tlsa.Certificate)
		if err != nil {
			continue
		}
		records = append(records, &TLSARecord{
			Usage:        tlsa.Usage,
			Selector:     tlsa.Selector,
			MatchingType: tlsa.MatchingType,
			CertData:     data,
		})
	}
	return records
}
