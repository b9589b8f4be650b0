// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-keypin/pkg/dane"
	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
	"github.com/jeremyhahn/go-keypin/pkg/spkipin"
)

const (
	// defaultDANEPort is the default TLS port for DANE/TLSA records.
	defaultDANEPort = 443

	// defaultDANEResolveTimeout is the default timeout for DNS resolution.
	defaultDANEResolveTimeout = 10 * time.Second
)

// daneCmd is the parent command for DANE/TLSA operations.
var daneCmd = &cobra.Command{
	Use:   "dane",
	Short: "DANE/TLSA pin publishing",
	Long:  "Tools for publishing pins as DANE TLSA records (RFC 6698) and discovering them from DNS.",
}

var daneGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate TLSA record(s) for DNS publishing",
	Long: `Generate SPKI SHA-256 TLSA records for DNS zone publishing.

The pin is taken from --cert-file, --pin, or every pin of --hostname in
--pins-file. Records use DANE-EE (3) by default; use --usage 2 for a
trust anchor key such as a backup intermediate.`,
	RunE: runDANEGenerate,
}

var daneLookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Look up the pins published for a host",
	Long: `Query DNS for _<port>._tcp.<hostname> TLSA records, display them, and list
the pins derived from the SPKI SHA-256 records among them. DNSSEC
validation by the resolver is required unless --insecure-dns is set.`,
	RunE: runDANELookup,
}

func init() {
	daneCmd.AddCommand(daneGenerateCmd)
	daneCmd.AddCommand(daneLookupCmd)

	daneGenerateCmd.Flags().String("cert-file", "", "path to PEM certificate file")
	daneGenerateCmd.Flags().String("pin", "", "pin digest (sha256/<base64> or hex)")
	daneGenerateCmd.Flags().String("pins-file", "", "YAML pin document; publishes every pin of --hostname")
	daneGenerateCmd.Flags().String("hostname", "", "hostname for the TLSA record (required)")
	daneGenerateCmd.Flags().Int("port", defaultDANEPort, "port number for the TLSA record")
	daneGenerateCmd.Flags().Int("usage", int(dane.UsageDANEEE), "TLSA certificate usage (2=DANE-TA, 3=DANE-EE)")

	daneLookupCmd.Flags().String("hostname", "", "hostname to query TLSA records for (required)")
	daneLookupCmd.Flags().Int("port", defaultDANEPort, "port number for the TLSA record")
	daneLookupCmd.Flags().String("dns-server", "", "DNS server address (e.g., 8.8.8.8:53)")
	daneLookupCmd.Flags().Bool("dns-over-tls", false, "use DNS-over-TLS (DoT) for TLSA lookups")
	daneLookupCmd.Flags().String("dns-tls-server-name", "", "TLS server name for DNS-over-TLS")
	daneLookupCmd.Flags().Bool("insecure-dns", false, "accept responses without the DNSSEC AD flag")
	daneLookupCmd.Flags().Duration("timeout", defaultDANEResolveTimeout, "DNS query timeout")
}

func runDANEGenerate(cmd *cobra.Command, args []string) error {
	certFile, _ := cmd.Flags().GetString("cert-file")
	pinFlag, _ := cmd.Flags().GetString("pin")
	pinsFile, _ := cmd.Flags().GetString("pins-file")
	hostname, _ := cmd.Flags().GetString("hostname")
	port, _ := cmd.Flags().GetInt("port")
	usage, _ := cmd.Flags().GetInt("usage")

	if hostname == "" {
		return fmt.Errorf("%w: --hostname is required", ErrInvalidInput)
	}
	tlsaPort, err := parsePort(port)
	if err != nil {
		return err
	}
	if usage < 0 || usage > math.MaxUint8 {
		return fmt.Errorf("%w: invalid --usage %d", ErrInvalidInput, usage)
	}

	pins, err := generatePins(certFile, pinFlag, pinsFile, hostname)
	if err != nil {
		return err
	}

	records, err := dane.GenerateTLSARecords(pins, hostname, tlsaPort, uint8(usage))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	slog.Debug("generated TLSA records", "hostname", hostname, "count", len(records))

	lines := make([]string, 0, len(records))
	for _, rec := range records {
		lines = append(lines, rec.ZoneLine)
	}
	return writeResult(lines, func() string {
		return strings.Join(lines, "\n") + "\n"
	})
}

// generatePins resolves exactly one of the three pin inputs of dane generate.
func generatePins(certFile, pinFlag, pinsFile, hostname string) ([]pinstore.Pin, error) {
	set := 0
	for _, v := range []string{certFile, pinFlag, pinsFile} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: exactly one of --cert-file, --pin or --pins-file is required", ErrInvalidInput)
	}

	switch {
	case certFile != "":
		cert, err := loadCertFromPEMFile(certFile)
		if err != nil {
			return nil, err
		}
		digest, _, err := spkipin.ComputeCertificatePin(cert)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrKeyOperation, err)
		}
		return []pinstore.Pin{{Digest: digest}}, nil
	case pinFlag != "":
		digest, err := pinstore.ParseDigest(pinFlag)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return []pinstore.Pin{{Digest: digest}}, nil
	default:
		store := pinstore.New()
		if err := store.LoadFile(pinsFile); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFileOperation, err)
		}
		active, _ := store.Lookup(hostname, store.Now())
		if len(active) == 0 {
			return nil, fmt.Errorf("%w: no active pins for %s in %s", ErrInvalidInput, hostname, pinsFile)
		}
		return active, nil
	}
}

// tlsaResult is the JSON form of a TLSA lookup.
type tlsaResult struct {
	Hostname string       `json:"hostname"`
	Port     uint16       `json:"port"`
	Server   string       `json:"server"`
	Records  []tlsaRecord `json:"records"`
	Pins     []string     `json:"pins"`
}

type tlsaRecord struct {
	Usage        uint8  `json:"usage"`
	Selector     uint8  `json:"selector"`
	MatchingType uint8  `json:"matching_type"`
	Data         string `json:"data"`
	Pin          bool   `json:"pin"`
}

func runDANELookup(cmd *cobra.Command, args []string) error {
	hostname, _ := cmd.Flags().GetString("hostname")
	port, _ := cmd.Flags().GetInt("port")
	dnsServer, _ := cmd.Flags().GetString("dns-server")
	useTLS, _ := cmd.Flags().GetBool("dns-over-tls")
	tlsServerName, _ := cmd.Flags().GetString("dns-tls-server-name")
	insecure, _ := cmd.Flags().GetBool("insecure-dns")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if hostname == "" {
		return fmt.Errorf("%w: --hostname is required", ErrInvalidInput)
	}
	tlsaPort, err := parsePort(port)
	if err != nil {
		return err
	}

	resolver, err := dane.NewResolver(&dane.ResolverConfig{
		Server:        dnsServer,
		UseTLS:        useTLS,
		TLSServerName: tlsServerName,
		RequireAD:     !insecure,
		Timeout:       timeout,
		Logger:        slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	sigCtx, sigStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer sigStop()

	ctx, cancel := context.WithTimeout(sigCtx, timeout)
	defer cancel()

	records, err := resolver.LookupTLSA(ctx, hostname, tlsaPort)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	result := &tlsaResult{
		Hostname: hostname,
		Port:     tlsaPort,
		Server:   resolver.Server(),
		Records:  make([]tlsaRecord, 0, len(records)),
		Pins:     []string{},
	}
	for _, rec := range records {
		result.Records = append(result.Records, tlsaRecord{
			Usage:        rec.Usage,
			Selector:     rec.Selector,
			MatchingType: rec.MatchingType,
			Data:         hex.EncodeToString(rec.CertData),
			Pin:          dane.IsPinRecord(rec),
		})
	}
	if pins, err := dane.PinsFromTLSA(records); err == nil {
		for _, p := range pins {
			result.Pins = append(result.Pins, p.Digest.String())
		}
	}

	slog.Info("TLSA records found", "hostname", hostname, "records", len(records), "pins", len(result.Pins))

	return writeResult(result, result.text)
}

func (r *tlsaResult) text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "TLSA records for _%d._tcp.%s (via %s):\n", r.Port, r.Hostname, r.Server)
	for i, rec := range r.Records {
		fmt.Fprintf(&b, "\n  Record %d:\n", i+1)
		fmt.Fprintf(&b, "    Usage:         %d (%s)\n", rec.Usage, tlsaUsageName(rec.Usage))
		fmt.Fprintf(&b, "    Selector:      %d (%s)\n", rec.Selector, tlsaSelectorName(rec.Selector))
		fmt.Fprintf(&b, "    Matching Type: %d (%s)\n", rec.MatchingType, tlsaMatchingName(rec.MatchingType))
		fmt.Fprintf(&b, "    Data:          %s\n", rec.Data)
	}
	if len(r.Pins) == 0 {
		b.WriteString("\nNo SPKI SHA-256 records; no pins derived.\n")
		return b.String()
	}
	b.WriteString("\nPins:\n")
	for _, p := range r.Pins {
		fmt.Fprintf(&b, "  %s\n", p)
	}
	return b.String()
}

// parsePort validates a TCP port flag.
func parsePort(port int) (uint16, error) {
	if port <= 0 || port > math.MaxUint16 {
		return 0, fmt.Errorf("%w: invalid port %d", ErrInvalidInput, port)
	}
	return uint16(port), nil
}

// usageNames provides O(1) lookup for TLSA usage field descriptions.
var usageNames = map[uint8]string{
	dane.UsageCAConstraint: "PKIX-TA",
	dane.UsageServiceCert:  "PKIX-EE",
	dane.UsageDANETA:       "DANE-TA",
	dane.UsageDANEEE:       "DANE-EE",
}

// selectorNames provides O(1) lookup for TLSA selector field descriptions.
var selectorNames = map[uint8]string{
	dane.SelectorFullCert: "Full Certificate",
	dane.SelectorSPKI:     "SubjectPublicKeyInfo",
}

// matchingNames provides O(1) lookup for TLSA matching type field descriptions.
var matchingNames = map[uint8]string{
	dane.MatchingExact:  "Exact Match",
	dane.MatchingSHA256: "SHA-256",
	dane.MatchingSHA512: "SHA-512",
}

func tlsaUsageName(usage uint8) string {
	if name, ok := usageNames[usage]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", usage)
}

func tlsaSelectorName(selector uint8) string {
	if name, ok := selectorNames[selector]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", selector)
}

func tlsaMatchingName(matchingType uint8) string {
	if name, ok := matchingNames[matchingType]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", matchingType)
}
