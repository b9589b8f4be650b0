// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-keypin/pkg/pinsource"
	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
)

// fetchOptions holds the fetch command flags.
type fetchOptions struct {
	order            []string
	perSourceTimeout time.Duration

	pinsFile string

	daneDomains   []string
	danePort      int
	daneDNSServer string
	daneDoT       bool
	daneTLSName   string

	noiseAddr      string
	noiseServerKey string
	noiseDomains   []string

	httpsURL  string
	httpsPins []string
}

var fetchOpts fetchOptions

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch pins from the first available source",
	Long: `Fetch a pin set by trying each configured source in priority order and
write it as a YAML pin document.

A source is configured by its flags:
  dane   --dane-domains
  noise  --noise-addr and --noise-server-key
  https  --https-url (optionally pinned with --https-pin)
  file   --pins-file

The default order is dane, noise, https, file. A source that fails or
returns no pins is skipped; the command fails when every source fails.`,
	RunE: runFetch,
}

func init() {
	f := fetchCmd.Flags()
	f.StringSliceVar(&fetchOpts.order, "order", nil, "source priority order (comma-separated: dane,noise,https,file)")
	f.DurationVar(&fetchOpts.perSourceTimeout, "per-source-timeout", pinsource.DefaultPerSourceTimeout, "timeout for each source attempt")

	f.StringVar(&fetchOpts.pinsFile, "pins-file", "", "local YAML pin document")

	f.StringSliceVar(&fetchOpts.daneDomains, "dane-domains", nil, "domains to resolve TLSA pins for")
	f.IntVar(&fetchOpts.danePort, "dane-port", pinsource.DefaultDANEPort, "service port of the TLSA records")
	f.StringVar(&fetchOpts.daneDNSServer, "dane-dns-server", "", "DNS server address (e.g., 9.9.9.9:53)")
	f.BoolVar(&fetchOpts.daneDoT, "dane-dns-over-tls", false, "use DNS-over-TLS for TLSA lookups")
	f.StringVar(&fetchOpts.daneTLSName, "dane-dns-tls-server-name", "", "TLS server name for DNS-over-TLS")

	f.StringVar(&fetchOpts.noiseAddr, "noise-addr", "", "pinsync server address (host:port)")
	f.StringVar(&fetchOpts.noiseServerKey, "noise-server-key", "", "hex-encoded pinsync server static public key")
	f.StringSliceVar(&fetchOpts.noiseDomains, "domains", nil, "restrict the pinsync request to these domains")

	f.StringVar(&fetchOpts.httpsURL, "https-url", "", "HTTPS URL of a YAML pin document")
	f.StringSliceVar(&fetchOpts.httpsPins, "https-pin", nil, "pins of the HTTPS document server key")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := buildAutoConfig(&fetchOpts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pins, err := pinsource.AutoFetch(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	data, err := pinstore.Marshal(pins)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	slog.Info("pins fetched", "domains", len(pins))
	return writeOutput(data)
}

// sourceKinds lists the source names accepted by --order.
var sourceKinds = map[string]pinsource.Kind{
	string(pinsource.KindDANE):  pinsource.KindDANE,
	string(pinsource.KindNoise): pinsource.KindNoise,
	string(pinsource.KindHTTPS): pinsource.KindHTTPS,
	string(pinsource.KindFile):  pinsource.KindFile,
}

// buildAutoConfig translates fetch flags into an AutoConfig. Sources
// without flags stay nil and are skipped.
func buildAutoConfig(opts *fetchOptions) (*pinsource.AutoConfig, error) {
	cfg := &pinsource.AutoConfig{
		PerSourceTimeout: opts.perSourceTimeout,
		Logger:           slog.Default(),
	}

	for _, name := range opts.order {
		kind, ok := sourceKinds[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown source %q in --order", ErrInvalidInput, name)
		}
		cfg.Order = append(cfg.Order, kind)
	}

	if opts.pinsFile != "" {
		cfg.File = &pinsource.FileConfig{Path: opts.pinsFile}
	}

	if len(opts.daneDomains) > 0 {
		port, err := parsePort(opts.danePort)
		if err != nil {
			return nil, err
		}
		cfg.DANE = &pinsource.DANEConfig{
			Domains:          opts.daneDomains,
			Port:             port,
			DNSServer:        opts.daneDNSServer,
			DNSOverTLS:       opts.daneDoT,
			DNSTLSServerName: opts.daneTLSName,
		}
	}

	if opts.noiseAddr != "" || opts.noiseServerKey != "" {
		if opts.noiseAddr == "" || opts.noiseServerKey == "" {
			return nil, fmt.Errorf("%w: --noise-addr and --noise-server-key must be used together", ErrInvalidInput)
		}
		cfg.Noise = &pinsource.NoiseConfig{
			ServerAddr:      opts.noiseAddr,
			ServerStaticKey: opts.noiseServerKey,
			Domains:         opts.noiseDomains,
		}
	}

	if opts.httpsURL != "" {
		httpsCfg := &pinsource.HTTPSConfig{URL: opts.httpsURL}
		for _, p := range opts.httpsPins {
			digest, err := pinstore.ParseDigest(p)
			if err != nil {
				return nil, fmt.Errorf("%w: --https-pin: %w", ErrInvalidInput, err)
			}
			httpsCfg.ServerPins = append(httpsCfg.ServerPins, digest)
		}
		cfg.HTTPS = httpsCfg
	} else if len(opts.httpsPins) > 0 {
		return nil, fmt.Errorf("%w: --https-pin requires --https-url", ErrInvalidInput)
	}

	if cfg.File == nil && cfg.DANE == nil && cfg.Noise == nil && cfg.HTTPS == nil {
		return nil, fmt.Errorf("%w: no pin source configured", ErrInvalidInput)
	}
	return cfg, nil
}
