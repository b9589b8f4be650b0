// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flynn/noise"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jeremyhahn/go-keypin/pkg/noiseproto"
	"github.com/jeremyhahn/go-keypin/pkg/noiseproto/pinsync"
	"github.com/jeremyhahn/go-keypin/pkg/pinsource"
	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
)

// Sentinel errors for the serve command.
var (
	// ErrPinsFileRequired is returned when the --pins-file flag is not provided.
	ErrPinsFileRequired = errors.New("serve: --pins-file is required")

	// ErrKeyGeneration is returned when Noise static key generation fails.
	ErrKeyGeneration = errors.New("serve: key generation failed")

	// ErrKeyLoad is returned when loading a Noise static key from disk fails.
	ErrKeyLoad = errors.New("serve: key load failed")

	// ErrServerStart is returned when the pin server fails to start.
	ErrServerStart = errors.New("serve: server start failed")
)

const (
	defaultServeListenAddr = ":8445"
	defaultServeKeyFile    = "keypin-noise.key"
	defaultShutdownTimeout = 10 * time.Second
	metricsReadTimeout     = 5 * time.Second
)

// serveOptions holds the serve command flags.
type serveOptions struct {
	pinsFile       string
	keyFile        string
	listenAddr     string
	maxConnections int
	refresh        time.Duration
	metricsAddr    string
}

var serveOpts serveOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a pinsync server",
	Long: `Serve the pins of a YAML pin document to clients over Noise_NK.

The server loads or generates a Curve25519 static key; clients must know
its public key. The pin document is re-read every --refresh interval and a
document that fails to load leaves the previous pins in service. With
--metrics-addr, Prometheus metrics are exposed on /metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveOpts.pinsFile, "pins-file", "", "YAML pin document to serve (required)")
	serveCmd.Flags().StringVar(&serveOpts.keyFile, "key-file", defaultServeKeyFile, "path to Noise static key file (hex-encoded)")
	serveCmd.Flags().StringVar(&serveOpts.listenAddr, "listen", defaultServeListenAddr, "TCP listen address")
	serveCmd.Flags().IntVar(&serveOpts.maxConnections, "max-connections", pinsync.DefaultMaxConnections, "maximum concurrent connections")
	serveCmd.Flags().DurationVar(&serveOpts.refresh, "refresh", time.Minute, "pin document reload interval (0 disables)")
	serveCmd.Flags().StringVar(&serveOpts.metricsAddr, "metrics-addr", "", "address for the Prometheus /metrics endpoint")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, &serveOpts, nil)
}

// serve runs the pin server until ctx is done. ready, when non-nil,
// receives the bound pin server address once it accepts connections.
func serve(ctx context.Context, opts *serveOptions, ready chan<- net.Addr) error {
	if opts.pinsFile == "" {
		return ErrPinsFileRequired
	}

	staticKey, err := loadOrGenerateKey(opts.keyFile)
	if err != nil {
		return err
	}
	defer noiseproto.WipeDHKey(staticKey)
	slog.Info("server public key", "key", hex.EncodeToString(staticKey.Public))

	src, err := pinsource.NewFileSource(&pinsource.FileConfig{Path: opts.pinsFile})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	store := pinstore.New()
	if err := pinsource.Reload(ctx, src, store); err != nil {
		return fmt.Errorf("%w: %w", ErrServerStart, err)
	}
	slog.Info("pins loaded", "path", opts.pinsFile, "domains", len(store.Domains()))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "keypin_pinned_domains",
		Help: "Number of domains in the served pin set.",
	}, func() float64 { return float64(len(store.Domains())) })

	server, err := pinsync.NewServer(&pinsync.ServerConfig{
		ListenAddr:     opts.listenAddr,
		StaticKey:      staticKey,
		Pins:           store,
		MaxConnections: opts.maxConnections,
		Metrics:        pinsync.NewMetrics(reg),
		Logger:         slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServerStart, err)
	}
	if err := server.Start(); err != nil {
		return fmt.Errorf("%w: %w", ErrServerStart, err)
	}
	slog.Info("listening", "addr", server.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	if opts.refresh > 0 {
		g.Go(func() error {
			return pinsource.Poll(gctx, src, store, opts.refresh, slog.Default())
		})
	}
	if opts.metricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, opts.metricsAddr, reg)
		})
	}

	if ready != nil {
		ready <- server.Addr()
	}

	<-gctx.Done()
	slog.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	stopErr := server.Stop(stopCtx)

	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %w", ErrServerStart, err)
	}
	if stopErr != nil {
		return fmt.Errorf("%w: %w", ErrServerStart, stopErr)
	}
	slog.Info("server stopped")
	return nil
}

// serveMetrics exposes reg on /metrics until ctx is done.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}
}

// loadOrGenerateKey loads the Noise static key stored at keyFile. When the
// file does not exist a new key is generated and written with 0600
// permissions.
func loadOrGenerateKey(keyFile string) (*noise.DHKey, error) {
	if _, err := os.Stat(keyFile); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: reading %s: %w", ErrKeyLoad, keyFile, err)
		}

		slog.Debug("generating new Noise static key")

		key, genErr := noiseproto.GenerateStaticKey()
		if genErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrKeyGeneration, genErr)
		}
		if writeErr := noiseproto.WriteStaticKeyFile(keyFile, key); writeErr != nil {
			return nil, fmt.Errorf("%w: writing %s: %w", ErrKeyGeneration, keyFile, writeErr)
		}

		slog.Info("key written", "path", keyFile)
		return key, nil
	}

	key, err := noiseproto.ReadStaticKeyFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrKeyLoad, keyFile, err)
	}

	slog.Info("loaded Noise static key", "path", keyFile)
	return key, nil
}
