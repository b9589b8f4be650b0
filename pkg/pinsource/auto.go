// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinsource

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jeremyhahn/go-keypin/pkg/noiseproto/pinsync"
	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
)

// DefaultPerSourceTimeout is the timeout applied to each source attempt.
const DefaultPerSourceTimeout = 15 * time.Second

// AutoConfig configures an AutoSource. A nil source config skips that
// source.
type AutoConfig struct {
	// Order is the priority order of attempts. Default: DefaultOrder.
	Order []Kind

	// PerSourceTimeout bounds each attempt. Default: 15s.
	PerSourceTimeout time.Duration

	// Embedded is an in-process pin provider.
	Embedded pinsync.PinProvider

	// DANE configures the TLSA source.
	DANE *DANEConfig

	// Noise configures the pinsync source.
	Noise *NoiseConfig

	// HTTPS configures the HTTPS document source.
	HTTPS *HTTPSConfig

	// File configures the local document source.
	File *FileConfig

	// Logger for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

type sourceFactory func() (Source, error)

// AutoSource tries several sources in priority order and returns the first
// non-empty pin set. Sources are created fresh for every attempt.
type AutoSource struct {
	factories  map[Kind]sourceFactory
	order      []Kind
	perTimeout time.Duration
	logger     *slog.Logger
}

// NewAutoSource builds an AutoSource from the non-nil source configs.
func NewAutoSource(cfg *AutoConfig) (*AutoSource, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	perTimeout := cfg.PerSourceTimeout
	if perTimeout == 0 {
		perTimeout = DefaultPerSourceTimeout
	}
	order := cfg.Order
	if len(order) == 0 {
		order = DefaultOrder
	}

	factories := make(map[Kind]sourceFactory)
	if cfg.Embedded != nil {
		provider := cfg.Embedded
		factories[KindEmbedded] = func() (Source, error) { return NewEmbeddedSource(provider) }
	}
	if cfg.DANE != nil {
		daneCfg := *cfg.DANE
		if daneCfg.Logger == nil {
			daneCfg.Logger = logger
		}
		factories[KindDANE] = func() (Source, error) { return NewDANESource(&daneCfg) }
	}
	if cfg.Noise != nil {
		noiseCfg := *cfg.Noise
		if noiseCfg.Logger == nil {
			noiseCfg.Logger = logger
		}
		factories[KindNoise] = func() (Source, error) { return NewNoiseSource(&noiseCfg) }
	}
	if cfg.HTTPS != nil {
		httpsCfg := *cfg.HTTPS
		if httpsCfg.Logger == nil {
			httpsCfg.Logger = logger
		}
		factories[KindHTTPS] = func() (Source, error) { return NewHTTPSSource(&httpsCfg) }
	}
	if cfg.File != nil {
		fileCfg := *cfg.File
		factories[KindFile] = func() (Source, error) { return NewFileSource(&fileCfg) }
	}

	hasSource := false
	for _, k := range order {
		if _, ok := factories[k]; ok {
			hasSource = true
			break
		}
	}
	if !hasSource {
		return nil, ErrNoSourcesConfigured
	}

	return &AutoSource{
		factories:  factories,
		order:      order,
		perTimeout: perTimeout,
		logger:     logger.With("component", "auto_source"),
	}, nil
}

// FetchPins tries each configured source in order. An empty pin set counts
// as a failure so that the next source gets a chance. When every source
// fails the result is an *AggregateError.
func (s *AutoSource) FetchPins(ctx context.Context) (map[string][]pinstore.Pin, error) {
	attempts := make([]AttemptError, 0, len(s.order))

	for _, kind := range s.order {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: context cancelled: %w", ErrAllSourcesFailed, err)
		}

		factory, ok := s.factories[kind]
		if !ok {
			s.logger.Debug("skipping unconfigured source", "source", kind)
			continue
		}

		s.logger.Info("attempting pin source", "source", kind)
		pins, err := s.trySource(ctx, kind, factory)
		if err == nil {
			s.logger.Info("pins fetched", "source", kind, "domains", len(pins))
			return pins, nil
		}

		s.logger.Warn("pin source failed", "source", kind, "error", err)
		attempts = append(attempts, AttemptError{Kind: kind, Err: err})
	}

	if len(attempts) == 0 {
		return nil, ErrNoSourcesConfigured
	}
	return nil, &AggregateError{Attempts: attempts}
}

func (s *AutoSource) trySource(ctx context.Context, kind Kind, factory sourceFactory) (map[string][]pinstore.Pin, error) {
	src, err := factory()
	if err != nil {
		return nil, fmt.Errorf("create %s source: %w", kind, err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, s.perTimeout)
	defer cancel()

	pins, err := src.FetchPins(attemptCtx)
	if err != nil {
		return nil, err
	}
	if len(pins) == 0 {
		return nil, ErrEmptyPinSet
	}
	return pins, nil
}

// AutoFetch creates an AutoSource and fetches once.
func AutoFetch(ctx context.Context, cfg *AutoConfig) (map[string][]pinstore.Pin, error) {
	src, err := NewAutoSource(cfg)
	if err != nil {
		return nil, err
	}
	return src.FetchPins(ctx)
}
