// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinsource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
	"github.com/jeremyhahn/go-keypin/pkg/spkipin"
)

const (
	// DefaultHTTPSTimeout is the default HTTP request timeout.
	DefaultHTTPSTimeout = 10 * time.Second

	// httpsMaxResponseSize caps the pin document size (1 MB).
	httpsMaxResponseSize = 1 << 20
)

// HTTPSConfig configures an HTTPSSource.
type HTTPSConfig struct {
	// URL of the YAML pin document (e.g., "https://pins.example.com/pins.yaml").
	// Required.
	URL string

	// ServerPins pins the distribution server itself. When set, the
	// server's chain must carry one of these keys and the system trust
	// store is not consulted. When empty, normal CA verification applies.
	ServerPins []pinstore.Digest

	// Timeout is the HTTP request timeout. Default: 10s.
	Timeout time.Duration

	// Logger for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// HTTPSSource downloads a pin document over HTTPS.
type HTTPSSource struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewHTTPSSource creates an HTTPSSource.
func NewHTTPSSource(cfg *HTTPSConfig) (*HTTPSSource, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("%w: URL required", ErrInvalidConfig)
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid URL: %w", ErrInvalidConfig, err)
	}
	if parsed.Scheme != "https" || parsed.Hostname() == "" {
		return nil, fmt.Errorf("%w: https URL with host required", ErrInvalidConfig)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultHTTPSTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "https_source")

	transport := &http.Transport{}
	if len(cfg.ServerPins) > 0 {
		host := parsed.Hostname()
		pins := make([]pinstore.Pin, 0, len(cfg.ServerPins))
		for _, d := range cfg.ServerPins {
			pins = append(pins, pinstore.Pin{Digest: d})
		}
		store := pinstore.New()
		if err := store.Load(host, pins); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		validator, err := spkipin.NewValidator(&spkipin.ValidatorConfig{Pins: store})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		tlsCfg, err := spkipin.NewPinnedTLSConfig(&spkipin.TLSConfig{
			Validator: validator,
			Domain:    host,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		transport.TLSClientConfig = tlsCfg
	}

	return &HTTPSSource{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout, Transport: transport},
		logger: logger,
	}, nil
}

// FetchPins downloads and parses the pin document.
func (s *HTTPSSource) FetchPins(ctx context.Context) (map[string][]pinstore.Pin, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/yaml")

	s.logger.Debug("fetching pin document", "url", s.url)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, httpsMaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrFetchFailed, err)
	}
	if len(body) > httpsMaxResponseSize {
		return nil, fmt.Errorf("%w: pin document exceeds %d bytes", ErrFetchFailed, httpsMaxResponseSize)
	}

	pins, err := pinstore.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return pins, nil
}
