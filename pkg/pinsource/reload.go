// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinsource

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
)

// Reload fetches a pin set from src and publishes it into store in one
// step. On any error the store keeps its current pins.
func Reload(ctx context.Context, src Source, store *pinstore.Store) error {
	if src == nil || store == nil {
		return fmt.Errorf("%w: source and store required", ErrInvalidConfig)
	}
	pins, err := src.FetchPins(ctx)
	if err != nil {
		return err
	}
	if err := store.Replace(pins); err != nil {
		return fmt.Errorf("%w: %w", ErrReloadFailed, err)
	}
	return nil
}

// Poll reloads store from src immediately and then every interval until
// ctx is done. Failed reloads are logged and the last good pin set stays
// published. Poll returns the first reload's error without polling when
// that reload fails, so callers can refuse to start without pins.
func Poll(ctx context.Context, src Source, store *pinstore.Store, interval time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "pin_poller")

	if err := Reload(ctx, src, store); err != nil {
		return err
	}
	logger.Info("pins loaded", "domains", len(store.Domains()))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := Reload(ctx, src, store); err != nil {
				logger.Warn("pin reload failed, keeping current pins", "error", err)
				continue
			}
			logger.Debug("pins reloaded", "domains", len(store.Domains()))
		}
	}
}
