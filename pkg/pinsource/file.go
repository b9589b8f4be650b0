// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinsource

import (
	"context"
	"fmt"

	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
)

// FileConfig configures a FileSource.
type FileConfig struct {
	// Path is the YAML pin document. Required.
	Path string
}

// FileSource reads a pin document from disk on every fetch, so edits to
// the file are picked up by the next reload.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource.
func NewFileSource(cfg *FileConfig) (*FileSource, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, fmt.Errorf("%w: file path required", ErrInvalidConfig)
	}
	return &FileSource{path: cfg.Path}, nil
}

// FetchPins parses the file.
func (s *FileSource) FetchPins(ctx context.Context) (map[string][]pinstore.Pin, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pins, err := pinstore.LoadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return pins, nil
}
