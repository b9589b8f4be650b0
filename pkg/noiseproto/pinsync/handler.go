// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinsync

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/jeremyhahn/go-keypin/pkg/noiseproto"
	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
)

// Method names.
const (
	// MethodGetPins returns the pin set, optionally filtered by domain.
	MethodGetPins = "get_pins"

	// MethodListDomains returns the pinned domains.
	MethodListDomains = "list_domains"
)

// Request is the JSON request of one exchange.
type Request struct {
	// Method identifies the operation.
	Method string `json:"method"`

	// Domains restricts get_pins to these domains. Empty means all.
	Domains []string `json:"domains,omitempty"`
}

// Response is the JSON response of one exchange.
type Response struct {
	// Document is the pin set as a YAML pin document (get_pins).
	Document string `json:"document,omitempty"`

	// Domains lists the pinned domains (list_domains).
	Domains []string `json:"domains,omitempty"`

	// Error is set when the request failed.
	Error string `json:"error,omitempty"`
}

type handlerFunc func(req *Request) (*Response, error)

// Handler dispatches requests by method name.
type Handler struct {
	pins     PinProvider
	handlers map[string]handlerFunc
	logger   *slog.Logger
}

// NewHandler creates a Handler serving pins. pins may be nil, in which
// case requests fail with ErrPinsNotConfigured.
func NewHandler(pins PinProvider, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{pins: pins, logger: logger}
	h.handlers = map[string]handlerFunc{
		MethodGetPins:     h.handleGetPins,
		MethodListDomains: h.handleListDomains,
	}
	return h
}

// Handle dispatches req.
func (h *Handler) Handle(req *Request) (*Response, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}
	handler, ok := h.handlers[req.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, req.Method)
	}
	return handler(req)
}

func (h *Handler) handleGetPins(req *Request) (*Response, error) {
	if h.pins == nil {
		return nil, ErrPinsNotConfigured
	}
	set := filterDomains(h.pins.Snapshot(), req.Domains)

	doc, err := pinstore.Marshal(set)
	if err != nil {
		return nil, err
	}
	resp := &Response{Document: string(doc)}
	if _, err := encodeResponse(resp); err != nil {
		return nil, err
	}

	h.logger.Debug("serving pins", "domains", len(set))
	return resp, nil
}

func (h *Handler) handleListDomains(_ *Request) (*Response, error) {
	if h.pins == nil {
		return nil, ErrPinsNotConfigured
	}
	domains := slices.Sorted(maps.Keys(h.pins.Snapshot()))
	if domains == nil {
		domains = []string{}
	}
	return &Response{Domains: domains}, nil
}

// encodeResponse marshals resp and checks that the envelope fits in one
// Noise transport message.
func encodeResponse(resp *Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	if len(data) > noiseproto.MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrResponseTooLarge, len(data))
	}
	return data, nil
}

// filterDomains keeps the requested domains. Unknown domains are omitted.
func filterDomains(set map[string][]pinstore.Pin, domains []string) map[string][]pinstore.Pin {
	if len(domains) == 0 {
		return set
	}
	filtered := make(map[string][]pinstore.Pin, len(domains))
	for _, d := range domains {
		name := pinstore.NormalizeDomain(d)
		if pins, ok := set[name]; ok {
			filtered[name] = pins
		}
	}
	return filtered
}
