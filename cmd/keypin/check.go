// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
	"github.com/jeremyhahn/go-keypin/pkg/spkipin"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a TLS endpoint against pins",
	Long: `Connect to a TLS endpoint, print the pin of every certificate in the
presented chain and, when --pins-file is given, validate the chain against
the pins of the domain. The command exits with status 3 when the endpoint
presents no pinned key.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("addr", "", "TLS endpoint address (host:port) (required)")
	checkCmd.Flags().String("domain", "", "pin domain (default: host part of --addr)")
	checkCmd.Flags().String("pins-file", "", "YAML pin document to validate against")
	checkCmd.Flags().Duration("grace", 0, "accept keys whose pin expired less than this long ago")
	checkCmd.Flags().Duration("timeout", spkipin.DefaultConnectTimeout, "connect and handshake timeout")
}

// checkResult is the JSON form of a check.
type checkResult struct {
	Address      string       `json:"address"`
	Domain       string       `json:"domain"`
	Certificates []certResult `json:"certificates"`
	Validated    bool         `json:"validated"`
	Accepted     bool         `json:"accepted,omitempty"`
	Reason       string       `json:"reason,omitempty"`
	Grace        bool         `json:"grace,omitempty"`
}

type certResult struct {
	Subject   string `json:"subject"`
	Algorithm string `json:"algorithm"`
	Pin       string `json:"pin,omitempty"`
	SPKIPin   string `json:"spki_sha256"`
	Error     string `json:"error,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	domain, _ := cmd.Flags().GetString("domain")
	pinsFile, _ := cmd.Flags().GetString("pins-file")
	grace, _ := cmd.Flags().GetDuration("grace")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if addr == "" {
		return fmt.Errorf("%w: --addr is required", ErrInvalidInput)
	}

	cfg := &spkipin.ClientConfig{
		ConnectTimeout: timeout,
		Logger:         slog.Default(),
	}
	if pinsFile != "" {
		store := pinstore.New()
		if err := store.LoadFile(pinsFile); err != nil {
			return fmt.Errorf("%w: %w", ErrFileOperation, err)
		}
		validator, err := spkipin.NewValidator(&spkipin.ValidatorConfig{
			Pins:   store,
			Expiry: spkipin.ExpiryPolicy{GracePeriod: grace},
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		cfg.Validator = validator
	}

	client, err := spkipin.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := client.Check(ctx, addr, domain)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCheckFailed, err)
	}

	result := newCheckResult(report, cfg.Validator != nil)
	if err := writeResult(result, result.text); err != nil {
		return err
	}

	if result.Validated && !result.Accepted {
		return fmt.Errorf("%w: %w", ErrPinRejected, report.Decision.Err())
	}
	if report.Decision.Grace {
		slog.Warn("key accepted through expired pin, rotate pins",
			"domain", report.Decision.Domain,
			"grace", grace.Round(time.Second))
	}
	return nil
}

func newCheckResult(report *spkipin.Report, validated bool) *checkResult {
	result := &checkResult{
		Address:      report.Address,
		Domain:       report.Domain,
		Certificates: make([]certResult, 0, len(report.Certificates)),
		Validated:    validated,
	}
	for _, c := range report.Certificates {
		cr := certResult{
			Subject:   c.Subject,
			Algorithm: c.Algorithm.String(),
			SPKIPin:   c.SPKIPin,
		}
		if c.Err != nil {
			cr.Error = c.Err.Error()
		} else {
			cr.Pin = c.Pin.String()
		}
		result.Certificates = append(result.Certificates, cr)
	}
	if validated {
		result.Accepted = report.Decision.Accepted
		result.Reason = report.Decision.Reason.String()
		result.Grace = report.Decision.Grace
	}
	return result
}

func (r *checkResult) text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Address: %s\n", r.Address)
	fmt.Fprintf(&b, "Domain:  %s\n", r.Domain)
	for i, c := range r.Certificates {
		fmt.Fprintf(&b, "\nCertificate %d: %s\n", i, c.Subject)
		fmt.Fprintf(&b, "  Algorithm:   %s\n", c.Algorithm)
		if c.Error != "" {
			fmt.Fprintf(&b, "  Pin:         (%s)\n", c.Error)
		} else {
			fmt.Fprintf(&b, "  Pin:         %s\n", c.Pin)
		}
		fmt.Fprintf(&b, "  SPKI SHA256: %s\n", c.SPKIPin)
	}
	if r.Validated {
		status := "REJECTED (" + r.Reason + ")"
		if r.Accepted {
			status = "ACCEPTED"
			if r.Grace {
				status += " (grace)"
			}
		}
		fmt.Fprintf(&b, "\nResult: %s\n", status)
	}
	return b.String()
}
