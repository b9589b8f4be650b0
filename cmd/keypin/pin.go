// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-keypin/pkg/spkipin"
)

// pinCmd is the parent command for pin computation.
var pinCmd = &cobra.Command{
	Use:   "pin",
	Short: "Compute SPKI pins",
	Long:  "Tools for computing SPKI SHA-256 pins from certificates and public keys.",
}

var pinShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the pin of a certificate or public key",
	Long: `Compute the SPKI SHA-256 pin of a PEM-encoded certificate or public key.

The pin is printed in the sha256/<base64> form used in pin documents and
in hex for TLSA records. Keys whose algorithm is not supported are rejected.`,
	RunE: runPinShow,
}

func init() {
	pinCmd.AddCommand(pinShowCmd)

	pinShowCmd.Flags().String("cert-file", "", "path to PEM certificate or public key file (required)")
}

// pinInfo is the JSON form of a computed pin.
type pinInfo struct {
	Subject   string `json:"subject,omitempty"`
	Algorithm string `json:"algorithm"`
	Pin       string `json:"pin"`
	Hex       string `json:"hex"`
}

func runPinShow(cmd *cobra.Command, args []string) error {
	certFile, _ := cmd.Flags().GetString("cert-file")
	if certFile == "" {
		return fmt.Errorf("%w: --cert-file is required", ErrInvalidInput)
	}

	info, err := computeFilePin(certFile)
	if err != nil {
		return err
	}

	slog.Debug("computed pin", "path", certFile, "algorithm", info.Algorithm)

	return writeResult(info, func() string {
		var b strings.Builder
		if info.Subject != "" {
			fmt.Fprintf(&b, "Subject:   %s\n", info.Subject)
		}
		fmt.Fprintf(&b, "Algorithm: %s\n", info.Algorithm)
		fmt.Fprintf(&b, "Pin:       %s\n", info.Pin)
		fmt.Fprintf(&b, "Hex:       %s\n", info.Hex)
		return b.String()
	})
}

// computeFilePin reads the first PEM block of path and pins its key.
func computeFilePin(path string) (*pinInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrFileOperation, path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM data found in %s", ErrInvalidInput, path)
	}

	switch block.Type {
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing certificate: %w", ErrInvalidInput, err)
		}
		digest, alg, err := spkipin.ComputeCertificatePin(cert)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrKeyOperation, err)
		}
		return &pinInfo{
			Subject:   cert.Subject.String(),
			Algorithm: alg.String(),
			Pin:       digest.String(),
			Hex:       digest.Hex(),
		}, nil
	case "PUBLIC KEY":
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing public key: %w", ErrInvalidInput, err)
		}
		return publicKeyPin(pub)
	default:
		return nil, fmt.Errorf("%w: unsupported PEM block %q", ErrInvalidInput, block.Type)
	}
}

func publicKeyPin(pub crypto.PublicKey) (*pinInfo, error) {
	digest, alg, err := spkipin.ComputePin(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyOperation, err)
	}
	return &pinInfo{Algorithm: alg.String(), Pin: digest.String(), Hex: digest.Hex()}, nil
}

// loadCertFromPEMFile reads a PEM file and parses the first certificate.
func loadCertFromPEMFile(certFile string) (*x509.Certificate, error) {
	data, err := os.ReadFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrFileOperation, certFile, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM data found in %s", ErrInvalidInput, certFile)
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing certificate: %w", ErrInvalidInput, err)
	}

	return cert, nil
}
