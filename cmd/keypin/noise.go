// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-keypin/pkg/noiseproto"
)

// defaultNoiseKeyFile is the default path for generated Noise static keys.
const defaultNoiseKeyFile = "noise-static.key"

// noiseCmd is the parent command for Noise protocol operations.
var noiseCmd = &cobra.Command{
	Use:   "noise",
	Short: "Noise protocol key management",
	Long: `Tools for managing the Curve25519 static key of a pinsync server.

Clients fetch pins over Noise_NK, which authenticates the server by its
static public key. Distribute the public key printed by these commands
to clients out of band.`,
}

var noiseGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a Noise static keypair",
	Long: `Generate a new Curve25519 static keypair. The private key is written
hex-encoded to --key-file with owner-only permissions and the public key
is printed.`,
	RunE: runNoiseGenerate,
}

var noiseShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the public key from a key file",
	Long:  "Read a hex-encoded Noise static private key and print its Curve25519 public key.",
	RunE:  runNoiseShow,
}

func init() {
	noiseCmd.AddCommand(noiseGenerateCmd)
	noiseCmd.AddCommand(noiseShowCmd)

	noiseGenerateCmd.Flags().String("key-file", defaultNoiseKeyFile, "output file path for the private key")

	noiseShowCmd.Flags().String("key-file", "", "path to hex-encoded private key file (required)")
}

func runNoiseGenerate(cmd *cobra.Command, args []string) error {
	keyFile, _ := cmd.Flags().GetString("key-file")

	key, err := noiseproto.GenerateStaticKey()
	if err != nil {
		return fmt.Errorf("%w: generating keypair: %w", ErrKeyOperation, err)
	}
	defer noiseproto.WipeDHKey(key)

	if err := noiseproto.WriteStaticKeyFile(keyFile, key); err != nil {
		return fmt.Errorf("%w: %w", ErrFileOperation, err)
	}

	slog.Info("private key written", "path", keyFile)
	return writeOutput([]byte(fmt.Sprintf("Public key: %s\n", hex.EncodeToString(key.Public))))
}

func runNoiseShow(cmd *cobra.Command, args []string) error {
	keyFile, _ := cmd.Flags().GetString("key-file")
	if keyFile == "" {
		return fmt.Errorf("%w: --key-file is required", ErrInvalidInput)
	}

	key, err := noiseproto.ReadStaticKeyFile(keyFile)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKeyOperation, err)
	}
	defer noiseproto.WipeDHKey(key)

	return writeOutput([]byte(fmt.Sprintf("Public key: %s\n", hex.EncodeToString(key.Public))))
}
