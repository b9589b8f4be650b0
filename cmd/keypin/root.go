// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	quiet      bool
	debug      bool
	format     string
	outputFile string
	logFormat  string
)

// logLevel controls the global slog level at runtime.
var logLevel = new(slog.LevelVar)

// exitFunc is the function called to exit the program.
// This can be overridden in tests to capture exit calls.
var exitFunc = os.Exit

// stdout is where command results are written when --output is empty.
var stdout io.Writer = os.Stdout

var rootCmd = &cobra.Command{
	Use:   "keypin",
	Short: "Public key pinning tool",
	Long: `keypin computes, publishes, distributes and checks SPKI SHA-256 public
key pins for TLS endpoints.

A pin is the SHA-256 digest of a key's DER SubjectPublicKeyInfo. keypin
supports RSA 2048/4096 and ECDSA P-256/P-384/P-521 keys.

Pin sources:
  file   - YAML pin document
  dane   - DNSSEC-signed TLSA records (usage 2/3, selector 1, SHA-256)
  noise  - pinsync server over the Noise_NK protocol
  https  - YAML pin document over (optionally pinned) HTTPS`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output (errors only)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&format, "format", "text", "output format (text|json)")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format (text|json)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(algorithmsCmd)
	rootCmd.AddCommand(pinCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(daneCmd)
	rootCmd.AddCommand(noiseCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
}

// initLogging configures the global slog logger based on CLI flags.
//
//	--debug: LevelDebug with source location
//	default: LevelInfo
//	--quiet: LevelError (only errors shown)
//
// --debug takes precedence over --quiet.
func initLogging() {
	switch {
	case debug:
		logLevel.Set(slog.LevelDebug)
	case quiet:
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: debug,
	}

	handlers := map[string]func(io.Writer, *slog.HandlerOptions) slog.Handler{
		"text": func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewTextHandler(w, o) },
		"json": func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewJSONHandler(w, o) },
	}

	factory, ok := handlers[logFormat]
	if !ok {
		factory = handlers["text"]
	}

	slog.SetDefault(slog.New(factory(os.Stderr, opts)))
}

// writeOutput writes data to the configured output file or stdout.
func writeOutput(data []byte) error {
	if outputFile != "" {
		if err := os.WriteFile(outputFile, data, 0600); err != nil {
			return fmt.Errorf("%w: %w", ErrFileOperation, err)
		}
		slog.Info("written to file", "path", outputFile, "bytes", len(data))
		return nil
	}
	if _, err := stdout.Write(data); err != nil {
		return fmt.Errorf("%w: %w", ErrFileOperation, err)
	}
	return nil
}

// writeResult writes v as indented JSON when --format=json, otherwise the
// output of text.
func writeResult(v any, text func() string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("%w: encoding json: %w", ErrInvalidInput, err)
		}
		return writeOutput(append(data, '\n'))
	case "text", "":
		return writeOutput([]byte(text()))
	default:
		return fmt.Errorf("%w: unknown --format %q", ErrInvalidInput, format)
	}
}
