// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-keypin/pkg/keyalg"
)

var algorithmsCmd = &cobra.Command{
	Use:   "algorithms",
	Short: "List supported key algorithms",
	Long: `List the public key algorithms keypin can pin, with the key type and size
that identify each one and the length of the raw key body that follows the
fixed SubjectPublicKeyInfo header.`,
	RunE: runAlgorithms,
}

// algorithmInfo is the JSON form of one catalog entry.
type algorithmInfo struct {
	Name       string `json:"name"`
	KeyType    string `json:"key_type"`
	KeySize    int    `json:"key_size_bits"`
	HeaderSize int    `json:"header_bytes"`
	RawSize    int    `json:"raw_key_bytes"`
}

func runAlgorithms(cmd *cobra.Command, args []string) error {
	algs := keyalg.All()
	infos := make([]algorithmInfo, 0, len(algs))
	for _, alg := range algs {
		infos = append(infos, algorithmInfo{
			Name:       alg.String(),
			KeyType:    alg.KeyType().String(),
			KeySize:    alg.KeySize(),
			HeaderSize: len(alg.Header()),
			RawSize:    alg.RawKeySize(),
		})
	}

	return writeResult(infos, func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "%-12s %-5s %6s %7s %8s\n", "ALGORITHM", "TYPE", "BITS", "HEADER", "RAW KEY")
		for _, info := range infos {
			fmt.Fprintf(&b, "%-12s %-5s %6d %7d %8d\n",
				info.Name, info.KeyType, info.KeySize, info.HeaderSize, info.RawSize)
		}
		return b.String()
	})
}
