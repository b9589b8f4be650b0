// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import "errors"

// Exit codes for the CLI.
const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess = 0

	// ExitFailed indicates a fetch, check or serve operation failed.
	ExitFailed = 1

	// ExitConfigError indicates a configuration or input validation error.
	ExitConfigError = 2

	// ExitRejected indicates the checked endpoint's key is not pinned.
	ExitRejected = 3
)

// Sentinel errors for CLI operations.
var (
	// ErrInvalidInput is returned when required input parameters are missing or invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrFetchFailed is returned when pins cannot be fetched.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrCheckFailed is returned when an endpoint cannot be probed.
	ErrCheckFailed = errors.New("check failed")

	// ErrPinRejected is returned when an endpoint presents no pinned key.
	ErrPinRejected = errors.New("pin rejected")

	// ErrKeyOperation is returned when a key generation or decoding operation fails.
	ErrKeyOperation = errors.New("key operation failed")

	// ErrFileOperation is returned when a file read or write operation fails.
	ErrFileOperation = errors.New("file operation failed")
)

var exitCodes = map[error]int{
	ErrInvalidInput: ExitConfigError,
	ErrPinRejected:  ExitRejected,
}

// exitCode maps an error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	for sentinel, code := range exitCodes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ExitFailed
}
