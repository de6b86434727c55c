// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

// Package cmd provides the CLI entry point for guestshell. It handles flag
// parsing, configuration loading, error handling, and output handling.
package cmd
