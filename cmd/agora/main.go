// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package main is the entry point for the Agora API server.
package main

import (
	"context"
	"fmt"
	"os"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
