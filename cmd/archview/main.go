// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command archview extracts a source graph from a repository, renders
// deterministic Mermaid diagrams from it, and gates commits on stale
// or unreviewed architecture artifacts.
//
// Usage:
//
//	archview generate            # regenerate diagrams and evaluate the gate
//	archview check               # report stale artifacts without writing
//	archview watch               # regenerate continuously on file changes
//
// Exit codes:
//
//	0 - artifacts current, gate clean
//	1 - configuration, scan, or I/O error
//	2 - artifacts stale, or diagrams changed without a staged review
package main

import (
	"fmt"
	"os"
)

// Exit codes for gate-aware tooling (pre-commit hooks, CI).
const (
	exitClean   = 0
	exitError   = 1
	exitBlocked = 2
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "archview: %v\n", err)
		os.Exit(exitError)
	}
}
