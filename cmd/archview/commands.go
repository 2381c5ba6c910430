// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"github.com/spf13/cobra"

	"github.com/AleutianAI/archview/pkg/logging"
	"github.com/AleutianAI/archview/services/archview/config"
)

// --- Global Command Variables ---
var (
	configPath string
	logLevel   string
	logJSON    bool

	// cfg and appLogger are populated by PersistentPreRunE before any
	// subcommand runs.
	cfg       *config.Config
	appLogger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "archview",
		Short: "Source graph extraction and architecture change detection",
		Long: `Archview parses TypeScript, JavaScript, and Go sources into a
language-agnostic fact model, builds an immutable module and type graph,
and renders it as deterministic Mermaid diagrams. When a diagram drifts
from its committed artifact, the gate blocks the commit until a review
document is staged alongside the change.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}

			level := cfg.Log.Level
			if logLevel != "" {
				level = logLevel
			}
			appLogger = logging.New(logging.Config{
				Level:  logging.ParseLevel(level),
				LogDir: cfg.Log.Dir,
				JSON:   cfg.Log.JSON || logJSON,
			})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if appLogger != nil {
				_ = appLogger.Close()
			}
		},
	}

	generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Regenerate architecture diagrams and evaluate the commit gate",
		Long: `Scans the configured roots, rebuilds the source graph, rewrites the
Mermaid artifacts, and evaluates the gate against the tracked
fingerprints. When the diagrams changed and the review document is not
staged, the command prints the structural diff and exits 2.

Intended as a pre-commit hook:

  archview generate || exit $?`,
		Args: cobra.NoArgs,
		RunE: runGenerate, // Defined in cmd_generate.go
	}

	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Report stale diagram artifacts without writing anything",
		Long: `Rebuilds the source graph in memory and compares each rendered
diagram against its on-disk artifact using the artifact's configured
comparison mode. Nothing is written and the gate state is not touched.
Exits 2 when any artifact is stale.`,
		Args: cobra.NoArgs,
		RunE: runCheck, // Defined in cmd_check.go
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Regenerate diagrams continuously as sources change",
		Long: `Watches the scan roots for file changes and regenerates the diagram
artifacts after each burst of edits. The gate is not evaluated; watch
is a development aid, not a commit hook. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: runWatch, // Defined in cmd_watch.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to archview.yaml (default: ./archview.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override the configured log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false,
		"Emit console logs as JSON lines")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(watchCmd)
}
