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
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/archview/services/archview/detect"
)

// runCheck rebuilds the graph in memory and compares each rendered
// diagram against its on-disk artifact. Read-only: no files are
// written and the tracking state is never touched.
func runCheck(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := runPipeline(ctx, cfg, appLogger)
	if err != nil {
		return err
	}

	var stale []string
	for kind, payload := range result.Rendered {
		name := kind.String()
		artifact, ok := cfg.Artifacts[name]
		if !ok {
			continue
		}
		strategy, err := detect.StrategyForMode(artifact.Mode)
		if err != nil {
			return fmt.Errorf("artifact %s: %w", name, err)
		}
		changed, err := detect.NewDetector(strategy).Changed(cfg.Resolve(artifact.Path), payload)
		if err != nil {
			return fmt.Errorf("compare %s artifact: %w", name, err)
		}
		if changed {
			stale = append(stale, name)
		}
	}
	sort.Strings(stale)

	if len(stale) > 0 {
		for _, name := range stale {
			fmt.Fprintf(os.Stderr, "stale: %s (%s)\n", name, cfg.Artifacts[name].Path)
		}
		fmt.Fprintln(os.Stderr, "run `archview generate` to refresh the artifacts")
		appLogger.Close()
		os.Exit(exitBlocked)
	}

	fmt.Println("artifacts current")
	return nil
}
