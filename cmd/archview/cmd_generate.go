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
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/archview/services/archview/gate"
	"github.com/AleutianAI/archview/services/archview/review"
)

// runGenerate rebuilds the graph, rewrites the diagram artifacts, and
// evaluates the commit gate.
//
// The artifacts are written even when the gate blocks: the developer
// needs the regenerated diagrams on disk to review them. The graph
// snapshot is only persisted on a clean decision, so a blocked run
// keeps diffing against the last approved architecture.
func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := runPipeline(ctx, cfg, appLogger)
	if err != nil {
		return err
	}

	baseline, err := loadBaseline(cfg)
	if err != nil {
		return err
	}
	report := review.Analyze(baseline, result.Graph, review.Options{
		EntryPointPatterns: cfg.EntryPoints,
	})

	// Artifacts go to disk before the gate runs: Evaluate commits new
	// fingerprints on approval, and the tracking store must never get
	// ahead of the files it fingerprints.
	if err := writeArtifacts(cfg, result); err != nil {
		return err
	}

	controller := gate.NewController(
		gate.NewFileStore(cfg.Resolve(cfg.TrackingFile)),
		&gate.GitChangeSet{RepoDir: cfg.BaseDir},
		gate.ControllerOptions{
			ReviewDoc: cfg.ReviewDoc,
			Logger:    appLogger.Slog(),
		},
	)
	decision, err := controller.Evaluate(ctx, result.Fingerprints(), report)
	if err != nil {
		return err
	}

	if decision.State == gate.StateBlocked {
		renderer := review.NewRenderer(os.Stderr)
		if err := renderer.Render(decision.Report); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr,
			"\nDiagrams changed (%s). Review the regenerated artifacts, update %s, and stage it to approve.\n",
			joinKinds(decision.ChangedKinds), cfg.ReviewDoc)
		appLogger.Close()
		os.Exit(exitBlocked)
	}

	if err := writeSnapshot(cfg, result.Graph); err != nil {
		return err
	}

	if decision.Approved {
		appLogger.Info("diagram change approved",
			"kinds", decision.ChangedKinds,
			"review_doc", cfg.ReviewDoc)
	} else {
		appLogger.Info("gate clean", "modules", result.Graph.Len())
	}
	return nil
}

func joinKinds(kinds []string) string {
	switch len(kinds) {
	case 0:
		return "none"
	case 1:
		return kinds[0]
	default:
		out := kinds[0]
		for _, k := range kinds[1:] {
			out += ", " + k
		}
		return out
	}
}
