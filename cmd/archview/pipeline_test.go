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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AleutianAI/archview/pkg/logging"
	"github.com/AleutianAI/archview/services/archview/config"
	"github.com/AleutianAI/archview/services/archview/diagram"
	"github.com/AleutianAI/archview/services/archview/review"
)

func writeSource(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	writeSource(t, dir, "src/base.ts", `
export class Base {
  id: string;
  render(): void {}
}
`)
	writeSource(t, dir, "src/derived.ts", `
import { Base } from "./base";

export class Derived extends Base {
  attach(): void {}
}
`)
	c := config.Default()
	c.BaseDir = dir
	return c
}

func quietLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger := logging.New(logging.Config{Quiet: true})
	t.Cleanup(func() { logger.Close() })
	return logger
}

func TestRunPipeline_RendersAllKinds(t *testing.T) {
	c := testConfig(t)
	result, err := runPipeline(context.Background(), c, quietLogger(t))
	if err != nil {
		t.Fatalf("runPipeline: %v", err)
	}

	if got := result.Graph.Len(); got != 2 {
		t.Fatalf("expected 2 modules, got %d", got)
	}
	deps := string(result.Rendered[diagram.KindDependencies])
	if !strings.HasPrefix(deps, "graph TD") {
		t.Errorf("dependencies diagram missing header:\n%s", deps)
	}
	if !strings.Contains(deps, "src/derived") {
		t.Errorf("dependencies diagram missing module:\n%s", deps)
	}
	hier := string(result.Rendered[diagram.KindHierarchy])
	if !strings.HasPrefix(hier, "classDiagram") {
		t.Errorf("hierarchy diagram missing header:\n%s", hier)
	}
	if !strings.Contains(hier, "Derived") {
		t.Errorf("hierarchy diagram missing type:\n%s", hier)
	}
}

func TestPipelineFingerprints_StableAcrossRuns(t *testing.T) {
	c := testConfig(t)
	logger := quietLogger(t)

	first, err := runPipeline(context.Background(), c, logger)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := runPipeline(context.Background(), c, logger)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	a, b := first.Fingerprints(), second.Fingerprints()
	if len(a) != len(diagram.Kinds()) {
		t.Fatalf("expected a fingerprint per kind, got %d", len(a))
	}
	for name, fp := range a {
		if len(fp.Digest) != 64 {
			t.Errorf("fingerprint %s: digest is not a sha256 hex string: %q", name, fp.Digest)
		}
		if b[name] != fp {
			t.Errorf("fingerprint %s differs across identical runs", name)
		}
	}
}

func TestWriteArtifacts_And_SnapshotRoundTrip(t *testing.T) {
	c := testConfig(t)
	result, err := runPipeline(context.Background(), c, quietLogger(t))
	if err != nil {
		t.Fatalf("runPipeline: %v", err)
	}

	if err := writeArtifacts(c, result); err != nil {
		t.Fatalf("writeArtifacts: %v", err)
	}
	for _, kind := range diagram.Kinds() {
		data, err := os.ReadFile(c.ArtifactPath(kind.String()))
		if err != nil {
			t.Fatalf("read %s artifact: %v", kind, err)
		}
		if string(data) != string(result.Rendered[kind]) {
			t.Errorf("%s artifact does not match rendered output", kind)
		}
	}

	if err := writeSnapshot(c, result.Graph); err != nil {
		t.Fatalf("writeSnapshot: %v", err)
	}
	baseline, err := loadBaseline(c)
	if err != nil {
		t.Fatalf("loadBaseline: %v", err)
	}
	if baseline == nil {
		t.Fatal("expected baseline after snapshot write")
	}
	if baseline.Len() != result.Graph.Len() {
		t.Fatalf("baseline has %d modules, want %d", baseline.Len(), result.Graph.Len())
	}

	// Dead-end detection is hygiene on the new graph, so the fixture's
	// unreferenced Derived export is reported even against an identical
	// baseline. Only the structural diff must be empty.
	report := review.Analyze(baseline, result.Graph, review.Options{})
	if report.HasStructuralChanges() {
		t.Errorf("diff of a graph against its own snapshot reported structural changes: %+v", report)
	}
	if len(report.AddedModules) != 0 || len(report.RemovedModules) != 0 || len(report.ModifiedModules) != 0 {
		t.Errorf("unexpected module deltas: %+v", report)
	}
	if len(report.DeadEnds) != 1 || report.DeadEnds[0].Name != "Derived" {
		t.Errorf("expected the unreferenced Derived export as the only dead end, got %+v", report.DeadEnds)
	}
}

func TestLoadBaseline_MissingSnapshotIsNil(t *testing.T) {
	c := config.Default()
	c.BaseDir = t.TempDir()

	baseline, err := loadBaseline(c)
	if err != nil {
		t.Fatalf("loadBaseline: %v", err)
	}
	if baseline != nil {
		t.Fatal("expected nil baseline for a fresh repository")
	}
}

func TestFactDigest_OrderIndependent(t *testing.T) {
	c := testConfig(t)
	logger := quietLogger(t)

	result, err := runPipeline(context.Background(), c, logger)
	if err != nil {
		t.Fatalf("runPipeline: %v", err)
	}
	again, err := runPipeline(context.Background(), c, logger)
	if err != nil {
		t.Fatalf("runPipeline: %v", err)
	}
	if result.factDigest != again.factDigest {
		t.Error("fact digest differs across identical scans")
	}
}
