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
	"path/filepath"
	"sort"
	"strings"

	"github.com/AleutianAI/archview/pkg/logging"
	"github.com/AleutianAI/archview/services/archview/ast"
	"github.com/AleutianAI/archview/services/archview/config"
	"github.com/AleutianAI/archview/services/archview/detect"
	"github.com/AleutianAI/archview/services/archview/diagram"
	"github.com/AleutianAI/archview/services/archview/gate"
	"github.com/AleutianAI/archview/services/archview/graph"
	"github.com/AleutianAI/archview/services/archview/scan"
)

// pipelineResult holds everything one extraction pass produces: the
// frozen graph, the rendered bytes per diagram kind, and the per-file
// warnings the scan surfaced.
type pipelineResult struct {
	Graph    *graph.Graph
	Rendered map[diagram.Kind][]byte
	Warnings []scan.Warning

	factDigest string
}

// newRegistry wires the language adapters.
//
// The Go parser picks up the target repository's module path from
// go.mod when one exists at the base directory, so intra-module Go
// imports resolve to graph edges instead of being dropped as external.
func newRegistry(cfg *config.Config) *ast.Registry {
	registry := ast.NewRegistry()
	registry.Register(ast.NewTypeScriptParser())
	registry.Register(ast.NewJavaScriptParser())

	var goOpts []ast.GoParserOption
	gomod := filepath.Join(cfg.BaseDir, "go.mod")
	if _, err := os.Stat(gomod); err == nil {
		goOpts = append(goOpts, ast.WithGoModFile(gomod))
	}
	registry.Register(ast.NewGoParser(goOpts...))
	return registry
}

// runPipeline scans the configured roots, builds the graph, and
// renders every diagram kind.
func runPipeline(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pipelineResult, error) {
	scanner := scan.NewScanner(newRegistry(cfg), scan.Options{
		BaseDir: cfg.BaseDir,
		Roots:   cfg.ScanRoots,
		Exclude: cfg.Exclude,
		Workers: cfg.Workers,
	})

	result, err := scanner.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	for _, w := range result.Warnings {
		logger.Warn("extraction warning", "file", w.Path, "problem", w.Message)
	}

	g, err := graph.NewBuilder(graph.WithLogger(logger.Slog())).Build(result.Facts)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	logger.Info("graph built",
		"modules", g.Len(),
		"files_scanned", len(result.Facts),
		"warnings", len(result.Warnings))

	rendered := make(map[diagram.Kind][]byte, len(diagram.Kinds()))
	for _, kind := range diagram.Kinds() {
		out, err := diagram.Serialize(kind, g)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", kind, err)
		}
		rendered[kind] = out
	}

	return &pipelineResult{
		Graph:      g,
		Rendered:   rendered,
		Warnings:   result.Warnings,
		factDigest: factDigest(result.Facts),
	}, nil
}

// Fingerprints returns the gate fingerprint for each diagram kind.
//
// Digest covers the rendered artifact bytes; FactDigest covers the
// extracted facts, so the gate can tell a diagram edit apart from a
// source change that happens to render identically.
func (r *pipelineResult) Fingerprints() map[string]gate.Fingerprint {
	fps := make(map[string]gate.Fingerprint, len(r.Rendered))
	for kind, payload := range r.Rendered {
		fps[kind.String()] = gate.Fingerprint{
			Digest:     detect.Digest(payload),
			FactDigest: r.factDigest,
		}
	}
	return fps
}

// factDigest hashes the per-file fact hashes in path order so the
// digest is stable across scan parallelism.
func factDigest(facts map[string]*ast.FileFacts) string {
	paths := make([]string, 0, len(facts))
	for p := range facts {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var sb strings.Builder
	for _, p := range paths {
		sb.WriteString(p)
		sb.WriteByte(':')
		sb.WriteString(facts[p].Hash)
		sb.WriteByte('\n')
	}
	return detect.Digest([]byte(sb.String()))
}

// loadBaseline reads the persisted graph snapshot if one exists.
//
// A missing snapshot is not an error: the first run of a fresh repo
// has no approved architecture to diff against yet.
func loadBaseline(cfg *config.Config) (*graph.Graph, error) {
	path := cfg.Resolve(cfg.SnapshotFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	g, err := graph.UnmarshalSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return g, nil
}

// writeArtifacts writes each rendered diagram to its configured path.
func writeArtifacts(cfg *config.Config, r *pipelineResult) error {
	for kind, payload := range r.Rendered {
		path := cfg.ArtifactPath(kind.String())
		if path == "" {
			continue
		}
		if err := writeFileAtomic(path, payload); err != nil {
			return fmt.Errorf("write %s artifact: %w", kind, err)
		}
	}
	return nil
}

// writeSnapshot persists the graph so later runs diff against the
// architecture as it stood at the last clean generate.
func writeSnapshot(cfg *config.Config, g *graph.Graph) error {
	data, err := graph.MarshalSnapshot(g)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	path := cfg.Resolve(cfg.SnapshotFile)
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// writeFileAtomic writes via a temp file and rename so a crash never
// leaves a half-written artifact for the change detector to misread.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
