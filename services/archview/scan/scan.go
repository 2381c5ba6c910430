// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scan discovers source files under the configured roots and
// runs extraction concurrently.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/archview/services/archview/ast"
)

// Options configures a scan pass.
type Options struct {
	// BaseDir is the directory module paths are made relative to.
	BaseDir string

	// Roots are the directories to walk, relative to BaseDir.
	// Empty means the base directory itself.
	Roots []string

	// Exclude are glob patterns matched against each file's canonical
	// path, its base name, and each path segment (so "node_modules"
	// skips the whole tree).
	Exclude []string

	// Workers bounds parallel extraction. Zero means NumCPU.
	Workers int
}

// Warning is a non-fatal per-file problem.
type Warning struct {
	Path    string
	Message string
}

// Result is the outcome of one scan pass.
type Result struct {
	// Facts holds extraction results keyed by canonical slash path
	// relative to BaseDir. Merge order never affects the final graph:
	// the graph builder sorts everything it emits.
	Facts map[string]*ast.FileFacts

	// Warnings lists files that were skipped or parsed partially.
	Warnings []Warning
}

// Scanner walks scan roots and extracts facts with the registered
// parsers.
//
// Thread Safety: safe for concurrent use; each Scan call owns its
// private state.
type Scanner struct {
	registry *ast.Registry
	opts     Options
}

// NewScanner creates a Scanner.
func NewScanner(registry *ast.Registry, opts Options) *Scanner {
	if opts.BaseDir == "" {
		opts.BaseDir = "."
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Scanner{registry: registry, opts: opts}
}

// Scan walks the roots and parses every eligible file.
//
// Per-file parse failures downgrade to warnings; an unreadable root is
// fatal because the resulting fact set could not be trusted.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	files, err := s.discover()
	if err != nil {
		return nil, err
	}

	result := &Result{Facts: make(map[string]*ast.FileFacts, len(files))}
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for _, relPath := range files {
		relPath := relPath
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			parser, ok := s.registry.GetByExtension(path.Ext(relPath))
			if !ok {
				return nil
			}

			content, err := os.ReadFile(filepath.Join(s.opts.BaseDir, filepath.FromSlash(relPath)))
			if err != nil {
				mu.Lock()
				result.Warnings = append(result.Warnings, Warning{Path: relPath, Message: fmt.Sprintf("read: %v", err)})
				mu.Unlock()
				return nil
			}

			facts, err := parser.Parse(gCtx, content, relPath)
			if err != nil {
				mu.Lock()
				result.Warnings = append(result.Warnings, Warning{Path: relPath, Message: fmt.Sprintf("parse: %v", err)})
				mu.Unlock()
				return nil
			}

			mu.Lock()
			if facts.HasErrors() {
				result.Warnings = append(result.Warnings, Warning{
					Path:    relPath,
					Message: fmt.Sprintf("partial extraction: %s", strings.Join(facts.Errors, "; ")),
				})
			}
			result.Facts[relPath] = facts
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(result.Warnings, func(i, j int) bool {
		return result.Warnings[i].Path < result.Warnings[j].Path
	})
	return result, nil
}

// discover walks the roots and returns canonical relative paths of
// files with a registered extension, sorted.
func (s *Scanner) discover() ([]string, error) {
	roots := s.opts.Roots
	if len(roots) == 0 {
		roots = []string{"."}
	}

	known := make(map[string]bool)
	for _, ext := range s.registry.Extensions() {
		known[ext] = true
	}

	seen := make(map[string]bool)
	var files []string

	for _, root := range roots {
		rootDir := filepath.Join(s.opts.BaseDir, filepath.FromSlash(root))
		if _, err := os.Stat(rootDir); err != nil {
			return nil, fmt.Errorf("scan root %s: %w", root, err)
		}

		err := filepath.WalkDir(rootDir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return fmt.Errorf("walk %s: %w", p, err)
			}

			rel, relErr := filepath.Rel(s.opts.BaseDir, p)
			if relErr != nil {
				return relErr
			}
			canonical := filepath.ToSlash(rel)

			if d.IsDir() {
				if canonical != "." && s.excluded(canonical) {
					return fs.SkipDir
				}
				return nil
			}
			if !known[path.Ext(canonical)] || s.excluded(canonical) || seen[canonical] {
				return nil
			}
			seen[canonical] = true
			files = append(files, canonical)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

// excluded reports whether any exclude pattern matches the path, its
// base name, or one of its segments.
func (s *Scanner) excluded(canonical string) bool {
	base := path.Base(canonical)
	for _, pattern := range s.opts.Exclude {
		if ok, _ := path.Match(pattern, canonical); ok {
			return true
		}
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
		for _, seg := range strings.Split(canonical, "/") {
			if ok, _ := path.Match(pattern, seg); ok {
				return true
			}
		}
	}
	return false
}
