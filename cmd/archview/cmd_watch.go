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
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

// settleWindow lets a burst of editor writes finish before the
// pipeline reruns; the limiter then spaces out consecutive runs.
const settleWindow = 200 * time.Millisecond

// runWatch regenerates the diagram artifacts whenever a source file
// under the scan roots changes.
//
// Only the artifacts are rewritten. The tracking state and the graph
// snapshot are left alone so `archview generate` still makes the gate
// decision at commit time.
func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	roots := cfg.ScanRoots
	if len(roots) == 0 {
		roots = []string{"."}
	}
	for _, root := range roots {
		if err := watchRecursive(watcher, cfg.Resolve(root)); err != nil {
			return err
		}
	}

	extensions := make(map[string]bool)
	for _, ext := range newRegistry(cfg).Extensions() {
		extensions[ext] = true
	}

	regenerate := func() {
		result, err := runPipeline(ctx, cfg, appLogger)
		if err != nil {
			appLogger.Error("regeneration failed", "error", err)
			return
		}
		if err := writeArtifacts(cfg, result); err != nil {
			appLogger.Error("artifact write failed", "error", err)
			return
		}
		appLogger.Info("artifacts regenerated", "modules", result.Graph.Len())
	}

	regenerate()
	appLogger.Info("watching for changes", "roots", roots)

	dirty := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if watchIgnored(event.Name, cfg.Exclude) {
					continue
				}
				// New directories need their own watch before
				// events under them are visible.
				if event.Op.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						_ = watchRecursive(watcher, event.Name)
					}
				}
				if !extensions[strings.ToLower(filepath.Ext(event.Name))] {
					continue
				}
				select {
				case dirty <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				appLogger.Warn("watch error", "error", err)
			}
		}
	}()

	limiter := rate.NewLimiter(rate.Every(time.Second), 1)
	for {
		select {
		case <-ctx.Done():
			appLogger.Info("watch stopped")
			return nil
		case <-dirty:
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			select {
			case <-time.After(settleWindow):
			case <-ctx.Done():
				return nil
			}
			// Coalesce anything that arrived while settling.
			select {
			case <-dirty:
			default:
			}
			regenerate()
		}
	}
}

// watchRecursive adds a directory tree to the watcher, skipping
// excluded directories.
func watchRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if watchIgnored(path, cfg.Exclude) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// watchIgnored matches a path's base name against the configured
// exclusion globs.
func watchIgnored(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if base == pattern {
			return true
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
