// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package review compares two graph snapshots and reports the
// structural changes a reviewer should look at.
package review

import (
	"path"
	"sort"
	"strings"

	"github.com/AleutianAI/archview/services/archview/graph"
)

// Field names recorded on a modified module delta.
const (
	FieldExports = "exports"
	FieldImports = "imports"
	FieldTypes   = "types"
)

// Member kind labels recorded on a type delta.
const (
	DeltaProperty = "property"
	DeltaMethod   = "method"
	DeltaParent   = "parent"
)

// Options configures the analyzer.
type Options struct {
	// EntryPointPatterns are path or name globs for symbols that are
	// expected to have no in-repo importers (main files, CLI
	// entrypoints, public API indexes). Matching symbols are excluded
	// from dead-end detection.
	EntryPointPatterns []string
}

// ModuleDelta describes one modified module.
type ModuleDelta struct {
	// Path is the module's canonical path.
	Path string

	// Fields names what changed: exports, imports, types.
	Fields []string
}

// MemberDelta is one labeled change on a type entity.
type MemberDelta struct {
	// Kind is property, method, or parent.
	Kind string

	// Added and Removed are the member names involved. A parent change
	// records the old label in Removed and the new label in Added.
	Added   []string
	Removed []string
}

// TypeDelta describes one modified type entity.
type TypeDelta struct {
	// Key is the entity's canonical identity (module::name).
	Key string

	Deltas []MemberDelta
}

// DeadEnd is an exported symbol nothing in the repo imports.
type DeadEnd struct {
	ModulePath string
	Name       string
}

// Report is the analyzer output, consumed by the gate controller and
// rendered for humans when a commit is blocked.
//
// All slices are canonically ordered so the report text is stable for
// a given pair of graphs.
type Report struct {
	AddedModules    []string
	RemovedModules  []string
	ModifiedModules []ModuleDelta

	AddedTypes    []string
	RemovedTypes  []string
	ModifiedTypes []TypeDelta

	// Consumers maps each changed module path to the modules that
	// import it in the new graph, and each changed type key to the
	// entities that inherit from it.
	Consumers map[string][]string

	DeadEnds []DeadEnd
	Orphans  []string
}

// Empty reports whether the analyzer found no structural changes and
// no hygiene findings.
func (r *Report) Empty() bool {
	return len(r.AddedModules) == 0 && len(r.RemovedModules) == 0 &&
		len(r.ModifiedModules) == 0 && len(r.AddedTypes) == 0 &&
		len(r.RemovedTypes) == 0 && len(r.ModifiedTypes) == 0 &&
		len(r.DeadEnds) == 0 && len(r.Orphans) == 0
}

// HasStructuralChanges reports whether any module or type differs
// between the graphs (hygiene findings alone do not count).
func (r *Report) HasStructuralChanges() bool {
	return len(r.AddedModules) > 0 || len(r.RemovedModules) > 0 ||
		len(r.ModifiedModules) > 0 || len(r.AddedTypes) > 0 ||
		len(r.RemovedTypes) > 0 || len(r.ModifiedTypes) > 0
}

// Analyze diffs the old graph against the new one.
//
// Description:
//
//	Module diff is a set difference on canonical paths; a module
//	present in both graphs is modified when its export set, resolved
//	import set, or owned type contents differ. Types are matched by
//	(name, module) and diffed member-by-member. Consumer analysis,
//	dead-end detection, and orphan detection operate on the new graph
//	only.
//
// Inputs:
//
//	old  - Previous snapshot. May be nil when no graph existed before.
//	new  - Current snapshot. Required.
//	opts - Entry-point exclusions for dead-end detection.
func Analyze(old, new *graph.Graph, opts Options) *Report {
	report := &Report{Consumers: make(map[string][]string)}

	oldModules := modulesByPath(old)
	newModules := modulesByPath(new)

	for p, m := range newModules {
		if prev, ok := oldModules[p]; ok {
			if delta := diffModule(old, new, prev, m); delta != nil {
				report.ModifiedModules = append(report.ModifiedModules, *delta)
			}
		} else {
			report.AddedModules = append(report.AddedModules, p)
		}
	}
	for p := range oldModules {
		if _, ok := newModules[p]; !ok {
			report.RemovedModules = append(report.RemovedModules, p)
		}
	}

	oldTypes := typesByKey(old)
	newTypes := typesByKey(new)

	for k, t := range newTypes {
		if prev, ok := oldTypes[k]; ok {
			if delta := diffType(prev, t); delta != nil {
				report.ModifiedTypes = append(report.ModifiedTypes, *delta)
			}
		} else {
			report.AddedTypes = append(report.AddedTypes, k)
		}
	}
	for k := range oldTypes {
		if _, ok := newTypes[k]; !ok {
			report.RemovedTypes = append(report.RemovedTypes, k)
		}
	}

	sort.Strings(report.AddedModules)
	sort.Strings(report.RemovedModules)
	sort.Strings(report.AddedTypes)
	sort.Strings(report.RemovedTypes)
	sort.Slice(report.ModifiedModules, func(i, j int) bool {
		return report.ModifiedModules[i].Path < report.ModifiedModules[j].Path
	})
	sort.Slice(report.ModifiedTypes, func(i, j int) bool {
		return report.ModifiedTypes[i].Key < report.ModifiedTypes[j].Key
	})

	collectConsumers(new, report)
	report.DeadEnds = findDeadEnds(new, opts)
	report.Orphans = findOrphans(new)

	return report
}

func modulesByPath(g *graph.Graph) map[string]*graph.Module {
	out := make(map[string]*graph.Module)
	if g == nil {
		return out
	}
	for _, m := range g.Modules() {
		out[m.Path] = m
	}
	return out
}

func typesByKey(g *graph.Graph) map[string]*graph.TypeEntity {
	out := make(map[string]*graph.TypeEntity)
	if g == nil {
		return out
	}
	for _, t := range g.Types() {
		out[t.Key()] = t
	}
	return out
}

// diffModule returns nil when the module is unchanged.
func diffModule(oldG, newG *graph.Graph, old, new *graph.Module) *ModuleDelta {
	var fields []string

	if !equalStrings(old.Exports, new.Exports) {
		fields = append(fields, FieldExports)
	}
	if !equalStrings(old.ImportEdges, new.ImportEdges) {
		fields = append(fields, FieldImports)
	}
	if ownedTypeSignature(oldG, old.Path) != ownedTypeSignature(newG, new.Path) {
		fields = append(fields, FieldTypes)
	}

	if len(fields) == 0 {
		return nil
	}
	return &ModuleDelta{Path: new.Path, Fields: fields}
}

// ownedTypeSignature folds a module's type entities into one
// comparable string.
func ownedTypeSignature(g *graph.Graph, modulePath string) string {
	if g == nil {
		return ""
	}
	var parts []string
	for _, t := range g.Types() {
		if t.ModulePath != modulePath {
			continue
		}
		parent := t.ParentLabel
		if t.Parent != nil {
			parent = t.Parent.Key()
		}
		parts = append(parts, strings.Join([]string{
			t.Name,
			parent,
			strings.Join(t.Properties, ","),
			strings.Join(t.Methods, ","),
		}, "|"))
	}
	// Types() is already key-sorted; parts therefore compare stably.
	return strings.Join(parts, ";")
}

// diffType returns nil when the entity is unchanged.
func diffType(old, new *graph.TypeEntity) *TypeDelta {
	var deltas []MemberDelta

	if added, removed := diffSets(old.Properties, new.Properties); len(added)+len(removed) > 0 {
		deltas = append(deltas, MemberDelta{Kind: DeltaProperty, Added: added, Removed: removed})
	}
	if added, removed := diffSets(old.Methods, new.Methods); len(added)+len(removed) > 0 {
		deltas = append(deltas, MemberDelta{Kind: DeltaMethod, Added: added, Removed: removed})
	}

	oldParent := parentLabel(old)
	newParent := parentLabel(new)
	if oldParent != newParent {
		delta := MemberDelta{Kind: DeltaParent}
		if oldParent != "" {
			delta.Removed = []string{oldParent}
		}
		if newParent != "" {
			delta.Added = []string{newParent}
		}
		deltas = append(deltas, delta)
	}

	if len(deltas) == 0 {
		return nil
	}
	return &TypeDelta{Key: new.Key(), Deltas: deltas}
}

func parentLabel(t *graph.TypeEntity) string {
	if t.Parent != nil {
		return t.Parent.Key()
	}
	return t.ParentLabel
}

// collectConsumers records blast radius for every changed module and
// type: who imports it, who inherits from it.
func collectConsumers(g *graph.Graph, report *Report) {
	for _, p := range report.AddedModules {
		addConsumers(report, p, g.Consumers(p))
	}
	for _, d := range report.ModifiedModules {
		addConsumers(report, d.Path, g.Consumers(d.Path))
	}
	for _, k := range report.AddedTypes {
		addConsumers(report, k, subclassKeys(g, k))
	}
	for _, d := range report.ModifiedTypes {
		addConsumers(report, d.Key, subclassKeys(g, d.Key))
	}
}

func addConsumers(report *Report, key string, consumers []string) {
	if len(consumers) == 0 {
		return
	}
	sort.Strings(consumers)
	report.Consumers[key] = consumers
}

func subclassKeys(g *graph.Graph, typeKey string) []string {
	var out []string
	for _, ref := range g.Subclasses(typeKey) {
		out = append(out, ref.Key())
	}
	return out
}

// findDeadEnds returns exported symbols with zero incoming references.
//
// A named import references exactly the names it binds; imports that
// bind no names (namespace, default, Go package imports) are treated
// as referencing every export of their target.
func findDeadEnds(g *graph.Graph, opts Options) []DeadEnd {
	type symbol struct{ module, name string }
	referenced := make(map[symbol]bool)
	wholly := make(map[string]bool) // module -> all exports referenced

	for _, m := range g.Modules() {
		for _, imp := range m.Facts.Imports {
			for _, target := range m.Resolved[imp.Path] {
				if len(imp.Names) == 0 {
					wholly[target] = true
					continue
				}
				for _, name := range imp.Names {
					referenced[symbol{module: target, name: name}] = true
				}
			}
		}
	}

	var out []DeadEnd
	for _, m := range g.Modules() {
		if wholly[m.Path] {
			continue
		}
		for _, name := range m.Exports {
			if referenced[symbol{module: m.Path, name: name}] {
				continue
			}
			if matchesEntryPoint(opts.EntryPointPatterns, m.Path, name) {
				continue
			}
			out = append(out, DeadEnd{ModulePath: m.Path, Name: name})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ModulePath != out[j].ModulePath {
			return out[i].ModulePath < out[j].ModulePath
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// matchesEntryPoint reports whether a pattern excludes the symbol.
// Patterns match the module path, its base name, or the symbol name.
func matchesEntryPoint(patterns []string, modulePath, name string) bool {
	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, modulePath); ok {
			return true
		}
		if ok, _ := path.Match(pattern, path.Base(modulePath)); ok {
			return true
		}
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
		// Directory prefix form: "cmd/..." excludes everything under cmd.
		if strings.HasSuffix(pattern, "/...") &&
			strings.HasPrefix(modulePath, strings.TrimSuffix(pattern, "...")) {
			return true
		}
	}
	return false
}

// findOrphans returns modules with no imports and no exports.
func findOrphans(g *graph.Graph) []string {
	var out []string
	for _, m := range g.Modules() {
		if len(m.ImportEdges) == 0 && len(m.Exports) == 0 {
			out = append(out, m.Path)
		}
	}
	sort.Strings(out)
	return out
}

// diffSets returns elements only in new (added) and only in old
// (removed). Inputs are sorted; outputs are sorted.
func diffSets(old, new []string) (added, removed []string) {
	oldSet := make(map[string]bool, len(old))
	for _, s := range old {
		oldSet[s] = true
	}
	newSet := make(map[string]bool, len(new))
	for _, s := range new {
		newSet[s] = true
		if !oldSet[s] {
			added = append(added, s)
		}
	}
	for _, s := range old {
		if !newSet[s] {
			removed = append(removed, s)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
