// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph builds immutable module and type-hierarchy graphs from
// extracted source facts.
package graph

import (
	"fmt"
	"path"
	"sort"

	"github.com/AleutianAI/archview/services/archview/ast"
)

// Module is one source file in the dependency graph.
//
// Description:
//
//	A module's identity is its canonical slash path relative to the
//	scan base directory. ImportEdges holds only targets that resolved
//	to known modules; every import that could not be resolved (bare
//	specifiers, externals, missing files) lands in DroppedImports so
//	the graph stays closed over its own module set.
type Module struct {
	// Path is the canonical slash path relative to the base directory.
	Path string

	// Facts are the extraction results this module was built from.
	Facts *ast.FileFacts

	// ImportEdges are resolved dependency targets, sorted and deduped.
	ImportEdges []string

	// Resolved maps each import specifier to the module paths it
	// resolved to (sorted). Specifiers that resolved to nothing are
	// absent.
	Resolved map[string][]string

	// DroppedImports are specifiers that did not resolve to a known
	// module, sorted and deduped.
	DroppedImports []string

	// Exports are the exported symbol names, sorted.
	Exports []string
}

// Dir returns the module's containing directory ("." for root files).
func (m *Module) Dir() string {
	return path.Dir(m.Path)
}

// TypeRef identifies a type entity by its owning module and name.
type TypeRef struct {
	ModulePath string
	Name       string
}

// Key returns the canonical identity of the referenced type.
func (r TypeRef) Key() string {
	return r.ModulePath + "::" + r.Name
}

// TypeEntity is one declared class, interface, or struct in the
// hierarchy graph.
//
// An entity carries at most one parent edge. When the declared parent
// could not be resolved to a known entity, Parent is nil and
// ParentLabel retains the declared name for display.
type TypeEntity struct {
	// Name is the declared type name.
	Name string

	// ModulePath is the canonical path of the declaring module.
	ModulePath string

	// Kind is the declaration kind (class, interface, struct).
	Kind ast.TypeKind

	// Parent is the resolved parent entity, or nil.
	Parent *TypeRef

	// ParentLabel is the declared parent name, set whether or not the
	// parent resolved. Empty when the type declares no parent.
	ParentLabel string

	// Labels are additional declared relationships kept for display
	// only (implements clauses, extra embedded types).
	Labels []string

	// Properties are member property names, sorted.
	Properties []string

	// Methods are member method names, sorted.
	Methods []string

	// Exported reports whether the declaration is visible outside its
	// module.
	Exported bool
}

// Key returns the canonical identity of the entity.
func (t *TypeEntity) Key() string {
	return TypeRef{ModulePath: t.ModulePath, Name: t.Name}.Key()
}

// ImportEdge is one resolved module dependency.
type ImportEdge struct {
	Source string
	Target string
}

// InheritEdge is one resolved parent relationship between type entities.
type InheritEdge struct {
	Child  TypeRef
	Parent TypeRef
}

// Graph is an immutable snapshot of the module and type graphs.
//
// Description:
//
//	A Graph is produced by Builder.Build and never mutated afterwards.
//	All accessors return sorted copies, so two graphs built from the
//	same fact set compare equal element-by-element regardless of the
//	order facts were collected in.
//
// Thread Safety:
//
//	Safe for concurrent reads. There are no mutating methods.
type Graph struct {
	modules map[string]*Module
	types   map[string]*TypeEntity

	// reverse indexes, computed at freeze time
	consumers  map[string][]string
	subclasses map[string][]TypeRef

	modulePaths []string
	typeKeys    []string
}

// Modules returns all modules sorted by path.
func (g *Graph) Modules() []*Module {
	out := make([]*Module, 0, len(g.modulePaths))
	for _, p := range g.modulePaths {
		out = append(out, g.modules[p])
	}
	return out
}

// Module returns the module at the given canonical path.
func (g *Graph) Module(path string) (*Module, bool) {
	m, ok := g.modules[path]
	return m, ok
}

// Types returns all type entities sorted by key.
func (g *Graph) Types() []*TypeEntity {
	out := make([]*TypeEntity, 0, len(g.typeKeys))
	for _, k := range g.typeKeys {
		out = append(out, g.types[k])
	}
	return out
}

// Type returns the entity with the given key.
func (g *Graph) Type(key string) (*TypeEntity, bool) {
	t, ok := g.types[key]
	return t, ok
}

// ImportEdges returns all resolved dependencies sorted by
// (source, target).
func (g *Graph) ImportEdges() []ImportEdge {
	var out []ImportEdge
	for _, p := range g.modulePaths {
		m := g.modules[p]
		for _, target := range m.ImportEdges {
			out = append(out, ImportEdge{Source: m.Path, Target: target})
		}
	}
	return out
}

// InheritEdges returns all resolved parent relationships sorted by
// (child, parent).
func (g *Graph) InheritEdges() []InheritEdge {
	var out []InheritEdge
	for _, k := range g.typeKeys {
		t := g.types[k]
		if t.Parent != nil {
			out = append(out, InheritEdge{
				Child:  TypeRef{ModulePath: t.ModulePath, Name: t.Name},
				Parent: *t.Parent,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Child.Key() != out[j].Child.Key() {
			return out[i].Child.Key() < out[j].Child.Key()
		}
		return out[i].Parent.Key() < out[j].Parent.Key()
	})
	return out
}

// Consumers returns the paths of modules that import the given module,
// sorted.
func (g *Graph) Consumers(path string) []string {
	src := g.consumers[path]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// Subclasses returns the entities whose parent is the given type key,
// sorted by key.
func (g *Graph) Subclasses(typeKey string) []TypeRef {
	src := g.subclasses[typeKey]
	out := make([]TypeRef, len(src))
	copy(out, src)
	return out
}

// Len returns the module count.
func (g *Graph) Len() int {
	return len(g.modules)
}

// Stats summarizes the graph for logging.
func (g *Graph) Stats() string {
	edges := 0
	for _, m := range g.modules {
		edges += len(m.ImportEdges)
	}
	return fmt.Sprintf("%d modules, %d import edges, %d types", len(g.modules), edges, len(g.types))
}

// freeze sorts the per-module slices and computes reverse indexes.
// Called exactly once by the builder.
func (g *Graph) freeze() {
	g.modulePaths = make([]string, 0, len(g.modules))
	for p := range g.modules {
		g.modulePaths = append(g.modulePaths, p)
	}
	sort.Strings(g.modulePaths)

	g.typeKeys = make([]string, 0, len(g.types))
	for k := range g.types {
		g.typeKeys = append(g.typeKeys, k)
	}
	sort.Strings(g.typeKeys)

	g.consumers = make(map[string][]string)
	g.subclasses = make(map[string][]TypeRef)

	for _, p := range g.modulePaths {
		m := g.modules[p]
		m.ImportEdges = sortedUnique(m.ImportEdges)
		m.DroppedImports = sortedUnique(m.DroppedImports)
		m.Exports = sortedUnique(m.Exports)
		for _, target := range m.ImportEdges {
			g.consumers[target] = append(g.consumers[target], m.Path)
		}
	}

	for _, k := range g.typeKeys {
		t := g.types[k]
		sort.Strings(t.Properties)
		sort.Strings(t.Methods)
		sort.Strings(t.Labels)
		if t.Parent != nil {
			pk := t.Parent.Key()
			g.subclasses[pk] = append(g.subclasses[pk], TypeRef{ModulePath: t.ModulePath, Name: t.Name})
		}
	}

	for _, refs := range g.subclasses {
		sort.Slice(refs, func(i, j int) bool { return refs[i].Key() < refs[j].Key() })
	}
}

// sortedUnique sorts a string slice and removes duplicates in place.
func sortedUnique(in []string) []string {
	if len(in) < 2 {
		return in
	}
	sort.Strings(in)
	out := in[:1]
	for _, s := range in[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}
