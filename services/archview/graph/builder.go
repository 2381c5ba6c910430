// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/AleutianAI/archview/services/archview/ast"
)

// resolveExtensions are the file suffixes probed when a relative
// specifier names a file without its extension.
var resolveExtensions = []string{".ts", ".tsx", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs", ".go"}

// indexExtensions are probed for directory specifiers that resolve
// through an index file.
var indexExtensions = []string{".ts", ".tsx", ".js", ".jsx"}

// BuilderOptions configures Builder behavior.
type BuilderOptions struct {
	// Logger receives per-module resolution diagnostics. May be nil.
	Logger *slog.Logger
}

// BuilderOption is a functional option for configuring Builder.
type BuilderOption func(*BuilderOptions)

// WithLogger sets the logger used for resolution diagnostics.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(o *BuilderOptions) {
		o.Logger = logger
	}
}

// Builder constructs graphs from extracted file facts.
//
// Description:
//
//	The builder is stateless and reusable; each Build call produces a
//	fresh immutable Graph. Build is a pure function of the fact set:
//	the same facts in any map iteration order yield graphs whose
//	accessors return identical sequences.
//
// Build Phases:
//
//  1. COLLECT: register one module per fact entry, keyed by canonical path
//  2. RESOLVE: turn relative import specifiers into edges over the known
//     module set; everything else is dropped
//  3. LINK: resolve type parents and freeze the graph
//
// Thread Safety:
//
//	Builder is safe for concurrent use.
type Builder struct {
	options BuilderOptions
}

// NewBuilder creates a new Builder with the given options.
func NewBuilder(opts ...BuilderOption) *Builder {
	options := BuilderOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Builder{options: options}
}

// Build constructs a Graph from facts keyed by canonical module path.
//
// Inputs:
//
//	facts - Extraction results keyed by slash path relative to the base
//	        directory. Nil entries are rejected.
//
// Outputs:
//
//	*Graph - Immutable snapshot. Never nil on success.
//	error  - Non-nil only for malformed input.
func (b *Builder) Build(facts map[string]*ast.FileFacts) (*Graph, error) {
	g := &Graph{
		modules: make(map[string]*Module, len(facts)),
		types:   make(map[string]*TypeEntity),
	}

	// Phase 1: collect modules and type entities.
	for modPath, f := range facts {
		if f == nil {
			return nil, fmt.Errorf("nil facts for module %q", modPath)
		}
		if strings.HasPrefix(modPath, "/") || strings.Contains(modPath, `\`) {
			return nil, fmt.Errorf("module path %q is not a canonical slash-relative path", modPath)
		}

		m := &Module{Path: modPath, Facts: f}
		for _, exp := range f.Exports {
			m.Exports = append(m.Exports, exp.Name)
		}
		g.modules[modPath] = m

		for _, decl := range f.Types {
			entity := entityFromDecl(modPath, decl)
			key := entity.Key()
			if _, exists := g.types[key]; exists {
				// Redeclaration in the same file; first one wins.
				b.options.Logger.Warn("duplicate type declaration",
					slog.String("module", modPath),
					slog.String("type", decl.Name))
				continue
			}
			g.types[key] = entity
		}
	}

	// Phase 2: resolve import specifiers against the known module set.
	for _, m := range g.modules {
		m.Resolved = make(map[string][]string)
		for _, imp := range m.Facts.Imports {
			targets := b.resolve(g, m, imp)
			if len(targets) == 0 {
				m.DroppedImports = append(m.DroppedImports, imp.Path)
				continue
			}
			m.Resolved[imp.Path] = targets
			for _, t := range targets {
				if t != m.Path {
					m.ImportEdges = append(m.ImportEdges, t)
				}
			}
		}
	}

	// Phase 3: link type parents, then freeze.
	b.linkParents(g)
	g.freeze()

	return g, nil
}

// entityFromDecl converts one type fact into a graph entity.
func entityFromDecl(modPath string, decl *ast.TypeDecl) *TypeEntity {
	entity := &TypeEntity{
		Name:        decl.Name,
		ModulePath:  modPath,
		Kind:        decl.Kind,
		ParentLabel: decl.Parent,
		Exported:    decl.Exported,
	}
	entity.Labels = append(entity.Labels, decl.Implements...)

	seen := make(map[string]bool, len(decl.Members))
	for _, member := range decl.Members {
		// Getter/setter pairs surface as one property.
		dedupeKey := fmt.Sprintf("%d:%s", member.Kind, member.Name)
		if seen[dedupeKey] {
			continue
		}
		seen[dedupeKey] = true

		switch member.Kind {
		case ast.MemberKindProperty:
			entity.Properties = append(entity.Properties, member.Name)
		case ast.MemberKindMethod:
			entity.Methods = append(entity.Methods, member.Name)
		}
	}
	return entity
}

// resolve maps one import to zero or more known module paths.
//
// Bare specifiers never resolve. A relative specifier is joined to the
// importing module's directory and probed as a file (exact, with each
// known extension, through an index file). Go package imports name a
// directory rather than a file, so for Go facts an otherwise-unresolved
// specifier expands to every known module in the target directory.
func (b *Builder) resolve(g *Graph, m *Module, imp ast.Import) []string {
	if !imp.IsRelative {
		return nil
	}

	target := path.Join(m.Dir(), imp.Path)
	if target == ".." || strings.HasPrefix(target, "../") {
		// Escapes the base directory; cannot name a known module.
		return nil
	}

	if _, ok := g.modules[target]; ok {
		return []string{target}
	}
	for _, ext := range resolveExtensions {
		if _, ok := g.modules[target+ext]; ok {
			return []string{target + ext}
		}
	}
	for _, ext := range indexExtensions {
		candidate := path.Join(target, "index"+ext)
		if _, ok := g.modules[candidate]; ok {
			return []string{candidate}
		}
	}

	if m.Facts.Language == "go" {
		var members []string
		for p := range g.modules {
			if path.Dir(p) == target {
				members = append(members, p)
			}
		}
		sort.Strings(members)
		return members
	}

	return nil
}

// linkParents resolves each entity's declared parent to a known entity
// where possible, preferring same-module declarations, then entities in
// imported modules, then a unique global match.
func (b *Builder) linkParents(g *Graph) {
	byName := make(map[string][]*TypeEntity)
	for _, t := range g.types {
		byName[t.Name] = append(byName[t.Name], t)
	}
	for _, candidates := range byName {
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].ModulePath < candidates[j].ModulePath
		})
	}

	for _, t := range g.types {
		if t.ParentLabel == "" {
			continue
		}

		candidates := byName[t.ParentLabel]
		if ref := pickParent(g, t, candidates); ref != nil {
			t.Parent = ref
		}
	}
}

// pickParent selects the resolution target for a parent label, or nil
// when the label stays display-only.
func pickParent(g *Graph, child *TypeEntity, candidates []*TypeEntity) *TypeRef {
	if len(candidates) == 0 {
		return nil
	}

	// Same-module declaration wins.
	for _, c := range candidates {
		if c.ModulePath == child.ModulePath && c.Name != child.Name {
			return &TypeRef{ModulePath: c.ModulePath, Name: c.Name}
		}
	}

	// Then the first candidate declared in an imported module.
	// Candidates are sorted by module path, so the choice is stable.
	imported := make(map[string]bool)
	if m, ok := g.modules[child.ModulePath]; ok {
		for _, edge := range m.ImportEdges {
			imported[edge] = true
		}
	}
	for _, c := range candidates {
		if imported[c.ModulePath] {
			return &TypeRef{ModulePath: c.ModulePath, Name: c.Name}
		}
	}

	// A unique global match is unambiguous even without an import edge.
	if len(candidates) == 1 && candidates[0].Key() != child.Key() {
		return &TypeRef{ModulePath: candidates[0].ModulePath, Name: candidates[0].Name}
	}

	return nil
}
