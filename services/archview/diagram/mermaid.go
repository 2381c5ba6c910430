// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diagram serializes graphs to canonical Mermaid text.
//
// Serialization is deterministic: modules are grouped by directory and
// sorted, edges are sorted and deduped, and type members are sorted
// independently of declaration order. Two graphs built from the same
// fact set serialize to byte-identical text, which is the precondition
// for exact-hash change detection.
package diagram

import (
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/AleutianAI/archview/services/archview/ast"
	"github.com/AleutianAI/archview/services/archview/graph"
)

// Kind identifies one diagram artifact.
type Kind int

const (
	// KindDependencies is the module dependency graph.
	KindDependencies Kind = iota

	// KindHierarchy is the type hierarchy graph.
	KindHierarchy
)

// String returns the kind's configuration name.
func (k Kind) String() string {
	switch k {
	case KindDependencies:
		return "dependencies"
	case KindHierarchy:
		return "hierarchy"
	default:
		return "unknown"
	}
}

// FileName returns the default artifact file name for the kind.
func (k Kind) FileName() string {
	switch k {
	case KindDependencies:
		return "dependencies.mmd"
	case KindHierarchy:
		return "hierarchy.mmd"
	default:
		return "unknown.mmd"
	}
}

// Deterministic reports whether the kind's serializer output is stable
// byte-for-byte. Both built-in kinds are; the flag exists so externally
// produced artifacts can be registered with fuzzy comparison.
func (k Kind) Deterministic() bool {
	return true
}

// Kinds returns all built-in diagram kinds in serialization order.
func Kinds() []Kind {
	return []Kind{KindDependencies, KindHierarchy}
}

// Serialize renders the diagram of the given kind.
func Serialize(k Kind, g *graph.Graph) ([]byte, error) {
	var sb strings.Builder
	var err error
	switch k {
	case KindDependencies:
		err = WriteDependencyDiagram(&sb, g)
	case KindHierarchy:
		err = WriteHierarchyDiagram(&sb, g)
	default:
		return nil, fmt.Errorf("unknown diagram kind %d", k)
	}
	if err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

// DependencyDiagram renders the module dependency graph as Mermaid text.
func DependencyDiagram(g *graph.Graph) string {
	var sb strings.Builder
	// strings.Builder never returns a write error.
	_ = WriteDependencyDiagram(&sb, g)
	return sb.String()
}

// WriteDependencyDiagram writes a `graph TD` diagram with one subgraph
// per containing directory.
func WriteDependencyDiagram(w io.Writer, g *graph.Graph) error {
	if _, err := fmt.Fprintln(w, "graph TD"); err != nil {
		return err
	}

	byDir := make(map[string][]*graph.Module)
	for _, m := range g.Modules() {
		byDir[m.Dir()] = append(byDir[m.Dir()], m)
	}

	dirs := make([]string, 0, len(byDir))
	for d := range byDir {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	for _, dir := range dirs {
		members := byDir[dir]
		sort.Slice(members, func(i, j int) bool { return members[i].Path < members[j].Path })

		if _, err := fmt.Fprintf(w, "    subgraph %s[\"%s\"]\n", sanitizeID("dir_"+dir), dir); err != nil {
			return err
		}
		for _, m := range members {
			if _, err := fmt.Fprintf(w, "        %s[\"%s\"]\n", sanitizeID(m.Path), path.Base(m.Path)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, "    end"); err != nil {
			return err
		}
	}

	edges := g.ImportEdges()
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})

	var last graph.ImportEdge
	for i, e := range edges {
		if i > 0 && e == last {
			continue
		}
		last = e
		if _, err := fmt.Fprintf(w, "    %s --> %s\n", sanitizeID(e.Source), sanitizeID(e.Target)); err != nil {
			return err
		}
	}

	return nil
}

// HierarchyDiagram renders the type hierarchy as Mermaid classDiagram
// text.
func HierarchyDiagram(g *graph.Graph) string {
	var sb strings.Builder
	_ = WriteHierarchyDiagram(&sb, g)
	return sb.String()
}

// WriteHierarchyDiagram writes a `classDiagram` with class blocks
// sorted by name and members sorted within each block.
func WriteHierarchyDiagram(w io.Writer, g *graph.Graph) error {
	if _, err := fmt.Fprintln(w, "classDiagram"); err != nil {
		return err
	}

	entities := g.Types()
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].Name != entities[j].Name {
			return entities[i].Name < entities[j].Name
		}
		return entities[i].ModulePath < entities[j].ModulePath
	})

	for _, t := range entities {
		id := classID(t)
		if _, err := fmt.Fprintf(w, "    class %s {\n", id); err != nil {
			return err
		}
		if t.Kind == ast.TypeKindInterface {
			if _, err := fmt.Fprintln(w, "        <<interface>>"); err != nil {
				return err
			}
		}

		props := append([]string(nil), t.Properties...)
		sort.Strings(props)
		for _, p := range props {
			if _, err := fmt.Fprintf(w, "        +%s\n", sanitizeMember(p)); err != nil {
				return err
			}
		}

		methods := append([]string(nil), t.Methods...)
		sort.Strings(methods)
		for _, m := range methods {
			if _, err := fmt.Fprintf(w, "        +%s()\n", sanitizeMember(m)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, "    }"); err != nil {
			return err
		}

		// Unresolved parents stay visible as a note rather than an edge.
		if t.Parent == nil && t.ParentLabel != "" {
			if _, err := fmt.Fprintf(w, "    %%%% %s extends external %s\n", id, t.ParentLabel); err != nil {
				return err
			}
		}
	}

	type hierarchyEdge struct{ parent, child string }
	var edges []hierarchyEdge
	for _, e := range g.InheritEdges() {
		parent, pok := g.Type(e.Parent.Key())
		child, cok := g.Type(e.Child.Key())
		if !pok || !cok {
			continue
		}
		edges = append(edges, hierarchyEdge{parent: classID(parent), child: classID(child)})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].parent != edges[j].parent {
			return edges[i].parent < edges[j].parent
		}
		return edges[i].child < edges[j].child
	})

	var last hierarchyEdge
	for i, e := range edges {
		if i > 0 && e == last {
			continue
		}
		last = e
		if _, err := fmt.Fprintf(w, "    %s <|-- %s\n", e.parent, e.child); err != nil {
			return err
		}
	}

	return nil
}

// classID returns a stable Mermaid identifier for a type entity.
// The module path disambiguates same-named types in different files.
func classID(t *graph.TypeEntity) string {
	return sanitizeID(strings.TrimSuffix(t.ModulePath, path.Ext(t.ModulePath)) + "_" + t.Name)
}

// sanitizeID makes an identifier safe for Mermaid.
func sanitizeID(id string) string {
	replacer := strings.NewReplacer(
		".", "_",
		"/", "_",
		"-", "_",
		":", "_",
		"*", "_",
		" ", "_",
		"(", "_",
		")", "_",
	)
	return replacer.Replace(id)
}

// sanitizeMember strips characters Mermaid treats as markup from
// member names (private fields like #secret).
func sanitizeMember(name string) string {
	return strings.ReplaceAll(name, "#", "~")
}
