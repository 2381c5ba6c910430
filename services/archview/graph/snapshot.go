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
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/archview/services/archview/ast"
)

// ModuleSnapshot is the persisted form of one module.
type ModuleSnapshot struct {
	Path     string   `yaml:"path"`
	Language string   `yaml:"language,omitempty"`
	Imports  []string `yaml:"imports,omitempty"`
	Exports  []string `yaml:"exports,omitempty"`
}

// TypeSnapshot is the persisted form of one type entity.
type TypeSnapshot struct {
	Name        string   `yaml:"name"`
	Module      string   `yaml:"module"`
	Kind        string   `yaml:"kind"`
	Parent      string   `yaml:"parent,omitempty"` // module::name
	ParentLabel string   `yaml:"parent_label,omitempty"`
	Properties  []string `yaml:"properties,omitempty"`
	Methods     []string `yaml:"methods,omitempty"`
}

// Snapshot is a compact, committable rendition of a Graph, carrying
// exactly the fields the structural diff compares. It lets a later run
// diff against the previously approved architecture without re-parsing
// old source.
type Snapshot struct {
	Modules []ModuleSnapshot `yaml:"modules"`
	Types   []TypeSnapshot   `yaml:"types"`
}

// Snapshot converts the graph to its persisted form. Output order is
// canonical, so equal graphs marshal to identical YAML.
func (g *Graph) Snapshot() *Snapshot {
	s := &Snapshot{}
	for _, m := range g.Modules() {
		s.Modules = append(s.Modules, ModuleSnapshot{
			Path:     m.Path,
			Language: m.Facts.Language,
			Imports:  m.ImportEdges,
			Exports:  m.Exports,
		})
	}
	for _, t := range g.Types() {
		ts := TypeSnapshot{
			Name:        t.Name,
			Module:      t.ModulePath,
			Kind:        t.Kind.String(),
			ParentLabel: t.ParentLabel,
			Properties:  t.Properties,
			Methods:     t.Methods,
		}
		if t.Parent != nil {
			ts.Parent = t.Parent.Key()
		}
		s.Types = append(s.Types, ts)
	}
	return s
}

// MarshalSnapshot renders the graph's snapshot as YAML.
func MarshalSnapshot(g *Graph) ([]byte, error) {
	return yaml.Marshal(g.Snapshot())
}

// UnmarshalSnapshot reads a persisted snapshot back into a Graph
// usable as the old side of a structural diff.
func UnmarshalSnapshot(data []byte) (*Graph, error) {
	s := &Snapshot{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse graph snapshot: %w", err)
	}
	return FromSnapshot(s)
}

// FromSnapshot reconstructs a Graph from its persisted form.
//
// The reconstructed graph carries no raw facts beyond path and
// language; it supports diffing and reverse lookups, not re-serialization
// of source-level detail.
func FromSnapshot(s *Snapshot) (*Graph, error) {
	g := &Graph{
		modules: make(map[string]*Module, len(s.Modules)),
		types:   make(map[string]*TypeEntity, len(s.Types)),
	}

	for _, ms := range s.Modules {
		if ms.Path == "" {
			return nil, fmt.Errorf("snapshot module with empty path")
		}
		g.modules[ms.Path] = &Module{
			Path:        ms.Path,
			Facts:       &ast.FileFacts{FilePath: ms.Path, Language: ms.Language},
			ImportEdges: append([]string(nil), ms.Imports...),
			Exports:     append([]string(nil), ms.Exports...),
			Resolved:    map[string][]string{},
		}
	}

	for _, ts := range s.Types {
		entity := &TypeEntity{
			Name:        ts.Name,
			ModulePath:  ts.Module,
			Kind:        ast.ParseTypeKind(ts.Kind),
			ParentLabel: ts.ParentLabel,
			Properties:  append([]string(nil), ts.Properties...),
			Methods:     append([]string(nil), ts.Methods...),
		}
		if ts.Parent != "" {
			idx := strings.LastIndex(ts.Parent, "::")
			if idx < 0 {
				return nil, fmt.Errorf("snapshot type %s: malformed parent key %q", ts.Name, ts.Parent)
			}
			entity.Parent = &TypeRef{ModulePath: ts.Parent[:idx], Name: ts.Parent[idx+2:]}
			if entity.ParentLabel == "" {
				entity.ParentLabel = entity.Parent.Name
			}
		}
		g.types[entity.Key()] = entity
	}

	g.freeze()
	return g, nil
}
