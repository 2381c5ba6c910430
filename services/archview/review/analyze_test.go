// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package review

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/AleutianAI/archview/services/archview/ast"
	"github.com/AleutianAI/archview/services/archview/graph"
)

func mustBuild(t *testing.T, facts map[string]*ast.FileFacts) *graph.Graph {
	t.Helper()
	g, err := graph.NewBuilder().Build(facts)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return g
}

// factsAB is the two-module scenario: a imports foo from b.
func factsAB() map[string]*ast.FileFacts {
	return map[string]*ast.FileFacts{
		"a.ts": {
			FilePath: "a.ts",
			Language: "typescript",
			Imports:  []ast.Import{{Path: "./b", Names: []string{"foo"}, IsRelative: true, Line: 1}},
			Exports:  []ast.Export{{Name: "main", Line: 2}},
		},
		"b.ts": {
			FilePath: "b.ts",
			Language: "typescript",
			Exports:  []ast.Export{{Name: "foo", Line: 1}},
		},
	}
}

func TestAnalyze_ImportedSymbolIsNotDeadEnd(t *testing.T) {
	g := mustBuild(t, factsAB())

	report := Analyze(nil, g, Options{EntryPointPatterns: []string{"main"}})

	// foo is imported by a, main matches an entry-point pattern.
	if len(report.DeadEnds) != 0 {
		t.Errorf("expected no dead ends, got %v", report.DeadEnds)
	}
	if len(report.Orphans) != 0 {
		t.Errorf("expected no orphans, got %v", report.Orphans)
	}
}

func TestAnalyze_DeletingConsumerCreatesDeadEnd(t *testing.T) {
	oldG := mustBuild(t, factsAB())

	// Delete a: b keeps its export, so it is not an orphan, but foo has
	// no importer left and becomes a dead end.
	facts := factsAB()
	delete(facts, "a.ts")
	newG := mustBuild(t, facts)

	report := Analyze(oldG, newG, Options{})

	if !reflect.DeepEqual(report.RemovedModules, []string{"a.ts"}) {
		t.Errorf("expected removed module a.ts, got %v", report.RemovedModules)
	}
	if len(report.Orphans) != 0 {
		t.Errorf("b still exports foo and must not be an orphan, got %v", report.Orphans)
	}
	want := []DeadEnd{{ModulePath: "b.ts", Name: "foo"}}
	if !reflect.DeepEqual(report.DeadEnds, want) {
		t.Errorf("expected foo dead end, got %v", report.DeadEnds)
	}
}

func TestAnalyze_EmptyModuleIsOrphan(t *testing.T) {
	g := mustBuild(t, map[string]*ast.FileFacts{
		"b.ts": {FilePath: "b.ts", Language: "typescript"},
	})

	report := Analyze(nil, g, Options{})

	if !reflect.DeepEqual(report.Orphans, []string{"b.ts"}) {
		t.Errorf("module without imports or exports must be an orphan, got %v", report.Orphans)
	}
}

func TestAnalyze_ModuleDeltas(t *testing.T) {
	oldG := mustBuild(t, factsAB())

	facts := factsAB()
	facts["b.ts"].Exports = append(facts["b.ts"].Exports, ast.Export{Name: "bar", Line: 2})
	facts["c.ts"] = &ast.FileFacts{
		FilePath: "c.ts",
		Language: "typescript",
		Imports:  []ast.Import{{Path: "./b", Names: []string{"bar"}, IsRelative: true, Line: 1}},
		Exports:  []ast.Export{{Name: "c", Line: 2}},
	}
	newG := mustBuild(t, facts)

	report := Analyze(oldG, newG, Options{})

	if !reflect.DeepEqual(report.AddedModules, []string{"c.ts"}) {
		t.Errorf("expected added module c.ts, got %v", report.AddedModules)
	}
	if len(report.ModifiedModules) != 1 || report.ModifiedModules[0].Path != "b.ts" {
		t.Fatalf("expected b.ts modified, got %v", report.ModifiedModules)
	}
	if !reflect.DeepEqual(report.ModifiedModules[0].Fields, []string{FieldExports}) {
		t.Errorf("expected exports delta, got %v", report.ModifiedModules[0].Fields)
	}

	// Blast radius: both a and c import b in the new graph.
	if !reflect.DeepEqual(report.Consumers["b.ts"], []string{"a.ts", "c.ts"}) {
		t.Errorf("expected consumers of b.ts, got %v", report.Consumers["b.ts"])
	}
}

func TestAnalyze_TypeDeltas(t *testing.T) {
	mkFacts := func(methods ...string) map[string]*ast.FileFacts {
		var members []ast.Member
		for _, m := range methods {
			members = append(members, ast.Member{Name: m, Kind: ast.MemberKindMethod})
		}
		return map[string]*ast.FileFacts{
			"base.ts": {
				FilePath: "base.ts",
				Language: "typescript",
				Types: []*ast.TypeDecl{
					{Name: "Base", Kind: ast.TypeKindClass, Exported: true, Line: 1, Members: members},
				},
				Exports: []ast.Export{{Name: "Base", Line: 1}},
			},
			"derived.ts": {
				FilePath: "derived.ts",
				Language: "typescript",
				Imports:  []ast.Import{{Path: "./base", Names: []string{"Base"}, IsRelative: true, Line: 1}},
				Types: []*ast.TypeDecl{
					{Name: "Derived", Kind: ast.TypeKindClass, Parent: "Base", Exported: true, Line: 2},
				},
				Exports: []ast.Export{{Name: "Derived", Line: 2}},
			},
		}
	}

	oldG := mustBuild(t, mkFacts("run"))
	newG := mustBuild(t, mkFacts("run", "stop"))

	report := Analyze(oldG, newG, Options{EntryPointPatterns: []string{"Derived"}})

	if len(report.ModifiedTypes) != 1 {
		t.Fatalf("expected one modified type, got %v", report.ModifiedTypes)
	}
	d := report.ModifiedTypes[0]
	if d.Key != "base.ts::Base" {
		t.Errorf("unexpected key %q", d.Key)
	}
	if len(d.Deltas) != 1 || d.Deltas[0].Kind != DeltaMethod {
		t.Fatalf("expected a method delta, got %v", d.Deltas)
	}
	if !reflect.DeepEqual(d.Deltas[0].Added, []string{"stop"}) {
		t.Errorf("expected added method stop, got %v", d.Deltas[0].Added)
	}

	// The owning module's type set changed too.
	if len(report.ModifiedModules) != 1 ||
		!reflect.DeepEqual(report.ModifiedModules[0].Fields, []string{FieldTypes}) {
		t.Errorf("expected types field delta on base.ts, got %v", report.ModifiedModules)
	}

	// Inheritance blast radius for the modified type.
	if !reflect.DeepEqual(report.Consumers["base.ts::Base"], []string{"derived.ts::Derived"}) {
		t.Errorf("expected Derived in blast radius, got %v", report.Consumers["base.ts::Base"])
	}
}

func TestAnalyze_SingleInheritsEdgeSurvivesReextraction(t *testing.T) {
	// Derived re-extracted with different member ordering must not
	// register as a change, and the inherits edge stays single.
	mk := func(order []ast.Member) map[string]*ast.FileFacts {
		return map[string]*ast.FileFacts{
			"base.ts": {
				FilePath: "base.ts",
				Language: "typescript",
				Types:    []*ast.TypeDecl{{Name: "Base", Kind: ast.TypeKindClass, Exported: true, Line: 1}},
				Exports:  []ast.Export{{Name: "Base", Line: 1}},
			},
			"derived.ts": {
				FilePath: "derived.ts",
				Language: "typescript",
				Imports:  []ast.Import{{Path: "./base", Names: []string{"Base"}, IsRelative: true, Line: 1}},
				Types: []*ast.TypeDecl{
					{Name: "Derived", Kind: ast.TypeKindClass, Parent: "Base", Exported: true, Line: 2, Members: order},
				},
				Exports: []ast.Export{{Name: "Derived", Line: 2}},
			},
		}
	}

	m1 := []ast.Member{{Name: "a", Kind: ast.MemberKindMethod}, {Name: "b", Kind: ast.MemberKindMethod}}
	m2 := []ast.Member{{Name: "b", Kind: ast.MemberKindMethod}, {Name: "a", Kind: ast.MemberKindMethod}}

	oldG := mustBuild(t, mk(m1))
	newG := mustBuild(t, mk(m2))

	if len(newG.InheritEdges()) != 1 {
		t.Fatalf("expected exactly one inherits edge, got %d", len(newG.InheritEdges()))
	}

	report := Analyze(oldG, newG, Options{})
	if report.HasStructuralChanges() {
		t.Errorf("member reordering must not report changes: %+v", report)
	}
}

func TestAnalyze_EntryPointExclusion(t *testing.T) {
	g := mustBuild(t, map[string]*ast.FileFacts{
		"cmd/tool/main.go": {
			FilePath: "cmd/tool/main.go",
			Language: "go",
			Exports:  []ast.Export{{Name: "Run", Line: 1}},
		},
		"src/index.ts": {
			FilePath: "src/index.ts",
			Language: "typescript",
			Exports:  []ast.Export{{Name: "api", Line: 1}},
		},
		"src/unused.ts": {
			FilePath: "src/unused.ts",
			Language: "typescript",
			Exports:  []ast.Export{{Name: "helper", Line: 1}},
		},
	})

	report := Analyze(nil, g, Options{
		EntryPointPatterns: []string{"cmd/...", "index.*"},
	})

	want := []DeadEnd{{ModulePath: "src/unused.ts", Name: "helper"}}
	if !reflect.DeepEqual(report.DeadEnds, want) {
		t.Errorf("expected only the unused helper, got %v", report.DeadEnds)
	}
}

func TestAnalyze_NamespaceImportReferencesAllExports(t *testing.T) {
	g := mustBuild(t, map[string]*ast.FileFacts{
		"a.ts": {
			FilePath: "a.ts",
			Language: "typescript",
			Imports:  []ast.Import{{Path: "./b", Alias: "b", IsNamespace: true, IsRelative: true, Line: 1}},
			Exports:  []ast.Export{{Name: "main", Line: 2}},
		},
		"b.ts": {
			FilePath: "b.ts",
			Language: "typescript",
			Exports:  []ast.Export{{Name: "one", Line: 1}, {Name: "two", Line: 2}},
		},
	})

	report := Analyze(nil, g, Options{EntryPointPatterns: []string{"main"}})

	if len(report.DeadEnds) != 0 {
		t.Errorf("namespace import must reference all exports, got %v", report.DeadEnds)
	}
}

func TestRenderer_PlainOutput(t *testing.T) {
	oldG := mustBuild(t, factsAB())
	facts := factsAB()
	delete(facts, "a.ts")
	newG := mustBuild(t, facts)

	report := Analyze(oldG, newG, Options{})

	var buf bytes.Buffer
	if err := NewPlainRenderer(&buf).Render(report); err != nil {
		t.Fatalf("render failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Removed modules", "a.ts", "Dead-end exports", "foo"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("plain renderer must not emit ANSI escapes")
	}
}

func TestRenderer_EmptyReport(t *testing.T) {
	var buf bytes.Buffer
	if err := NewPlainRenderer(&buf).Render(&Report{Consumers: map[string][]string{}}); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "no structural changes") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}
