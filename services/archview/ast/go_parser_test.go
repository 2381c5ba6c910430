// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"errors"
	"testing"
)

// Test source code samples (embedded, no file I/O).
const (
	testGoEmpty = ``

	testGoStruct = `package example

// User represents a system user.
type User struct {
	ID        string
	Name      string
	createdAt int64
}
`

	testGoEmbedded = `package example

type Base struct{}

type Extra struct{}

type Derived struct {
	Base
	Extra
	Name string
}
`

	testGoInterface = `package example

type Closer interface {
	Close() error
}

type ReadCloser interface {
	Closer
	Read(p []byte) (n int, err error)
}
`

	testGoMethods = `package example

type Calculator struct {
	total int
}

func (c *Calculator) Add(n int) int {
	c.total += n
	return c.total
}

func (c Calculator) Total() int {
	return c.total
}

func Standalone() {}
`

	testGoImports = `package example

import (
	"context"
	"fmt"

	gin "github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"example.com/mod/internal/store"
	"example.com/mod/internal/api/handlers"
)
`

	testGoExports = `package example

const MaxSize = 1024

const (
	StatusPending = "pending"
	statusHidden  = "hidden"
)

var GlobalVar = "global"

func PublicFunc() {}
func privateFunc() {}

type publicLooking struct{}
type Visible struct{}
`

	testGoSyntaxError = `package example

func Broken( {
	return
}

type Valid struct {
	Name string
}
`

	// Invalid UTF-8 bytes
	testGoInvalidUTF8 = "\xff\xfe"
)

func TestGoParser_Parse_EmptyFile(t *testing.T) {
	parser := NewGoParser()
	ctx := context.Background()

	result, err := parser.Parse(ctx, []byte(testGoEmpty), "empty.go")

	if err != nil {
		t.Fatalf("expected no error for empty file, got: %v", err)
	}
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result.FilePath != "empty.go" {
		t.Errorf("expected FilePath 'empty.go', got %q", result.FilePath)
	}
	if result.Language != "go" {
		t.Errorf("expected Language 'go', got %q", result.Language)
	}
	if result.Hash == "" {
		t.Error("expected non-empty hash")
	}
}

func TestGoParser_Parse_Struct(t *testing.T) {
	parser := NewGoParser()
	ctx := context.Background()

	result, err := parser.Parse(ctx, []byte(testGoStruct), "struct.go")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Types) != 1 {
		t.Fatalf("expected 1 type, got %d", len(result.Types))
	}

	s := result.Types[0]
	if s.Name != "User" {
		t.Errorf("expected type name 'User', got %q", s.Name)
	}
	if s.Kind != TypeKindStruct {
		t.Errorf("expected struct kind, got %v", s.Kind)
	}
	if !s.Exported {
		t.Error("expected User to be exported")
	}
	if len(s.Members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(s.Members))
	}
	for _, m := range s.Members {
		if m.Kind != MemberKindProperty {
			t.Errorf("expected field %q to be a property, got %v", m.Name, m.Kind)
		}
	}
}

func TestGoParser_Parse_EmbeddedStruct(t *testing.T) {
	parser := NewGoParser()
	ctx := context.Background()

	result, err := parser.Parse(ctx, []byte(testGoEmbedded), "embed.go")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	derived := findType(result.Types, "Derived")
	if derived == nil {
		t.Fatal("expected Derived type")
	}
	if derived.Parent != "Base" {
		t.Errorf("expected first embedded type as parent, got %q", derived.Parent)
	}
	if len(derived.Implements) != 1 || derived.Implements[0] != "Extra" {
		t.Errorf("expected later embeds as labels, got %v", derived.Implements)
	}
	if len(derived.Members) != 1 || derived.Members[0].Name != "Name" {
		t.Errorf("expected single named field, got %v", derived.Members)
	}
}

func TestGoParser_Parse_Interface(t *testing.T) {
	parser := NewGoParser()
	ctx := context.Background()

	result, err := parser.Parse(ctx, []byte(testGoInterface), "iface.go")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rc := findType(result.Types, "ReadCloser")
	if rc == nil {
		t.Fatal("expected ReadCloser type")
	}
	if rc.Kind != TypeKindInterface {
		t.Errorf("expected interface kind, got %v", rc.Kind)
	}
	if rc.Parent != "Closer" {
		t.Errorf("expected embedded interface as parent, got %q", rc.Parent)
	}
	if len(rc.Members) != 1 || rc.Members[0].Name != "Read" {
		t.Fatalf("expected single Read method, got %v", rc.Members)
	}
	if rc.Members[0].Kind != MemberKindMethod {
		t.Errorf("expected method kind, got %v", rc.Members[0].Kind)
	}
}

func TestGoParser_Parse_ReceiverMethods(t *testing.T) {
	parser := NewGoParser()
	ctx := context.Background()

	result, err := parser.Parse(ctx, []byte(testGoMethods), "methods.go")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calc := findType(result.Types, "Calculator")
	if calc == nil {
		t.Fatal("expected Calculator type")
	}

	var methods []string
	for _, m := range calc.Members {
		if m.Kind == MemberKindMethod {
			methods = append(methods, m.Name)
		}
	}
	if len(methods) != 2 {
		t.Fatalf("expected 2 receiver methods, got %v", methods)
	}
	if methods[0] != "Add" || methods[1] != "Total" {
		t.Errorf("expected [Add Total], got %v", methods)
	}
}

func TestGoParser_Parse_ImportsRewritten(t *testing.T) {
	parser := NewGoParser(WithGoModulePath("example.com/mod"))
	ctx := context.Background()

	result, err := parser.Parse(ctx, []byte(testGoImports), "internal/api/server.go")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byPath := map[string]Import{}
	for _, imp := range result.Imports {
		byPath[imp.Path] = imp
	}

	if len(result.Imports) != 6 {
		t.Fatalf("expected 6 imports, got %d", len(result.Imports))
	}

	// Intra-module imports become relative to the importing file's directory.
	if imp, ok := byPath["../store"]; !ok || !imp.IsRelative {
		t.Errorf("expected intra-module import rewritten to ../store, got %v", result.Imports)
	}
	if imp, ok := byPath["./handlers"]; !ok || !imp.IsRelative {
		t.Errorf("expected sibling intra-module import rewritten to ./handlers, got %v", result.Imports)
	}

	// External imports stay bare.
	if imp, ok := byPath["github.com/gin-gonic/gin"]; !ok || imp.IsRelative {
		t.Error("expected external import to stay bare")
	}
	if imp := byPath["github.com/gin-gonic/gin"]; imp.Alias != "gin" {
		t.Errorf("expected alias 'gin', got %q", imp.Alias)
	}
	if imp := byPath["github.com/lib/pq"]; imp.Alias != "_" {
		t.Errorf("expected blank alias, got %q", imp.Alias)
	}
}

func TestGoParser_Parse_NoModulePath(t *testing.T) {
	parser := NewGoParser()
	ctx := context.Background()

	result, err := parser.Parse(ctx, []byte(testGoImports), "internal/api/server.go")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, imp := range result.Imports {
		if imp.IsRelative {
			t.Errorf("expected no relative imports without a module path, got %q", imp.Path)
		}
	}
}

func TestGoParser_Parse_Exports(t *testing.T) {
	parser := NewGoParser()
	ctx := context.Background()

	result, err := parser.Parse(ctx, []byte(testGoExports), "exports.go")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	names := map[string]bool{}
	for _, exp := range result.Exports {
		names[exp.Name] = true
	}

	for _, want := range []string{"MaxSize", "StatusPending", "GlobalVar", "PublicFunc", "Visible"} {
		if !names[want] {
			t.Errorf("expected export %q, got %v", want, result.Exports)
		}
	}
	for _, reject := range []string{"statusHidden", "privateFunc", "publicLooking"} {
		if names[reject] {
			t.Errorf("unexported identifier %q should not be an export", reject)
		}
	}
}

func TestGoParser_Parse_SyntaxError(t *testing.T) {
	parser := NewGoParser()
	ctx := context.Background()

	result, err := parser.Parse(ctx, []byte(testGoSyntaxError), "broken.go")

	if err != nil {
		t.Fatalf("syntax errors should yield partial facts, got error: %v", err)
	}
	if !result.HasErrors() {
		t.Error("expected Errors to be populated for broken source")
	}
	if findType(result.Types, "Valid") == nil {
		t.Error("expected valid declarations to survive syntax errors")
	}
}

func TestGoParser_Parse_InvalidUTF8(t *testing.T) {
	parser := NewGoParser()
	ctx := context.Background()

	_, err := parser.Parse(ctx, []byte(testGoInvalidUTF8), "bad.go")

	if !errors.Is(err, ErrInvalidContent) {
		t.Errorf("expected ErrInvalidContent, got: %v", err)
	}
}

func TestGoParser_Parse_FileTooLarge(t *testing.T) {
	parser := NewGoParser(WithGoMaxFileSize(16))
	ctx := context.Background()

	_, err := parser.Parse(ctx, []byte(testGoStruct), "big.go")

	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got: %v", err)
	}
}

func TestGoParser_Parse_CanceledContext(t *testing.T) {
	parser := NewGoParser()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := parser.Parse(ctx, []byte(testGoStruct), "canceled.go")

	if err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestRelativeTo(t *testing.T) {
	tests := []struct {
		name    string
		fromDir string
		target  string
		want    string
	}{
		{"sibling dir", "internal/api", "internal/api/handlers", "./handlers"},
		{"cousin dir", "internal/api", "internal/store", "../store"},
		{"root target", "internal/api", ".", "../.."},
		{"same dir", "internal/api", "internal/api", "."},
		{"from root", ".", "pkg/util", "./pkg/util"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := relativeTo(tt.fromDir, tt.target)
			if got != tt.want {
				t.Errorf("relativeTo(%q, %q) = %q, want %q", tt.fromDir, tt.target, got, tt.want)
			}
		})
	}
}

// findType returns the first declaration with the given name, or nil.
func findType(types []*TypeDecl, name string) *TypeDecl {
	for _, d := range types {
		if d.Name == name {
			return d
		}
	}
	return nil
}
