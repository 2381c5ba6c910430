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
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"golang.org/x/mod/modfile"
)

// GoParserOption configures a GoParser instance.
type GoParserOption func(*GoParser)

// WithGoMaxFileSize sets the maximum file size the parser will accept.
func WithGoMaxFileSize(bytes int64) GoParserOption {
	return func(p *GoParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// WithGoModulePath sets the module path used to recognize intra-module
// imports. Imports under this path are rewritten to relative specifiers
// so the graph builder can resolve them; all other imports stay bare
// and are dropped from the graph.
func WithGoModulePath(modulePath string) GoParserOption {
	return func(p *GoParser) {
		p.modulePath = strings.TrimSuffix(modulePath, "/")
	}
}

// WithGoModFile reads the module path from the given go.mod file.
//
// A missing or unparseable go.mod is not fatal: the parser then treats
// every import as external, which only costs module-graph edges.
func WithGoModFile(gomodPath string) GoParserOption {
	return func(p *GoParser) {
		data, err := os.ReadFile(gomodPath)
		if err != nil {
			slog.Warn("go.mod not readable, go imports treated as external",
				slog.String("path", gomodPath),
				slog.String("error", err.Error()))
			return
		}
		if mp := modfile.ModulePath(data); mp != "" {
			p.modulePath = mp
		}
	}
}

// GoParser implements the Parser interface for Go source code.
//
// Description:
//
//	GoParser is the in-process extraction path: it walks the tree-sitter
//	Go grammar directly instead of shelling out to an external tool.
//	Struct and interface declarations become type facts (the first
//	embedded type is treated as the parent, matching the single-edge
//	hierarchy model); exported top-level identifiers become export
//	facts; intra-module imports are normalized to relative specifiers.
//
// Go's import graph is package-grained rather than file-grained, so a
// relative specifier produced here names a directory. The graph builder
// resolves directory specifiers from Go facts to the modules inside
// that directory.
//
// Thread Safety: safe for concurrent use.
type GoParser struct {
	maxFileSize int64
	modulePath  string
}

// NewGoParser creates a new GoParser with the given options.
func NewGoParser(opts ...GoParserOption) *GoParser {
	p := &GoParser{
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts facts from Go source code.
//
// Same contract as the other adapters: complete failures return an
// error, syntax errors yield partial facts with Errors populated.
func (p *GoParser) Parse(ctx context.Context, content []byte, filePath string) (*FileFacts, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	if int64(len(content)) > p.maxFileSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}

	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	facts := newFileFacts(filePath, "go", content)

	root := tree.RootNode()
	if root == nil {
		facts.Errors = append(facts.Errors, "tree-sitter returned nil root node")
		return facts, nil
	}
	if root.HasError() {
		facts.Errors = append(facts.Errors, "source contains syntax errors")
	}

	w := &goFacts{content: content, filePath: filePath, modulePath: p.modulePath, facts: facts}
	w.extract(root)

	if err := facts.Validate(); err != nil {
		return nil, fmt.Errorf("fact validation failed: %w", err)
	}

	return facts, nil
}

// Language returns "go".
func (p *GoParser) Language() string {
	return "go"
}

// Extensions returns the Go file extensions.
func (p *GoParser) Extensions() []string {
	return []string{".go"}
}

// goFacts walks a tree-sitter Go parse tree.
type goFacts struct {
	content    []byte
	filePath   string
	modulePath string
	facts      *FileFacts
}

func (g *goFacts) text(node *sitter.Node) string {
	return string(g.content[node.StartByte():node.EndByte()])
}

func (g *goFacts) extract(root *sitter.Node) {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "import_declaration":
			g.processImportDecl(child)
		case "type_declaration":
			g.processTypeDecl(child)
		case "function_declaration":
			g.processFunctionDecl(child)
		case "method_declaration":
			g.processMethodDecl(child)
		case "const_declaration", "var_declaration":
			g.processValueDecl(child)
		}
	}
}

// processImportDecl handles single and grouped import declarations.
func (g *goFacts) processImportDecl(node *sitter.Node) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import_spec":
			g.processImportSpec(child)
		case "import_spec_list":
			for j := 0; j < int(child.ChildCount()); j++ {
				spec := child.Child(j)
				if spec.Type() == "import_spec" {
					g.processImportSpec(spec)
				}
			}
		}
	}
}

// processImportSpec extracts one import path, rewriting intra-module
// paths to relative specifiers.
func (g *goFacts) processImportSpec(node *sitter.Node) {
	var alias, importPath string

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "package_identifier", "blank_identifier", "dot":
			alias = g.text(child)
		case "interpreted_string_literal":
			importPath = strings.Trim(g.text(child), `"`)
		}
	}

	if importPath == "" {
		return
	}

	imp := Import{
		Path:  importPath,
		Alias: alias,
		Line:  line(node),
	}

	if rel, ok := g.relativize(importPath); ok {
		imp.Path = rel
		imp.IsRelative = true
	}

	g.facts.Imports = append(g.facts.Imports, imp)
}

// relativize rewrites an intra-module import path to a specifier
// relative to the importing file's directory.
//
// "example.com/mod/internal/b" imported from "internal/a/a.go" becomes
// "../b". Returns false for external imports or when no module path is
// configured.
func (g *goFacts) relativize(importPath string) (string, bool) {
	if g.modulePath == "" {
		return "", false
	}

	var target string
	switch {
	case importPath == g.modulePath:
		target = "."
	case strings.HasPrefix(importPath, g.modulePath+"/"):
		target = importPath[len(g.modulePath)+1:]
	default:
		return "", false
	}

	rel := relativeTo(path.Dir(g.filePath), target)
	return rel, true
}

// relativeTo computes a relative slash path from one base-relative
// directory to another, always prefixed with "./" or "../".
func relativeTo(fromDir, target string) string {
	from := splitClean(fromDir)
	to := splitClean(target)

	common := 0
	for common < len(from) && common < len(to) && from[common] == to[common] {
		common++
	}

	var parts []string
	for i := common; i < len(from); i++ {
		parts = append(parts, "..")
	}
	parts = append(parts, to[common:]...)

	if len(parts) == 0 {
		return "."
	}
	rel := path.Join(parts...)
	if !strings.HasPrefix(rel, "../") && rel != ".." {
		rel = "./" + rel
	}
	return rel
}

// splitClean splits a slash path into segments, dropping "." and "".
func splitClean(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" && s != "." {
			segs = append(segs, s)
		}
	}
	return segs
}

// processTypeDecl extracts struct and interface declarations.
func (g *goFacts) processTypeDecl(node *sitter.Node) {
	for i := 0; i < int(node.ChildCount()); i++ {
		spec := node.Child(i)
		if spec.Type() != "type_spec" {
			continue
		}

		var name string
		var body *sitter.Node
		var kind TypeKind
		found := false

		for j := 0; j < int(spec.ChildCount()); j++ {
			child := spec.Child(j)
			switch child.Type() {
			case "type_identifier":
				if name == "" {
					name = g.text(child)
				}
			case "struct_type":
				kind, body, found = TypeKindStruct, child, true
			case "interface_type":
				kind, body, found = TypeKindInterface, child, true
			}
		}

		if name == "" || !found {
			continue
		}

		decl := &TypeDecl{
			Name:     name,
			Kind:     kind,
			Exported: isExportedGoName(name),
			Line:     line(spec),
		}

		if kind == TypeKindStruct {
			g.extractStructBody(body, decl)
		} else {
			g.extractInterfaceBody(body, decl)
		}

		g.facts.Types = append(g.facts.Types, decl)
		if decl.Exported {
			g.facts.Exports = append(g.facts.Exports, Export{Name: name, Line: decl.Line})
		}
	}
}

// extractStructBody collects fields; the first embedded type becomes
// the parent, later embeds are retained as implements labels.
func (g *goFacts) extractStructBody(body *sitter.Node, decl *TypeDecl) {
	for i := 0; i < int(body.ChildCount()); i++ {
		list := body.Child(i)
		if list.Type() != "field_declaration_list" {
			continue
		}
		for j := 0; j < int(list.ChildCount()); j++ {
			field := list.Child(j)
			if field.Type() != "field_declaration" {
				continue
			}

			names, embedded := g.fieldNames(field)
			if embedded != "" {
				if decl.Parent == "" {
					decl.Parent = embedded
				} else {
					decl.Implements = append(decl.Implements, embedded)
				}
				continue
			}
			for _, n := range names {
				decl.Members = append(decl.Members, Member{
					Name: n,
					Kind: MemberKindProperty,
					Line: line(field),
				})
			}
		}
	}
}

// fieldNames returns the declared field names, or the embedded type
// label when the field declaration has no names of its own.
func (g *goFacts) fieldNames(field *sitter.Node) (names []string, embedded string) {
	var typeLabel string
	for i := 0; i < int(field.ChildCount()); i++ {
		child := field.Child(i)
		switch child.Type() {
		case "field_identifier":
			names = append(names, g.text(child))
		case "type_identifier":
			typeLabel = g.text(child)
		case "qualified_type":
			label := g.text(child)
			if idx := strings.LastIndexByte(label, '.'); idx >= 0 {
				label = label[idx+1:]
			}
			typeLabel = label
		case "pointer_type":
			label := strings.TrimPrefix(g.text(child), "*")
			if idx := strings.LastIndexByte(label, '.'); idx >= 0 {
				label = label[idx+1:]
			}
			typeLabel = label
		}
	}
	if len(names) == 0 && typeLabel != "" {
		return nil, typeLabel
	}
	return names, ""
}

// extractInterfaceBody collects method signatures; the first embedded
// interface becomes the parent.
func (g *goFacts) extractInterfaceBody(body *sitter.Node, decl *TypeDecl) {
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		switch child.Type() {
		case "method_spec", "method_elem":
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				if gc.Type() == "field_identifier" {
					decl.Members = append(decl.Members, Member{
						Name: g.text(gc),
						Kind: MemberKindMethod,
						Line: line(child),
					})
					break
				}
			}
		case "type_identifier", "qualified_type", "type_elem":
			label := g.text(child)
			if idx := strings.LastIndexByte(label, '.'); idx >= 0 {
				label = label[idx+1:]
			}
			if decl.Parent == "" {
				decl.Parent = label
			} else {
				decl.Implements = append(decl.Implements, label)
			}
		}
	}
}

// processFunctionDecl records exported top-level functions as exports.
func (g *goFacts) processFunctionDecl(node *sitter.Node) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "identifier" {
			name := g.text(child)
			if isExportedGoName(name) {
				g.facts.Exports = append(g.facts.Exports, Export{Name: name, Line: line(node)})
			}
			return
		}
	}
}

// processMethodDecl attaches a method to its receiver's type fact when
// the receiver type is declared in the same file.
func (g *goFacts) processMethodDecl(node *sitter.Node) {
	var receiver, name string

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "parameter_list":
			if receiver == "" {
				receiver = g.receiverType(child)
			}
		case "field_identifier":
			if name == "" {
				name = g.text(child)
			}
		}
	}

	if receiver == "" || name == "" {
		return
	}

	for _, decl := range g.facts.Types {
		if decl.Name == receiver {
			decl.Members = append(decl.Members, Member{
				Name: name,
				Kind: MemberKindMethod,
				Line: line(node),
			})
			return
		}
	}
}

// receiverType extracts the bare type name from a receiver list.
func (g *goFacts) receiverType(list *sitter.Node) string {
	for i := 0; i < int(list.ChildCount()); i++ {
		child := list.Child(i)
		if child.Type() != "parameter_declaration" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			gc := child.Child(j)
			switch gc.Type() {
			case "type_identifier":
				return g.text(gc)
			case "pointer_type", "generic_type":
				label := strings.TrimPrefix(g.text(gc), "*")
				if idx := strings.IndexByte(label, '['); idx >= 0 {
					label = label[:idx]
				}
				return label
			}
		}
	}
	return ""
}

// processValueDecl records exported top-level consts and vars.
func (g *goFacts) processValueDecl(node *sitter.Node) {
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			switch child.Type() {
			case "const_spec", "var_spec":
				for j := 0; j < int(child.ChildCount()); j++ {
					gc := child.Child(j)
					if gc.Type() == "identifier" {
						name := g.text(gc)
						if isExportedGoName(name) {
							g.facts.Exports = append(g.facts.Exports, Export{Name: name, Line: line(child)})
						}
					}
				}
			case "const_spec_list", "var_spec_list":
				walk(child)
			}
		}
	}
	walk(node)
}

// isExportedGoName reports whether a Go identifier is exported.
func isExportedGoName(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

// Compile-time interface compliance check.
var _ Parser = (*GoParser)(nil)
