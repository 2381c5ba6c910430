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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// TypeScriptParserOption configures a TypeScriptParser instance.
type TypeScriptParserOption func(*TypeScriptParser)

// WithTypeScriptMaxFileSize sets the maximum file size the parser will accept.
func WithTypeScriptMaxFileSize(bytes int64) TypeScriptParserOption {
	return func(p *TypeScriptParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// TypeScriptParser implements the Parser interface for TypeScript.
//
// Description:
//
//	TypeScriptParser uses tree-sitter to parse TypeScript source files
//	and extract import, type-declaration, and export facts. It is
//	error-tolerant: syntactically invalid files yield partial facts with
//	FileFacts.Errors populated rather than a hard failure.
//
// Thread Safety:
//
//	TypeScriptParser instances are safe for concurrent use. Each Parse
//	call creates its own tree-sitter parser instance internally.
//
// Example:
//
//	parser := NewTypeScriptParser()
//	facts, err := parser.Parse(ctx, []byte("export class Foo {}"), "src/foo.ts")
//	if err != nil {
//	    return err
//	}
//	for _, decl := range facts.Types {
//	    fmt.Printf("%s %s\n", decl.Kind, decl.Name)
//	}
type TypeScriptParser struct {
	maxFileSize int64
}

// NewTypeScriptParser creates a new TypeScriptParser with the given options.
func NewTypeScriptParser(opts ...TypeScriptParserOption) *TypeScriptParser {
	p := &TypeScriptParser{
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts facts from TypeScript source code.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before and after parsing;
//     tree-sitter parsing itself cannot be interrupted mid-parse.
//   - content: Raw source bytes. Must be valid UTF-8.
//   - filePath: Path relative to the base directory, forward slashes.
//     The .tsx extension selects the TSX grammar.
//
// Outputs:
//   - *FileFacts: Extracted facts, possibly partial with Errors set.
//   - error: Non-nil for complete failures only (ErrFileTooLarge,
//     ErrInvalidContent, canceled context).
//
// Thread Safety: safe for concurrent use.
func (p *TypeScriptParser) Parse(ctx context.Context, content []byte, filePath string) (*FileFacts, error) {
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
	if strings.HasSuffix(filePath, ".tsx") {
		parser.SetLanguage(tsx.GetLanguage())
	} else {
		parser.SetLanguage(typescript.GetLanguage())
	}

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	facts := newFileFacts(filePath, "typescript", content)

	root := tree.RootNode()
	if root == nil {
		facts.Errors = append(facts.Errors, "tree-sitter returned nil root node")
		return facts, nil
	}
	if root.HasError() {
		facts.Errors = append(facts.Errors, "source contains syntax errors")
	}

	walker := &scriptFacts{content: content, facts: facts}
	walker.extract(root)

	if err := facts.Validate(); err != nil {
		return nil, fmt.Errorf("fact validation failed: %w", err)
	}

	return facts, nil
}

// Language returns "typescript".
func (p *TypeScriptParser) Language() string {
	return "typescript"
}

// Extensions returns the TypeScript file extensions.
func (p *TypeScriptParser) Extensions() []string {
	return []string{".ts", ".tsx", ".mts", ".cts"}
}

// newFileFacts builds an empty FileFacts with the content hash set.
func newFileFacts(filePath, language string, content []byte) *FileFacts {
	hash := sha256.Sum256(content)
	return &FileFacts{
		FilePath: filePath,
		Language: language,
		Imports:  make([]Import, 0),
		Types:    make([]*TypeDecl, 0),
		Exports:  make([]Export, 0),
		Errors:   make([]string, 0),
		Hash:     hex.EncodeToString(hash[:]),
	}
}

// Compile-time interface compliance check.
var _ Parser = (*TypeScriptParser)(nil)
