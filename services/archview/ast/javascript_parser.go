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
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// JavaScriptParserOption configures a JavaScriptParser instance.
type JavaScriptParserOption func(*JavaScriptParser)

// WithJavaScriptMaxFileSize sets the maximum file size the parser will accept.
func WithJavaScriptMaxFileSize(bytes int64) JavaScriptParserOption {
	return func(p *JavaScriptParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// JavaScriptParser implements the Parser interface for JavaScript.
//
// The JavaScript grammar shares its fact extraction with the TypeScript
// parser; the differences (identifier class names, bare class_heritage,
// CommonJS require) are handled inside the shared walker. JSX files use
// the same grammar.
//
// Thread Safety: safe for concurrent use; a fresh tree-sitter parser is
// created per call.
type JavaScriptParser struct {
	maxFileSize int64
}

// NewJavaScriptParser creates a new JavaScriptParser with the given options.
func NewJavaScriptParser(opts ...JavaScriptParserOption) *JavaScriptParser {
	p := &JavaScriptParser{
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts facts from JavaScript source code.
//
// Same contract as TypeScriptParser.Parse: complete failures return an
// error, syntax errors yield partial facts with Errors populated.
func (p *JavaScriptParser) Parse(ctx context.Context, content []byte, filePath string) (*FileFacts, error) {
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
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	facts := newFileFacts(filePath, "javascript", content)

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

// Language returns "javascript".
func (p *JavaScriptParser) Language() string {
	return "javascript"
}

// Extensions returns the JavaScript file extensions.
func (p *JavaScriptParser) Extensions() []string {
	return []string{".js", ".jsx", ".mjs", ".cjs"}
}

// Compile-time interface compliance check.
var _ Parser = (*JavaScriptParser)(nil)
