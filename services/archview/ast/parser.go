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
	"sort"
	"sync"
)

// Default limits applied by all parsers.
const (
	// DefaultMaxFileSize is the largest file a parser will accept (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize is the size above which parsers log a warning (1MB).
	WarnFileSize = 1 * 1024 * 1024
)

// Sentinel errors returned by parsers.
var (
	// ErrFileTooLarge indicates the content exceeds the parser's size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidContent indicates the content is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")
)

// Parser defines the contract for language-specific fact extraction.
//
// Description:
//
//	Parser implementations extract structural facts from source code.
//	Each implementation handles a specific language but produces output
//	in the common FileFacts format defined in types.go. This is the seam
//	where one language's extraction can be swapped for another's without
//	touching the graph builder or anything downstream.
//
// Outputs:
//
//	*FileFacts - Extracted facts. May contain partial results with
//	             FileFacts.Errors populated for syntactically invalid code.
//	error      - Non-nil only for complete failures (oversized file,
//	             invalid UTF-8, canceled context). Syntax errors are
//	             reported in FileFacts.Errors instead, so one broken file
//	             never aborts a whole extraction pass.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use; the scanner calls
//	Parse from multiple goroutines.
type Parser interface {
	// Parse extracts facts from source code.
	//
	// Parameters:
	//   - ctx: Context for cancellation.
	//   - content: Raw source bytes (must be valid UTF-8).
	//   - filePath: Path relative to the base directory, forward slashes.
	Parse(ctx context.Context, content []byte, filePath string) (*FileFacts, error)

	// Language returns the canonical lowercase language name
	// ("typescript", "javascript", "go").
	Language() string

	// Extensions returns the file extensions this parser handles,
	// including the leading dot, lowercase.
	Extensions() []string
}

// Registry manages parser instances by language and file extension.
//
// Thread Safety:
//
//	Registry is fully thread-safe. Registration uses write locks,
//	lookups use read locks.
type Registry struct {
	mu sync.RWMutex

	byLanguage  map[string]Parser
	byExtension map[string]Parser
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byLanguage:  make(map[string]Parser),
		byExtension: make(map[string]Parser),
	}
}

// Register adds a parser under its Language() name and all its
// Extensions(). Already-registered entries are overwritten.
func (r *Registry) Register(parser Parser) {
	if parser == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byLanguage[parser.Language()] = parser
	for _, ext := range parser.Extensions() {
		r.byExtension[ext] = parser
	}
}

// GetByLanguage returns the parser for the given language name.
func (r *Registry) GetByLanguage(language string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	parser, ok := r.byLanguage[language]
	return parser, ok
}

// GetByExtension returns the parser for the given file extension
// (including the dot, e.g. ".ts").
func (r *Registry) GetByExtension(ext string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	parser, ok := r.byExtension[ext]
	return parser, ok
}

// Languages returns all registered language names, sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	languages := make([]string, 0, len(r.byLanguage))
	for lang := range r.byLanguage {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	return languages
}

// Extensions returns all registered file extensions, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	extensions := make([]string, 0, len(r.byExtension))
	for ext := range r.byExtension {
		extensions = append(extensions, ext)
	}
	sort.Strings(extensions)
	return extensions
}
