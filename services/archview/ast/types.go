// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast provides the language-agnostic fact model and the parser
// contract for archview's extraction adapters.
//
// Each adapter (TypeScript, JavaScript, Go, ...) turns one source file
// into a FileFacts value: the imports it declares, the types it defines,
// and the symbols it exports. FileFacts are immutable observations - they
// carry no resolution; turning raw import specifiers into graph edges is
// the graph builder's job.
//
// Design principles:
//   - Language-agnostic: the same fact shape for every supported language
//   - Per-file isolation: one file's parse failure never affects another
//   - Determinism: facts are a pure function of file content
package ast

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultExportName is the sentinel used for unnamed default exports
// ("export default class { ... }", "export default 42").
const DefaultExportName = "default"

// TypeKind classifies a type declaration.
type TypeKind int

const (
	// TypeKindClass represents a class declaration.
	TypeKindClass TypeKind = iota

	// TypeKindInterface represents an interface declaration.
	TypeKindInterface

	// TypeKindStruct represents a struct declaration (Go).
	TypeKindStruct
)

var typeKindNames = map[TypeKind]string{
	TypeKindClass:     "class",
	TypeKindInterface: "interface",
	TypeKindStruct:    "struct",
}

// String returns the string representation of the TypeKind.
func (k TypeKind) String() string {
	if name, ok := typeKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON serializes the kind as a JSON string for readability.
func (k TypeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// ParseTypeKind is the inverse of String. Unknown names parse as class.
func ParseTypeKind(name string) TypeKind {
	for k, n := range typeKindNames {
		if n == name {
			return k
		}
	}
	return TypeKindClass
}

// MemberKind classifies a member of a type declaration.
type MemberKind int

const (
	// MemberKindProperty is a field or property.
	MemberKindProperty MemberKind = iota

	// MemberKindMethod is a method or method signature.
	MemberKindMethod
)

// String returns the string representation of the MemberKind.
func (k MemberKind) String() string {
	if k == MemberKindMethod {
		return "method"
	}
	return "property"
}

// AccessorKind distinguishes getter/setter accessors from plain members.
type AccessorKind int

const (
	// AccessorNone marks a plain member.
	AccessorNone AccessorKind = iota

	// AccessorGetter marks a get accessor.
	AccessorGetter

	// AccessorSetter marks a set accessor.
	AccessorSetter
)

// String returns the string representation of the AccessorKind.
func (k AccessorKind) String() string {
	switch k {
	case AccessorGetter:
		return "get"
	case AccessorSetter:
		return "set"
	default:
		return ""
	}
}

// Member is one member fact of a type declaration.
//
// Members are recorded in declaration order; canonical ordering for
// serialization is applied downstream, never here.
type Member struct {
	// Name is the member's identifier as it appears in source.
	Name string `json:"name"`

	// Kind indicates property vs method.
	Kind MemberKind `json:"kind"`

	// Static is true for static members.
	Static bool `json:"static,omitempty"`

	// Accessor marks get/set accessors. AccessorNone for plain members.
	Accessor AccessorKind `json:"accessor,omitempty"`

	// Line is the 1-indexed declaration line.
	Line int `json:"line"`
}

// TypeDecl is a type-declaration fact: one class, interface, or struct.
type TypeDecl struct {
	// Name is the declared type name.
	Name string `json:"name"`

	// Kind classifies the declaration.
	Kind TypeKind `json:"kind"`

	// Parent is the extends label as written in source, or "" if the
	// declaration has no parent. Resolution to a known type happens in
	// the graph builder; here it is just a label.
	Parent string `json:"parent,omitempty"`

	// Implements lists implemented interface labels. The hierarchy
	// treats Parent as the single inheritance edge; these are retained
	// for display only.
	Implements []string `json:"implements,omitempty"`

	// Members in declaration order.
	Members []Member `json:"members,omitempty"`

	// Exported is true when the type is visible outside its file.
	Exported bool `json:"exported"`

	// Line is the 1-indexed declaration line.
	Line int `json:"line"`
}

// Import is an import fact: one import statement from one source file.
type Import struct {
	// Path is the raw specifier exactly as written ("./graph/builder",
	// "react", "fmt").
	Path string `json:"path"`

	// Names lists specific bound names for selective imports.
	Names []string `json:"names,omitempty"`

	// Alias is the local binding for default or namespace imports.
	Alias string `json:"alias,omitempty"`

	// IsDefault is true for default imports.
	IsDefault bool `json:"is_default,omitempty"`

	// IsNamespace is true for namespace imports (import * as x).
	IsNamespace bool `json:"is_namespace,omitempty"`

	// IsRelative is true when the specifier is file-relative and can
	// participate in module-graph resolution. Adapters normalize their
	// language's notion of an in-project import to a relative specifier
	// so the builder stays language-agnostic.
	IsRelative bool `json:"is_relative,omitempty"`

	// Line is the 1-indexed line of the import statement.
	Line int `json:"line"`
}

// Export is an exported-symbol fact.
type Export struct {
	// Name is the exported identifier, or DefaultExportName for an
	// unnamed default export.
	Name string `json:"name"`

	// Line is the 1-indexed line of the export.
	Line int `json:"line"`
}

// IsDefault reports whether this export is the unnamed default.
func (e Export) IsDefault() bool {
	return e.Name == DefaultExportName
}

// FileFacts is the complete set of structural facts extracted from one
// source file in one extraction pass.
//
// FileFacts values are produced once per file per pass and never
// mutated afterwards. A file that fails to parse still yields a
// FileFacts value with Errors populated and the fact lists empty or
// partial - the rest of the pass continues.
type FileFacts struct {
	// FilePath is the path to the parsed file, relative to the base
	// directory, using forward slashes.
	FilePath string `json:"file_path"`

	// Language is the adapter's canonical language name.
	Language string `json:"language"`

	// Imports lists every import statement in the file.
	Imports []Import `json:"imports,omitempty"`

	// Types lists every type declaration in the file, in source order.
	Types []*TypeDecl `json:"types,omitempty"`

	// Exports lists every exported symbol in the file.
	Exports []Export `json:"exports,omitempty"`

	// Errors contains non-fatal parse errors. A file with errors is
	// reported as a warning by the scanner but does not abort the pass.
	Errors []string `json:"errors,omitempty"`

	// Hash is the SHA256 hex digest of the file content at parse time.
	Hash string `json:"hash"`
}

// HasErrors returns true if parsing recorded any non-fatal errors.
func (f *FileFacts) HasErrors() bool {
	return len(f.Errors) > 0
}

// ValidationError represents a validation failure with field context.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks that the FileFacts has valid field values.
//
// Returns nil if valid, or a ValidationError describing the first
// invalid field. Paths must be non-empty, slash-separated, and free of
// traversal sequences; declaration lines must be 1-indexed.
func (f *FileFacts) Validate() error {
	if f.FilePath == "" {
		return ValidationError{Field: "FilePath", Message: "must not be empty"}
	}
	if strings.Contains(f.FilePath, "..") {
		return ValidationError{Field: "FilePath", Message: "must not contain path traversal (..)"}
	}
	if f.Language == "" {
		return ValidationError{Field: "Language", Message: "must not be empty"}
	}

	for i, imp := range f.Imports {
		if imp.Path == "" {
			return ValidationError{
				Field:   fmt.Sprintf("Imports[%d].Path", i),
				Message: "must not be empty",
			}
		}
		if imp.Line < 1 {
			return ValidationError{
				Field:   fmt.Sprintf("Imports[%d].Line", i),
				Message: "must be >= 1 (1-indexed)",
			}
		}
	}

	for i, decl := range f.Types {
		if decl == nil {
			return ValidationError{
				Field:   fmt.Sprintf("Types[%d]", i),
				Message: "must not be nil",
			}
		}
		if decl.Name == "" {
			return ValidationError{
				Field:   fmt.Sprintf("Types[%d].Name", i),
				Message: "must not be empty",
			}
		}
		if decl.Line < 1 {
			return ValidationError{
				Field:   fmt.Sprintf("Types[%d].Line", i),
				Message: "must be >= 1 (1-indexed)",
			}
		}
		for j, m := range decl.Members {
			if m.Name == "" {
				return ValidationError{
					Field:   fmt.Sprintf("Types[%d].Members[%d].Name", i, j),
					Message: "must not be empty",
				}
			}
		}
	}

	for i, exp := range f.Exports {
		if exp.Name == "" {
			return ValidationError{
				Field:   fmt.Sprintf("Exports[%d].Name", i),
				Message: "must not be empty",
			}
		}
	}

	return nil
}
