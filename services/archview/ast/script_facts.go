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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// scriptFacts walks a tree-sitter parse tree for the ECMAScript family.
//
// The TypeScript and JavaScript grammars share most node types; where
// they diverge (class names, heritage clauses, field definitions) the
// walker accepts both spellings so the two adapters can share one
// extraction pass.
type scriptFacts struct {
	content []byte
	facts   *FileFacts
}

// extract walks all top-level statements and records import, type, and
// export facts.
func (s *scriptFacts) extract(root *sitter.Node) {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "import_statement":
			s.processImportStatement(child)
		case "lexical_declaration", "variable_declaration":
			s.processCommonJSRequire(child)
		case "export_statement":
			s.processExportStatement(child)
		case "class_declaration", "abstract_class_declaration":
			if decl := s.processClass(child); decl != nil {
				s.facts.Types = append(s.facts.Types, decl)
			}
		case "interface_declaration":
			if decl := s.processInterface(child); decl != nil {
				s.facts.Types = append(s.facts.Types, decl)
			}
		}
	}
}

// text returns the source text of a node.
func (s *scriptFacts) text(node *sitter.Node) string {
	return string(s.content[node.StartByte():node.EndByte()])
}

// line returns the 1-indexed start line of a node.
func line(node *sitter.Node) int {
	return int(node.StartPoint().Row + 1)
}

// processImportStatement handles ES module import statements.
func (s *scriptFacts) processImportStatement(node *sitter.Node) {
	var modulePath string
	var names []string
	var alias string
	var isDefault bool
	var isNamespace bool

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import_clause":
			s.processImportClause(child, &names, &alias, &isDefault, &isNamespace)
		case "string":
			modulePath = s.extractStringContent(child)
		}
	}

	if modulePath == "" {
		return
	}

	s.facts.Imports = append(s.facts.Imports, Import{
		Path:        modulePath,
		Names:       names,
		Alias:       alias,
		IsDefault:   isDefault,
		IsNamespace: isNamespace,
		IsRelative:  isRelativeSpecifier(modulePath),
		Line:        line(node),
	})
}

// processImportClause extracts the bound names of an import statement.
func (s *scriptFacts) processImportClause(node *sitter.Node, names *[]string, alias *string, isDefault, isNamespace *bool) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier":
			// Default import: import foo from 'bar'
			*alias = s.text(child)
			*isDefault = true
		case "namespace_import":
			// Namespace import: import * as foo from 'bar'
			*isNamespace = true
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				if gc.Type() == "identifier" {
					*alias = s.text(gc)
				}
			}
		case "named_imports":
			// Named imports: import { a, b } from 'bar'
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				if gc.Type() == "import_specifier" {
					if name := s.extractSpecifierName(gc); name != "" {
						*names = append(*names, name)
					}
				}
			}
		}
	}
}

// extractSpecifierName returns the local binding of an import or export
// specifier. For "a as b" the binding is b.
func (s *scriptFacts) extractSpecifierName(node *sitter.Node) string {
	var name string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "identifier" {
			// Last identifier wins: plain specifiers have one, aliased
			// specifiers bind the second.
			name = s.text(child)
		}
	}
	return name
}

// processCommonJSRequire handles const foo = require('bar') imports.
func (s *scriptFacts) processCommonJSRequire(node *sitter.Node) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "variable_declarator" {
			continue
		}

		var name, modulePath string
		for j := 0; j < int(child.ChildCount()); j++ {
			gc := child.Child(j)
			switch gc.Type() {
			case "identifier":
				name = s.text(gc)
			case "call_expression":
				modulePath = s.extractRequireCall(gc)
			}
		}

		if modulePath != "" && name != "" {
			s.facts.Imports = append(s.facts.Imports, Import{
				Path:       modulePath,
				Alias:      name,
				IsDefault:  true,
				IsRelative: isRelativeSpecifier(modulePath),
				Line:       line(node),
			})
		}
	}
}

// extractRequireCall extracts the module path from a require() call.
func (s *scriptFacts) extractRequireCall(node *sitter.Node) string {
	var funcName, modulePath string

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier":
			funcName = s.text(child)
		case "arguments":
			for j := 0; j < int(child.ChildCount()); j++ {
				arg := child.Child(j)
				if arg.Type() == "string" {
					modulePath = s.extractStringContent(arg)
				}
			}
		}
	}

	if funcName == "require" {
		return modulePath
	}
	return ""
}

// extractStringContent returns a string literal without its quotes.
func (s *scriptFacts) extractStringContent(node *sitter.Node) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "string_fragment" {
			return s.text(child)
		}
	}
	// Fallback: strip surrounding quote characters.
	return strings.Trim(s.text(node), `"'`)
}

// processExportStatement handles export statements of every shape:
// declarations, named re-exports, and default exports.
func (s *scriptFacts) processExportStatement(node *sitter.Node) {
	isDefault := false

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "default":
			isDefault = true

		case "class_declaration", "abstract_class_declaration", "class":
			// An unnamed default class parses as a class expression
			// ("class"), not a class_declaration.
			decl := s.processClass(child)
			if decl == nil {
				// Unnamed default class: export default class { ... }
				if isDefault {
					s.facts.Exports = append(s.facts.Exports, Export{Name: DefaultExportName, Line: line(node)})
				}
				continue
			}
			decl.Exported = true
			s.facts.Types = append(s.facts.Types, decl)
			s.facts.Exports = append(s.facts.Exports, Export{Name: decl.Name, Line: line(node)})

		case "interface_declaration":
			if decl := s.processInterface(child); decl != nil {
				decl.Exported = true
				s.facts.Types = append(s.facts.Types, decl)
				s.facts.Exports = append(s.facts.Exports, Export{Name: decl.Name, Line: line(node)})
			}

		case "function_declaration", "generator_function_declaration",
			"type_alias_declaration", "enum_declaration":
			if name := s.declaredName(child); name != "" {
				s.facts.Exports = append(s.facts.Exports, Export{Name: name, Line: line(node)})
			} else if isDefault {
				s.facts.Exports = append(s.facts.Exports, Export{Name: DefaultExportName, Line: line(node)})
			}

		case "lexical_declaration", "variable_declaration":
			for _, name := range s.declaredVariableNames(child) {
				s.facts.Exports = append(s.facts.Exports, Export{Name: name, Line: line(node)})
			}

		case "export_clause":
			// export { a, b as c }
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				if gc.Type() == "export_specifier" {
					if name := s.extractSpecifierName(gc); name != "" {
						s.facts.Exports = append(s.facts.Exports, Export{Name: name, Line: line(node)})
					}
				}
			}

		case "identifier", "object", "array", "arrow_function", "call_expression",
			"number", "string", "new_expression":
			// export default <expression>
			if isDefault {
				s.facts.Exports = append(s.facts.Exports, Export{Name: DefaultExportName, Line: line(node)})
				isDefault = false
			}
		}
	}
}

// declaredName returns the identifier of a named declaration node.
func (s *scriptFacts) declaredName(node *sitter.Node) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier", "type_identifier":
			return s.text(child)
		}
	}
	return ""
}

// declaredVariableNames returns the names bound by a variable or
// lexical declaration.
func (s *scriptFacts) declaredVariableNames(node *sitter.Node) []string {
	var names []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "variable_declarator" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			gc := child.Child(j)
			if gc.Type() == "identifier" {
				names = append(names, s.text(gc))
				break
			}
		}
	}
	return names
}

// processClass extracts a class declaration with its heritage and members.
//
// Returns nil for anonymous classes (export default class { ... }).
func (s *scriptFacts) processClass(node *sitter.Node) *TypeDecl {
	decl := &TypeDecl{
		Kind: TypeKindClass,
		Line: line(node),
	}
	var bodyNode *sitter.Node

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "type_identifier", "identifier":
			// TS names classes with type_identifier, JS with identifier.
			if decl.Name == "" {
				decl.Name = s.text(child)
			}
		case "class_heritage":
			s.extractHeritage(child, decl)
		case "class_body":
			bodyNode = child
		}
	}

	if decl.Name == "" {
		return nil
	}

	if bodyNode != nil {
		s.extractClassMembers(bodyNode, decl)
	}
	return decl
}

// extractHeritage fills Parent and Implements from a class_heritage node.
//
// TypeScript wraps the clauses (extends_clause, implements_clause);
// JavaScript puts the extended expression directly under class_heritage.
func (s *scriptFacts) extractHeritage(node *sitter.Node, decl *TypeDecl) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "extends_clause":
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				switch gc.Type() {
				case "identifier", "type_identifier", "member_expression", "generic_type":
					if decl.Parent == "" {
						decl.Parent = s.heritageLabel(gc)
					}
				}
			}
		case "implements_clause":
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				switch gc.Type() {
				case "type_identifier", "generic_type", "nested_type_identifier":
					decl.Implements = append(decl.Implements, s.heritageLabel(gc))
				}
			}
		case "identifier", "member_expression":
			// JavaScript grammar: class Foo extends Bar
			if decl.Parent == "" {
				decl.Parent = s.heritageLabel(child)
			}
		}
	}
}

// heritageLabel normalizes a heritage expression to a bare name label:
// generic arguments are stripped, qualified names keep only the final
// segment ("ns.Base" -> "Base").
func (s *scriptFacts) heritageLabel(node *sitter.Node) string {
	label := s.text(node)
	if idx := strings.IndexByte(label, '<'); idx >= 0 {
		label = label[:idx]
	}
	if idx := strings.LastIndexByte(label, '.'); idx >= 0 {
		label = label[idx+1:]
	}
	return strings.TrimSpace(label)
}

// extractClassMembers extracts methods and fields from a class body.
func (s *scriptFacts) extractClassMembers(body *sitter.Node, decl *TypeDecl) {
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		switch child.Type() {
		case "method_definition":
			if m, ok := s.processMethodDefinition(child); ok {
				decl.Members = append(decl.Members, m)
			}
		case "public_field_definition", "field_definition":
			if m, ok := s.processFieldDefinition(child); ok {
				decl.Members = append(decl.Members, m)
			}
		}
	}
}

// processMethodDefinition extracts one method, constructor, or accessor.
func (s *scriptFacts) processMethodDefinition(node *sitter.Node) (Member, bool) {
	m := Member{Kind: MemberKindMethod, Line: line(node)}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "static":
			m.Static = true
		case "get":
			m.Accessor = AccessorGetter
		case "set":
			m.Accessor = AccessorSetter
		case "property_identifier", "private_property_identifier", "computed_property_name":
			m.Name = s.text(child)
		}
	}

	// Accessors describe a property surface, not behavior.
	if m.Accessor != AccessorNone {
		m.Kind = MemberKindProperty
	}

	return m, m.Name != ""
}

// processFieldDefinition extracts one field declaration.
func (s *scriptFacts) processFieldDefinition(node *sitter.Node) (Member, bool) {
	m := Member{Kind: MemberKindProperty, Line: line(node)}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "static":
			m.Static = true
		case "property_identifier", "private_property_identifier":
			m.Name = s.text(child)
		}
	}

	return m, m.Name != ""
}

// processInterface extracts a TypeScript interface declaration.
func (s *scriptFacts) processInterface(node *sitter.Node) *TypeDecl {
	decl := &TypeDecl{
		Kind: TypeKindInterface,
		Line: line(node),
	}
	var bodyNode *sitter.Node

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "type_identifier":
			decl.Name = s.text(child)
		case "extends_type_clause", "extends_clause":
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				switch gc.Type() {
				case "type_identifier", "generic_type", "nested_type_identifier":
					if decl.Parent == "" {
						decl.Parent = s.heritageLabel(gc)
					} else {
						decl.Implements = append(decl.Implements, s.heritageLabel(gc))
					}
				}
			}
		case "interface_body", "object_type":
			bodyNode = child
		}
	}

	if decl.Name == "" {
		return nil
	}

	if bodyNode != nil {
		for i := 0; i < int(bodyNode.ChildCount()); i++ {
			child := bodyNode.Child(i)
			switch child.Type() {
			case "property_signature":
				if name := s.signatureName(child); name != "" {
					decl.Members = append(decl.Members, Member{
						Name: name,
						Kind: MemberKindProperty,
						Line: line(child),
					})
				}
			case "method_signature":
				if name := s.signatureName(child); name != "" {
					decl.Members = append(decl.Members, Member{
						Name: name,
						Kind: MemberKindMethod,
						Line: line(child),
					})
				}
			}
		}
	}

	return decl
}

// signatureName returns the property_identifier of an interface member.
func (s *scriptFacts) signatureName(node *sitter.Node) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "property_identifier" {
			return s.text(child)
		}
	}
	return ""
}

// isRelativeSpecifier reports whether an import specifier is
// file-relative and therefore a candidate for module-graph resolution.
func isRelativeSpecifier(path string) bool {
	return strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") || path == "." || path == ".."
}
