// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"nickandperla.net/sxc/internal/output"
	"nickandperla.net/sxc/internal/token"
)

// Scope constrains which forms are legal at the current evaluation point.
type Scope int

const (
	// ScopeModule is the top level of a file. Definitions live here.
	ScopeModule Scope = iota
	// ScopeBody is the inside of a function or block. Statements live here.
	ScopeBody
	// ScopeExpressionOrStatement is an argument position where either an
	// expression or a statement is acceptable.
	ScopeExpressionOrStatement
)

// String returns the string representation of a scope.
func (s Scope) String() string {
	switch s {
	case ScopeModule:
		return "module"
	case ScopeBody:
		return "body"
	case ScopeExpressionOrStatement:
		return "expression-or-statement"
	}
	return "UNKNOWN"
}

// Context is the dynamic environment handed to every invocation: the
// current scope, the definition being built (for blame and ownership of
// generated fragments), whether the code being generated is reachable from
// the root and therefore must compile, and the fragment stream invocations
// splice into.
type Context struct {
	Scope      Scope
	Definition *ObjectDefinition
	IsRequired bool

	// Module is the fragment stream top-level definitions splice into.
	Module *output.GeneratorOutput

	// DefinitionName blames errors when Definition is not yet created.
	DefinitionName *token.Token
}
