// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package sema

import (
	"github.com/gogpu/glslopt/diag"
	"github.com/gogpu/glslopt/glsl"
	"github.com/gogpu/glslopt/types"
)

// SymbolKind classifies a symbol.
type SymbolKind uint8

const (
	SymVariable SymbolKind = iota
	SymStruct
)

// Symbol is a named entity visible in a scope.
type Symbol struct {
	Name    string
	Kind    SymbolKind
	Type    *types.Type
	Storage glsl.Storage
	// Ref is copied onto every identifier that resolves to the symbol.
	Ref   glsl.Ref
	Depth int
	// ReadOnly marks variables that cannot be assigned.
	ReadOnly bool
	// Const holds the value of a constant scalar.
	Const *glsl.ConstValue
	// Decl is the declarator of user variables; Decl.Used is set on the
	// first reference.
	Decl *glsl.VarDecl
}

type scope struct {
	symbols map[string]*Symbol
	// order keeps declaration order for deterministic unused warnings.
	order []*Symbol
}

func (a *analyzer) pushScope() {
	a.scopes = append(a.scopes, &scope{symbols: make(map[string]*Symbol)})
}

// popScope drops the innermost scope, warning about locals that were
// never referenced.
func (a *analyzer) popScope() {
	top := a.scopes[len(a.scopes)-1]
	for _, sym := range top.order {
		if sym.Decl != nil && sym.Ref.Kind == glsl.RefLocal && !sym.Decl.Used {
			a.warnf(sym.Decl.Loc, "unused variable '%s'", sym.Name)
		}
	}
	a.scopes = a.scopes[:len(a.scopes)-1]
}

func (a *analyzer) depth() int {
	return len(a.scopes) - 1
}

// declare adds sym to the innermost scope. It reports a redefinition if
// the name is already declared in that scope.
func (a *analyzer) declare(sym *Symbol, pos diag.Position) bool {
	top := a.scopes[len(a.scopes)-1]
	if _, exists := top.symbols[sym.Name]; exists {
		a.errorf(pos, "redefinition of '%s'", sym.Name)
		return false
	}
	if a.depth() == 0 {
		if _, exists := a.funcs[sym.Name]; exists {
			a.errorf(pos, "'%s' redeclared as a different kind of symbol", sym.Name)
			return false
		}
	}
	sym.Depth = a.depth()
	top.symbols[sym.Name] = sym
	top.order = append(top.order, sym)
	return true
}

// lookup finds the innermost symbol with the given name, falling back to
// the builtin variables of the current stage and profile.
func (a *analyzer) lookup(name string) *Symbol {
	for i := len(a.scopes) - 1; i >= 0; i-- {
		if sym, ok := a.scopes[i].symbols[name]; ok {
			return sym
		}
	}
	return a.builtinVars[name]
}
