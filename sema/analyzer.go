// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package sema

import (
	"strings"

	"github.com/gogpu/glslopt/diag"
	"github.com/gogpu/glslopt/glsl"
	"github.com/gogpu/glslopt/types"
)

// Stage is the pipeline stage a shader is compiled for.
type Stage uint8

const (
	StageVertex Stage = iota
	StageFragment
)

func (s Stage) String() string {
	if s == StageFragment {
		return "fragment"
	}
	return "vertex"
}

// Options configures analysis.
type Options struct {
	Stage Stage
	// Embedded selects the GLSL ES profile.
	Embedded bool
}

// Result is the outcome of semantic analysis. The analyzed unit itself
// carries the annotations.
type Result struct {
	Diagnostics []diag.Diagnostic
	// Main is the definition of the entry point, nil if missing.
	Main *glsl.FuncDecl
	// Functions maps definition ids to function definitions.
	Functions map[glsl.DeclID]*glsl.FuncDecl
	// DefaultFloatPrecision is the global default float precision.
	DefaultFloatPrecision glsl.Precision
}

// HasErrors reports whether analysis found any error.
func (r *Result) HasErrors() bool {
	return diag.HasErrors(r.Diagnostics)
}

// funcSig is a user function signature, merging its prototypes and its
// definition.
type funcSig struct {
	name    string
	params  []*types.Type
	quals   []glsl.Storage
	ret     *types.Type
	first   *glsl.FuncDecl
	def     *glsl.FuncDecl
	callees []*funcSig
	// undefinedReported suppresses duplicate missing-definition errors.
	undefinedReported bool
}

func (s *funcSig) key() string {
	parts := make([]string, len(s.params))
	for i, p := range s.params {
		parts[i] = p.String()
	}
	return strings.Join(parts, ",")
}

type analyzer struct {
	opts   Options
	diags  []diag.Diagnostic
	result *Result

	scopes      []*scope
	builtinVars map[string]*Symbol
	funcs       map[string][]*funcSig
	sigOf       map[*glsl.FuncDecl]*funcSig

	curFunc   *funcSig
	loopDepth int

	defaultFloat glsl.Precision
	precWarned   bool
	wroteColor   bool
	wroteData    bool
}

// Analyze resolves names and types in tu, annotating the AST in place.
// Analysis continues after errors; failing expressions are given
// types.Invalid.
func Analyze(tu *glsl.TranslationUnit, opts Options) *Result {
	a := &analyzer{
		opts:        opts,
		result:      &Result{Functions: make(map[glsl.DeclID]*glsl.FuncDecl)},
		builtinVars: builtinVariables(opts.Stage, opts.Embedded),
		funcs:       make(map[string][]*funcSig),
		sigOf:       make(map[*glsl.FuncDecl]*funcSig),
	}
	a.pushScope()

	a.collect(tu)
	for _, d := range tu.Decls {
		a.checkDecl(d)
	}
	a.checkMain()
	a.checkRecursion()
	a.scopes = nil

	a.result.Diagnostics = a.diags
	a.result.DefaultFloatPrecision = a.defaultFloat
	return a.result
}

func (a *analyzer) errorf(pos diag.Position, format string, args ...any) {
	a.diags = append(a.diags, diag.Errorf(diag.KindSemantic, pos, format, args...))
}

func (a *analyzer) warnf(pos diag.Position, format string, args ...any) {
	a.diags = append(a.diags, diag.Warnf(pos, format, args...))
}

// Pass (a): structs and function signatures.

func (a *analyzer) collect(tu *glsl.TranslationUnit) {
	for _, d := range tu.Decls {
		switch d := d.(type) {
		case *glsl.VarDeclList:
			if d.Type.Struct != nil {
				a.resolveType(d.Type)
			}
		case *glsl.FuncDecl:
			a.collectFunc(d)
		}
	}
}

func (a *analyzer) collectFunc(fn *glsl.FuncDecl) {
	sig := &funcSig{name: fn.Name, ret: a.resolveType(fn.Return), first: fn}
	a.checkReservedName(fn.Name, fn.Loc)
	if fn.Return.Struct != nil {
		a.errorf(fn.Loc, "function '%s' cannot declare a struct in its return type", fn.Name)
	}
	if a.opts.Embedded && IsBuiltinFunction(fn.Name) {
		a.errorf(fn.Loc, "redefinition of built-in function '%s'", fn.Name)
	}
	for _, p := range fn.Params {
		t := a.resolveType(p.Type)
		if p.IsArray {
			t = a.arrayType(t, p.ArrayLen, p.Loc, false)
		}
		if t.Kind == types.Void {
			a.errorf(p.Loc, "parameter '%s' cannot have type void", p.Name)
			t = types.Invalid
		}
		p.ResolvedType = t
		storage := p.Qual.Storage
		if storage == glsl.StorageNone {
			storage = glsl.StorageIn
		}
		sig.params = append(sig.params, t)
		sig.quals = append(sig.quals, storage)
	}
	if sym := a.scopes[0].symbols[fn.Name]; sym != nil {
		a.errorf(fn.Loc, "'%s' redeclared as a different kind of symbol", fn.Name)
		return
	}

	for _, existing := range a.funcs[fn.Name] {
		if existing.key() != sig.key() {
			continue
		}
		if !types.Equal(existing.ret, sig.ret) {
			a.errorf(fn.Loc, "function '%s' redeclared with a different return type", fn.Name)
		}
		for i := range existing.quals {
			if existing.quals[i] != sig.quals[i] {
				a.errorf(fn.Loc, "function '%s' redeclared with different parameter qualifiers", fn.Name)
				break
			}
		}
		if fn.Body != nil {
			if existing.def != nil {
				a.errorf(fn.Loc, "redefinition of function '%s'", fn.Name)
			} else {
				existing.def = fn
				a.result.Functions[fn.ID] = fn
			}
		}
		a.sigOf[fn] = existing
		return
	}

	if fn.Body != nil {
		sig.def = fn
		a.result.Functions[fn.ID] = fn
	}
	a.funcs[fn.Name] = append(a.funcs[fn.Name], sig)
	a.sigOf[fn] = sig
}

// Pass (b): declarations and bodies in source order.

func (a *analyzer) checkDecl(d glsl.Decl) {
	switch d := d.(type) {
	case *glsl.VarDeclList:
		a.checkVarDeclList(d, true)
	case *glsl.PrecisionDecl:
		a.checkPrecisionDecl(d)
	case *glsl.InvariantDecl:
		a.checkInvariantDecl(d)
	case *glsl.FuncDecl:
		if d.Body != nil {
			a.checkFunction(d)
		}
	}
}

func (a *analyzer) checkPrecisionDecl(d *glsl.PrecisionDecl) {
	t := a.resolveType(d.Type)
	switch {
	case t.Kind == types.Float:
		a.defaultFloat = d.Precision
	case t.Kind == types.Int, t.Kind == types.Sampler:
	default:
		a.errorf(d.Loc, "default precision can only be set for float, int and sampler types")
	}
}

func (a *analyzer) checkInvariantDecl(d *glsl.InvariantDecl) {
	for _, id := range d.Names {
		sym := a.lookup(id.Name)
		if sym == nil {
			a.errorf(id.Loc, "'%s' undeclared", id.Name)
			continue
		}
		id.Ref = sym.Ref
		id.Info.Type = sym.Type
		isOutput := sym.Storage == glsl.StorageVarying || sym.Ref.Kind == glsl.RefBuiltin && (sym.Ref.Output || sym.Storage == glsl.StorageIn)
		if !isOutput || sym.Depth > 0 {
			a.errorf(id.Loc, "'%s' is not a varying and cannot be declared invariant", id.Name)
		}
	}
}

func (a *analyzer) checkFunction(fn *glsl.FuncDecl) {
	sig := a.sigOf[fn]
	if sig == nil {
		return
	}
	a.curFunc = sig
	a.pushScope()
	for i, p := range fn.Params {
		a.notePrecision(p.ResolvedType, p.Qual.Precision, p.Loc)
		if p.Name == "" {
			continue
		}
		a.checkReservedName(p.Name, p.Loc)
		sym := &Symbol{
			Name:     p.Name,
			Kind:     SymVariable,
			Type:     p.ResolvedType,
			Storage:  sig.quals[i],
			ReadOnly: p.Qual.Const,
			Ref: glsl.Ref{
				Kind:       glsl.RefParam,
				ID:         p.ID,
				Storage:    sig.quals[i],
				ParamIndex: i,
			},
		}
		a.declare(sym, p.Loc)
	}
	// The body shares the parameters' scope.
	for _, s := range fn.Body.Stmts {
		a.checkStmt(s)
	}
	a.popScope()
	a.curFunc = nil
}

func (a *analyzer) checkMain() {
	sigs := a.funcs["main"]
	var def *funcSig
	for _, s := range sigs {
		if s.def != nil {
			def = s
		}
	}
	if def == nil {
		a.errorf(diag.Position{}, "missing main function")
		return
	}
	if len(sigs) > 1 || len(def.params) != 0 || def.ret.Kind != types.Void {
		a.errorf(def.def.Loc, "main() must have the signature 'void main()'")
	}
	a.result.Main = def.def
}

// checkRecursion reports every function that can reach itself through
// the static call graph.
func (a *analyzer) checkRecursion() {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[*funcSig]int)
	reported := make(map[*funcSig]bool)

	var visit func(s *funcSig, stack []*funcSig)
	visit = func(s *funcSig, stack []*funcSig) {
		state[s] = active
		stack = append(stack, s)
		for _, c := range s.callees {
			switch state[c] {
			case unvisited:
				visit(c, stack)
			case active:
				for i := len(stack) - 1; i >= 0; i-- {
					f := stack[i]
					if !reported[f] && f.def != nil {
						reported[f] = true
						a.errorf(f.def.Loc, "function '%s' has static recursion", f.name)
					}
					if f == c {
						break
					}
				}
			}
		}
		state[s] = done
	}

	for _, decl := range orderedSigs(a.funcs) {
		if state[decl] == unvisited {
			visit(decl, nil)
		}
	}
}

func orderedSigs(funcs map[string][]*funcSig) []*funcSig {
	var all []*funcSig
	for _, sigs := range funcs {
		all = append(all, sigs...)
	}
	// Declaration order keeps diagnostics deterministic.
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j].first.ID < all[j-1].first.ID; j-- {
			all[j], all[j-1] = all[j-1], all[j]
		}
	}
	return all
}

// Variable declarations

func (a *analyzer) checkVarDeclList(d *glsl.VarDeclList, global bool) {
	base := a.resolveType(d.Type)
	q := d.Qual

	if !global && d.Type.Struct != nil && len(d.Vars) == 0 {
		return
	}
	if global {
		a.checkGlobalQualifiers(d, base)
	}

	for _, v := range d.Vars {
		a.checkReservedName(v.Name, v.Loc)
		t := base
		if v.IsArray {
			t = a.arrayType(base, v.ArrayLen, v.Loc, true)
		}
		v.Type = t

		if t.Kind == types.Void {
			a.errorf(v.Loc, "variable '%s' cannot have type void", v.Name)
		}
		if t.IsOpaque() && !(global && q.Storage == glsl.StorageUniform) {
			a.errorf(v.Loc, "sampler variable '%s' must be a uniform or a function parameter", v.Name)
		}
		a.notePrecision(t, q.Precision, v.Loc)

		var value *glsl.ConstValue
		if v.Init != nil {
			value = a.checkInitializer(d, v, t, global)
		} else if q.Storage == glsl.StorageConst {
			a.errorf(v.Loc, "const variable '%s' must be initialized", v.Name)
		}

		sym := &Symbol{
			Name:     v.Name,
			Kind:     SymVariable,
			Type:     t,
			Storage:  q.Storage,
			ReadOnly: q.Storage == glsl.StorageConst || q.Storage == glsl.StorageUniform || q.Storage == glsl.StorageAttribute || (q.Storage == glsl.StorageVarying && a.opts.Stage == StageFragment),
			Const:    value,
			Ref:      glsl.Ref{Kind: glsl.RefGlobal, ID: v.ID, Storage: q.Storage},
		}
		if !global {
			sym.Ref.Kind = glsl.RefLocal
			sym.Decl = v
		}
		a.declare(sym, v.Loc)
	}
}

func (a *analyzer) checkGlobalQualifiers(d *glsl.VarDeclList, t *types.Type) {
	q := d.Qual
	switch q.Storage {
	case glsl.StorageAttribute:
		if a.opts.Stage != StageVertex {
			a.errorf(d.Loc, "'attribute' variables are only allowed in vertex shaders")
		}
		if !isFloatBased(t) || t.Kind == types.Array {
			a.errorf(d.Loc, "'attribute' variables must be float, vector or matrix types")
		}
	case glsl.StorageVarying:
		elem := t
		if elem.Kind == types.Array {
			elem = elem.Elem
		}
		if !isFloatBased(elem) {
			a.errorf(d.Loc, "'varying' variables must be float, vector or matrix types")
		}
	}
	for _, v := range d.Vars {
		if v.Init == nil {
			continue
		}
		switch q.Storage {
		case glsl.StorageAttribute, glsl.StorageVarying, glsl.StorageUniform:
			a.errorf(v.Loc, "'%s' variable '%s' cannot have an initializer", q.Storage, v.Name)
			v.Init = nil
		}
	}
}

func isFloatBased(t *types.Type) bool {
	switch t.Kind {
	case types.Float, types.Matrix:
		return true
	case types.Vector:
		return t.Scalar == types.Float
	}
	return t.IsError()
}

// checkInitializer checks v's initializer and returns its value if v is a
// constant scalar.
func (a *analyzer) checkInitializer(d *glsl.VarDeclList, v *glsl.VarDecl, t *types.Type, global bool) *glsl.ConstValue {
	if v.IsArray {
		a.errorf(v.Loc, "array '%s' cannot have an initializer", v.Name)
		return nil
	}
	it := a.checkExpr(v.Init)
	if t.IsError() || it.IsError() {
		return nil
	}
	if !a.coerce(v.Init, t) {
		a.errorf(v.Loc, "initializer of type '%s' cannot be assigned to variable '%s' of type '%s'",
			it, v.Name, t)
		return nil
	}
	if d.Qual.Storage == glsl.StorageConst {
		if !isConstantExpr(v.Init) {
			a.errorf(v.Loc, "initializer of const variable '%s' must be a constant expression", v.Name)
			return nil
		}
		if t.IsScalar() {
			return convertConst(v.Init.Annotation().Const, t.Kind)
		}
	}
	if global && d.Qual.Storage != glsl.StorageConst && a.opts.Embedded && !isConstantExpr(v.Init) {
		a.errorf(v.Loc, "initializer of global variable '%s' must be a constant expression", v.Name)
	}
	return nil
}

// notePrecision warns once when an embedded fragment shader declares a
// float without a precision and no default float precision is in effect.
func (a *analyzer) notePrecision(t *types.Type, explicit glsl.Precision, pos diag.Position) {
	if !a.opts.Embedded || a.opts.Stage != StageFragment || a.precWarned {
		return
	}
	if explicit != glsl.PrecisionNone || a.defaultFloat != glsl.PrecisionNone {
		return
	}
	for t != nil && t.Kind == types.Array {
		t = t.Elem
	}
	if t == nil || t.ScalarKind() != types.Float {
		return
	}
	a.precWarned = true
	a.warnf(pos, "no default precision specified for float in fragment shader, using mediump")
}

func (a *analyzer) checkReservedName(name string, pos diag.Position) {
	switch {
	case strings.HasPrefix(name, "gl_"):
		a.errorf(pos, "identifier '%s' uses reserved prefix 'gl_'", name)
	case strings.Contains(name, "__"):
		a.errorf(pos, "identifier '%s' contains reserved '__'", name)
	}
}

// Types

// resolveType resolves a written type, defining inline structs in the
// current scope. It is idempotent.
func (a *analyzer) resolveType(spec *glsl.TypeSpec) *types.Type {
	if spec.Resolved != nil {
		return spec.Resolved
	}
	t := a.resolveTypeUncached(spec)
	spec.Resolved = t
	return t
}

func (a *analyzer) resolveTypeUncached(spec *glsl.TypeSpec) *types.Type {
	if spec.Struct != nil {
		return a.defineStruct(spec.Struct)
	}
	if t, ok := types.Lookup(spec.Name); ok {
		if a.opts.Embedded {
			if t.IsNonSquareMatrix() {
				a.errorf(spec.Loc, "non-square matrix type '%s' is not available in GLSL ES", spec.Name)
				return types.Invalid
			}
			if t.Kind == types.Sampler && (t.Dim == types.Sampler3D || t.Dim == types.Sampler1D) {
				a.errorf(spec.Loc, "type '%s' is not available in GLSL ES", spec.Name)
				return types.Invalid
			}
		}
		return t
	}
	if sym := a.lookup(spec.Name); sym != nil && sym.Kind == SymStruct {
		return sym.Type
	}
	a.errorf(spec.Loc, "unknown type '%s'", spec.Name)
	return types.Invalid
}

func (a *analyzer) defineStruct(s *glsl.StructSpec) *types.Type {
	t := &types.Type{Kind: types.Struct, Name: s.Name}
	seen := make(map[string]bool)
	for _, f := range s.Fields {
		ft := a.resolveType(f.Type)
		if ft.Kind == types.Void {
			a.errorf(f.Type.Loc, "struct member cannot have type void")
		}
		for _, m := range f.Members {
			if seen[m.Name] {
				a.errorf(m.Loc, "duplicate struct member '%s'", m.Name)
			}
			seen[m.Name] = true
			mt := ft
			if m.IsArray {
				mt = a.arrayType(ft, m.ArrayLen, m.Loc, true)
			}
			t.Fields = append(t.Fields, types.Field{Name: m.Name, Type: mt})
		}
	}
	if s.Name != "" {
		a.checkReservedName(s.Name, s.Loc)
		a.declare(&Symbol{Name: s.Name, Kind: SymStruct, Type: t}, s.Loc)
	}
	return t
}

// arrayType builds an array of elem sized by the constant expression n.
func (a *analyzer) arrayType(elem *types.Type, n glsl.Expr, pos diag.Position, sizeRequired bool) *types.Type {
	if elem.Kind == types.Array {
		a.errorf(pos, "arrays of arrays are not allowed")
		return types.Invalid
	}
	if n == nil {
		if sizeRequired {
			a.errorf(pos, "array size must be specified")
			return types.Invalid
		}
		return types.ArrayOf(elem, 0)
	}
	nt := a.checkExpr(n)
	if nt.IsError() {
		return types.Invalid
	}
	c := n.Annotation().Const
	if nt.Kind != types.Int || c == nil {
		a.errorf(pos, "array size must be a constant integer expression")
		return types.Invalid
	}
	if c.Int <= 0 {
		a.errorf(pos, "array size must be greater than zero")
		return types.Invalid
	}
	return types.ArrayOf(elem, int(c.Int))
}

// describeArgs renders argument types for overload diagnostics.
func describeArgs(args []*types.Type) string {
	parts := make([]string, len(args))
	for i, t := range args {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}
