// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package sema

import (
	"github.com/gogpu/glslopt/glsl"
	"github.com/gogpu/glslopt/types"
)

func (a *analyzer) checkCall(x *glsl.CallExpr) *types.Type {
	args := make([]*types.Type, len(x.Args))
	failed := false
	for i, arg := range x.Args {
		args[i] = a.checkExpr(arg)
		failed = failed || args[i].IsError()
	}

	if x.Type != nil {
		t := a.resolveType(x.Type)
		x.Target = glsl.CallTarget{Kind: glsl.CallConstructor}
		if t.IsError() || failed {
			return types.Invalid
		}
		return a.checkConstructor(x, t, args)
	}
	if failed {
		return types.Invalid
	}

	if sigs, ok := a.funcs[x.Name]; ok {
		return a.callUser(x, sigs, args)
	}
	if overloads, ok := Builtins()[x.Name]; ok {
		return a.callBuiltin(x, overloads, args)
	}
	if sym := a.lookup(x.Name); sym != nil {
		a.errorf(x.Loc, "'%s' is not a function", x.Name)
		return types.Invalid
	}
	a.errorf(x.Loc, "function '%s' undeclared", x.Name)
	return types.Invalid
}

// matchParams reports whether args match params exactly, or with int to
// float promotion of arguments passed to in parameters.
func matchParams(args, params []*types.Type, quals []glsl.Storage, promote bool) bool {
	if len(args) != len(params) {
		return false
	}
	for i, arg := range args {
		if types.Equal(arg, params[i]) {
			continue
		}
		in := quals == nil || quals[i] == glsl.StorageIn
		if !promote || !in || !canPromote(arg, params[i]) {
			return false
		}
	}
	return true
}

func (a *analyzer) applyPromotions(x *glsl.CallExpr, params []*types.Type) {
	for i, arg := range x.Args {
		if !types.Equal(arg.Annotation().Type, params[i]) {
			arg.Annotation().Convert = params[i]
		}
	}
}

func (a *analyzer) callUser(x *glsl.CallExpr, sigs []*funcSig, args []*types.Type) *types.Type {
	var match *funcSig
	for _, s := range sigs {
		if matchParams(args, s.params, s.quals, false) {
			match = s
			break
		}
	}
	if match == nil {
		var candidates []*funcSig
		for _, s := range sigs {
			if matchParams(args, s.params, s.quals, true) {
				candidates = append(candidates, s)
			}
		}
		switch len(candidates) {
		case 0:
			a.errorf(x.Loc, "no matching function for call to '%s(%s)'", x.Name, describeArgs(args))
			return types.Invalid
		case 1:
			match = candidates[0]
		default:
			a.errorf(x.Loc, "ambiguous call to '%s(%s)'", x.Name, describeArgs(args))
			return types.Invalid
		}
		a.applyPromotions(x, match.params)
	}

	x.Target = glsl.CallTarget{Kind: glsl.CallUser, Func: match.first.ID}
	if match.def != nil {
		x.Target.Func = match.def.ID
	} else if !match.undefinedReported {
		match.undefinedReported = true
		a.errorf(x.Loc, "function '%s' has no definition", x.Name)
	}

	for i, q := range match.quals {
		if q == glsl.StorageOut || q == glsl.StorageInOut {
			a.checkLValue(x.Args[i], "'"+q.String()+"' argument")
		}
	}
	if a.curFunc != nil {
		a.curFunc.callees = append(a.curFunc.callees, match)
	}
	return match.ret
}

func (a *analyzer) callBuiltin(x *glsl.CallExpr, overloads []*Overload, args []*types.Type) *types.Type {
	var available []*Overload
	inStage := false
	for _, o := range overloads {
		if o.available(a.opts.Stage, a.opts.Embedded) {
			available = append(available, o)
		}
		inStage = inStage || o.stages&a.opts.Stage.mask() != 0
	}
	if len(available) == 0 {
		if inStage {
			a.errorf(x.Loc, "built-in function '%s' is not available in %s", x.Name, profileName(a.opts.Embedded))
		} else {
			a.errorf(x.Loc, "built-in function '%s' is not available in %s shaders", x.Name, a.opts.Stage)
		}
		return types.Invalid
	}

	var match *Overload
	for _, o := range available {
		if matchParams(args, o.Params, nil, false) {
			match = o
			break
		}
	}
	if match == nil {
		for _, o := range available {
			if matchParams(args, o.Params, nil, true) {
				if match != nil {
					a.errorf(x.Loc, "ambiguous call to '%s(%s)'", x.Name, describeArgs(args))
					return types.Invalid
				}
				match = o
			}
		}
		if match == nil {
			a.errorf(x.Loc, "no matching function for call to '%s(%s)'", x.Name, describeArgs(args))
			return types.Invalid
		}
		a.applyPromotions(x, match.Params)
	}
	x.Target = glsl.CallTarget{Kind: glsl.CallBuiltin, Builtin: x.Name}
	return match.Return
}

func profileName(es bool) string {
	if es {
		return "GLSL ES"
	}
	return "desktop GLSL"
}

// checkConstructor checks a type constructor call. Constructor arguments
// are converted component-wise, so no promotion is recorded.
func (a *analyzer) checkConstructor(x *glsl.CallExpr, t *types.Type, args []*types.Type) *types.Type {
	switch t.Kind {
	case types.Struct:
		if len(args) != len(t.Fields) {
			a.errorf(x.Loc, "wrong number of arguments to constructor of '%s': expected %d, got %d",
				t.Describe(), len(t.Fields), len(args))
			return types.Invalid
		}
		for i, arg := range x.Args {
			if !a.coerce(arg, t.Fields[i].Type) {
				a.errorf(arg.Pos(), "constructor argument %d of '%s' has type '%s', expected '%s'",
					i+1, t.Describe(), args[i], t.Fields[i].Type)
				return types.Invalid
			}
		}
		return t
	case types.Bool, types.Int, types.Float, types.Vector, types.Matrix:
	default:
		a.errorf(x.Loc, "cannot construct a value of type '%s'", t)
		return types.Invalid
	}

	if len(args) == 0 {
		a.errorf(x.Loc, "constructor of '%s' requires at least one argument", t)
		return types.Invalid
	}
	for i, arg := range args {
		if arg.Components() == 0 {
			a.errorf(x.Args[i].Pos(), "cannot use a value of type '%s' in a constructor of '%s'", arg, t)
			return types.Invalid
		}
	}

	if t.IsScalar() {
		if len(args) > 1 {
			a.errorf(x.Loc, "too many arguments to constructor of '%s'", t)
			return types.Invalid
		}
		if args[0].IsScalar() {
			x.Info.Const = convertConst(x.Args[0].Annotation().Const, t.Kind)
		}
		return t
	}

	if len(args) == 1 && args[0].IsScalar() {
		return t
	}

	hasMatrix := false
	for _, arg := range args {
		hasMatrix = hasMatrix || arg.Kind == types.Matrix
	}
	if t.Kind == types.Matrix && hasMatrix {
		if len(args) > 1 {
			a.errorf(x.Loc, "a matrix argument to a matrix constructor must be the only argument")
			return types.Invalid
		}
		if a.opts.Embedded {
			a.errorf(x.Loc, "constructing a matrix from a matrix is not available in GLSL ES")
			return types.Invalid
		}
		return t
	}

	need := t.Components()
	have := 0
	for i, arg := range args {
		if have >= need {
			a.errorf(x.Args[i].Pos(), "too many arguments to constructor of '%s'", t)
			return types.Invalid
		}
		have += arg.Components()
	}
	if have < need {
		a.errorf(x.Loc, "not enough data provided to constructor of '%s'", t)
		return types.Invalid
	}
	return t
}
