// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package sema

import (
	"github.com/gogpu/glslopt/diag"
	"github.com/gogpu/glslopt/glsl"
	"github.com/gogpu/glslopt/types"
)

// checkExpr type-checks e, records its type and returns it. Failing
// expressions get types.Invalid and operations on them stay silent.
func (a *analyzer) checkExpr(e glsl.Expr) *types.Type {
	t := a.exprType(e)
	if t == nil {
		t = types.Invalid
	}
	e.Annotation().Type = t
	return t
}

func (a *analyzer) exprType(e glsl.Expr) *types.Type {
	switch x := e.(type) {
	case *glsl.IntLit:
		x.Info.Const = constInt(x.Value)
		return types.IntType
	case *glsl.FloatLit:
		x.Info.Const = constFloat(x.Value)
		return types.FloatType
	case *glsl.BoolLit:
		x.Info.Const = constBool(x.Value)
		return types.BoolType
	case *glsl.Ident:
		return a.checkIdent(x)
	case *glsl.UnaryExpr:
		return a.checkUnary(x)
	case *glsl.BinaryExpr:
		return a.checkBinary(x)
	case *glsl.AssignExpr:
		return a.checkAssign(x)
	case *glsl.CondExpr:
		return a.checkCond(x)
	case *glsl.CallExpr:
		return a.checkCall(x)
	case *glsl.IndexExpr:
		return a.checkIndex(x)
	case *glsl.FieldExpr:
		return a.checkField(x)
	}
	return types.Invalid
}

func (a *analyzer) checkIdent(x *glsl.Ident) *types.Type {
	sym := a.lookup(x.Name)
	if sym == nil {
		if _, isFunc := a.funcs[x.Name]; isFunc || IsBuiltinFunction(x.Name) {
			a.errorf(x.Loc, "function '%s' used as a variable", x.Name)
		} else {
			a.errorf(x.Loc, "'%s' undeclared", x.Name)
		}
		return types.Invalid
	}
	if sym.Kind == SymStruct {
		a.errorf(x.Loc, "type '%s' used as a variable", x.Name)
		return types.Invalid
	}
	x.Ref = sym.Ref
	x.Info.Const = sym.Const
	if sym.Decl != nil {
		sym.Decl.Used = true
	}
	return sym.Type
}

func (a *analyzer) checkUnary(x *glsl.UnaryExpr) *types.Type {
	t := a.checkExpr(x.X)
	if t.IsError() {
		return types.Invalid
	}
	switch x.Op {
	case glsl.OpPlus, glsl.OpNeg:
		if !t.IsNumeric() {
			a.errorf(x.Loc, "operand of unary '%s' must be numeric, not '%s'", x.Op, t)
			return types.Invalid
		}
		x.Info.Const = foldUnary(x.Op, x.X.Annotation().Const)
		return t
	case glsl.OpNot:
		if t.Kind != types.Bool {
			a.errorf(x.Loc, "operand of '!' must be a scalar boolean, not '%s'", t)
			return types.Invalid
		}
		x.Info.Const = foldUnary(x.Op, x.X.Annotation().Const)
		return t
	default:
		if !t.IsNumeric() {
			a.errorf(x.Loc, "operand of '%s' must be numeric, not '%s'", x.Op, t)
			return types.Invalid
		}
		a.checkLValue(x.X, "'"+x.Op.String()+"'")
		return t
	}
}

func (a *analyzer) checkBinary(x *glsl.BinaryExpr) *types.Type {
	lt := a.checkExpr(x.X)
	rt := a.checkExpr(x.Y)
	if x.Op == glsl.OpComma {
		return rt
	}
	if lt.IsError() || rt.IsError() {
		return types.Invalid
	}

	switch x.Op {
	case glsl.OpAnd, glsl.OpOr, glsl.OpXor:
		if lt.Kind != types.Bool || rt.Kind != types.Bool {
			a.operandError(x.Loc, x.Op.String(), lt, rt)
			return types.Invalid
		}
		x.Info.Const = foldBinary(x.Op, x.X.Annotation().Const, x.Y.Annotation().Const)
		return types.BoolType

	case glsl.OpEq, glsl.OpNotEq:
		if !a.unify(x.X, x.Y) || lt.IsOpaque() {
			a.operandError(x.Loc, x.Op.String(), lt, rt)
			return types.Invalid
		}
		a.foldScalarBinary(x)
		return types.BoolType

	case glsl.OpLess, glsl.OpGreater, glsl.OpLessEq, glsl.OpGreaterEq:
		if !a.unify(x.X, x.Y) || !(effectiveType(x.X).Kind == types.Int || effectiveType(x.X).Kind == types.Float) {
			a.operandError(x.Loc, x.Op.String(), lt, rt)
			return types.Invalid
		}
		a.foldScalarBinary(x)
		return types.BoolType
	}

	res, promoteL, promoteR := arithmeticType(x.Op, lt, rt)
	if res == nil {
		a.operandError(x.Loc, x.Op.String(), lt, rt)
		return types.Invalid
	}
	if promoteL {
		x.X.Annotation().Convert = lt.WithScalar(types.Float)
	}
	if promoteR {
		x.Y.Annotation().Convert = rt.WithScalar(types.Float)
	}
	if res.IsScalar() {
		a.foldScalarBinary(x)
	}
	return res
}

func (a *analyzer) foldScalarBinary(x *glsl.BinaryExpr) {
	lt, rt := effectiveType(x.X), effectiveType(x.Y)
	if !lt.IsScalar() || !rt.IsScalar() {
		return
	}
	ca := convertConst(x.X.Annotation().Const, lt.Kind)
	cb := convertConst(x.Y.Annotation().Const, rt.Kind)
	x.Info.Const = foldBinary(x.Op, ca, cb)
}

// effectiveType is an expression's type after implicit conversion.
func effectiveType(e glsl.Expr) *types.Type {
	info := e.Annotation()
	if info.Convert != nil {
		return info.Convert
	}
	return info.Type
}

func (a *analyzer) operandError(pos diag.Position, op string, lt, rt *types.Type) {
	a.errorf(pos, "wrong operand types: no operation '%s' exists that takes a left-hand operand of type '%s' and a right operand of type '%s'",
		op, lt, rt)
}

// canPromote reports whether from converts implicitly to to.
func canPromote(from, to *types.Type) bool {
	switch {
	case from.Kind == types.Int && to.Kind == types.Float:
		return true
	case from.Kind == types.Vector && to.Kind == types.Vector:
		return from.Scalar == types.Int && to.Scalar == types.Float && from.Size == to.Size
	}
	return false
}

// coerce checks that e can be used where want is expected, recording an
// implicit conversion if one is needed.
func (a *analyzer) coerce(e glsl.Expr, want *types.Type) bool {
	t := e.Annotation().Type
	if types.Equal(t, want) {
		return true
	}
	if canPromote(t, want) {
		e.Annotation().Convert = want
		return true
	}
	return false
}

// unify makes the types of two operands equal by promoting one of them.
func (a *analyzer) unify(x, y glsl.Expr) bool {
	lt, rt := x.Annotation().Type, y.Annotation().Type
	switch {
	case types.Equal(lt, rt):
		return true
	case canPromote(lt, rt):
		x.Annotation().Convert = rt
		return true
	case canPromote(rt, lt):
		y.Annotation().Convert = lt
		return true
	}
	return false
}

// arithmeticType returns the result type of an arithmetic operator and
// whether either operand's int components are promoted to float. It
// returns nil if the operator does not apply.
func arithmeticType(op glsl.BinaryOp, lt, rt *types.Type) (res *types.Type, promoteL, promoteR bool) {
	if !lt.IsNumeric() || !rt.IsNumeric() {
		return nil, false, false
	}
	lk, rk := lt.ScalarKind(), rt.ScalarKind()
	switch {
	case lk == types.Int && rk == types.Float:
		lt, promoteL = lt.WithScalar(types.Float), true
	case lk == types.Float && rk == types.Int:
		rt, promoteR = rt.WithScalar(types.Float), true
	}

	switch {
	case lt.IsScalar() && rt.IsScalar():
		res = lt
	case lt.IsScalar():
		res = rt
	case rt.IsScalar():
		res = lt
	case lt.Kind == types.Vector && rt.Kind == types.Vector:
		if lt.Size == rt.Size {
			res = lt
		}
	case lt.Kind == types.Matrix && rt.Kind == types.Matrix:
		if op == glsl.OpMul {
			if lt.Size == rt.Rows {
				res = types.Mat(rt.Size, lt.Rows)
			}
		} else if types.Equal(lt, rt) {
			res = lt
		}
	case op == glsl.OpMul && lt.Kind == types.Vector && rt.Kind == types.Matrix:
		if lt.Size == rt.Rows {
			res = types.Vec(types.Float, rt.Size)
		}
	case op == glsl.OpMul && lt.Kind == types.Matrix && rt.Kind == types.Vector:
		if rt.Size == lt.Size {
			res = types.Vec(types.Float, lt.Rows)
		}
	}
	if res == nil {
		return nil, false, false
	}
	return res, promoteL, promoteR
}

func (a *analyzer) checkAssign(x *glsl.AssignExpr) *types.Type {
	lt := a.checkExpr(x.LHS)
	rt := a.checkExpr(x.RHS)
	if lt.IsError() || rt.IsError() {
		return types.Invalid
	}
	if !a.checkLValue(x.LHS, "assignment") {
		return lt
	}

	op, compound := x.Op.Binary()
	if !compound {
		if !a.coerce(x.RHS, lt) {
			a.errorf(x.Loc, "cannot assign a value of type '%s' to a variable of type '%s'", rt, lt)
		}
		return lt
	}

	res, promoteL, promoteR := arithmeticType(op, lt, rt)
	if res == nil || promoteL || !types.Equal(res, lt) {
		a.operandError(x.Loc, x.Op.String(), lt, rt)
		return lt
	}
	if promoteR {
		x.RHS.Annotation().Convert = rt.WithScalar(types.Float)
	}
	return lt
}

// checkLValue reports whether e designates writable storage, reporting
// an error if it does not.
func (a *analyzer) checkLValue(e glsl.Expr, what string) bool {
	switch x := e.(type) {
	case *glsl.Ident:
		if x.Ref.Kind == glsl.RefNone {
			return false
		}
		sym := a.lookup(x.Name)
		if sym == nil {
			return false
		}
		if sym.ReadOnly {
			a.errorf(x.Loc, "%s to read-only variable '%s'", what, x.Name)
			return false
		}
		a.noteOutputWrite(x)
		return true
	case *glsl.IndexExpr:
		return a.checkLValue(x.X, what)
	case *glsl.FieldExpr:
		if hasRepeats(x.Swizzle) {
			a.errorf(x.Loc, "swizzle with repeated components cannot be an l-value")
			return false
		}
		return a.checkLValue(x.X, what)
	}
	a.errorf(e.Pos(), "%s requires an l-value", what)
	return false
}

func (a *analyzer) noteOutputWrite(x *glsl.Ident) {
	if x.Ref.Kind != glsl.RefBuiltin {
		return
	}
	switch x.Ref.Builtin {
	case "gl_FragColor":
		a.wroteColor = true
	case "gl_FragData":
		a.wroteData = true
	default:
		return
	}
	if a.wroteColor && a.wroteData {
		a.errorf(x.Loc, "a fragment shader cannot write to both gl_FragColor and gl_FragData")
	}
}

func hasRepeats(swizzle []int) bool {
	var seen [4]bool
	for _, c := range swizzle {
		if seen[c] {
			return true
		}
		seen[c] = true
	}
	return false
}

func (a *analyzer) checkCond(x *glsl.CondExpr) *types.Type {
	a.checkCondition(x.Cond, "'?:'")
	tt := a.checkExpr(x.Then)
	et := a.checkExpr(x.Else)
	if tt.IsError() || et.IsError() || x.Cond.Annotation().Type.IsError() {
		return types.Invalid
	}
	if !a.unify(x.Then, x.Else) {
		a.errorf(x.Loc, "second and third operands of '?:' must have the same type, not '%s' and '%s'", tt, et)
		return types.Invalid
	}
	res := effectiveType(x.Then)
	if c := x.Cond.Annotation().Const; c != nil && res.IsScalar() {
		if c.Bool {
			x.Info.Const = convertConst(x.Then.Annotation().Const, res.Kind)
		} else {
			x.Info.Const = convertConst(x.Else.Annotation().Const, res.Kind)
		}
	}
	return res
}

func (a *analyzer) checkIndex(x *glsl.IndexExpr) *types.Type {
	xt := a.checkExpr(x.X)
	it := a.checkExpr(x.Index)
	if xt.IsError() || it.IsError() {
		return types.Invalid
	}
	if it.Kind != types.Int {
		a.errorf(x.Index.Pos(), "array index must be a scalar integer expression, not '%s'", it)
		return types.Invalid
	}

	var elem *types.Type
	var n int
	switch xt.Kind {
	case types.Array:
		elem, n = xt.Elem, xt.Len
	case types.Vector:
		elem, n = types.Scalar(xt.Scalar), xt.Size
	case types.Matrix:
		elem, n = xt.Column(), xt.Size
	default:
		a.errorf(x.Loc, "cannot index a value of type '%s'", xt)
		return types.Invalid
	}
	if c := x.Index.Annotation().Const; c != nil && (c.Int < 0 || (n > 0 && int(c.Int) >= n)) {
		a.errorf(x.Index.Pos(), "index %d is out of range for '%s'", c.Int, xt)
		return types.Invalid
	}
	return elem
}

func (a *analyzer) checkField(x *glsl.FieldExpr) *types.Type {
	xt := a.checkExpr(x.X)
	if xt.IsError() {
		return types.Invalid
	}
	switch xt.Kind {
	case types.Struct:
		idx := xt.FieldIndex(x.Name)
		if idx < 0 {
			a.errorf(x.Loc, "'%s' has no member named '%s'", xt.Describe(), x.Name)
			return types.Invalid
		}
		x.Field = idx
		return xt.Fields[idx].Type
	case types.Vector:
		swz, ok := ParseSwizzle(x.Name, xt.Size)
		if !ok {
			a.errorf(x.Loc, "invalid swizzle '.%s' on '%s'", x.Name, xt)
			return types.Invalid
		}
		x.Swizzle = swz
		return types.Basic(xt.Scalar, len(swz))
	}
	a.errorf(x.Loc, "cannot select field '%s' of type '%s'", x.Name, xt)
	return types.Invalid
}

var swizzleSets = [...]string{"xyzw", "rgba", "stpq"}

// ParseSwizzle returns the component indices of a swizzle on a vector of
// the given size. All characters must come from one component set.
func ParseSwizzle(name string, size int) ([]int, bool) {
	if len(name) == 0 || len(name) > 4 {
		return nil, false
	}
	set := -1
	out := make([]int, len(name))
	for i := 0; i < len(name); i++ {
		found := false
		for s, chars := range swizzleSets {
			for c := 0; c < 4; c++ {
				if chars[c] != name[i] {
					continue
				}
				if set >= 0 && set != s {
					return nil, false
				}
				set = s
				out[i] = c
				found = true
			}
		}
		if !found || out[i] >= size {
			return nil, false
		}
	}
	return out, true
}
