// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package sema

import (
	"github.com/gogpu/glslopt/glsl"
	"github.com/gogpu/glslopt/types"
)

// Scalar constant evaluation. Only what declarations need is computed
// here (array sizes, constant indices, const scalars); the optimizer's
// constant folder handles the rest on the IR.

func constInt(v int32) *glsl.ConstValue {
	return &glsl.ConstValue{Kind: types.Int, Int: v}
}

func constFloat(v float32) *glsl.ConstValue {
	return &glsl.ConstValue{Kind: types.Float, Float: v}
}

func constBool(v bool) *glsl.ConstValue {
	return &glsl.ConstValue{Kind: types.Bool, Bool: v}
}

// convertConst converts a scalar constant to another scalar kind with
// constructor semantics.
func convertConst(c *glsl.ConstValue, kind types.Kind) *glsl.ConstValue {
	if c == nil || c.Kind == kind {
		return c
	}
	switch kind {
	case types.Float:
		switch c.Kind {
		case types.Int:
			return constFloat(float32(c.Int))
		case types.Bool:
			return constFloat(b2f(c.Bool))
		}
	case types.Int:
		switch c.Kind {
		case types.Float:
			return constInt(int32(c.Float))
		case types.Bool:
			if c.Bool {
				return constInt(1)
			}
			return constInt(0)
		}
	case types.Bool:
		switch c.Kind {
		case types.Float:
			return constBool(c.Float != 0)
		case types.Int:
			return constBool(c.Int != 0)
		}
	}
	return nil
}

func b2f(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

func foldUnary(op glsl.UnaryOp, c *glsl.ConstValue) *glsl.ConstValue {
	if c == nil {
		return nil
	}
	switch op {
	case glsl.OpPlus:
		return c
	case glsl.OpNeg:
		switch c.Kind {
		case types.Int:
			return constInt(-c.Int)
		case types.Float:
			return constFloat(-c.Float)
		}
	case glsl.OpNot:
		if c.Kind == types.Bool {
			return constBool(!c.Bool)
		}
	}
	return nil
}

// foldBinary folds a binary operator over scalar constants of the same
// kind. Integer division by zero is not folded.
func foldBinary(op glsl.BinaryOp, a, b *glsl.ConstValue) *glsl.ConstValue {
	if a == nil || b == nil || a.Kind != b.Kind {
		return nil
	}
	switch a.Kind {
	case types.Int:
		x, y := a.Int, b.Int
		switch op {
		case glsl.OpAdd:
			return constInt(x + y)
		case glsl.OpSub:
			return constInt(x - y)
		case glsl.OpMul:
			return constInt(x * y)
		case glsl.OpDiv:
			if y == 0 {
				return nil
			}
			return constInt(x / y)
		case glsl.OpLess:
			return constBool(x < y)
		case glsl.OpGreater:
			return constBool(x > y)
		case glsl.OpLessEq:
			return constBool(x <= y)
		case glsl.OpGreaterEq:
			return constBool(x >= y)
		case glsl.OpEq:
			return constBool(x == y)
		case glsl.OpNotEq:
			return constBool(x != y)
		}
	case types.Float:
		x, y := a.Float, b.Float
		switch op {
		case glsl.OpAdd:
			return constFloat(x + y)
		case glsl.OpSub:
			return constFloat(x - y)
		case glsl.OpMul:
			return constFloat(x * y)
		case glsl.OpDiv:
			return constFloat(x / y)
		case glsl.OpLess:
			return constBool(x < y)
		case glsl.OpGreater:
			return constBool(x > y)
		case glsl.OpLessEq:
			return constBool(x <= y)
		case glsl.OpGreaterEq:
			return constBool(x >= y)
		case glsl.OpEq:
			return constBool(x == y)
		case glsl.OpNotEq:
			return constBool(x != y)
		}
	case types.Bool:
		x, y := a.Bool, b.Bool
		switch op {
		case glsl.OpAnd:
			return constBool(x && y)
		case glsl.OpOr:
			return constBool(x || y)
		case glsl.OpXor:
			return constBool(x != y)
		case glsl.OpEq:
			return constBool(x == y)
		case glsl.OpNotEq:
			return constBool(x != y)
		}
	}
	return nil
}

// isConstantExpr reports whether an annotated expression is a constant
// expression: literals, constant variables, and operators, constructors
// and builtin calls over constant expressions.
func isConstantExpr(e glsl.Expr) bool {
	switch x := e.(type) {
	case *glsl.IntLit, *glsl.FloatLit, *glsl.BoolLit:
		return true
	case *glsl.Ident:
		return x.Ref.Storage == glsl.StorageConst && x.Ref.Kind != glsl.RefParam
	case *glsl.UnaryExpr:
		switch x.Op {
		case glsl.OpPlus, glsl.OpNeg, glsl.OpNot:
			return isConstantExpr(x.X)
		}
		return false
	case *glsl.BinaryExpr:
		if x.Op == glsl.OpComma {
			return false
		}
		return isConstantExpr(x.X) && isConstantExpr(x.Y)
	case *glsl.CondExpr:
		return isConstantExpr(x.Cond) && isConstantExpr(x.Then) && isConstantExpr(x.Else)
	case *glsl.CallExpr:
		if x.Target.Kind != glsl.CallConstructor && x.Target.Kind != glsl.CallBuiltin {
			return false
		}
		for _, arg := range x.Args {
			if !isConstantExpr(arg) {
				return false
			}
		}
		return true
	case *glsl.IndexExpr:
		return isConstantExpr(x.X) && isConstantExpr(x.Index)
	case *glsl.FieldExpr:
		return isConstantExpr(x.X)
	}
	return false
}
