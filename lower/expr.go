// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package lower

import (
	"fmt"

	"github.com/gogpu/glslopt/glsl"
	"github.com/gogpu/glslopt/ir"
	"github.com/gogpu/glslopt/types"
)

// noValue is returned for calls to void functions.
const noValue = ^ir.ExpressionHandle(0)

// lowerExpression converts an expression to a value, applying the
// implicit conversion the analyzer recorded on it.
func (l *Lowerer) lowerExpression(e glsl.Expr, target *ir.Block) (ir.ExpressionHandle, error) {
	value, err := l.lowerValue(e, target)
	if err != nil || value == noValue {
		return value, err
	}
	conv := e.Annotation().Convert
	if conv == nil {
		return value, nil
	}
	ty, err := l.lowerType(conv)
	if err != nil {
		return 0, err
	}
	return l.addExpression(ir.ExprAs{Expr: value, Kind: scalarKind(conv.ScalarKind())}, ty), nil
}

func (l *Lowerer) exprType(e glsl.Expr) (ir.TypeHandle, error) {
	return l.lowerType(e.Annotation().Type)
}

// lowerValue keeps constant expressions as written. Only references to
// scalar constants and constant indices are replaced by their values.
func (l *Lowerer) lowerValue(e glsl.Expr, target *ir.Block) (ir.ExpressionHandle, error) {
	defer l.at(e)()
	switch x := e.(type) {
	case *glsl.IntLit:
		return l.literal(&glsl.ConstValue{Kind: types.Int, Int: x.Value}), nil
	case *glsl.FloatLit:
		return l.literal(&glsl.ConstValue{Kind: types.Float, Float: x.Value}), nil
	case *glsl.BoolLit:
		return l.literal(&glsl.ConstValue{Kind: types.Bool, Bool: x.Value}), nil
	case *glsl.Ident:
		return l.lowerIdent(x, target)
	case *glsl.UnaryExpr:
		return l.lowerUnary(x, target)
	case *glsl.BinaryExpr:
		return l.lowerBinary(x, target)
	case *glsl.AssignExpr:
		return l.lowerAssign(x, target)
	case *glsl.CondExpr:
		return l.lowerCond(x, target)
	case *glsl.CallExpr:
		return l.lowerCall(x, target)
	case *glsl.IndexExpr, *glsl.FieldExpr:
		if glsl.IsLValueRooted(e) {
			ptr, err := l.lowerPointer(e, target)
			if err != nil {
				return 0, err
			}
			return l.load(ptr), nil
		}
		return l.lowerAccess(e, target, l.lowerExpression)
	}
	return 0, fmt.Errorf("unsupported expression %T", e)
}

func (l *Lowerer) literal(c *glsl.ConstValue) ir.ExpressionHandle {
	switch c.Kind {
	case types.Int:
		return l.addExpression(ir.Literal{Value: ir.LiteralI32(c.Int)}, l.registry.Scalar(ir.ScalarSint))
	case types.Bool:
		return l.addExpression(ir.Literal{Value: ir.LiteralBool(c.Bool)}, l.registry.Scalar(ir.ScalarBool))
	}
	return l.addExpression(ir.Literal{Value: ir.LiteralF32(c.Float)}, l.registry.Scalar(ir.ScalarFloat))
}

func (l *Lowerer) load(ptr ir.ExpressionHandle) ir.ExpressionHandle {
	return l.addExpression(ir.ExprLoad{Pointer: ptr}, l.currentFunc.ExpressionTypes[ptr])
}

func (l *Lowerer) lowerIdent(x *glsl.Ident, target *ir.Block) (ir.ExpressionHandle, error) {
	if x.Ref.Storage == glsl.StorageConst {
		if c := x.Annotation().Const; c != nil {
			return l.literal(c), nil
		}
		init, ok := l.consts[x.Ref.ID]
		if !ok || init == nil {
			return 0, fmt.Errorf("constant %s has no value", x.Name)
		}
		return l.lowerExpression(init, target)
	}
	ptr, err := l.lowerPointer(x, target)
	if err != nil {
		return 0, err
	}
	return l.load(ptr), nil
}

// lowerPointer converts an l-value to a pointer expression.
func (l *Lowerer) lowerPointer(e glsl.Expr, target *ir.Block) (ir.ExpressionHandle, error) {
	defer l.at(e)()
	switch x := e.(type) {
	case *glsl.Ident:
		return l.variable(x)
	case *glsl.IndexExpr, *glsl.FieldExpr:
		return l.lowerAccess(e, target, l.lowerPointer)
	}
	return 0, fmt.Errorf("%T is not an l-value", e)
}

func (l *Lowerer) variable(x *glsl.Ident) (ir.ExpressionHandle, error) {
	ty, err := l.exprType(x)
	if err != nil {
		return 0, err
	}
	switch x.Ref.Kind {
	case glsl.RefGlobal:
		h, ok := l.globals[x.Ref.ID]
		if !ok {
			return 0, fmt.Errorf("unknown global %s", x.Name)
		}
		return l.addExpression(ir.ExprGlobalVariable{Variable: h}, ty), nil
	case glsl.RefLocal:
		idx, ok := l.locals[x.Ref.ID]
		if !ok {
			return 0, fmt.Errorf("unknown local %s", x.Name)
		}
		return l.addExpression(ir.ExprLocalVariable{Variable: idx}, ty), nil
	case glsl.RefParam:
		return l.addExpression(ir.ExprFunctionArgument{Index: ir.Index(x.Ref.ParamIndex)}, ty), nil
	case glsl.RefBuiltin:
		h, err := l.builtinVariable(x)
		if err != nil {
			return 0, err
		}
		return l.addExpression(ir.ExprGlobalVariable{Variable: h}, ty), nil
	}
	return 0, fmt.Errorf("unresolved identifier %s", x.Name)
}

// lowerAccess converts an index or field selection. base lowers the
// selected operand, as a pointer or as a value.
func (l *Lowerer) lowerAccess(e glsl.Expr, target *ir.Block,
	base func(glsl.Expr, *ir.Block) (ir.ExpressionHandle, error)) (ir.ExpressionHandle, error) {
	ty, err := l.exprType(e)
	if err != nil {
		return 0, err
	}
	switch x := e.(type) {
	case *glsl.IndexExpr:
		b, err := base(x.X, target)
		if err != nil {
			return 0, err
		}
		if i, ok := constIndex(x.Index); ok {
			return l.addExpression(ir.ExprAccessIndex{Base: b, Index: ir.Index(i)}, ty), nil
		}
		idx, err := l.lowerExpression(x.Index, target)
		if err != nil {
			return 0, err
		}
		return l.addExpression(ir.ExprAccess{Base: b, Index: idx}, ty), nil
	case *glsl.FieldExpr:
		b, err := base(x.X, target)
		if err != nil {
			return 0, err
		}
		switch {
		case x.Swizzle == nil:
			return l.addExpression(ir.ExprAccessIndex{Base: b, Index: ir.Index(x.Field)}, ty), nil
		case len(x.Swizzle) == 1:
			return l.addExpression(ir.ExprAccessIndex{Base: b, Index: ir.Index(x.Swizzle[0])}, ty), nil
		}
		sw := ir.ExprSwizzle{Size: ir.VectorSize(ir.Index(len(x.Swizzle))), Vector: b}
		for i, c := range x.Swizzle {
			sw.Pattern[i] = ir.SwizzleComponent(ir.Index(c))
		}
		return l.addExpression(sw, ty), nil
	}
	return 0, fmt.Errorf("unsupported access %T", e)
}

func (l *Lowerer) lowerUnary(x *glsl.UnaryExpr, target *ir.Block) (ir.ExpressionHandle, error) {
	switch x.Op {
	case glsl.OpPlus:
		return l.lowerExpression(x.X, target)
	case glsl.OpPreInc, glsl.OpPreDec, glsl.OpPostInc, glsl.OpPostDec:
		return l.lowerIncDec(x, target)
	}
	operand, err := l.lowerExpression(x.X, target)
	if err != nil {
		return 0, err
	}
	ty, err := l.exprType(x)
	if err != nil {
		return 0, err
	}
	op := ir.UnaryNegate
	if x.Op == glsl.OpNot {
		op = ir.UnaryLogicalNot
	}
	return l.addExpression(ir.ExprUnary{Op: op, Expr: operand}, ty), nil
}

// lowerIncDec lowers ++ and -- to a load-modify-store sequence.
func (l *Lowerer) lowerIncDec(x *glsl.UnaryExpr, target *ir.Block) (ir.ExpressionHandle, error) {
	ptr, err := l.lowerPointer(x.X, target)
	if err != nil {
		return 0, err
	}
	old := l.load(ptr)
	var one ir.ExpressionHandle
	if x.X.Annotation().Type.ScalarKind() == types.Int {
		one = l.literal(&glsl.ConstValue{Kind: types.Int, Int: 1})
	} else {
		one = l.literal(&glsl.ConstValue{Kind: types.Float, Float: 1})
	}
	op := ir.BinaryAdd
	if x.Op == glsl.OpPreDec || x.Op == glsl.OpPostDec {
		op = ir.BinarySubtract
	}
	updated := l.addExpression(ir.ExprBinary{Op: op, Left: old, Right: one}, l.currentFunc.ExpressionTypes[ptr])
	l.appendStmt(target, ir.StmtStore{Pointer: ptr, Value: updated})
	if x.Op.IsPostfix() {
		return old, nil
	}
	return updated, nil
}

var binaryOps = map[glsl.BinaryOp]ir.BinaryOperator{
	glsl.OpAdd:       ir.BinaryAdd,
	glsl.OpSub:       ir.BinarySubtract,
	glsl.OpMul:       ir.BinaryMultiply,
	glsl.OpDiv:       ir.BinaryDivide,
	glsl.OpLess:      ir.BinaryLess,
	glsl.OpGreater:   ir.BinaryGreater,
	glsl.OpLessEq:    ir.BinaryLessEqual,
	glsl.OpGreaterEq: ir.BinaryGreaterEqual,
	glsl.OpEq:        ir.BinaryEqual,
	glsl.OpNotEq:     ir.BinaryNotEqual,
	glsl.OpAnd:       ir.BinaryLogicalAnd,
	glsl.OpOr:        ir.BinaryLogicalOr,
	glsl.OpXor:       ir.BinaryLogicalXor,
}

func (l *Lowerer) lowerBinary(x *glsl.BinaryExpr, target *ir.Block) (ir.ExpressionHandle, error) {
	if x.Op == glsl.OpComma {
		if _, err := l.lowerExpression(x.X, target); err != nil {
			return 0, err
		}
		return l.lowerExpression(x.Y, target)
	}
	if (x.Op == glsl.OpAnd || x.Op == glsl.OpOr) && hasSideEffects(x.Y) {
		return l.lowerShortCircuit(x, target)
	}
	left, err := l.lowerExpression(x.X, target)
	if err != nil {
		return 0, err
	}
	right, err := l.lowerExpression(x.Y, target)
	if err != nil {
		return 0, err
	}
	ty, err := l.exprType(x)
	if err != nil {
		return 0, err
	}
	op, ok := binaryOps[x.Op]
	if !ok {
		return 0, fmt.Errorf("unsupported operator %s", x.Op)
	}
	return l.addExpression(ir.ExprBinary{Op: op, Left: left, Right: right}, ty), nil
}

// lowerShortCircuit keeps the right operand's side effects conditional:
//
//	tmp = a; if (tmp) { tmp = b; }     // a && b
//	tmp = a; if (tmp) {} else { tmp = b; } // a || b
func (l *Lowerer) lowerShortCircuit(x *glsl.BinaryExpr, target *ir.Block) (ir.ExpressionHandle, error) {
	left, err := l.lowerExpression(x.X, target)
	if err != nil {
		return 0, err
	}
	tmp := l.newTemp(l.registry.Scalar(ir.ScalarBool))
	l.appendStmt(target, ir.StmtStore{Pointer: tmp, Value: left})
	rhs, err := l.nested(target, func(b *ir.Block) error {
		right, err := l.lowerExpression(x.Y, b)
		if err != nil {
			return err
		}
		l.appendStmt(b, ir.StmtStore{Pointer: tmp, Value: right})
		return nil
	})
	if err != nil {
		return 0, err
	}
	stmt := ir.StmtIf{Condition: left, Accept: rhs, Reject: ir.Block{}}
	if x.Op == glsl.OpOr {
		stmt.Accept, stmt.Reject = ir.Block{}, rhs
	}
	l.appendStmt(target, stmt)
	return l.load(tmp), nil
}

func (l *Lowerer) lowerAssign(x *glsl.AssignExpr, target *ir.Block) (ir.ExpressionHandle, error) {
	ptr, err := l.lowerPointer(x.LHS, target)
	if err != nil {
		return 0, err
	}
	if x.Op == glsl.AssignSet {
		value, err := l.lowerExpression(x.RHS, target)
		if err != nil {
			return 0, err
		}
		l.appendStmt(target, ir.StmtStore{Pointer: ptr, Value: value})
		return value, nil
	}
	old := l.load(ptr)
	rhs, err := l.lowerExpression(x.RHS, target)
	if err != nil {
		return 0, err
	}
	bop, _ := x.Op.Binary()
	updated := l.addExpression(ir.ExprBinary{Op: binaryOps[bop], Left: old, Right: rhs}, l.currentFunc.ExpressionTypes[ptr])
	l.appendStmt(target, ir.StmtStore{Pointer: ptr, Value: updated})
	return updated, nil
}

func (l *Lowerer) lowerCond(x *glsl.CondExpr, target *ir.Block) (ir.ExpressionHandle, error) {
	condition, err := l.lowerExpression(x.Cond, target)
	if err != nil {
		return 0, err
	}
	if !hasSideEffects(x.Then) && !hasSideEffects(x.Else) {
		accept, err := l.lowerExpression(x.Then, target)
		if err != nil {
			return 0, err
		}
		reject, err := l.lowerExpression(x.Else, target)
		if err != nil {
			return 0, err
		}
		ty, err := l.exprType(x)
		if err != nil {
			return 0, err
		}
		return l.addExpression(ir.ExprSelect{Condition: condition, Accept: accept, Reject: reject}, ty), nil
	}

	// Only the selected branch may run.
	void := isVoid(x.Info.Type)
	var tmp ir.ExpressionHandle
	if !void {
		ty, err := l.exprType(x)
		if err != nil {
			return 0, err
		}
		tmp = l.newTemp(ty)
	}
	branch := func(e glsl.Expr) func(b *ir.Block) error {
		return func(b *ir.Block) error {
			v, err := l.lowerExpression(e, b)
			if err != nil || void {
				return err
			}
			l.appendStmt(b, ir.StmtStore{Pointer: tmp, Value: v})
			return nil
		}
	}
	accept, err := l.nested(target, branch(x.Then))
	if err != nil {
		return 0, err
	}
	reject, err := l.nested(target, branch(x.Else))
	if err != nil {
		return 0, err
	}
	l.appendStmt(target, ir.StmtIf{Condition: condition, Accept: accept, Reject: reject})
	if void {
		return noValue, nil
	}
	return l.load(tmp), nil
}

// constIndex returns the value of an index that is an integer literal or
// a reference to an integer constant.
func constIndex(e glsl.Expr) (int, bool) {
	switch x := e.(type) {
	case *glsl.IntLit:
		return int(x.Value), x.Value >= 0
	case *glsl.Ident:
		if c := x.Annotation().Const; c != nil && x.Ref.Storage == glsl.StorageConst && c.Kind == types.Int && c.Int >= 0 {
			return int(c.Int), true
		}
	}
	return 0, false
}

// hasSideEffects reports whether evaluating e may write a variable.
func hasSideEffects(e glsl.Expr) bool {
	switch x := e.(type) {
	case *glsl.AssignExpr:
		return true
	case *glsl.UnaryExpr:
		if x.Op != glsl.OpPlus && x.Op != glsl.OpNeg && x.Op != glsl.OpNot {
			return true
		}
		return hasSideEffects(x.X)
	case *glsl.BinaryExpr:
		return hasSideEffects(x.X) || hasSideEffects(x.Y)
	case *glsl.CondExpr:
		return hasSideEffects(x.Cond) || hasSideEffects(x.Then) || hasSideEffects(x.Else)
	case *glsl.CallExpr:
		if x.Target.Kind == glsl.CallUser {
			return true
		}
		for _, a := range x.Args {
			if hasSideEffects(a) {
				return true
			}
		}
	case *glsl.IndexExpr:
		return hasSideEffects(x.X) || hasSideEffects(x.Index)
	case *glsl.FieldExpr:
		return hasSideEffects(x.X)
	}
	return false
}
