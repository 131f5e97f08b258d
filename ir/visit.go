// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

// VisitOperands calls fn for every expression operand of kind, in
// evaluation order.
func VisitOperands(kind ExpressionKind, fn func(ExpressionHandle)) {
	switch e := kind.(type) {
	case ExprCompose:
		for _, c := range e.Components {
			fn(c)
		}
	case ExprAccess:
		fn(e.Base)
		fn(e.Index)
	case ExprAccessIndex:
		fn(e.Base)
	case ExprSwizzle:
		fn(e.Vector)
	case ExprLoad:
		fn(e.Pointer)
	case ExprImageSample:
		fn(e.Sampler)
		fn(e.Coordinate)
		switch l := e.Level.(type) {
		case SampleLevelExact:
			fn(l.Level)
		case SampleLevelBias:
			fn(l.Bias)
		}
	case ExprUnary:
		fn(e.Expr)
	case ExprBinary:
		fn(e.Left)
		fn(e.Right)
	case ExprSelect:
		fn(e.Condition)
		fn(e.Accept)
		fn(e.Reject)
	case ExprDerivative:
		fn(e.Expr)
	case ExprRelational:
		fn(e.Argument)
		if e.Arg1 != nil {
			fn(*e.Arg1)
		}
	case ExprMath:
		fn(e.Arg)
		if e.Arg1 != nil {
			fn(*e.Arg1)
		}
		if e.Arg2 != nil {
			fn(*e.Arg2)
		}
	case ExprAs:
		fn(e.Expr)
	}
}

// MapOperands returns a copy of kind with every operand replaced by
// fn(operand). Slices and pointers are copied, never shared.
func MapOperands(kind ExpressionKind, fn func(ExpressionHandle) ExpressionHandle) ExpressionKind {
	opt := func(h *ExpressionHandle) *ExpressionHandle {
		if h == nil {
			return nil
		}
		v := fn(*h)
		return &v
	}
	switch e := kind.(type) {
	case ExprCompose:
		comps := make([]ExpressionHandle, len(e.Components))
		for i, c := range e.Components {
			comps[i] = fn(c)
		}
		e.Components = comps
		return e
	case ExprConstant:
		e.Components = append([]LiteralValue(nil), e.Components...)
		return e
	case ExprAccess:
		e.Base = fn(e.Base)
		e.Index = fn(e.Index)
		return e
	case ExprAccessIndex:
		e.Base = fn(e.Base)
		return e
	case ExprSwizzle:
		e.Vector = fn(e.Vector)
		return e
	case ExprLoad:
		e.Pointer = fn(e.Pointer)
		return e
	case ExprImageSample:
		e.Sampler = fn(e.Sampler)
		e.Coordinate = fn(e.Coordinate)
		switch l := e.Level.(type) {
		case SampleLevelExact:
			e.Level = SampleLevelExact{Level: fn(l.Level)}
		case SampleLevelBias:
			e.Level = SampleLevelBias{Bias: fn(l.Bias)}
		}
		return e
	case ExprUnary:
		e.Expr = fn(e.Expr)
		return e
	case ExprBinary:
		e.Left = fn(e.Left)
		e.Right = fn(e.Right)
		return e
	case ExprSelect:
		e.Condition = fn(e.Condition)
		e.Accept = fn(e.Accept)
		e.Reject = fn(e.Reject)
		return e
	case ExprDerivative:
		e.Expr = fn(e.Expr)
		return e
	case ExprRelational:
		e.Argument = fn(e.Argument)
		e.Arg1 = opt(e.Arg1)
		return e
	case ExprMath:
		e.Arg = fn(e.Arg)
		e.Arg1 = opt(e.Arg1)
		e.Arg2 = opt(e.Arg2)
		return e
	case ExprAs:
		e.Expr = fn(e.Expr)
		return e
	}
	return kind
}

// VisitStatementOperands calls fn for the expressions a statement uses
// directly. Nested blocks and Emit ranges are not visited.
func VisitStatementOperands(kind StatementKind, fn func(ExpressionHandle)) {
	switch s := kind.(type) {
	case StmtIf:
		fn(s.Condition)
	case StmtLoop:
		if s.BreakIf != nil {
			fn(*s.BreakIf)
		}
	case StmtReturn:
		if s.Value != nil {
			fn(*s.Value)
		}
	case StmtStore:
		fn(s.Pointer)
		fn(s.Value)
	case StmtCall:
		for _, a := range s.Arguments {
			fn(a)
		}
		if s.Result != nil {
			fn(*s.Result)
		}
	}
}

// WalkBlock calls fn for every statement of b, depth first, parents
// before children.
func WalkBlock(b Block, fn func(StatementKind)) {
	for _, st := range b {
		fn(st.Kind)
		switch s := st.Kind.(type) {
		case StmtBlock:
			WalkBlock(s.Block, fn)
		case StmtIf:
			WalkBlock(s.Accept, fn)
			WalkBlock(s.Reject, fn)
		case StmtLoop:
			WalkBlock(s.Body, fn)
			WalkBlock(s.Continuing, fn)
		}
	}
}

// MapBlock returns a deep copy of b with every expression operand and
// Emit range replaced through fn. Emit ranges whose mapped bounds are
// empty are dropped.
func MapBlock(b Block, fn func(ExpressionHandle) ExpressionHandle) Block {
	if b == nil {
		return nil
	}
	opt := func(h *ExpressionHandle) *ExpressionHandle {
		if h == nil {
			return nil
		}
		v := fn(*h)
		return &v
	}
	out := make(Block, 0, len(b))
	for _, st := range b {
		switch s := st.Kind.(type) {
		case StmtEmit:
			out = append(out, st)
		case StmtBlock:
			out = append(out, Statement{Kind: StmtBlock{Block: MapBlock(s.Block, fn)}})
		case StmtIf:
			out = append(out, Statement{Kind: StmtIf{
				Condition: fn(s.Condition),
				Accept:    MapBlock(s.Accept, fn),
				Reject:    MapBlock(s.Reject, fn),
			}})
		case StmtLoop:
			out = append(out, Statement{Kind: StmtLoop{
				Body:       MapBlock(s.Body, fn),
				Continuing: MapBlock(s.Continuing, fn),
				BreakIf:    opt(s.BreakIf),
			}})
		case StmtReturn:
			out = append(out, Statement{Kind: StmtReturn{Value: opt(s.Value)}})
		case StmtStore:
			out = append(out, Statement{Kind: StmtStore{Pointer: fn(s.Pointer), Value: fn(s.Value)}})
		case StmtCall:
			args := make([]ExpressionHandle, len(s.Arguments))
			for i, a := range s.Arguments {
				args[i] = fn(a)
			}
			out = append(out, Statement{Kind: StmtCall{Function: s.Function, Arguments: args, Result: opt(s.Result)}})
		default:
			out = append(out, st)
		}
	}
	return out
}

// IsEmittable reports whether an expression must be covered by an Emit
// before use. Literals, constants, variable references and call results
// are available without one.
func IsEmittable(kind ExpressionKind) bool {
	switch kind.(type) {
	case Literal, ExprConstant, ExprFunctionArgument, ExprGlobalVariable,
		ExprLocalVariable, ExprCallResult:
		return false
	}
	return true
}

// IsPointer reports whether h denotes a storage location rather than a
// value.
func IsPointer(f *Function, h ExpressionHandle) bool {
	for {
		switch e := f.Expressions[h].Kind.(type) {
		case ExprFunctionArgument, ExprGlobalVariable, ExprLocalVariable:
			return true
		case ExprAccess:
			h = e.Base
		case ExprAccessIndex:
			h = e.Base
		case ExprSwizzle:
			h = e.Vector
		default:
			return false
		}
	}
}

// RootKind identifies the kind of variable a pointer is rooted in.
type RootKind uint8

const (
	RootNone RootKind = iota
	RootGlobal
	RootLocal
	RootArgument
)

// Root is the variable a pointer expression points into.
type Root struct {
	Kind  RootKind
	Index uint32
}

// PointerRoot returns the variable a pointer expression is rooted in.
func PointerRoot(f *Function, h ExpressionHandle) Root {
	for {
		switch e := f.Expressions[h].Kind.(type) {
		case ExprGlobalVariable:
			return Root{Kind: RootGlobal, Index: uint32(e.Variable)}
		case ExprLocalVariable:
			return Root{Kind: RootLocal, Index: e.Variable}
		case ExprFunctionArgument:
			return Root{Kind: RootArgument, Index: e.Index}
		case ExprAccess:
			h = e.Base
		case ExprAccessIndex:
			h = e.Base
		case ExprSwizzle:
			h = e.Vector
		default:
			return Root{}
		}
	}
}
