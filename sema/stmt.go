// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package sema

import (
	"github.com/gogpu/glslopt/glsl"
	"github.com/gogpu/glslopt/types"
)

func (a *analyzer) checkStmt(s glsl.Stmt) {
	switch s := s.(type) {
	case *glsl.BlockStmt:
		a.pushScope()
		for _, inner := range s.Stmts {
			a.checkStmt(inner)
		}
		a.popScope()

	case *glsl.DeclStmt:
		a.checkVarDeclList(s.Decl, false)

	case *glsl.ExprStmt:
		a.checkExpr(s.X)

	case *glsl.IfStmt:
		a.checkCondition(s.Cond, "if")
		a.checkScoped(s.Then)
		if s.Else != nil {
			a.checkScoped(s.Else)
		}

	case *glsl.ForStmt:
		a.pushScope()
		if s.Init != nil {
			a.checkStmt(s.Init)
		}
		if s.Cond != nil {
			a.checkCondition(s.Cond, "for")
		}
		if s.Post != nil {
			a.checkExpr(s.Post)
		}
		a.loopDepth++
		a.checkScoped(s.Body)
		a.loopDepth--
		a.popScope()

	case *glsl.WhileStmt:
		a.checkCondition(s.Cond, "while")
		a.loopDepth++
		a.checkScoped(s.Body)
		a.loopDepth--

	case *glsl.DoStmt:
		a.loopDepth++
		a.checkScoped(s.Body)
		a.loopDepth--
		a.checkCondition(s.Cond, "do-while")

	case *glsl.ReturnStmt:
		a.checkReturn(s)

	case *glsl.BreakStmt:
		if a.loopDepth == 0 {
			a.errorf(s.Loc, "'break' may only appear in a loop")
		}

	case *glsl.ContinueStmt:
		if a.loopDepth == 0 {
			a.errorf(s.Loc, "'continue' may only appear in a loop")
		}

	case *glsl.DiscardStmt:
		if a.opts.Stage != StageFragment {
			a.errorf(s.Loc, "'discard' may only appear in a fragment shader")
		}

	case *glsl.EmptyStmt:
	}
}

// checkScoped checks a sub-statement in its own scope.
func (a *analyzer) checkScoped(s glsl.Stmt) {
	if _, ok := s.(*glsl.BlockStmt); ok {
		a.checkStmt(s)
		return
	}
	a.pushScope()
	a.checkStmt(s)
	a.popScope()
}

func (a *analyzer) checkCondition(e glsl.Expr, what string) {
	t := a.checkExpr(e)
	if t.IsError() {
		return
	}
	if t.Kind != types.Bool {
		a.errorf(e.Pos(), "%s condition must be a scalar boolean expression, not '%s'", what, t)
	}
}

func (a *analyzer) checkReturn(s *glsl.ReturnStmt) {
	if a.curFunc == nil {
		return
	}
	ret := a.curFunc.ret
	if s.Value == nil {
		if ret.Kind != types.Void && !ret.IsError() {
			a.errorf(s.Loc, "'return' with no value in function '%s' returning '%s'", a.curFunc.name, ret)
		}
		return
	}

	t := a.checkExpr(s.Value)
	if t.IsError() || ret.IsError() {
		return
	}
	if ret.Kind == types.Void {
		a.errorf(s.Loc, "'return' with a value in function '%s' returning void", a.curFunc.name)
		return
	}
	if !a.coerce(s.Value, ret) {
		a.errorf(s.Loc, "return type mismatch: function '%s' returns '%s', not '%s'", a.curFunc.name, ret, t)
	}
}
