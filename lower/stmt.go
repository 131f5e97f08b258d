// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package lower

import (
	"fmt"

	"github.com/gogpu/glslopt/glsl"
	"github.com/gogpu/glslopt/ir"
)

// lowerStatement converts a statement to IR. Nested blocks are flattened;
// locals are function-scoped in the IR.
func (l *Lowerer) lowerStatement(stmt glsl.Stmt, target *ir.Block) error {
	switch s := stmt.(type) {
	case *glsl.BlockStmt:
		for _, inner := range s.Stmts {
			if err := l.lowerStatement(inner, target); err != nil {
				return err
			}
		}
		return nil
	case *glsl.DeclStmt:
		return l.lowerLocalVars(s.Decl, target)
	case *glsl.ExprStmt:
		_, err := l.lowerExpression(s.X, target)
		return err
	case *glsl.IfStmt:
		return l.lowerIf(s, target)
	case *glsl.ForStmt:
		return l.lowerFor(s, target)
	case *glsl.WhileStmt:
		return l.lowerWhile(s, target)
	case *glsl.DoStmt:
		return l.lowerDo(s, target)
	case *glsl.ReturnStmt:
		return l.lowerReturn(s, target)
	case *glsl.BreakStmt:
		l.appendStmt(target, ir.StmtBreak{})
		return nil
	case *glsl.ContinueStmt:
		l.appendStmt(target, ir.StmtContinue{})
		return nil
	case *glsl.DiscardStmt:
		l.appendStmt(target, ir.StmtKill{})
		return nil
	case *glsl.EmptyStmt:
		return nil
	}
	return fmt.Errorf("unsupported statement %T", stmt)
}

func (l *Lowerer) lowerLocalVars(d *glsl.VarDeclList, target *ir.Block) error {
	for _, v := range d.Vars {
		if d.Qual.Storage == glsl.StorageConst {
			l.consts[v.ID] = v.Init
			continue
		}
		ty, err := l.lowerType(v.Type)
		if err != nil {
			return fmt.Errorf("local %s: %w", v.Name, err)
		}
		idx := ir.Index(len(l.currentFunc.LocalVars))
		l.currentFunc.LocalVars = append(l.currentFunc.LocalVars, ir.LocalVariable{
			Name:      v.Name,
			Type:      ty,
			Precision: precision(d.Qual.Precision),
		})
		l.locals[v.ID] = idx
		if v.Init == nil {
			continue
		}
		value, err := l.lowerExpression(v.Init, target)
		if err != nil {
			return err
		}
		ptr := l.addExpression(ir.ExprLocalVariable{Variable: idx}, ty)
		l.appendStmt(target, ir.StmtStore{Pointer: ptr, Value: value})
	}
	return nil
}

func (l *Lowerer) lowerIf(s *glsl.IfStmt, target *ir.Block) error {
	condition, err := l.lowerExpression(s.Cond, target)
	if err != nil {
		return err
	}
	accept, err := l.nested(target, func(b *ir.Block) error {
		return l.lowerStatement(s.Then, b)
	})
	if err != nil {
		return err
	}
	reject := ir.Block{}
	if s.Else != nil {
		reject, err = l.nested(target, func(b *ir.Block) error {
			return l.lowerStatement(s.Else, b)
		})
		if err != nil {
			return err
		}
	}
	l.appendStmt(target, ir.StmtIf{Condition: condition, Accept: accept, Reject: reject})
	return nil
}

// breakUnless appends `if (!cond) break;` to body.
func (l *Lowerer) breakUnless(cond glsl.Expr, body *ir.Block) error {
	condition, err := l.lowerExpression(cond, body)
	if err != nil {
		return err
	}
	notCond := l.addExpression(ir.ExprUnary{Op: ir.UnaryLogicalNot, Expr: condition}, l.currentFunc.ExpressionTypes[condition])
	l.appendStmt(body, ir.StmtIf{
		Condition: notCond,
		Accept:    ir.Block{{Kind: ir.StmtBreak{}}},
		Reject:    ir.Block{},
	})
	return nil
}

// lowerFor converts a for loop to IR.
// For loops become: init; loop { if !condition { break }; body; continuing { update } }
func (l *Lowerer) lowerFor(s *glsl.ForStmt, target *ir.Block) error {
	if s.Init != nil {
		if err := l.lowerStatement(s.Init, target); err != nil {
			return err
		}
	}
	body, err := l.nested(target, func(b *ir.Block) error {
		if s.Cond != nil {
			if err := l.breakUnless(s.Cond, b); err != nil {
				return err
			}
		}
		return l.lowerStatement(s.Body, b)
	})
	if err != nil {
		return err
	}
	continuing, err := l.nested(target, func(b *ir.Block) error {
		if s.Post == nil {
			return nil
		}
		_, err := l.lowerExpression(s.Post, b)
		return err
	})
	if err != nil {
		return err
	}
	l.appendStmt(target, ir.StmtLoop{Body: body, Continuing: continuing})
	return nil
}

func (l *Lowerer) lowerWhile(s *glsl.WhileStmt, target *ir.Block) error {
	body, err := l.nested(target, func(b *ir.Block) error {
		if err := l.breakUnless(s.Cond, b); err != nil {
			return err
		}
		return l.lowerStatement(s.Body, b)
	})
	if err != nil {
		return err
	}
	l.appendStmt(target, ir.StmtLoop{Body: body, Continuing: ir.Block{}})
	return nil
}

// lowerDo evaluates the condition in the continuing block, so continue
// statements still test it.
func (l *Lowerer) lowerDo(s *glsl.DoStmt, target *ir.Block) error {
	body, err := l.nested(target, func(b *ir.Block) error {
		return l.lowerStatement(s.Body, b)
	})
	if err != nil {
		return err
	}
	var breakIf ir.ExpressionHandle
	continuing, err := l.nested(target, func(b *ir.Block) error {
		condition, err := l.lowerExpression(s.Cond, b)
		if err != nil {
			return err
		}
		breakIf = l.addExpression(ir.ExprUnary{Op: ir.UnaryLogicalNot, Expr: condition}, l.currentFunc.ExpressionTypes[condition])
		return nil
	})
	if err != nil {
		return err
	}
	l.appendStmt(target, ir.StmtLoop{Body: body, Continuing: continuing, BreakIf: &breakIf})
	return nil
}

func (l *Lowerer) lowerReturn(s *glsl.ReturnStmt, target *ir.Block) error {
	if s.Value == nil {
		l.appendStmt(target, ir.StmtReturn{})
		return nil
	}
	value, err := l.lowerExpression(s.Value, target)
	if err != nil {
		return err
	}
	l.appendStmt(target, ir.StmtReturn{Value: &value})
	return nil
}
