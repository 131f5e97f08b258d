// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package codegen

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gogpu/glslopt/ir"
)

// writeBlock writes a block of statements.
func (w *Writer) writeBlock(block ir.Block) error {
	for _, stmt := range block {
		if err := w.writeStatement(stmt.Kind); err != nil {
			return err
		}
	}
	return nil
}

// writeNested writes an indented block. Expressions emitted inside it go
// out of scope at its end. tail, if set, runs inside the block's scope.
func (w *Writer) writeNested(block ir.Block, tail func() error) error {
	saved := slices.Clone(w.pending)
	w.pushIndent()
	err := w.writeBlock(block)
	if err == nil && tail != nil {
		err = tail()
	}
	w.popIndent()
	w.pending = saved
	w.prunePending()
	return err
}

// writeStatement writes a single statement.
func (w *Writer) writeStatement(kind ir.StatementKind) error {
	if emit, ok := kind.(ir.StmtEmit); ok {
		return w.emit(emit.Range)
	}
	if err := w.bakeConflicts(kind); err != nil {
		return err
	}

	switch s := kind.(type) {
	case ir.StmtBlock:
		w.writeLine("{")
		if err := w.writeNested(s.Block, nil); err != nil {
			return err
		}
		w.writeLine("}")
		return nil

	case ir.StmtIf:
		return w.writeIf(s)

	case ir.StmtLoop:
		return w.writeLoop(s)

	case ir.StmtBreak:
		w.writeLine("break;")
		return nil

	case ir.StmtContinue:
		w.writeLine("continue;")
		return nil

	case ir.StmtReturn:
		if s.Value == nil {
			w.writeLine("return;")
			return nil
		}
		value, err := w.expr(*s.Value)
		if err != nil {
			return err
		}
		w.writeLine("return %s;", value.text)
		return nil

	case ir.StmtKill:
		w.writeLine("discard;")
		return nil

	case ir.StmtStore:
		text, err := w.assignment(s)
		if err != nil {
			return err
		}
		w.writeLine("%s;", text)
		return nil

	case ir.StmtCall:
		return w.writeCall(s)

	default:
		return fmt.Errorf("unsupported statement kind: %T", kind)
	}
}

// writeIf writes an if statement, folding else blocks that hold only
// another if into an else-if chain.
func (w *Writer) writeIf(s ir.StmtIf) error {
	condition, err := w.expr(s.Condition)
	if err != nil {
		return err
	}
	w.writeLine("if (%s) {", condition.text)
	for {
		if err := w.writeNested(s.Accept, nil); err != nil {
			return err
		}
		if len(s.Reject) == 0 {
			break
		}
		next, ok := w.elseIf(s.Reject)
		if !ok {
			w.writeLine("} else {")
			if err := w.writeNested(s.Reject, nil); err != nil {
				return err
			}
			break
		}
		condition, err := w.expr(next.Condition)
		if err != nil {
			return err
		}
		w.writeLine("} else if (%s) {", condition.text)
		s = next
	}
	w.writeLine("}")
	return nil
}

// elseIf reports whether an else block is an if statement preceded only
// by Emits that print nothing. On success the Emits are applied.
func (w *Writer) elseIf(b ir.Block) (ir.StmtIf, bool) {
	last := len(b) - 1
	next, ok := b[last].Kind.(ir.StmtIf)
	if !ok || !w.emitsInline(b[:last]) {
		return ir.StmtIf{}, false
	}
	saved := slices.Clone(w.pending)
	for _, st := range b[:last] {
		if err := w.emit(st.Kind.(ir.StmtEmit).Range); err != nil {
			w.pending = saved
			return ir.StmtIf{}, false
		}
	}
	if len(w.conflicting(next)) > 0 {
		w.pending = saved
		return ir.StmtIf{}, false
	}
	return next, true
}

// writeLoop writes a loop in the most specific form that keeps its
// meaning: while, for, do-while, and otherwise an endless loop that runs
// the continuing block at the top of every iteration but the first.
func (w *Writer) writeLoop(loop ir.StmtLoop) error {
	if loop.BreakIf == nil {
		if i, ok := w.loopHead(loop.Body); ok && w.postable(loop.Continuing) {
			return w.writeForLoop(loop, i)
		}
		if len(loop.Continuing) == 0 {
			w.writeLine("for (;;) {")
			if err := w.writeNested(loop.Body, nil); err != nil {
				return err
			}
			w.writeLine("}")
			return nil
		}
	} else if w.emitsInline(loop.Continuing) {
		return w.writeDoWhile(loop)
	}

	first := w.fnNamer.call("_loop_init")
	w.writeLine("bool %s = true;", first)
	w.writeLine("for (;;) {")
	w.pushIndent()
	w.writeLine("if (!%s) {", first)
	err := w.writeNested(loop.Continuing, func() error {
		if loop.BreakIf == nil {
			return nil
		}
		condition, err := w.expr(*loop.BreakIf)
		if err != nil {
			return err
		}
		w.writeLine("if (%s) {", condition.text)
		w.pushIndent()
		w.writeLine("break;")
		w.popIndent()
		w.writeLine("}")
		return nil
	})
	if err != nil {
		return err
	}
	w.writeLine("}")
	w.writeLine("%s = false;", first)
	w.popIndent()
	if err := w.writeNested(loop.Body, nil); err != nil {
		return err
	}
	w.writeLine("}")
	return nil
}

// loopHead finds the `if (!cond) break;` a loop body starts with and
// returns its index. Only Emits that print nothing may precede it.
func (w *Writer) loopHead(body ir.Block) (int, bool) {
	for i, st := range body {
		switch s := st.Kind.(type) {
		case ir.StmtEmit:
			continue
		case ir.StmtIf:
			if len(s.Reject) != 0 || len(s.Accept) != 1 {
				return 0, false
			}
			if _, ok := s.Accept[0].Kind.(ir.StmtBreak); !ok {
				return 0, false
			}
			return i, w.emitsInline(body[:i])
		}
		return 0, false
	}
	return 0, false
}

// postable reports whether a continuing block can be printed as the
// step expression of a for loop.
func (w *Writer) postable(b ir.Block) bool {
	written := make(map[ir.Root]bool)
	for _, st := range b {
		switch s := st.Kind.(type) {
		case ir.StmtEmit:
			if !w.emitsInline(ir.Block{st}) {
				return false
			}
		case ir.StmtStore:
			for _, r := range append(w.reads(s.Pointer), w.reads(s.Value)...) {
				if written[r] {
					return false
				}
			}
			written[ir.PointerRoot(w.fn, s.Pointer)] = true
		default:
			return false
		}
	}
	return true
}

func (w *Writer) writeForLoop(loop ir.StmtLoop, head int) error {
	saved := slices.Clone(w.pending)
	for _, st := range loop.Body[:head] {
		if err := w.emit(st.Kind.(ir.StmtEmit).Range); err != nil {
			return err
		}
	}
	condition, err := w.negate(loop.Body[head].Kind.(ir.StmtIf).Condition)
	if err != nil {
		return err
	}
	var steps []string
	for _, st := range loop.Continuing {
		switch s := st.Kind.(type) {
		case ir.StmtEmit:
			if err := w.emit(s.Range); err != nil {
				return err
			}
		case ir.StmtStore:
			step, err := w.assignment(s)
			if err != nil {
				return err
			}
			steps = append(steps, step)
		}
	}
	if len(steps) == 0 {
		w.writeLine("while (%s) {", condition.text)
	} else {
		w.writeLine("for (; %s; %s) {", condition.text, strings.Join(steps, ", "))
	}
	err = w.writeNested(loop.Body[head+1:], nil)
	w.pending = saved
	w.prunePending()
	if err != nil {
		return err
	}
	w.writeLine("}")
	return nil
}

func (w *Writer) writeDoWhile(loop ir.StmtLoop) error {
	w.writeLine("do {")
	if err := w.writeNested(loop.Body, nil); err != nil {
		return err
	}
	saved := slices.Clone(w.pending)
	for _, st := range loop.Continuing {
		if err := w.emit(st.Kind.(ir.StmtEmit).Range); err != nil {
			return err
		}
	}
	condition, err := w.negate(*loop.BreakIf)
	if err != nil {
		return err
	}
	w.pending = saved
	w.prunePending()
	w.writeLine("} while (%s);", condition.text)
	return nil
}

// negate prints the logical negation of a bool expression, dropping a
// double negation.
func (w *Writer) negate(h ir.ExpressionHandle) (operand, error) {
	if _, done := w.named[h]; !done {
		if u, ok := w.fn.Expressions[h].Kind.(ir.ExprUnary); ok && u.Op == ir.UnaryLogicalNot {
			w.uses[h]--
			return w.expr(u.Expr)
		}
	}
	o, err := w.expr(h)
	if err != nil {
		return operand{}, err
	}
	return prefix("!", o), nil
}

// assignment prints a store without the semicolon, using increment and
// compound forms when the value updates the stored variable itself.
func (w *Writer) assignment(s ir.StmtStore) (string, error) {
	if text, ok, err := w.compoundAssignment(s); ok || err != nil {
		return text, err
	}
	pointer, err := w.expr(s.Pointer)
	if err != nil {
		return "", err
	}
	value, err := w.expr(s.Value)
	if err != nil {
		return "", err
	}
	return pointer.text + " = " + value.wrap(precAssign), nil
}

var compoundOps = map[ir.BinaryOperator]string{
	ir.BinaryAdd:      "+=",
	ir.BinarySubtract: "-=",
	ir.BinaryMultiply: "*=",
	ir.BinaryDivide:   "/=",
}

func (w *Writer) compoundAssignment(s ir.StmtStore) (string, bool, error) {
	switch w.fn.Expressions[s.Pointer].Kind.(type) {
	case ir.ExprLocalVariable, ir.ExprGlobalVariable, ir.ExprFunctionArgument:
	default:
		return "", false, nil
	}
	if _, done := w.named[s.Value]; done || w.uses[s.Value] != 1 {
		return "", false, nil
	}
	bin, ok := w.fn.Expressions[s.Value].Kind.(ir.ExprBinary)
	if !ok {
		return "", false, nil
	}
	op, ok := compoundOps[bin.Op]
	if !ok {
		return "", false, nil
	}
	load, ok := w.fn.Expressions[bin.Left].Kind.(ir.ExprLoad)
	if !ok || load.Pointer != s.Pointer || w.uses[bin.Left] != 1 {
		return "", false, nil
	}
	if _, done := w.named[bin.Left]; done {
		return "", false, nil
	}
	pointer, err := w.expr(s.Pointer)
	if err != nil {
		return "", false, err
	}
	w.uses[s.Value]--
	w.uses[bin.Left]--
	if isOne(w.fn.Expressions[bin.Right].Kind) && (bin.Op == ir.BinaryAdd || bin.Op == ir.BinarySubtract) {
		w.uses[bin.Right]--
		return pointer.text + op[:1] + op[:1], true, nil
	}
	right, err := w.expr(bin.Right)
	if err != nil {
		return "", false, err
	}
	return pointer.text + " " + op + " " + right.wrap(precAssign), true, nil
}

func isOne(kind ir.ExpressionKind) bool {
	lit, ok := kind.(ir.Literal)
	if !ok {
		return false
	}
	switch v := lit.Value.(type) {
	case ir.LiteralI32:
		return v == 1
	case ir.LiteralF32:
		return v == 1
	}
	return false
}

// writeCall writes a function call statement. A call with a result
// stores it in a temporary.
func (w *Writer) writeCall(call ir.StmtCall) error {
	args := make([]string, 0, len(call.Arguments))
	for _, arg := range call.Arguments {
		a, err := w.expr(arg)
		if err != nil {
			return err
		}
		args = append(args, a.text)
	}
	callExpr := fmt.Sprintf("%s(%s)", w.funcNames[call.Function], strings.Join(args, ", "))
	if call.Result == nil {
		w.writeLine("%s;", callExpr)
		return nil
	}
	name := w.temp("_fc")
	w.named[*call.Result] = name
	decl := w.typeName(w.fn.ExpressionTypes[*call.Result])
	if result := w.module.Functions[call.Function].Result; result != nil {
		if p := w.precision(result.Precision); p != "" {
			decl = p + " " + decl
		}
	}
	w.writeLine("%s %s = %s;", decl, name, callExpr)
	return nil
}
