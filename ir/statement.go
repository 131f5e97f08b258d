// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

// Statement represents a statement in the IR.
// Statements have side effects and structured control flow, but do not produce values.
// The function body is represented as a tree of statements, with references to expressions.
type Statement struct {
	Kind StatementKind
}

// StatementKind represents the different kinds of statements.
type StatementKind interface {
	statementKind()
}

// Block represents a sequence of statements executed in order.
type Block []Statement

// Range represents a range of expression handles for Emit statements.
type Range struct {
	Start ExpressionHandle
	End   ExpressionHandle // Exclusive
}

// StmtEmit emits a range of expressions, making them visible to all statements that follow.
// An emitted expression is evaluated at the Emit, so loads observe the
// stores made before it. Non-emittable expressions in the range are ignored.
type StmtEmit struct {
	Range Range
}

func (StmtEmit) statementKind() {}

// StmtBlock contains a sequence of statements to be executed in order.
type StmtBlock struct {
	Block Block
}

func (StmtBlock) statementKind() {}

// StmtIf conditionally executes one of two blocks based on the condition value.
// There are no phi instructions. To use values computed in accept or reject
// blocks after the If statement, store them in a LocalVariable.
type StmtIf struct {
	Condition ExpressionHandle // Must be a bool expression
	Accept    Block
	Reject    Block
}

func (StmtIf) statementKind() {}

// StmtLoop executes a block repeatedly.
// Each iteration executes the Body block, followed by the Continuing block.
// The Continuing block holds the step of a for loop and the condition of a do-while loop.
// Break, Return, or Kill statements exit the loop.
// Continue statements in Body jump to the Continuing block.
type StmtLoop struct {
	Body       Block
	Continuing Block
	BreakIf    *ExpressionHandle // Optional break-if expression evaluated after continuing
}

func (StmtLoop) statementKind() {}

// StmtBreak exits the innermost enclosing Loop.
// May not break out of a Loop from within its continuing block.
type StmtBreak struct{}

func (StmtBreak) statementKind() {}

// StmtContinue skips to the continuing block of the innermost enclosing Loop.
// May only appear within the body block of a Loop (not in the continuing block).
type StmtContinue struct{}

func (StmtContinue) statementKind() {}

// StmtReturn returns from the function, possibly with a value.
// Forbidden within the continuing block of a Loop statement.
type StmtReturn struct {
	Value *ExpressionHandle
}

func (StmtReturn) statementKind() {}

// StmtKill aborts the current shader execution (fragment shader discard).
// Forbidden within the continuing block of a Loop statement.
type StmtKill struct{}

func (StmtKill) statementKind() {}

// StmtStore stores a value at an address through a pointer.
// This acts as a barrier for operations on the underlying variable.
type StmtStore struct {
	Pointer ExpressionHandle
	Value   ExpressionHandle
}

func (StmtStore) statementKind() {}

// StmtCall calls a function.
// Arguments for in parameters are values; arguments for out and inout
// parameters are pointers.
// If Result is set, it must be a CallResult expression.
type StmtCall struct {
	Function  FunctionHandle
	Arguments []ExpressionHandle
	Result    *ExpressionHandle
}

func (StmtCall) statementKind() {}
