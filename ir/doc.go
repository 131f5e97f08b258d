// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package ir defines the intermediate representation the optimizer works on.
//
// # Structure
//
// A Module holds the deduplicated types, the global variables (including
// the builtin gl_ variables a shader touches) and the functions. Each
// Function owns an expression arena: expressions refer to their operands
// by ExpressionHandle, an index into Function.Expressions, and an operand
// always has a smaller handle than its user. Function.ExpressionTypes
// records the value type of every expression.
//
// Variables are reached through pointer expressions (GlobalVariable,
// LocalVariable, FunctionArgument and access chains over them), read with
// Load and written with a Store statement.
//
// # Evaluation order
//
// Statements form structured blocks. An Emit statement marks the point
// where a range of expressions is evaluated; a statement may only use an
// emitted expression from an enclosing block. Literals, constants,
// variable references and call results need no Emit.
//
// Passes are free to leave the arena out of order. Renumber restores
// evaluation order and drops unused expressions, and Validate checks the
// invariants above.
package ir
