// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

import (
	"fmt"
)

// ValidationError represents a validation error.
type ValidationError struct {
	Message string
	// Optional context
	Function   string
	Expression *ExpressionHandle
	Statement  int
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Function != "" {
		if e.Expression != nil {
			return fmt.Sprintf("in function %s, expression %d: %s", e.Function, *e.Expression, e.Message)
		}
		if e.Statement >= 0 {
			return fmt.Sprintf("in function %s, statement %d: %s", e.Function, e.Statement, e.Message)
		}
		return fmt.Sprintf("in function %s: %s", e.Function, e.Message)
	}
	return e.Message
}

// Validator validates IR modules.
type Validator struct {
	module  *Module
	errors  []ValidationError
	context validationContext
}

// validationContext holds current validation context.
type validationContext struct {
	function     *Function
	functionName string
	loopDepth    int
	inContinuing bool
	// visible marks expressions emitted in an enclosing scope.
	visible []bool
	// emitted marks expressions covered by some Emit already.
	emitted []bool
	// scope lists the expressions made visible in each open block.
	scope [][]ExpressionHandle
}

// Validate checks the IR module for correctness.
// Returns validation errors if any, or nil if module is valid.
func Validate(module *Module) ([]ValidationError, error) {
	if module == nil {
		return nil, fmt.Errorf("module is nil")
	}

	v := &Validator{
		module: module,
		errors: make([]ValidationError, 0),
	}

	v.ValidateModule()

	if len(v.errors) > 0 {
		return v.errors, nil
	}
	return nil, nil
}

// ValidateModule validates the complete module.
func (v *Validator) ValidateModule() {
	v.validateTypes()
	v.validateGlobalVariables()
	v.validateFunctions()
	v.validateEntryPoint()
}

// validateTypes checks all type definitions.
func (v *Validator) validateTypes() {
	for i := range v.module.Types {
		v.validateType(TypeHandle(Index(i)), &v.module.Types[i])
	}
}

// validateType validates a single type.
func (v *Validator) validateType(handle TypeHandle, typ *Type) {
	if typ.Inner == nil {
		v.addError(fmt.Sprintf("type %d has nil inner type", handle))
		return
	}

	switch inner := typ.Inner.(type) {
	case ScalarType:
		if inner.Kind > ScalarBool {
			v.addError(fmt.Sprintf("type %d: unknown scalar kind %d", handle, inner.Kind))
		}

	case VectorType:
		if !validSize(inner.Size) {
			v.addError(fmt.Sprintf("type %d: vector size must be 2, 3, or 4, got %d", handle, inner.Size))
		}

	case MatrixType:
		if !validSize(inner.Columns) {
			v.addError(fmt.Sprintf("type %d: matrix columns must be 2, 3, or 4, got %d", handle, inner.Columns))
		}
		if !validSize(inner.Rows) {
			v.addError(fmt.Sprintf("type %d: matrix rows must be 2, 3, or 4, got %d", handle, inner.Rows))
		}

	case ArrayType:
		if inner.Base >= handle {
			v.addError(fmt.Sprintf("type %d: array base type %d must precede it", handle, inner.Base))
		}

	case StructType:
		memberNames := make(map[string]bool)
		for j, member := range inner.Members {
			if member.Name == "" {
				v.addError(fmt.Sprintf("type %d: struct member %d has empty name", handle, j))
			}
			if memberNames[member.Name] {
				v.addError(fmt.Sprintf("type %d: duplicate struct member name %q", handle, member.Name))
			}
			memberNames[member.Name] = true
			if member.Type >= handle {
				v.addError(fmt.Sprintf("type %d: struct member %q type %d must precede it", handle, member.Name, member.Type))
			}
		}

	case SamplerType:
		if inner.Dim > DimCube {
			v.addError(fmt.Sprintf("type %d: unknown sampler dimension %d", handle, inner.Dim))
		}
	}
}

func validSize(s VectorSize) bool {
	return s == Vec2 || s == Vec3 || s == Vec4
}

// validateGlobalVariables checks all global variables.
func (v *Validator) validateGlobalVariables() {
	names := make(map[string]bool)
	for i, gv := range v.module.GlobalVariables {
		if gv.Name == "" {
			v.addError(fmt.Sprintf("global variable %d has empty name", i))
		}
		if names[gv.Name] {
			v.addError(fmt.Sprintf("duplicate global variable name %q", gv.Name))
		}
		names[gv.Name] = true

		if !v.isValidTypeHandle(gv.Type) {
			v.addError(fmt.Sprintf("global variable %d (%s): type %d does not exist", i, gv.Name, gv.Type))
		}
	}
}

// validateFunctions checks all functions.
func (v *Validator) validateFunctions() {
	for i := range v.module.Functions {
		fn := &v.module.Functions[i]
		n := len(fn.Expressions)
		v.context = validationContext{
			function:     fn,
			functionName: fn.Name,
			visible:      make([]bool, n),
			emitted:      make([]bool, n),
		}
		v.validateFunction(fn)
	}
}

// validateFunction validates a single function.
func (v *Validator) validateFunction(fn *Function) {
	for i, arg := range fn.Arguments {
		if !v.isValidTypeHandle(arg.Type) {
			v.addErrorInFunction(fmt.Sprintf("argument %d (%s): type %d does not exist", i, arg.Name, arg.Type))
		}
	}
	if fn.Result != nil && !v.isValidTypeHandle(fn.Result.Type) {
		v.addErrorInFunction(fmt.Sprintf("result type %d does not exist", fn.Result.Type))
	}
	for i, lv := range fn.LocalVars {
		if !v.isValidTypeHandle(lv.Type) {
			v.addErrorInFunction(fmt.Sprintf("local variable %d (%s): type %d does not exist", i, lv.Name, lv.Type))
		}
	}

	if len(fn.ExpressionTypes) != len(fn.Expressions) {
		v.addErrorInFunction(fmt.Sprintf("%d expression types for %d expressions", len(fn.ExpressionTypes), len(fn.Expressions)))
		return
	}
	ok := true
	for i := range fn.Expressions {
		if !v.validateExpression(ExpressionHandle(Index(i)), &fn.Expressions[i]) {
			ok = false
		}
	}
	if !ok {
		// Emit checks index the arena through operands.
		return
	}

	v.validateBlock(fn.Body)
}

// validateExpression validates a single expression. Operands must refer
// to earlier expressions.
func (v *Validator) validateExpression(handle ExpressionHandle, expr *Expression) bool {
	if expr.Kind == nil {
		v.addErrorInExpression(handle, "expression has nil kind")
		return false
	}
	if !v.isValidTypeHandle(v.context.function.ExpressionTypes[handle]) {
		v.addErrorInExpression(handle, fmt.Sprintf("type %d does not exist", v.context.function.ExpressionTypes[handle]))
	}

	ok := true
	VisitOperands(expr.Kind, func(op ExpressionHandle) {
		if op >= handle {
			v.addErrorInExpression(handle, fmt.Sprintf("operand %d does not precede the expression", op))
			ok = false
		}
	})
	if !ok {
		return false
	}

	fn := v.context.function
	switch kind := expr.Kind.(type) {
	case Literal:
		if kind.Value == nil {
			v.addErrorInExpression(handle, "literal has no value")
		}

	case ExprConstant:
		if !v.isValidTypeHandle(kind.Type) {
			v.addErrorInExpression(handle, fmt.Sprintf("type %d does not exist", kind.Type))
		}

	case ExprCompose:
		if !v.isValidTypeHandle(kind.Type) {
			v.addErrorInExpression(handle, fmt.Sprintf("type %d does not exist", kind.Type))
		}
		if len(kind.Components) == 0 {
			v.addErrorInExpression(handle, "compose has no components")
		}

	case ExprSwizzle:
		if kind.Size < 1 || kind.Size > Vec4 {
			v.addErrorInExpression(handle, fmt.Sprintf("swizzle size must be 1 to 4, got %d", kind.Size))
		}
		for i := 0; i < int(kind.Size) && i < 4; i++ {
			if kind.Pattern[i] > SwizzleW {
				v.addErrorInExpression(handle, fmt.Sprintf("pattern[%d] invalid component %d", i, kind.Pattern[i]))
			}
		}
		if IsPointer(fn, kind.Vector) {
			seen := [4]bool{}
			for i := 0; i < int(kind.Size) && i < 4; i++ {
				if seen[kind.Pattern[i]&3] {
					v.addErrorInExpression(handle, "swizzle of a pointer repeats a component")
				}
				seen[kind.Pattern[i]&3] = true
			}
		}

	case ExprFunctionArgument:
		if int(kind.Index) >= len(fn.Arguments) {
			v.addErrorInExpression(handle, fmt.Sprintf("argument index %d out of range (function has %d args)",
				kind.Index, len(fn.Arguments)))
		}

	case ExprGlobalVariable:
		if int(kind.Variable) >= len(v.module.GlobalVariables) {
			v.addErrorInExpression(handle, fmt.Sprintf("global variable %d does not exist", kind.Variable))
		}

	case ExprLocalVariable:
		if int(kind.Variable) >= len(fn.LocalVars) {
			v.addErrorInExpression(handle, fmt.Sprintf("local variable index %d out of range (function has %d vars)",
				kind.Variable, len(fn.LocalVars)))
		}

	case ExprLoad:
		if !IsPointer(fn, kind.Pointer) {
			v.addErrorInExpression(handle, fmt.Sprintf("load from non-pointer expression %d", kind.Pointer))
		}

	case ExprImageSample:
		if !v.isSampler(fn.ExpressionTypes[kind.Sampler]) {
			v.addErrorInExpression(handle, fmt.Sprintf("sampler expression %d is not a sampler", kind.Sampler))
		}

	case ExprCallResult:
		if !v.isValidFunctionHandle(kind.Function) {
			v.addErrorInExpression(handle, fmt.Sprintf("function %d does not exist", kind.Function))
		}

	default:
		// Pointers are only valid as the root of an access chain, a
		// load, a store or an out argument.
		VisitOperands(expr.Kind, func(op ExpressionHandle) {
			if isAccess(expr.Kind) {
				return
			}
			if IsPointer(fn, op) {
				v.addErrorInExpression(handle, fmt.Sprintf("operand %d is a pointer", op))
			}
		})
	}
	return true
}

func isAccess(kind ExpressionKind) bool {
	switch kind.(type) {
	case ExprAccess, ExprAccessIndex:
		return true
	}
	return false
}

// validateBlock validates a block of statements in its own emit scope.
func (v *Validator) validateBlock(block Block) {
	v.context.scope = append(v.context.scope, nil)
	for i := range block {
		v.validateStatement(i, &block[i])
	}
	top := v.context.scope[len(v.context.scope)-1]
	for _, h := range top {
		v.context.visible[h] = false
	}
	v.context.scope = v.context.scope[:len(v.context.scope)-1]
}

func (v *Validator) makeVisible(h ExpressionHandle) {
	v.context.visible[h] = true
	last := len(v.context.scope) - 1
	v.context.scope[last] = append(v.context.scope[last], h)
}

// use checks that a statement may refer to h at this point.
func (v *Validator) use(index int, h ExpressionHandle, what string) bool {
	if !v.isValidExpressionHandle(h) {
		v.addErrorInStatement(index, fmt.Sprintf("%s expression %d does not exist", what, h))
		return false
	}
	kind := v.context.function.Expressions[h].Kind
	_, isResult := kind.(ExprCallResult)
	if (IsEmittable(kind) || isResult) && !v.context.visible[h] {
		v.addErrorInStatement(index, fmt.Sprintf("%s expression %d is used before it is emitted", what, h))
		return false
	}
	return true
}

// validateStatement validates a single statement.
func (v *Validator) validateStatement(index int, stmt *Statement) {
	if stmt.Kind == nil {
		v.addErrorInStatement(index, "statement has nil kind")
		return
	}
	fn := v.context.function

	switch kind := stmt.Kind.(type) {
	case StmtEmit:
		exprCount := len(fn.Expressions)
		if int(kind.Range.End) > exprCount {
			v.addErrorInStatement(index, fmt.Sprintf("emit range end %d out of range", kind.Range.End))
			return
		}
		if kind.Range.Start >= kind.Range.End {
			v.addErrorInStatement(index, fmt.Sprintf("emit range start %d >= end %d", kind.Range.Start, kind.Range.End))
			return
		}
		for h := kind.Range.Start; h < kind.Range.End; h++ {
			if !IsEmittable(fn.Expressions[h].Kind) {
				continue
			}
			if v.context.emitted[h] {
				v.addErrorInStatement(index, fmt.Sprintf("expression %d is emitted twice", h))
			}
			v.context.emitted[h] = true
			VisitOperands(fn.Expressions[h].Kind, func(op ExpressionHandle) {
				v.use(index, op, "operand")
			})
			v.makeVisible(h)
		}

	case StmtBlock:
		v.validateBlock(kind.Block)

	case StmtIf:
		if v.use(index, kind.Condition, "condition") && !v.isBool(kind.Condition) {
			v.addErrorInStatement(index, fmt.Sprintf("condition expression %d is not a bool", kind.Condition))
		}
		v.validateBlock(kind.Accept)
		v.validateBlock(kind.Reject)

	case StmtLoop:
		oldDepth := v.context.loopDepth
		v.context.loopDepth++

		v.validateBlock(kind.Body)

		oldContinuing := v.context.inContinuing
		v.context.inContinuing = true
		// The break-if condition is evaluated in the continuing scope.
		v.context.scope = append(v.context.scope, nil)
		for i := range kind.Continuing {
			v.validateStatement(i, &kind.Continuing[i])
		}
		if kind.BreakIf != nil && v.use(index, *kind.BreakIf, "break-if") && !v.isBool(*kind.BreakIf) {
			v.addErrorInStatement(index, fmt.Sprintf("break-if expression %d is not a bool", *kind.BreakIf))
		}
		for _, h := range v.context.scope[len(v.context.scope)-1] {
			v.context.visible[h] = false
		}
		v.context.scope = v.context.scope[:len(v.context.scope)-1]
		v.context.inContinuing = oldContinuing

		v.context.loopDepth = oldDepth

	case StmtBreak:
		if v.context.loopDepth == 0 {
			v.addErrorInStatement(index, "break outside of loop")
		}
		if v.context.inContinuing {
			v.addErrorInStatement(index, "break in continuing block")
		}

	case StmtContinue:
		if v.context.loopDepth == 0 {
			v.addErrorInStatement(index, "continue outside of loop")
		}
		if v.context.inContinuing {
			v.addErrorInStatement(index, "continue in continuing block")
		}

	case StmtReturn:
		if v.context.inContinuing {
			v.addErrorInStatement(index, "return in continuing block")
		}
		switch {
		case kind.Value != nil && fn.Result == nil:
			v.addErrorInStatement(index, "return with a value in a void function")
		case kind.Value == nil && fn.Result != nil:
			v.addErrorInStatement(index, "return without a value")
		case kind.Value != nil:
			v.use(index, *kind.Value, "return value")
		}

	case StmtKill:
		if v.context.inContinuing {
			v.addErrorInStatement(index, "kill in continuing block")
		}

	case StmtStore:
		if v.use(index, kind.Pointer, "pointer") && !IsPointer(fn, kind.Pointer) {
			v.addErrorInStatement(index, fmt.Sprintf("store to non-pointer expression %d", kind.Pointer))
		}
		v.use(index, kind.Value, "value")

	case StmtCall:
		v.validateCall(index, kind)
	}
}

func (v *Validator) validateCall(index int, call StmtCall) {
	if !v.isValidFunctionHandle(call.Function) {
		v.addErrorInStatement(index, fmt.Sprintf("function %d does not exist", call.Function))
		return
	}
	callee := &v.module.Functions[call.Function]
	if len(call.Arguments) != len(callee.Arguments) {
		v.addErrorInStatement(index, fmt.Sprintf("call to %s with %d arguments, expected %d",
			callee.Name, len(call.Arguments), len(callee.Arguments)))
		return
	}
	for i, arg := range call.Arguments {
		if !v.use(index, arg, fmt.Sprintf("argument %d", i)) {
			continue
		}
		isPtr := IsPointer(v.context.function, arg)
		if callee.Arguments[i].Qualifier != ArgIn && !isPtr {
			v.addErrorInStatement(index, fmt.Sprintf("argument %d to %s must be a pointer", i, callee.Name))
		}
		if callee.Arguments[i].Qualifier == ArgIn && isPtr {
			v.addErrorInStatement(index, fmt.Sprintf("argument %d to %s must be a value", i, callee.Name))
		}
	}
	switch {
	case call.Result != nil && callee.Result == nil:
		v.addErrorInStatement(index, fmt.Sprintf("call to void function %s has a result", callee.Name))
	case call.Result != nil:
		if !v.isValidExpressionHandle(*call.Result) {
			v.addErrorInStatement(index, fmt.Sprintf("result expression %d does not exist", *call.Result))
			return
		}
		res, ok := v.context.function.Expressions[*call.Result].Kind.(ExprCallResult)
		if !ok || res.Function != call.Function {
			v.addErrorInStatement(index, fmt.Sprintf("result expression %d is not a result of %s", *call.Result, callee.Name))
			return
		}
		if v.context.visible[*call.Result] {
			v.addErrorInStatement(index, fmt.Sprintf("result expression %d is defined twice", *call.Result))
		}
		v.makeVisible(*call.Result)
	}
}

// validateEntryPoint checks main.
func (v *Validator) validateEntryPoint() {
	if !v.isValidFunctionHandle(v.module.EntryPoint) {
		v.addError(fmt.Sprintf("entry point function %d does not exist", v.module.EntryPoint))
		return
	}
	fn := &v.module.Functions[v.module.EntryPoint]
	if len(fn.Arguments) != 0 || fn.Result != nil {
		v.addError(fmt.Sprintf("entry point %q must take no arguments and return void", fn.Name))
	}
}

func (v *Validator) isBool(h ExpressionHandle) bool {
	ty := v.context.function.ExpressionTypes[h]
	if !v.isValidTypeHandle(ty) {
		return false
	}
	s, ok := v.module.Types[ty].Inner.(ScalarType)
	return ok && s.Kind == ScalarBool
}

func (v *Validator) isSampler(ty TypeHandle) bool {
	if !v.isValidTypeHandle(ty) {
		return false
	}
	_, ok := v.module.Types[ty].Inner.(SamplerType)
	return ok
}

// Helper methods for validation

func (v *Validator) isValidTypeHandle(handle TypeHandle) bool {
	return int(handle) < len(v.module.Types)
}

func (v *Validator) isValidFunctionHandle(handle FunctionHandle) bool {
	return int(handle) < len(v.module.Functions)
}

func (v *Validator) isValidExpressionHandle(handle ExpressionHandle) bool {
	if v.context.function == nil {
		return false
	}
	return int(handle) < len(v.context.function.Expressions)
}

func (v *Validator) addError(msg string) {
	v.errors = append(v.errors, ValidationError{
		Message:   msg,
		Statement: -1,
	})
}

func (v *Validator) addErrorInFunction(msg string) {
	v.errors = append(v.errors, ValidationError{
		Message:   msg,
		Function:  v.context.functionName,
		Statement: -1,
	})
}

func (v *Validator) addErrorInExpression(handle ExpressionHandle, msg string) {
	v.errors = append(v.errors, ValidationError{
		Message:    msg,
		Function:   v.context.functionName,
		Expression: &handle,
		Statement:  -1,
	})
}

func (v *Validator) addErrorInStatement(index int, msg string) {
	v.errors = append(v.errors, ValidationError{
		Message:   msg,
		Function:  v.context.functionName,
		Statement: index,
	})
}
