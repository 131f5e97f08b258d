// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

// Expression represents an expression in the IR.
// Expressions are pure values identified by their arena handle.
type Expression struct {
	Kind ExpressionKind
	// Span is where the expression came from in the source.
	Span Span
}

// Span is a 1-based source line and column. The zero Span marks an
// expression the compiler synthesized.
type Span struct {
	Line   int
	Column int
}

// ExpressionKind represents the different kinds of expressions.
type ExpressionKind interface {
	expressionKind()
}

// Literal represents a scalar literal constant value.
type Literal struct {
	Value LiteralValue
}

func (Literal) expressionKind() {}

// LiteralValue represents the value of a literal.
type LiteralValue interface {
	literalValue()
}

// LiteralF32 represents a 32-bit float literal. Infinities and NaN are
// allowed; they arise from constant folding.
type LiteralF32 float32

func (LiteralF32) literalValue() {}

// LiteralI32 represents a 32-bit signed integer literal.
type LiteralI32 int32

func (LiteralI32) literalValue() {}

// LiteralBool represents a boolean literal.
type LiteralBool bool

func (LiteralBool) literalValue() {}

// ExprConstant is a folded vector or matrix constant. Components holds
// one literal per component, matrices in column-major order.
type ExprConstant struct {
	Type       TypeHandle
	Components []LiteralValue
}

func (ExprConstant) expressionKind() {}

// ExprCompose constructs a value with constructor semantics: the
// components of all operands are concatenated and converted to the
// result's component kind. A single scalar operand fills every component
// of a vector and the diagonal of a matrix; a single matrix operand is
// resized.
type ExprCompose struct {
	Type       TypeHandle
	Components []ExpressionHandle
}

func (ExprCompose) expressionKind() {}

// ExprAccess performs array/vector/matrix access with a computed index.
// On a pointer base it yields a pointer.
type ExprAccess struct {
	Base  ExpressionHandle
	Index ExpressionHandle
}

func (ExprAccess) expressionKind() {}

// ExprAccessIndex performs access with a compile-time constant index.
// Can access arrays, vectors, matrices, and struct fields.
type ExprAccessIndex struct {
	Base  ExpressionHandle
	Index uint32
}

func (ExprAccessIndex) expressionKind() {}

// ExprSwizzle reorders or duplicates vector components. A Size of 1
// selects a scalar. On a pointer base the pattern must not repeat a
// component and the result is a pointer to the selected components.
type ExprSwizzle struct {
	Size    VectorSize
	Vector  ExpressionHandle
	Pattern [4]SwizzleComponent
}

func (ExprSwizzle) expressionKind() {}

// SwizzleComponent represents a single component in a vector swizzle.
type SwizzleComponent uint8

const (
	SwizzleX SwizzleComponent = 0
	SwizzleY SwizzleComponent = 1
	SwizzleZ SwizzleComponent = 2
	SwizzleW SwizzleComponent = 3
)

// ExprFunctionArgument references a function parameter by its index.
// Parameters are variables in the shading language, so this produces a
// pointer.
type ExprFunctionArgument struct {
	Index uint32
}

func (ExprFunctionArgument) expressionKind() {}

// ExprGlobalVariable references a global variable. Produces a pointer.
type ExprGlobalVariable struct {
	Variable GlobalVariableHandle
}

func (ExprGlobalVariable) expressionKind() {}

// ExprLocalVariable references a local variable.
// Produces a pointer to the variable's value.
type ExprLocalVariable struct {
	Variable uint32 // Index into Function.LocalVars
}

func (ExprLocalVariable) expressionKind() {}

// ExprLoad loads a value indirectly through a pointer.
type ExprLoad struct {
	Pointer ExpressionHandle
}

func (ExprLoad) expressionKind() {}

// ExprImageSample samples a texture through a sampler value. The lookup
// function follows from the sampler type, Project and Level.
type ExprImageSample struct {
	Sampler    ExpressionHandle
	Coordinate ExpressionHandle
	// Project divides the coordinate by its last component.
	Project bool
	Level   SampleLevel
}

func (ExprImageSample) expressionKind() {}

// SampleLevel controls the level of detail for texture sampling.
type SampleLevel interface {
	sampleLevel()
}

// SampleLevelAuto uses automatic level of detail.
type SampleLevelAuto struct{}

func (SampleLevelAuto) sampleLevel() {}

// SampleLevelExact uses an explicit level of detail.
type SampleLevelExact struct {
	Level ExpressionHandle
}

func (SampleLevelExact) sampleLevel() {}

// SampleLevelBias uses automatic level of detail with a bias.
type SampleLevelBias struct {
	Bias ExpressionHandle
}

func (SampleLevelBias) sampleLevel() {}

// ExprUnary applies a unary operator to an expression.
type ExprUnary struct {
	Op   UnaryOperator
	Expr ExpressionHandle
}

func (ExprUnary) expressionKind() {}

// UnaryOperator represents unary operations.
type UnaryOperator uint8

const (
	UnaryNegate     UnaryOperator = iota // Arithmetic negation
	UnaryLogicalNot                      // Logical not (!)
)

// ExprBinary applies a binary operator to two expressions. Arithmetic
// follows the shading language: scalars combine with vectors and
// matrices component-wise, and Multiply on matrices is the linear algebra
// product. Equal and NotEqual compare whole values and yield a bool.
type ExprBinary struct {
	Op    BinaryOperator
	Left  ExpressionHandle
	Right ExpressionHandle
}

func (ExprBinary) expressionKind() {}

// BinaryOperator represents binary operations.
type BinaryOperator uint8

const (
	// Arithmetic operations
	BinaryAdd      BinaryOperator = iota // Addition
	BinarySubtract                       // Subtraction
	BinaryMultiply                       // Multiplication
	BinaryDivide                         // Division

	// Comparison operations
	BinaryEqual        // Equal (==)
	BinaryNotEqual     // Not equal (!=)
	BinaryLess         // Less than (<)
	BinaryLessEqual    // Less than or equal (<=)
	BinaryGreater      // Greater than (>)
	BinaryGreaterEqual // Greater than or equal (>=)

	// Logical operations
	BinaryLogicalAnd // Logical AND (&&)
	BinaryLogicalOr  // Logical OR (||)
	BinaryLogicalXor // Logical XOR (^^)
)

// ExprSelect selects between two values based on a boolean condition.
// Equivalent to the ternary operator (condition ? accept : reject).
type ExprSelect struct {
	Condition ExpressionHandle
	Accept    ExpressionHandle
	Reject    ExpressionHandle
}

func (ExprSelect) expressionKind() {}

// ExprDerivative computes the derivative of an expression.
type ExprDerivative struct {
	Axis DerivativeAxis
	Expr ExpressionHandle
}

func (ExprDerivative) expressionKind() {}

// DerivativeAxis specifies the axis for derivative computation.
type DerivativeAxis uint8

const (
	DerivativeX     DerivativeAxis = iota // Partial derivative with respect to X
	DerivativeY                           // Partial derivative with respect to Y
	DerivativeWidth                       // Sum of absolute derivatives (fwidth)
)

// ExprRelational applies a vector relational function. The comparison
// functions take a second argument and work component-wise.
type ExprRelational struct {
	Fun      RelationalFunction
	Argument ExpressionHandle
	Arg1     *ExpressionHandle
}

func (ExprRelational) expressionKind() {}

// RelationalFunction represents built-in relational test functions.
type RelationalFunction uint8

const (
	RelationalAll RelationalFunction = iota // All components are true
	RelationalAny                           // Any component is true
	RelationalNot                           // Component-wise logical not
	RelationalLessThan
	RelationalLessThanEqual
	RelationalGreaterThan
	RelationalGreaterThanEqual
	RelationalEqual
	RelationalNotEqual
)

// ExprMath applies a mathematical function.
type ExprMath struct {
	Fun  MathFunction
	Arg  ExpressionHandle
	Arg1 *ExpressionHandle
	Arg2 *ExpressionHandle
}

func (ExprMath) expressionKind() {}

// MathFunction represents built-in mathematical functions.
type MathFunction uint8

const (
	// Angle and trigonometry
	MathRadians MathFunction = iota
	MathDegrees
	MathSin
	MathCos
	MathTan
	MathAsin
	MathAcos
	MathAtan
	MathAtan2

	// Exponential
	MathPow
	MathExp
	MathLog
	MathExp2
	MathLog2
	MathSqrt
	MathInverseSqrt

	// Common
	MathAbs
	MathSign
	MathFloor
	MathCeil
	MathFract
	MathMod
	MathMin
	MathMax
	MathClamp
	MathMix
	MathStep
	MathSmoothStep

	// Geometric
	MathLength
	MathDistance
	MathDot
	MathCross
	MathNormalize
	MathFaceForward
	MathReflect
	MathRefract

	// Matrix
	MathMatrixCompMult
	MathTranspose
	MathOuter
)

// ExprFTransform is the vertex position transformed exactly as the fixed
// function pipeline would.
type ExprFTransform struct{}

func (ExprFTransform) expressionKind() {}

// ExprAs converts every component of a value to another scalar kind,
// keeping its shape.
type ExprAs struct {
	Expr ExpressionHandle
	Kind ScalarKind
}

func (ExprAs) expressionKind() {}

// ExprCallResult represents the result of a function call.
type ExprCallResult struct {
	Function FunctionHandle
}

func (ExprCallResult) expressionKind() {}
