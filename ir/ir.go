// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

import (
	"fmt"

	"fortio.org/safecast"
)

// Module represents a shader in IR form.
type Module struct {
	// Types holds all type definitions.
	Types []Type

	// GlobalVariables holds module-scope variables, including the builtin
	// variables the shader references.
	GlobalVariables []GlobalVariable

	// Functions holds all function definitions.
	Functions []Function

	// EntryPoint is the main function.
	EntryPoint FunctionHandle

	Stage ShaderStage

	// Version is the #version of the source, 0 if it had none.
	Version int

	// Extensions are the #extension directives of the source.
	Extensions []Extension

	// DefaultFloatPrecision is the global default float precision.
	DefaultFloatPrecision Precision
}

// Extension is an #extension directive.
type Extension struct {
	Name     string
	Behavior string
}

// ShaderStage represents a shader stage.
type ShaderStage uint8

const (
	StageVertex ShaderStage = iota
	StageFragment
)

// Handle types for referencing IR objects
type (
	TypeHandle           uint32
	FunctionHandle       uint32
	GlobalVariableHandle uint32
	ExpressionHandle     uint32
)

// Type represents a type in the IR.
type Type struct {
	Name  string
	Inner TypeInner
}

// TypeInner represents the inner type kind.
type TypeInner interface {
	typeInner()
}

// ScalarType represents scalar types.
type ScalarType struct {
	Kind ScalarKind
}

func (ScalarType) typeInner() {}

// ScalarKind represents scalar type kinds.
type ScalarKind uint8

const (
	ScalarSint  ScalarKind = iota // Signed integer
	ScalarFloat                   // Floating point
	ScalarBool                    // Boolean
)

// VectorType represents vector types.
type VectorType struct {
	Size   VectorSize
	Scalar ScalarType
}

func (VectorType) typeInner() {}

// VectorSize represents vector sizes.
type VectorSize uint8

const (
	Vec2 VectorSize = 2
	Vec3 VectorSize = 3
	Vec4 VectorSize = 4
)

// MatrixType represents float matrix types.
type MatrixType struct {
	Columns VectorSize
	Rows    VectorSize
}

func (MatrixType) typeInner() {}

// ArrayType represents array types. A Size of 0 is an unsized array
// parameter.
type ArrayType struct {
	Base TypeHandle
	Size uint32
}

func (ArrayType) typeInner() {}

// StructType represents struct types.
type StructType struct {
	Members []StructMember
}

func (StructType) typeInner() {}

// StructMember represents a struct member.
type StructMember struct {
	Name string
	Type TypeHandle
}

// SamplerType represents combined texture-sampler types.
type SamplerType struct {
	Dim    ImageDimension
	Shadow bool
}

func (SamplerType) typeInner() {}

// ImageDimension represents image dimensions.
type ImageDimension uint8

const (
	Dim1D ImageDimension = iota
	Dim2D
	Dim3D
	DimCube
)

// Precision is a precision qualifier. It only affects the embedded
// profile's output.
type Precision uint8

const (
	PrecisionNone Precision = iota
	PrecisionLow
	PrecisionMedium
	PrecisionHigh
)

// AddressSpace represents where a global variable lives.
type AddressSpace uint8

const (
	// SpacePrivate is a plain global variable.
	SpacePrivate AddressSpace = iota
	SpaceUniform
	// SpaceAttribute is a vertex input.
	SpaceAttribute
	// SpaceVarying is a vertex output or fragment input.
	SpaceVarying
	// SpaceInput is a read-only builtin input such as gl_FragCoord.
	SpaceInput
	// SpaceOutput is a builtin output such as gl_Position.
	SpaceOutput
)

// GlobalVariable represents a global variable.
type GlobalVariable struct {
	Name      string
	Space     AddressSpace
	Type      TypeHandle
	Precision Precision
	Invariant bool
	// Builtin marks gl_ variables; they are never declared or renamed.
	Builtin bool
}

// IsOutput reports whether stores to the variable are visible outside
// the shader.
func (g *GlobalVariable) IsOutput(stage ShaderStage) bool {
	switch g.Space {
	case SpaceOutput:
		return true
	case SpaceVarying:
		return stage == StageVertex
	}
	return false
}

// Function represents a function definition.
type Function struct {
	Name      string
	Arguments []FunctionArgument
	Result    *FunctionResult
	LocalVars []LocalVariable
	// Expressions is the expression arena. An expression's operands always
	// have smaller handles than the expression itself.
	Expressions []Expression
	// ExpressionTypes holds the value type of each expression, parallel to
	// Expressions. Pointer expressions record the type they point to.
	ExpressionTypes []TypeHandle
	Body            Block
}

// ArgumentQualifier is a parameter's direction.
type ArgumentQualifier uint8

const (
	ArgIn ArgumentQualifier = iota
	ArgOut
	ArgInOut
)

// FunctionArgument represents a function argument.
type FunctionArgument struct {
	Name      string
	Type      TypeHandle
	Qualifier ArgumentQualifier
	// Const marks `const in` parameters.
	Const     bool
	Precision Precision
}

// FunctionResult represents a function return type.
type FunctionResult struct {
	Type      TypeHandle
	Precision Precision
}

// LocalVariable represents a function-local variable. Locals start
// undefined; initializers are lowered to stores.
type LocalVariable struct {
	Name      string
	Type      TypeHandle
	Precision Precision
}

// AddExpression appends an expression of the given type to the arena
// and returns its handle.
func (f *Function) AddExpression(kind ExpressionKind, ty TypeHandle) ExpressionHandle {
	h := ExpressionHandle(Index(len(f.Expressions)))
	f.Expressions = append(f.Expressions, Expression{Kind: kind})
	f.ExpressionTypes = append(f.ExpressionTypes, ty)
	return h
}

// EnsureType returns the handle of a type structurally equal to inner,
// appending it to the module if none exists.
func (m *Module) EnsureType(inner TypeInner) TypeHandle {
	return NewTypeRegistry(m).GetOrCreate("", inner)
}

// Index converts an arena index to a handle value. Arenas never outgrow
// the handle range, so an overflow is a programming error.
func Index(i int) uint32 {
	v, err := safecast.Conv[uint32](i)
	if err != nil {
		panic(fmt.Errorf("arena index overflow: %w", err))
	}
	return v
}

// TypesEqual compares two inner types structurally. Struct types are
// compared by identity of their members.
func TypesEqual(a, b TypeInner) bool {
	switch x := a.(type) {
	case ScalarType:
		y, ok := b.(ScalarType)
		return ok && x == y
	case VectorType:
		y, ok := b.(VectorType)
		return ok && x == y
	case MatrixType:
		y, ok := b.(MatrixType)
		return ok && x == y
	case ArrayType:
		y, ok := b.(ArrayType)
		return ok && x == y
	case SamplerType:
		y, ok := b.(SamplerType)
		return ok && x == y
	case StructType:
		y, ok := b.(StructType)
		if !ok || len(x.Members) != len(y.Members) {
			return false
		}
		for i := range x.Members {
			if x.Members[i] != y.Members[i] {
				return false
			}
		}
		return true
	}
	return false
}
