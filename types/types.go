// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package types implements the structural type model of the shading
// language. It is shared by the semantic analyzer, the IR builder and the
// raw code generator.
//
// Types are immutable once constructed and compared structurally with
// Equal; two types are equal iff their shapes are equal.
package types

import (
	"fmt"
	"strings"
)

// Kind is the top-level classification of a type.
type Kind uint8

const (
	Void Kind = iota
	Bool
	Int
	Float
	Vector
	Matrix
	Sampler
	Array
	Struct
	// Error is the synthetic type given to expressions that failed to
	// type-check. Any operation involving it yields Error silently.
	Error
)

// SamplerDim identifies the sampler flavor.
type SamplerDim uint8

const (
	Sampler2D SamplerDim = iota
	Sampler3D
	SamplerCube
	Sampler2DShadow
	Sampler1D
	Sampler1DShadow
)

// Field is a named struct member.
type Field struct {
	Name string
	Type *Type
}

// Type describes a shader type.
type Type struct {
	Kind Kind

	// Scalar is the component kind of vectors and matrices (Bool, Int or Float).
	Scalar Kind
	// Size is the component count of a vector or the column count of a matrix.
	Size int
	// Rows is the row count of a matrix.
	Rows int

	Dim SamplerDim

	Elem *Type
	Len  int

	Name   string
	Fields []Field
}

var (
	VoidType  = &Type{Kind: Void}
	BoolType  = &Type{Kind: Bool}
	IntType   = &Type{Kind: Int}
	FloatType = &Type{Kind: Float}
	// Invalid is the error type.
	Invalid = &Type{Kind: Error}
)

// Vec returns a vector type of the given scalar kind and size.
func Vec(scalar Kind, size int) *Type {
	return &Type{Kind: Vector, Scalar: scalar, Size: size}
}

// Mat returns a float matrix with the given column and row counts.
func Mat(cols, rows int) *Type {
	return &Type{Kind: Matrix, Scalar: Float, Size: cols, Rows: rows}
}

// SamplerOf returns a sampler type of the given dimension.
func SamplerOf(dim SamplerDim) *Type {
	return &Type{Kind: Sampler, Dim: dim}
}

// ArrayOf returns an array type. A length of 0 means unsized.
func ArrayOf(elem *Type, n int) *Type {
	return &Type{Kind: Array, Elem: elem, Len: n}
}

// Basic returns a scalar (size 1) or vector type of the given scalar kind.
func Basic(scalar Kind, size int) *Type {
	if size <= 1 {
		return Scalar(scalar)
	}
	return Vec(scalar, size)
}

// Scalar returns the predeclared scalar type for a kind.
func Scalar(k Kind) *Type {
	switch k {
	case Bool:
		return BoolType
	case Int:
		return IntType
	case Float:
		return FloatType
	case Void:
		return VoidType
	}
	return Invalid
}

// IsError reports whether t is the synthetic error type (or nil).
func (t *Type) IsError() bool {
	return t == nil || t.Kind == Error
}

// IsScalar reports whether t is bool, int or float.
func (t *Type) IsScalar() bool {
	return t != nil && (t.Kind == Bool || t.Kind == Int || t.Kind == Float)
}

// IsNumeric reports whether t is an int or float scalar, vector or matrix.
func (t *Type) IsNumeric() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case Int, Float:
		return true
	case Vector:
		return t.Scalar == Int || t.Scalar == Float
	case Matrix:
		return true
	}
	return false
}

// ScalarKind returns the component kind of scalars, vectors and matrices,
// or Error for other types.
func (t *Type) ScalarKind() Kind {
	if t == nil {
		return Error
	}
	switch t.Kind {
	case Bool, Int, Float:
		return t.Kind
	case Vector, Matrix:
		return t.Scalar
	}
	return Error
}

// Components returns the number of scalar components of a scalar, vector
// or matrix type, or 0 otherwise.
func (t *Type) Components() int {
	if t == nil {
		return 0
	}
	switch t.Kind {
	case Bool, Int, Float:
		return 1
	case Vector:
		return t.Size
	case Matrix:
		return t.Size * t.Rows
	}
	return 0
}

// Column returns the column vector type of a matrix.
func (t *Type) Column() *Type {
	return Vec(Float, t.Rows)
}

// IsOpaque reports whether values of t contain samplers.
func (t *Type) IsOpaque() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case Sampler:
		return true
	case Array:
		return t.Elem.IsOpaque()
	case Struct:
		for _, f := range t.Fields {
			if f.Type.IsOpaque() {
				return true
			}
		}
	}
	return false
}

// FieldIndex returns the index of a struct field by name, or -1.
func (t *Type) FieldIndex(name string) int {
	for i, f := range t.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// WithScalar returns a type with the same shape and the given component kind.
func (t *Type) WithScalar(k Kind) *Type {
	switch t.Kind {
	case Bool, Int, Float:
		return Scalar(k)
	case Vector:
		return Vec(k, t.Size)
	}
	return t
}

// Equal compares two types structurally.
func Equal(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case Vector:
		return a.Scalar == b.Scalar && a.Size == b.Size
	case Matrix:
		return a.Size == b.Size && a.Rows == b.Rows
	case Sampler:
		return a.Dim == b.Dim
	case Array:
		return a.Len == b.Len && Equal(a.Elem, b.Elem)
	case Struct:
		if a.Name != b.Name || len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i].Name != b.Fields[i].Name || !Equal(a.Fields[i].Type, b.Fields[i].Type) {
				return false
			}
		}
		return true
	}
	return true
}

// String returns the source-level spelling of the type.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case Void:
		return "void"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case Vector:
		return vectorPrefix(t.Scalar) + fmt.Sprintf("vec%d", t.Size)
	case Matrix:
		if t.Size == t.Rows {
			return fmt.Sprintf("mat%d", t.Size)
		}
		return fmt.Sprintf("mat%dx%d", t.Size, t.Rows)
	case Sampler:
		return samplerNames[t.Dim]
	case Array:
		if t.Len == 0 {
			return t.Elem.String() + "[]"
		}
		return fmt.Sprintf("%s[%d]", t.Elem.String(), t.Len)
	case Struct:
		return t.Name
	case Error:
		return "<error>"
	}
	return "<unknown>"
}

// Describe returns a verbose description used in diagnostics.
func (t *Type) Describe() string {
	if t != nil && t.Kind == Struct {
		var sb strings.Builder
		sb.WriteString("struct ")
		sb.WriteString(t.Name)
		return sb.String()
	}
	return t.String()
}

func vectorPrefix(k Kind) string {
	switch k {
	case Bool:
		return "b"
	case Int:
		return "i"
	}
	return ""
}

var samplerNames = map[SamplerDim]string{
	Sampler1D:       "sampler1D",
	Sampler2D:       "sampler2D",
	Sampler3D:       "sampler3D",
	SamplerCube:     "samplerCube",
	Sampler1DShadow: "sampler1DShadow",
	Sampler2DShadow: "sampler2DShadow",
}

// builtinTypes maps type keywords to their types.
var builtinTypes = map[string]*Type{
	"void":  VoidType,
	"bool":  BoolType,
	"int":   IntType,
	"float": FloatType,

	"vec2": Vec(Float, 2), "vec3": Vec(Float, 3), "vec4": Vec(Float, 4),
	"ivec2": Vec(Int, 2), "ivec3": Vec(Int, 3), "ivec4": Vec(Int, 4),
	"bvec2": Vec(Bool, 2), "bvec3": Vec(Bool, 3), "bvec4": Vec(Bool, 4),

	"mat2": Mat(2, 2), "mat3": Mat(3, 3), "mat4": Mat(4, 4),
	"mat2x2": Mat(2, 2), "mat2x3": Mat(2, 3), "mat2x4": Mat(2, 4),
	"mat3x2": Mat(3, 2), "mat3x3": Mat(3, 3), "mat3x4": Mat(3, 4),
	"mat4x2": Mat(4, 2), "mat4x3": Mat(4, 3), "mat4x4": Mat(4, 4),

	"sampler1D":       SamplerOf(Sampler1D),
	"sampler2D":       SamplerOf(Sampler2D),
	"sampler3D":       SamplerOf(Sampler3D),
	"samplerCube":     SamplerOf(SamplerCube),
	"sampler1DShadow": SamplerOf(Sampler1DShadow),
	"sampler2DShadow": SamplerOf(Sampler2DShadow),
}

// Lookup returns the builtin type named by a type keyword.
func Lookup(name string) (*Type, bool) {
	t, ok := builtinTypes[name]
	return t, ok
}

// IsNonSquareMatrix reports whether t is a matrix with different column
// and row counts. These are unavailable in the embedded profile.
func (t *Type) IsNonSquareMatrix() bool {
	return t != nil && t.Kind == Matrix && t.Size != t.Rows
}
