// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package codegen

import (
	"fmt"

	"github.com/gogpu/glslopt/ir"
)

// typeName returns the GLSL spelling of a type. Arrays are spelled by
// their element type; declarations add the size with arraySuffix.
func (w *Writer) typeName(h ir.TypeHandle) string {
	if int(h) >= len(w.module.Types) {
		return fmt.Sprintf("type_%d", h)
	}
	switch t := w.module.Types[h].Inner.(type) {
	case ir.ScalarType:
		return scalarName(t.Kind)
	case ir.VectorType:
		return vectorName(t)
	case ir.MatrixType:
		return matrixName(t)
	case ir.ArrayType:
		return w.typeName(t.Base)
	case ir.StructType:
		return w.typeNames[h]
	case ir.SamplerType:
		return samplerName(t)
	}
	return "unknown_type"
}

// arraySuffix returns "[N]" for array types and "" otherwise.
func (w *Writer) arraySuffix(h ir.TypeHandle) string {
	if int(h) >= len(w.module.Types) {
		return ""
	}
	arr, ok := w.module.Types[h].Inner.(ir.ArrayType)
	if !ok {
		return ""
	}
	if arr.Size == 0 {
		return "[]"
	}
	return fmt.Sprintf("[%d]", arr.Size)
}

func scalarName(k ir.ScalarKind) string {
	switch k {
	case ir.ScalarBool:
		return "bool"
	case ir.ScalarSint:
		return "int"
	}
	return "float"
}

func vectorName(t ir.VectorType) string {
	switch t.Scalar.Kind {
	case ir.ScalarBool:
		return fmt.Sprintf("bvec%d", t.Size)
	case ir.ScalarSint:
		return fmt.Sprintf("ivec%d", t.Size)
	}
	return fmt.Sprintf("vec%d", t.Size)
}

func matrixName(t ir.MatrixType) string {
	if t.Columns == t.Rows {
		return fmt.Sprintf("mat%d", t.Columns)
	}
	return fmt.Sprintf("mat%dx%d", t.Columns, t.Rows)
}

func samplerName(t ir.SamplerType) string {
	var dim string
	switch t.Dim {
	case ir.Dim1D:
		dim = "1D"
	case ir.Dim3D:
		dim = "3D"
	case ir.DimCube:
		dim = "Cube"
	default:
		dim = "2D"
	}
	if t.Shadow {
		return "sampler" + dim + "Shadow"
	}
	return "sampler" + dim
}

// isOpaqueOrArray reports whether values of the type cannot be copied
// into a temporary: samplers, arrays and structs holding either.
func (w *Writer) isOpaqueOrArray(h ir.TypeHandle) bool {
	if int(h) >= len(w.module.Types) {
		return true
	}
	switch t := w.module.Types[h].Inner.(type) {
	case ir.SamplerType, ir.ArrayType:
		return true
	case ir.StructType:
		for _, m := range t.Members {
			if w.isOpaqueOrArray(m.Type) {
				return true
			}
		}
	}
	return false
}

// usedTypes marks the types the module's declarations and expressions
// refer to, including struct members and array elements.
func usedTypes(m *ir.Module) []bool {
	used := make([]bool, len(m.Types))
	var mark func(h ir.TypeHandle)
	mark = func(h ir.TypeHandle) {
		if int(h) >= len(used) || used[h] {
			return
		}
		used[h] = true
		switch t := m.Types[h].Inner.(type) {
		case ir.ArrayType:
			mark(t.Base)
		case ir.StructType:
			for _, member := range t.Members {
				mark(member.Type)
			}
		}
	}
	for _, g := range m.GlobalVariables {
		mark(g.Type)
	}
	for i := range m.Functions {
		f := &m.Functions[i]
		for _, a := range f.Arguments {
			mark(a.Type)
		}
		if f.Result != nil {
			mark(f.Result.Type)
		}
		for _, l := range f.LocalVars {
			mark(l.Type)
		}
		for _, t := range f.ExpressionTypes {
			mark(t)
		}
	}
	return used
}
