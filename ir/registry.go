// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

import (
	"strconv"
	"strings"
)

// TypeRegistry deduplicates the types of a module.
// Structurally equal types share one handle; named types (structs) are
// unique by name.
type TypeRegistry struct {
	module  *Module
	typeMap map[string]TypeHandle
	keyBuf  []byte // reusable buffer for building type keys
}

// NewTypeRegistry creates a registry that appends to m.Types. Types
// already present in the module are registered first.
func NewTypeRegistry(m *Module) *TypeRegistry {
	r := &TypeRegistry{
		module:  m,
		typeMap: make(map[string]TypeHandle, 16),
		keyBuf:  make([]byte, 0, 64),
	}
	for i := range m.Types {
		key := r.key(m.Types[i].Name, m.Types[i].Inner)
		if _, ok := r.typeMap[key]; !ok {
			r.typeMap[key] = TypeHandle(Index(i))
		}
	}
	return r
}

// GetOrCreate returns an existing handle for the type if it exists,
// or creates a new one if it's unique.
func (r *TypeRegistry) GetOrCreate(name string, inner TypeInner) TypeHandle {
	key := r.key(name, inner)
	if handle, exists := r.typeMap[key]; exists {
		return handle
	}
	handle := TypeHandle(Index(len(r.module.Types)))
	r.module.Types = append(r.module.Types, Type{Name: name, Inner: inner})
	r.typeMap[key] = handle
	return handle
}

// Scalar returns the handle of a scalar type.
func (r *TypeRegistry) Scalar(kind ScalarKind) TypeHandle {
	return r.GetOrCreate("", ScalarType{Kind: kind})
}

// Vector returns the handle of a vector type, or of the scalar type when
// size is 1.
func (r *TypeRegistry) Vector(kind ScalarKind, size int) TypeHandle {
	if size <= 1 {
		return r.Scalar(kind)
	}
	return r.GetOrCreate("", VectorType{Size: VectorSize(Index(size)), Scalar: ScalarType{Kind: kind}})
}

// Count returns the number of registered types.
func (r *TypeRegistry) Count() int {
	return len(r.module.Types)
}

// key creates a unique key for a type based on its structure.
// Uses a reusable byte buffer to avoid allocations for common types.
func (r *TypeRegistry) key(name string, inner TypeInner) string {
	b := r.keyBuf[:0]

	switch t := inner.(type) {
	case ScalarType:
		b = append(b, "scalar:"...)
		b = strconv.AppendInt(b, int64(t.Kind), 10)
	case VectorType:
		b = append(b, "vec:"...)
		b = strconv.AppendUint(b, uint64(t.Size), 10)
		b = append(b, ':')
		b = strconv.AppendInt(b, int64(t.Scalar.Kind), 10)
	case MatrixType:
		b = append(b, "mat:"...)
		b = strconv.AppendUint(b, uint64(t.Columns), 10)
		b = append(b, 'x')
		b = strconv.AppendUint(b, uint64(t.Rows), 10)
	case ArrayType:
		b = append(b, "array:"...)
		b = strconv.AppendUint(b, uint64(t.Base), 10)
		b = append(b, ':')
		b = strconv.AppendUint(b, uint64(t.Size), 10)
	case SamplerType:
		b = append(b, "sampler:"...)
		b = strconv.AppendUint(b, uint64(t.Dim), 10)
		b = strconv.AppendBool(b, t.Shadow)
	case StructType:
		// Struct names are unique within a shader.
		var sb strings.Builder
		sb.WriteString("struct:")
		sb.WriteString(name)
		for _, m := range t.Members {
			sb.WriteString(":")
			sb.WriteString(m.Name)
			sb.WriteString("=")
			sb.WriteString(strconv.FormatUint(uint64(m.Type), 10))
		}
		return sb.String()
	default:
		b = append(b, "unknown"...)
	}
	r.keyBuf = b
	return string(b)
}
