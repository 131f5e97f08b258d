// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package types

import "testing"

func TestString(t *testing.T) {
	tests := []struct {
		typ  *Type
		want string
	}{
		{FloatType, "float"},
		{Vec(Float, 3), "vec3"},
		{Vec(Int, 2), "ivec2"},
		{Vec(Bool, 4), "bvec4"},
		{Mat(4, 4), "mat4"},
		{Mat(2, 3), "mat2x3"},
		{SamplerOf(SamplerCube), "samplerCube"},
		{ArrayOf(Vec(Float, 2), 3), "vec2[3]"},
		{&Type{Kind: Struct, Name: "Light"}, "Light"},
		{Invalid, "<error>"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.typ.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	light := func() *Type {
		return &Type{Kind: Struct, Name: "Light", Fields: []Field{
			{Name: "pos", Type: Vec(Float, 3)},
			{Name: "power", Type: FloatType},
		}}
	}

	tests := []struct {
		name string
		a, b *Type
		want bool
	}{
		{"same vector", Vec(Float, 3), Vec(Float, 3), true},
		{"vector size", Vec(Float, 3), Vec(Float, 4), false},
		{"vector kind", Vec(Float, 3), Vec(Int, 3), false},
		{"matrix", Mat(3, 3), Mat(3, 3), true},
		{"non-square", Mat(2, 3), Mat(3, 2), false},
		{"array len", ArrayOf(FloatType, 2), ArrayOf(FloatType, 3), false},
		{"array", ArrayOf(FloatType, 2), ArrayOf(FloatType, 2), true},
		{"struct structural", light(), light(), true},
		{"sampler", SamplerOf(Sampler2D), SamplerOf(SamplerCube), false},
		{"scalar vs vector", FloatType, Vec(Float, 2), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	typ, ok := Lookup("mat3x4")
	if !ok {
		t.Fatal("mat3x4 not found")
	}
	if typ.Size != 3 || typ.Rows != 4 {
		t.Errorf("mat3x4 = %dx%d, want 3x4", typ.Size, typ.Rows)
	}
	if !typ.IsNonSquareMatrix() {
		t.Error("mat3x4 should be non-square")
	}
	if _, ok := Lookup("vec5"); ok {
		t.Error("vec5 should not exist")
	}
}

func TestComponents(t *testing.T) {
	if n := Mat(3, 2).Components(); n != 6 {
		t.Errorf("mat3x2 components = %d, want 6", n)
	}
	if n := Vec(Bool, 3).Components(); n != 3 {
		t.Errorf("bvec3 components = %d, want 3", n)
	}
	if n := SamplerOf(Sampler2D).Components(); n != 0 {
		t.Errorf("sampler components = %d, want 0", n)
	}
}
