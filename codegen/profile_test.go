// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package codegen

import (
	"math"
	"strings"
	"testing"

	"github.com/gogpu/glslopt/ir"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float32
		want string
	}{
		{0, "0.0"},
		{1, "1.0"},
		{-2, "-2.0"},
		{0.5, "0.5"},
		{0.1, "0.1"},
		{1.0 / 3.0, "0.33333334"},
		{1e20, "1e+20"},
		{float32(math.Inf(1)), "(1.0/0.0)"},
		{float32(math.Inf(-1)), "(-1.0/0.0)"},
		{float32(math.NaN()), "(0.0/0.0)"},
	}
	for _, tt := range tests {
		if got := formatFloat(tt.in); got != tt.want {
			t.Errorf("formatFloat(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsKeyword(t *testing.T) {
	tests := []struct {
		name     string
		embedded bool
		want     bool
	}{
		{"float", false, true},
		{"float", true, true},
		{"centroid", false, true},
		{"centroid", true, false},
		{"superp", true, true},
		{"superp", false, false},
		{"mat2x3", false, true},
		{"mat2x3", true, false},
		{"gl_Custom", false, true},
		{"a__b", true, true},
		{"color", true, false},
	}
	for _, tt := range tests {
		if got := IsKeyword(tt.name, tt.embedded); got != tt.want {
			t.Errorf("IsKeyword(%q, %v) = %v, want %v", tt.name, tt.embedded, got, tt.want)
		}
	}
}

func TestEscapeKeyword(t *testing.T) {
	tests := []struct {
		name     string
		embedded bool
		want     string
	}{
		{"color", false, "color"},
		{"float", false, "_float"},
		{"centroid", false, "_centroid"},
		{"centroid", true, "centroid"},
		{"gl_Custom", true, "_gl_Custom"},
		{"a__b", true, "a_xb"},
		{"", true, "_unnamed"},
	}
	for _, tt := range tests {
		if got := escapeKeyword(tt.name, tt.embedded); got != tt.want {
			t.Errorf("escapeKeyword(%q, %v) = %q, want %q", tt.name, tt.embedded, got, tt.want)
		}
	}
}

func TestNamerDeduplicates(t *testing.T) {
	n := newNamer(false)
	got := []string{n.call("x"), n.call("x"), n.call("tmp_"), n.call("tmp_"), n.call("int")}
	want := []string{"x", "x_1", "tmp_", "tmp_1", "_int"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("name %d = %q, want %q", i, got[i], want[i])
		}
	}
	child := n.fork()
	if name := child.call("x"); name != "x_2" {
		t.Errorf("forked namer produced %q", name)
	}
	if name := n.call("y"); name != "y" {
		t.Errorf("parent namer produced %q", name)
	}
}

func TestHeader(t *testing.T) {
	tests := []struct {
		name     string
		embedded bool
		stage    ir.ShaderStage
		version  int
		source   []ir.Extension
		def      ir.Precision
		require  string
		want     string
	}{
		{
			name:  "desktop fragment",
			stage: ir.StageFragment,
			want:  "",
		},
		{
			name:    "desktop with version",
			stage:   ir.StageVertex,
			version: 110,
			want:    "#version 110\n",
		},
		{
			name:     "embedded fragment",
			embedded: true,
			stage:    ir.StageFragment,
			version:  100,
			want:     "#version 100\nprecision mediump float;\n",
		},
		{
			name:     "embedded vertex",
			embedded: true,
			stage:    ir.StageVertex,
			want:     "",
		},
		{
			name:     "stated default",
			embedded: true,
			stage:    ir.StageVertex,
			def:      ir.PrecisionHigh,
			want:     "precision highp float;\n",
		},
		{
			name:     "extensions in order",
			embedded: true,
			stage:    ir.StageFragment,
			source:   []ir.Extension{{Name: "GL_EXT_draw_buffers", Behavior: "require"}},
			require:  extFragDepth,
			want: "#extension GL_EXT_draw_buffers : require\n" +
				"#extension GL_EXT_frag_depth : enable\n" +
				"precision mediump float;\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProfile(tt.embedded, tt.stage, tt.source)
			if tt.require != "" {
				p.require(tt.require, noPos, "needed")
			}
			var sb strings.Builder
			p.writeHeader(&sb, tt.version, tt.source, tt.def)
			if got := sb.String(); got != tt.want {
				t.Errorf("header = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProfileTextureFunction(t *testing.T) {
	tests := []struct {
		name     string
		embedded bool
		stage    ir.ShaderStage
		in       string
		want     string
		warns    int
	}{
		{"desktop fragment", false, ir.StageFragment, "texture2DLod", "texture2DLod", 0},
		{"embedded vertex", true, ir.StageVertex, "texture2DLod", "texture2DLod", 0},
		{"embedded fragment", true, ir.StageFragment, "texture2DLod", "texture2DLodEXT", 1},
		{"already extension spelling", true, ir.StageFragment, "textureCubeLodEXT", "textureCubeLodEXT", 1},
		{"plain lookup", true, ir.StageFragment, "texture2D", "texture2D", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProfile(tt.embedded, tt.stage, nil)
			if got := p.textureFunction(tt.in, noPos); got != tt.want {
				t.Errorf("textureFunction(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if len(p.diags) != tt.warns {
				t.Errorf("got %d warnings, want %d", len(p.diags), tt.warns)
			}
		})
	}
}
