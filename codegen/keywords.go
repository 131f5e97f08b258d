// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package codegen

import "strings"

// commonKeywords are reserved in both profiles: keywords, type names and
// the words set aside for future use by GLSL 1.20 and GLSL ES 1.00.
var commonKeywords = map[string]struct{}{
	// Types
	"void": {}, "bool": {}, "int": {}, "float": {},
	"vec2": {}, "vec3": {}, "vec4": {},
	"ivec2": {}, "ivec3": {}, "ivec4": {},
	"bvec2": {}, "bvec3": {}, "bvec4": {},
	"mat2": {}, "mat3": {}, "mat4": {},
	"sampler1D": {}, "sampler2D": {}, "sampler3D": {}, "samplerCube": {},
	"sampler1DShadow": {}, "sampler2DShadow": {},
	"sampler2DRect": {}, "sampler3DRect": {}, "sampler2DRectShadow": {},
	"struct": {},

	// Qualifiers and control flow
	"attribute": {}, "const": {}, "uniform": {}, "varying": {}, "invariant": {},
	"in": {}, "out": {}, "inout": {},
	"break": {}, "continue": {}, "do": {}, "for": {}, "while": {},
	"if": {}, "else": {}, "discard": {}, "return": {},
	"true": {}, "false": {},

	// Reserved for future use
	"asm": {}, "class": {}, "union": {}, "enum": {}, "typedef": {}, "template": {}, "this": {},
	"packed": {}, "goto": {}, "switch": {}, "default": {}, "case": {},
	"inline": {}, "noinline": {}, "volatile": {}, "public": {}, "static": {},
	"extern": {}, "external": {}, "interface": {}, "flat": {},
	"long": {}, "short": {}, "double": {}, "half": {}, "fixed": {}, "unsigned": {},
	"input": {}, "output": {},
	"hvec2": {}, "hvec3": {}, "hvec4": {}, "dvec2": {}, "dvec3": {}, "dvec4": {},
	"fvec2": {}, "fvec3": {}, "fvec4": {},
	"sizeof": {}, "cast": {}, "namespace": {}, "using": {},
}

// embeddedKeywords are additionally reserved by GLSL ES 1.00.
var embeddedKeywords = map[string]struct{}{
	"lowp": {}, "mediump": {}, "highp": {}, "precision": {}, "superp": {},
}

// desktopKeywords are additionally reserved by GLSL 1.20.
var desktopKeywords = map[string]struct{}{
	"centroid": {},
	"mat2x2":   {}, "mat2x3": {}, "mat2x4": {},
	"mat3x2": {}, "mat3x3": {}, "mat3x4": {},
	"mat4x2": {}, "mat4x3": {}, "mat4x4": {},
	"lowp": {}, "mediump": {}, "highp": {}, "precision": {},
}

// IsKeyword reports whether name is reserved in the selected profile.
// Names starting with "gl_" or containing "__" are reserved too.
func IsKeyword(name string, embedded bool) bool {
	if _, ok := commonKeywords[name]; ok {
		return true
	}
	profile := desktopKeywords
	if embedded {
		profile = embeddedKeywords
	}
	if _, ok := profile[name]; ok {
		return true
	}
	return strings.HasPrefix(name, "gl_") || strings.Contains(name, "__")
}

// escapeKeyword makes name usable as an identifier in the profile.
func escapeKeyword(name string, embedded bool) string {
	if name == "" {
		return "_unnamed"
	}
	if !IsKeyword(name, embedded) {
		return name
	}
	name = strings.ReplaceAll(name, "__", "_x")
	if strings.HasPrefix(name, "gl_") || IsKeyword(name, embedded) {
		name = "_" + name
	}
	return name
}
