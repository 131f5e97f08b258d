// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package sema

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gogpu/glslopt/glsl"
	"github.com/gogpu/glslopt/types"
)

type stageMask uint8

const (
	inVertex stageMask = 1 << iota
	inFragment
	anyStage = inVertex | inFragment
)

type profileMask uint8

const (
	desktop profileMask = 1 << iota
	embedded
	anyProfile = desktop | embedded
)

func (s Stage) mask() stageMask {
	if s == StageFragment {
		return inFragment
	}
	return inVertex
}

func profileOf(es bool) profileMask {
	if es {
		return embedded
	}
	return desktop
}

// Overload is one signature of a builtin function.
type Overload struct {
	Name   string
	Return *types.Type
	Params []*types.Type

	stages   stageMask
	profiles profileMask
}

func (o *Overload) available(stage Stage, es bool) bool {
	return o.stages&stage.mask() != 0 && o.profiles&profileOf(es) != 0
}

type builtinDef struct {
	sig      string
	stages   stageMask
	profiles profileMask
}

func def(sig string) builtinDef {
	return builtinDef{sig: sig, stages: anyStage, profiles: anyProfile}
}

func defIn(stages stageMask, profiles profileMask, sigs ...string) []builtinDef {
	out := make([]builtinDef, len(sigs))
	for i, s := range sigs {
		out[i] = builtinDef{sig: s, stages: stages, profiles: profiles}
	}
	return out
}

// Signature patterns: G is float or vecN, F is float, V is vecN, I is
// ivecN, B is bvecN and M is matN, all bound to the same N.
var builtinDefs = concat(
	// Angle and trigonometry
	[]builtinDef{
		def("G radians(G)"), def("G degrees(G)"), def("G sin(G)"), def("G cos(G)"),
		def("G tan(G)"), def("G asin(G)"), def("G acos(G)"), def("G atan(G,G)"),
		def("G atan(G)"),
	},
	// Exponential
	[]builtinDef{
		def("G pow(G,G)"), def("G exp(G)"), def("G log(G)"), def("G exp2(G)"),
		def("G log2(G)"), def("G sqrt(G)"), def("G inversesqrt(G)"),
	},
	// Common
	[]builtinDef{
		def("G abs(G)"), def("G sign(G)"), def("G floor(G)"), def("G ceil(G)"),
		def("G fract(G)"), def("G mod(G,F)"), def("G mod(G,G)"), def("G min(G,G)"),
		def("G min(G,F)"), def("G max(G,G)"), def("G max(G,F)"), def("G clamp(G,G,G)"),
		def("G clamp(G,F,F)"), def("G mix(G,G,G)"), def("G mix(G,G,F)"),
		def("G step(G,G)"), def("G step(F,G)"), def("G smoothstep(G,G,G)"),
		def("G smoothstep(F,F,G)"),
	},
	// Geometric
	[]builtinDef{
		def("F length(G)"), def("F distance(G,G)"), def("F dot(G,G)"),
		def("vec3 cross(vec3,vec3)"), def("G normalize(G)"), def("G faceforward(G,G,G)"),
		def("G reflect(G,G)"), def("G refract(G,G,F)"),
	},
	defIn(inVertex, desktop, "vec4 ftransform()"),
	// Matrix
	[]builtinDef{def("M matrixCompMult(M,M)")},
	defIn(anyStage, desktop, "M transpose(M)", "M outerProduct(V,V)"),
	// Vector relational
	[]builtinDef{
		def("B lessThan(V,V)"), def("B lessThan(I,I)"),
		def("B lessThanEqual(V,V)"), def("B lessThanEqual(I,I)"),
		def("B greaterThan(V,V)"), def("B greaterThan(I,I)"),
		def("B greaterThanEqual(V,V)"), def("B greaterThanEqual(I,I)"),
		def("B equal(V,V)"), def("B equal(I,I)"), def("B equal(B,B)"),
		def("B notEqual(V,V)"), def("B notEqual(I,I)"), def("B notEqual(B,B)"),
		def("bool any(B)"), def("bool all(B)"), def("B not(B)"),
	},
	// Texture lookup
	[]builtinDef{
		def("vec4 texture2D(sampler2D,vec2)"),
		def("vec4 texture2DProj(sampler2D,vec3)"),
		def("vec4 texture2DProj(sampler2D,vec4)"),
		def("vec4 textureCube(samplerCube,vec3)"),
	},
	defIn(inFragment, anyProfile,
		"vec4 texture2D(sampler2D,vec2,float)",
		"vec4 texture2DProj(sampler2D,vec3,float)",
		"vec4 texture2DProj(sampler2D,vec4,float)",
		"vec4 textureCube(samplerCube,vec3,float)",
	),
	defIn(inVertex, anyProfile,
		"vec4 texture2DLod(sampler2D,vec2,float)",
		"vec4 texture2DProjLod(sampler2D,vec3,float)",
		"vec4 texture2DProjLod(sampler2D,vec4,float)",
		"vec4 textureCubeLod(samplerCube,vec3,float)",
	),
	// Explicit-LOD lookups in embedded fragment shaders are rewritten to
	// the EXT_shader_texture_lod spelling by the code generator.
	defIn(inFragment, embedded,
		"vec4 texture2DLod(sampler2D,vec2,float)",
		"vec4 texture2DProjLod(sampler2D,vec3,float)",
		"vec4 texture2DProjLod(sampler2D,vec4,float)",
		"vec4 textureCubeLod(samplerCube,vec3,float)",
		"vec4 texture2DLodEXT(sampler2D,vec2,float)",
		"vec4 texture2DProjLodEXT(sampler2D,vec3,float)",
		"vec4 texture2DProjLodEXT(sampler2D,vec4,float)",
		"vec4 textureCubeLodEXT(samplerCube,vec3,float)",
	),
	defIn(anyStage, desktop,
		"vec4 texture1D(sampler1D,float)",
		"vec4 texture1DProj(sampler1D,vec2)",
		"vec4 texture1DProj(sampler1D,vec4)",
		"vec4 texture3D(sampler3D,vec3)",
		"vec4 texture3DProj(sampler3D,vec4)",
		"vec4 shadow1D(sampler1DShadow,vec3)",
		"vec4 shadow2D(sampler2DShadow,vec3)",
		"vec4 shadow1DProj(sampler1DShadow,vec4)",
		"vec4 shadow2DProj(sampler2DShadow,vec4)",
	),
	defIn(inFragment, desktop,
		"vec4 texture1D(sampler1D,float,float)",
		"vec4 texture1DProj(sampler1D,vec2,float)",
		"vec4 texture1DProj(sampler1D,vec4,float)",
		"vec4 texture3D(sampler3D,vec3,float)",
		"vec4 texture3DProj(sampler3D,vec4,float)",
		"vec4 shadow1D(sampler1DShadow,vec3,float)",
		"vec4 shadow2D(sampler2DShadow,vec3,float)",
		"vec4 shadow1DProj(sampler1DShadow,vec4,float)",
		"vec4 shadow2DProj(sampler2DShadow,vec4,float)",
	),
	defIn(inVertex, desktop,
		"vec4 texture1DLod(sampler1D,float,float)",
		"vec4 texture1DProjLod(sampler1D,vec2,float)",
		"vec4 texture1DProjLod(sampler1D,vec4,float)",
		"vec4 texture3DLod(sampler3D,vec3,float)",
		"vec4 texture3DProjLod(sampler3D,vec4,float)",
		"vec4 shadow1DLod(sampler1DShadow,vec3,float)",
		"vec4 shadow2DLod(sampler2DShadow,vec3,float)",
		"vec4 shadow1DProjLod(sampler1DShadow,vec4,float)",
		"vec4 shadow2DProjLod(sampler2DShadow,vec4,float)",
	),
	// Derivatives
	defIn(inFragment, anyProfile, "G dFdx(G)", "G dFdy(G)", "G fwidth(G)"),
)

func concat(groups ...[]builtinDef) []builtinDef {
	var out []builtinDef
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

var (
	builtinOnce  sync.Once
	builtinFuncs map[string][]*Overload
)

// Builtins returns every builtin function overload keyed by name,
// regardless of stage and profile.
func Builtins() map[string][]*Overload {
	builtinOnce.Do(func() {
		builtinFuncs = make(map[string][]*Overload)
		seen := make(map[string]bool)
		for _, d := range builtinDefs {
			for _, o := range expandSignature(d) {
				key := fmt.Sprintf("%s/%v/%d/%d", o.Name, o.Params, o.stages, o.profiles)
				if seen[key] {
					continue
				}
				seen[key] = true
				builtinFuncs[o.Name] = append(builtinFuncs[o.Name], o)
			}
		}
	})
	return builtinFuncs
}

// IsBuiltinFunction reports whether name is a builtin function in any
// stage or profile.
func IsBuiltinFunction(name string) bool {
	_, ok := Builtins()[name]
	return ok
}

func expandSignature(d builtinDef) []*Overload {
	open := strings.IndexByte(d.sig, '(')
	head := strings.Fields(d.sig[:open])
	ret, name := head[0], head[1]
	var params []string
	if inner := d.sig[open+1 : len(d.sig)-1]; inner != "" {
		params = strings.Split(inner, ",")
	}

	// Instantiate for every N the patterns allow: 1-4 for G, 2-4 for the
	// vector and matrix patterns, and once for concrete signatures.
	lo, hi := 0, 0
	for _, t := range append([]string{ret}, params...) {
		switch t {
		case "G":
			lo, hi = 1, 4
		case "V", "I", "B", "M":
			lo, hi = 2, 4
		}
	}

	var out []*Overload
	for n := lo; n <= hi; n++ {
		o := &Overload{
			Name:     name,
			Return:   patternType(ret, n),
			stages:   d.stages,
			profiles: d.profiles,
		}
		for _, p := range params {
			o.Params = append(o.Params, patternType(p, n))
		}
		out = append(out, o)
	}
	return out
}

func patternType(p string, n int) *types.Type {
	switch p {
	case "G":
		return types.Basic(types.Float, n)
	case "F":
		return types.FloatType
	case "V":
		return types.Vec(types.Float, n)
	case "I":
		return types.Vec(types.Int, n)
	case "B":
		return types.Vec(types.Bool, n)
	case "M":
		return types.Mat(n, n)
	}
	t, ok := types.Lookup(p)
	if !ok {
		panic("sema: unknown builtin type " + p)
	}
	return t
}

// Builtin variables

// DepthRangeType is the type of gl_DepthRange.
var DepthRangeType = &types.Type{
	Kind: types.Struct,
	Name: "gl_DepthRangeParameters",
	Fields: []types.Field{
		{Name: "near", Type: types.FloatType},
		{Name: "far", Type: types.FloatType},
		{Name: "diff", Type: types.FloatType},
	},
}

type builtinVar struct {
	name     string
	typ      *types.Type
	storage  glsl.Storage
	output   bool
	stages   stageMask
	profiles profileMask
}

const (
	desktopMaxTextureCoords = 8
	desktopMaxDrawBuffers   = 4
)

var builtinVarDefs = []builtinVar{
	{"gl_Position", types.Vec(types.Float, 4), glsl.StorageNone, true, inVertex, anyProfile},
	{"gl_PointSize", types.FloatType, glsl.StorageNone, true, inVertex, anyProfile},
	{"gl_ClipVertex", types.Vec(types.Float, 4), glsl.StorageNone, true, inVertex, desktop},

	{"gl_Color", types.Vec(types.Float, 4), glsl.StorageAttribute, false, inVertex, desktop},
	{"gl_SecondaryColor", types.Vec(types.Float, 4), glsl.StorageAttribute, false, inVertex, desktop},
	{"gl_Normal", types.Vec(types.Float, 3), glsl.StorageAttribute, false, inVertex, desktop},
	{"gl_Vertex", types.Vec(types.Float, 4), glsl.StorageAttribute, false, inVertex, desktop},
	{"gl_MultiTexCoord0", types.Vec(types.Float, 4), glsl.StorageAttribute, false, inVertex, desktop},
	{"gl_MultiTexCoord1", types.Vec(types.Float, 4), glsl.StorageAttribute, false, inVertex, desktop},
	{"gl_MultiTexCoord2", types.Vec(types.Float, 4), glsl.StorageAttribute, false, inVertex, desktop},
	{"gl_MultiTexCoord3", types.Vec(types.Float, 4), glsl.StorageAttribute, false, inVertex, desktop},
	{"gl_MultiTexCoord4", types.Vec(types.Float, 4), glsl.StorageAttribute, false, inVertex, desktop},
	{"gl_MultiTexCoord5", types.Vec(types.Float, 4), glsl.StorageAttribute, false, inVertex, desktop},
	{"gl_MultiTexCoord6", types.Vec(types.Float, 4), glsl.StorageAttribute, false, inVertex, desktop},
	{"gl_MultiTexCoord7", types.Vec(types.Float, 4), glsl.StorageAttribute, false, inVertex, desktop},
	{"gl_FogCoord", types.FloatType, glsl.StorageAttribute, false, inVertex, desktop},

	{"gl_FrontColor", types.Vec(types.Float, 4), glsl.StorageVarying, true, inVertex, desktop},
	{"gl_BackColor", types.Vec(types.Float, 4), glsl.StorageVarying, true, inVertex, desktop},
	{"gl_FrontSecondaryColor", types.Vec(types.Float, 4), glsl.StorageVarying, true, inVertex, desktop},
	{"gl_BackSecondaryColor", types.Vec(types.Float, 4), glsl.StorageVarying, true, inVertex, desktop},
	{"gl_TexCoord", types.ArrayOf(types.Vec(types.Float, 4), desktopMaxTextureCoords), glsl.StorageVarying, true, inVertex, desktop},
	{"gl_FogFragCoord", types.FloatType, glsl.StorageVarying, true, inVertex, desktop},

	{"gl_FragCoord", types.Vec(types.Float, 4), glsl.StorageIn, false, inFragment, anyProfile},
	{"gl_FrontFacing", types.BoolType, glsl.StorageIn, false, inFragment, anyProfile},
	{"gl_PointCoord", types.Vec(types.Float, 2), glsl.StorageIn, false, inFragment, anyProfile},
	{"gl_FragColor", types.Vec(types.Float, 4), glsl.StorageNone, true, inFragment, anyProfile},
	{"gl_FragData", types.ArrayOf(types.Vec(types.Float, 4), desktopMaxDrawBuffers), glsl.StorageNone, true, inFragment, desktop},
	{"gl_FragData", types.ArrayOf(types.Vec(types.Float, 4), 1), glsl.StorageNone, true, inFragment, embedded},
	{"gl_FragDepth", types.FloatType, glsl.StorageNone, true, inFragment, anyProfile},
	{"gl_FragDepthEXT", types.FloatType, glsl.StorageNone, true, inFragment, embedded},

	{"gl_Color", types.Vec(types.Float, 4), glsl.StorageVarying, false, inFragment, desktop},
	{"gl_SecondaryColor", types.Vec(types.Float, 4), glsl.StorageVarying, false, inFragment, desktop},
	{"gl_TexCoord", types.ArrayOf(types.Vec(types.Float, 4), desktopMaxTextureCoords), glsl.StorageVarying, false, inFragment, desktop},
	{"gl_FogFragCoord", types.FloatType, glsl.StorageVarying, false, inFragment, desktop},

	{"gl_DepthRange", DepthRangeType, glsl.StorageUniform, false, anyStage, anyProfile},
	{"gl_ModelViewMatrix", types.Mat(4, 4), glsl.StorageUniform, false, anyStage, desktop},
	{"gl_ProjectionMatrix", types.Mat(4, 4), glsl.StorageUniform, false, anyStage, desktop},
	{"gl_ModelViewProjectionMatrix", types.Mat(4, 4), glsl.StorageUniform, false, anyStage, desktop},
	{"gl_TextureMatrix", types.ArrayOf(types.Mat(4, 4), desktopMaxTextureCoords), glsl.StorageUniform, false, anyStage, desktop},
	{"gl_NormalMatrix", types.Mat(3, 3), glsl.StorageUniform, false, anyStage, desktop},
	{"gl_ModelViewMatrixInverse", types.Mat(4, 4), glsl.StorageUniform, false, anyStage, desktop},
	{"gl_ProjectionMatrixInverse", types.Mat(4, 4), glsl.StorageUniform, false, anyStage, desktop},
	{"gl_ModelViewProjectionMatrixInverse", types.Mat(4, 4), glsl.StorageUniform, false, anyStage, desktop},
	{"gl_ModelViewMatrixTranspose", types.Mat(4, 4), glsl.StorageUniform, false, anyStage, desktop},
	{"gl_ProjectionMatrixTranspose", types.Mat(4, 4), glsl.StorageUniform, false, anyStage, desktop},
	{"gl_ModelViewProjectionMatrixTranspose", types.Mat(4, 4), glsl.StorageUniform, false, anyStage, desktop},
	{"gl_ModelViewMatrixInverseTranspose", types.Mat(4, 4), glsl.StorageUniform, false, anyStage, desktop},
	{"gl_ProjectionMatrixInverseTranspose", types.Mat(4, 4), glsl.StorageUniform, false, anyStage, desktop},
	{"gl_ModelViewProjectionMatrixInverseTranspose", types.Mat(4, 4), glsl.StorageUniform, false, anyStage, desktop},
	{"gl_NormalScale", types.FloatType, glsl.StorageUniform, false, anyStage, desktop},
}

type builtinConst struct {
	name  string
	value int32
}

// Implementation limits reported through the gl_Max constants. The
// values are the minimums each language version guarantees.
var (
	desktopConsts = []builtinConst{
		{"gl_MaxLights", 8},
		{"gl_MaxClipPlanes", 6},
		{"gl_MaxTextureUnits", 2},
		{"gl_MaxTextureCoords", desktopMaxTextureCoords},
		{"gl_MaxVertexAttribs", 16},
		{"gl_MaxVertexUniformComponents", 512},
		{"gl_MaxVaryingFloats", 32},
		{"gl_MaxVertexTextureImageUnits", 0},
		{"gl_MaxCombinedTextureImageUnits", 2},
		{"gl_MaxTextureImageUnits", 2},
		{"gl_MaxFragmentUniformComponents", 64},
		{"gl_MaxDrawBuffers", desktopMaxDrawBuffers},
	}
	embeddedConsts = []builtinConst{
		{"gl_MaxVertexAttribs", 8},
		{"gl_MaxVertexUniformVectors", 128},
		{"gl_MaxVaryingVectors", 8},
		{"gl_MaxVertexTextureImageUnits", 0},
		{"gl_MaxCombinedTextureImageUnits", 8},
		{"gl_MaxTextureImageUnits", 8},
		{"gl_MaxFragmentUniformVectors", 16},
		{"gl_MaxDrawBuffers", 1},
	}
)

// builtinVariables returns the builtin variable symbols of a stage and
// profile, keyed by name.
func builtinVariables(stage Stage, es bool) map[string]*Symbol {
	out := make(map[string]*Symbol)
	for _, v := range builtinVarDefs {
		if v.stages&stage.mask() == 0 || v.profiles&profileOf(es) == 0 {
			continue
		}
		out[v.name] = &Symbol{
			Name:     v.name,
			Kind:     SymVariable,
			Type:     v.typ,
			Storage:  v.storage,
			ReadOnly: !v.output,
			Ref: glsl.Ref{
				Kind:    glsl.RefBuiltin,
				Builtin: v.name,
				Storage: v.storage,
				Output:  v.output,
			},
		}
	}

	consts := desktopConsts
	if es {
		consts = embeddedConsts
	}
	for _, c := range consts {
		out[c.name] = &Symbol{
			Name:     c.name,
			Kind:     SymVariable,
			Type:     types.IntType,
			Storage:  glsl.StorageConst,
			ReadOnly: true,
			Const:    &glsl.ConstValue{Kind: types.Int, Int: c.value},
			Ref: glsl.Ref{
				Kind:    glsl.RefBuiltin,
				Builtin: c.name,
				Storage: glsl.StorageConst,
			},
		}
	}
	return out
}
