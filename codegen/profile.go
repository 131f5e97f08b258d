// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package codegen

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gogpu/glslopt/diag"
	"github.com/gogpu/glslopt/ir"
)

// Extensions the embedded profile needs for desktop-only features.
const (
	extTextureLod = "GL_EXT_shader_texture_lod"
	extDerivative = "GL_OES_standard_derivatives"
	extFragDepth  = "GL_EXT_frag_depth"
)

// noPos marks diagnostics about generated code, which has no source
// position.
var noPos diag.Position

// profile applies the output profile's substitutions and collects the
// extensions they require. Raw and optimized output share it.
type profile struct {
	embedded bool
	stage    ir.ShaderStage

	declared map[string]bool
	required []string
	diags    []diag.Diagnostic

	// sourcePrecision is set when the body already states the default
	// float precision.
	sourcePrecision bool
}

func newProfile(embedded bool, stage ir.ShaderStage, declared []ir.Extension) *profile {
	p := &profile{embedded: embedded, stage: stage, declared: make(map[string]bool, len(declared))}
	for _, e := range declared {
		p.declared[e.Name] = true
	}
	return p
}

// require records that ext must be enabled. A warning is reported the
// first time an extension the source did not enable is added.
func (p *profile) require(ext string, pos diag.Position, format string, args ...any) {
	if p.declared[ext] {
		return
	}
	p.declared[ext] = true
	p.required = append(p.required, ext)
	p.diags = append(p.diags, diag.Warnf(pos, format+", enabling %s", append(args, ext)...))
}

// textureFunction returns the spelling of a texture lookup. Explicit-LOD
// lookups in embedded fragment shaders use the EXT_shader_texture_lod
// names.
func (p *profile) textureFunction(name string, pos diag.Position) string {
	if !p.embedded || p.stage != ir.StageFragment {
		return name
	}
	switch {
	case strings.HasSuffix(name, "LodEXT"):
		p.require(extTextureLod, pos, "%s needs an extension", name)
	case strings.HasSuffix(name, "Lod"):
		p.require(extTextureLod, pos, "%s is not available in fragment shaders, using %sEXT", name, name)
		return name + "EXT"
	}
	return name
}

// derivative notes the use of dFdx, dFdy or fwidth.
func (p *profile) derivative(name string, pos diag.Position) {
	if p.embedded {
		p.require(extDerivative, pos, "%s is an extension function", name)
	}
}

// variable returns the spelling of a builtin variable.
func (p *profile) variable(name string, pos diag.Position) string {
	if !p.embedded {
		return name
	}
	switch name {
	case "gl_FragDepth":
		p.require(extFragDepth, pos, "gl_FragDepth is not available, using gl_FragDepthEXT")
		return "gl_FragDepthEXT"
	case "gl_FragDepthEXT":
		p.require(extFragDepth, pos, "gl_FragDepthEXT needs an extension")
	}
	return name
}

// writeHeader writes the version, extension and default precision
// lines that precede a shader body.
func (p *profile) writeHeader(sb *strings.Builder, version int, source []ir.Extension, defaultFloat ir.Precision) {
	if version != 0 {
		fmt.Fprintf(sb, "#version %d\n", version)
	}
	for _, e := range source {
		fmt.Fprintf(sb, "#extension %s : %s\n", e.Name, e.Behavior)
	}
	for _, ext := range p.required {
		fmt.Fprintf(sb, "#extension %s : enable\n", ext)
	}
	if !p.embedded || p.sourcePrecision {
		return
	}
	switch {
	case defaultFloat != ir.PrecisionNone:
		fmt.Fprintf(sb, "precision %s float;\n", precisionName(defaultFloat))
	case p.stage == ir.StageFragment:
		sb.WriteString("precision mediump float;\n")
	}
}

func precisionName(p ir.Precision) string {
	switch p {
	case ir.PrecisionLow:
		return "lowp"
	case ir.PrecisionMedium:
		return "mediump"
	case ir.PrecisionHigh:
		return "highp"
	}
	return ""
}

// formatFloat prints the shortest decimal that reads back as f.
// Infinities and NaN have no literal form and are written as divisions.
func formatFloat(f float32) string {
	switch v := float64(f); {
	case math.IsNaN(v):
		return "(0.0/0.0)"
	case math.IsInf(v, 1):
		return "(1.0/0.0)"
	case math.IsInf(v, -1):
		return "(-1.0/0.0)"
	}
	s := strconv.FormatFloat(float64(f), 'g', -1, 32)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// Operator precedence, loosest first.
const (
	precSequence = iota
	precAssign
	precSelect
	precLogicalOr
	precLogicalXor
	precLogicalAnd
	precEquality
	precRelational
	precAdditive
	precMultiplicative
	precUnary
	precPostfix
	precPrimary
)

// operand is a printed expression with the precedence of its outermost
// operator.
type operand struct {
	text string
	prec int
}

// wrap parenthesizes o when it binds looser than level.
func (o operand) wrap(level int) string {
	if o.prec < level {
		return "(" + o.text + ")"
	}
	return o.text
}

// prefix applies a unary operator. A repeated "-" is parenthesized so it
// does not read as a decrement.
func prefix(op string, o operand) operand {
	text := o.wrap(precUnary)
	if strings.HasPrefix(text, op) {
		text = "(" + text + ")"
	}
	return operand{text: op + text, prec: precUnary}
}

// infix joins two operands with a left-associative operator.
func infix(left operand, op string, right operand, prec int) operand {
	return operand{text: left.wrap(prec) + " " + op + " " + right.wrap(prec+1), prec: prec}
}

func primary(text string) operand {
	return operand{text: text, prec: precPrimary}
}

// number is a printed literal; negative values bind like a unary minus.
func number(text string) operand {
	if strings.HasPrefix(text, "-") {
		return operand{text: text, prec: precUnary}
	}
	return primary(text)
}
