// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package lower

import (
	"fmt"
	"strings"

	"github.com/gogpu/glslopt/glsl"
	"github.com/gogpu/glslopt/ir"
	"github.com/gogpu/glslopt/types"
)

func (l *Lowerer) lowerCall(x *glsl.CallExpr, target *ir.Block) (ir.ExpressionHandle, error) {
	switch x.Target.Kind {
	case glsl.CallConstructor:
		return l.lowerConstructor(x, target)
	case glsl.CallBuiltin:
		return l.lowerBuiltinCall(x, target)
	case glsl.CallUser:
		return l.lowerUserCall(x, target)
	}
	return 0, fmt.Errorf("unresolved call to %s", x.Name)
}

func (l *Lowerer) lowerArgs(args []glsl.Expr, target *ir.Block) ([]ir.ExpressionHandle, error) {
	out := make([]ir.ExpressionHandle, len(args))
	for i, a := range args {
		h, err := l.lowerExpression(a, target)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

// lowerConstructor converts a type constructor. A scalar built from a
// scalar is a conversion; everything else composes its arguments.
func (l *Lowerer) lowerConstructor(x *glsl.CallExpr, target *ir.Block) (ir.ExpressionHandle, error) {
	args, err := l.lowerArgs(x.Args, target)
	if err != nil {
		return 0, err
	}
	t := x.Info.Type
	ty, err := l.lowerType(t)
	if err != nil {
		return 0, err
	}
	if t.IsScalar() && len(x.Args) == 1 {
		if at := x.Args[0].Annotation().Type; at.IsScalar() {
			if at.ScalarKind() == t.ScalarKind() {
				return args[0], nil
			}
			return l.addExpression(ir.ExprAs{Expr: args[0], Kind: scalarKind(t.ScalarKind())}, ty), nil
		}
	}
	return l.addExpression(ir.ExprCompose{Type: ty, Components: args}, ty), nil
}

func (l *Lowerer) lowerUserCall(x *glsl.CallExpr, target *ir.Block) (ir.ExpressionHandle, error) {
	fh, ok := l.functions[x.Target.Func]
	if !ok {
		return 0, fmt.Errorf("call to %s: function has no definition", x.Name)
	}
	callee := &l.module.Functions[fh]
	args := make([]ir.ExpressionHandle, len(x.Args))
	for i, a := range x.Args {
		var h ir.ExpressionHandle
		var err error
		if callee.Arguments[i].Qualifier == ir.ArgIn {
			h, err = l.lowerExpression(a, target)
		} else {
			h, err = l.lowerPointer(a, target)
		}
		if err != nil {
			return 0, err
		}
		args[i] = h
	}
	call := ir.StmtCall{Function: fh, Arguments: args}
	result := noValue
	if callee.Result != nil {
		result = l.addExpression(ir.ExprCallResult{Function: fh}, callee.Result.Type)
		call.Result = &result
	}
	l.appendStmt(target, call)
	return result, nil
}

func (l *Lowerer) lowerBuiltinCall(x *glsl.CallExpr, target *ir.Block) (ir.ExpressionHandle, error) {
	name := x.Target.Builtin
	if name == "" {
		name = x.Name
	}
	args, err := l.lowerArgs(x.Args, target)
	if err != nil {
		return 0, err
	}
	ty, err := l.exprType(x)
	if err != nil {
		return 0, err
	}

	if sample, ok := textureLookup(name, args); ok {
		return l.addExpression(sample, ty), nil
	}
	if name == "ftransform" {
		return l.addExpression(ir.ExprFTransform{}, ty), nil
	}
	if axis, ok := ir.DerivativeByName(name); ok {
		return l.addExpression(ir.ExprDerivative{Axis: axis, Expr: args[0]}, ty), nil
	}
	if fun, ok := ir.RelationalFunctionByName(name); ok {
		rel := ir.ExprRelational{Fun: fun, Argument: args[0]}
		if len(args) > 1 {
			rel.Arg1 = &args[1]
		}
		return l.addExpression(rel, ty), nil
	}
	fun, ok := ir.MathFunctionByName(name)
	if !ok {
		return 0, fmt.Errorf("unsupported builtin %s", name)
	}
	if fun == ir.MathAtan && len(args) == 2 {
		fun = ir.MathAtan2
	}
	m := ir.ExprMath{Fun: fun, Arg: args[0]}
	if len(args) > 1 {
		m.Arg1 = &args[1]
	}
	if len(args) > 2 {
		m.Arg2 = &args[2]
	}
	return l.addExpression(m, ty), nil
}

var samplerPrefixes = []string{"texture1D", "texture2D", "texture3D", "textureCube", "shadow1D", "shadow2D"}

// textureLookup decodes a texture function name such as texture2DProjLod.
func textureLookup(name string, args []ir.ExpressionHandle) (ir.ExprImageSample, bool) {
	var rest string
	found := false
	for _, p := range samplerPrefixes {
		if strings.HasPrefix(name, p) {
			rest, found = strings.TrimPrefix(name, p), true
			break
		}
	}
	if !found || len(args) < 2 {
		return ir.ExprImageSample{}, false
	}
	rest = strings.TrimSuffix(rest, "EXT")
	sample := ir.ExprImageSample{Sampler: args[0], Coordinate: args[1], Level: ir.SampleLevelAuto{}}
	switch rest {
	case "":
	case "Proj":
		sample.Project = true
	case "Lod":
	case "ProjLod":
		sample.Project = true
	default:
		return ir.ExprImageSample{}, false
	}
	if len(args) == 3 {
		if strings.HasSuffix(rest, "Lod") {
			sample.Level = ir.SampleLevelExact{Level: args[2]}
		} else {
			sample.Level = ir.SampleLevelBias{Bias: args[2]}
		}
	}
	return sample, true
}

// isVoid reports whether t is the void type.
func isVoid(t *types.Type) bool {
	return t == nil || t.Kind == types.Void
}
