// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package opt

import (
	"math"

	"github.com/gogpu/glslopt/ir"
)

// constant is a folded scalar, vector or matrix value.
type constant struct {
	ty    ir.TypeHandle
	shape shape
	comps []ir.LiteralValue
}

// kind returns the expression that materializes c.
func (c *constant) kind() ir.ExpressionKind {
	if c.shape.scalar() {
		return ir.Literal{Value: c.comps[0]}
	}
	return ir.ExprConstant{Type: c.ty, Components: c.comps}
}

func (c *constant) at(i int) ir.LiteralValue {
	if len(c.comps) == 1 {
		return c.comps[0]
	}
	return c.comps[i]
}

func asFloat(v ir.LiteralValue) float32 {
	switch x := v.(type) {
	case ir.LiteralF32:
		return float32(x)
	case ir.LiteralI32:
		return float32(x)
	case ir.LiteralBool:
		if x {
			return 1
		}
	}
	return 0
}

func asInt(v ir.LiteralValue) int32 {
	switch x := v.(type) {
	case ir.LiteralI32:
		return int32(x)
	case ir.LiteralF32:
		f := float64(x)
		switch {
		case math.IsNaN(f):
			return 0
		case f >= math.MaxInt32:
			return math.MaxInt32
		case f <= math.MinInt32:
			return math.MinInt32
		}
		return int32(f)
	case ir.LiteralBool:
		if x {
			return 1
		}
	}
	return 0
}

func asBool(v ir.LiteralValue) bool {
	switch x := v.(type) {
	case ir.LiteralBool:
		return bool(x)
	case ir.LiteralI32:
		return x != 0
	case ir.LiteralF32:
		return x != 0
	}
	return false
}

func convert(v ir.LiteralValue, kind ir.ScalarKind) ir.LiteralValue {
	switch kind {
	case ir.ScalarFloat:
		return ir.LiteralF32(asFloat(v))
	case ir.ScalarSint:
		return ir.LiteralI32(asInt(v))
	}
	return ir.LiteralBool(asBool(v))
}

func zero(kind ir.ScalarKind) ir.LiteralValue {
	return convert(ir.LiteralI32(0), kind)
}

func one(kind ir.ScalarKind) ir.LiteralValue {
	return convert(ir.LiteralI32(1), kind)
}

func literalsEqual(a, b ir.LiteralValue) bool {
	switch x := a.(type) {
	case ir.LiteralF32:
		y, ok := b.(ir.LiteralF32)
		return ok && x == y
	case ir.LiteralI32:
		y, ok := b.(ir.LiteralI32)
		return ok && x == y
	case ir.LiteralBool:
		y, ok := b.(ir.LiteralBool)
		return ok && x == y
	}
	return false
}

// arith applies a component-wise arithmetic operator. ok is false when
// the result is not a compile-time value, as for integer division by
// zero.
func arith(op ir.BinaryOperator, a, b ir.LiteralValue) (ir.LiteralValue, bool) {
	if x, isInt := a.(ir.LiteralI32); isInt {
		y := ir.LiteralI32(asInt(b))
		switch op {
		case ir.BinaryAdd:
			return x + y, true
		case ir.BinarySubtract:
			return x - y, true
		case ir.BinaryMultiply:
			return x * y, true
		case ir.BinaryDivide:
			if y == 0 {
				return nil, false
			}
			return x / y, true
		}
		return nil, false
	}
	x, y := asFloat(a), asFloat(b)
	switch op {
	case ir.BinaryAdd:
		return ir.LiteralF32(x + y), true
	case ir.BinarySubtract:
		return ir.LiteralF32(x - y), true
	case ir.BinaryMultiply:
		return ir.LiteralF32(x * y), true
	case ir.BinaryDivide:
		return ir.LiteralF32(x / y), true
	}
	return nil, false
}

func compare(op ir.BinaryOperator, a, b ir.LiteralValue) bool {
	if _, isInt := a.(ir.LiteralI32); isInt {
		x, y := asInt(a), asInt(b)
		switch op {
		case ir.BinaryLess:
			return x < y
		case ir.BinaryLessEqual:
			return x <= y
		case ir.BinaryGreater:
			return x > y
		case ir.BinaryGreaterEqual:
			return x >= y
		}
		return false
	}
	x, y := asFloat(a), asFloat(b)
	switch op {
	case ir.BinaryLess:
		return x < y
	case ir.BinaryLessEqual:
		return x <= y
	case ir.BinaryGreater:
		return x > y
	case ir.BinaryGreaterEqual:
		return x >= y
	}
	return false
}

// f32 rounds a float64 result to float32 precision.
func f32(v float64) ir.LiteralValue { return ir.LiteralF32(float32(v)) }

var unaryMath = map[ir.MathFunction]func(float64) float64{
	ir.MathRadians:     func(x float64) float64 { return x * math.Pi / 180 },
	ir.MathDegrees:     func(x float64) float64 { return x * 180 / math.Pi },
	ir.MathSin:         math.Sin,
	ir.MathCos:         math.Cos,
	ir.MathTan:         math.Tan,
	ir.MathAsin:        math.Asin,
	ir.MathAcos:        math.Acos,
	ir.MathAtan:        math.Atan,
	ir.MathExp:         math.Exp,
	ir.MathLog:         math.Log,
	ir.MathExp2:        math.Exp2,
	ir.MathLog2:        math.Log2,
	ir.MathSqrt:        math.Sqrt,
	ir.MathInverseSqrt: func(x float64) float64 { return 1 / math.Sqrt(x) },
	ir.MathAbs:         math.Abs,
	ir.MathSign: func(x float64) float64 {
		switch {
		case x > 0:
			return 1
		case x < 0:
			return -1
		}
		return x
	},
	ir.MathFloor: math.Floor,
	ir.MathCeil:  math.Ceil,
	ir.MathFract: func(x float64) float64 { return x - math.Floor(x) },
}

var binaryMath = map[ir.MathFunction]func(x, y float64) float64{
	ir.MathAtan2: math.Atan2,
	ir.MathPow:   math.Pow,
	ir.MathMod:   func(x, y float64) float64 { return x - y*math.Floor(x/y) },
	ir.MathMin:   func(x, y float64) float64 { return math.Min(x, y) },
	ir.MathMax:   func(x, y float64) float64 { return math.Max(x, y) },
	ir.MathStep: func(edge, x float64) float64 {
		if x < edge {
			return 0
		}
		return 1
	},
}

var ternaryMath = map[ir.MathFunction]func(x, y, z float64) float64{
	ir.MathClamp: func(x, lo, hi float64) float64 { return math.Min(math.Max(x, lo), hi) },
	ir.MathMix:   func(x, y, a float64) float64 { return x*(1-a) + y*a },
	ir.MathSmoothStep: func(e0, e1, x float64) float64 {
		t := math.Min(math.Max((x-e0)/(e1-e0), 0), 1)
		return t * t * (3 - 2*t)
	},
}

func floats(c *constant) []float64 {
	out := make([]float64, len(c.comps))
	for i, v := range c.comps {
		out[i] = float64(asFloat(v))
	}
	return out
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func fromFloats(vs []float64) []ir.LiteralValue {
	out := make([]ir.LiteralValue, len(vs))
	for i, v := range vs {
		out[i] = f32(v)
	}
	return out
}

// geometric evaluates the vector functions whose components depend on
// each other. It returns nil for functions it does not handle.
func geometric(fun ir.MathFunction, args []*constant) []ir.LiteralValue {
	v := make([][]float64, len(args))
	for i, a := range args {
		v[i] = floats(a)
	}
	switch fun {
	case ir.MathLength:
		return []ir.LiteralValue{f32(math.Sqrt(dot(v[0], v[0])))}
	case ir.MathDistance:
		d := make([]float64, len(v[0]))
		for i := range d {
			d[i] = v[0][i] - v[1][i]
		}
		return []ir.LiteralValue{f32(math.Sqrt(dot(d, d)))}
	case ir.MathDot:
		return []ir.LiteralValue{f32(dot(v[0], v[1]))}
	case ir.MathCross:
		a, b := v[0], v[1]
		return fromFloats([]float64{
			a[1]*b[2] - b[1]*a[2],
			a[2]*b[0] - b[2]*a[0],
			a[0]*b[1] - b[0]*a[1],
		})
	case ir.MathNormalize:
		l := math.Sqrt(dot(v[0], v[0]))
		out := make([]float64, len(v[0]))
		for i, x := range v[0] {
			out[i] = x / l
		}
		return fromFloats(out)
	case ir.MathFaceForward:
		n := v[0]
		out := make([]float64, len(n))
		for i, x := range n {
			if dot(v[2], v[1]) < 0 {
				out[i] = x
			} else {
				out[i] = -x
			}
		}
		return fromFloats(out)
	case ir.MathReflect:
		i, n := v[0], v[1]
		d := dot(n, i)
		out := make([]float64, len(i))
		for k := range i {
			out[k] = i[k] - 2*d*n[k]
		}
		return fromFloats(out)
	case ir.MathRefract:
		i, n, eta := v[0], v[1], v[2][0]
		d := dot(n, i)
		k := 1 - eta*eta*(1-d*d)
		out := make([]float64, len(i))
		if k >= 0 {
			for j := range i {
				out[j] = eta*i[j] - (eta*d+math.Sqrt(k))*n[j]
			}
		}
		return fromFloats(out)
	}
	return nil
}
