// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

var mathNames = [...]string{
	MathRadians:        "radians",
	MathDegrees:        "degrees",
	MathSin:            "sin",
	MathCos:            "cos",
	MathTan:            "tan",
	MathAsin:           "asin",
	MathAcos:           "acos",
	MathAtan:           "atan",
	MathAtan2:          "atan",
	MathPow:            "pow",
	MathExp:            "exp",
	MathLog:            "log",
	MathExp2:           "exp2",
	MathLog2:           "log2",
	MathSqrt:           "sqrt",
	MathInverseSqrt:    "inversesqrt",
	MathAbs:            "abs",
	MathSign:           "sign",
	MathFloor:          "floor",
	MathCeil:           "ceil",
	MathFract:          "fract",
	MathMod:            "mod",
	MathMin:            "min",
	MathMax:            "max",
	MathClamp:          "clamp",
	MathMix:            "mix",
	MathStep:           "step",
	MathSmoothStep:     "smoothstep",
	MathLength:         "length",
	MathDistance:       "distance",
	MathDot:            "dot",
	MathCross:          "cross",
	MathNormalize:      "normalize",
	MathFaceForward:    "faceforward",
	MathReflect:        "reflect",
	MathRefract:        "refract",
	MathMatrixCompMult: "matrixCompMult",
	MathTranspose:      "transpose",
	MathOuter:          "outerProduct",
}

// String returns the GLSL builtin spelling.
func (f MathFunction) String() string {
	if int(f) < len(mathNames) {
		return mathNames[f]
	}
	return "unknown"
}

var relationalNames = [...]string{
	RelationalAll:              "all",
	RelationalAny:              "any",
	RelationalNot:              "not",
	RelationalLessThan:         "lessThan",
	RelationalLessThanEqual:    "lessThanEqual",
	RelationalGreaterThan:      "greaterThan",
	RelationalGreaterThanEqual: "greaterThanEqual",
	RelationalEqual:            "equal",
	RelationalNotEqual:         "notEqual",
}

func (f RelationalFunction) String() string {
	if int(f) < len(relationalNames) {
		return relationalNames[f]
	}
	return "unknown"
}

var derivativeNames = [...]string{
	DerivativeX:     "dFdx",
	DerivativeY:     "dFdy",
	DerivativeWidth: "fwidth",
}

func (a DerivativeAxis) String() string {
	if int(a) < len(derivativeNames) {
		return derivativeNames[a]
	}
	return "unknown"
}

// MathFunctionByName returns the math function a builtin name denotes.
// The two-argument atan is reported as MathAtan; callers pick MathAtan2
// by arity.
func MathFunctionByName(name string) (MathFunction, bool) {
	for f, n := range mathNames {
		if n == name && MathFunction(f) != MathAtan2 {
			return MathFunction(f), true
		}
	}
	return 0, false
}

// RelationalFunctionByName returns the relational function a builtin
// name denotes.
func RelationalFunctionByName(name string) (RelationalFunction, bool) {
	for f, n := range relationalNames {
		if n == name {
			return RelationalFunction(f), true
		}
	}
	return 0, false
}

// DerivativeByName returns the derivative axis a builtin name denotes.
func DerivativeByName(name string) (DerivativeAxis, bool) {
	for a, n := range derivativeNames {
		if n == name {
			return DerivativeAxis(a), true
		}
	}
	return 0, false
}
