// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package opt implements the IR optimization passes and the pipeline
// that runs them to a fixed point.
//
// Each Pass rewrites a module in place and reports whether it changed
// anything. The Pipeline renumbers and validates the module after every
// change, so passes may leave dead expressions and out-of-order operands
// behind; a pass that breaks an invariant surfaces as *InternalError.
//
//	p, err := opt.NewPipeline(opt.DefaultOptions())
//	if err != nil {
//		return err
//	}
//	rounds, err := p.Run(ctx, module)
package opt
