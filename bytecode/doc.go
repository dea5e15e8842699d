// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package bytecode defines the token model shared by every stage of the VM.
//
// A Program is what an external container parser hands over: the shader
// stage, register declarations and a stream of Instructions that still uses
// structured control flow (if/else/endif, loop/endloop, switch/case and
// break/continue). The flow package rewrites that stream into explicit
// branches; the vm package executes the result.
//
// # Registers
//
// Every register holds a Number4, four 32-bit components stored as raw bits.
// Operands address a register file by OperandType and one or two indices and
// select components with a write mask (destinations) or a swizzle (sources).
// Source operands may carry a negate or absolute-value Modifier.
//
// # Errors
//
// All stages report failures as *Error values with an ErrorKind, so callers
// can distinguish malformed programs from unsupported instructions,
// invalid configurations and out-of-bounds accesses:
//
//	if bytecode.IsKind(err, bytecode.ErrMalformedProgram) {
//	    ...
//	}
package bytecode
