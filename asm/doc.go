// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package asm reads and writes a textual form of structured shader
// bytecode.
//
// One directive or instruction goes on each line; // starts a comment.
//
//	ps_5_0
//	dcl_temps 2
//	dcl_input v0
//	dcl_output o0
//	dcl_constantbuffer cb0[4]
//	dcl_indexableTemp x0[8]
//	dcl_resource_texture2d t0, float
//	dcl_sampler s0, mode_default
//
//	mov r0, v0
//	if_nz r0.x
//	  mad_sat o0.xy, r0.yxwz, l(2.0), -|cb0[1].x|
//	else
//	  mov o0, x0[r1.x + 2]
//	endif
//
// The stage directive is vs, ps or cs with an optional shader model
// suffix. Conditional instructions carry a _z or _nz test suffix and
// arithmetic may add _sat. Inside l(...) numbers with a point or exponent
// are floats and plain numbers are integer bit patterns; a single value
// fills all four components. Source selections shorter than four
// components repeat their last one.
//
// Write produces text that Parse reads back. WriteLowered prints the
// numbered listing of a lowered program for inspection.
package asm
