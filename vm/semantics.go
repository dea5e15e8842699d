// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package vm

import (
	"math"

	"github.com/gogpu/shadervm/bytecode"
)

// evalFunc computes the result of an arithmetic instruction from its
// source values. Both backends share these functions.
type evalFunc func(src []bytecode.Number4) bytecode.Number4

// evaluator returns the semantics of an arithmetic opcode. Nop and the
// control-flow opcodes have none.
func evaluator(op bytecode.Opcode) (evalFunc, bool) {
	switch op {
	case bytecode.OpMov:
		return evalMov, true
	case bytecode.OpMovc:
		return evalMovc, true
	case bytecode.OpAdd:
		return evalAdd, true
	case bytecode.OpMul:
		return evalMul, true
	case bytecode.OpMad:
		return evalMad, true
	case bytecode.OpMin:
		return evalMin, true
	case bytecode.OpMax:
		return evalMax, true
	case bytecode.OpDp4:
		return evalDp4, true
	case bytecode.OpLt:
		return evalLt, true
	case bytecode.OpGe:
		return evalGe, true
	case bytecode.OpEq:
		return evalEq, true
	case bytecode.OpNe:
		return evalNe, true
	default:
		return nil, false
	}
}

var (
	evalAdd = binary(func(a, b float32) float32 { return a + b })
	evalMul = binary(func(a, b float32) float32 { return a * b })
	evalMin = binary(minFloat)
	evalMax = binary(maxFloat)
	evalLt  = compare(func(a, b float32) bool { return a < b })
	evalGe  = compare(func(a, b float32) bool { return a >= b })
	evalEq  = compare(func(a, b float32) bool { return a == b })
	evalNe  = compare(func(a, b float32) bool { return a != b })
)

func evalMov(src []bytecode.Number4) bytecode.Number4 { return src[0] }

// evalMovc selects per component: src1 where src0 has any bit set, src2
// elsewhere.
func evalMovc(src []bytecode.Number4) bytecode.Number4 {
	var r bytecode.Number4
	for i := range r {
		if src[0][i] != 0 {
			r[i] = src[1][i]
		} else {
			r[i] = src[2][i]
		}
	}
	return r
}

// evalMad rounds the product before the sum. The explicit conversion keeps
// the compiler from fusing the two operations.
func evalMad(src []bytecode.Number4) bytecode.Number4 {
	var r bytecode.Number4
	for i := range r {
		a, b, c := src[0][i].Float32(), src[1][i].Float32(), src[2][i].Float32()
		r[i] = bytecode.Float(float32(a*b) + c)
	}
	return r
}

// evalDp4 replicates the four-component dot product into every component.
func evalDp4(src []bytecode.Number4) bytecode.Number4 {
	var sum float32
	for i := range 4 {
		sum = float32(sum + float32(src[0][i].Float32()*src[1][i].Float32()))
	}
	return bytecode.Splat(bytecode.Float(sum))
}

func binary(f func(a, b float32) float32) evalFunc {
	return func(src []bytecode.Number4) bytecode.Number4 {
		var r bytecode.Number4
		for i := range r {
			r[i] = bytecode.Float(f(src[0][i].Float32(), src[1][i].Float32()))
		}
		return r
	}
}

// compare produces all ones for true and zero for false in each component.
func compare(f func(a, b float32) bool) evalFunc {
	return func(src []bytecode.Number4) bytecode.Number4 {
		var r bytecode.Number4
		for i := range r {
			r[i] = bytecode.Bool(f(src[0][i].Float32(), src[1][i].Float32()))
		}
		return r
	}
}

// minFloat returns the other operand when one is NaN.
func minFloat(a, b float32) float32 {
	switch {
	case isNaN(a):
		return b
	case isNaN(b):
		return a
	case a < b:
		return a
	default:
		return b
	}
}

func maxFloat(a, b float32) float32 {
	switch {
	case isNaN(a):
		return b
	case isNaN(b):
		return a
	case a >= b:
		return a
	default:
		return b
	}
}

// passes evaluates a branch or retirement condition from the first
// component of its sources.
func passes(test bytecode.TestBoolean, src []bytecode.Number4) bool {
	switch test {
	case bytecode.TestZero:
		return src[0][0] == 0
	case bytecode.TestNonZero:
		return src[0][0] != 0
	case bytecode.TestEqual:
		return src[0][0] == src[1][0]
	default:
		return false
	}
}

func isNaN(f float32) bool { return math.IsNaN(float64(f)) }
