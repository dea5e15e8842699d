// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package bytecode

import (
	"fmt"
	"math"
)

// Number is one 32-bit register component.
//
// The value is stored as raw bits so that integer, float and boolean
// (all-ones / zero) views of the same register stay bit-exact.
type Number uint32

// Float returns a Number holding the bits of f.
func Float(f float32) Number {
	return Number(math.Float32bits(f))
}

// Int returns a Number holding the two's complement bits of i.
func Int(i int32) Number {
	return Number(uint32(i))
}

// Uint returns a Number holding u.
func Uint(u uint32) Number {
	return Number(u)
}

// Bool returns the canonical boolean encoding: all ones for true, zero for false.
func Bool(b bool) Number {
	if b {
		return Number(0xFFFFFFFF)
	}
	return 0
}

// Float32 interprets the bits as an IEEE 754 single.
func (n Number) Float32() float32 {
	return math.Float32frombits(uint32(n))
}

// Int32 interprets the bits as a signed integer.
func (n Number) Int32() int32 {
	return int32(uint32(n))
}

// Uint32 returns the raw bits.
func (n Number) Uint32() uint32 {
	return uint32(n)
}

// IsZero reports whether every bit is clear. Conditional tests in the
// bytecode compare raw bits, so -0.0 is non-zero.
func (n Number) IsZero() bool {
	return n == 0
}

// Number4 is a four component register value.
// Components are independently addressable; see WriteMasked.
type Number4 [4]Number

// Float4 builds a Number4 from four floats.
func Float4(x, y, z, w float32) Number4 {
	return Number4{Float(x), Float(y), Float(z), Float(w)}
}

// Int4 builds a Number4 from four signed integers.
func Int4(x, y, z, w int32) Number4 {
	return Number4{Int(x), Int(y), Int(z), Int(w)}
}

// Splat replicates n into all four components.
func Splat(n Number) Number4 {
	return Number4{n, n, n, n}
}

// Floats returns the float view of all four components.
func (v Number4) Floats() [4]float32 {
	return [4]float32{v[0].Float32(), v[1].Float32(), v[2].Float32(), v[3].Float32()}
}

// WriteMasked returns v with the components enabled in mask replaced by
// the matching components of src. Disabled components keep their value.
func (v Number4) WriteMasked(src Number4, mask ComponentMask) Number4 {
	for i := 0; i < 4; i++ {
		if mask.Has(Component(i)) {
			v[i] = src[i]
		}
	}
	return v
}

// Swizzle returns the value remapped through s: result[i] = v[s[i]].
func (v Number4) Swizzle(s Swizzle) Number4 {
	return Number4{v[s[0]], v[s[1]], v[s[2]], v[s[3]]}
}

// Saturate clamps every float component to [0, 1]. NaN becomes 0.
func (v Number4) Saturate() Number4 {
	for i := range v {
		v[i] = Float(saturate(v[i].Float32()))
	}
	return v
}

func saturate(f float32) float32 {
	switch {
	case f > 1:
		return 1
	case f >= 0:
		return f
	default:
		// Also catches NaN.
		return 0
	}
}

// String formats the value as floats, e.g. "(1, 0, 0, 0.5)".
func (v Number4) String() string {
	f := v.Floats()
	return fmt.Sprintf("(%g, %g, %g, %g)", f[0], f[1], f[2], f[3])
}
