// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package bytecode

import (
	"math"
	"testing"
)

func TestNumber4_WriteMaskedPreservesComponents(t *testing.T) {
	old := Float4(1, 2, 3, 4)
	src := Float4(9, 9, 9, 9)

	got := old.WriteMasked(src, MaskX)
	want := Float4(9, 2, 3, 4)
	if got != want {
		t.Errorf("WriteMasked(.x) = %v, want %v", got, want)
	}

	got = old.WriteMasked(src, MaskY|MaskW)
	want = Float4(1, 9, 3, 9)
	if got != want {
		t.Errorf("WriteMasked(.yw) = %v, want %v", got, want)
	}

	if got := old.WriteMasked(src, 0); got != old {
		t.Errorf("WriteMasked(empty) = %v, want unchanged %v", got, old)
	}
}

func TestNumber4_Swizzle(t *testing.T) {
	v := Float4(1, 2, 3, 4)

	if got := v.Swizzle(IdentitySwizzle); got != v {
		t.Errorf("identity swizzle = %v, want %v", got, v)
	}
	if got, want := v.Swizzle(Swizzle{ComponentW, ComponentZ, ComponentY, ComponentX}), Float4(4, 3, 2, 1); got != want {
		t.Errorf("wzyx swizzle = %v, want %v", got, want)
	}
	if got, want := v.Swizzle(Replicate(ComponentY)), Float4(2, 2, 2, 2); got != want {
		t.Errorf("yyyy swizzle = %v, want %v", got, want)
	}
}

func TestNumber4_Saturate(t *testing.T) {
	nan := float32(math.NaN())
	got := Float4(-0.5, 0.25, 7, nan).Saturate()
	want := Float4(0, 0.25, 1, 0)
	if got != want {
		t.Errorf("Saturate() = %v, want %v", got, want)
	}
	for i, f := range got.Floats() {
		if f < 0 || f > 1 {
			t.Errorf("component %d = %v, outside [0,1]", i, f)
		}
	}
}

func TestApplyModifier(t *testing.T) {
	v := Float4(1, -2, 0, -0.5)
	tests := []struct {
		name string
		mod  Modifier
		want Number4
	}{
		{"none", ModNone, v},
		{"neg", ModNeg, Float4(-1, 2, float32(math.Copysign(0, -1)), 0.5)},
		{"abs", ModAbs, Float4(1, 2, 0, 0.5)},
		{"absneg", ModAbsNeg, Float4(-1, -2, float32(math.Copysign(0, -1)), -0.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ApplyModifier(v, tt.mod); got != tt.want {
				t.Errorf("ApplyModifier() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOperand_Immediate64(t *testing.T) {
	op := Imm64(1.5, -2).WithModifier(ModAbs)
	v := op.Immediate()

	lo := uint64(v[0]) | uint64(v[1])<<32
	hi := uint64(v[2]) | uint64(v[3])<<32
	if got := math.Float64frombits(lo); got != 1.5 {
		t.Errorf("first double = %v, want 1.5", got)
	}
	if got := math.Float64frombits(hi); got != 2 {
		t.Errorf("second double = %v, want 2", got)
	}
}

func TestOperand_String(t *testing.T) {
	tests := []struct {
		name string
		op   Operand
		want string
	}{
		{"temp", Temp(0), "r0"},
		{"masked", Output(1).WithMask(MaskX | MaskZ), "o1.xz"},
		{"full mask omitted", Temp(2).WithMask(MaskAll), "r2"},
		{"identity swizzle omitted", Input(3).WithSwizzle(IdentitySwizzle), "v3"},
		{"swizzle", Temp(1).WithSwizzle(Swizzle{ComponentY, ComponentX, ComponentW, ComponentZ}), "r1.yxwz"},
		{"neg", Temp(0).WithModifier(ModNeg), "-r0"},
		{"absneg", Temp(0).WithSwizzle(Replicate(ComponentX)).WithModifier(ModAbsNeg), "-|r0.xxxx|"},
		{"constant buffer", ConstantBuffer(0, 7), "cb0[7]"},
		{"indexable", IndexableTemp(1, 2).WithMask(MaskW), "x1[2].w"},
		{"relative", IndexableTemp(0, 0).WithRelativeIndex(1, Temp(4).WithSwizzle(Replicate(ComponentX)), 2), "x0[r4.xxxx + 2]"},
		{"literal", Imm32(Number4{Float(1), Int(3), Int(-1), Float(0.5)}), "l(1.0, 3, -1, 0.5)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOperand_CloneIsDeep(t *testing.T) {
	op := ConstantBuffer(0, 0).WithRelativeIndex(1, Temp(1), 0)
	c := op.Clone()
	c.Indices[1].Register.Indices[0].Value = 9

	if op.Indices[1].Register.Indices[0].Value != 1 {
		t.Error("Clone shares the relative index register with the original")
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		n    Number
		want string
	}{
		{Float(0), "0"},
		{Float(2), "2.0"},
		{Float(-0.25), "-0.25"},
		{Int(7), "7"},
		{Int(-1), "-1"},
		{Float(1e10), "1e+10"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.n); got != tt.want {
			t.Errorf("FormatNumber(%#x) = %q, want %q", uint32(tt.n), got, tt.want)
		}
	}
}
