// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package vm

import (
	"math"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/shadervm/bytecode"
)

func runSingle(t *testing.T, backend Backend, in bytecode.Instruction, seed func(m *VM)) *VM {
	t.Helper()
	p := compile(t, gputypes.ShaderStageCompute, in)
	m := newVM(t, p, 1, Options{Backend: backend})
	if seed != nil {
		seed(m)
	}
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return m
}

func TestSemantics(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		name string
		in   bytecode.Instruction
		r1   bytecode.Number4
		r2   bytecode.Number4
		want bytecode.Number4
	}{
		{
			name: "mov",
			in:   ins(bytecode.OpMov, bytecode.Temp(0), bytecode.Temp(1)),
			r1:   bytecode.Float4(1, 2, 3, 4),
			want: bytecode.Float4(1, 2, 3, 4),
		},
		{
			name: "add",
			in:   ins(bytecode.OpAdd, bytecode.Temp(0), bytecode.Temp(1), bytecode.Temp(2)),
			r1:   bytecode.Float4(1, 2, 3, 4),
			r2:   bytecode.Float4(0.5, -2, 0, 1),
			want: bytecode.Float4(1.5, 0, 3, 5),
		},
		{
			name: "mul",
			in:   ins(bytecode.OpMul, bytecode.Temp(0), bytecode.Temp(1), bytecode.Temp(2)),
			r1:   bytecode.Float4(1, 2, 3, 4),
			r2:   bytecode.Float4(2, 2, -1, 0.25),
			want: bytecode.Float4(2, 4, -3, 1),
		},
		{
			name: "mad with literal",
			in:   ins(bytecode.OpMad, bytecode.Temp(0), bytecode.Temp(1), bytecode.Temp(2), lit(1)),
			r1:   bytecode.Float4(2, 0, 1, -1),
			r2:   bytecode.Float4(3, 5, 1, 1),
			want: bytecode.Float4(7, 1, 2, 0),
		},
		{
			name: "min ignores NaN",
			in:   ins(bytecode.OpMin, bytecode.Temp(0), bytecode.Temp(1), bytecode.Temp(2)),
			r1:   bytecode.Float4(1, nan, 3, -4),
			r2:   bytecode.Float4(2, 5, nan, 4),
			want: bytecode.Float4(1, 5, 3, -4),
		},
		{
			name: "max ignores NaN",
			in:   ins(bytecode.OpMax, bytecode.Temp(0), bytecode.Temp(1), bytecode.Temp(2)),
			r1:   bytecode.Float4(1, nan, 3, -4),
			r2:   bytecode.Float4(2, 5, nan, 4),
			want: bytecode.Float4(2, 5, 3, 4),
		},
		{
			name: "dp4",
			in:   ins(bytecode.OpDp4, bytecode.Temp(0), bytecode.Temp(1), bytecode.Temp(2)),
			r1:   bytecode.Float4(1, 2, 3, 4),
			r2:   bytecode.Float4(1, 1, 1, 0.5),
			want: bytecode.Float4(8, 8, 8, 8),
		},
		{
			name: "lt",
			in:   ins(bytecode.OpLt, bytecode.Temp(0), bytecode.Temp(1), bytecode.Temp(2)),
			r1:   bytecode.Float4(1, 2, 3, nan),
			r2:   bytecode.Float4(2, 2, 1, 0),
			want: bytecode.Number4{bytecode.Bool(true), 0, 0, 0},
		},
		{
			name: "ge",
			in:   ins(bytecode.OpGe, bytecode.Temp(0), bytecode.Temp(1), bytecode.Temp(2)),
			r1:   bytecode.Float4(1, 2, 3, nan),
			r2:   bytecode.Float4(2, 2, 1, 0),
			want: bytecode.Number4{0, bytecode.Bool(true), bytecode.Bool(true), 0},
		},
		{
			name: "eq and ne",
			in:   ins(bytecode.OpNe, bytecode.Temp(0), bytecode.Temp(1), bytecode.Temp(2)),
			r1:   bytecode.Float4(1, 0, nan, 3),
			r2:   bytecode.Float4(1, float32(math.Copysign(0, -1)), nan, 4),
			want: bytecode.Number4{0, 0, bytecode.Bool(true), bytecode.Bool(true)},
		},
		{
			name: "movc",
			in:   ins(bytecode.OpMovc, bytecode.Temp(0), bytecode.Temp(1), bytecode.Temp(2), lit(9)),
			r1:   bytecode.Number4{bytecode.Bool(true), 0, 1, 0x80000000},
			r2:   bytecode.Float4(1, 2, 3, 4),
			want: bytecode.Float4(1, 9, 3, 4),
		},
		{
			name: "swizzle and modifier",
			in: ins(bytecode.OpMov, bytecode.Temp(0),
				bytecode.Temp(1).WithSwizzle(bytecode.Swizzle{bytecode.ComponentW, bytecode.ComponentZ, bytecode.ComponentY, bytecode.ComponentX}).WithModifier(bytecode.ModAbsNeg)),
			r1:   bytecode.Float4(1, -2, 3, -4),
			want: bytecode.Float4(-4, -3, -2, -1),
		},
	}

	for _, tt := range tests {
		for _, backend := range []Backend{BackendInterpreter, BackendCompiled} {
			t.Run(tt.name+"/"+backend.String(), func(t *testing.T) {
				m := runSingle(t, backend, tt.in, func(m *VM) {
					mustSet(t, m.SetTemp(0, 1, tt.r1))
					if len(tt.in.Operands) > 2 && tt.in.Operands[2].Type == bytecode.OperandTemp {
						mustSet(t, m.SetTemp(0, 2, tt.r2))
					}
				})
				got, _ := m.Temp(0, 0)
				if got != tt.want {
					t.Errorf("r0 = %#v, want %#v", got, tt.want)
				}
			})
		}
	}
}

func TestWriteMask_PreservesOtherComponents(t *testing.T) {
	in := ins(bytecode.OpMov, bytecode.Temp(0).WithMask(bytecode.MaskX), bytecode.Temp(1))
	for _, backend := range []Backend{BackendInterpreter, BackendCompiled} {
		m := runSingle(t, backend, in, func(m *VM) {
			mustSet(t, m.SetTemp(0, 0, bytecode.Float4(1, 2, 3, 4)))
			mustSet(t, m.SetTemp(0, 1, bytecode.Float4(9, 8, 7, 6)))
		})
		if got, want := must(m.Temp(0, 0)), bytecode.Float4(9, 2, 3, 4); got != want {
			t.Errorf("%s: r0 = %v, want %v", backend, got, want)
		}
	}
}

func TestIdentitySwizzle_EqualsComponentwiseWrites(t *testing.T) {
	src := bytecode.Float4(1.5, -2, 0.25, 8)

	whole := runSingle(t, BackendInterpreter,
		ins(bytecode.OpMov, bytecode.Temp(0), bytecode.Temp(1).WithSwizzle(bytecode.IdentitySwizzle)),
		func(m *VM) { mustSet(t, m.SetTemp(0, 1, src)) })

	p := compile(t, gputypes.ShaderStageCompute,
		ins(bytecode.OpMov, bytecode.Temp(0).WithMask(bytecode.MaskX), bytecode.Temp(1)),
		ins(bytecode.OpMov, bytecode.Temp(0).WithMask(bytecode.MaskY), bytecode.Temp(1)),
		ins(bytecode.OpMov, bytecode.Temp(0).WithMask(bytecode.MaskZ), bytecode.Temp(1)),
		ins(bytecode.OpMov, bytecode.Temp(0).WithMask(bytecode.MaskW), bytecode.Temp(1)),
	)
	parts := newVM(t, p, 1, DefaultOptions())
	mustSet(t, parts.SetTemp(0, 1, src))
	if err := parts.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if a, b := must(whole.Temp(0, 0)), must(parts.Temp(0, 0)); a != b || a != src {
		t.Errorf("whole = %v, per component = %v, want %v", a, b, src)
	}
}

func TestSaturateLaw(t *testing.T) {
	inputs := []bytecode.Number4{
		bytecode.Float4(-3, 0.5, 2, 1),
		bytecode.Float4(0, 1, -0.25, 100),
		bytecode.Float4(float32(math.NaN()), float32(math.Inf(1)), float32(math.Inf(-1)), 0.75),
	}
	mad := func(sat bool) bytecode.Instruction {
		in := ins(bytecode.OpMad, bytecode.Temp(0), bytecode.Temp(1), lit(2), lit(-0.5))
		in.Saturate = sat
		return in
	}

	for _, v := range inputs {
		for _, backend := range []Backend{BackendInterpreter, BackendCompiled} {
			seed := func(m *VM) { mustSet(t, m.SetTemp(0, 1, v)) }
			saturated := must(runSingle(t, backend, mad(true), seed).Temp(0, 0))
			plain := must(runSingle(t, backend, mad(false), seed).Temp(0, 0))

			for i, f := range saturated.Floats() {
				if !(f >= 0 && f <= 1) {
					t.Errorf("%s %v: component %d = %v outside [0,1]", backend, v, i, f)
				}
			}
			if clamped := plain.Saturate(); clamped != saturated {
				t.Errorf("%s %v: saturate = %v, clamp afterwards = %v", backend, v, saturated, clamped)
			}
		}
	}
}

func must(v bytecode.Number4, err error) bytecode.Number4 {
	if err != nil {
		panic(err)
	}
	return v
}
