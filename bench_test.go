// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package shadervm

import (
	"testing"

	"github.com/gogpu/shadervm/asm"
	"github.com/gogpu/shadervm/bytecode"
	"github.com/gogpu/shadervm/vm"
)

// ---------------------------------------------------------------------------
// Benchmark programs at different complexity levels
// ---------------------------------------------------------------------------

// programStraightLine has no control flow.
const programStraightLine = `
cs_5_0
mad r0, v0, v1, l(1.0)
mul r1, r0, r0
dp4 r2, r1, v1
max r3, r2, l(0.0)
mov o0, r3
`

// programBranchy diverges on every quad and nests an if inside the else.
const programBranchy = `
ps_5_0
dcl_temps 3
dcl_input v0
dcl_output o0
lt r0.x, v0.x, l(0.5)
if_nz r0.x
  mul r1, v0, l(2.0)
else
  ge r2.x, v0.y, l(0.25)
  if_nz r2.x
    add r1, v0, l(-1.0)
  else
    mov r1, l(0.0)
  endif
endif
mov o0, r1
`

// programLoop counts each lane down from v0.x with a divergent break.
const programLoop = `
cs_5_0
dcl_temps 3
dcl_input v0
dcl_output o0
mov r0.x, v0.x
mov r1, l(0.0)
loop
  lt r2.x, r0.x, l(1.0)
  breakc_nz r2.x
  add r0.x, r0.x, l(-1.0)
  add r1, r1, l(1.0)
endloop
switch r1.x
  case l(0)
  mov o0, l(0.0)
  break
  default
  mov o0, r1
  break
endswitch
`

var benchPrograms = []struct {
	name   string
	source string
}{
	{"straight", programStraightLine},
	{"branchy", programBranchy},
	{"loop", programLoop},
}

// ---------------------------------------------------------------------------
// Pipeline stages
// ---------------------------------------------------------------------------

func BenchmarkParse(b *testing.B) {
	for _, bp := range benchPrograms {
		b.Run(bp.name, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				if _, err := asm.Parse(bp.source); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkCompile(b *testing.B) {
	for _, bp := range benchPrograms {
		program, err := asm.Parse(bp.source)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(bp.name, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				if _, err := Compile(program); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkRun measures a full run of a 32-lane warp on both backends.
func BenchmarkRun(b *testing.B) {
	const lanes = 32
	for _, bp := range benchPrograms {
		program, err := Assemble(bp.source)
		if err != nil {
			b.Fatal(err)
		}
		for _, backend := range []vm.Backend{vm.BackendInterpreter, vm.BackendCompiled} {
			b.Run(bp.name+"/"+backend.String(), func(b *testing.B) {
				opts := DefaultOptions()
				opts.VM.Backend = backend
				m, err := New(program, lanes, opts)
				if err != nil {
					b.Fatal(err)
				}
				for lane := range lanes {
					f := float32(lane) / lanes
					_ = m.SetLaneInput(lane, 0, bytecode.Float4(f*8, 1-f, f, 1))
					_ = m.SetLaneInput(lane, 1, bytecode.Float4(1, 2, 3, 4))
				}
				b.ReportAllocs()
				for b.Loop() {
					if err := m.Run(); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
