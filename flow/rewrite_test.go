// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package flow

import (
	"testing"

	"github.com/gogpu/shadervm/bytecode"
)

var (
	condX = bytecode.Input(0).WithSwizzle(bytecode.Replicate(bytecode.ComponentX))
	r0x   = bytecode.Temp(0).WithSwizzle(bytecode.Replicate(bytecode.ComponentX))
)

func lit(f float32) bytecode.Operand { return bytecode.Imm32(bytecode.Splat(bytecode.Float(f))) }

func ins(op bytecode.Opcode, operands ...bytecode.Operand) bytecode.Instruction {
	return bytecode.Instruction{Opcode: op, Operands: operands}
}

func insTest(op bytecode.Opcode, test bytecode.TestBoolean, operands ...bytecode.Operand) bytecode.Instruction {
	return bytecode.Instruction{Opcode: op, Test: test, Operands: operands}
}

// branchShape is the part of a branch the rewriter is responsible for.
type branchShape struct {
	index  int
	opcode bytecode.Opcode
	test   bytecode.TestBoolean
	target int
	merge  int
}

func checkBranches(t *testing.T, got []bytecode.Instruction, want []branchShape) {
	t.Helper()
	for _, w := range want {
		if w.index >= len(got) {
			t.Fatalf("stream has %d instructions, want a branch at %d", len(got), w.index)
		}
		in := got[w.index]
		if in.Opcode != w.opcode || in.Target != w.target || in.Merge != w.merge {
			t.Errorf("[%d] = %s (target %d, merge %d); want %s target %d merge %d",
				w.index, in, in.Target, in.Merge, w.opcode, w.target, w.merge)
		}
		if w.opcode == bytecode.OpBranchC && in.Test != w.test {
			t.Errorf("[%d] test = %s, want %s", w.index, in.Test.Suffix(), w.test.Suffix())
		}
	}
}

func TestRewrite_IfElse(t *testing.T) {
	got, err := Rewrite([]bytecode.Instruction{
		insTest(bytecode.OpIf, bytecode.TestNonZero, condX),
		ins(bytecode.OpMov, bytecode.Temp(0), lit(1)),
		ins(bytecode.OpElse),
		ins(bytecode.OpMov, bytecode.Temp(0), lit(2)),
		ins(bytecode.OpEndIf),
		ins(bytecode.OpMov, bytecode.Output(0), bytecode.Temp(0)),
	})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	checkBranches(t, got, []branchShape{
		{index: 0, opcode: bytecode.OpBranchC, test: bytecode.TestZero, target: 3, merge: 4},
		{index: 2, opcode: bytecode.OpBranch, target: 4, merge: 4},
	})
	if got[4].Opcode != bytecode.OpMov {
		t.Errorf("[4] = %s, want the instruction after endif", got[4])
	}
}

func TestRewrite_IfWithoutElse(t *testing.T) {
	got, err := Rewrite([]bytecode.Instruction{
		insTest(bytecode.OpIf, bytecode.TestZero, condX),
		ins(bytecode.OpMov, bytecode.Temp(0), lit(1)),
		ins(bytecode.OpEndIf),
	})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	checkBranches(t, got, []branchShape{
		{index: 0, opcode: bytecode.OpBranchC, test: bytecode.TestNonZero, target: 2, merge: 2},
	})
}

func TestRewrite_LoopBreakContinue(t *testing.T) {
	got, err := Rewrite([]bytecode.Instruction{
		ins(bytecode.OpLoop),
		insTest(bytecode.OpBreakC, bytecode.TestNonZero, r0x),
		insTest(bytecode.OpContinueC, bytecode.TestZero, condX),
		ins(bytecode.OpAdd, bytecode.Temp(0), bytecode.Temp(0), lit(1)),
		ins(bytecode.OpEndLoop),
	})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	checkBranches(t, got, []branchShape{
		{index: 0, opcode: bytecode.OpBranchC, test: bytecode.TestNonZero, target: 4, merge: 4},
		{index: 1, opcode: bytecode.OpBranchC, test: bytecode.TestZero, target: 0, merge: 0},
		{index: 3, opcode: bytecode.OpBranch, target: 0, merge: 0},
	})
}

func TestRewrite_NestedLoopsBreakInner(t *testing.T) {
	got, err := Rewrite([]bytecode.Instruction{
		ins(bytecode.OpLoop),
		ins(bytecode.OpLoop),
		ins(bytecode.OpBreak),
		ins(bytecode.OpEndLoop),
		insTest(bytecode.OpBreakC, bytecode.TestZero, r0x),
		ins(bytecode.OpEndLoop),
	})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	// 0 br @2 (inner break), 1 br @0 (inner back edge),
	// 2 brc @4 (outer break), 3 br @0 (outer back edge).
	checkBranches(t, got, []branchShape{
		{index: 0, opcode: bytecode.OpBranch, target: 2, merge: 2},
		{index: 1, opcode: bytecode.OpBranch, target: 0, merge: 0},
		{index: 2, opcode: bytecode.OpBranchC, test: bytecode.TestZero, target: 4, merge: 4},
		{index: 3, opcode: bytecode.OpBranch, target: 0, merge: 0},
	})
}

func TestRewrite_Switch(t *testing.T) {
	one := bytecode.Imm32(bytecode.Splat(bytecode.Int(1)))
	two := bytecode.Imm32(bytecode.Splat(bytecode.Int(2)))
	got, err := Rewrite([]bytecode.Instruction{
		ins(bytecode.OpSwitch, r0x),
		ins(bytecode.OpCase, one),
		ins(bytecode.OpMov, bytecode.Temp(1), lit(10)),
		ins(bytecode.OpBreak),
		ins(bytecode.OpCase, two),
		ins(bytecode.OpDefault),
		ins(bytecode.OpMov, bytecode.Temp(1), lit(20)),
		ins(bytecode.OpBreak),
		ins(bytecode.OpEndSwitch),
	})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if len(got) != 9 {
		t.Fatalf("len = %d, want 9:\n%v", len(got), got)
	}
	checkBranches(t, got, []branchShape{
		{index: 0, opcode: bytecode.OpBranch, target: 6, merge: 9},
		{index: 2, opcode: bytecode.OpBranch, target: 9, merge: 9},
		{index: 4, opcode: bytecode.OpBranch, target: 9, merge: 9},
		{index: 5, opcode: bytecode.OpBranch, target: 9, merge: 9},
		{index: 6, opcode: bytecode.OpBranchC, test: bytecode.TestEqual, target: 1, merge: 9},
		{index: 7, opcode: bytecode.OpBranchC, test: bytecode.TestEqual, target: 3, merge: 9},
		{index: 8, opcode: bytecode.OpBranch, target: 3, merge: 9},
	})
	if n := len(got[6].Operands); n != 2 {
		t.Fatalf("dispatch operands = %d, want selector and literal", n)
	}
	if got[6].Operands[1].Immediate() != one.Immediate() {
		t.Errorf("first dispatch compares against %s, want %s", got[6].Operands[1], one)
	}
}

func TestRewrite_SwitchWithoutDefault(t *testing.T) {
	got, err := Rewrite([]bytecode.Instruction{
		ins(bytecode.OpSwitch, r0x),
		ins(bytecode.OpCase, bytecode.Imm32(bytecode.Splat(bytecode.Int(3)))),
		ins(bytecode.OpBreak),
		ins(bytecode.OpEndSwitch),
	})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	// 0 entry, 1 break, 2 tail, 3 brc_eq, 4 fallback; exit 5.
	checkBranches(t, got, []branchShape{
		{index: 0, opcode: bytecode.OpBranch, target: 3, merge: 5},
		{index: 4, opcode: bytecode.OpBranch, target: 5, merge: 5},
	})
}

func TestRewrite_Errors(t *testing.T) {
	tests := []struct {
		name   string
		stream []bytecode.Instruction
		kind   bytecode.ErrorKind
		pos    int
	}{
		{
			name:   "else without if",
			stream: []bytecode.Instruction{ins(bytecode.OpMov, bytecode.Temp(0), lit(1)), ins(bytecode.OpElse)},
			kind:   bytecode.ErrMalformedProgram,
			pos:    1,
		},
		{
			name:   "double else",
			stream: []bytecode.Instruction{insTest(bytecode.OpIf, bytecode.TestZero, condX), ins(bytecode.OpElse), ins(bytecode.OpElse)},
			kind:   bytecode.ErrMalformedProgram,
			pos:    2,
		},
		{
			name:   "endloop closes if",
			stream: []bytecode.Instruction{ins(bytecode.OpLoop), insTest(bytecode.OpIf, bytecode.TestZero, condX), ins(bytecode.OpEndLoop)},
			kind:   bytecode.ErrMalformedProgram,
			pos:    2,
		},
		{
			name:   "unterminated if",
			stream: []bytecode.Instruction{ins(bytecode.OpLoop), ins(bytecode.OpBreak), ins(bytecode.OpEndLoop), insTest(bytecode.OpIf, bytecode.TestZero, condX)},
			kind:   bytecode.ErrMalformedProgram,
			pos:    3,
		},
		{
			name:   "break outside loop",
			stream: []bytecode.Instruction{ins(bytecode.OpBreak)},
			kind:   bytecode.ErrMalformedProgram,
			pos:    0,
		},
		{
			name:   "continue inside switch only",
			stream: []bytecode.Instruction{ins(bytecode.OpSwitch, r0x), ins(bytecode.OpDefault), ins(bytecode.OpContinue), ins(bytecode.OpEndSwitch)},
			kind:   bytecode.ErrMalformedProgram,
			pos:    2,
		},
		{
			name:   "duplicate default",
			stream: []bytecode.Instruction{ins(bytecode.OpSwitch, r0x), ins(bytecode.OpDefault), ins(bytecode.OpDefault), ins(bytecode.OpEndSwitch)},
			kind:   bytecode.ErrMalformedProgram,
			pos:    2,
		},
		{
			name:   "case outside switch",
			stream: []bytecode.Instruction{ins(bytecode.OpCase, lit(1))},
			kind:   bytecode.ErrMalformedProgram,
			pos:    0,
		},
		{
			name:   "explicit branch in structured input",
			stream: []bytecode.Instruction{{Opcode: bytecode.OpBranch, Target: 0}},
			kind:   bytecode.ErrUnsupportedInstruction,
			pos:    0,
		},
		{
			name:   "unknown opcode",
			stream: []bytecode.Instruction{{Opcode: bytecode.Opcode(500)}},
			kind:   bytecode.ErrUnsupportedInstruction,
			pos:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Rewrite(tt.stream)
			if err == nil {
				t.Fatal("expected an error")
			}
			e, ok := err.(*bytecode.Error)
			if !ok {
				t.Fatalf("error %T is not *bytecode.Error", err)
			}
			if e.Kind != tt.kind {
				t.Errorf("kind = %v, want %v (%v)", e.Kind, tt.kind, e)
			}
			if e.Position == nil || *e.Position != tt.pos {
				t.Errorf("position = %v, want %d (%v)", e.Position, tt.pos, e)
			}
		})
	}
}

func TestRewrite_DoesNotAliasInput(t *testing.T) {
	stream := []bytecode.Instruction{
		insTest(bytecode.OpIf, bytecode.TestNonZero, condX),
		ins(bytecode.OpMov, bytecode.Temp(0), lit(1)),
		ins(bytecode.OpEndIf),
	}
	got, err := Rewrite(stream)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	got[1].Operands[0].Indices[0].Value = 7
	got[0].Operands[0].Indices[0].Value = 7
	if stream[1].Operands[0].Indices[0].Value != 0 || stream[0].Operands[0].Indices[0].Value != 0 {
		t.Error("rewritten stream shares operands with the input")
	}
}
