// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package bytecode

import (
	"slices"
	"strconv"
	"strings"
)

// TestBoolean selects how a conditional instruction evaluates its condition.
type TestBoolean uint8

const (
	// TestZero passes when the selected component has all bits clear.
	TestZero TestBoolean = iota
	// TestNonZero passes when any bit of the selected component is set.
	TestNonZero
	// TestEqual passes when the first component of both operands has equal
	// bits. Only switch dispatch branches use it.
	TestEqual
)

// Suffix returns the assembly suffix of the test: "_z", "_nz" or "_eq".
func (t TestBoolean) Suffix() string {
	switch t {
	case TestZero:
		return "_z"
	case TestNonZero:
		return "_nz"
	case TestEqual:
		return "_eq"
	default:
		return "_?"
	}
}

// Invert returns the opposite zero test. TestEqual has no inverse.
func (t TestBoolean) Invert() TestBoolean {
	switch t {
	case TestZero:
		return TestNonZero
	case TestNonZero:
		return TestZero
	default:
		return t
	}
}

// Instruction is one token of a program.
//
// Target, Merge and Reconverge are meaningful only for OpBranch and
// OpBranchC: Target is the jump destination, Merge the exit of the
// structured block the branch came from, and Reconverge the point where
// lanes split by the branch run together again. All three are absolute
// instruction indices; the program length denotes the end of the program.
type Instruction struct {
	Opcode   Opcode
	Operands []Operand
	Saturate bool
	Test     TestBoolean

	Target     int
	Merge      int
	Reconverge int
}

// IsBranch reports whether the instruction is an explicit jump.
func (in *Instruction) IsBranch() bool {
	return in.Opcode == OpBranch || in.Opcode == OpBranchC
}

// Clone returns a deep copy of the instruction.
func (in Instruction) Clone() Instruction {
	if in.Operands != nil {
		ops := slices.Clone(in.Operands)
		for i := range ops {
			ops[i] = ops[i].Clone()
		}
		in.Operands = ops
	}
	return in
}

// Mnemonic returns the opcode name with its test and saturate suffixes,
// e.g. "mad_sat" or "breakc_nz".
func (in *Instruction) Mnemonic() string {
	name := in.Opcode.String()
	if in.Opcode.HasTest() && !(in.Opcode == OpDiscard && len(in.Operands) == 0) {
		name += in.Test.Suffix()
	}
	if in.Saturate {
		name += "_sat"
	}
	return name
}

// String renders the instruction in assembly syntax. Branch targets are
// printed as absolute indices.
func (in Instruction) String() string {
	var sb strings.Builder
	sb.WriteString(in.Mnemonic())
	for i, op := range in.Operands {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(op.String())
	}
	if in.IsBranch() {
		if len(in.Operands) > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(" @")
		sb.WriteString(strconv.Itoa(in.Target))
	}
	return sb.String()
}
