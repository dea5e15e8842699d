// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package bytecode

import "strconv"

// Opcode identifies an instruction. The set is closed: every opcode has an
// entry in opcodeTable and anything else is rejected as unsupported.
type Opcode uint16

// Arithmetic and data movement.
const (
	OpNop Opcode = iota
	OpMov
	OpMovc
	OpAdd
	OpMul
	OpMad
	OpMin
	OpMax
	OpDp4
	OpLt
	OpGe
	OpEq
	OpNe

	// Structured control flow tokens, as produced by a container parser.
	OpIf
	OpElse
	OpEndIf
	OpLoop
	OpEndLoop
	OpBreak
	OpBreakC
	OpContinue
	OpContinueC
	OpSwitch
	OpCase
	OpDefault
	OpEndSwitch

	// Lane retirement. These survive lowering unchanged.
	OpRet
	OpRetC
	OpDiscard

	// Explicit branches. Only the branch rewriter produces these.
	OpBranch
	OpBranchC

	opcodeCount
)

// OpClass groups opcodes by how the pipeline treats them.
type OpClass uint8

const (
	// ClassArithmetic instructions write their first operand from the others.
	ClassArithmetic OpClass = iota
	// ClassStructured tokens are consumed by the branch rewriter.
	ClassStructured
	// ClassRetire instructions retire or discard lanes without moving the PC.
	ClassRetire
	// ClassBranch instructions transfer control within a lowered program.
	ClassBranch
)

type opcodeInfo struct {
	name        string
	class       OpClass
	minOperands int
	maxOperands int
}

var opcodeTable = [opcodeCount]opcodeInfo{
	OpNop:  {"nop", ClassArithmetic, 0, 0},
	OpMov:  {"mov", ClassArithmetic, 2, 2},
	OpMovc: {"movc", ClassArithmetic, 4, 4},
	OpAdd:  {"add", ClassArithmetic, 3, 3},
	OpMul:  {"mul", ClassArithmetic, 3, 3},
	OpMad:  {"mad", ClassArithmetic, 4, 4},
	OpMin:  {"min", ClassArithmetic, 3, 3},
	OpMax:  {"max", ClassArithmetic, 3, 3},
	OpDp4:  {"dp4", ClassArithmetic, 3, 3},
	OpLt:   {"lt", ClassArithmetic, 3, 3},
	OpGe:   {"ge", ClassArithmetic, 3, 3},
	OpEq:   {"eq", ClassArithmetic, 3, 3},
	OpNe:   {"ne", ClassArithmetic, 3, 3},

	OpIf:        {"if", ClassStructured, 1, 1},
	OpElse:      {"else", ClassStructured, 0, 0},
	OpEndIf:     {"endif", ClassStructured, 0, 0},
	OpLoop:      {"loop", ClassStructured, 0, 0},
	OpEndLoop:   {"endloop", ClassStructured, 0, 0},
	OpBreak:     {"break", ClassStructured, 0, 0},
	OpBreakC:    {"breakc", ClassStructured, 1, 1},
	OpContinue:  {"continue", ClassStructured, 0, 0},
	OpContinueC: {"continuec", ClassStructured, 1, 1},
	OpSwitch:    {"switch", ClassStructured, 1, 1},
	OpCase:      {"case", ClassStructured, 1, 1},
	OpDefault:   {"default", ClassStructured, 0, 0},
	OpEndSwitch: {"endswitch", ClassStructured, 0, 0},

	OpRet:     {"ret", ClassRetire, 0, 0},
	OpRetC:    {"retc", ClassRetire, 1, 1},
	OpDiscard: {"discard", ClassRetire, 0, 1},

	OpBranch:  {"br", ClassBranch, 0, 0},
	OpBranchC: {"brc", ClassBranch, 1, 2},
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, opcodeCount)
	for op := Opcode(0); op < opcodeCount; op++ {
		m[opcodeTable[op].name] = op
	}
	return m
}()

// Valid reports whether op belongs to the closed opcode set.
func (op Opcode) Valid() bool {
	return op < opcodeCount
}

// String returns the assembly mnemonic of the opcode.
func (op Opcode) String() string {
	if !op.Valid() {
		return "unknown(" + strconv.Itoa(int(op)) + ")"
	}
	return opcodeTable[op].name
}

// Class returns the opcode class. Invalid opcodes report ClassArithmetic;
// callers must check Valid first.
func (op Opcode) Class() OpClass {
	if !op.Valid() {
		return ClassArithmetic
	}
	return opcodeTable[op].class
}

// OperandRange returns the minimum and maximum operand count.
func (op Opcode) OperandRange() (lo, hi int) {
	if !op.Valid() {
		return 0, 0
	}
	info := opcodeTable[op]
	return info.minOperands, info.maxOperands
}

// HasTest reports whether the opcode evaluates a condition test.
func (op Opcode) HasTest() bool {
	switch op {
	case OpIf, OpBreakC, OpContinueC, OpRetC, OpDiscard, OpBranchC:
		return true
	default:
		return false
	}
}

// LookupOpcode finds an opcode by its mnemonic.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodeByName[name]
	return op, ok
}
