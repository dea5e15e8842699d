// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package bytecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// OperandType identifies the register file an operand addresses.
type OperandType uint8

const (
	OperandTemp OperandType = iota
	OperandInput
	OperandOutput
	OperandIndexableTemp
	OperandConstantBuffer
	OperandImmediate32
	OperandImmediate64
)

// String returns the assembly prefix of the operand type.
func (t OperandType) String() string {
	switch t {
	case OperandTemp:
		return "r"
	case OperandInput:
		return "v"
	case OperandOutput:
		return "o"
	case OperandIndexableTemp:
		return "x"
	case OperandConstantBuffer:
		return "cb"
	case OperandImmediate32:
		return "l"
	case OperandImmediate64:
		return "d"
	default:
		return "?"
	}
}

// Dimensions returns how many indices address a register of this type.
func (t OperandType) Dimensions() int {
	switch t {
	case OperandTemp, OperandInput, OperandOutput:
		return 1
	case OperandIndexableTemp, OperandConstantBuffer:
		return 2
	default:
		return 0
	}
}

// IsImmediate reports whether the operand carries a literal value.
func (t OperandType) IsImmediate() bool {
	return t == OperandImmediate32 || t == OperandImmediate64
}

// Component names one lane of a Number4.
type Component uint8

const (
	ComponentX Component = iota
	ComponentY
	ComponentZ
	ComponentW
)

const componentNames = "xyzw"

// String returns "x", "y", "z" or "w".
func (c Component) String() string {
	if c > ComponentW {
		return "?"
	}
	return componentNames[c : c+1]
}

// ComponentMask selects a subset of components, bit i for component i.
type ComponentMask uint8

const (
	MaskX   ComponentMask = 1 << ComponentX
	MaskY   ComponentMask = 1 << ComponentY
	MaskZ   ComponentMask = 1 << ComponentZ
	MaskW   ComponentMask = 1 << ComponentW
	MaskAll               = MaskX | MaskY | MaskZ | MaskW
)

// Has reports whether c is enabled.
func (m ComponentMask) Has(c Component) bool {
	return m&(1<<c) != 0
}

// String returns the enabled components in order, e.g. "xz".
func (m ComponentMask) String() string {
	var sb strings.Builder
	for c := ComponentX; c <= ComponentW; c++ {
		if m.Has(c) {
			sb.WriteString(c.String())
		}
	}
	return sb.String()
}

// Swizzle maps destination component i to source component s[i].
type Swizzle [4]Component

// IdentitySwizzle passes every component through unchanged.
var IdentitySwizzle = Swizzle{ComponentX, ComponentY, ComponentZ, ComponentW}

// Replicate returns the swizzle that broadcasts c, e.g. ".xxxx".
func Replicate(c Component) Swizzle {
	return Swizzle{c, c, c, c}
}

// IsIdentity reports whether s is the pass-through swizzle.
func (s Swizzle) IsIdentity() bool {
	return s == IdentitySwizzle
}

// String returns the four component letters, e.g. "yxwz".
func (s Swizzle) String() string {
	var b [4]byte
	for i, c := range s {
		b[i] = c.String()[0]
	}
	return string(b[:])
}

// Modifier is applied to a source value after it is read.
type Modifier uint8

const (
	ModNone Modifier = iota
	ModNeg
	ModAbs
	ModAbsNeg
)

// SelectionMode determines how components are selected on a register read.
type SelectionMode uint8

const (
	// SelectFull reads all four components unchanged.
	SelectFull SelectionMode = iota
	// SelectMask names the components a destination writes.
	SelectMask
	// SelectSwizzle remaps components through the operand swizzle.
	SelectSwizzle
)

// IndexRepresentation describes how one register index is encoded.
type IndexRepresentation uint8

const (
	IndexImmediate IndexRepresentation = iota
	IndexRelative
	IndexImmediatePlusRelative
)

// OperandIndex is one dimension of a register address.
type OperandIndex struct {
	Value          uint32
	Representation IndexRepresentation
	// Register is the index register for relative representations.
	Register *Operand
}

// IsImmediate reports whether the index is a plain constant.
func (i OperandIndex) IsImmediate() bool {
	return i.Representation == IndexImmediate
}

func (i OperandIndex) String() string {
	switch i.Representation {
	case IndexRelative:
		return i.Register.String()
	case IndexImmediatePlusRelative:
		return i.Register.String() + " + " + strconv.FormatUint(uint64(i.Value), 10)
	default:
		return strconv.FormatUint(uint64(i.Value), 10)
	}
}

// Operand is one source or destination of an instruction.
type Operand struct {
	Type      OperandType
	Indices   [2]OperandIndex
	Mask      ComponentMask
	Swizzle   Swizzle
	Selection SelectionMode
	Modifier  Modifier

	// Imm32 holds the literal for OperandImmediate32.
	Imm32 Number4
	// Imm64 holds the literal for OperandImmediate64.
	Imm64 [2]float64
}

func register(t OperandType, indices ...uint32) Operand {
	op := Operand{
		Type:      t,
		Mask:      MaskAll,
		Swizzle:   IdentitySwizzle,
		Selection: SelectFull,
	}
	for i, v := range indices {
		op.Indices[i] = OperandIndex{Value: v}
	}
	return op
}

// Temp returns the operand r<index>.
func Temp(index uint32) Operand { return register(OperandTemp, index) }

// Input returns the operand v<index>.
func Input(index uint32) Operand { return register(OperandInput, index) }

// Output returns the operand o<index>.
func Output(index uint32) Operand { return register(OperandOutput, index) }

// IndexableTemp returns the operand x<array>[<element>].
func IndexableTemp(array, element uint32) Operand {
	return register(OperandIndexableTemp, array, element)
}

// ConstantBuffer returns the operand cb<buffer>[<element>].
func ConstantBuffer(buffer, element uint32) Operand {
	return register(OperandConstantBuffer, buffer, element)
}

// Imm32 returns a 32-bit literal operand.
func Imm32(v Number4) Operand {
	op := register(OperandImmediate32)
	op.Imm32 = v
	return op
}

// Imm64 returns a 64-bit literal operand holding two doubles.
func Imm64(a, b float64) Operand {
	op := register(OperandImmediate64)
	op.Imm64 = [2]float64{a, b}
	return op
}

// WithMask returns a copy of op that writes only the components in m.
func (op Operand) WithMask(m ComponentMask) Operand {
	op.Mask = m
	op.Selection = SelectMask
	return op
}

// WithSwizzle returns a copy of op that reads through s.
func (op Operand) WithSwizzle(s Swizzle) Operand {
	op.Swizzle = s
	op.Selection = SelectSwizzle
	return op
}

// WithModifier returns a copy of op with modifier m.
func (op Operand) WithModifier(m Modifier) Operand {
	op.Modifier = m
	return op
}

// WithRelativeIndex returns a copy of op whose dimension dim is indexed by
// reg plus offset.
func (op Operand) WithRelativeIndex(dim int, reg Operand, offset uint32) Operand {
	r := reg
	repr := IndexRelative
	if offset != 0 {
		repr = IndexImmediatePlusRelative
	}
	op.Indices[dim] = OperandIndex{Value: offset, Representation: repr, Register: &r}
	return op
}

// WriteMask returns the components a destination write touches.
// Full selection writes every component.
func (op Operand) WriteMask() ComponentMask {
	if op.Selection == SelectMask {
		return op.Mask
	}
	return MaskAll
}

// Clone returns a deep copy of op, including relative index registers.
func (op Operand) Clone() Operand {
	for i := range op.Indices {
		if r := op.Indices[i].Register; r != nil {
			c := r.Clone()
			op.Indices[i].Register = &c
		}
	}
	return op
}

// Immediate materializes the literal of an immediate operand with its
// modifier applied. Each double of an Imm64 occupies two components,
// low word first.
func (op Operand) Immediate() Number4 {
	switch op.Type {
	case OperandImmediate32:
		return ApplyModifier(op.Imm32, op.Modifier)
	case OperandImmediate64:
		var v Number4
		for i, d := range op.Imm64 {
			bits := math.Float64bits(applyModifier64(d, op.Modifier))
			v[2*i] = Number(uint32(bits))
			v[2*i+1] = Number(uint32(bits >> 32))
		}
		return v
	default:
		return Number4{}
	}
}

const signBit = 0x80000000

// ApplyModifier applies a float source modifier to every component by
// editing the sign bit, which keeps NaN payloads intact.
func ApplyModifier(v Number4, m Modifier) Number4 {
	for i := range v {
		switch m {
		case ModNeg:
			v[i] ^= signBit
		case ModAbs:
			v[i] &^= signBit
		case ModAbsNeg:
			v[i] |= signBit
		}
	}
	return v
}

func applyModifier64(d float64, m Modifier) float64 {
	switch m {
	case ModNeg:
		return -d
	case ModAbs:
		return math.Abs(d)
	case ModAbsNeg:
		return -math.Abs(d)
	default:
		return d
	}
}

// String renders the operand in assembly syntax, e.g. "-|r0.yxwz|".
// Identity swizzles and full masks are omitted.
func (op Operand) String() string {
	var sb strings.Builder
	switch op.Type {
	case OperandImmediate32:
		v := op.Imm32
		fmt.Fprintf(&sb, "l(%s, %s, %s, %s)", FormatNumber(v[0]), FormatNumber(v[1]), FormatNumber(v[2]), FormatNumber(v[3]))
	case OperandImmediate64:
		fmt.Fprintf(&sb, "d(%s, %s)", strconv.FormatFloat(op.Imm64[0], 'g', -1, 64), strconv.FormatFloat(op.Imm64[1], 'g', -1, 64))
	case OperandIndexableTemp, OperandConstantBuffer:
		sb.WriteString(op.Type.String())
		sb.WriteString(op.Indices[0].String())
		sb.WriteString("[")
		sb.WriteString(op.Indices[1].String())
		sb.WriteString("]")
	default:
		sb.WriteString(op.Type.String())
		if op.Indices[0].IsImmediate() {
			sb.WriteString(op.Indices[0].String())
		} else {
			sb.WriteString("[" + op.Indices[0].String() + "]")
		}
	}

	switch op.Selection {
	case SelectMask:
		if op.Mask != MaskAll {
			sb.WriteString("." + op.Mask.String())
		}
	case SelectSwizzle:
		if !op.Swizzle.IsIdentity() {
			sb.WriteString("." + op.Swizzle.String())
		}
	}

	s := sb.String()
	switch op.Modifier {
	case ModNeg:
		return "-" + s
	case ModAbs:
		return "|" + s + "|"
	case ModAbsNeg:
		return "-|" + s + "|"
	default:
		return s
	}
}

// FormatNumber renders a component so that ParseNumber-style readers can
// recover the exact bits: zero, denormal and NaN patterns print as signed
// integers, everything else as a float that always contains a '.' or exponent.
func FormatNumber(n Number) string {
	exp := (uint32(n) >> 23) & 0xFF
	if exp == 0 || (exp == 0xFF && uint32(n)&0x7FFFFF != 0) {
		return strconv.FormatInt(int64(n.Int32()), 10)
	}
	s := strconv.FormatFloat(float64(n.Float32()), 'g', -1, 32)
	if !strings.ContainsAny(s, ".eIn") {
		s += ".0"
	}
	return s
}
