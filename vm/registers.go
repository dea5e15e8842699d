// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package vm

import (
	"github.com/gogpu/shadervm/bytecode"
)

// RegisterFile holds the state shared by every lane of a warp: input
// registers, constant buffers and resource bindings. Instructions only read
// it; the host writes it between executions.
type RegisterFile struct {
	decls *bytecode.Declarations

	// inputs is indexed [lane][register]. Pixel shaders address lanes as
	// quad*4 + laneInQuad.
	inputs          [][]bytecode.Number4
	constantBuffers map[uint32][]bytecode.Number4
	resources       map[uint32]Resource
	samplers        map[uint32]Sampler
}

func newRegisterFile(lanes int, decls *bytecode.Declarations) *RegisterFile {
	f := &RegisterFile{
		decls:           decls,
		inputs:          make([][]bytecode.Number4, lanes),
		constantBuffers: make(map[uint32][]bytecode.Number4, len(decls.ConstantBuffers)),
		resources:       make(map[uint32]Resource),
		samplers:        make(map[uint32]Sampler),
	}
	for i := range f.inputs {
		f.inputs[i] = make([]bytecode.Number4, decls.Inputs)
	}
	for _, cb := range decls.ConstantBuffers {
		f.constantBuffers[cb.Index] = make([]bytecode.Number4, cb.Size)
	}
	return f
}

// Input returns input register v<reg> of a lane.
func (f *RegisterFile) Input(lane int, reg uint32) (bytecode.Number4, error) {
	p, err := f.input(lane, reg)
	if err != nil {
		return bytecode.Number4{}, err
	}
	return *p, nil
}

// SetInput writes input register v<reg> of a lane.
func (f *RegisterFile) SetInput(lane int, reg uint32, v bytecode.Number4) error {
	p, err := f.input(lane, reg)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (f *RegisterFile) input(lane int, reg uint32) (*bytecode.Number4, error) {
	if lane < 0 || lane >= len(f.inputs) {
		return nil, bytecode.NewError(bytecode.ErrOutOfBounds, "lane %d outside warp of %d lanes", lane, len(f.inputs))
	}
	regs := f.inputs[lane]
	if int64(reg) >= int64(len(regs)) {
		return nil, outOfRange(bytecode.OperandInput, reg, len(regs))
	}
	return &regs[reg], nil
}

// ConstantBuffer returns element elem of cb<buffer>.
func (f *RegisterFile) ConstantBuffer(buffer, elem uint32) (bytecode.Number4, error) {
	p, err := f.constant(buffer, elem)
	if err != nil {
		return bytecode.Number4{}, err
	}
	return *p, nil
}

// SetConstantBuffer copies values into cb<buffer>, starting at element 0.
// Elements past len(values) keep their contents.
func (f *RegisterFile) SetConstantBuffer(buffer uint32, values []bytecode.Number4) error {
	cb, ok := f.constantBuffers[buffer]
	if !ok {
		return bytecode.NewError(bytecode.ErrOutOfBounds, "constant buffer cb%d is not declared", buffer)
	}
	if len(values) > len(cb) {
		return bytecode.NewError(bytecode.ErrOutOfBounds, "%d values exceed cb%d of %d elements", len(values), buffer, len(cb))
	}
	copy(cb, values)
	return nil
}

func (f *RegisterFile) constant(buffer, elem uint32) (*bytecode.Number4, error) {
	cb, ok := f.constantBuffers[buffer]
	if !ok {
		return nil, bytecode.NewError(bytecode.ErrOutOfBounds, "constant buffer cb%d is not declared", buffer)
	}
	if int64(elem) >= int64(len(cb)) {
		return nil, bytecode.NewError(bytecode.ErrOutOfBounds, "cb%d[%d] exceeds %d declared elements", buffer, elem, len(cb))
	}
	return &cb[elem], nil
}

// ExecutionContext is the private state of one lane.
type ExecutionContext struct {
	Index          int
	Temps          []bytecode.Number4
	Outputs        []bytecode.Number4
	IndexableTemps map[uint32][]bytecode.Number4

	// PC is the next instruction the lane will execute.
	PC        int
	Retired   bool
	Discarded bool

	shared *RegisterFile
}

func newContext(index int, decls *bytecode.Declarations, shared *RegisterFile) *ExecutionContext {
	c := &ExecutionContext{
		Index:          index,
		Temps:          make([]bytecode.Number4, decls.Temps),
		Outputs:        make([]bytecode.Number4, decls.Outputs),
		IndexableTemps: make(map[uint32][]bytecode.Number4, len(decls.IndexableTemps)),
		shared:         shared,
	}
	for _, x := range decls.IndexableTemps {
		c.IndexableTemps[x.Index] = make([]bytecode.Number4, x.Size)
	}
	return c
}

func (c *ExecutionContext) reset() {
	c.PC = 0
	c.Retired = false
	c.Discarded = false
}

// Read evaluates a source operand: immediates are materialized, registers
// are fetched, then the swizzle and the modifier are applied.
func (c *ExecutionContext) Read(op *bytecode.Operand) (bytecode.Number4, error) {
	if op.Type.IsImmediate() {
		return op.Immediate(), nil
	}
	p, err := c.slot(op)
	if err != nil {
		return bytecode.Number4{}, err
	}
	v := *p
	if op.Selection == bytecode.SelectSwizzle {
		v = v.Swizzle(op.Swizzle)
	}
	return bytecode.ApplyModifier(v, op.Modifier), nil
}

// Write stores v into a destination operand through its write mask.
// Components outside the mask keep their previous value.
func (c *ExecutionContext) Write(op *bytecode.Operand, v bytecode.Number4) error {
	if !writable(op.Type) {
		return bytecode.NewError(bytecode.ErrMalformedProgram, "%s is not a writable register", op)
	}
	p, err := c.slot(op)
	if err != nil {
		return err
	}
	*p = p.WriteMasked(v, op.WriteMask())
	return nil
}

func writable(t bytecode.OperandType) bool {
	return t == bytecode.OperandTemp || t == bytecode.OperandOutput || t == bytecode.OperandIndexableTemp
}

// slot returns the storage addressed by a register operand.
func (c *ExecutionContext) slot(op *bytecode.Operand) (*bytecode.Number4, error) {
	if err := checkAddressing(op); err != nil {
		return nil, err
	}
	first := op.Indices[0].Value
	switch op.Type {
	case bytecode.OperandTemp:
		if int64(first) >= int64(len(c.Temps)) {
			return nil, outOfRange(op.Type, first, len(c.Temps))
		}
		return &c.Temps[first], nil
	case bytecode.OperandOutput:
		if int64(first) >= int64(len(c.Outputs)) {
			return nil, outOfRange(op.Type, first, len(c.Outputs))
		}
		return &c.Outputs[first], nil
	case bytecode.OperandInput:
		return c.shared.input(c.Index, first)
	case bytecode.OperandIndexableTemp:
		return c.indexable(first, op.Indices[1].Value)
	case bytecode.OperandConstantBuffer:
		return c.shared.constant(first, op.Indices[1].Value)
	default:
		return nil, bytecode.NewError(bytecode.ErrUnsupportedInstruction, "operand type %s cannot be addressed", op.Type)
	}
}

func (c *ExecutionContext) indexable(array, elem uint32) (*bytecode.Number4, error) {
	x, ok := c.IndexableTemps[array]
	if !ok {
		return nil, bytecode.NewError(bytecode.ErrOutOfBounds, "indexable temp x%d is not declared", array)
	}
	if int64(elem) >= int64(len(x)) {
		return nil, bytecode.NewError(bytecode.ErrOutOfBounds, "x%d[%d] exceeds %d declared elements", array, elem, len(x))
	}
	return &x[elem], nil
}

// checkAddressing rejects relative register indexing, which the machine
// does not implement.
func checkAddressing(op *bytecode.Operand) error {
	for i := range op.Indices {
		if !op.Indices[i].IsImmediate() {
			return bytecode.NewError(bytecode.ErrNotImplemented,
				"relative indexing of %s (%s) is not implemented", op, representationName(op.Indices[i].Representation))
		}
	}
	return nil
}

func representationName(r bytecode.IndexRepresentation) string {
	switch r {
	case bytecode.IndexRelative:
		return "relative"
	case bytecode.IndexImmediatePlusRelative:
		return "immediate plus relative"
	default:
		return "immediate"
	}
}

func outOfRange(t bytecode.OperandType, index uint32, limit int) error {
	return bytecode.NewError(bytecode.ErrOutOfBounds, "%s%d exceeds %d allocated registers", t, index, limit)
}
