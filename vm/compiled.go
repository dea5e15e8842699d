// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package vm

import (
	"github.com/gogpu/shadervm/bytecode"
	"github.com/gogpu/shadervm/flow"
)

type (
	reader  func(*ExecutionContext) (bytecode.Number4, error)
	writer  func(*ExecutionContext, bytecode.Number4) error
	locator func(*ExecutionContext) (*bytecode.Number4, error)
)

// compiledStep is the precompiled form of one instruction. Arithmetic
// instructions set run; branches and retirements set cond.
type compiledStep struct {
	run  func(*ExecutionContext) error
	cond func(*ExecutionContext) (bool, error)
}

// compiled executes closures built once per program. Opcode dispatch,
// operand decoding and register file selection happen at compile time.
type compiled struct {
	steps []compiledStep
}

func compileProgram(p *flow.Program) (*compiled, error) {
	c := &compiled{steps: make([]compiledStep, len(p.Instructions))}
	for pc := range p.Instructions {
		in := &p.Instructions[pc]
		switch in.Opcode.Class() {
		case bytecode.ClassArithmetic:
			run, err := compileArithmetic(pc, in)
			if err != nil {
				return nil, err
			}
			c.steps[pc].run = run
		case bytecode.ClassBranch, bytecode.ClassRetire:
			c.steps[pc].cond = compileCondition(pc, in)
		default:
			return nil, bytecode.NewErrorAt(bytecode.ErrUnsupportedInstruction, pc, "cannot compile %s", in.Opcode)
		}
	}
	return c, nil
}

func (c *compiled) execute(pc int, lane *ExecutionContext) error {
	return c.steps[pc].run(lane)
}

func (c *compiled) test(pc int, lane *ExecutionContext) (bool, error) {
	return c.steps[pc].cond(lane)
}

func compileArithmetic(pc int, in *bytecode.Instruction) (func(*ExecutionContext) error, error) {
	if in.Opcode == bytecode.OpNop {
		return func(*ExecutionContext) error { return nil }, nil
	}
	eval, ok := evaluator(in.Opcode)
	if !ok {
		return nil, bytecode.NewErrorAt(bytecode.ErrUnsupportedInstruction, pc, "no semantics for opcode %s", in.Opcode)
	}

	readers := make([]reader, 0, len(in.Operands)-1)
	for _, op := range in.Operands[1:] {
		readers = append(readers, compileRead(pc, op))
	}
	dst := compileWrite(pc, in.Operands[0])
	saturate := in.Saturate
	n := len(readers)

	return func(lane *ExecutionContext) error {
		var buf [3]bytecode.Number4
		for i, read := range readers {
			v, err := read(lane)
			if err != nil {
				return err
			}
			buf[i] = v
		}
		result := eval(buf[:n])
		if saturate {
			result = result.Saturate()
		}
		return dst(lane, result)
	}, nil
}

func compileCondition(pc int, in *bytecode.Instruction) func(*ExecutionContext) (bool, error) {
	if len(in.Operands) == 0 {
		return func(*ExecutionContext) (bool, error) { return true, nil }
	}
	readers := make([]reader, 0, len(in.Operands))
	for _, op := range in.Operands {
		readers = append(readers, compileRead(pc, op))
	}
	test := in.Test
	n := len(readers)

	return func(lane *ExecutionContext) (bool, error) {
		var buf [2]bytecode.Number4
		for i, read := range readers {
			v, err := read(lane)
			if err != nil {
				return false, err
			}
			buf[i] = v
		}
		return passes(test, buf[:n]), nil
	}
}

func compileRead(pc int, op bytecode.Operand) reader {
	if op.Type.IsImmediate() {
		v := op.Immediate()
		return func(*ExecutionContext) (bytecode.Number4, error) { return v, nil }
	}
	locate := compileLocate(pc, op)
	swizzle := op.Selection == bytecode.SelectSwizzle && !op.Swizzle.IsIdentity()
	s, mod := op.Swizzle, op.Modifier

	return func(lane *ExecutionContext) (bytecode.Number4, error) {
		p, err := locate(lane)
		if err != nil {
			return bytecode.Number4{}, err
		}
		v := *p
		if swizzle {
			v = v.Swizzle(s)
		}
		if mod != bytecode.ModNone {
			v = bytecode.ApplyModifier(v, mod)
		}
		return v, nil
	}
}

func compileWrite(pc int, op bytecode.Operand) writer {
	if !writable(op.Type) {
		return func(*ExecutionContext, bytecode.Number4) error {
			return bytecode.NewErrorAt(bytecode.ErrMalformedProgram, pc, "%s is not a writable register", op)
		}
	}
	locate := compileLocate(pc, op)
	mask := op.WriteMask()

	return func(lane *ExecutionContext, v bytecode.Number4) error {
		p, err := locate(lane)
		if err != nil {
			return err
		}
		*p = p.WriteMasked(v, mask)
		return nil
	}
}

// compileLocate resolves the register file of op ahead of time. Temps and
// outputs index the lane directly; other files go through the generic
// lookup.
func compileLocate(pc int, op bytecode.Operand) locator {
	if err := checkAddressing(&op); err != nil {
		return func(*ExecutionContext) (*bytecode.Number4, error) {
			return nil, at(err, pc)
		}
	}

	first := op.Indices[0].Value
	switch op.Type {
	case bytecode.OperandTemp:
		return func(lane *ExecutionContext) (*bytecode.Number4, error) {
			if int64(first) >= int64(len(lane.Temps)) {
				return nil, at(outOfRange(op.Type, first, len(lane.Temps)), pc)
			}
			return &lane.Temps[first], nil
		}
	case bytecode.OperandOutput:
		return func(lane *ExecutionContext) (*bytecode.Number4, error) {
			if int64(first) >= int64(len(lane.Outputs)) {
				return nil, at(outOfRange(op.Type, first, len(lane.Outputs)), pc)
			}
			return &lane.Outputs[first], nil
		}
	default:
		return func(lane *ExecutionContext) (*bytecode.Number4, error) {
			p, err := lane.slot(&op)
			return p, at(err, pc)
		}
	}
}
