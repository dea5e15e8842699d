// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package vm

import (
	"errors"

	"github.com/gogpu/shadervm/bytecode"
	"github.com/gogpu/shadervm/flow"
)

// executor runs the per-lane part of an instruction. The warp decides which
// lanes run and where they go next.
type executor interface {
	// execute runs the arithmetic instruction at pc for one lane.
	execute(pc int, lane *ExecutionContext) error
	// test evaluates the condition of the branch or retirement at pc for
	// one lane. Instructions without a condition always pass.
	test(pc int, lane *ExecutionContext) (bool, error)
}

// interpreter decodes the instruction on every call.
type interpreter struct {
	program *flow.Program
}

func (it *interpreter) execute(pc int, lane *ExecutionContext) error {
	in := &it.program.Instructions[pc]
	if in.Opcode == bytecode.OpNop {
		return nil
	}
	eval, ok := evaluator(in.Opcode)
	if !ok {
		return bytecode.NewErrorAt(bytecode.ErrUnsupportedInstruction, pc, "no semantics for opcode %s", in.Opcode)
	}

	var buf [3]bytecode.Number4
	src := buf[:0]
	for i := 1; i < len(in.Operands); i++ {
		v, err := lane.Read(&in.Operands[i])
		if err != nil {
			return at(err, pc)
		}
		src = append(src, v)
	}

	result := eval(src)
	if in.Saturate {
		result = result.Saturate()
	}
	return at(lane.Write(&in.Operands[0], result), pc)
}

func (it *interpreter) test(pc int, lane *ExecutionContext) (bool, error) {
	in := &it.program.Instructions[pc]
	if len(in.Operands) == 0 {
		return true, nil
	}
	var buf [2]bytecode.Number4
	src := buf[:0]
	for i := range in.Operands {
		v, err := lane.Read(&in.Operands[i])
		if err != nil {
			return false, at(err, pc)
		}
		src = append(src, v)
	}
	return passes(in.Test, src), nil
}

// at attaches an instruction position to a machine error that lacks one.
func at(err error, pc int) error {
	if err == nil {
		return nil
	}
	var e *bytecode.Error
	if errors.As(err, &e) && e.Position == nil {
		pos := pc
		e.Position = &pos
	}
	return err
}
