// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package flow

import (
	"github.com/gogpu/shadervm/bytecode"
)

// pending marks a branch target that is patched once the block closes.
const pending = -1

type blockKind uint8

const (
	blockIf blockKind = iota
	blockElse
	blockLoop
	blockSwitch
)

func (k blockKind) String() string {
	switch k {
	case blockIf:
		return "if"
	case blockElse:
		return "else"
	case blockLoop:
		return "loop"
	case blockSwitch:
		return "switch"
	default:
		return "block"
	}
}

// switchArm is one case label of an open switch.
type switchArm struct {
	value bytecode.Operand
	entry int
}

// openBlock tracks a structured block whose closing token has not been seen.
type openBlock struct {
	kind   blockKind
	opener int // token position, for error reporting

	// If and Else: jumps that must land on the block exit.
	jumps []int
	// If: the conditional jump that skips the then arm.
	skip int

	// Loop: first instruction of the body.
	start int
	// Loop and Switch: break jumps waiting for the exit.
	breaks []int

	// Switch: selector, entry jump over the arms, case labels in order.
	selector   bytecode.Operand
	entry      int
	arms       []switchArm
	defaultArm int
}

// rewriter turns structured tokens into explicit branches. It keeps a stack
// of open blocks the way a code generator keeps a stack of loop labels.
type rewriter struct {
	out       []bytecode.Instruction
	blocks    []openBlock
	validator *bytecode.Validator
}

// Rewrite replaces the structured control-flow tokens of stream with
// OpBranch and OpBranchC. Arithmetic and retirement instructions are copied
// unchanged. Every emitted branch has its Target and Merge set to absolute
// indices in the returned stream; Reconverge is left for the lowering pass.
//
// Switch blocks become a compare chain: the entry jumps to a dispatch
// sequence placed after the last arm, which tests the selector against each
// case literal in order and falls back to the default arm, or the exit when
// there is none.
func Rewrite(stream []bytecode.Instruction) ([]bytecode.Instruction, error) {
	r := &rewriter{
		out:       make([]bytecode.Instruction, 0, len(stream)+len(stream)/4),
		validator: bytecode.NewValidator(nil),
	}
	for pos := range stream {
		if err := r.token(pos, &stream[pos]); err != nil {
			return nil, err
		}
	}
	if n := len(r.blocks); n > 0 {
		b := r.blocks[n-1]
		return nil, bytecode.NewErrorAt(bytecode.ErrMalformedProgram, b.opener, "%s is never closed", b.kind)
	}
	return r.out, nil
}

func (r *rewriter) emit(in bytecode.Instruction) int {
	r.out = append(r.out, in)
	return len(r.out) - 1
}

// jump emits an unconditional branch with the given target.
func (r *rewriter) jump(target int) int {
	return r.emit(bytecode.Instruction{Opcode: bytecode.OpBranch, Target: target, Merge: target})
}

// jumpIf emits a conditional branch taken when cond passes test.
func (r *rewriter) jumpIf(test bytecode.TestBoolean, cond bytecode.Operand, target int) int {
	return r.emit(bytecode.Instruction{
		Opcode:   bytecode.OpBranchC,
		Operands: []bytecode.Operand{cond.Clone()},
		Test:     test,
		Target:   target,
		Merge:    target,
	})
}

// patch points the branches at target and records merge as their
// structured exit.
func (r *rewriter) patch(branches []int, target, merge int) {
	for _, i := range branches {
		r.out[i].Target = target
		r.out[i].Merge = merge
	}
}

func (r *rewriter) top() *openBlock {
	if len(r.blocks) == 0 {
		return nil
	}
	return &r.blocks[len(r.blocks)-1]
}

func (r *rewriter) pop() openBlock {
	b := r.blocks[len(r.blocks)-1]
	r.blocks = r.blocks[:len(r.blocks)-1]
	return b
}

// breakable returns the innermost loop or switch.
func (r *rewriter) breakable() *openBlock {
	for i := len(r.blocks) - 1; i >= 0; i-- {
		if k := r.blocks[i].kind; k == blockLoop || k == blockSwitch {
			return &r.blocks[i]
		}
	}
	return nil
}

// loop returns the innermost loop.
func (r *rewriter) loop() *openBlock {
	for i := len(r.blocks) - 1; i >= 0; i-- {
		if r.blocks[i].kind == blockLoop {
			return &r.blocks[i]
		}
	}
	return nil
}

func (r *rewriter) token(pos int, tok *bytecode.Instruction) error {
	if err := r.validator.ValidateInstruction(pos, tok); err != nil {
		return err
	}

	switch tok.Opcode.Class() {
	case bytecode.ClassArithmetic, bytecode.ClassRetire:
		r.emit(tok.Clone())
		return nil
	case bytecode.ClassBranch:
		return bytecode.NewErrorAt(bytecode.ErrUnsupportedInstruction, pos,
			"%s is not a structured control-flow token", tok.Opcode)
	}

	switch tok.Opcode {
	case bytecode.OpIf:
		skip := r.jumpIf(tok.Test.Invert(), tok.Operands[0], pending)
		r.blocks = append(r.blocks, openBlock{kind: blockIf, opener: pos, skip: skip})

	case bytecode.OpElse:
		b := r.top()
		if b == nil || b.kind != blockIf {
			return bytecode.NewErrorAt(bytecode.ErrMalformedProgram, pos, "else without matching if")
		}
		over := r.jump(pending)
		r.out[b.skip].Target = len(r.out)
		b.jumps = append(b.jumps, b.skip, over)
		b.kind = blockElse

	case bytecode.OpEndIf:
		b := r.top()
		if b == nil || (b.kind != blockIf && b.kind != blockElse) {
			return bytecode.NewErrorAt(bytecode.ErrMalformedProgram, pos, "endif without matching if")
		}
		r.pop()
		exit := len(r.out)
		if b.kind == blockIf {
			r.patch([]int{b.skip}, exit, exit)
			break
		}
		// The skip jump already targets the else arm; only its merge moves.
		r.out[b.jumps[0]].Merge = exit
		r.patch(b.jumps[1:], exit, exit)

	case bytecode.OpLoop:
		r.blocks = append(r.blocks, openBlock{kind: blockLoop, opener: pos, start: len(r.out)})

	case bytecode.OpEndLoop:
		b := r.top()
		if b == nil || b.kind != blockLoop {
			return bytecode.NewErrorAt(bytecode.ErrMalformedProgram, pos, "endloop without matching loop")
		}
		loop := r.pop()
		r.jump(loop.start)
		exit := len(r.out)
		r.patch(loop.breaks, exit, exit)

	case bytecode.OpBreak, bytecode.OpBreakC:
		b := r.breakable()
		if b == nil {
			return bytecode.NewErrorAt(bytecode.ErrMalformedProgram, pos, "%s outside of loop or switch", tok.Opcode)
		}
		if tok.Opcode == bytecode.OpBreak {
			b.breaks = append(b.breaks, r.jump(pending))
		} else {
			b.breaks = append(b.breaks, r.jumpIf(tok.Test, tok.Operands[0], pending))
		}

	case bytecode.OpContinue, bytecode.OpContinueC:
		b := r.loop()
		if b == nil {
			return bytecode.NewErrorAt(bytecode.ErrMalformedProgram, pos, "%s outside of loop", tok.Opcode)
		}
		if tok.Opcode == bytecode.OpContinue {
			r.jump(b.start)
		} else {
			r.jumpIf(tok.Test, tok.Operands[0], b.start)
		}

	case bytecode.OpSwitch:
		entry := r.jump(pending)
		r.blocks = append(r.blocks, openBlock{
			kind:       blockSwitch,
			opener:     pos,
			selector:   tok.Operands[0].Clone(),
			entry:      entry,
			defaultArm: pending,
		})

	case bytecode.OpCase, bytecode.OpDefault:
		b := r.top()
		if b == nil || b.kind != blockSwitch {
			return bytecode.NewErrorAt(bytecode.ErrMalformedProgram, pos, "%s outside of switch", tok.Opcode)
		}
		if tok.Opcode == bytecode.OpDefault {
			if b.defaultArm != pending {
				return bytecode.NewErrorAt(bytecode.ErrMalformedProgram, pos, "switch has more than one default")
			}
			b.defaultArm = len(r.out)
			break
		}
		b.arms = append(b.arms, switchArm{value: tok.Operands[0].Clone(), entry: len(r.out)})

	case bytecode.OpEndSwitch:
		b := r.top()
		if b == nil || b.kind != blockSwitch {
			return bytecode.NewErrorAt(bytecode.ErrMalformedProgram, pos, "endswitch without matching switch")
		}
		sw := r.pop()
		r.closeSwitch(&sw)

	default:
		return bytecode.NewErrorAt(bytecode.ErrUnsupportedInstruction, pos, "unsupported opcode %s", tok.Opcode)
	}
	return nil
}

// closeSwitch emits the tail jump out of the last arm and the dispatch
// chain, then resolves the entry jump and every break.
func (r *rewriter) closeSwitch(sw *openBlock) {
	tail := r.jump(pending)
	dispatch := len(r.out)

	chain := make([]int, 0, len(sw.arms)+1)
	for _, arm := range sw.arms {
		in := bytecode.Instruction{
			Opcode:   bytecode.OpBranchC,
			Operands: []bytecode.Operand{sw.selector.Clone(), arm.value.Clone()},
			Test:     bytecode.TestEqual,
			Target:   arm.entry,
		}
		chain = append(chain, r.emit(in))
	}
	fallback := r.jump(sw.defaultArm)
	exit := len(r.out)
	if sw.defaultArm == pending {
		r.out[fallback].Target = exit
	}

	r.out[sw.entry].Target = dispatch
	r.out[sw.entry].Merge = exit
	for _, i := range chain {
		r.out[i].Merge = exit
	}
	r.out[fallback].Merge = exit
	r.patch([]int{tail}, exit, exit)
	r.patch(sw.breaks, exit, exit)
}
