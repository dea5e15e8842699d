// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package flow

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/shadervm/bytecode"
	"github.com/gogpu/shadervm/internal/logger"
)

// Program is a lowered program: a flat instruction array free of structured
// tokens in which every branch carries its target and reconvergence point.
// It is the only form the virtual machine executes.
type Program struct {
	Stage        gputypes.ShaderStage
	Declarations bytecode.Declarations
	Instructions []bytecode.Instruction
}

// End returns the index one past the last instruction. Branches and
// reconvergence points may refer to it.
func (p *Program) End() int { return len(p.Instructions) }

// IsPixelShader reports whether the program runs in the fragment stage.
func (p *Program) IsPixelShader() bool {
	return p.Stage == gputypes.ShaderStageFragment
}

// Lower flattens the graph back into an instruction array, laying blocks
// out in ID order, and assigns each branch its reconvergence point.
//
// A branch reconverges at its structured merge when that merge
// post-dominates the branch. Otherwise, as when a break or return escapes
// the structured block, it reconverges at its immediate post-dominator, or
// at the end of the program if it has none.
func Lower(g *Graph) []bytecode.Instruction {
	start := make([]int, len(g.Blocks)+1)
	for i, b := range g.Blocks {
		start[i+1] = start[i] + len(b.Instructions)
	}
	remap := func(index int) int {
		id := g.BlockOf(index)
		if id == g.Exit() {
			return start[id]
		}
		return start[id] + index - g.Blocks[id].Start
	}

	out := make([]bytecode.Instruction, 0, start[len(g.Blocks)])
	for _, b := range g.Blocks {
		for i := range b.Instructions {
			in := b.Instructions[i].Clone()
			if in.IsBranch() {
				in.Target = remap(in.Target)
				in.Reconverge = reconvergence(g, b.ID, in.Merge, start)
				in.Merge = remap(in.Merge)
			}
			out = append(out, in)
		}
	}
	return out
}

func reconvergence(g *Graph, branch, merge int, start []int) int {
	if m := g.BlockOf(merge); g.PostDominates(m, branch) {
		return start[m]
	}
	if ipdom := g.ImmediatePostDominator(branch); ipdom >= 0 {
		return start[ipdom]
	}
	return start[g.Exit()]
}

// Compile validates a structured program against its declarations, rewrites
// its control flow, builds the control-flow graph and lowers it.
func Compile(p *bytecode.Program) (*Program, error) {
	if p == nil {
		return nil, bytecode.NewError(bytecode.ErrMalformedProgram, "program is nil")
	}
	errs, err := bytecode.Validate(p)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, errs[0]
	}

	stream, err := Rewrite(p.Instructions)
	if err != nil {
		return nil, err
	}
	g, err := BuildGraph(stream)
	if err != nil {
		return nil, err
	}
	lowered := &Program{
		Stage:        p.Stage,
		Declarations: p.Declarations,
		Instructions: Lower(g),
	}
	if err := lowered.Check(); err != nil {
		return nil, fmt.Errorf("lowering produced an invalid program: %w", err)
	}

	if logger.Enabled() {
		logger.Get().Debug("shadervm: lowered program",
			"stage", p.Stage,
			"tokens", len(p.Instructions),
			"instructions", len(lowered.Instructions),
			"blocks", len(g.Blocks))
	}
	return lowered, nil
}

// Check verifies that the program contains no structured tokens and that
// every branch target and reconvergence point lies within [0, End()].
func (p *Program) Check() error {
	end := p.End()
	v := bytecode.NewValidator(&p.Declarations)
	for i := range p.Instructions {
		in := &p.Instructions[i]
		if in.Opcode.Class() == bytecode.ClassStructured {
			return bytecode.NewErrorAt(bytecode.ErrMalformedProgram, i, "structured token %s in lowered program", in.Opcode)
		}
		if err := v.ValidateInstruction(i, in); err != nil {
			return err
		}
		if !in.IsBranch() {
			continue
		}
		if in.Target < 0 || in.Target > end {
			return bytecode.NewErrorAt(bytecode.ErrMalformedProgram, i, "branch target %d outside [0, %d]", in.Target, end)
		}
		if in.Reconverge < 0 || in.Reconverge > end {
			return bytecode.NewErrorAt(bytecode.ErrMalformedProgram, i, "reconvergence point %d outside [0, %d]", in.Reconverge, end)
		}
	}
	return nil
}
