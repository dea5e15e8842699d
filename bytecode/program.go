// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package bytecode

import (
	"github.com/gogpu/gputypes"
)

// Program is a parsed shader: its stage, register declarations and the
// structured token stream.
type Program struct {
	Stage        gputypes.ShaderStage
	Declarations Declarations
	Instructions []Instruction
}

// IsPixelShader reports whether the program runs in the fragment stage,
// where lanes are grouped into quads.
func (p *Program) IsPixelShader() bool {
	return p.Stage == gputypes.ShaderStageFragment
}

// Declarations describes the register files a program needs.
type Declarations struct {
	Temps           int
	Inputs          int
	Outputs         int
	IndexableTemps  []IndexableTempDecl
	ConstantBuffers []ConstantBufferDecl
	Resources       []ResourceDecl
	Samplers        []SamplerDecl
}

// IndexableTempDecl declares the array x<Index> with Size elements.
type IndexableTempDecl struct {
	Index uint32
	Size  uint32
}

// ConstantBufferDecl declares cb<Index> with Size elements.
type ConstantBufferDecl struct {
	Index uint32
	Size  uint32
}

// ResourceDecl declares the texture register t<Index>.
type ResourceDecl struct {
	Index      uint32
	Dimension  gputypes.TextureViewDimension
	SampleType gputypes.TextureSampleType
}

// SamplerDecl declares the sampler register s<Index>.
type SamplerDecl struct {
	Index uint32
	Type  gputypes.SamplerBindingType
}

// IndexableTemp looks up the declaration of x<index>.
func (d *Declarations) IndexableTemp(index uint32) (IndexableTempDecl, bool) {
	for _, decl := range d.IndexableTemps {
		if decl.Index == index {
			return decl, true
		}
	}
	return IndexableTempDecl{}, false
}

// ConstantBuffer looks up the declaration of cb<index>.
func (d *Declarations) ConstantBuffer(index uint32) (ConstantBufferDecl, bool) {
	for _, decl := range d.ConstantBuffers {
		if decl.Index == index {
			return decl, true
		}
	}
	return ConstantBufferDecl{}, false
}

// Resource looks up the declaration of t<index>.
func (d *Declarations) Resource(index uint32) (ResourceDecl, bool) {
	for _, decl := range d.Resources {
		if decl.Index == index {
			return decl, true
		}
	}
	return ResourceDecl{}, false
}

// Sampler looks up the declaration of s<index>.
func (d *Declarations) Sampler(index uint32) (SamplerDecl, bool) {
	for _, decl := range d.Samplers {
		if decl.Index == index {
			return decl, true
		}
	}
	return SamplerDecl{}, false
}

// NewProgram builds a program whose register declarations are inferred from
// the registers the instructions address. It is meant for hand-built token
// streams; container parsers supply explicit declarations.
func NewProgram(stage gputypes.ShaderStage, instructions []Instruction) *Program {
	p := &Program{Stage: stage, Instructions: instructions}
	for i := range instructions {
		for j := range instructions[i].Operands {
			p.Declarations.declare(&instructions[i].Operands[j])
		}
	}
	return p
}

func (d *Declarations) declare(op *Operand) {
	for i := range op.Indices {
		if r := op.Indices[i].Register; r != nil {
			d.declare(r)
		}
	}
	first := int(op.Indices[0].Value) + 1
	second := op.Indices[1].Value + 1
	switch op.Type {
	case OperandTemp:
		d.Temps = max(d.Temps, first)
	case OperandInput:
		d.Inputs = max(d.Inputs, first)
	case OperandOutput:
		d.Outputs = max(d.Outputs, first)
	case OperandIndexableTemp:
		for k := range d.IndexableTemps {
			if d.IndexableTemps[k].Index == op.Indices[0].Value {
				d.IndexableTemps[k].Size = max(d.IndexableTemps[k].Size, second)
				return
			}
		}
		d.IndexableTemps = append(d.IndexableTemps, IndexableTempDecl{Index: op.Indices[0].Value, Size: second})
	case OperandConstantBuffer:
		for k := range d.ConstantBuffers {
			if d.ConstantBuffers[k].Index == op.Indices[0].Value {
				d.ConstantBuffers[k].Size = max(d.ConstantBuffers[k].Size, second)
				return
			}
		}
		d.ConstantBuffers = append(d.ConstantBuffers, ConstantBufferDecl{Index: op.Indices[0].Value, Size: second})
	}
}
