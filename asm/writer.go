// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package asm

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/shadervm/bytecode"
	"github.com/gogpu/shadervm/flow"
)

// Writer renders programs as assembly text.
type Writer struct {
	out    strings.Builder
	indent int
}

// Write renders a structured program in the syntax Parse accepts. Parsing
// the result yields a program with the same stage, declarations and
// instructions.
func Write(p *bytecode.Program) string {
	var w Writer
	w.writeHeader(p.Stage, &p.Declarations)
	for i := range p.Instructions {
		w.writeInstruction(&p.Instructions[i])
	}
	return w.out.String()
}

// WriteLowered renders a lowered program as a numbered listing. Branches
// show their target, structured merge and reconvergence point. The listing
// is meant for reading and cannot be parsed back.
func WriteLowered(p *flow.Program) string {
	var w Writer
	w.writeHeader(p.Stage, &p.Declarations)
	w.writeLine("// %d instructions", len(p.Instructions))
	width := len(fmt.Sprint(p.End()))
	for pc := range p.Instructions {
		in := &p.Instructions[pc]
		if in.IsBranch() {
			w.writeLine("%*d: %s  // merge %d, reconverge %d", width, pc, in, in.Merge, in.Reconverge)
		} else {
			w.writeLine("%*d: %s", width, pc, in)
		}
	}
	w.writeLine("%*d: end", width, p.End())
	return w.out.String()
}

func (w *Writer) writeHeader(stage gputypes.ShaderStage, d *bytecode.Declarations) {
	if name, ok := nameOf(stages, stage); ok {
		w.writeLine("%s", name+shaderModel)
	}
	w.writeDeclarations(d)
}

func (w *Writer) writeDeclarations(d *bytecode.Declarations) {
	if d.Temps > 0 {
		w.writeLine("dcl_temps %d", d.Temps)
	}
	for i := range d.Inputs {
		w.writeLine("dcl_input v%d", i)
	}
	for i := range d.Outputs {
		w.writeLine("dcl_output o%d", i)
	}
	for _, x := range d.IndexableTemps {
		w.writeLine("dcl_indexableTemp x%d[%d]", x.Index, x.Size)
	}
	for _, cb := range d.ConstantBuffers {
		w.writeLine("dcl_constantbuffer cb%d[%d]", cb.Index, cb.Size)
	}
	for _, r := range d.Resources {
		dim, _ := nameOf(resourceDimensions, r.Dimension)
		if dim == "" {
			dim = "texture"
		}
		if st, ok := nameOf(sampleTypes, r.SampleType); ok {
			w.writeLine("dcl_resource_%s t%d, %s", dim, r.Index, st)
		} else {
			w.writeLine("dcl_resource_%s t%d", dim, r.Index)
		}
	}
	for _, s := range d.Samplers {
		if mode, ok := nameOf(samplerModes, s.Type); ok {
			w.writeLine("dcl_sampler s%d, %s", s.Index, mode)
		} else {
			w.writeLine("dcl_sampler s%d", s.Index)
		}
	}
}

// writeInstruction writes one instruction, indenting the bodies of
// structured blocks.
func (w *Writer) writeInstruction(in *bytecode.Instruction) {
	switch in.Opcode {
	case bytecode.OpEndIf, bytecode.OpEndLoop, bytecode.OpEndSwitch:
		w.popIndent()
		w.writeLine("%s", in)
	case bytecode.OpElse:
		w.popIndent()
		w.writeLine("%s", in)
		w.pushIndent()
	case bytecode.OpIf, bytecode.OpLoop, bytecode.OpSwitch:
		w.writeLine("%s", in)
		w.pushIndent()
	default:
		w.writeLine("%s", in)
	}
}

// writeLine writes a line with format args and a newline.
//
//nolint:goprintffuncname
func (w *Writer) writeLine(format string, args ...any) {
	w.writeIndent()
	fmt.Fprintf(&w.out, format, args...)
	w.out.WriteByte('\n')
}

// writeIndent writes the current indentation.
func (w *Writer) writeIndent() {
	for range w.indent {
		w.out.WriteString("  ")
	}
}

func (w *Writer) pushIndent() {
	w.indent++
}

func (w *Writer) popIndent() {
	if w.indent > 0 {
		w.indent--
	}
}
