// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package bytecode

import (
	"fmt"
)

// Validator checks instructions and their operands against a program's
// declarations.
type Validator struct {
	decls  *Declarations
	errors []*Error
}

// Validate checks every instruction of the program. It returns all problems
// found; an empty slice means the program is valid. The error result is
// reserved for a nil program.
func Validate(p *Program) ([]*Error, error) {
	if p == nil {
		return nil, fmt.Errorf("program is nil")
	}
	v := &Validator{decls: &p.Declarations}
	for i := range p.Instructions {
		if err := v.ValidateInstruction(i, &p.Instructions[i]); err != nil {
			v.errors = append(v.errors, err)
		}
	}
	if len(v.errors) > 0 {
		return v.errors, nil
	}
	return nil, nil
}

// ValidateInstruction checks one instruction: opcode membership, operand
// count, test kind, destination writability and, when the validator has
// declarations, register bounds. pos is only used for error reporting.
func (v *Validator) ValidateInstruction(pos int, in *Instruction) *Error {
	if !in.Opcode.Valid() {
		return NewErrorAt(ErrUnsupportedInstruction, pos, "unsupported opcode %s", in.Opcode)
	}

	lo, hi := in.Opcode.OperandRange()
	if n := len(in.Operands); n < lo || n > hi {
		if lo == hi {
			return NewErrorAt(ErrMalformedProgram, pos, "%s expects %d operands, got %d", in.Opcode, lo, n)
		}
		return NewErrorAt(ErrMalformedProgram, pos, "%s expects %d to %d operands, got %d", in.Opcode, lo, hi, n)
	}

	if in.Opcode.HasTest() {
		wantEqual := in.Opcode == OpBranchC && len(in.Operands) == 2
		if (in.Test == TestEqual) != wantEqual || in.Test > TestEqual {
			return NewErrorAt(ErrMalformedProgram, pos, "%s has invalid test %s", in.Opcode, in.Test.Suffix())
		}
	}

	if in.Saturate && (in.Opcode.Class() != ClassArithmetic || in.Opcode == OpNop) {
		return NewErrorAt(ErrMalformedProgram, pos, "%s cannot saturate", in.Opcode)
	}

	if in.Opcode.Class() == ClassArithmetic && len(in.Operands) > 0 {
		switch in.Operands[0].Type {
		case OperandTemp, OperandOutput, OperandIndexableTemp:
		default:
			return NewErrorAt(ErrMalformedProgram, pos, "%s destination %s is not writable", in.Opcode, in.Operands[0])
		}
		if in.Operands[0].Modifier != ModNone {
			return NewErrorAt(ErrMalformedProgram, pos, "%s destination %s has a source modifier", in.Opcode, in.Operands[0])
		}
	}

	if in.Opcode == OpCase && in.Operands[0].Type != OperandImmediate32 {
		return NewErrorAt(ErrMalformedProgram, pos, "case value %s is not a 32-bit literal", in.Operands[0])
	}

	if v.decls != nil {
		for i := range in.Operands {
			if err := v.checkBounds(pos, &in.Operands[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkBounds rejects immediate register indices outside the declared
// register files. Relative indices are checked at execution time.
func (v *Validator) checkBounds(pos int, op *Operand) *Error {
	if !op.Indices[0].IsImmediate() {
		return nil
	}
	first := op.Indices[0].Value
	var limit uint32
	switch op.Type {
	case OperandTemp:
		limit = uint32(v.decls.Temps)
	case OperandInput:
		limit = uint32(v.decls.Inputs)
	case OperandOutput:
		limit = uint32(v.decls.Outputs)
	case OperandIndexableTemp:
		decl, ok := v.decls.IndexableTemp(first)
		if !ok {
			return NewErrorAt(ErrOutOfBounds, pos, "indexable temp x%d is not declared", first)
		}
		if op.Indices[1].IsImmediate() && op.Indices[1].Value >= decl.Size {
			return NewErrorAt(ErrOutOfBounds, pos, "%s exceeds declared size %d", op, decl.Size)
		}
		return nil
	case OperandConstantBuffer:
		decl, ok := v.decls.ConstantBuffer(first)
		if !ok {
			return NewErrorAt(ErrOutOfBounds, pos, "constant buffer cb%d is not declared", first)
		}
		if op.Indices[1].IsImmediate() && op.Indices[1].Value >= decl.Size {
			return NewErrorAt(ErrOutOfBounds, pos, "%s exceeds declared size %d", op, decl.Size)
		}
		return nil
	default:
		return nil
	}
	if first >= limit {
		return NewErrorAt(ErrOutOfBounds, pos, "%s exceeds %d declared registers", op, limit)
	}
	return nil
}

// NewValidator returns a validator that checks register bounds against
// decls. A nil decls skips bounds checks.
func NewValidator(decls *Declarations) *Validator {
	return &Validator{decls: decls}
}
