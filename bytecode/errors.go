// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package bytecode

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes failures of the lowering pipeline and the VM.
type ErrorKind uint8

const (
	// ErrMalformedProgram indicates unmatched or badly nested structured
	// control-flow tokens, or an instruction with the wrong operand count.
	ErrMalformedProgram ErrorKind = iota

	// ErrUnsupportedInstruction indicates an opcode outside the implemented set.
	ErrUnsupportedInstruction

	// ErrInvalidConfiguration indicates an invalid VM construction request,
	// such as a pixel shader lane count that is not a multiple of 4.
	ErrInvalidConfiguration

	// ErrOutOfBounds indicates a lane, register or buffer index outside
	// allocated storage.
	ErrOutOfBounds

	// ErrNotImplemented indicates an operand addressing mode the VM does not
	// support yet (relative or doubly-indirect indexing).
	ErrNotImplemented

	// ErrStepLimit indicates that execution exceeded the configured step budget.
	ErrStepLimit
)

// String returns a human-readable error kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrMalformedProgram:
		return "MalformedProgram"
	case ErrUnsupportedInstruction:
		return "UnsupportedInstruction"
	case ErrInvalidConfiguration:
		return "InvalidConfiguration"
	case ErrOutOfBounds:
		return "OutOfBounds"
	case ErrNotImplemented:
		return "NotImplemented"
	case ErrStepLimit:
		return "StepLimit"
	default:
		return "Unknown"
	}
}

// Error is the error type returned by every stage of the pipeline.
type Error struct {
	// Kind categorizes the error.
	Kind ErrorKind

	// Message provides details about the error.
	Message string

	// Position optionally identifies the instruction index the error refers to.
	Position *int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Position != nil {
		return fmt.Sprintf("shadervm %s at instruction %d: %s", e.Kind, *e.Position, e.Message)
	}
	return fmt.Sprintf("shadervm %s: %s", e.Kind, e.Message)
}

// NewError creates a new error without position information.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewErrorAt creates a new error attached to an instruction index.
func NewErrorAt(kind ErrorKind, pos int, format string, args ...any) *Error {
	return &Error{
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Position: &pos,
	}
}

// IsMalformedProgram returns true if the error is ErrMalformedProgram.
func (e *Error) IsMalformedProgram() bool {
	return e.Kind == ErrMalformedProgram
}

// IsUnsupportedInstruction returns true if the error is ErrUnsupportedInstruction.
func (e *Error) IsUnsupportedInstruction() bool {
	return e.Kind == ErrUnsupportedInstruction
}

// IsOutOfBounds returns true if the error is ErrOutOfBounds.
func (e *Error) IsOutOfBounds() bool {
	return e.Kind == ErrOutOfBounds
}

// KindOf extracts the ErrorKind from err, looking through wrapped errors.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether err (or an error it wraps) is an *Error of kind k.
func IsKind(err error, k ErrorKind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}
