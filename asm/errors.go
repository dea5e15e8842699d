// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package asm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/shadervm/bytecode"
)

// SourceError is an assembly error with its location in the source.
type SourceError struct {
	Message string
	Line    int
	Column  int
	Source  string // Original source code (for context display)
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	if e.Line == 0 {
		return e.Message
	}
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// Unwrap reports assembly errors as malformed programs, so that
// bytecode.KindOf classifies them like any other pipeline error.
func (e *SourceError) Unwrap() error {
	return &bytecode.Error{Kind: bytecode.ErrMalformedProgram, Message: e.Error()}
}

// FormatWithContext returns the error message with source context.
// Shows the problematic line with a caret pointing to the error location.
func (e *SourceError) FormatWithContext() string {
	if e.Source == "" || e.Line == 0 {
		return e.Error()
	}

	lines := strings.Split(e.Source, "\n")
	if e.Line > len(lines) {
		return e.Error()
	}

	line := lines[e.Line-1]
	col := min(max(e.Column, 1), len(line)+1)

	var sb strings.Builder
	fmt.Fprintf(&sb, "error: %s\n", e.Message)
	fmt.Fprintf(&sb, "  --> line %d:%d\n", e.Line, col)
	sb.WriteString("   |\n")
	fmt.Fprintf(&sb, "%3d| %s\n", e.Line, line)
	fmt.Fprintf(&sb, "   | %s^\n", strings.Repeat(" ", col-1))
	return sb.String()
}

// SourceErrors is the list of errors found in one source.
type SourceErrors []*SourceError

// Error implements the error interface.
func (el SourceErrors) Error() string {
	switch len(el) {
	case 0:
		return "no errors"
	case 1:
		return el[0].Error()
	default:
		return fmt.Sprintf("%s (and %d more errors)", el[0].Error(), len(el)-1)
	}
}

// Unwrap exposes every error to errors.Is and errors.As.
func (el SourceErrors) Unwrap() []error {
	errs := make([]error, len(el))
	for i, e := range el {
		errs[i] = e
	}
	return errs
}

// FormatAll returns all errors formatted with context.
func (el SourceErrors) FormatAll() string {
	var sb strings.Builder
	for i, e := range el {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(e.FormatWithContext())
	}
	return sb.String()
}

// Add adds an error to the list.
func (el *SourceErrors) Add(err *SourceError) {
	*el = append(*el, err)
}

// HasErrors returns true if there are any errors.
func (el SourceErrors) HasErrors() bool {
	return len(el) > 0
}

// FormatError renders err with source context when it carries assembly
// errors, and as a plain message otherwise.
func FormatError(err error) string {
	var list SourceErrors
	if errors.As(err, &list) {
		return list.FormatAll()
	}
	var one *SourceError
	if errors.As(err, &one) {
		return one.FormatWithContext()
	}
	return err.Error()
}
