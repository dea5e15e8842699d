// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package shadervm runs structured shader bytecode on a software SIMT
// machine.
//
// A program goes through three stages:
//   - asm parses assembly text into a bytecode.Program (or a container
//     parser builds one directly)
//   - flow lowers structured control flow into explicit branches with
//     reconvergence points
//   - vm executes the lowered program across a warp of lanes
//
// Example usage:
//
//	program, err := shadervm.Assemble(`
//	cs_5_0
//	mad r0, v0, v1, l(1.0)
//	`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	m, err := shadervm.New(program, 4, shadervm.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = m.SetLaneInput(0, 0, bytecode.Float4(2, 0, 1, -1))
//	_ = m.SetLaneInput(0, 1, bytecode.Float4(3, 5, 1, 1))
//	if err := m.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// For step-by-step execution, range over m.Execute().
package shadervm

import (
	"errors"
	"fmt"

	"github.com/gogpu/shadervm/asm"
	"github.com/gogpu/shadervm/bytecode"
	"github.com/gogpu/shadervm/flow"
	"github.com/gogpu/shadervm/vm"
)

// Options configures compilation and execution.
type Options struct {
	// VM configures the machines created by New.
	VM vm.Options

	// Validate reports every validation error of a program instead of
	// only the first one.
	Validate bool
}

// DefaultOptions returns sensible default options.
func DefaultOptions() Options {
	return Options{
		VM:       vm.DefaultOptions(),
		Validate: true,
	}
}

// Assemble parses assembly source and lowers it using default options.
func Assemble(source string) (*flow.Program, error) {
	return AssembleWithOptions(source, DefaultOptions())
}

// AssembleWithOptions parses assembly source and lowers it.
func AssembleWithOptions(source string, opts Options) (*flow.Program, error) {
	program, err := asm.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return CompileWithOptions(program, opts)
}

// Compile lowers a structured program using default options.
func Compile(program *bytecode.Program) (*flow.Program, error) {
	return CompileWithOptions(program, DefaultOptions())
}

// CompileWithOptions lowers a structured program.
//
// The pipeline is:
//  1. Validate the token stream (every error when opts.Validate is set)
//  2. Rewrite structured tokens into branches
//  3. Build the control-flow graph and post-dominators
//  4. Flatten it and assign reconvergence points
func CompileWithOptions(program *bytecode.Program, opts Options) (*flow.Program, error) {
	if opts.Validate {
		if err := Validate(program); err != nil {
			return nil, err
		}
	}

	lowered, err := flow.Compile(program)
	if err != nil {
		return nil, fmt.Errorf("lowering error: %w", err)
	}
	return lowered, nil
}

// Validate checks a structured program and joins every error it finds.
func Validate(program *bytecode.Program) error {
	validationErrors, err := bytecode.Validate(program)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if len(validationErrors) == 0 {
		return nil
	}
	errs := make([]error, len(validationErrors))
	for i, e := range validationErrors {
		errs[i] = e
	}
	return fmt.Errorf("validation failed: %w", errors.Join(errs...))
}

// New creates a machine running program on lanes lanes.
func New(program *flow.Program, lanes int, opts Options) (*vm.VM, error) {
	return vm.New(program, lanes, opts.VM)
}
