// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Command shadervm assembles a shader program, lowers it and runs it on a
// software warp.
//
// Usage:
//
//	shadervm [options] <input.asm>
//
// Examples:
//
//	shadervm shader.asm                         # Run on 4 lanes, print outputs
//	shadervm -lowered shader.asm                # Print the lowered program
//	shadervm -in v0=1,0,0,0 -in 2:v0=0,0,0,0 shader.asm
//	shadervm -trace -policy taken-first shader.asm
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/gogpu/shadervm"
	"github.com/gogpu/shadervm/asm"
	"github.com/gogpu/shadervm/bytecode"
	"github.com/gogpu/shadervm/vm"
)

var (
	lanes    = flag.Int("lanes", 4, "number of lanes in the warp")
	stage    = flag.String("stage", "", "override the shader stage (vs, ps, cs)")
	lowered  = flag.Bool("lowered", false, "print the lowered program and exit")
	trace    = flag.Bool("trace", false, "print every execution step")
	backend  = flag.String("backend", "interpreter", "execution backend (interpreter, compiled)")
	policy   = flag.String("policy", "fallthrough-first", "divergence order (fallthrough-first, taken-first)")
	maxSteps = flag.Int("max-steps", 100000, "stop after this many steps (0: no limit)")
	check    = flag.Bool("check", false, "verify the divergence invariant after every step")
	validate = flag.Bool("validate", true, "report every validation error")
	verbose  = flag.Bool("v", false, "log pipeline and warp events to stderr")
	version  = flag.Bool("version", false, "print version")
	inputs   inputFlags
)

const shadervmVersion = "0.1.0-dev"

func init() {
	flag.Var(&inputs, "in", "set an input register: [lane:]vN=x,y,z,w (repeatable)")
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *version {
		fmt.Printf("shadervm version %s\n", shadervmVersion)
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: no input file specified")
		usage()
		os.Exit(1)
	}
	if err := run(args[0]); err != nil {
		fmt.Fprintln(os.Stderr, asm.FormatError(err))
		os.Exit(1)
	}
}

func run(inputPath string) error {
	if *verbose {
		shadervm.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	source, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	opts, err := options()
	if err != nil {
		return err
	}

	structured, err := asm.Parse(string(source))
	if err != nil {
		return err
	}
	if *stage != "" {
		s, err := asm.ParseStage(*stage)
		if err != nil {
			return err
		}
		structured.Stage = s
	}
	program, err := shadervm.CompileWithOptions(structured, opts)
	if err != nil {
		return err
	}

	if *lowered {
		fmt.Print(asm.WriteLowered(program))
		return nil
	}

	m, err := shadervm.New(program, *lanes, opts)
	if err != nil {
		return err
	}
	if err := inputs.apply(m); err != nil {
		return err
	}

	for r, err := range m.Execute() {
		if err != nil {
			return err
		}
		if *trace {
			fmt.Println(traceLine(m, r))
		}
	}
	dumpOutputs(m)
	return nil
}

func options() (shadervm.Options, error) {
	opts := shadervm.DefaultOptions()
	opts.Validate = *validate
	opts.VM.MaxSteps = *maxSteps
	opts.VM.CheckInvariant = *check

	b, err := vm.ParseBackend(*backend)
	if err != nil {
		return opts, err
	}
	p, err := vm.ParsePolicy(*policy)
	if err != nil {
		return opts, err
	}
	opts.VM.Backend, opts.VM.Policy = b, p
	return opts, nil
}

func traceLine(m *vm.VM, r vm.Response) string {
	if r.Kind == vm.ResponseFinished {
		return "finished"
	}
	in := m.Program().Instructions[r.PC]
	return fmt.Sprintf("%4d %-7s %-40s %v", r.PC, r.Kind, in, r.Lanes)
}

// dumpOutputs prints every declared output register of every lane.
func dumpOutputs(m *vm.VM) {
	outputs := m.Program().Declarations.Outputs
	for _, c := range m.Contexts() {
		state := ""
		switch {
		case c.Discarded:
			state = " (discarded)"
		case c.Retired:
			state = " (returned)"
		}
		fmt.Printf("lane %d%s\n", c.Index, state)
		for reg := range outputs {
			v, err := m.Output(c.Index, uint32(reg))
			if err != nil {
				continue
			}
			fmt.Printf("  o%d = %s\n", reg, formatNumber4(v))
		}
	}
}

func formatNumber4(v bytecode.Number4) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = bytecode.FormatNumber(n)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// inputFlag is one -in assignment. Lane -1 applies to every lane.
type inputFlag struct {
	lane  int
	reg   uint32
	value bytecode.Number4
}

type inputFlags []inputFlag

func (f *inputFlags) String() string {
	if f == nil {
		return ""
	}
	parts := make([]string, len(*f))
	for i, in := range *f {
		parts[i] = fmt.Sprintf("%d:v%d=%v", in.lane, in.reg, in.value)
	}
	return strings.Join(parts, " ")
}

func (f *inputFlags) Set(s string) error {
	in := inputFlag{lane: -1}

	target, values, ok := strings.Cut(s, "=")
	if !ok {
		return errors.New("expected [lane:]vN=x,y,z,w")
	}
	if lane, reg, ok := strings.Cut(target, ":"); ok {
		n, err := strconv.Atoi(lane)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid lane %q", lane)
		}
		in.lane, target = n, reg
	}
	reg, ok := strings.CutPrefix(target, "v")
	if !ok {
		return fmt.Errorf("expected an input register, got %q", target)
	}
	n, err := strconv.ParseUint(reg, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid register index %q", reg)
	}
	in.reg = uint32(n)

	fields := strings.Split(values, ",")
	if len(fields) != 1 && len(fields) != 4 {
		return fmt.Errorf("expected 1 or 4 components, got %d", len(fields))
	}
	for i := range in.value {
		field := strings.TrimSpace(fields[min(i, len(fields)-1)])
		x, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return fmt.Errorf("invalid component %q", field)
		}
		in.value[i] = bytecode.Float(float32(x))
	}

	*f = append(*f, in)
	return nil
}

func (f inputFlags) apply(m *vm.VM) error {
	for _, in := range f {
		if in.lane >= 0 {
			if err := m.SetLaneInput(in.lane, in.reg, in.value); err != nil {
				return err
			}
			continue
		}
		for lane := range m.Contexts() {
			if err := m.SetLaneInput(lane, in.reg, in.value); err != nil {
				return err
			}
		}
	}
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: shadervm [options] <input.asm>\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  shadervm shader.asm                  Run and print outputs\n")
	fmt.Fprintf(os.Stderr, "  shadervm -lowered shader.asm         Print the lowered program\n")
	fmt.Fprintf(os.Stderr, "  shadervm -in 1:v0=0,1,0,0 shader.asm Set v0 of lane 1\n")
}
