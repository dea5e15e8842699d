// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package vm

import (
	"fmt"
	"iter"

	"github.com/gogpu/shadervm/bytecode"
	"github.com/gogpu/shadervm/flow"
	"github.com/gogpu/shadervm/internal/logger"
)

// lanesPerQuad is the number of pixel-shader lanes sharing derivative
// addressing.
const lanesPerQuad = 4

// ResponseKind classifies an execution response.
type ResponseKind uint8

const (
	// ResponseStep reports an executed instruction.
	ResponseStep ResponseKind = iota
	// ResponseRetire reports a ret, retc or discard that retired lanes.
	ResponseRetire
	// ResponseFinished is the last response of every complete execution.
	ResponseFinished
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseStep:
		return "step"
	case ResponseRetire:
		return "retire"
	case ResponseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Response describes one unit of progress of an execution.
type Response struct {
	Kind ResponseKind
	// PC is the executed instruction, or End() for ResponseFinished.
	PC     int
	Opcode bytecode.Opcode
	// Lanes holds the lanes that executed the instruction, or the lanes
	// that retired for ResponseRetire.
	Lanes LaneMask
}

func (r Response) String() string {
	if r.Kind == ResponseFinished {
		return "finished"
	}
	return fmt.Sprintf("%s %d %s %v", r.Kind, r.PC, r.Opcode, r.Lanes)
}

// VM executes a lowered program over a warp of lanes.
type VM struct {
	program *flow.Program
	opts    Options
	regs    *RegisterFile
	lanes   []*ExecutionContext
	warp    *Warp
	exec    executor
}

// New creates a VM running program on numContexts lanes. Pixel shaders
// need a positive multiple of four lanes; every program needs at least
// one.
func New(program *flow.Program, numContexts int, opts Options) (*VM, error) {
	if program == nil {
		return nil, bytecode.NewError(bytecode.ErrInvalidConfiguration, "program is nil")
	}
	if numContexts <= 0 {
		return nil, bytecode.NewError(bytecode.ErrInvalidConfiguration, "lane count must be positive, got %d", numContexts)
	}
	if program.IsPixelShader() && numContexts%lanesPerQuad != 0 {
		return nil, bytecode.NewError(bytecode.ErrInvalidConfiguration,
			"pixel shaders need a multiple of %d lanes, got %d", lanesPerQuad, numContexts)
	}
	if err := program.Check(); err != nil {
		return nil, err
	}

	vm := &VM{program: program, opts: opts}
	switch opts.Backend {
	case BackendInterpreter:
		vm.exec = &interpreter{program: program}
	case BackendCompiled:
		c, err := compileProgram(program)
		if err != nil {
			return nil, err
		}
		vm.exec = c
	default:
		return nil, bytecode.NewError(bytecode.ErrInvalidConfiguration, "unknown backend %s", opts.Backend)
	}

	decls := &program.Declarations
	vm.regs = newRegisterFile(numContexts, decls)
	vm.lanes = make([]*ExecutionContext, numContexts)
	for i := range vm.lanes {
		vm.lanes[i] = newContext(i, decls, vm.regs)
	}
	vm.warp = newWarp(vm.lanes, program.End(), opts.Policy)
	return vm, nil
}

// Program returns the program the VM runs.
func (vm *VM) Program() *flow.Program { return vm.program }

// Contexts returns the lanes of the warp.
func (vm *VM) Contexts() []*ExecutionContext { return vm.lanes }

// Warp returns the warp, for inspecting divergence state.
func (vm *VM) Warp() *Warp { return vm.warp }

// Registers returns the register file shared by all lanes.
func (vm *VM) Registers() *RegisterFile { return vm.regs }

func (vm *VM) lane(i int) (*ExecutionContext, error) {
	if i < 0 || i >= len(vm.lanes) {
		return nil, bytecode.NewError(bytecode.ErrOutOfBounds, "lane %d outside warp of %d lanes", i, len(vm.lanes))
	}
	return vm.lanes[i], nil
}

// Register returns register <t><index> as lane sees it. Constant buffers
// and indexable temps have their own accessors.
func (vm *VM) Register(lane int, t bytecode.OperandType, index uint32) (bytecode.Number4, error) {
	c, err := vm.lane(lane)
	if err != nil {
		return bytecode.Number4{}, err
	}
	switch t {
	case bytecode.OperandTemp, bytecode.OperandInput, bytecode.OperandOutput:
		op := bytecode.Operand{Type: t, Indices: [2]bytecode.OperandIndex{{Value: index}}}
		p, err := c.slot(&op)
		if err != nil {
			return bytecode.Number4{}, err
		}
		return *p, nil
	default:
		return bytecode.Number4{}, bytecode.NewError(bytecode.ErrUnsupportedInstruction, "register type %s needs two indices", t)
	}
}

// SetRegister writes register <t><index> of lane. Input registers are
// shared storage addressed by lane.
func (vm *VM) SetRegister(lane int, t bytecode.OperandType, index uint32, v bytecode.Number4) error {
	c, err := vm.lane(lane)
	if err != nil {
		return err
	}
	switch t {
	case bytecode.OperandTemp, bytecode.OperandInput, bytecode.OperandOutput:
		op := bytecode.Operand{Type: t, Indices: [2]bytecode.OperandIndex{{Value: index}}}
		p, err := c.slot(&op)
		if err != nil {
			return err
		}
		*p = v
		return nil
	default:
		return bytecode.NewError(bytecode.ErrUnsupportedInstruction, "register type %s needs two indices", t)
	}
}

// Temp returns r<index> of lane.
func (vm *VM) Temp(lane int, index uint32) (bytecode.Number4, error) {
	return vm.Register(lane, bytecode.OperandTemp, index)
}

// SetTemp writes r<index> of lane.
func (vm *VM) SetTemp(lane int, index uint32, v bytecode.Number4) error {
	return vm.SetRegister(lane, bytecode.OperandTemp, index, v)
}

// Output returns o<index> of lane.
func (vm *VM) Output(lane int, index uint32) (bytecode.Number4, error) {
	return vm.Register(lane, bytecode.OperandOutput, index)
}

// SetOutput writes o<index> of lane.
func (vm *VM) SetOutput(lane int, index uint32, v bytecode.Number4) error {
	return vm.SetRegister(lane, bytecode.OperandOutput, index, v)
}

// IndexableTemp returns x<array>[elem] of lane.
func (vm *VM) IndexableTemp(lane int, array, elem uint32) (bytecode.Number4, error) {
	c, err := vm.lane(lane)
	if err != nil {
		return bytecode.Number4{}, err
	}
	p, err := c.indexable(array, elem)
	if err != nil {
		return bytecode.Number4{}, err
	}
	return *p, nil
}

// SetIndexableTemp writes x<array>[elem] of lane.
func (vm *VM) SetIndexableTemp(lane int, array, elem uint32, v bytecode.Number4) error {
	c, err := vm.lane(lane)
	if err != nil {
		return err
	}
	p, err := c.indexable(array, elem)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// SetInput writes input register v<reg> of one lane of a quad.
func (vm *VM) SetInput(quad, laneInQuad int, reg uint32, v bytecode.Number4) error {
	if laneInQuad < 0 || laneInQuad >= lanesPerQuad {
		return bytecode.NewError(bytecode.ErrOutOfBounds, "lane %d outside a quad of %d", laneInQuad, lanesPerQuad)
	}
	if quad < 0 {
		return bytecode.NewError(bytecode.ErrOutOfBounds, "negative quad %d", quad)
	}
	return vm.regs.SetInput(quad*lanesPerQuad+laneInQuad, reg, v)
}

// SetLaneInput writes input register v<reg> of lane.
func (vm *VM) SetLaneInput(lane int, reg uint32, v bytecode.Number4) error {
	return vm.regs.SetInput(lane, reg, v)
}

// SetConstantBuffer copies values into cb<buffer>.
func (vm *VM) SetConstantBuffer(buffer uint32, values []bytecode.Number4) error {
	return vm.regs.SetConstantBuffer(buffer, values)
}

// BindResource binds a texture to t<reg>.
func (vm *VM) BindResource(reg uint32, r Resource) error {
	return vm.regs.BindResource(reg, r)
}

// BindSampler binds a sampler to s<reg>.
func (vm *VM) BindSampler(reg uint32, s Sampler) error {
	return vm.regs.BindSampler(reg, s)
}

// Execute returns the responses of one run of the program. Every call
// starts a new run from the first instruction with the current register
// contents; lanes retired by an earlier run take part again. The returned
// sequence can be ranged over once. It ends after ResponseFinished or the
// first error.
func (vm *VM) Execute() iter.Seq2[Response, error] {
	used := false
	return func(yield func(Response, error) bool) {
		if used {
			yield(Response{}, bytecode.NewError(bytecode.ErrInvalidConfiguration, "execution sequence already consumed"))
			return
		}
		used = true

		vm.warp.reset()
		steps := 0
		for {
			vm.warp.settle()
			if vm.warp.finished {
				yield(Response{Kind: ResponseFinished, PC: vm.program.End()}, nil)
				if logger.Enabled() {
					logger.Get().Debug("shadervm: finished", "steps", steps, "lanes", len(vm.lanes))
				}
				return
			}
			if vm.opts.MaxSteps > 0 && steps >= vm.opts.MaxSteps {
				yield(Response{}, bytecode.NewErrorAt(bytecode.ErrStepLimit, vm.warp.pc,
					"step limit of %d reached", vm.opts.MaxSteps))
				return
			}
			r, err := vm.step()
			if err != nil {
				yield(Response{}, err)
				return
			}
			steps++
			if vm.opts.CheckInvariant {
				if err := vm.warp.CheckInvariant(); err != nil {
					yield(Response{}, fmt.Errorf("after %v: %w", r, err))
					return
				}
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

// Run executes the program to completion.
func (vm *VM) Run() error {
	for _, err := range vm.Execute() {
		if err != nil {
			return err
		}
	}
	return nil
}

// step executes the instruction at the warp's program counter for the
// active lanes.
func (vm *VM) step() (Response, error) {
	w := vm.warp
	pc := w.pc
	in := &vm.program.Instructions[pc]
	r := Response{Kind: ResponseStep, PC: pc, Opcode: in.Opcode, Lanes: w.active}

	switch in.Opcode.Class() {
	case bytecode.ClassArithmetic:
		for lane := range w.active.Lanes() {
			if err := vm.exec.execute(pc, vm.lanes[lane]); err != nil {
				return Response{}, err
			}
		}
		w.advance()
	case bytecode.ClassBranch:
		if err := w.branch(in, vm.exec); err != nil {
			return Response{}, err
		}
	case bytecode.ClassRetire:
		retired, err := w.retire(in, vm.exec)
		if err != nil {
			return Response{}, err
		}
		if !retired.IsEmpty() {
			r.Kind, r.Lanes = ResponseRetire, retired
		}
	default:
		return Response{}, bytecode.NewErrorAt(bytecode.ErrUnsupportedInstruction, pc, "cannot execute %s", in.Opcode)
	}
	return r, nil
}
