// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package vm

import (
	"fmt"

	"github.com/gogpu/shadervm/bytecode"
	"github.com/gogpu/shadervm/internal/logger"
)

// Warp runs a group of lanes in lockstep over one program counter. Lanes
// split by a branch are tracked on the divergence stack until they meet
// again at the branch's reconvergence point.
//
// At every step the active mask and the frame masks partition the lanes
// that have not retired.
type Warp struct {
	contexts []*ExecutionContext
	stack    DivergenceStack
	active   LaneMask
	pc       int
	end      int
	policy   Policy
	finished bool
}

func newWarp(contexts []*ExecutionContext, end int, policy Policy) *Warp {
	w := &Warp{contexts: contexts, end: end, policy: policy}
	w.reset()
	return w
}

func (w *Warp) reset() {
	for _, c := range w.contexts {
		c.reset()
	}
	w.stack.reset(w.end)
	w.active = FullMask(len(w.contexts))
	w.pc = 0
	w.finished = false
}

// PC returns the program counter of the active lanes.
func (w *Warp) PC() int { return w.pc }

// Active returns the lanes currently executing.
func (w *Warp) Active() LaneMask { return w.active }

// Stack returns a copy of the divergence stack, bottom first.
func (w *Warp) Stack() []DivergenceFrame { return w.stack.Frames() }

// Finished reports whether every lane has retired or reached the end.
func (w *Warp) Finished() bool { return w.finished }

// Size returns the number of lanes.
func (w *Warp) Size() int { return len(w.contexts) }

// CheckInvariant verifies that the active mask and the frame masks are
// pairwise disjoint and together hold exactly the lanes not yet retired.
func (w *Warp) CheckInvariant() error {
	seen := w.active
	for i, f := range w.stack.frames {
		if seen.Overlaps(f.Mask) {
			return fmt.Errorf("frame %d %v overlaps lanes %v", i, f, seen.Intersect(f.Mask))
		}
		seen = seen.Union(f.Mask)
	}
	live := NewLaneMask(len(w.contexts))
	for _, c := range w.contexts {
		if !c.Retired {
			live.add(c.Index)
		}
	}
	if !seen.Equal(live) {
		return fmt.Errorf("masks hold %v, live lanes are %v", seen, live)
	}
	return nil
}

// settle applies every reconvergence that the current program counter
// triggers and resumes deferred lanes when the active mask runs empty.
func (w *Warp) settle() {
	for {
		top := w.stack.Top()
		if w.active.IsEmpty() {
			if top.Kind == FrameSentinel {
				w.finished = true
				return
			}
			f, _ := w.stack.Pop()
			w.resume(f)
			continue
		}

		switch {
		case top.Kind == FrameSentinel && w.pc == w.end:
			w.finished = true
			return
		case top.Kind == FrameParked && w.pc == top.PC:
			f, _ := w.stack.Pop()
			w.active = w.active.Union(f.Mask)
			w.debug("reconverge", f)
		case top.Kind == FramePending && (w.pc == top.Reconverge || w.pc == w.end),
			top.Kind == FrameParked && w.pc == w.end:
			f, _ := w.stack.Pop()
			w.park(w.active, w.pc)
			w.resume(f)
		default:
			return
		}
	}
}

func (w *Warp) resume(f DivergenceFrame) {
	w.active, w.pc = f.Mask, f.PC
	w.debug("resume", f)
}

// park suspends mask at pc, joining lanes already waiting there.
func (w *Warp) park(mask LaneMask, pc int) {
	if top := w.stack.Top(); top.Kind == FrameParked && top.PC == pc {
		top.Mask = top.Mask.Union(mask)
		return
	}
	w.stack.Push(DivergenceFrame{Kind: FrameParked, Mask: mask, PC: pc})
}

// branch moves the active lanes past the branch at the current program
// counter, splitting them when they disagree.
func (w *Warp) branch(in *bytecode.Instruction, x executor) error {
	pc := w.pc
	if in.Opcode == bytecode.OpBranch {
		w.moveTo(w.active, in.Target)
		w.pc = in.Target
		return nil
	}

	taken := NewLaneMask(len(w.contexts))
	for lane := range w.active.Lanes() {
		ok, err := x.test(pc, w.contexts[lane])
		if err != nil {
			return err
		}
		if ok {
			taken.add(lane)
		}
	}
	stay := w.active.Without(taken)
	w.moveTo(taken, in.Target)
	w.moveTo(stay, pc+1)

	switch {
	case stay.IsEmpty():
		w.pc = in.Target
	case taken.IsEmpty():
		w.pc = pc + 1
	default:
		run, runPC, deferred, deferredPC := stay, pc+1, taken, in.Target
		if w.policy == TakenFirst {
			run, runPC, deferred, deferredPC = taken, in.Target, stay, pc+1
		}
		f := DivergenceFrame{Kind: FramePending, Mask: deferred, PC: deferredPC, Reconverge: in.Reconverge}
		w.stack.Push(f)
		w.active, w.pc = run, runPC
		w.debug("diverge", f)
	}
	return nil
}

// retire removes the lanes that pass the instruction's condition from
// execution. It returns the retired lanes.
func (w *Warp) retire(in *bytecode.Instruction, x executor) (LaneMask, error) {
	pc := w.pc
	retiring := NewLaneMask(len(w.contexts))
	for lane := range w.active.Lanes() {
		ok, err := x.test(pc, w.contexts[lane])
		if err != nil {
			return LaneMask{}, err
		}
		if ok {
			retiring.add(lane)
		}
	}
	for lane := range retiring.Lanes() {
		c := w.contexts[lane]
		c.Retired = true
		c.Discarded = in.Opcode == bytecode.OpDiscard
		c.PC = pc
	}
	w.active = w.active.Without(retiring)
	w.moveTo(w.active, pc+1)
	w.pc = pc + 1

	if !retiring.IsEmpty() && logger.Enabled() {
		logger.Get().Debug("shadervm: retire", "pc", pc, "opcode", in.Opcode, "lanes", retiring.String())
	}
	return retiring, nil
}

// advance moves the active lanes to the next instruction.
func (w *Warp) advance() {
	w.pc++
	w.moveTo(w.active, w.pc)
}

func (w *Warp) moveTo(mask LaneMask, pc int) {
	for lane := range mask.Lanes() {
		w.contexts[lane].PC = pc
	}
}

func (w *Warp) debug(event string, f DivergenceFrame) {
	if logger.Enabled() {
		logger.Get().Debug("shadervm: "+event, "pc", w.pc, "frame", f.String(), "depth", w.stack.Len())
	}
}
