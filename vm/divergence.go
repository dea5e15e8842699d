// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package vm

import (
	"fmt"
	"slices"
)

// FrameKind distinguishes the entries of a divergence stack.
type FrameKind uint8

const (
	// FrameSentinel sits at the bottom of every stack and marks the end of
	// the program. Its mask is empty.
	FrameSentinel FrameKind = iota
	// FramePending holds lanes deferred at a divergent branch. They resume
	// at PC once the running lanes reach Reconverge.
	FramePending
	// FrameParked holds lanes that reached a reconvergence point first and
	// wait there, at PC, for the rest.
	FrameParked
)

func (k FrameKind) String() string {
	switch k {
	case FrameSentinel:
		return "sentinel"
	case FramePending:
		return "pending"
	case FrameParked:
		return "parked"
	default:
		return "unknown"
	}
}

// DivergenceFrame is one entry of the divergence stack.
type DivergenceFrame struct {
	Kind       FrameKind
	Mask       LaneMask
	PC         int
	Reconverge int
}

func (f DivergenceFrame) String() string {
	if f.Kind == FramePending {
		return fmt.Sprintf("%s%v@%d->%d", f.Kind, f.Mask, f.PC, f.Reconverge)
	}
	return fmt.Sprintf("%s%v@%d", f.Kind, f.Mask, f.PC)
}

// DivergenceStack is the LIFO of deferred and waiting lane groups. Frames
// nest like the structured blocks the branches came from.
type DivergenceStack struct {
	frames []DivergenceFrame
}

// Push adds f on top of the stack.
func (s *DivergenceStack) Push(f DivergenceFrame) {
	s.frames = append(s.frames, f)
}

// Pop removes and returns the top frame.
func (s *DivergenceStack) Pop() (DivergenceFrame, bool) {
	if len(s.frames) == 0 {
		return DivergenceFrame{}, false
	}
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return f, true
}

// Top returns the top frame, or nil for an empty stack. The pointer is
// valid until the next Push.
func (s *DivergenceStack) Top() *DivergenceFrame {
	if len(s.frames) == 0 {
		return nil
	}
	return &s.frames[len(s.frames)-1]
}

// Len returns the number of frames, the sentinel included.
func (s *DivergenceStack) Len() int { return len(s.frames) }

// Frames returns a copy of the frames, bottom first.
func (s *DivergenceStack) Frames() []DivergenceFrame {
	return slices.Clone(s.frames)
}

func (s *DivergenceStack) reset(end int) {
	s.frames = append(s.frames[:0], DivergenceFrame{Kind: FrameSentinel, PC: end})
}
