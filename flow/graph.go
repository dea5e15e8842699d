// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package flow

import (
	"fmt"
	"strings"

	"github.com/gogpu/shadervm/bytecode"
)

// EdgeKind classifies a control-flow edge.
type EdgeKind uint8

const (
	// EdgeFallthrough continues to the next instruction.
	EdgeFallthrough EdgeKind = iota
	// EdgeJump follows a branch target.
	EdgeJump
	// EdgeExit leaves the program through a return or the end of the stream.
	EdgeExit
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeFallthrough:
		return "fallthrough"
	case EdgeJump:
		return "jump"
	case EdgeExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Edge is a directed edge to block To. The virtual exit block has the ID
// Graph.Exit().
type Edge struct {
	Kind EdgeKind
	To   int
}

// BasicBlock is a maximal run of instructions entered only at its first
// instruction and left only after its last.
type BasicBlock struct {
	ID int
	// Start and End delimit the block in the source stream, End exclusive.
	Start, End   int
	Instructions []bytecode.Instruction
	Succs        []Edge
	Preds        []int
}

// Terminator returns the last instruction of the block.
func (b *BasicBlock) Terminator() *bytecode.Instruction {
	return &b.Instructions[len(b.Instructions)-1]
}

// Graph is the control-flow graph of a rewritten stream. Blocks appear in
// stream order.
type Graph struct {
	Blocks []*BasicBlock

	// blockOf maps a stream index to its block; the stream length maps to
	// the exit.
	blockOf []int
	pdom    *postDominators
}

// Exit returns the ID of the virtual exit block.
func (g *Graph) Exit() int { return len(g.Blocks) }

// BlockOf returns the block containing the stream index. The stream length
// yields Exit().
func (g *Graph) BlockOf(index int) int { return g.blockOf[index] }

// Len returns the number of instructions in the graph.
func (g *Graph) Len() int { return len(g.blockOf) - 1 }

// BuildGraph splits a rewritten stream into basic blocks. A block starts at
// the first instruction, at every branch target and after every branch or
// unconditional return.
func BuildGraph(stream []bytecode.Instruction) (*Graph, error) {
	n := len(stream)
	leader := make([]bool, n+1)
	leader[0] = true
	leader[n] = true
	for i := range stream {
		in := &stream[i]
		switch {
		case in.IsBranch():
			if in.Target < 0 || in.Target > n {
				return nil, bytecode.NewErrorAt(bytecode.ErrMalformedProgram, i,
					"branch target %d outside of program of length %d", in.Target, n)
			}
			if in.Merge < 0 || in.Merge > n {
				return nil, bytecode.NewErrorAt(bytecode.ErrMalformedProgram, i,
					"branch merge %d outside of program of length %d", in.Merge, n)
			}
			leader[in.Target] = true
			leader[i+1] = true
		case in.Opcode == bytecode.OpRet:
			leader[i+1] = true
		}
	}

	g := &Graph{blockOf: make([]int, n+1)}
	for i := 0; i < n; {
		end := i + 1
		for !leader[end] {
			end++
		}
		b := &BasicBlock{ID: len(g.Blocks), Start: i, End: end, Instructions: stream[i:end:end]}
		for k := i; k < end; k++ {
			g.blockOf[k] = b.ID
		}
		g.Blocks = append(g.Blocks, b)
		i = end
	}
	g.blockOf[n] = g.Exit()

	for _, b := range g.Blocks {
		g.link(b)
	}
	g.pdom = computePostDominators(g)
	return g, nil
}

func (g *Graph) link(b *BasicBlock) {
	add := func(kind EdgeKind, index int) {
		to := g.blockOf[index]
		if to == g.Exit() {
			kind = EdgeExit
		}
		b.Succs = append(b.Succs, Edge{Kind: kind, To: to})
		if to != g.Exit() {
			g.Blocks[to].Preds = append(g.Blocks[to].Preds, b.ID)
		}
	}

	term := b.Terminator()
	switch term.Opcode {
	case bytecode.OpBranch:
		add(EdgeJump, term.Target)
	case bytecode.OpBranchC:
		add(EdgeFallthrough, b.End)
		add(EdgeJump, term.Target)
	case bytecode.OpRet:
		b.Succs = append(b.Succs, Edge{Kind: EdgeExit, To: g.Exit()})
	default:
		add(EdgeFallthrough, b.End)
	}
}

// ImmediatePostDominator returns the nearest block, other than id itself,
// through which every path from id to the exit passes. It returns Exit()
// when only the exit qualifies and -1 when id cannot reach the exit.
func (g *Graph) ImmediatePostDominator(id int) int {
	return g.pdom.immediate[id]
}

// PostDominates reports whether every path from block b to the exit passes
// through block a. Every block post-dominates itself.
func (g *Graph) PostDominates(a, b int) bool {
	return g.pdom.sets[b].Test(uint(a))
}

// String renders the graph one block per line, for debugging.
func (g *Graph) String() string {
	var sb strings.Builder
	for _, b := range g.Blocks {
		fmt.Fprintf(&sb, "B%d [%d,%d) ->", b.ID, b.Start, b.End)
		for _, e := range b.Succs {
			if e.To == g.Exit() {
				sb.WriteString(" exit")
				continue
			}
			fmt.Fprintf(&sb, " B%d(%s)", e.To, e.Kind)
		}
		fmt.Fprintf(&sb, " ipdom=%d\n", g.ImmediatePostDominator(b.ID))
	}
	return sb.String()
}
